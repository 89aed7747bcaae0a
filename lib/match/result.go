package match

import (
	"github.com/ValentinKolb/dDetect/lib/catalog"
)

// Result is the outcome of a match.
//
// The signature and profiles are shared catalog entities and stay valid for the
// lifetime of the catalog. A Result read from a Request is only valid until the
// request is reused, use Clone to keep it.
type Result struct {
	// Target is the matched string (the primary header value for header matches)
	Target string `json:"target"`

	// Targets holds the header values used by MatchHeaders
	Targets map[string]string `json:"targets,omitempty"`

	// Signature is the matched signature, nil for MethodNone and for device ids
	// without a signature
	Signature *catalog.Signature `json:"signature,omitempty"`

	// Profiles are the resolved profiles in component order
	Profiles []*catalog.Profile `json:"profiles"`

	// Difference is the score of the deciding stage (0 for exact and device id matches)
	Difference int `json:"difference"`

	Method   Method `json:"method"`
	DeviceID string `json:"device_id"`

	// Stage is the stage of the cascade that produced the result
	Stage Stage `json:"stage"`

	// SignaturesCompared counts the candidate strings scored by all stages
	SignaturesCompared int `json:"signatures_compared"`
}

// Clone returns a copy of the result that does not share buffers with a Request
func (r *Result) Clone() Result {
	c := *r
	c.Profiles = append([]*catalog.Profile(nil), r.Profiles...)
	if c.Profiles == nil {
		c.Profiles = []*catalog.Profile{}
	}
	if r.Targets != nil {
		c.Targets = make(map[string]string, len(r.Targets))
		for k, v := range r.Targets {
			c.Targets[k] = v
		}
	}
	return c
}

// ProfileIDs returns the ids of the resolved profiles
func (r *Result) ProfileIDs() []int {
	ids := make([]int, len(r.Profiles))
	for i, p := range r.Profiles {
		ids[i] = p.ID
	}
	return ids
}

// ResultSet is the outcome of a scoring stage: the best score and all candidates
// reaching it, in ascending candidate order
type ResultSet struct {
	Distance   int
	Candidates []int
}

// Found reports if any candidate was within the limit
func (rs ResultSet) Found() bool { return len(rs.Candidates) > 0 }
