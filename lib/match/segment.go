package match

import (
	"math"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

// unlimited is the limit of stages without a distance bound. It leaves room for
// bound+1 without overflowing.
const unlimited = math.MaxInt32

// SegmentRule splits strings into segments that are scored independently
type SegmentRule struct {
	// Delimiter splits the string if Pattern is nil
	Delimiter string

	// Pattern selects the segments: the capture groups of its first match, or the
	// whole match if it has no groups
	Pattern *regexp.Regexp

	// Weights multiply the distance of each segment, missing weights are 1
	Weights []int
}

// DefaultSegmentRule splits on spaces and weights the first segment (the product
// token) double
func DefaultSegmentRule() SegmentRule {
	return SegmentRule{Delimiter: " ", Weights: []int{2}}
}

// Split returns the segments of s (nil if s has none)
func (r SegmentRule) Split(s string) []string {
	if s == "" {
		return nil
	}
	if r.Pattern != nil {
		m := r.Pattern.FindStringSubmatch(s)
		switch {
		case m == nil:
			return nil
		case len(m) > 1:
			return m[1:]
		default:
			return m
		}
	}
	delim := r.Delimiter
	if delim == "" {
		delim = " "
	}
	return strings.Split(s, delim)
}

// First returns the first segment of s ("" if there is none)
func (r SegmentRule) First(s string) string {
	if segs := r.Split(s); len(segs) > 0 {
		return segs[0]
	}
	return ""
}

func (r SegmentRule) weight(i int) int {
	if i < len(r.Weights) {
		return r.Weights[i]
	}
	return 1
}

// SegmentMatcher scores candidates segment by segment. A candidate with a different
// number of segments than the target is rejected, otherwise its score is the sum of
// the weighted distances of differing segments.
type SegmentMatcher struct {
	Rule    SegmentRule
	scanner *scanner
}

// Match returns the candidates (indexes into strs) with the lowest segment score
func (m *SegmentMatcher) Match(target string, strs []string, candidates []int, req *Request) ResultSet {
	targetSegments := m.Rule.Split(target)
	if len(targetSegments) == 0 {
		return ResultSet{}
	}

	return m.scanner.scan(candidates, unlimited, &req.ws, func(_ *workspace, c, bound int) int {
		segments := m.Rule.Split(strs[c])
		if len(segments) != len(targetSegments) {
			return bound + 1
		}

		score := 0
		for i, seg := range segments {
			if seg == targetSegments[i] {
				continue
			}
			score += levenshtein.ComputeDistance(seg, targetSegments[i]) * m.Rule.weight(i)
			if score > bound {
				return bound + 1
			}
		}
		return score
	})
}
