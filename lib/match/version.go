package match

import (
	"regexp"
)

// extraCharPenalty is the difference added per character one version is longer
const extraCharPenalty = 10

// VersionRule selects the version segments of a string: segment i is the first
// capture group (or the whole match) of Patterns[i]
type VersionRule struct {
	Patterns []*regexp.Regexp
}

// DefaultVersionRule compares the versions of common platform and browser tokens
func DefaultVersionRule() VersionRule {
	return VersionRule{Patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?:Windows NT|Android|Mac OS X|CPU (?:iPhone )?OS) ([0-9][0-9._]*)`),
		regexp.MustCompile(`Version/([0-9][0-9.]*)`),
		regexp.MustCompile(`(?:Chrome|CriOS)/([0-9][0-9.]*)`),
		regexp.MustCompile(`(?:Firefox|FxiOS)/([0-9][0-9.]*)`),
		regexp.MustCompile(`(?:Edg|Edge|OPR|Opera)/([0-9][0-9.]*)`),
		regexp.MustCompile(`Safari/([0-9][0-9.]*)`),
		regexp.MustCompile(`AppleWebKit/([0-9][0-9.]*)`),
	}}
}

// Segments returns one entry per pattern, "" if the pattern does not match
func (r VersionRule) Segments(s string) []string {
	segments := make([]string, len(r.Patterns))
	for i, p := range r.Patterns {
		m := p.FindStringSubmatch(s)
		switch {
		case m == nil:
		case len(m) > 1:
			segments[i] = m[1]
		default:
			segments[i] = m[0]
		}
	}
	return segments
}

// versionScore is the comparison of one version segment of a candidate
type versionScore struct {
	matched int // leading characters equal to the target
	diff    int // absolute character difference after the matched part
}

// compareVersion compares a candidate version c to the target version t
func compareVersion(t, c string) versionScore {
	s := versionScore{matched: commonPrefix(t, c)}
	n := min(len(t), len(c))
	for i := s.matched; i < n; i++ {
		d := int(t[i]) - int(c[i])
		if d < 0 {
			d = -d
		}
		s.diff += d
	}
	extra := len(t) - len(c)
	if extra < 0 {
		extra = -extra
	}
	s.diff += extra * extraCharPenalty
	return s
}

// VersionMatcher scores candidates by how closely their version numbers match the
// target. Candidates are rewarded both for matching more leading characters and for
// diverging less numerically after the matched part.
type VersionMatcher struct {
	Rule VersionRule
}

// Match returns the candidates (indexes into strs) with the lowest version score.
// Segments the target does not have are ignored, a target without any version
// segment matches nothing.
func (m *VersionMatcher) Match(target string, strs []string, candidates []int, req *Request) ResultSet {
	if len(candidates) == 0 {
		return ResultSet{}
	}

	targetSegments := m.Rule.Segments(target)
	var active []int
	for s, seg := range targetSegments {
		if seg != "" {
			active = append(active, s)
		}
	}
	if len(active) == 0 {
		return ResultSet{}
	}

	// pass 1: compare every segment and track the most matched characters per segment
	n := len(active)
	scores := req.ws.scores[:0]
	maxChars := make([]int, n)
	for _, c := range candidates {
		segments := m.Rule.Segments(strs[c])
		for i, s := range active {
			vs := compareVersion(targetSegments[s], segments[s])
			scores = append(scores, vs)
			maxChars[i] = max(maxChars[i], vs.matched)
		}
	}
	req.ws.scores = scores

	// pass 2: combine the segments relative to the best match
	best := unlimited
	var ties []int
	for ci, c := range candidates {
		score := 0
		for i := range active {
			vs := scores[ci*n+i]
			missing := maxChars[i] - vs.matched
			score += (missing + 1) * (vs.diff + missing)
		}
		if score > best {
			continue
		}
		if score < best {
			best = score
			ties = ties[:0]
		}
		ties = append(ties, c)
	}

	return ResultSet{Distance: best, Candidates: ties}
}
