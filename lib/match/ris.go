package match

import "strings"

// ToleranceFunc returns the minimum prefix length a reduced initial string match
// needs for a target
type ToleranceFunc func(target string) int

// DefaultTolerance requires the prefix up to and including the first "(" of the
// target, or the whole target if it has none
func DefaultTolerance(target string) int {
	if i := strings.IndexByte(target, '('); i >= 0 {
		return i + 1
	}
	return len(target)
}

// RISMatcher (reduced initial string) picks the candidate sharing the longest prefix
// with the target. On equal length the first candidate wins.
type RISMatcher struct {
	Tolerance ToleranceFunc
}

// Match returns the best candidate (an index into strs) and the length of its shared
// prefix. ok is false if no candidate reaches the tolerance.
func (m *RISMatcher) Match(target string, strs []string, candidates []int) (candidate, prefix int, ok bool) {
	tolerance := DefaultTolerance
	if m.Tolerance != nil {
		tolerance = m.Tolerance
	}

	candidate, prefix = -1, 0
	for _, c := range candidates {
		if l := commonPrefix(strs[c], target); l > prefix {
			candidate, prefix = c, l
		}
	}

	if candidate < 0 || prefix < tolerance(target) {
		return -1, 0, false
	}
	return candidate, prefix, true
}
