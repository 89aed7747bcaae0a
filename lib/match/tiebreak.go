package match

import (
	"github.com/agnivade/levenshtein"
)

// TieBreak picks one of several equally scored candidates (indexes into strs,
// ascending). Only candidates sharing the longest prefix with the target survive.
// Among them an exact string wins if the prefix covers the whole target, otherwise
// the candidate whose tail is closest to the tail of the target. A candidate only
// replaces the current pick if it is strictly better, so the first candidate wins
// all remaining ties. Returns -1 for an empty candidate list.
func TieBreak(target string, strs []string, candidates []int) int {
	if len(candidates) == 0 {
		return -1
	}

	longest := -1
	survivors := make([]int, 0, len(candidates))
	for _, c := range candidates {
		l := commonPrefix(strs[c], target)
		if l > longest {
			longest = l
			survivors = survivors[:0]
		}
		if l == longest {
			survivors = append(survivors, c)
		}
	}
	if len(survivors) == 1 {
		return survivors[0]
	}

	if longest == len(target) {
		for _, c := range survivors {
			if strs[c] == target {
				return c
			}
		}
	}

	maxTail := 0
	for _, c := range survivors {
		maxTail = max(maxTail, len(strs[c])-longest)
	}
	targetTail := target[longest:]
	if len(targetTail) > maxTail {
		targetTail = targetTail[:maxTail]
	}

	best := survivors[0]
	bestDistance := levenshtein.ComputeDistance(targetTail, strs[best][longest:])
	for _, c := range survivors[1:] {
		if d := levenshtein.ComputeDistance(targetTail, strs[c][longest:]); d < bestDistance {
			best, bestDistance = c, d
		}
	}
	return best
}
