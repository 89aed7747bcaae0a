package match

// distance returns the Levenshtein distance of candidate and target, counted in
// bytes. As soon as every cell of a row exceeds bound the computation stops and
// bound+1 is returned, so any result greater than bound only means "worse than bound".
// The rows are sized to the target.
func (w *workspace) distance(candidate, target string, bound int) int {
	if bound < 0 {
		return bound + 1
	}

	lc, lt := len(candidate), len(target)
	if diff := lc - lt; diff > bound || -diff > bound {
		return bound + 1
	}
	if lc == 0 {
		return lt
	}
	if lt == 0 {
		return lc
	}

	prev, cur := w.distanceRows(lt + 1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= lc; i++ {
		cur[0] = i
		rowMin := i
		ci := candidate[i-1]

		for j := 1; j <= lt; j++ {
			v := prev[j-1]
			if ci != target[j-1] {
				v++
			}
			if del := prev[j] + 1; del < v {
				v = del
			}
			if ins := cur[j-1] + 1; ins < v {
				v = ins
			}
			cur[j] = v
			if v < rowMin {
				rowMin = v
			}
		}

		// the final distance is at least the minimum of any row
		if rowMin > bound {
			return bound + 1
		}
		prev, cur = cur, prev
	}

	return prev[lt]
}

// commonPrefix returns the length of the longest common prefix of a and b
func commonPrefix(a, b string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
