package match

// EditDistanceMatcher scores candidates by their Levenshtein distance to the target.
// The zero value scans sequentially.
type EditDistanceMatcher struct {
	scanner *scanner
}

// Match returns the candidates (indexes into strs) with the lowest distance to
// target, if that distance is not greater than limit. Every tie is kept.
func (m *EditDistanceMatcher) Match(target string, strs []string, candidates []int, limit int, req *Request) ResultSet {
	return m.scanner.scan(candidates, limit, &req.ws, func(ws *workspace, c, bound int) int {
		return ws.distance(strs[c], target, bound)
	})
}
