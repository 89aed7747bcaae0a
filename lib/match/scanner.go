package match

import (
	"math"
	"slices"
	"sync"
	"sync/atomic"
)

// scoreFunc scores one candidate. Scores above bound may be reported as any value
// above bound, scores up to bound must be exact.
type scoreFunc func(ws *workspace, candidate, bound int) int

// scanner runs a score function over a candidate list and keeps every candidate with
// the lowest score. Above a threshold the candidates are scored by a fixed number of
// workers, the result is the same as a sequential scan.
//
// Thread-safety: a scanner is safe for concurrent use.
type scanner struct {
	workers   int
	threshold int

	workspaces sync.Pool
}

func newScanner(workers, threshold int) *scanner {
	return &scanner{
		workers:   workers,
		threshold: threshold,
		workspaces: sync.Pool{
			New: func() any { return &workspace{} },
		},
	}
}

// scan returns the candidates with the lowest score not greater than limit.
// ws is used for sequential scans.
func (s *scanner) scan(candidates []int, limit int, ws *workspace, score scoreFunc) ResultSet {
	if s != nil && s.workers > 1 && len(candidates) > s.threshold {
		return s.scanParallel(candidates, limit, score)
	}
	return scanSequential(candidates, limit, ws, score)
}

func scanSequential(candidates []int, limit int, ws *workspace, score scoreFunc) ResultSet {
	best := limit
	var ties []int

	for _, c := range candidates {
		d := score(ws, c, best)
		if d > best {
			continue
		}
		if d < best {
			best = d
			ties = ties[:0]
		}
		ties = append(ties, c)
	}

	if len(ties) == 0 {
		return ResultSet{}
	}
	return ResultSet{Distance: best, Candidates: ties}
}

// chunkSize returns the number of candidates per work item
func (s *scanner) chunkSize(n int) int {
	size := n / (s.workers * 8)
	return max(size, 16)
}

// scanParallel feeds chunks of candidates through a bounded channel to the workers.
// Every worker prunes against the best score of all workers, which only ever
// decreases. A stale read therefore prunes less, never wrongly.
func (s *scanner) scanParallel(candidates []int, limit int, score scoreFunc) ResultSet {
	var (
		shared atomic.Int64
		mu     sync.Mutex
		merged = ResultSet{Distance: math.MaxInt}
		work   = make(chan []int, s.workers)
		wg     sync.WaitGroup
	)
	shared.Store(int64(limit))

	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ws := s.workspaces.Get().(*workspace)
			defer s.workspaces.Put(ws)

			localBest := limit
			var local []int

			for chunk := range work {
				for _, c := range chunk {
					bound := min(localBest, int(shared.Load()))
					d := score(ws, c, bound)
					if d > bound {
						continue
					}
					if d < localBest {
						localBest = d
						local = local[:0]
					}
					local = append(local, c)

					for {
						cur := shared.Load()
						if int64(d) >= cur || shared.CompareAndSwap(cur, int64(d)) {
							break
						}
					}
				}
			}

			if len(local) == 0 {
				return
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case localBest < merged.Distance:
				merged.Distance = localBest
				merged.Candidates = append(merged.Candidates[:0], local...)
			case localBest == merged.Distance:
				merged.Candidates = append(merged.Candidates, local...)
			}
		}()
	}

	size := s.chunkSize(len(candidates))
	for lo := 0; lo < len(candidates); lo += size {
		work <- candidates[lo:min(lo+size, len(candidates))]
	}
	close(work)
	wg.Wait()

	if len(merged.Candidates) == 0 {
		return ResultSet{}
	}
	slices.Sort(merged.Candidates)
	return merged
}
