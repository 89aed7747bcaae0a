package match

import (
	"github.com/ValentinKolb/dDetect/lib/catalog"
)

// workspace holds the scratch buffers of one goroutine scoring candidates
type workspace struct {
	rows   [2][]int
	scores []versionScore
}

// distanceRows returns two rows of length n, reusing the buffers if possible
func (w *workspace) distanceRows(n int) ([]int, []int) {
	for i := range w.rows {
		if cap(w.rows[i]) < n {
			w.rows[i] = make([]int, n)
		}
		w.rows[i] = w.rows[i][:n]
	}
	return w.rows[0], w.rows[1]
}

// Request carries the scratch buffers and the result of matches. Reusing a request
// for many matches avoids allocations.
//
// Thread-safety: a Request is NOT thread-safe, every goroutine needs its own.
type Request struct {
	ws       workspace
	profiles []*catalog.Profile
	slots    []*catalog.Profile
	result   Result
}

// NewRequest creates an empty request
func NewRequest() *Request {
	return &Request{}
}

// Reset clears the result, the buffers are kept
func (r *Request) Reset() {
	for i := range r.profiles {
		r.profiles[i] = nil
	}
	r.profiles = r.profiles[:0]
	for i := range r.slots {
		r.slots[i] = nil
	}
	r.slots = r.slots[:0]
	r.result = Result{Profiles: r.profiles}
}

// Result returns the result of the last match. It is overwritten by the next match.
func (r *Request) Result() *Result {
	return &r.result
}
