package match

import (
	"github.com/ValentinKolb/dDetect/lib/catalog"
	"github.com/ValentinKolb/dDetect/lib/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// corpus holds the distinct signature strings of a catalog. Several signatures may
// share a string, the matchers compare each string once.
type corpus struct {
	strings    []string // distinct strings in order of their first signature
	signatures [][]int  // ascending signature indexes per string
	all        []int    // 0..len(strings)-1

	// exact dictionary: string hash -> indexes of the strings with that hash
	seed  uint64
	exact *xsync.MapOf[util.UintKey, []int]

	// first segment -> ascending string indexes
	bySegment map[string][]int
}

func newCorpus(c *catalog.Catalog, rule SegmentRule) (*corpus, error) {
	n := c.SignatureCount()
	cp := &corpus{
		strings:    make([]string, 0, n),
		signatures: make([][]int, 0, n),
		seed:       util.GenerateSeed(),
		exact:      xsync.NewMapOfWithHasher[util.UintKey, []int](util.IdentityHasher()),
		bySegment:  make(map[string][]int),
	}

	for i := 0; i < n; i++ {
		s, err := c.Signature(i)
		if err != nil {
			return nil, err
		}

		if e, ok := cp.lookup(s.String); ok {
			cp.signatures[e] = append(cp.signatures[e], i)
			continue
		}

		e := len(cp.strings)
		cp.strings = append(cp.strings, s.String)
		cp.signatures = append(cp.signatures, []int{i})
		cp.all = append(cp.all, e)

		key := util.HashString(s.String, cp.seed)
		bucket, _ := cp.exact.Load(key)
		cp.exact.Store(key, append(bucket, e))

		if first := rule.First(s.String); first != "" {
			cp.bySegment[first] = append(cp.bySegment[first], e)
		}
	}

	return cp, nil
}

// lookup returns the index of an exact string
func (cp *corpus) lookup(s string) (int, bool) {
	bucket, ok := cp.exact.Load(util.HashString(s, cp.seed))
	if !ok {
		return 0, false
	}
	for _, e := range bucket {
		if cp.strings[e] == s {
			return e, true
		}
	}
	return 0, false
}

// subset returns the strings sharing the first segment of target
func (cp *corpus) subset(target string, rule SegmentRule) []int {
	return cp.bySegment[rule.First(target)]
}

// signature returns the first signature of a string
func (cp *corpus) signature(e int) int {
	return cp.signatures[e][0]
}
