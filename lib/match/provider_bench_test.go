package match_test

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/ValentinKolb/dDetect/lib/catalog"
	catalogtesting "github.com/ValentinKolb/dDetect/lib/catalog/testing"
	"github.com/ValentinKolb/dDetect/lib/match"
)

func BenchmarkMatch(b *testing.B) {
	c := catalogtesting.Load(b, catalogtesting.Synthetic(5000), catalog.ModeEager)
	targets := syntheticTargets(64)

	for _, workers := range []int{1, runtime.NumCPU()} {
		opts := match.DefaultOptions()
		opts.Workers = workers
		p := newProvider(b, c, opts)

		b.Run(fmt.Sprintf("Workers-%d", workers), func(b *testing.B) {
			req := match.NewRequest()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := p.MatchInto(targets[i%len(targets)], req); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkMatchExact(b *testing.B) {
	c := catalogtesting.Load(b, catalogtesting.Synthetic(5000), catalog.ModeLazy)
	p := newProvider(b, c, match.DefaultOptions())
	s, _ := c.Signature(1234)

	req := match.NewRequest()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := p.MatchInto(s.String, req); err != nil {
			b.Fatal(err)
		}
	}
}
