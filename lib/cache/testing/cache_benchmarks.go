package testing

import (
	"testing"

	"github.com/ValentinKolb/dDetect/lib/cache"
)

// RunCacheBenchmarks runs the benchmarks for a cache implementation
func RunCacheBenchmarks(b *testing.B, name string, factory CacheFactory) {
	b.Run(name+"/Hit", func(b *testing.B) {
		benchmarkHit(b, factory(1000))
	})

	b.Run(name+"/Miss", func(b *testing.B) {
		benchmarkMiss(b, factory(1000))
	})

	b.Run(name+"/Mixed", func(b *testing.B) {
		benchmarkMixed(b, factory(1000))
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func load(key int) (string, error) { return valueOf(key), nil }

func benchmarkHit(b *testing.B, c cache.Cache[string]) {
	b.Cleanup(func() {
		c.Close()
	})

	for i := 0; i < 100; i++ {
		c.GetOrLoad(i, load)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			c.GetOrLoad(i%100, load)
			i++
		}
	})
}

func benchmarkMiss(b *testing.B, c cache.Cache[string]) {
	b.Cleanup(func() {
		c.Close()
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			c.GetOrLoad(i, load)
			i++
		}
	})
}

// 80% of the requests go to 20% of the keys
func benchmarkMixed(b *testing.B, c cache.Cache[string]) {
	b.Cleanup(func() {
		c.Close()
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			key := i % 5000
			if i%5 != 0 {
				key = i % 1000
			}
			c.GetOrLoad(key, load)
			i++
		}
	})
}
