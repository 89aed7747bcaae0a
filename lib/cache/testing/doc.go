// Package testing provides a reusable conformance suite and benchmarks for cache.Cache
// implementations.
//
// Every strategy of the cache package is expected to pass RunCacheTests. The suite
// covers:
//   - Loading on a miss and serving hits without calling the loader again
//   - Loader errors (nothing is cached)
//   - The capacity bound and eviction counting
//   - First-insert-wins semantics of Put and of concurrent loads of the same key
//   - Reset and the consistency of the counters (misses never exceed requests)
//
// Usage:
//
//	func Test(t *testing.T) {
//	    cachetesting.RunCacheTests(t, "LRU", func(capacity int) cache.Cache[string] {
//	        c, _ := cache.New[string](cache.Setting{Capacity: capacity, Strategy: cache.StrategyLRU}, cache.Options[string]{})
//	        return c
//	    })
//	}
package testing
