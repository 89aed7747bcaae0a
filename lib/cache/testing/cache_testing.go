package testing

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dDetect/lib/cache"
)

// CacheFactory creates a new, empty cache with the given capacity
type CacheFactory func(capacity int) cache.Cache[string]

// capacity used by most of the suite; every strategy evicts exactly one entry per
// insert when full
const suiteCapacity = 10

// largeCapacity is used to check that big caches fill up completely before evicting
const largeCapacity = 1024

// RunCacheTests runs the conformance suite for a cache implementation
func RunCacheTests(t *testing.T, name string, factory CacheFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("GetOrLoad", func(t *testing.T) {
			testGetOrLoad(t, factory(suiteCapacity))
		})

		t.Run("LoaderError", func(t *testing.T) {
			testLoaderError(t, factory(suiteCapacity))
		})

		t.Run("Get", func(t *testing.T) {
			testGet(t, factory(suiteCapacity))
		})

		t.Run("PutFirstWins", func(t *testing.T) {
			testPutFirstWins(t, factory(suiteCapacity))
		})

		t.Run("CapacityBound", func(t *testing.T) {
			testCapacityBound(t, factory(suiteCapacity))
		})

		t.Run("FullWorkingSet", func(t *testing.T) {
			testFullWorkingSet(t, factory(largeCapacity))
		})

		t.Run("ConcurrentLoadSameKey", func(t *testing.T) {
			testConcurrentLoadSameKey(t, factory(suiteCapacity))
		})

		t.Run("ConcurrentMixedUsage", func(t *testing.T) {
			testConcurrentMixedUsage(t, factory(suiteCapacity))
		})

		t.Run("Reset", func(t *testing.T) {
			testReset(t, factory(suiteCapacity))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func valueOf(key int) string {
	return fmt.Sprintf("value-%d", key)
}

// countingLoader returns a loader that counts its calls
func countingLoader(calls *atomic.Int64) cache.Loader[string] {
	return func(key int) (string, error) {
		calls.Add(1)
		return valueOf(key), nil
	}
}

func checkStats(t *testing.T, c cache.Cache[string], requests, misses int64) {
	t.Helper()
	s := c.Stats()
	if s.Requests != requests {
		t.Errorf("Expected %d requests, got %d", requests, s.Requests)
	}
	if s.Misses != misses {
		t.Errorf("Expected %d misses, got %d", misses, s.Misses)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testGetOrLoad(t *testing.T, c cache.Cache[string]) {
	defer c.Close()

	var calls atomic.Int64
	load := countingLoader(&calls)

	v, err := c.GetOrLoad(1, load)
	if err != nil {
		t.Fatalf("GetOrLoad failed: %v", err)
	}
	if v != valueOf(1) {
		t.Errorf("Expected %s, got %s", valueOf(1), v)
	}

	v, err = c.GetOrLoad(1, load)
	if err != nil {
		t.Fatalf("GetOrLoad failed: %v", err)
	}
	if v != valueOf(1) {
		t.Errorf("Expected %s, got %s", valueOf(1), v)
	}

	if calls.Load() != 1 {
		t.Errorf("Expected loader to be called once, got %d calls", calls.Load())
	}
	checkStats(t, c, 2, 1)

	if c.Len() != 1 {
		t.Errorf("Expected 1 resident entry, got %d", c.Len())
	}
}

func testLoaderError(t *testing.T, c cache.Cache[string]) {
	defer c.Close()

	errLoad := errors.New("load failed")
	_, err := c.GetOrLoad(1, func(int) (string, error) {
		return "", errLoad
	})
	if !errors.Is(err, errLoad) {
		t.Errorf("Expected loader error, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Expected failed load not to be cached, got %d entries", c.Len())
	}

	// the key is loaded again on the next request
	v, err := c.GetOrLoad(1, func(key int) (string, error) { return valueOf(key), nil })
	if err != nil || v != valueOf(1) {
		t.Errorf("Expected %s after failed load, got %q (%v)", valueOf(1), v, err)
	}
	checkStats(t, c, 2, 2)
}

func testGet(t *testing.T, c cache.Cache[string]) {
	defer c.Close()

	if _, ok := c.Get(1); ok {
		t.Errorf("Expected miss on empty cache")
	}

	c.Put(1, valueOf(1))

	v, ok := c.Get(1)
	if !ok || v != valueOf(1) {
		t.Errorf("Expected hit with %s, got %q (%v)", valueOf(1), v, ok)
	}
	checkStats(t, c, 2, 1)
}

func testPutFirstWins(t *testing.T, c cache.Cache[string]) {
	defer c.Close()

	actual, loaded := c.Put(1, "first")
	if loaded || actual != "first" {
		t.Errorf("Expected first Put to store its value, got %q (loaded=%v)", actual, loaded)
	}

	actual, loaded = c.Put(1, "second")
	if !loaded || actual != "first" {
		t.Errorf("Expected second Put to return the first value, got %q (loaded=%v)", actual, loaded)
	}

	v, _ := c.Get(1)
	if v != "first" {
		t.Errorf("Expected resident value %q, got %q", "first", v)
	}
}

func testCapacityBound(t *testing.T, c cache.Cache[string]) {
	defer c.Close()

	if c.Capacity() != suiteCapacity {
		t.Fatalf("Expected capacity %d, got %d", suiteCapacity, c.Capacity())
	}

	var calls atomic.Int64
	load := countingLoader(&calls)

	inserts := suiteCapacity + 5
	for i := 0; i < inserts; i++ {
		if _, err := c.GetOrLoad(i, load); err != nil {
			t.Fatalf("GetOrLoad(%d) failed: %v", i, err)
		}
		if c.Len() > suiteCapacity {
			t.Fatalf("Cache holds %d entries, capacity is %d", c.Len(), suiteCapacity)
		}
	}

	if c.Len() != suiteCapacity {
		t.Errorf("Expected %d resident entries, got %d", suiteCapacity, c.Len())
	}

	s := c.Stats()
	if s.Evictions != int64(inserts-suiteCapacity) {
		t.Errorf("Expected %d evictions, got %d", inserts-suiteCapacity, s.Evictions)
	}
	if s.Size != suiteCapacity {
		t.Errorf("Expected stats size %d, got %d", suiteCapacity, s.Size)
	}

	// the most recent key is always resident
	if v, ok := c.Get(inserts - 1); !ok || v != valueOf(inserts-1) {
		t.Errorf("Expected most recent key to be resident")
	}
}

// a working set of exactly capacity keys fits without a single eviction, so only the
// first round misses
func testFullWorkingSet(t *testing.T, c cache.Cache[string]) {
	defer c.Close()

	var calls atomic.Int64
	load := countingLoader(&calls)

	const rounds = 5
	for r := 0; r < rounds; r++ {
		for key := 0; key < largeCapacity; key++ {
			if _, err := c.GetOrLoad(key, load); err != nil {
				t.Fatalf("GetOrLoad(%d) failed: %v", key, err)
			}
		}
	}

	s := c.Stats()
	if s.Evictions != 0 {
		t.Errorf("Expected 0 evictions, got %d", s.Evictions)
	}
	if c.Len() != largeCapacity {
		t.Errorf("Expected %d resident entries, got %d", largeCapacity, c.Len())
	}
	if calls.Load() != largeCapacity {
		t.Errorf("Expected %d loader calls, got %d", largeCapacity, calls.Load())
	}
	if want := 100.0 / rounds; s.PercentageMisses < want-0.001 || s.PercentageMisses > want+0.001 {
		t.Errorf("Expected %.2f%% misses, got %f", want, s.PercentageMisses)
	}
}

func testConcurrentLoadSameKey(t *testing.T, c cache.Cache[string]) {
	defer c.Close()

	const goroutines = 32

	var (
		wg      sync.WaitGroup
		results = make([]string, goroutines)
		start   = make(chan struct{})
	)

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			<-start
			v, err := c.GetOrLoad(7, func(int) (string, error) {
				return fmt.Sprintf("loaded-by-%d", g), nil
			})
			if err != nil {
				t.Errorf("GetOrLoad failed: %v", err)
			}
			results[g] = v
		}(g)
	}

	close(start)
	wg.Wait()

	for g := 1; g < goroutines; g++ {
		if results[g] != results[0] {
			t.Fatalf("Concurrent loads returned different values: %q and %q", results[0], results[g])
		}
	}

	s := c.Stats()
	if s.Requests != goroutines {
		t.Errorf("Expected %d requests, got %d", goroutines, s.Requests)
	}
	if s.Misses < 1 || s.Misses > goroutines {
		t.Errorf("Expected between 1 and %d misses, got %d", goroutines, s.Misses)
	}
}

func testConcurrentMixedUsage(t *testing.T, c cache.Cache[string]) {
	defer c.Close()

	const (
		goroutines = 8
		operations = 500
	)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < operations; i++ {
				key := (i * (g + 1)) % (suiteCapacity * 3)
				v, err := c.GetOrLoad(key, func(key int) (string, error) { return valueOf(key), nil })
				if err != nil {
					t.Errorf("GetOrLoad failed: %v", err)
					return
				}
				if v != valueOf(key) {
					t.Errorf("Expected %s, got %s", valueOf(key), v)
					return
				}
				if c.Len() > suiteCapacity {
					t.Errorf("Cache holds %d entries, capacity is %d", c.Len(), suiteCapacity)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	s := c.Stats()
	if s.Requests != goroutines*operations {
		t.Errorf("Expected %d requests, got %d", goroutines*operations, s.Requests)
	}
	if s.Misses > s.Requests {
		t.Errorf("Misses (%d) exceed requests (%d)", s.Misses, s.Requests)
	}
}

func testReset(t *testing.T, c cache.Cache[string]) {
	defer c.Close()

	for i := 0; i < 5; i++ {
		c.GetOrLoad(i, func(key int) (string, error) { return valueOf(key), nil })
	}

	c.Reset()

	if c.Len() != 0 {
		t.Errorf("Expected empty cache after Reset, got %d entries", c.Len())
	}
	checkStats(t, c, 0, 0)

	if _, ok := c.Get(1); ok {
		t.Errorf("Expected miss after Reset")
	}
}
