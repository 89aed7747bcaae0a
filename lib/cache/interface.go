package cache

import (
	"fmt"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/rcrowley/go-metrics"
)

var Logger = logger.GetLogger("cache")

// --------------------------------------------------------------------------
// Cache Interface
// --------------------------------------------------------------------------

// Loader resolves the value of a key on a cache miss
type Loader[V any] func(key int) (V, error)

// Cache is a bounded associative cache from integer indexes to resolved entities.
//
// Thread-safety: all implementations are safe for concurrent use.
type Cache[V any] interface {
	// GetOrLoad returns the cached value for key. On a miss the value is resolved with
	// load and inserted, evicting an entry if the cache is full. If two goroutines load
	// the same key concurrently only the first insert is stored and both receive it.
	// Errors of load are returned and nothing is cached.
	GetOrLoad(key int, load Loader[V]) (V, error)

	// Get returns the cached value for key without loading it. It counts as a request
	// (and as a miss if the key is absent).
	Get(key int) (V, bool)

	// Put inserts value if key is absent. If the key is present the existing value is
	// kept and returned together with true.
	Put(key int, value V) (V, bool)

	// Len returns the number of resident entries
	Len() int

	// Capacity returns the maximum number of resident entries (0 = caching disabled)
	Capacity() int

	// Stats returns a snapshot of the counters
	Stats() Stats

	// Reset removes all entries and clears the counters
	Reset()

	// Close releases all resources held by the cache. The cache must not be used afterwards.
	Close() error
}

// Codec encodes values for strategies that keep entries outside the Go heap
type Codec[V any] interface {
	Encode(value V) ([]byte, error)
	Decode(data []byte) (V, error)
}

// Options are the optional parameters of New
type Options[V any] struct {
	// Name is used as the metric name prefix ("cache.<name>.requests", ...)
	Name string

	// Registry receives the counters of the cache (nil = a private registry)
	Registry metrics.Registry

	// Codec is required for StrategyBadger
	Codec Codec[V]
}

// New creates a cache for the given setting.
// A capacity of 0 always yields a pass-through cache, regardless of the strategy.
func New[V any](setting Setting, opts Options[V]) (Cache[V], error) {
	if setting.Capacity < 0 {
		return nil, fmt.Errorf("invalid cache capacity %d", setting.Capacity)
	}

	var (
		s   store[V]
		err error
	)

	strategy := setting.Strategy
	if strategy == "" {
		strategy = StrategyLRU
	}
	if setting.Capacity == 0 {
		strategy = StrategyNone
	}

	switch strategy {
	case StrategyLRU:
		s = newLRU[V](setting.Capacity)
	case StrategyLFU:
		s = newLFU[V](setting.Capacity)
	case StrategyNone:
		s = noopStore[V]{}
	case StrategyBadger:
		if opts.Codec == nil {
			return nil, fmt.Errorf("strategy %s requires a codec", strategy)
		}
		s, err = newBadgerStore[V](setting.Capacity, setting.Dir, opts.Codec)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown cache strategy %q", setting.Strategy)
	}

	return newCache[V](s, setting.Capacity, strategy, newCounters(opts.Name, opts.Registry)), nil
}

// --------------------------------------------------------------------------
// Store (internal storage of one strategy)
// --------------------------------------------------------------------------

// store is the storage and eviction part of a cache, the counters are kept by cache
type store[V any] interface {
	// get returns the value of key and records the access for the eviction policy
	get(key int) (V, bool)

	// putIfAbsent stores value if key is absent and returns the resident value,
	// whether it was already present and the number of evicted entries
	putIfAbsent(key int, value V) (actual V, loaded bool, evicted int)

	len() int
	reset()
	close() error
}

// --------------------------------------------------------------------------
// Cache (counters + store)
// --------------------------------------------------------------------------

type cache[V any] struct {
	store    store[V]
	capacity int
	strategy Strategy
	counters *counters
}

func newCache[V any](s store[V], capacity int, strategy Strategy, c *counters) *cache[V] {
	return &cache[V]{
		store:    s,
		capacity: capacity,
		strategy: strategy,
		counters: c,
	}
}

func (c *cache[V]) GetOrLoad(key int, load Loader[V]) (V, error) {
	c.counters.requests.Inc(1)

	if v, ok := c.store.get(key); ok {
		return v, nil
	}

	c.counters.misses.Inc(1)

	v, err := load(key)
	if err != nil {
		var zero V
		return zero, err
	}

	actual, _, evicted := c.store.putIfAbsent(key, v)
	if evicted > 0 {
		c.counters.evictions.Inc(int64(evicted))
	}
	return actual, nil
}

func (c *cache[V]) Get(key int) (V, bool) {
	c.counters.requests.Inc(1)

	v, ok := c.store.get(key)
	if !ok {
		c.counters.misses.Inc(1)
	}
	return v, ok
}

func (c *cache[V]) Put(key int, value V) (V, bool) {
	actual, loaded, evicted := c.store.putIfAbsent(key, value)
	if evicted > 0 {
		c.counters.evictions.Inc(int64(evicted))
	}
	return actual, loaded
}

func (c *cache[V]) Len() int { return c.store.len() }

func (c *cache[V]) Capacity() int { return c.capacity }

func (c *cache[V]) Stats() Stats {
	s := c.counters.snapshot()
	s.Strategy = c.strategy
	s.Size = c.store.len()
	s.Capacity = c.capacity
	return s
}

func (c *cache[V]) Reset() {
	c.store.reset()
	c.counters.clear()
}

func (c *cache[V]) Close() error {
	return c.store.close()
}
