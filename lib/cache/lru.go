package cache

import (
	"container/list"
	"sync"
)

// --------------------------------------------------------------------------
// LRU store
// --------------------------------------------------------------------------

// maxPrealloc caps the initial map size of large caches
const maxPrealloc = 1 << 14

type lruEntry[V any] struct {
	key   int
	value V
}

// lruStore is one exact least-recently-used list behind a single lock. An entry is
// only evicted when the store holds more than capacity entries.
//
// Thread-safety: all methods are safe for concurrent use.
type lruStore[V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[int]*list.Element
	order    *list.List // front = most recently used
}

func newLRU[V any](capacity int) *lruStore[V] {
	return &lruStore[V]{
		capacity: capacity,
		items:    make(map[int]*list.Element, min(capacity, maxPrealloc)),
		order:    list.New(),
	}
}

func (s *lruStore[V]) get(key int) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[key]; ok {
		s.order.MoveToFront(elem)
		return elem.Value.(*lruEntry[V]).value, true
	}

	var zero V
	return zero, false
}

func (s *lruStore[V]) putIfAbsent(key int, value V) (V, bool, int) {
	return s.putEvicting(key, value, nil)
}

// putEvicting inserts value and evicts the least recently used entries above capacity.
// onEvict (may be nil) is called for every evicted entry while the lock is held.
func (s *lruStore[V]) putEvicting(key int, value V, onEvict func(key int, value V)) (V, bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[key]; ok {
		// first insert wins, the caller's value is discarded
		s.order.MoveToFront(elem)
		return elem.Value.(*lruEntry[V]).value, true, 0
	}

	if s.capacity <= 0 {
		return value, false, 0
	}

	s.items[key] = s.order.PushFront(&lruEntry[V]{key: key, value: value})

	evicted := 0
	for s.order.Len() > s.capacity {
		oldest := s.order.Back()
		entry := oldest.Value.(*lruEntry[V])
		s.order.Remove(oldest)
		delete(s.items, entry.key)
		if onEvict != nil {
			onEvict(entry.key, entry.value)
		}
		evicted++
	}

	return value, false, evicted
}

// remove deletes key if present
func (s *lruStore[V]) remove(key int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[key]; ok {
		s.order.Remove(elem)
		delete(s.items, key)
	}
}

func (s *lruStore[V]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *lruStore[V]) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[int]*list.Element, min(s.capacity, maxPrealloc))
	s.order.Init()
}

func (s *lruStore[V]) close() error {
	s.reset()
	return nil
}

// --------------------------------------------------------------------------
// No-op store
// --------------------------------------------------------------------------

// noopStore never stores anything, every request resolves through the loader
type noopStore[V any] struct{}

func (noopStore[V]) get(int) (V, bool) {
	var zero V
	return zero, false
}

func (noopStore[V]) putIfAbsent(_ int, value V) (V, bool, int) { return value, false, 0 }

func (noopStore[V]) len() int { return 0 }

func (noopStore[V]) reset() {}

func (noopStore[V]) close() error { return nil }
