package cache

import (
	"sync"
)

// tickBits is the number of low priority bits used for the access tick.
// The remaining high bits hold the access frequency.
const tickBits = 40

type lfuEntry[V any] struct {
	value     V
	frequency uint64
}

// lfuStore evicts the least frequently used entry. Among entries with the same
// frequency the one accessed longest ago is evicted first.
type lfuStore[V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[int]*lfuEntry[V]
	heap     *MapHeap
	tick     uint64
}

func newLFU[V any](capacity int) *lfuStore[V] {
	return &lfuStore[V]{
		capacity: capacity,
		items:    make(map[int]*lfuEntry[V], capacity),
		heap:     NewMapHeap(),
	}
}

// touch records an access of key (lock must be held)
func (s *lfuStore[V]) touch(key int, e *lfuEntry[V]) {
	s.tick++
	e.frequency++
	s.heap.AddItem(uint64(key), e.frequency<<tickBits|s.tick&(1<<tickBits-1))
}

func (s *lfuStore[V]) get(key int) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	s.touch(key, e)
	return e.value, true
}

func (s *lfuStore[V]) putIfAbsent(key int, value V) (V, bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.items[key]; ok {
		s.touch(key, e)
		return e.value, true, 0
	}

	// evict before inserting so the new entry is always resident
	evicted := 0
	for len(s.items) >= s.capacity {
		it, ok := s.heap.PopMin()
		if !ok {
			break
		}
		delete(s.items, int(it.Key))
		evicted++
	}

	e := &lfuEntry[V]{value: value}
	s.items[key] = e
	s.touch(key, e)

	return value, false, evicted
}

func (s *lfuStore[V]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *lfuStore[V]) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[int]*lfuEntry[V], s.capacity)
	s.heap = NewMapHeap()
	s.tick = 0
}

func (s *lfuStore[V]) close() error {
	s.reset()
	return nil
}
