package cache

// This file provides the priority map-heap used by the LFU strategy.
//
// A binary heap ordered by priority is combined with a map from key to heap item,
// which gives:
//   - O(log n) insertion, priority updates and removal of the minimum
//   - O(1) lookups by key
//
// The heap is not thread-safe, the LFU store guards it with its own lock.

import (
	"container/heap"
	"strconv"
)

// item is an entry of the map-heap: a cache key and its eviction priority
type item struct {
	Key      uint64 // cache key
	Priority uint64 // lower priorities are evicted first
	index    int    // index in the heap, maintained by the heap package
}

func (i *item) String() string {
	return "{Key: " + strconv.FormatUint(i.Key, 10) + ", Priority: " + strconv.FormatUint(i.Priority, 10) + "}"
}

// MapHeap is a min-heap of keys by priority with key-based access
type MapHeap struct {
	items    []*item
	itemsMap map[uint64]*item
}

// NewMapHeap creates an empty map-heap
func NewMapHeap() *MapHeap {
	return &MapHeap{
		items:    make([]*item, 0),
		itemsMap: make(map[uint64]*item),
	}
}

// Len returns the number of items in the heap (part of heap.Interface)
func (h *MapHeap) Len() int { return len(h.items) }

// Less orders items by priority (part of heap.Interface)
func (h *MapHeap) Less(i, j int) bool {
	return h.items[i].Priority < h.items[j].Priority
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (h *MapHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface, use AddItem instead)
func (h *MapHeap) Push(x interface{}) {
	it := x.(*item)
	it.index = len(h.items)
	h.items = append(h.items, it)
	h.itemsMap[it.Key] = it
}

// Pop removes the last item of the backing slice (part of heap.Interface, use PopMin instead)
func (h *MapHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	h.items = old[:n-1]
	delete(h.itemsMap, it.Key)
	return it
}

// AddItem adds a key or updates the priority of an existing key
func (h *MapHeap) AddItem(key, priority uint64) {
	if it, exists := h.itemsMap[key]; exists {
		it.Priority = priority
		heap.Fix(h, it.index)
		return
	}
	heap.Push(h, &item{Key: key, Priority: priority})
}

// PopMin removes and returns the item with the lowest priority
func (h *MapHeap) PopMin() (*item, bool) {
	if len(h.items) == 0 {
		return nil, false
	}
	return heap.Pop(h).(*item), true
}

// RemoveByKey removes a key and returns its priority
func (h *MapHeap) RemoveByKey(key uint64) (uint64, bool) {
	it, exists := h.itemsMap[key]
	if !exists {
		return 0, false
	}
	heap.Remove(h, it.index)
	return it.Priority, true
}

// Peek returns the item with the lowest priority without removing it
func (h *MapHeap) Peek() (*item, bool) {
	if len(h.items) == 0 {
		return nil, false
	}
	return h.items[0], true
}

// Contains checks if a key exists in the heap
func (h *MapHeap) Contains(key uint64) bool {
	_, exists := h.itemsMap[key]
	return exists
}
