package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// badgerStore keeps encoded values in a badger key-value store. An LRU index of
// the resident keys enforces the capacity: keys evicted from the index are deleted
// from badger in the same critical section.
type badgerStore[V any] struct {
	mu    sync.Mutex
	db    *badger.DB
	index *lruStore[struct{}]
	codec Codec[V]
}

// newBadgerStore opens a badger store in dir, or in memory if dir is empty
func newBadgerStore[V any](capacity int, dir string, codec Codec[V]) (*badgerStore[V], error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache store: %w", err)
	}

	return &badgerStore[V]{
		db:    db,
		index: newLRU[struct{}](capacity),
		codec: codec,
	}, nil
}

func badgerKey(key int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(key))
	return b
}

// read decodes the stored value of key (lock must be held)
func (s *badgerStore[V]) read(key int) (V, bool) {
	var (
		value V
		found bool
	)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			v, err := s.codec.Decode(val)
			if err != nil {
				return err
			}
			value, found = v, true
			return nil
		})
	})
	if err != nil {
		Logger.Warningf("badger cache read of key %d failed: %v", key, err)
		var zero V
		return zero, false
	}
	return value, found
}

func (s *badgerStore[V]) get(key int) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index.get(key); !ok {
		var zero V
		return zero, false
	}
	return s.read(key)
}

func (s *badgerStore[V]) putIfAbsent(key int, value V) (V, bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index.get(key); ok {
		if actual, found := s.read(key); found {
			return actual, true, 0
		}
		// index and store disagree, the entry is rewritten below
		s.index.remove(key)
	}

	data, err := s.codec.Encode(value)
	if err != nil {
		Logger.Warningf("badger cache encode of key %d failed: %v", key, err)
		return value, false, 0
	}

	var evictedKeys []int
	_, _, evicted := s.index.putEvicting(key, struct{}{}, func(k int, _ struct{}) {
		evictedKeys = append(evictedKeys, k)
	})

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, k := range evictedKeys {
			if err := txn.Delete(badgerKey(k)); err != nil {
				return err
			}
		}
		return txn.Set(badgerKey(key), data)
	})
	if err != nil {
		Logger.Warningf("badger cache write of key %d failed: %v", key, err)
		s.index.remove(key)
	}

	return value, false, evicted
}

func (s *badgerStore[V]) len() int {
	return s.index.len()
}

func (s *badgerStore[V]) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index.reset()
	if err := s.db.DropAll(); err != nil {
		Logger.Warningf("badger cache reset failed: %v", err)
	}
}

func (s *badgerStore[V]) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index.reset()
	return s.db.Close()
}
