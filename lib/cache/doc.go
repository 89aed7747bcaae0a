// Package cache implements the entity cache layer that sits in front of lazily
// resolved catalog entities (values, profiles, signatures, ...).
//
// The package focuses on:
//   - A single generic interface (Cache) with pluggable eviction strategies
//   - Bounded memory: a cache never holds more entries than its capacity
//   - Observable counters: requests, misses and evictions are first-class state,
//     kept in a go-metrics registry, and can be read at any time without pausing access
//   - Safe concurrent use: concurrent loads of the same key never store two values,
//     the first insert wins and every caller receives the winning value
//
// Key Components:
//
//   - Cache: the interface used by the catalog (GetOrLoad, Get, Put, Reset, Close, Stats).
//
//   - Strategies:
//     1. lru: exact least-recently-used cache with a single ordering list (default)
//     2. lfu: least-frequently-used cache backed by a priority map-heap; ties are
//     evicted oldest access first
//     3. none: pass-through, every request is a miss and nothing is stored
//     (used automatically for capacity 0)
//     4. badger: values are encoded with a Codec and kept in a badger key-value
//     store (in memory or on disk), with an LRU key index enforcing the capacity
//
//   - Config: per-entity settings (capacity and strategy) with templates for
//     low-memory and high-throughput deployments, parsable from a flag string such as
//     "profiles=lru:5000,values=lfu:2000,signatures=none".
//
// Entries are never updated in place: eviction only removes, and a miss always
// resolves the entity again through the loader, so a cache never returns a stale value.
package cache
