// Package source provides the byte sources a catalog is read from and the pool of
// decoders that reads them concurrently.
//
// The package focuses on:
//   - Two interchangeable sources: a file on disk (optionally a temporary copy that is
//     removed when the source is closed) and a fixed in-memory buffer
//   - Independent decoders: every Decoder has its own cursor (and, for files, its own
//     file handle), so goroutines can read different regions without contention
//   - Lifecycle: a Pool hands decoders out and takes them back, and releases all of
//     them together with the source exactly once on Close
//
// Key Components:
//
//   - Source: the interface shared by file and memory sources (Open, Size, Name, Close).
//
//   - Decoder: a little-endian reader with random access (Seek, Record) and typed
//     reads (Byte, Uint16, Int32, Int64, ...). A decoder keeps a small read window so
//     sequential reads from a file do not issue one syscall per field.
//     A decoder must only be used by one goroutine at a time.
//
//   - Pool: a thread-safe free list of decoders on top of one Source.
//
// Usage:
//
//	pool := source.NewPool(source.NewMemorySource(data))
//	defer pool.Close()
//
//	err := pool.Do(func(d *source.Decoder) error {
//		if err := d.Seek(offset); err != nil {
//			return err
//		}
//		value, err = d.Int32()
//		return err
//	})
package source
