package source

import (
	"encoding/binary"
	"fmt"
	"io"
)

// defaultWindow is the number of bytes read ahead from a file per ReadAt
const defaultWindow = 4096

// Decoder reads little-endian values from a Source.
// It keeps its own position, so decoders of the same source never interfere.
//
// Thread-safety: a Decoder is NOT thread-safe. Use one decoder per goroutine
// (see Pool).
type Decoder struct {
	r    io.ReaderAt
	size int64
	pos  int64

	// window caches the bytes [windowStart, windowStart+len(window)) of the source.
	// For memory sources the window is the whole buffer.
	window      []byte
	windowStart int64
	buf         []byte
	fixed       bool

	closeFn func() error
}

func newDecoder(r io.ReaderAt, size int64, closeFn func() error) *Decoder {
	return &Decoder{
		r:       r,
		size:    size,
		buf:     make([]byte, defaultWindow),
		closeFn: closeFn,
	}
}

func newMemoryDecoder(data []byte) *Decoder {
	return &Decoder{
		size:   int64(len(data)),
		window: data,
		fixed:  true,
	}
}

// --------------------------------------------------------------------------
// Positioning
// --------------------------------------------------------------------------

// Seek moves the decoder to the absolute offset off
func (d *Decoder) Seek(off int64) error {
	if off < 0 || off > d.size {
		return fmt.Errorf("seek to %d outside of source (size %d): %w", off, d.size, io.ErrUnexpectedEOF)
	}
	d.pos = off
	return nil
}

// Pos returns the current absolute offset
func (d *Decoder) Pos() int64 { return d.pos }

// Size returns the size of the underlying source
func (d *Decoder) Size() int64 { return d.size }

// Remaining returns the number of bytes between the current position and the end
func (d *Decoder) Remaining() int64 { return d.size - d.pos }

// --------------------------------------------------------------------------
// Raw reads
// --------------------------------------------------------------------------

// next returns a view of the next n bytes and advances the position.
// The view is only valid until the next read.
func (d *Decoder) next(n int) ([]byte, error) {
	if n < 0 || d.pos+int64(n) > d.size {
		return nil, fmt.Errorf("read of %d bytes at %d exceeds source size %d: %w", n, d.pos, d.size, io.ErrUnexpectedEOF)
	}

	// fast path: the requested bytes are inside the window
	start := d.pos - d.windowStart
	if start >= 0 && start+int64(n) <= int64(len(d.window)) {
		d.pos += int64(n)
		return d.window[start : start+int64(n)], nil
	}

	if d.fixed {
		// cannot happen for a memory decoder since the window covers the whole buffer
		return nil, fmt.Errorf("read of %d bytes at %d outside of buffer: %w", n, d.pos, io.ErrUnexpectedEOF)
	}

	// refill the window starting at the current position
	want := n
	if want < defaultWindow {
		want = defaultWindow
	}
	if rest := d.size - d.pos; int64(want) > rest {
		want = int(rest)
	}
	if cap(d.buf) < want {
		d.buf = make([]byte, want)
	}
	d.buf = d.buf[:want]

	read, err := d.r.ReadAt(d.buf, d.pos)
	if read < n {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read at %d: %w", d.pos, err)
	}

	d.window = d.buf[:read]
	d.windowStart = d.pos
	d.pos += int64(n)
	return d.window[:n], nil
}

// Record returns a view of n bytes starting at offset off and positions the decoder after them.
// The view is only valid until the next read on this decoder.
func (d *Decoder) Record(off int64, n int) ([]byte, error) {
	if err := d.Seek(off); err != nil {
		return nil, err
	}
	return d.next(n)
}

// Bytes returns a copy of the next n bytes
func (d *Decoder) Bytes(n int) ([]byte, error) {
	b, err := d.next(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// Skip advances the position by n bytes
func (d *Decoder) Skip(n int64) error {
	return d.Seek(d.pos + n)
}

// --------------------------------------------------------------------------
// Typed reads
// --------------------------------------------------------------------------

func (d *Decoder) Byte() (byte, error) {
	b, err := d.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) Bool() (bool, error) {
	b, err := d.Byte()
	return b != 0, err
}

func (d *Decoder) Uint16() (uint16, error) {
	b, err := d.next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *Decoder) Uint32() (uint32, error) {
	b, err := d.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}

func (d *Decoder) Int64() (int64, error) {
	b, err := d.next(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// Int32s reads n consecutive int32 values
func (d *Decoder) Int32s(n int) ([]int32, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative count %d: %w", n, io.ErrUnexpectedEOF)
	}
	b, err := d.next(n * 4)
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}

// String16 reads a string prefixed with its uint16 byte length
func (d *Decoder) String16() (string, error) {
	n, err := d.Uint16()
	if err != nil {
		return "", err
	}
	b, err := d.next(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Close releases the resources held by the decoder (the file handle for file sources)
func (d *Decoder) Close() error {
	if d.closeFn == nil {
		return nil
	}
	fn := d.closeFn
	d.closeFn = nil
	return fn()
}
