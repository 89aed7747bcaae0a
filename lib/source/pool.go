package source

import (
	"errors"
	"sync"
)

// PoolStats describes the decoders of a pool
type PoolStats struct {
	Created int `json:"created"` // decoders opened over the lifetime of the pool
	Idle    int `json:"idle"`    // decoders waiting in the free list
	InUse   int `json:"in_use"`  // decoders currently handed out
}

// Pool hands out decoders of one Source and takes them back for reuse.
//
// Thread-safety: all methods are thread-safe.
type Pool struct {
	src Source

	mu      sync.Mutex
	idle    []*Decoder
	created int
	inUse   int
	closed  bool
}

// NewPool creates a decoder pool on top of src. The pool owns src from now on.
func NewPool(src Source) *Pool {
	return &Pool{src: src}
}

// Source returns the underlying source
func (p *Pool) Source() Source { return p.src }

// Get returns an idle decoder or opens a new one
func (p *Pool) Get() (*Decoder, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}

	if n := len(p.idle); n > 0 {
		d := p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
		p.inUse++
		p.mu.Unlock()
		return d, nil
	}
	p.mu.Unlock()

	// open outside the lock, opening a file can be slow
	d, err := p.src.Open()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = d.Close()
		return nil, ErrClosed
	}
	p.created++
	p.inUse++
	return d, nil
}

// Put returns a decoder to the pool. Decoders returned after Close are closed.
func (p *Pool) Put(d *Decoder) {
	if d == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.inUse--
	if p.closed {
		_ = d.Close()
		return
	}
	p.idle = append(p.idle, d)
}

// Do runs fn with a pooled decoder and returns the decoder afterwards
func (p *Pool) Do(fn func(d *Decoder) error) error {
	d, err := p.Get()
	if err != nil {
		return err
	}
	defer p.Put(d)
	return fn(d)
}

// Stats returns a snapshot of the pool counters
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Created: p.created,
		Idle:    len(p.idle),
		InUse:   p.inUse,
	}
}

// Close closes all idle decoders and the source. Decoders still in use are released
// by the source and closed when they are put back.
// Close is idempotent, only the first call has an effect.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	var errs []error
	for _, d := range idle {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.src.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
