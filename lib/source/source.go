package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("source")

// ErrClosed is returned when a decoder is requested from a closed source or pool
var ErrClosed = errors.New("source closed")

// Source is a readable byte source that hands out independent decoders.
//
// Thread-safety: all methods are thread-safe. The returned decoders are not, each
// decoder must be used by one goroutine at a time.
type Source interface {
	// Open returns a new decoder positioned at the start of the source
	Open() (*Decoder, error)

	// Size returns the number of bytes in the source
	Size() int64

	// Name returns a human readable description of the source (file path or "memory")
	Name() string

	// Close releases all outstanding decoders. For temporary file sources the
	// backing file is removed (best-effort, failures are logged).
	// Close is idempotent.
	Close() error
}

// --------------------------------------------------------------------------
// File Source
// --------------------------------------------------------------------------

type fileSource struct {
	path      string
	size      int64
	temporary bool

	mu      sync.Mutex
	handles map[*os.File]struct{}
	closed  bool
}

// NewFileSource creates a source reading from the file at path.
// If temporary is true the file is removed when the source is closed.
func NewFileSource(path string, temporary bool) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	return &fileSource{
		path:      path,
		size:      info.Size(),
		temporary: temporary,
		handles:   make(map[*os.File]struct{}),
	}, nil
}

// NewTempFileSource copies the file at path into a new temporary file in dir
// (os.TempDir() if empty) and returns a source reading the copy.
// Unless keep is true, the copy is removed when the source is closed.
// This leaves the original file free to be replaced while the catalog is in use.
func NewTempFileSource(path, dir string, keep bool) (Source, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	out, err := os.CreateTemp(dir, "ddetect-*.dat")
	if err != nil {
		return nil, err
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(out.Name())
		return nil, err
	}
	if err = out.Close(); err != nil {
		_ = os.Remove(out.Name())
		return nil, err
	}

	Logger.Debugf("copied %s to temporary file %s", path, out.Name())

	return NewFileSource(out.Name(), !keep)
}

func (s *fileSource) Open() (*Decoder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	s.handles[f] = struct{}{}

	return newDecoder(f, s.size, func() error {
		return s.release(f)
	}), nil
}

// release closes a single handle (called by Decoder.Close)
func (s *fileSource) release(f *os.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.handles[f]; !ok {
		// already closed by the source
		return nil
	}
	delete(s.handles, f)
	return f.Close()
}

func (s *fileSource) Size() int64 { return s.size }

func (s *fileSource) Name() string { return s.path }

func (s *fileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for f := range s.handles {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.handles = nil

	if s.temporary {
		// the file may still be held open by another process, this is not fatal
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			Logger.Warningf("could not delete temporary file %s: %v", s.path, err)
		} else {
			Logger.Debugf("deleted temporary file %s", s.path)
		}
	}

	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Memory Source
// --------------------------------------------------------------------------

type memorySource struct {
	data   []byte
	mu     sync.RWMutex
	closed bool
}

// NewMemorySource creates a source over a fixed buffer.
// The buffer must not be modified while the source is in use.
func NewMemorySource(data []byte) Source {
	return &memorySource{data: data}
}

func (s *memorySource) Open() (*Decoder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	return newMemoryDecoder(s.data), nil
}

func (s *memorySource) Size() int64 { return int64(len(s.data)) }

func (s *memorySource) Name() string { return "memory" }

func (s *memorySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
