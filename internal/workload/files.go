package workload

import (
	"bufio"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrBackingStore wraps every failure to create, read or map a generated file.
	ErrBackingStore = errors.New("backing store failure")

	ErrCacheClosed = errors.New("file cache is closed")
)

const writeChunk = 32 * 1024

// GeneratedFile is a file of ASCII digits materialized for one size.
type GeneratedFile struct {
	Path string
	Size int
}

// CacheOption configures a FileCache.
type CacheOption func(*FileCache)

// WithCacheLogger sets the logger used for synthesis and cleanup events.
func WithCacheLogger(logger *zap.Logger) CacheOption {
	return func(c *FileCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSynthesisHook registers a callback invoked after each successful synthesis.
func WithSynthesisHook(fn func(size int, took time.Duration)) CacheOption {
	return func(c *FileCache) {
		c.onSynthesize = fn
	}
}

// FileCache maps a requested size to a generated file.
//
// A file is created the first time its size is requested and reused for the
// lifetime of the cache. Concurrent first callers for the same size share a
// single synthesis. A failed synthesis is not cached, so the next caller
// tries again.
type FileCache struct {
	dir    string
	logger *zap.Logger

	mu     sync.RWMutex
	files  map[int]*GeneratedFile
	closed bool

	group        singleflight.Group
	synthesized  atomic.Int64
	onSynthesize func(size int, took time.Duration)
}

// NewFileCache creates a private directory under parent (os.TempDir() when
// empty) that holds every file the cache generates.
func NewFileCache(parent string, opts ...CacheOption) (*FileCache, error) {
	dir, err := os.MkdirTemp(parent, "poolserve-io-")
	if err != nil {
		return nil, fmt.Errorf("%w: create cache dir: %w", ErrBackingStore, err)
	}

	c := &FileCache{
		dir:    dir,
		logger: zap.NewNop(),
		files:  make(map[int]*GeneratedFile),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dir returns the directory holding the generated files.
func (c *FileCache) Dir() string {
	return c.dir
}

// Synthesized returns how many files have been generated so far.
func (c *FileCache) Synthesized() int64 {
	return c.synthesized.Load()
}

// Get returns the generated file for size, creating it if absent.
func (c *FileCache) Get(size int) (*GeneratedFile, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrBackingStore, size)
	}

	if f, ok, err := c.lookup(size); ok || err != nil {
		return f, err
	}

	v, err, _ := c.group.Do(strconv.Itoa(size), func() (any, error) {
		// a previous flight may have stored the file after our lookup
		if f, ok, err := c.lookup(size); ok || err != nil {
			return f, err
		}

		f, err := c.synthesize(size)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			_ = os.Remove(f.Path)
			return nil, ErrCacheClosed
		}
		c.files[size] = f
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*GeneratedFile), nil
}

// Open returns a new read handle positioned at the start of the file for size.
// The caller owns the handle.
func (c *FileCache) Open(size int) (*os.File, error) {
	gf, err := c.Get(size)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(gf.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrBackingStore, gf.Path, err)
	}
	return f, nil
}

// Map returns a read-only view of the file for size. Release the mapping
// with Close once the bytes are no longer referenced.
func (c *FileCache) Map(size int) (*Mapping, error) {
	gf, err := c.Get(size)
	if err != nil {
		return nil, err
	}

	m, err := mapFile(gf.Path, gf.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: map %s: %w", ErrBackingStore, gf.Path, err)
	}
	return m, nil
}

// Close deletes every generated file. Handles and mappings already handed
// out stay readable until released.
func (c *FileCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.files = make(map[int]*GeneratedFile)

	if err := os.RemoveAll(c.dir); err != nil {
		c.logger.Warn("failed to remove generated files", zap.String("dir", c.dir), zap.Error(err))
		return err
	}
	return nil
}

func (c *FileCache) lookup(size int) (*GeneratedFile, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, false, ErrCacheClosed
	}
	f, ok := c.files[size]
	return f, ok, nil
}

func (c *FileCache) synthesize(size int) (gf *GeneratedFile, err error) {
	start := time.Now()

	f, err := os.CreateTemp(c.dir, "io-busy-"+strconv.Itoa(size)+"-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("%w: create file for size %d: %w", ErrBackingStore, size, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close %s: %w", ErrBackingStore, f.Name(), cerr)
		}
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()

	if err := writeDigits(f, size); err != nil {
		return nil, fmt.Errorf("%w: write %s: %w", ErrBackingStore, f.Name(), err)
	}

	took := time.Since(start)
	c.synthesized.Add(1)
	if c.onSynthesize != nil {
		c.onSynthesize(size, took)
	}
	c.logger.Debug("generated file",
		zap.Int("size", size),
		zap.String("path", f.Name()),
		zap.Duration("took", took),
	)

	return &GeneratedFile{Path: f.Name(), Size: size}, nil
}

// writeDigits writes exactly n random ASCII digits to f.
func writeDigits(f *os.File, n int) error {
	w := bufio.NewWriterSize(f, writeChunk)
	chunk := make([]byte, min(n, writeChunk))

	for remaining := n; remaining > 0; {
		part := chunk[:min(remaining, len(chunk))]
		for i := range part {
			part[i] = '0' + byte(rand.IntN(10)) // #nosec G404 -- content is filler
		}
		if _, err := w.Write(part); err != nil {
			return err
		}
		remaining -= len(part)
	}

	return w.Flush()
}
