package reactor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"
)

var (
	// ErrUnsupported is returned by New on platforms without a readiness backend.
	ErrUnsupported = errors.New("reactor: unsupported platform")

	// ErrClosed is returned by Register after Close and passed to OnClose for
	// registrations aborted by Close.
	ErrClosed = errors.New("reactor: closed")

	// ErrWouldBlock is returned by Write when the socket send buffer is full.
	ErrWouldBlock = errors.New("reactor: write would block")

	// ErrHangup is passed to OnClose when the peer went away.
	ErrHangup = errors.New("reactor: peer hung up")
)

// Handler receives readiness callbacks for one registered socket.
type Handler interface {
	// OnWritable is called when fd can accept more bytes. It must write until
	// the data is exhausted (done) or Write reports ErrWouldBlock; with
	// edge-triggered readiness a handler that stops early is never woken again.
	OnWritable(fd int) (done bool, err error)

	// OnClose is called exactly once, after the reactor has stopped watching
	// the socket. err is nil when OnWritable reported done.
	OnClose(err error)
}

// registration ties a socket to its handler.
type registration struct {
	r    *Reactor
	fd   int
	conn syscall.Conn
	h    Handler
	once sync.Once
}

// dispatch runs one OnWritable callback, converting a panic into an error.
func (reg *registration) dispatch() (done bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.r.logger.Error("write handler panicked", zap.Int("fd", reg.fd), zap.Any("panic", rec))
			done, err = false, fmt.Errorf("reactor: handler panic: %v", rec)
		}
	}()
	return reg.h.OnWritable(reg.fd)
}

// finish hands the socket back to its owner. Backends call it after they
// have stopped watching fd.
func (reg *registration) finish(err error) {
	reg.once.Do(func() {
		defer func() {
			reg.r.live.Add(-1)
			reg.r.inflight.Done()
		}()
		defer func() {
			if rec := recover(); rec != nil {
				reg.r.logger.Error("close handler panicked", zap.Int("fd", reg.fd), zap.Any("panic", rec))
			}
		}()
		reg.h.OnClose(err)
	})
}

// backend is the platform readiness mechanism.
type backend interface {
	add(reg *registration) error
	close() error
}

// Reactor multiplexes write readiness for many sockets over a few loops.
type Reactor struct {
	logger *zap.Logger

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
	live     atomic.Int64

	backend backend
}

// New starts a reactor with the given number of event loops. loops below
// one is treated as one.
func New(loops int, logger *zap.Logger) (*Reactor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reactor{logger: logger}

	b, err := newBackend(r, max(loops, 1))
	if err != nil {
		return nil, err
	}
	r.backend = b
	return r, nil
}

// Register starts watching conn for writability on behalf of h. After a
// nil return h.OnClose is guaranteed to be called. On error the caller
// still owns conn.
func (r *Reactor) Register(conn syscall.Conn, h Handler) error {
	fd, err := socketFD(conn)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	reg := &registration{r: r, fd: fd, conn: conn, h: h}
	r.inflight.Add(1)
	r.live.Add(1)
	if err := r.backend.add(reg); err != nil {
		r.live.Add(-1)
		r.inflight.Done()
		return err
	}
	return nil
}

// Len reports the number of sockets currently being watched.
func (r *Reactor) Len() int {
	return int(r.live.Load())
}

// Drain waits until every registered socket has finished or ctx ends.
func (r *Reactor) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("reactor: drain: %w (%d in flight)", ctx.Err(), r.Len())
	}
}

// Close stops every loop. Sockets still registered are aborted with ErrClosed.
func (r *Reactor) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	return r.backend.close()
}

func socketFD(conn syscall.Conn) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return -1, fmt.Errorf("reactor: raw conn: %w", err)
	}

	fd := -1
	if err := raw.Control(func(s uintptr) { fd = int(s) }); err != nil {
		return -1, fmt.Errorf("reactor: raw conn: %w", err)
	}
	return fd, nil
}
