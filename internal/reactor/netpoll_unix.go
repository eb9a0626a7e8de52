//go:build unix && !linux

package reactor

import (
	"sync"
	"time"
)

type deadliner interface {
	SetWriteDeadline(t time.Time) error
}

// netpollBackend parks each socket on the Go runtime poller through
// syscall.RawConn.Write. The callback returning false asks the runtime to
// wait for the next writability event.
type netpollBackend struct {
	r *Reactor

	mu      sync.Mutex
	regs    map[*registration]struct{}
	closing bool
	wg      sync.WaitGroup
}

func newBackend(r *Reactor, _ int) (backend, error) {
	return &netpollBackend{r: r, regs: make(map[*registration]struct{})}, nil
}

func (b *netpollBackend) add(reg *registration) error {
	raw, err := reg.conn.SyscallConn()
	if err != nil {
		return err
	}

	b.mu.Lock()
	if b.closing {
		b.mu.Unlock()
		return ErrClosed
	}
	b.regs[reg] = struct{}{}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()

		var cbErr error
		werr := raw.Write(func(uintptr) bool {
			done, err := reg.dispatch()
			if err != nil {
				cbErr = err
				return true
			}
			return done
		})

		b.mu.Lock()
		delete(b.regs, reg)
		closing := b.closing
		b.mu.Unlock()

		switch {
		case cbErr != nil:
			reg.finish(cbErr)
		case werr != nil && closing:
			reg.finish(ErrClosed)
		default:
			reg.finish(werr)
		}
	}()
	return nil
}

func (b *netpollBackend) close() error {
	b.mu.Lock()
	b.closing = true
	for reg := range b.regs {
		if d, ok := reg.conn.(deadliner); ok {
			_ = d.SetWriteDeadline(time.Unix(1, 0))
		}
	}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
