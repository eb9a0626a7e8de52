//go:build linux

package reactor

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const maxEvents = 128

// epollLoop owns one epoll instance and every socket assigned to it.
// Callbacks, removal and abort all run on the loop goroutine.
type epollLoop struct {
	id     int
	epfd   int
	wakefd int
	logger *zap.Logger

	mu      sync.Mutex
	regs    map[int]*registration
	closing bool

	done chan struct{}
}

type epollBackend struct {
	loops []*epollLoop
}

func newBackend(r *Reactor, loops int) (backend, error) {
	b := &epollBackend{}
	for i := range loops {
		l, err := newEpollLoop(i, r.logger)
		if err != nil {
			_ = b.close()
			return nil, err
		}
		b.loops = append(b.loops, l)
		go l.run()
	}
	return b, nil
}

func newEpollLoop(id int, logger *zap.Logger) (*epollLoop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll create: %w", err)
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("reactor: eventfd: %w", err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("reactor: epoll ctl add eventfd: %w", err)
	}

	return &epollLoop{
		id:     id,
		epfd:   epfd,
		wakefd: wakefd,
		logger: logger.With(zap.Int("loop", id)),
		regs:   make(map[int]*registration),
		done:   make(chan struct{}),
	}, nil
}

func (b *epollBackend) add(reg *registration) error {
	return b.loops[reg.fd%len(b.loops)].add(reg)
}

func (b *epollBackend) close() error {
	var errs []error
	for _, l := range b.loops {
		l.shutdown()
	}
	for _, l := range b.loops {
		<-l.done
		errs = append(errs, unix.Close(l.wakefd), unix.Close(l.epfd))
	}
	return errors.Join(errs...)
}

func (l *epollLoop) add(reg *registration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closing {
		return ErrClosed
	}

	// Store before arming: an edge may fire before EpollCtl returns.
	l.regs[reg.fd] = reg
	ev := unix.EpollEvent{Events: unix.EPOLLOUT | unix.EPOLLET, Fd: int32(reg.fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, reg.fd, &ev); err != nil {
		delete(l.regs, reg.fd)
		return fmt.Errorf("reactor: epoll ctl add fd %d: %w", reg.fd, err)
	}
	return nil
}

func (l *epollLoop) shutdown() {
	l.mu.Lock()
	l.closing = true
	l.mu.Unlock()

	var one [8]byte
	one[0] = 1
	_, _ = unix.Write(l.wakefd, one[:])
}

func (l *epollLoop) run() {
	defer close(l.done)

	events := make([]unix.EpollEvent, maxEvents)
	for {
		n, err := unix.EpollWait(l.epfd, events, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			l.logger.Error("epoll wait failed", zap.Error(err))
			l.abortAll(fmt.Errorf("reactor: epoll wait: %w", err))
			return
		}

		for i := range n {
			ev := events[i]
			fd := int(ev.Fd)

			if fd == l.wakefd {
				var buf [8]byte
				_, _ = unix.Read(l.wakefd, buf[:])
				if l.isClosing() {
					l.abortAll(ErrClosed)
					return
				}
				continue
			}

			l.mu.Lock()
			reg, ok := l.regs[fd]
			l.mu.Unlock()
			if !ok {
				continue
			}

			if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				l.remove(reg, socketError(fd))
				continue
			}
			if ev.Events&unix.EPOLLOUT == 0 {
				continue
			}

			done, err := reg.dispatch()
			switch {
			case err != nil:
				l.remove(reg, err)
			case done:
				l.remove(reg, nil)
			}
		}
	}
}

func (l *epollLoop) isClosing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closing
}

// remove stops watching reg and hands it back to its owner.
func (l *epollLoop) remove(reg *registration, err error) {
	l.mu.Lock()
	if cur, ok := l.regs[reg.fd]; ok && cur == reg {
		delete(l.regs, reg.fd)
		_ = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, reg.fd, nil)
	}
	l.mu.Unlock()

	if err != nil {
		l.logger.Debug("registration aborted", zap.Int("fd", reg.fd), zap.Error(err))
	}
	reg.finish(err)
}

func (l *epollLoop) abortAll(err error) {
	l.mu.Lock()
	regs := make([]*registration, 0, len(l.regs))
	for _, reg := range l.regs {
		regs = append(regs, reg)
	}
	l.mu.Unlock()

	for _, reg := range regs {
		l.remove(reg, err)
	}
}

// socketError reports the pending socket error, or ErrHangup if none is set.
func socketError(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err == nil && errno != 0 {
		return fmt.Errorf("%w: %w", ErrHangup, unix.Errno(errno))
	}
	return ErrHangup
}
