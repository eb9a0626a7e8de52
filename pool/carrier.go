package pool

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// carrierPool runs each task on its own goroutine. The Go scheduler
// multiplexes them over GOMAXPROCS carrier threads and parks a goroutine
// that blocks in a syscall so the others keep running.
type carrierPool struct {
	*executor

	mu     sync.RWMutex
	closed bool
	group  errgroup.Group
}

func newCarrierPool(conf *config) *carrierPool {
	return &carrierPool{executor: newExecutor(conf)}
}

func (p *carrierPool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	p.submitted.Add(1)
	p.liveUnits.Add(1)

	enqueued := time.Now()
	p.group.Go(func() error {
		defer p.liveUnits.Add(-1)
		p.run(task, enqueued)
		return nil
	})
	return nil
}

func (p *carrierPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		// Submit holds the read lock around group.Go, so no new goroutine
		// can join the group once closed is set.
		_ = p.group.Wait()
		close(done)
	}()
	return waitUntil(ctx, done)
}

func (p *carrierPool) Stats() Stats {
	s := p.baseStats(KindCarrier)
	s.Units = int(p.liveUnits.Load())
	return s
}

func (p *carrierPool) Kind() Kind { return KindCarrier }
