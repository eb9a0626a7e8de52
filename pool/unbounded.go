package pool

import (
	"context"
	"sync"
	"time"
)

// unboundedPool starts a fresh unit per task. In kernel mode each unit owns
// an OS thread that is destroyed when the task returns.
type unboundedPool struct {
	*executor

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func newUnboundedPool(conf *config) *unboundedPool {
	return &unboundedPool{executor: newExecutor(conf)}
}

func (p *unboundedPool) Submit(task Task) error {
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
	p.wg.Add(1)

	enqueued := time.Now()
	p.spawn(true, func(int) {
		defer p.wg.Done()
		defer p.liveUnits.Add(-1)
		p.run(task, enqueued)
	})
	return nil
}

func (p *unboundedPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.closed = true
	p.mu.Unlock()

	return waitUntil(ctx, waitChan(&p.wg))
}

func (p *unboundedPool) Stats() Stats {
	s := p.baseStats(KindUnbounded)
	s.Units = int(p.liveUnits.Load())
	return s
}

func (p *unboundedPool) Kind() Kind { return KindUnbounded }

// waitChan closes the returned channel once wg reaches zero.
func waitChan(wg *sync.WaitGroup) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}
