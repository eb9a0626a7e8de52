package pool

import (
	"context"
	"sync"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/zap"
)

type queuedTask struct {
	task     Task
	enqueued time.Time
}

// boundedPool keeps at most capacity units. Units park on the ready channel
// when the backlog is empty; Submit hands a parked unit a wake token or
// spawns a new unit while under capacity. Units above minIdle that see no
// token within idleTimeout retire.
type boundedPool struct {
	*executor

	mu      sync.Mutex
	backlog *queue.Queue
	units   int
	idle    int
	closed  bool

	ready chan struct{}
	quit  chan struct{}
	wg    sync.WaitGroup
	done  chan struct{}
}

func newBoundedPool(conf *config) *boundedPool {
	p := &boundedPool{
		executor: newExecutor(conf),
		backlog:  queue.New(),
		ready:    make(chan struct{}, conf.capacity),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	p.mu.Lock()
	for range conf.minIdle {
		p.spawnLocked()
	}
	p.mu.Unlock()

	conf.logger.Debug("bounded pool started",
		zap.Int("capacity", conf.capacity),
		zap.Int("min_idle", conf.minIdle),
		zap.Duration("idle_timeout", conf.idleTimeout),
		zap.String("mode", string(conf.mode)),
	)
	return p
}

// Submit queues task and makes sure some unit will pick it up.
func (p *boundedPool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	p.backlog.Add(&queuedTask{task: task, enqueued: time.Now()})
	p.submitted.Add(1)

	switch {
	case p.idle > 0:
		p.idle--
		// ready has capacity for every unit, so this never blocks.
		p.ready <- struct{}{}
	case p.units < p.conf.capacity:
		p.spawnLocked()
	}
	return nil
}

// spawnLocked starts a unit. p.mu must be held.
func (p *boundedPool) spawnLocked() {
	p.units++
	p.liveUnits.Add(1)
	p.wg.Add(1)
	p.spawn(true, p.loop)
}

func (p *boundedPool) loop(id int) {
	defer p.wg.Done()
	defer p.liveUnits.Add(-1)

	debugLog("unit %d started", id)

	timer := time.NewTimer(p.conf.idleTimeout)
	defer timer.Stop()

	for {
		p.mu.Lock()
		if p.backlog.Length() > 0 {
			qt := p.backlog.Remove().(*queuedTask)
			p.mu.Unlock()
			p.run(qt.task, qt.enqueued)
			continue
		}
		if p.closed {
			p.units--
			p.mu.Unlock()
			debugLog("unit %d exiting on shutdown", id)
			return
		}
		p.idle++
		p.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(p.conf.idleTimeout)

		select {
		case <-p.ready:
			// Submit already took this unit off the idle count.

		case <-p.quit:
			p.mu.Lock()
			if p.idle > 0 {
				p.idle--
			} else {
				// A submitter claimed this unit just before shutdown; consume
				// its token so the count stays balanced.
				<-p.ready
			}
			p.mu.Unlock()

		case <-timer.C:
			p.mu.Lock()
			if p.idle == 0 {
				// Token is in flight to us; take it and go back to work.
				p.mu.Unlock()
				<-p.ready
				continue
			}
			p.idle--
			if p.units > p.conf.minIdle && p.backlog.Length() == 0 && !p.closed {
				p.units--
				p.mu.Unlock()
				debugLog("unit %d retiring after %s idle", id, p.conf.idleTimeout)
				p.conf.logger.Debug("unit retired", zap.Int("unit", id))
				return
			}
			p.mu.Unlock()
		}
	}
}

// Shutdown stops admission and waits for the backlog to drain.
func (p *boundedPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.closed = true
	close(p.quit)
	p.mu.Unlock()

	go func() {
		p.wg.Wait()
		close(p.done)
	}()

	return waitUntil(ctx, p.done)
}

func (p *boundedPool) Stats() Stats {
	s := p.baseStats(KindBounded)

	p.mu.Lock()
	s.Units = p.units
	s.Idle = p.idle
	s.Queued = p.backlog.Length()
	p.mu.Unlock()

	return s
}

func (p *boundedPool) Kind() Kind { return KindBounded }
