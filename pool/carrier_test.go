package pool

import (
	"sync"
	"testing"
	"time"
)

func TestUnbounded_NoQueueing(t *testing.T) {
	for _, v := range getAllVariants(1) {
		if v.kind == KindBounded {
			continue
		}
		t.Run(v.name, func(t *testing.T) {
			p := mustNew(t, v.opts...)

			const n = 64
			release := make(chan struct{})
			var started sync.WaitGroup
			var finished sync.WaitGroup
			started.Add(n)
			finished.Add(n)
			for range n {
				_ = p.Submit(func() {
					defer finished.Done()
					started.Done()
					<-release
				})
			}

			// Every task must be running at once: none may wait for another.
			ok := make(chan struct{})
			go func() {
				started.Wait()
				close(ok)
			}()
			select {
			case <-ok:
			case <-time.After(2 * time.Second):
				t.Fatal("not every task started concurrently")
			}

			if s := p.Stats(); s.Queued != 0 || s.Units != n {
				t.Errorf("expected %d units and empty queue, got %+v", n, s)
			}

			close(release)
			finished.Wait()
			waitFor(t, time.Second, func() bool { return p.Stats().Units == 0 })
		})
	}
}

func TestCarrier_BlockedTaskDoesNotStarveOthers(t *testing.T) {
	p := mustNew(t, WithCapacity(UnboundedCapacity), WithThreadMode(ThreadFibers))

	block := make(chan struct{})
	defer close(block)
	for range 100 {
		_ = p.Submit(func() { <-block })
	}

	done := make(chan struct{})
	_ = p.Submit(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("blocked tasks starved a runnable one")
	}
}
