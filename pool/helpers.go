package pool

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/utkarsh5026/poolserve/internal/cpu"
)

// executor holds what every variant shares: configuration, counters and
// the code that actually runs a task on a unit.
type executor struct {
	conf *config

	submitted atomic.Int64
	completed atomic.Int64
	active    atomic.Int64
	liveUnits atomic.Int64
	nextUnit  atomic.Int64
}

func newExecutor(conf *config) *executor {
	return &executor{conf: conf}
}

// spawn starts a new unit running body. When bind is set and the pool runs
// in kernel mode, the unit first takes ownership of an OS thread.
func (e *executor) spawn(bind bool, body func(unitID int)) {
	id := int(e.nextUnit.Add(1) - 1)
	go func() {
		if bind && e.conf.mode == ThreadKernel {
			if err := cpu.BindUnit(id, e.conf.pin); err != nil {
				e.conf.logger.Warn("failed to pin unit", zap.Int("unit", id), zap.Error(err))
			}
		}
		body(id)
	}()
}

// run executes one task and records its wait and run times.
func (e *executor) run(task Task, enqueued time.Time) {
	wait := time.Since(enqueued)

	e.active.Add(1)
	if e.conf.beforeTaskStart != nil {
		e.conf.beforeTaskStart()
	}

	start := time.Now()
	e.runWithRecovery(task)
	elapsed := time.Since(start)

	e.active.Add(-1)
	e.completed.Add(1)
	if e.conf.onTaskEnd != nil {
		e.conf.onTaskEnd(wait, elapsed)
	}
}

// runWithRecovery executes a task with panic recovery so that a single
// failing request never takes its unit down.
func (e *executor) runWithRecovery(task Task) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			e.conf.logger.Error("task panicked",
				zap.String("panic", fmt.Sprint(r)),
				zap.ByteString("stack", buf[:n]),
			)
			if e.conf.onPanic != nil {
				e.conf.onPanic(r, buf[:n])
			}
		}
	}()

	task()
}

func (e *executor) baseStats(kind Kind) Stats {
	return Stats{
		Kind:      kind,
		Mode:      e.conf.mode,
		Active:    int(e.active.Load()),
		Submitted: e.submitted.Load(),
		Completed: e.completed.Load(),
	}
}

// waitUntil blocks until either the done channel is closed or ctx ends.
// It is used during graceful shutdown to wait for units to drain.
func waitUntil(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrShutdownTimeout, ctx.Err())
	}
}
