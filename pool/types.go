package pool

import (
	"context"
	"fmt"
	"strings"
)

// Task is a unit of work run by the pool.
type Task func()

// ThreadMode selects what backs a pool unit.
type ThreadMode string

const (
	// ThreadKernel backs each unit with a dedicated OS thread.
	ThreadKernel ThreadMode = "kernel"

	// ThreadFibers backs each unit with a goroutine scheduled by the Go runtime.
	ThreadFibers ThreadMode = "fibers"
)

// ParseThreadMode converts a configuration string into a ThreadMode.
func ParseThreadMode(s string) (ThreadMode, error) {
	switch ThreadMode(strings.ToLower(strings.TrimSpace(s))) {
	case ThreadKernel:
		return ThreadKernel, nil
	case ThreadFibers:
		return ThreadFibers, nil
	default:
		return "", fmt.Errorf("%w: unknown thread mode %q (want kernel or fibers)", ErrInvalidConfig, s)
	}
}

// Kind identifies a pool variant.
type Kind int

const (
	KindBounded Kind = iota
	KindUnbounded
	KindCarrier
)

func (k Kind) String() string {
	switch k {
	case KindBounded:
		return "bounded"
	case KindUnbounded:
		return "unbounded"
	case KindCarrier:
		return "carrier"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Stats is a point-in-time snapshot of a pool.
//
// Fields:
//   - Units: live units, busy or idle
//   - Idle: units parked waiting for work (always 0 for Unbounded and Carrier)
//   - Active: tasks currently executing
//   - Queued: tasks waiting in the backlog (always 0 for Unbounded and Carrier)
//   - Submitted, Completed: totals since construction
type Stats struct {
	Kind      Kind
	Mode      ThreadMode
	Units     int
	Idle      int
	Active    int
	Queued    int
	Submitted int64
	Completed int64
}

// Pool runs submitted tasks on units. Implementations are safe for
// concurrent use by many submitters.
type Pool interface {
	// Submit hands task to the pool. It never blocks on pool capacity.
	// It returns ErrPoolClosed once Shutdown has been called.
	Submit(task Task) error

	// Shutdown rejects new tasks and waits for queued and running tasks to
	// finish, or for ctx to end.
	Shutdown(ctx context.Context) error

	// Stats returns a snapshot of the pool's bookkeeping.
	Stats() Stats

	// Kind reports which variant this pool is.
	Kind() Kind
}
