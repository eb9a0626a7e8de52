// Package pool provides the execution pool that runs every request handled
// by poolserve.
//
// A Pool accepts tasks through Submit and runs each one on a unit. What a unit
// is, and how many of them exist, is what the package lets an operator vary:
//
//   - Bounded: at most Capacity units, an idle floor of MinIdle units, units
//     above the floor retire after IdleTimeout. When every unit is busy the
//     task waits in an unbounded FIFO backlog. There is no admission control,
//     so sustained overload grows the backlog without limit.
//   - Unbounded: every Submit starts a fresh unit. Nothing is queued and
//     nothing pushes back; the host is the only limit.
//   - Carrier: every Submit starts a goroutine and the Go scheduler
//     multiplexes them onto GOMAXPROCS threads, handing blocking syscalls off
//     so one stalled task does not starve the others.
//
// # Thread Modes
//
// In ThreadKernel mode every unit locks its goroutine to an OS thread for its
// whole life (optionally pinned to a core), so a unit is a real kernel
// thread and an exiting unit destroys its thread. In ThreadFibers mode units
// are plain goroutines.
//
// # Basic Usage
//
//	p, err := pool.New(
//	    pool.WithCapacity(200),
//	    pool.WithThreadMode(pool.ThreadKernel),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Shutdown(context.Background())
//
//	done := make(chan struct{})
//	_ = p.Submit(func() {
//	    defer close(done)
//	    // handle a request
//	})
//	<-done
//
// # Variant Selection
//
//   - WithCapacity(n > 0): Bounded, units of the configured thread mode
//   - WithCapacity(UnboundedCapacity) + ThreadKernel: Unbounded
//   - WithCapacity(UnboundedCapacity) + ThreadFibers: Carrier
//
// Any other capacity is rejected by New with ErrInvalidCapacity.
//
// # Shutdown
//
// Shutdown stops admission immediately (Submit returns ErrPoolClosed), lets
// queued and running tasks finish and returns once every unit has exited or
// the context ends, in which case the error wraps ErrShutdownTimeout.
package pool
