package pool

import "errors"

var (
	// ErrPoolClosed is returned by Submit and Shutdown once the pool is shut down.
	ErrPoolClosed = errors.New("pool is shut down")

	// ErrShutdownTimeout is wrapped by Shutdown when the context ends before
	// every unit has drained.
	ErrShutdownTimeout = errors.New("error in shutting down: timeout reached")

	// ErrInvalidCapacity is returned by New for a capacity that is neither
	// positive nor UnboundedCapacity.
	ErrInvalidCapacity = errors.New("invalid pool capacity")

	// ErrInvalidConfig is returned by New for any other unusable option.
	ErrInvalidConfig = errors.New("invalid pool configuration")

	// ErrNilTask is returned by Submit for a nil task.
	ErrNilTask = errors.New("nil task")
)

// New builds the pool variant selected by the options.
//
// Default configuration:
//   - capacity: UnboundedCapacity
//   - mode: ThreadKernel
//   - minIdle: 0
//   - idleTimeout: DefaultIdleTimeout
//
// Returns ErrInvalidCapacity or ErrInvalidConfig when the options cannot
// produce a working pool; callers treat this as fatal.
//
// Example:
//
//	p, err := pool.New(pool.WithCapacity(8), pool.WithMinIdle(2))
func New(opts ...Option) (Pool, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	switch {
	case cfg.capacity > 0:
		return newBoundedPool(cfg), nil
	case cfg.mode == ThreadFibers:
		return newCarrierPool(cfg), nil
	default:
		return newUnboundedPool(cfg), nil
	}
}
