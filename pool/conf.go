package pool

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// UnboundedCapacity selects a pool without a unit limit.
	UnboundedCapacity = -1

	// DefaultIdleTimeout is how long a bounded unit above the idle floor
	// waits for work before retiring.
	DefaultIdleTimeout = 60 * time.Second
)

// Option is a functional option for configuring a pool.
type Option func(*config)

type config struct {
	capacity    int
	minIdle     int
	idleTimeout time.Duration
	mode        ThreadMode
	pin         bool
	logger      *zap.Logger

	beforeTaskStart func()
	onTaskEnd       func(wait, run time.Duration)
	onPanic         func(recovered any, stack []byte)
}

func defaultConfig() *config {
	return &config{
		capacity:    UnboundedCapacity,
		idleTimeout: DefaultIdleTimeout,
		mode:        ThreadKernel,
		logger:      zap.NewNop(),
	}
}

// validate rejects configurations that cannot produce a working pool.
func (c *config) validate() error {
	if c.capacity == 0 || c.capacity < UnboundedCapacity {
		return fmt.Errorf("%w: %d (want > 0 or %d for unbounded)", ErrInvalidCapacity, c.capacity, UnboundedCapacity)
	}
	if c.mode != ThreadKernel && c.mode != ThreadFibers {
		return fmt.Errorf("%w: unknown thread mode %q", ErrInvalidConfig, c.mode)
	}
	if c.capacity > 0 {
		if c.minIdle < 0 || c.minIdle > c.capacity {
			return fmt.Errorf("%w: min idle %d outside [0, %d]", ErrInvalidConfig, c.minIdle, c.capacity)
		}
		if c.idleTimeout <= 0 {
			return fmt.Errorf("%w: idle timeout %s must be positive", ErrInvalidConfig, c.idleTimeout)
		}
	}
	return nil
}

// WithCapacity sets the maximum number of units. Use UnboundedCapacity for
// a pool without a limit. Zero and values below UnboundedCapacity make New fail.
func WithCapacity(n int) Option {
	return func(cfg *config) {
		cfg.capacity = n
	}
}

// WithMinIdle sets how many bounded units are kept alive while idle.
// These units are started by New. Ignored by unbounded pools.
func WithMinIdle(n int) Option {
	return func(cfg *config) {
		cfg.minIdle = n
	}
}

// WithIdleTimeout sets how long a bounded unit above the idle floor waits
// for work before it retires.
func WithIdleTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.idleTimeout = d
	}
}

// WithThreadMode selects kernel threads or goroutines as units.
func WithThreadMode(mode ThreadMode) Option {
	return func(cfg *config) {
		cfg.mode = mode
	}
}

// WithCPUPinning pins every kernel unit to a core derived from its unit ID.
// It has no effect in ThreadFibers mode.
func WithCPUPinning(enabled bool) Option {
	return func(cfg *config) {
		cfg.pin = enabled
	}
}

// WithLogger sets the logger used for unit lifecycle and recovered panics.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithBeforeTaskStart registers a hook called on the unit right before a task runs.
func WithBeforeTaskStart(fn func()) Option {
	return func(cfg *config) {
		cfg.beforeTaskStart = fn
	}
}

// WithOnTaskEnd registers a hook called after each task with the time it
// spent waiting for a unit and the time it ran.
//
// Example:
//
//	WithOnTaskEnd(func(wait, run time.Duration) {
//	    queueWait.Observe(wait.Seconds())
//	})
func WithOnTaskEnd(fn func(wait, run time.Duration)) Option {
	return func(cfg *config) {
		cfg.onTaskEnd = fn
	}
}

// WithOnPanic registers a hook called when a task panics. The unit
// recovers and keeps serving.
func WithOnPanic(fn func(recovered any, stack []byte)) Option {
	return func(cfg *config) {
		cfg.onPanic = fn
	}
}
