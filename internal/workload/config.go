package workload

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultCPUIterations is the number of hash rounds used when a request does not override it.
	DefaultCPUIterations = 10_000

	// DefaultIdleDelay is the idle wait used when a request does not override it.
	DefaultIdleDelay = 0 * time.Millisecond

	// DefaultFileLength is the body size in bytes used when a request does not override it.
	DefaultFileLength = 100 * 1024
)

var ErrInvalidConfig = errors.New("invalid workload configuration")

// Config describes the work performed for one request.
// Values are never mutated once built; overrides produce a copy.
type Config struct {
	CPUIterations int
	IdleDelay     time.Duration
	FileLength    int
}

// DefaultConfig returns the process-wide defaults.
func DefaultConfig() Config {
	return Config{
		CPUIterations: DefaultCPUIterations,
		IdleDelay:     DefaultIdleDelay,
		FileLength:    DefaultFileLength,
	}
}

// Validate reports whether every field is non-negative.
func (c Config) Validate() error {
	switch {
	case c.CPUIterations < 0:
		return fmt.Errorf("%w: cpu iterations %d is negative", ErrInvalidConfig, c.CPUIterations)
	case c.IdleDelay < 0:
		return fmt.Errorf("%w: idle delay %s is negative", ErrInvalidConfig, c.IdleDelay)
	case c.FileLength < 0:
		return fmt.Errorf("%w: file length %d is negative", ErrInvalidConfig, c.FileLength)
	}
	return nil
}
