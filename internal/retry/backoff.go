// Package retry computes wait times between attempts and runs an operation
// until it succeeds, the attempts run out or the context ends.
package retry

import (
	"math/rand/v2"
	"sync"
	"time"
)

// maxShift keeps 1<<attempt inside int64.
const maxShift = 62

// Backoff yields the wait before retry number attempt (0 = first retry).
type Backoff interface {
	NextDelay(attempt int) time.Duration
}

// Kind selects a Backoff implementation.
type Kind int

const (
	// KindExponential doubles the wait every attempt.
	KindExponential Kind = iota

	// KindJittered spreads each exponential wait by a random factor so many
	// clients started together do not retry in lockstep.
	KindJittered

	// KindDecorrelated picks each wait at random between the base and three
	// times the previous wait.
	KindDecorrelated
)

// New returns the backoff for kind. jitter only applies to KindJittered and
// is clamped to [0, 1].
func New(kind Kind, base, ceiling time.Duration, jitter float64) Backoff {
	switch kind {
	case KindJittered:
		return &Jittered{Base: base, Max: ceiling, Factor: min(max(jitter, 0), 1)}
	case KindDecorrelated:
		return &Decorrelated{Base: base, Max: ceiling}
	default:
		return Exponential{Base: base, Max: ceiling}
	}
}

// Exponential waits Base * 2^attempt, capped at Max.
type Exponential struct {
	Base time.Duration
	Max  time.Duration
}

func (e Exponential) NextDelay(attempt int) time.Duration {
	return exponential(attempt, e.Base, e.Max)
}

// Jittered waits an exponential delay scaled by a random factor in
// [1-Factor, 1+Factor], capped at Max.
type Jittered struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
}

func (j *Jittered) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}
	d := float64(exponential(attempt, j.Base, j.Max))
	d *= 1 + (rand.Float64()*2-1)*j.Factor // #nosec G404 -- jitter only
	return min(max(time.Duration(d), 0), j.Max)
}

// Decorrelated waits a random duration in [Base, 3*previous), capped at Max.
// It is safe for concurrent use; attempt 0 restarts the sequence.
type Decorrelated struct {
	Base time.Duration
	Max  time.Duration

	mu   sync.Mutex
	prev time.Duration
}

func (d *Decorrelated) NextDelay(attempt int) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	if attempt <= 0 || d.prev == 0 {
		d.prev = d.Base
		return d.Base
	}

	upper := min(3*d.prev, d.Max)
	if upper <= d.Base {
		d.prev = d.Base
		return d.Base
	}

	d.prev = d.Base + rand.N(upper-d.Base) // #nosec G404 -- jitter only
	return d.prev
}

func exponential(attempt int, base, ceiling time.Duration) time.Duration {
	if attempt < 0 {
		return 0
	}
	if attempt > maxShift {
		return ceiling
	}

	d := base * time.Duration(int64(1)<<attempt)
	if d > ceiling || d < 0 || (base != 0 && d/base != time.Duration(int64(1)<<attempt)) {
		return ceiling
	}
	return d
}
