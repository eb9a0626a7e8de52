package workload

import (
	"strconv"
	"time"
)

// Idle spends wall-clock time without consuming CPU.
type Idle struct{}

// NewIdle returns an Idle generator.
func NewIdle() *Idle {
	return &Idle{}
}

// Process blocks the calling goroutine for delay and returns a latency
// marker describing how long it actually waited, e.g. "250ms".
// A non-positive delay returns immediately.
func (i *Idle) Process(delay time.Duration) string {
	start := time.Now()
	if delay > 0 {
		timer := time.NewTimer(delay)
		<-timer.C
	}
	return LatencyMarker(time.Since(start))
}

// LatencyMarker formats d as whole milliseconds.
func LatencyMarker(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
}
