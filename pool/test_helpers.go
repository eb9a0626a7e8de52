package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// variantConfig defines a test configuration for a pool variant
type variantConfig struct {
	name string
	kind Kind
	opts []Option
}

// getAllVariants returns every pool variant, bounded ones sized to capacity
func getAllVariants(capacity int) []variantConfig {
	return []variantConfig{
		{
			name: "BoundedKernel",
			kind: KindBounded,
			opts: []Option{
				WithCapacity(capacity),
				WithThreadMode(ThreadKernel),
			},
		},
		{
			name: "BoundedFibers",
			kind: KindBounded,
			opts: []Option{
				WithCapacity(capacity),
				WithThreadMode(ThreadFibers),
			},
		},
		{
			name: "Unbounded",
			kind: KindUnbounded,
			opts: []Option{
				WithCapacity(UnboundedCapacity),
				WithThreadMode(ThreadKernel),
			},
		},
		{
			name: "Carrier",
			kind: KindCarrier,
			opts: []Option{
				WithCapacity(UnboundedCapacity),
				WithThreadMode(ThreadFibers),
			},
		},
	}
}

func runVariantTest(t *testing.T, testFunc func(t *testing.T, v variantConfig), capacity int, additionalOpts ...Option) {
	for _, v := range getAllVariants(capacity) {
		v.opts = append(v.opts, additionalOpts...)
		t.Run(v.name, func(t *testing.T) {
			testFunc(t, v)
		})
	}
}

func mustNew(t *testing.T, opts ...Option) Pool {
	t.Helper()
	p, err := New(opts...)
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return p
}

// peakTracker records the highest number of concurrently running tasks.
type peakTracker struct {
	current atomic.Int64
	peak    atomic.Int64
}

func (pt *peakTracker) enter() {
	n := pt.current.Add(1)
	for {
		old := pt.peak.Load()
		if n <= old || pt.peak.CompareAndSwap(old, n) {
			return
		}
	}
}

func (pt *peakTracker) leave() { pt.current.Add(-1) }

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
