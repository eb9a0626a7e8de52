// Package benchmarks compares the pool variants on the server's workloads
// without the HTTP layer in the way.
package benchmarks

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/utkarsh5026/poolserve/internal/report"
	"github.com/utkarsh5026/poolserve/internal/workload"
	"github.com/utkarsh5026/poolserve/pool"
)

// variantConfig defines a benchmark configuration for a pool variant
type variantConfig struct {
	name string
	opts []pool.Option
}

// getAllVariants returns every pool variant, bounded ones sized to capacity
func getAllVariants(capacity int) []variantConfig {
	return []variantConfig{
		{
			name: "Bounded_Kernel",
			opts: []pool.Option{pool.WithCapacity(capacity), pool.WithThreadMode(pool.ThreadKernel)},
		},
		{
			name: "Bounded_Fibers",
			opts: []pool.Option{pool.WithCapacity(capacity), pool.WithThreadMode(pool.ThreadFibers)},
		},
		{
			name: "Bounded_Prestarted",
			opts: []pool.Option{
				pool.WithCapacity(capacity),
				pool.WithMinIdle(capacity),
				pool.WithThreadMode(pool.ThreadKernel),
			},
		},
		{
			name: "Unbounded_Kernel",
			opts: []pool.Option{pool.WithCapacity(pool.UnboundedCapacity), pool.WithThreadMode(pool.ThreadKernel)},
		},
		{
			name: "Carrier",
			opts: []pool.Option{pool.WithCapacity(pool.UnboundedCapacity), pool.WithThreadMode(pool.ThreadFibers)},
		},
	}
}

func runVariantBenchmark(b *testing.B, variants []variantConfig, benchFunc func(b *testing.B, p pool.Pool)) {
	for _, v := range variants {
		b.Run(v.name, func(b *testing.B) {
			p, err := pool.New(v.opts...)
			if err != nil {
				b.Fatalf("pool.New: %v", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				_ = p.Shutdown(ctx)
			}()

			b.ResetTimer()
			benchFunc(b, p)
		})
	}
}

// submitBatch runs n copies of work on p and returns each task's latency
// measured from submission.
func submitBatch(b *testing.B, p pool.Pool, n int, work func()) []time.Duration {
	latencies := make([]time.Duration, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := range n {
		submitted := time.Now()
		if err := p.Submit(func() {
			defer wg.Done()
			work()
			latencies[i] = time.Since(submitted)
		}); err != nil {
			b.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()
	return latencies
}

// reportLatencies attaches P50/P99 of the collected latencies to the benchmark.
func reportLatencies(b *testing.B, latencies []time.Duration) {
	slices.Sort(latencies)
	p50, _, p99 := report.Percentiles(latencies)
	b.ReportMetric(float64(p50.Microseconds()), "p50-µs")
	b.ReportMetric(float64(p99.Microseconds()), "p99-µs")
}

func cpuBoundWork(iterations int) func() {
	cpu := workload.NewCPU()
	return func() { _ = cpu.Process(iterations) }
}

func idleWork(delay time.Duration) func() {
	idle := workload.NewIdle()
	return func() { _ = idle.Process(delay) }
}

func mixedWork(iterations int, delay time.Duration) func() {
	c, i := cpuBoundWork(iterations), idleWork(delay)
	return func() {
		c()
		i()
	}
}
