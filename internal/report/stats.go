// Package report turns load generator samples into latency summaries and
// renders them for the terminal.
package report

import (
	"slices"
	"time"
)

// Sample is the outcome of one request.
type Sample struct {
	Latency time.Duration
	Status  int
	Bytes   int64
	Err     error
}

// Summary aggregates the samples of one run.
type Summary struct {
	Label      string        `json:"label"`
	Requests   int           `json:"requests"`
	Errors     int           `json:"errors"`
	ByStatus   map[int]int   `json:"by_status"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Throughput float64       `json:"throughput_rps"`
	Bytes      int64         `json:"bytes"`
	Min        time.Duration `json:"min_ns"`
	Mean       time.Duration `json:"mean_ns"`
	P50        time.Duration `json:"p50_ns"`
	P95        time.Duration `json:"p95_ns"`
	P99        time.Duration `json:"p99_ns"`
	Max        time.Duration `json:"max_ns"`
}

// Summarize computes a Summary. Latency percentiles cover successful
// requests only; a request is successful when it got a 2xx response.
func Summarize(label string, samples []Sample, elapsed time.Duration) Summary {
	s := Summary{
		Label:    label,
		Requests: len(samples),
		ByStatus: make(map[int]int),
		Elapsed:  elapsed,
	}

	latencies := make([]time.Duration, 0, len(samples))
	var total time.Duration
	for _, smp := range samples {
		if smp.Err != nil {
			s.Errors++
			continue
		}
		s.ByStatus[smp.Status]++
		if smp.Status < 200 || smp.Status > 299 {
			s.Errors++
			continue
		}
		s.Bytes += smp.Bytes
		latencies = append(latencies, smp.Latency)
		total += smp.Latency
	}

	if elapsed > 0 {
		s.Throughput = float64(len(latencies)) / elapsed.Seconds()
	}
	if len(latencies) == 0 {
		return s
	}

	slices.Sort(latencies)
	s.Min = latencies[0]
	s.Max = latencies[len(latencies)-1]
	s.Mean = total / time.Duration(len(latencies))
	s.P50, s.P95, s.P99 = Percentiles(latencies)
	return s
}

// Percentiles returns P50, P95 and P99 of an ascending slice.
func Percentiles(sorted []time.Duration) (p50, p95, p99 time.Duration) {
	return Percentile(sorted, 50), Percentile(sorted, 95), Percentile(sorted, 99)
}

// Percentile returns the nearest-rank value at p percent of an ascending slice.
func Percentile(sorted []time.Duration, p int) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := (n*p+99)/100 - 1
	return sorted[min(max(idx, 0), n-1)]
}
