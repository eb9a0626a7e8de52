// Package metrics exposes request and pool instrumentation in Prometheus
// format on the admin listener.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utkarsh5026/poolserve/internal/handler"
	"github.com/utkarsh5026/poolserve/pool"
)

const namespace = "poolserve"

// Metrics owns a private registry and every collector poolserve reports.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	responseBytes   *prometheus.CounterVec
	taskWait        prometheus.Histogram
	taskRun         prometheus.Histogram
	taskPanics      prometheus.Counter
	filesGenerated  prometheus.Counter
	fileSynthesis   prometheus.Histogram
}

// New builds the collectors and registers them along with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Time from accepting a request to its last byte or abort",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
			},
			[]string{"handler", "outcome"},
		),
		responseBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "response_bytes_total",
				Help:      "Bytes written to clients",
			},
			[]string{"handler"},
		),
		taskWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "task_wait_seconds",
			Help:      "Time a task waited for a unit",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 18),
		}),
		taskRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "task_run_seconds",
			Help:      "Time a task held its unit",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 18),
		}),
		taskPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "task_panics_total",
			Help:      "Tasks that panicked and were recovered",
		}),
		filesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "generated_total",
			Help:      "Files synthesized by the I/O generator",
		}),
		fileSynthesis: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "synthesis_seconds",
			Help:      "Time to generate one file",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		m.requestDuration,
		m.responseBytes,
		m.taskWait,
		m.taskRun,
		m.taskPanics,
		m.filesGenerated,
		m.fileSynthesis,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest implements handler.Observer.
func (m *Metrics) ObserveRequest(name string, outcome handler.Outcome, d time.Duration, bytes int64) {
	m.requestDuration.WithLabelValues(name, string(outcome)).Observe(d.Seconds())
	if bytes > 0 {
		m.responseBytes.WithLabelValues(name).Add(float64(bytes))
	}
}

// ObserveTask records a finished pool task. Its signature matches
// pool.WithOnTaskEnd.
func (m *Metrics) ObserveTask(wait, run time.Duration) {
	m.taskWait.Observe(wait.Seconds())
	m.taskRun.Observe(run.Seconds())
}

// ObservePanic counts a recovered task panic. Its signature matches
// pool.WithOnPanic.
func (m *Metrics) ObservePanic(any, []byte) {
	m.taskPanics.Inc()
}

// ObserveSynthesis records a generated file. Its signature matches
// workload.WithSynthesisHook.
func (m *Metrics) ObserveSynthesis(_ int, took time.Duration) {
	m.filesGenerated.Inc()
	m.fileSynthesis.Observe(took.Seconds())
}

// RegisterPool exports live gauges for p. Values are read at scrape time.
func (m *Metrics) RegisterPool(p pool.Pool) {
	gauge := func(name, help string, read func(pool.Stats) int) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "pool",
			Name:        name,
			Help:        help,
			ConstLabels: prometheus.Labels{"kind": p.Kind().String()},
		}, func() float64 { return float64(read(p.Stats())) })
	}

	m.registry.MustRegister(
		gauge("units", "Live units", func(s pool.Stats) int { return s.Units }),
		gauge("idle_units", "Units parked waiting for work", func(s pool.Stats) int { return s.Idle }),
		gauge("active_tasks", "Tasks currently running", func(s pool.Stats) int { return s.Active }),
		gauge("queued_tasks", "Tasks waiting in the backlog", func(s pool.Stats) int { return s.Queued }),
	)
}

// RegisterGauge exports an arbitrary live value, such as in-flight reactor
// registrations.
func (m *Metrics) RegisterGauge(name, help string, read func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, read))
}

// Handler serves the registry in Prometheus and OpenMetrics format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
