// Package loadgen drives HTTP load against a poolserve instance and
// collects per-request samples.
package loadgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/utkarsh5026/poolserve/internal/report"
	"github.com/utkarsh5026/poolserve/internal/retry"
)

var ErrInvalidConfig = errors.New("loadgen: invalid configuration")

// Config describes one load run.
//
// With Rate zero the run is closed-loop: Concurrency workers each send the
// next request as soon as the previous one finished. With Rate above zero
// requests are released at that many per second, and Concurrency caps how
// many can be outstanding.
type Config struct {
	Target      string
	Path        string
	Query       string
	Requests    int
	Concurrency int
	Rate        float64
	Timeout     time.Duration
}

// URL returns the request URL of the run.
func (c Config) URL() string {
	u := strings.TrimRight(c.Target, "/") + c.Path
	if c.Query != "" {
		u += "?" + strings.TrimPrefix(c.Query, "?")
	}
	return u
}

func (c Config) validate() error {
	switch {
	case c.Requests <= 0:
		return fmt.Errorf("%w: requests must be positive", ErrInvalidConfig)
	case c.Concurrency <= 0:
		return fmt.Errorf("%w: concurrency must be positive", ErrInvalidConfig)
	case c.Rate < 0:
		return fmt.Errorf("%w: rate must not be negative", ErrInvalidConfig)
	}
	if _, err := url.ParseRequestURI(c.URL()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) Option {
	return func(r *Runner) {
		if c != nil {
			r.client = c
		}
	}
}

// WithOnSample registers a callback invoked after every request. It may be
// called from several goroutines at once.
func WithOnSample(fn func(report.Sample)) Option {
	return func(r *Runner) {
		r.onSample = fn
	}
}

// Runner executes load runs.
type Runner struct {
	cfg      Config
	client   *http.Client
	logger   *zap.Logger
	onSample func(report.Sample)
}

// New validates cfg and returns a Runner for it.
func New(cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:    cfg,
		logger: zap.NewNop(),
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.Concurrency,
				MaxIdleConnsPerHost: cfg.Concurrency,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// WaitReady polls the target until it answers any HTTP response, waiting
// between attempts according to b.
func (r *Runner) WaitReady(ctx context.Context, b retry.Backoff, attempts int) error {
	probe := strings.TrimRight(r.cfg.Target, "/") + "/"
	return retry.Do(ctx, b, attempts, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, probe, nil)
		if err != nil {
			return err
		}
		res, err := r.client.Do(req)
		if err != nil {
			r.logger.Debug("target not ready", zap.String("target", probe), zap.Error(err))
			return err
		}
		_, _ = io.Copy(io.Discard, res.Body)
		return res.Body.Close()
	})
}

// Run sends cfg.Requests requests and returns their summary. A cancelled
// ctx stops the run early; samples gathered so far are still summarized.
func (r *Runner) Run(ctx context.Context, label string) (report.Summary, error) {
	var limiter *rate.Limiter
	if r.cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.cfg.Rate), 1)
	}

	target := r.cfg.URL()
	samples := make([]report.Sample, r.cfg.Requests)
	sent := make([]bool, r.cfg.Requests)
	jobs := make(chan int)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i := range r.cfg.Requests {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					if gctx.Err() != nil {
						return nil
					}
					// The limiter refuses a wait that would outlast the deadline.
					return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
				}
			}
			select {
			case jobs <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	start := time.Now()
	for range r.cfg.Concurrency {
		g.Go(func() error {
			for i := range jobs {
				samples[i] = r.do(gctx, target)
				sent[i] = true
				if r.onSample != nil {
					r.onSample(samples[i])
				}
			}
			return nil
		})
	}

	err := g.Wait()
	elapsed := time.Since(start)

	done := make([]report.Sample, 0, len(samples))
	for i, ok := range sent {
		if ok {
			done = append(done, samples[i])
		}
	}

	r.logger.Debug("run finished",
		zap.String("label", label),
		zap.Int("sent", len(done)),
		zap.Duration("elapsed", elapsed),
	)
	if err == nil {
		err = ctx.Err()
	}
	return report.Summarize(label, done, elapsed), err
}

func (r *Runner) do(ctx context.Context, target string) report.Sample {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return report.Sample{Err: err}
	}

	res, err := r.client.Do(req)
	if err != nil {
		return report.Sample{Latency: time.Since(start), Err: err}
	}
	defer res.Body.Close()

	n, err := io.Copy(io.Discard, res.Body)
	return report.Sample{
		Latency: time.Since(start),
		Status:  res.StatusCode,
		Bytes:   n,
		Err:     err,
	}
}
