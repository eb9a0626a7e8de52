package handler

import (
	"time"

	"go.uber.org/zap"
)

// Outcome classifies how a request ended.
type Outcome string

const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeAborted    Outcome = "aborted"
	OutcomeBadRequest Outcome = "bad_request"
	OutcomeFailed     Outcome = "failed"
	OutcomeRejected   Outcome = "rejected"
)

const (
	NameSync  = "sync"
	NameAsync = "async"
)

// Observer receives one call per finished request.
type Observer interface {
	ObserveRequest(handler string, outcome Outcome, d time.Duration, bytes int64)
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, Outcome, time.Duration, int64) {}

// Option configures a handler.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	observer Observer
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop(), observer: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the handler's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver reports every finished request to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}
