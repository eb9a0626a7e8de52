package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/utkarsh5026/poolserve/internal/workload"
)

const (
	contentType     = "text/plain; charset=utf-8"
	headerRequestID = "X-Request-ID"
	headerLatency   = "X-Latency"
)

// Sync is the blocking handler. The goroutine that calls ServeHTTP is held
// for the whole request, including the body transfer to a slow client.
type Sync struct {
	cpu      *workload.CPU
	idle     *workload.Idle
	files    *workload.FileCache
	defaults workload.Config
	options
}

// NewSync returns a blocking handler using defaults when a request carries
// no overrides.
func NewSync(defaults workload.Config, files *workload.FileCache, opts ...Option) *Sync {
	return &Sync{
		cpu:      workload.NewCPU(),
		idle:     workload.NewIdle(),
		files:    files,
		defaults: defaults,
		options:  newOptions(opts),
	}
}

func (h *Sync) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	cfg, err := ParseOverrides(r.URL.Query(), h.defaults)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		h.observer.ObserveRequest(NameSync, OutcomeBadRequest, time.Since(start), 0)
		return
	}

	requestID := h.cpu.Process(cfg.CPUIterations)
	latency := h.idle.Process(cfg.IdleDelay)

	f, err := h.files.Open(cfg.FileLength)
	if err != nil {
		h.logger.Error("backing store unavailable", zap.Int("size", cfg.FileLength), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		h.observer.ObserveRequest(NameSync, OutcomeFailed, time.Since(start), 0)
		return
	}
	defer f.Close()

	hdr := w.Header()
	hdr.Set("Content-Type", contentType)
	hdr.Set("Content-Length", strconv.Itoa(cfg.FileLength))
	hdr.Set(headerRequestID, requestID)
	hdr.Set(headerLatency, latency)
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, f)
	if err != nil {
		h.logger.Debug("transfer aborted",
			zap.String("request_id", requestID),
			zap.Int64("written", n),
			zap.Error(err),
		)
		h.observer.ObserveRequest(NameSync, OutcomeAborted, time.Since(start), n)
		return
	}
	h.observer.ObserveRequest(NameSync, OutcomeCompleted, time.Since(start), n)
}
