// Package server binds the workload listener, routes requests to the two
// handlers and owns shutdown of everything they share.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/utkarsh5026/poolserve/internal/handler"
	"github.com/utkarsh5026/poolserve/internal/reactor"
	"github.com/utkarsh5026/poolserve/internal/workload"
	"github.com/utkarsh5026/poolserve/pool"
)

const (
	PathSync  = "/sync"
	PathAsync = "/async"
)

// Params holds everything New needs. The server takes ownership of Pool,
// Reactor and Files and releases them in Stop.
type Params struct {
	Addr              string
	MetricsAddr       string
	ReadHeaderTimeout time.Duration
	ShutdownGrace     time.Duration
	Defaults          workload.Config

	Pool    pool.Pool
	Reactor *reactor.Reactor
	Files   *workload.FileCache

	Logger   *zap.Logger
	Observer handler.Observer

	// Metrics is served on the admin listener at /metrics when MetricsAddr is set.
	Metrics http.Handler
}

// Server is the workload HTTP server.
type Server struct {
	params   Params
	logger   *zap.Logger
	observer handler.Observer

	sync  http.Handler
	async http.Handler

	httpServer  *http.Server
	adminServer *http.Server

	mu      sync.Mutex
	ln      net.Listener
	adminLn net.Listener
	serving sync.WaitGroup

	stopOnce sync.Once
	stopErr  error
}

// New wires the handlers. It does not bind any socket; see Start.
func New(p Params) (*Server, error) {
	if p.Pool == nil || p.Reactor == nil || p.Files == nil {
		return nil, errors.New("server: pool, reactor and file cache are required")
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}

	opts := []handler.Option{handler.WithLogger(p.Logger)}
	if p.Observer != nil {
		opts = append(opts, handler.WithObserver(p.Observer))
	}

	s := &Server{
		params:   p,
		logger:   p.Logger,
		observer: p.Observer,
		sync:     handler.NewSync(p.Defaults, p.Files, opts...),
		async:    handler.NewAsync(p.Defaults, p.Files, p.Pool, p.Reactor, opts...),
	}

	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: p.ReadHeaderTimeout,
		ErrorLog:          zap.NewStdLog(p.Logger.Named("http")),
	}

	if p.MetricsAddr != "" {
		mux := http.NewServeMux()
		if p.Metrics != nil {
			mux.Handle("/metrics", p.Metrics)
		}
		mux.HandleFunc("/healthz", s.healthz)
		s.adminServer = &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return s, nil
}

// ServeHTTP routes by path prefix.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var route http.HandlerFunc
	switch {
	case strings.HasPrefix(r.URL.Path, PathAsync):
		route = s.async.ServeHTTP
	case strings.HasPrefix(r.URL.Path, PathSync):
		route = s.serveSync
	default:
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	route(w, r)
}

// serveSync runs the blocking handler on a pool unit and waits for it.
// The response writer stays valid because ServeHTTP does not return until
// the unit is done with it.
func (s *Server) serveSync(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	done := make(chan struct{})

	err := s.params.Pool.Submit(func() {
		defer close(done)
		s.sync.ServeHTTP(w, r)
	})
	if err != nil {
		s.logger.Debug("pool rejected request", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		if s.observer != nil {
			s.observer.ObserveRequest(handler.NameSync, handler.OutcomeRejected, time.Since(start), 0)
		}
		return
	}
	<-done
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	st := s.params.Pool.Stats()
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"status":"ok","pool":%q,"mode":%q,"units":%d,"queued":%d,"writing":%d}`,
		st.Kind, st.Mode, st.Units, st.Queued, s.params.Reactor.Len())
}

// Start binds the listeners and serves in the background. On a bind failure
// the server is stopped, releasing the pool, reactor and generated files,
// and the error is returned.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.params.Addr)
	if err != nil {
		return s.abortStart(fmt.Errorf("server: listen %s: %w", s.params.Addr, err))
	}

	var adminLn net.Listener
	if s.adminServer != nil {
		adminLn, err = net.Listen("tcp", s.params.MetricsAddr)
		if err != nil {
			_ = ln.Close()
			return s.abortStart(fmt.Errorf("server: listen admin %s: %w", s.params.MetricsAddr, err))
		}
	}

	s.mu.Lock()
	s.ln, s.adminLn = ln, adminLn
	s.mu.Unlock()

	s.serve("workload", s.httpServer, ln)
	if adminLn != nil {
		s.serve("admin", s.adminServer, adminLn)
	}

	s.logger.Info("server started",
		zap.String("addr", ln.Addr().String()),
		zap.String("pool", s.params.Pool.Kind().String()),
		zap.String("mode", string(s.params.Pool.Stats().Mode)),
		zap.Int("cpu_iterations", s.params.Defaults.CPUIterations),
		zap.Duration("idle_delay", s.params.Defaults.IdleDelay),
		zap.Int("file_length", s.params.Defaults.FileLength),
	)
	return nil
}

// abortStart stops the server on behalf of a caller whose Start failed; fx
// does not run OnStop for a hook whose OnStart returned an error.
func (s *Server) abortStart(err error) error {
	if stopErr := s.Stop(context.Background()); stopErr != nil {
		return errors.Join(err, stopErr)
	}
	return err
}

func (s *Server) serve(name string, srv *http.Server, ln net.Listener) {
	s.serving.Add(1)
	go func() {
		defer s.serving.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("listener failed", zap.String("listener", name), zap.Error(err))
		}
	}()
}

// Addr returns the bound workload address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// AdminAddr returns the bound admin address, or nil when disabled.
func (s *Server) AdminAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adminLn == nil {
		return nil
	}
	return s.adminLn.Addr()
}

// Stop stops accepting, lets in-flight requests finish within the shutdown
// grace period, then forces whatever is left closed and removes the
// generated files. It is safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.stopErr = s.stop(ctx)
	})
	return s.stopErr
}

func (s *Server) stop(ctx context.Context) error {
	if s.params.ShutdownGrace > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.params.ShutdownGrace)
		defer cancel()
	}

	s.logger.Info("shutting down", zap.Duration("grace", s.params.ShutdownGrace))
	var errs []error

	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server: http shutdown: %w", err))
		_ = s.httpServer.Close()
	}

	if err := s.params.Pool.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server: pool shutdown: %w", err))
	}

	if err := s.params.Reactor.Drain(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.params.Reactor.Close(); err != nil {
		errs = append(errs, fmt.Errorf("server: reactor close: %w", err))
	}

	if s.adminServer != nil {
		if err := s.adminServer.Shutdown(ctx); err != nil {
			_ = s.adminServer.Close()
		}
	}

	s.serving.Wait()

	if err := s.params.Files.Close(); err != nil {
		errs = append(errs, fmt.Errorf("server: remove generated files: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("forced shutdown", zap.Error(err))
		return err
	}
	s.logger.Info("shutdown complete")
	return nil
}
