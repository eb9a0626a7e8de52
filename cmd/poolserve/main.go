// Command poolserve serves the /sync and /async workload endpoints on a
// single configurable execution pool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/utkarsh5026/poolserve/internal/config"
	"github.com/utkarsh5026/poolserve/internal/logging"
	"github.com/utkarsh5026/poolserve/internal/metrics"
	"github.com/utkarsh5026/poolserve/internal/reactor"
	"github.com/utkarsh5026/poolserve/internal/server"
	"github.com/utkarsh5026/poolserve/internal/workload"
	"github.com/utkarsh5026/poolserve/pool"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "poolserve: %v\n", err)
		os.Exit(2)
	}

	app := fx.New(
		fx.Supply(cfg),
		fx.Provide(
			newLogger,
			metrics.New,
			newPool,
			newReactor,
			newFileCache,
			newServer,
		),
		fx.Invoke(
			func(lc fx.Lifecycle, srv *server.Server) {
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error { return srv.Start() },
					OnStop:  srv.Stop,
				})
			},
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		// Give Stop room to spend the whole grace period before fx gives up.
		fx.StopTimeout(cfg.ShutdownGrace+5*time.Second),
	)

	app.Run()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogLevel, cfg.LogFormat)
}

func newPool(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (pool.Pool, error) {
	opts := append(cfg.PoolOptions(),
		pool.WithLogger(logger.Named("pool")),
		pool.WithOnTaskEnd(m.ObserveTask),
		pool.WithOnPanic(m.ObservePanic),
	)

	p, err := pool.New(opts...)
	if err != nil {
		return nil, err
	}
	m.RegisterPool(p)
	return p, nil
}

func newReactor(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*reactor.Reactor, error) {
	r, err := reactor.New(cfg.ReactorLoops, logger.Named("reactor"))
	if err != nil {
		return nil, err
	}
	m.RegisterGauge("reactor_registrations", "Responses waiting for socket writability",
		func() float64 { return float64(r.Len()) })
	return r, nil
}

func newFileCache(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*workload.FileCache, error) {
	return workload.NewFileCache(cfg.TempDir,
		workload.WithCacheLogger(logger.Named("files")),
		workload.WithSynthesisHook(m.ObserveSynthesis),
	)
}

func newServer(
	cfg *config.Config,
	logger *zap.Logger,
	m *metrics.Metrics,
	p pool.Pool,
	r *reactor.Reactor,
	files *workload.FileCache,
) (*server.Server, error) {
	return server.New(server.Params{
		Addr:              cfg.Addr(),
		MetricsAddr:       cfg.MetricsAddr,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ShutdownGrace:     cfg.ShutdownGrace,
		Defaults:          cfg.Workload,
		Pool:              p,
		Reactor:           r,
		Files:             files,
		Logger:            logger,
		Observer:          m,
		Metrics:           m.Handler(),
	})
}
