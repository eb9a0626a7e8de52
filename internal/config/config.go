// Package config loads poolserve's settings from flags and SERVER_*
// environment variables. Flags win over the environment, which wins over
// defaults.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/utkarsh5026/poolserve/internal/workload"
	"github.com/utkarsh5026/poolserve/pool"
)

// EnvPrefix is prepended to every environment variable, e.g. SERVER_PORT.
const EnvPrefix = "SERVER"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

const (
	keyPort              = "port"
	keyThreadSupport     = "thread-support"
	keyPoolCapacity      = "pool-capacity"
	keyPoolMinIdle       = "pool-min-idle"
	keyPoolIdleTimeout   = "pool-idle-timeout"
	keyPinCPUs           = "pin-cpus"
	keyReactorLoops      = "reactor-loops"
	keyCPUIterations     = "cpu-iterations"
	keyIdleDelay         = "idle-delay"
	keyFileLength        = "file-length"
	keyTempDir           = "temp-dir"
	keyShutdownGrace     = "shutdown-grace"
	keyReadHeaderTimeout = "read-header-timeout"
	keyMetricsAddr       = "metrics-addr"
	keyLogLevel          = "log-level"
	keyLogFormat         = "log-format"
)

// Config is the fully resolved process configuration.
type Config struct {
	Port              int
	ThreadMode        pool.ThreadMode
	PoolCapacity      int
	PoolMinIdle       int
	PoolIdleTimeout   time.Duration
	PinCPUs           bool
	ReactorLoops      int
	Workload          workload.Config
	TempDir           string
	ShutdownGrace     time.Duration
	ReadHeaderTimeout time.Duration
	MetricsAddr       string
	LogLevel          string
	LogFormat         string
}

// Addr is the workload listener address.
func (c *Config) Addr() string {
	return net.JoinHostPort("", strconv.Itoa(c.Port))
}

// PoolOptions translates the pool settings into pool options.
func (c *Config) PoolOptions() []pool.Option {
	return []pool.Option{
		pool.WithCapacity(c.PoolCapacity),
		pool.WithMinIdle(c.PoolMinIdle),
		pool.WithIdleTimeout(c.PoolIdleTimeout),
		pool.WithThreadMode(c.ThreadMode),
		pool.WithCPUPinning(c.PinCPUs),
	}
}

// NewFlagSet declares every flag with its default.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false

	fs.IntP(keyPort, "p", 8080, "TCP port for the workload listener")
	fs.StringP(keyThreadSupport, "t", string(pool.ThreadKernel), "unit kind: kernel (OS threads) or fibers (goroutines)")
	fs.IntP(keyPoolCapacity, "c", pool.UnboundedCapacity, "maximum pool units, -1 for unbounded")
	fs.Int(keyPoolMinIdle, 0, "bounded pool units kept alive while idle")
	fs.Duration(keyPoolIdleTimeout, pool.DefaultIdleTimeout, "idle time before a bounded unit above the floor retires")
	fs.Bool(keyPinCPUs, false, "pin kernel units to CPU cores")
	fs.Int(keyReactorLoops, 1, "event loops driving non-blocking writes")
	fs.Int(keyCPUIterations, workload.DefaultCPUIterations, "SHA-256 rounds per request")
	fs.Duration(keyIdleDelay, workload.DefaultIdleDelay, "idle wait per request")
	fs.Int(keyFileLength, workload.DefaultFileLength, "response body size in bytes")
	fs.String(keyTempDir, "", "parent directory for generated files (default system temp dir)")
	fs.Duration(keyShutdownGrace, 30*time.Second, "time allowed for in-flight requests on shutdown")
	fs.Duration(keyReadHeaderTimeout, 10*time.Second, "time allowed to read request headers")
	fs.String(keyMetricsAddr, "", "admin listener address for /metrics and /healthz, empty to disable")
	fs.String(keyLogLevel, "info", "log level: debug, info, warn, error")
	fs.String(keyLogFormat, "json", "log format: json or console")
	return fs
}

// Load parses args (without the program name) and the environment.
// It returns pflag.ErrHelp when -h or --help was given.
func Load(args []string) (*Config, error) {
	fs := NewFlagSet("poolserve")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return FromFlags(fs)
}

// FromFlags resolves an already parsed flag set against the environment.
func FromFlags(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("config: bind flags: %w", err)
	}

	mode, err := pool.ParseThreadMode(v.GetString(keyThreadSupport))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalid, keyThreadSupport, err)
	}

	cfg := &Config{
		Port:            v.GetInt(keyPort),
		ThreadMode:      mode,
		PoolCapacity:    v.GetInt(keyPoolCapacity),
		PoolMinIdle:     v.GetInt(keyPoolMinIdle),
		PoolIdleTimeout: v.GetDuration(keyPoolIdleTimeout),
		PinCPUs:         v.GetBool(keyPinCPUs),
		ReactorLoops:    v.GetInt(keyReactorLoops),
		Workload: workload.Config{
			CPUIterations: v.GetInt(keyCPUIterations),
			IdleDelay:     v.GetDuration(keyIdleDelay),
			FileLength:    v.GetInt(keyFileLength),
		},
		TempDir:           v.GetString(keyTempDir),
		ShutdownGrace:     v.GetDuration(keyShutdownGrace),
		ReadHeaderTimeout: v.GetDuration(keyReadHeaderTimeout),
		MetricsAddr:       v.GetString(keyMetricsAddr),
		LogLevel:          v.GetString(keyLogLevel),
		LogFormat:         v.GetString(keyLogFormat),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.Port >= 0 && c.Port <= 65535, "%s %d out of range", keyPort, c.Port)
	check(c.PoolCapacity > 0 || c.PoolCapacity == pool.UnboundedCapacity,
		"%s %d (want > 0 or %d)", keyPoolCapacity, c.PoolCapacity, pool.UnboundedCapacity)
	if c.PoolCapacity > 0 {
		check(c.PoolMinIdle >= 0 && c.PoolMinIdle <= c.PoolCapacity,
			"%s %d outside [0, %d]", keyPoolMinIdle, c.PoolMinIdle, c.PoolCapacity)
		check(c.PoolIdleTimeout > 0, "%s must be positive", keyPoolIdleTimeout)
	}
	check(c.ReactorLoops > 0, "%s %d must be positive", keyReactorLoops, c.ReactorLoops)
	check(c.ShutdownGrace >= 0, "%s must not be negative", keyShutdownGrace)
	check(c.ReadHeaderTimeout > 0, "%s must be positive", keyReadHeaderTimeout)
	if err := c.Workload.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
	}

	return errors.Join(errs...)
}
