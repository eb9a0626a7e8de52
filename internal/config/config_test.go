package config

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/utkarsh5026/poolserve/pool"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.ThreadMode != pool.ThreadKernel {
		t.Errorf("ThreadMode = %q, want kernel", cfg.ThreadMode)
	}
	if cfg.PoolCapacity != pool.UnboundedCapacity {
		t.Errorf("PoolCapacity = %d, want -1", cfg.PoolCapacity)
	}
	if cfg.PoolIdleTimeout != 60*time.Second {
		t.Errorf("PoolIdleTimeout = %s, want 60s", cfg.PoolIdleTimeout)
	}
	if cfg.Workload.CPUIterations != 10_000 || cfg.Workload.FileLength != 102_400 || cfg.Workload.IdleDelay != 0 {
		t.Errorf("unexpected workload defaults %+v", cfg.Workload)
	}
	if cfg.ShutdownGrace != 30*time.Second {
		t.Errorf("ShutdownGrace = %s, want 30s", cfg.ShutdownGrace)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
}

func TestLoad_Flags(t *testing.T) {
	cfg, err := Load([]string{"-p", "9000", "-t", "fibers", "-c", "200", "--pool-min-idle=10", "--idle-delay=250ms"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 9000 || cfg.ThreadMode != pool.ThreadFibers || cfg.PoolCapacity != 200 || cfg.PoolMinIdle != 10 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Workload.IdleDelay != 250*time.Millisecond {
		t.Errorf("IdleDelay = %s", cfg.Workload.IdleDelay)
	}
	if got := len(cfg.PoolOptions()); got != 5 {
		t.Errorf("PoolOptions returned %d options", got)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("SERVER_THREAD_SUPPORT", "fibers")
	t.Setenv("SERVER_POOL_CAPACITY", "16")
	t.Setenv("SERVER_SHUTDOWN_GRACE", "5s")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 7070 || cfg.ThreadMode != pool.ThreadFibers || cfg.PoolCapacity != 16 {
		t.Errorf("environment not applied: %+v", cfg)
	}
	if cfg.ShutdownGrace != 5*time.Second {
		t.Errorf("ShutdownGrace = %s", cfg.ShutdownGrace)
	}

	// Flags take precedence over the environment.
	cfg, err = Load([]string{"--port", "6060"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 6060 {
		t.Errorf("Port = %d, want flag value 6060", cfg.Port)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero capacity", []string{"-c", "0"}},
		{"capacity below sentinel", []string{"-c", "-5"}},
		{"min idle above capacity", []string{"-c", "4", "--pool-min-idle", "5"}},
		{"zero idle timeout", []string{"-c", "4", "--pool-idle-timeout", "0s"}},
		{"unknown thread mode", []string{"-t", "green"}},
		{"bad port", []string{"-p", "70000"}},
		{"no reactor loops", []string{"--reactor-loops", "0"}},
		{"negative file length", []string{"--file-length", "-1"}},
		{"negative iterations", []string{"--cpu-iterations", "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLoad_Help(t *testing.T) {
	if _, err := Load([]string{"--help"}); !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("expected pflag.ErrHelp, got %v", err)
	}
}

func TestLoad_UnknownFlag(t *testing.T) {
	if _, err := Load([]string{"--no-such-flag"}); err == nil {
		t.Fatal("expected an error for an unknown flag")
	}
}
