package workload

import (
	"errors"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: DefaultConfig()},
		{name: "zeros", cfg: Config{}},
		{name: "negative iterations", cfg: Config{CPUIterations: -1}, wantErr: true},
		{name: "negative delay", cfg: Config{IdleDelay: -time.Millisecond}, wantErr: true},
		{name: "negative length", cfg: Config{FileLength: -10}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("wantErr=%v, got %v", tt.wantErr, err)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.CPUIterations != 10000 || cfg.IdleDelay != 0 || cfg.FileLength != 102400 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
