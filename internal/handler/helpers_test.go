package handler

import (
	"sync"
	"testing"
	"time"

	"github.com/utkarsh5026/poolserve/internal/workload"
)

type observation struct {
	handler string
	outcome Outcome
	bytes   int64
}

// recordingObserver collects observations for assertions.
type recordingObserver struct {
	mu   sync.Mutex
	seen []observation
}

func (r *recordingObserver) ObserveRequest(handler string, outcome Outcome, _ time.Duration, bytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, observation{handler, outcome, bytes})
}

func (r *recordingObserver) last() (observation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.seen) == 0 {
		return observation{}, false
	}
	return r.seen[len(r.seen)-1], true
}

func newCache(t *testing.T) *workload.FileCache {
	t.Helper()
	c, err := workload.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func testDefaults() workload.Config {
	return workload.Config{CPUIterations: 10, IdleDelay: 0, FileLength: 2048}
}

func allDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
