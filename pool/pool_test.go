package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew_VariantSelection(t *testing.T) {
	runVariantTest(t, func(t *testing.T, v variantConfig) {
		p := mustNew(t, v.opts...)
		if p.Kind() != v.kind {
			t.Errorf("expected kind %s, got %s", v.kind, p.Kind())
		}
	}, 4)
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr error
	}{
		{"zero capacity", []Option{WithCapacity(0)}, ErrInvalidCapacity},
		{"capacity below -1", []Option{WithCapacity(-2)}, ErrInvalidCapacity},
		{"negative min idle", []Option{WithCapacity(4), WithMinIdle(-1)}, ErrInvalidConfig},
		{"min idle above capacity", []Option{WithCapacity(4), WithMinIdle(5)}, ErrInvalidConfig},
		{"zero idle timeout", []Option{WithCapacity(4), WithIdleTimeout(0)}, ErrInvalidConfig},
		{"unknown thread mode", []Option{WithThreadMode("green")}, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.opts...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if p != nil {
				t.Error("expected nil pool on error")
			}
		})
	}
}

func TestParseThreadMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ThreadMode
		wantErr bool
	}{
		{"kernel", ThreadKernel, false},
		{"fibers", ThreadFibers, false},
		{" Fibers ", ThreadFibers, false},
		{"virtual", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseThreadMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseThreadMode(%q): err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseThreadMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPool_RunsEveryTask(t *testing.T) {
	runVariantTest(t, func(t *testing.T, v variantConfig) {
		p := mustNew(t, v.opts...)

		const n = 200
		var ran atomic.Int64
		var wg sync.WaitGroup
		wg.Add(n)
		for range n {
			if err := p.Submit(func() {
				defer wg.Done()
				ran.Add(1)
			}); err != nil {
				t.Fatalf("Submit: %v", err)
			}
		}
		wg.Wait()

		if got := ran.Load(); got != n {
			t.Fatalf("expected %d tasks to run, got %d", n, got)
		}
		waitFor(t, time.Second, func() bool { return p.Stats().Completed == n })
		if s := p.Stats(); s.Submitted != n {
			t.Errorf("expected %d submitted, got %d", n, s.Submitted)
		}
	}, 4)
}

func TestPool_RejectsNilTask(t *testing.T) {
	runVariantTest(t, func(t *testing.T, v variantConfig) {
		p := mustNew(t, v.opts...)
		if err := p.Submit(nil); !errors.Is(err, ErrNilTask) {
			t.Fatalf("expected ErrNilTask, got %v", err)
		}
	}, 2)
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	runVariantTest(t, func(t *testing.T, v variantConfig) {
		p, err := New(v.opts...)
		if err != nil {
			t.Fatal(err)
		}
		if err := p.Shutdown(context.Background()); err != nil {
			t.Fatalf("Shutdown: %v", err)
		}

		if err := p.Submit(func() {}); !errors.Is(err, ErrPoolClosed) {
			t.Errorf("expected ErrPoolClosed from Submit, got %v", err)
		}
		if err := p.Shutdown(context.Background()); !errors.Is(err, ErrPoolClosed) {
			t.Errorf("expected ErrPoolClosed from second Shutdown, got %v", err)
		}
	}, 2)
}

func TestPool_ShutdownDrainsQueuedTasks(t *testing.T) {
	runVariantTest(t, func(t *testing.T, v variantConfig) {
		p, err := New(v.opts...)
		if err != nil {
			t.Fatal(err)
		}

		const n = 20
		var ran atomic.Int64
		for range n {
			_ = p.Submit(func() {
				time.Sleep(10 * time.Millisecond)
				ran.Add(1)
			})
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Shutdown(ctx); err != nil {
			t.Fatalf("Shutdown: %v", err)
		}
		if got := ran.Load(); got != n {
			t.Fatalf("expected all %d tasks to finish before Shutdown returned, got %d", n, got)
		}
	}, 2)
}

func TestPool_ShutdownTimeout(t *testing.T) {
	runVariantTest(t, func(t *testing.T, v variantConfig) {
		p, err := New(v.opts...)
		if err != nil {
			t.Fatal(err)
		}

		release := make(chan struct{})
		defer close(release)
		_ = p.Submit(func() { <-release })

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		err = p.Shutdown(ctx)
		if !errors.Is(err, ErrShutdownTimeout) {
			t.Fatalf("expected ErrShutdownTimeout, got %v", err)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected wrapped context.DeadlineExceeded, got %v", err)
		}
	}, 2)
}

func TestPool_PanicRecovery(t *testing.T) {
	var panics atomic.Int64
	onPanic := WithOnPanic(func(recovered any, stack []byte) {
		if recovered != "boom" {
			t.Errorf("unexpected recovered value %v", recovered)
		}
		if len(stack) == 0 {
			t.Error("expected a stack trace")
		}
		panics.Add(1)
	})

	runVariantTest(t, func(t *testing.T, v variantConfig) {
		panics.Store(0)
		p := mustNew(t, v.opts...)

		_ = p.Submit(func() { panic("boom") })

		done := make(chan struct{})
		if err := p.Submit(func() { close(done) }); err != nil {
			t.Fatalf("Submit after panic: %v", err)
		}
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("pool stopped serving after a task panicked")
		}
		waitFor(t, time.Second, func() bool { return panics.Load() == 1 })
	}, 1, onPanic)
}

func TestPool_Hooks(t *testing.T) {
	runVariantTest(t, func(t *testing.T, v variantConfig) {
		var started, ended atomic.Int64
		var sawRun atomic.Bool

		opts := append(v.opts,
			WithBeforeTaskStart(func() { started.Add(1) }),
			WithOnTaskEnd(func(wait, run time.Duration) {
				if run >= 20*time.Millisecond {
					sawRun.Store(true)
				}
				ended.Add(1)
			}),
		)
		p := mustNew(t, opts...)

		done := make(chan struct{})
		_ = p.Submit(func() {
			time.Sleep(20 * time.Millisecond)
			close(done)
		})
		<-done

		waitFor(t, time.Second, func() bool { return ended.Load() == 1 })
		if started.Load() != 1 {
			t.Errorf("expected 1 start hook call, got %d", started.Load())
		}
		if !sawRun.Load() {
			t.Error("expected run duration to cover the task's sleep")
		}
	}, 2)
}
