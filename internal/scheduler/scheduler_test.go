package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNew_RejectsBadSchedule(t *testing.T) {
	t.Parallel()

	noop := func(context.Context) {}
	if _, err := New(context.Background(), "", noop, zerolog.Nop()); err == nil {
		t.Fatalf("New(empty) error = nil")
	}
	if _, err := New(context.Background(), "every now and then", noop, zerolog.Nop()); err == nil {
		t.Fatalf("New(garbage) error = nil")
	}
	if _, err := New(context.Background(), "@every 1h", nil, zerolog.Nop()); err == nil {
		t.Fatalf("New(nil job) error = nil")
	}
}

func TestRun_FiresJobUntilCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	s, err := New(ctx, "@every 1s", func(context.Context) {
		if runs.Add(1) >= 1 {
			cancel()
		}
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("scheduler did not stop after the job cancelled it")
	}
	if runs.Load() < 1 {
		t.Fatalf("runs = %d, want at least 1", runs.Load())
	}
}
