package worker

import (
	"context"
	"sync"
	"testing"
	"time"
)

// counter records calls from a worker goroutine.
type counter struct {
	mu    sync.Mutex
	calls int
}

func (c *counter) inc() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.calls
}

func (c *counter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// runFor runs fn until d has elapsed and waits for it to return.
func runFor(t *testing.T, d time.Duration, fn func(ctx context.Context)) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		fn(ctx)
		close(done)
	}()

	time.Sleep(d)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

func TestEvery_RunNow(t *testing.T) {
	var c counter
	runFor(t, 30*time.Millisecond, func(ctx context.Context) {
		every(ctx, "test", time.Hour, true, func(context.Context) { c.inc() })
	})
	if c.count() != 1 {
		t.Errorf("calls = %d, want 1 immediate call", c.count())
	}
}

func TestEvery_WaitsForFirstTick(t *testing.T) {
	var c counter
	runFor(t, 30*time.Millisecond, func(ctx context.Context) {
		every(ctx, "test", time.Hour, false, func(context.Context) { c.inc() })
	})
	if c.count() != 0 {
		t.Errorf("calls = %d, want 0 before the first tick", c.count())
	}
}

func TestEvery_Ticks(t *testing.T) {
	var c counter
	runFor(t, 170*time.Millisecond, func(ctx context.Context) {
		every(ctx, "test", 50*time.Millisecond, false, func(context.Context) { c.inc() })
	})
	if c.count() < 2 {
		t.Errorf("calls = %d, want at least 2 ticks", c.count())
	}
}
