package exchange

import (
	"context"
	"testing"
	"time"
)

// fakeClock drives a Limiter without real sleeping.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.now = c.now.Add(d)
	return nil
}

func TestLimiter_SpacesCalls(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	l := NewLimiter(1) // 1 rpm → 60s between calls
	l.now = clock.Now
	l.sleep = clock.Sleep

	ctx := context.Background()
	var dispatches []time.Time
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatal(err)
		}
		dispatches = append(dispatches, clock.now)
		// Simulate a fast call: 5 seconds of work.
		clock.now = clock.now.Add(5 * time.Second)
	}

	for i := 1; i < len(dispatches); i++ {
		gap := dispatches[i].Sub(dispatches[i-1])
		if gap < 60*time.Second {
			t.Errorf("call %d dispatched %s after call %d, want >= 60s", i+1, gap, i)
		}
	}
}

func TestLimiter_FirstCallImmediate(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	l := NewLimiter(5)
	l.now = clock.Now
	l.sleep = func(_ context.Context, d time.Duration) error {
		t.Errorf("first call slept %s", d)
		return nil
	}
	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestLimiter_DisabledWhenZero(t *testing.T) {
	l := NewLimiter(0)
	l.sleep = func(_ context.Context, d time.Duration) error {
		t.Errorf("disabled limiter slept %s", d)
		return nil
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l := NewLimiter(1)
	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := l.Wait(ctx); err == nil {
		t.Error("expected context error on second gated wait")
	}
}
