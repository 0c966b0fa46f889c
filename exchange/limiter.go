package exchange

import (
	"context"
	"sync"
	"time"
)

// Limiter spaces external calls at least 60/MaxRPM seconds apart, process
// wide. All jobs share one Limiter; the last-call timestamp is guarded by a
// mutex so concurrent jobs cannot interleave their update of it.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time

	// now and sleep are swappable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLimiter returns a Limiter allowing at most maxRPM calls per minute.
// maxRPM <= 0 disables the gate.
func NewLimiter(maxRPM int) *Limiter {
	l := &Limiter{now: time.Now, sleep: sleepCtx}
	if maxRPM > 0 {
		l.interval = time.Minute / time.Duration(maxRPM)
	}
	return l
}

// Wait blocks until the minimum interval since the previous call has
// elapsed, then records the new dispatch timestamp.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.interval > 0 && !l.last.IsZero() {
		if wait := l.interval - l.now().Sub(l.last); wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	l.last = l.now()
	return nil
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
