package arr

import (
	"context"
	"sync"
	"time"
)

// Throttle applies a fixed delay before every request. It does not adapt to
// server responses.
type Throttle struct {
	mu    sync.Mutex
	delay time.Duration
}

// NewThrottle creates a throttle. A zero delay disables waiting.
func NewThrottle(delay time.Duration) *Throttle {
	return &Throttle{delay: delay}
}

// Wait blocks for the configured delay or until ctx is done. Concurrent
// callers are serialized so the delay applies between every request.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.delay <= 0 {
		return ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	timer := time.NewTimer(t.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Delay returns the configured delay.
func (t *Throttle) Delay() time.Duration {
	if t == nil {
		return 0
	}
	return t.delay
}
