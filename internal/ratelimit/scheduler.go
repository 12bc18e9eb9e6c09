// Package ratelimit spaces out calls to shared public services.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Scheduler enforces a minimum interval between consecutive events. The first
// Wait returns immediately. Time comes from the injected clock so tests can
// drive it with a fake.
type Scheduler struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	limiter  *rate.Limiter
	interval time.Duration
}

// NewScheduler returns a scheduler allowing one event per interval.
// A non-positive interval disables waiting.
func NewScheduler(clock clockwork.Clock, interval time.Duration) *Scheduler {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Scheduler{
		clock:    clock,
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
	}
}

// Interval returns the configured spacing.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Wait blocks until the next slot is available or ctx is done. A cancelled
// wait gives its slot back.
func (s *Scheduler) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	now := s.clock.Now()
	r := s.limiter.ReserveN(now, 1)
	s.mu.Unlock()

	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}

	select {
	case <-s.clock.After(delay):
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		r.CancelAt(s.clock.Now())
		s.mu.Unlock()
		return ctx.Err()
	}
}

// Sleep pauses for d on the scheduler's clock, returning early if ctx is done.
// It is used for one-off pauses such as the gap after a batch of scopes.
func Sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
