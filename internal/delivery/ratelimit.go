package delivery

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces sliding-window ceilings on outbound sends shared by
// every caller of a Deliverer. The capacity check and the recording of a
// send happen under one lock, so two callers can never both take the last
// free slot. The delivery counters live under the same lock.
type RateLimiter struct {
	mu      sync.Mutex
	windows []*window
	stats   StatsSnapshot
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

type window struct {
	span   time.Duration
	limit  int
	events []time.Time
}

// NewRateLimiter creates a limiter allowing perSecond sends per second and
// perMinute sends per minute. A ceiling <= 0 disables that window.
func NewRateLimiter(perSecond, perMinute int) *RateLimiter {
	rl := &RateLimiter{
		now:   time.Now,
		sleep: sleepCtx,
	}
	if perSecond > 0 {
		rl.windows = append(rl.windows, &window{span: time.Second, limit: perSecond})
	}
	if perMinute > 0 {
		rl.windows = append(rl.windows, &window{span: time.Minute, limit: perMinute})
	}
	return rl
}

// Acquire blocks until a send is permitted and records it.
// It returns ctx.Err() if ctx ends while waiting.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rl.mu.Lock()
		wait := rl.reserve(rl.now())
		if wait > 0 {
			rl.stats.LimiterWaits++
		}
		rl.mu.Unlock()

		if wait <= 0 {
			return nil
		}
		if err := rl.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// reserve records a send at now when every window has room, returning 0.
// Otherwise it records nothing and returns how long until the fullest
// window frees a slot. Must be called with mu held.
func (rl *RateLimiter) reserve(now time.Time) time.Duration {
	var wait time.Duration
	for _, w := range rl.windows {
		w.evict(now)
		if len(w.events) < w.limit {
			continue
		}
		oldest := w.events[len(w.events)-w.limit]
		if d := w.span - now.Sub(oldest); d > wait {
			wait = d
		}
	}
	if wait > 0 {
		return wait
	}
	for _, w := range rl.windows {
		w.events = append(w.events, now)
	}
	return 0
}

// evict removes events that fell out of the window.
func (w *window) evict(now time.Time) {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(w.events) && !w.events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.events = append(w.events[:0], w.events[i:]...)
	}
}

// record applies fn to the counters under the limiter lock.
func (rl *RateLimiter) record(fn func(s *StatsSnapshot)) {
	rl.mu.Lock()
	fn(&rl.stats)
	rl.mu.Unlock()
}

// Stats returns a copy of the counters.
func (rl *RateLimiter) Stats() StatsSnapshot {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.stats
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
