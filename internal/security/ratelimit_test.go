package security

import (
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{AuthPerMin: 2, APIPerMin: 1})
	rl.now = func() time.Time { return now }

	for i := range 2 {
		if err := rl.Allow(KindAuth); err != nil {
			t.Fatalf("auth %d: %v", i, err)
		}
	}
	if err := rl.Allow(KindAuth); !errors.Is(err, ErrRateLimited) {
		t.Errorf("third auth = %v, want ErrRateLimited", err)
	}

	// Buckets are independent.
	if err := rl.Allow(KindAPI); err != nil {
		t.Errorf("api: %v", err)
	}
	if err := rl.Allow("unknown"); err != nil {
		t.Errorf("unknown kind limited: %v", err)
	}

	now = now.Add(61 * time.Second)
	if err := rl.Allow(KindAuth); err != nil {
		t.Errorf("auth after window: %v", err)
	}
}

func TestRateLimiter_Defaults(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimitConfig{})
	if got := rl.buckets[KindAuth].limit; got != 60 {
		t.Errorf("auth limit = %d, want 60", got)
	}
	if got := rl.buckets[KindAPI].limit; got != 120 {
		t.Errorf("api limit = %d, want 120", got)
	}
}

func TestRateLimiter_NilAllowsAll(t *testing.T) {
	t.Parallel()

	var rl *RateLimiter
	if err := rl.Allow(KindAPI); err != nil {
		t.Errorf("nil limiter: %v", err)
	}
}
