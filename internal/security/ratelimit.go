package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a request exceeds the rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// Request kinds understood by RateLimiter.
const (
	KindAuth = "auth"
	KindAPI  = "api"
)

// RateLimitConfig holds per-minute ceilings for admin requests.
type RateLimitConfig struct {
	AuthPerMin int `yaml:"auth_per_min"`
	APIPerMin  int `yaml:"api_per_min"`
}

func rateLimitConfigDefaults() RateLimitConfig {
	return RateLimitConfig{
		AuthPerMin: 60,
		APIPerMin:  120,
	}
}

// RateLimiter rejects admin requests over a sliding one-minute window.
// Unlike the outbound delivery limiter it never waits: callers answer 429.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	window time.Duration
	limit  int
	events []time.Time
}

// NewRateLimiter creates a rate limiter with the given config.
// Zero-value fields in cfg are replaced with defaults.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	defaults := rateLimitConfigDefaults()
	if cfg.AuthPerMin <= 0 {
		cfg.AuthPerMin = defaults.AuthPerMin
	}
	if cfg.APIPerMin <= 0 {
		cfg.APIPerMin = defaults.APIPerMin
	}

	return &RateLimiter{
		now: time.Now,
		buckets: map[string]*bucket{
			KindAuth: {window: time.Minute, limit: cfg.AuthPerMin},
			KindAPI:  {window: time.Minute, limit: cfg.APIPerMin},
		},
	}
}

// Allow records one event of kind, or returns ErrRateLimited when the
// window is full. Unknown kinds are never limited. A nil limiter allows all.
func (rl *RateLimiter) Allow(kind string) error {
	if rl == nil {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[kind]
	if !ok {
		return nil
	}

	now := rl.now()
	b.evict(now)

	if len(b.events) >= b.limit {
		return ErrRateLimited
	}
	b.events = append(b.events, now)
	return nil
}

// evict removes events outside the sliding window.
func (b *bucket) evict(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.events) && b.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.events = b.events[i:]
	}
}
