package delivery

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the delivery policy. Zero values are replaced by defaults.
type Config struct {
	// MaxTextLength is the transport limit in characters. Default: 4096.
	MaxTextLength int `yaml:"max_text_length"`

	// MaxRetries bounds the counted retries per chunk. Unset means 3; an
	// explicit 0 disables counted retries.
	MaxRetries *int `yaml:"max_retries"`

	// PerSecond and PerMinute are the send ceilings. PerSecond defaults
	// to 30; PerMinute defaults to 0, which disables the minute window.
	PerSecond int `yaml:"per_second"`
	PerMinute int `yaml:"per_minute"`

	// RetryMargin is added to every server-requested throttling wait.
	RetryMargin time.Duration `yaml:"retry_margin"`

	BaseBackoff time.Duration `yaml:"base_backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`

	// ChunkDelay is the pause between chunks of one send.
	ChunkDelay time.Duration `yaml:"chunk_delay"`

	// SplitSearchWindow is how far from the midpoint a re-split looks for
	// a natural break, in characters.
	SplitSearchWindow int `yaml:"split_search_window"`
}

const defaultMaxRetries = 3

// Retries returns the effective retry budget per chunk.
func (c Config) Retries() int {
	if c.MaxRetries == nil {
		return defaultMaxRetries
	}
	return *c.MaxRetries
}

// Equal reports whether both configurations describe the same policy.
func (c Config) Equal(o Config) bool {
	a, b := c, o
	a.MaxRetries, b.MaxRetries = nil, nil
	return a == b && c.Retries() == o.Retries()
}

func (c *Config) defaults() {
	if c.MaxTextLength <= 0 {
		c.MaxTextLength = 4096
	}
	if c.MaxRetries == nil {
		n := defaultMaxRetries
		c.MaxRetries = &n
	}
	if c.PerSecond <= 0 {
		c.PerSecond = 30
	}
	if c.RetryMargin <= 0 {
		c.RetryMargin = 500 * time.Millisecond
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.ChunkDelay <= 0 {
		c.ChunkDelay = 100 * time.Millisecond
	}
	if c.SplitSearchWindow <= 0 {
		c.SplitSearchWindow = 200
	}
}

// Validate checks explicitly configured values. It is called before
// defaults are applied, so zero values are accepted.
func (c Config) Validate() error {
	var errs []error
	if c.MaxTextLength < 0 {
		errs = append(errs, fmt.Errorf("max_text_length must not be negative, got %d", c.MaxTextLength))
	}
	if c.MaxTextLength > 0 && c.MaxTextLength < 16 {
		errs = append(errs, fmt.Errorf("max_text_length %d is too small to hold a truncated message", c.MaxTextLength))
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must not be negative, got %d", *c.MaxRetries))
	}
	if c.PerSecond < 0 || c.PerMinute < 0 {
		errs = append(errs, errors.New("per_second and per_minute must not be negative"))
	}
	if c.BaseBackoff > 0 && c.MaxBackoff > 0 && c.MaxBackoff < c.BaseBackoff {
		errs = append(errs, fmt.Errorf("max_backoff (%s) must be >= base_backoff (%s)", c.MaxBackoff, c.BaseBackoff))
	}
	return errors.Join(errs...)
}
