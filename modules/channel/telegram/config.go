package telegram

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/flemzord/tgcourier/internal/delivery"
)

// tokenPattern matches the Telegram bot token format: <digits>:<alphanum+dash>.
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// maxTextLength is the Bot API limit for a message text.
const maxTextLength = 4096

// Config holds the Telegram channel configuration.
type Config struct {
	Token          string          `yaml:"token"`
	APIURL         string          `yaml:"api_url"`
	RequestTimeout time.Duration   `yaml:"request_timeout"`
	DefaultMode    string          `yaml:"default_mode"`
	Delivery       delivery.Config `yaml:"delivery"`
}

// defaults applies default values to unset fields. Delivery defaults are
// applied by delivery.New.
func (c *Config) defaults() {
	if c.APIURL == "" {
		c.APIURL = "https://api.telegram.org"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.DefaultMode == "" {
		c.DefaultMode = "none"
	}
}

// validate checks configuration field constraints beyond basic presence checks.
// It is called from Telegram.Validate after defaults have been applied.
func (c *Config) validate() error {
	if c.Token != "" && !tokenPattern.MatchString(c.Token) {
		return errors.New("telegram: token format invalid (expected <bot_id>:<hash>)")
	}

	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("telegram: api_url must be a valid http/https URL, got %q", c.APIURL)
		}
	}

	if c.RequestTimeout < time.Second || c.RequestTimeout > 5*time.Minute {
		return fmt.Errorf("telegram: request_timeout must be 1s-5m, got %s", c.RequestTimeout)
	}

	if _, err := delivery.ParseMode(c.DefaultMode); err != nil {
		return fmt.Errorf("telegram: default_mode: %w", err)
	}

	if c.Delivery.MaxTextLength > maxTextLength {
		return fmt.Errorf("telegram: delivery.max_text_length must be at most %d, got %d", maxTextLength, c.Delivery.MaxTextLength)
	}
	if err := c.Delivery.Validate(); err != nil {
		return fmt.Errorf("telegram: delivery: %w", err)
	}

	return nil
}
