package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/tgcourier/internal/core"
	"github.com/flemzord/tgcourier/internal/delivery"
	"gopkg.in/yaml.v3"
)

// Service names published during Provision.
const (
	ServiceDeliverer = "delivery.deliverer"
	ServiceChannel   = "channel.telegram"
)

const startupProbeTimeout = 15 * time.Second

func init() {
	core.RegisterModule(&Telegram{})
}

// Compile-time interface guards.
var (
	_ core.Configurable  = (*Telegram)(nil)
	_ core.Provisioner   = (*Telegram)(nil)
	_ core.Validator     = (*Telegram)(nil)
	_ core.Starter       = (*Telegram)(nil)
	_ core.Stopper       = (*Telegram)(nil)
	_ core.Reloader      = (*Telegram)(nil)
	_ core.HealthChecker = (*Telegram)(nil)
)

// Telegram is the outbound Telegram channel. It owns the Bot API client and
// the process-wide Deliverer that every sender shares.
type Telegram struct {
	config    Config
	client    *Client
	deliverer *delivery.Deliverer
	mode      delivery.Mode
	logger    *slog.Logger

	mu      sync.RWMutex
	botUser *User
}

// ModuleInfo implements core.Module.
func (t *Telegram) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:    "channel.telegram",
		New:   func() core.Module { return &Telegram{} },
		After: []core.ModuleID{"telemetry.otel"},
	}
}

// Configure implements core.Configurable.
func (t *Telegram) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner. It builds the client and the
// Deliverer and publishes them in the service registry.
func (t *Telegram) Provision(ctx *core.AppContext) error {
	t.config.defaults()
	t.logger = ctx.Logger
	t.client = NewClient(t.config.Token, t.config.APIURL, t.config.RequestTimeout)
	t.deliverer = delivery.New(NewTransport(t.client), t.config.Delivery, t.logger)

	ctx.RegisterService(ServiceDeliverer, t.deliverer)
	ctx.RegisterService(ServiceChannel, t)
	return nil
}

// Validate implements core.Validator.
func (t *Telegram) Validate() error {
	if t.config.Token == "" {
		return errors.New("telegram: token is required")
	}
	if err := t.config.validate(); err != nil {
		return err
	}
	mode, err := delivery.ParseMode(t.config.DefaultMode)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.mode = mode
	t.mu.Unlock()
	return nil
}

// Reload implements core.Reloader. Only default_mode is applied live; the
// client and the Deliverer keep their settings until the next restart.
func (t *Telegram) Reload(ctx *core.AppContext) error {
	node, ok := ctx.ModuleConfig("channel.telegram")
	if !ok {
		return errors.New("telegram: configuration section removed")
	}
	var next Config
	if err := node.Decode(&next); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	next.defaults()
	if err := next.validate(); err != nil {
		return err
	}
	mode, err := delivery.ParseMode(next.DefaultMode)
	if err != nil {
		return err
	}

	if next.Token != t.config.Token || next.APIURL != t.config.APIURL ||
		next.RequestTimeout != t.config.RequestTimeout || !next.Delivery.Equal(t.config.Delivery) {
		t.logger.Warn("telegram: connection and delivery settings change on restart only")
	}

	t.mu.Lock()
	old := t.mode
	t.mode = mode
	t.mu.Unlock()

	if old != mode {
		t.logger.Info("telegram: default mode changed", "from", old, "to", mode)
	}
	return nil
}

// Start implements core.Starter. It checks the token with getMe so a bad
// configuration fails at startup rather than on the first send.
func (t *Telegram) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), startupProbeTimeout)
	defer cancel()

	user, err := t.client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram: getMe failed (check token): %w", err)
	}

	t.mu.Lock()
	t.botUser = user
	t.mu.Unlock()

	cfg := t.deliverer.Config()
	t.logger.Info("telegram bot authenticated",
		"id", user.ID,
		"username", user.Username,
		"per_second", cfg.PerSecond,
		"per_minute", cfg.PerMinute,
		"max_text_length", cfg.MaxTextLength,
	)
	return nil
}

// Stop implements core.Stopper.
func (t *Telegram) Stop(_ context.Context) error {
	t.logger.Info("telegram channel stopping", "stats", t.deliverer.Stats())
	return nil
}

// Deliverer returns the shared Deliverer.
func (t *Telegram) Deliverer() *delivery.Deliverer { return t.deliverer }

// DefaultMode returns the rich-text mode used when a caller specifies none.
func (t *Telegram) DefaultMode() delivery.Mode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

// BotUser returns the identity reported by the last successful getMe.
func (t *Telegram) BotUser() *User {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.botUser
}

// HealthCheck reports whether the Bot API accepts the token.
func (t *Telegram) HealthCheck(ctx context.Context) error {
	user, err := t.client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram: health check: %w", err)
	}
	t.mu.Lock()
	t.botUser = user
	t.mu.Unlock()
	return nil
}
