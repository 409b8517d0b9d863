package app

import (
	"context"
	"fmt"

	"github.com/flemzord/tgcourier/internal/core"
	"github.com/flemzord/tgcourier/internal/delivery"
	"github.com/flemzord/tgcourier/modules/channel/telegram"
)

// Courier is a Deliverer loaded outside the long-running process, for
// one-shot CLI sends. Only the Telegram channel is loaded and it is never
// started, so no getMe probe or background work happens.
type Courier struct {
	app     *core.App
	channel *telegram.Telegram
}

// OpenCourier loads the Telegram channel from env.
func OpenCourier(env *Env) (*Courier, error) {
	application, err := env.Load([]string{channelModule})
	if err != nil {
		return nil, err
	}
	ch, err := core.Service[*telegram.Telegram](env.AppCtx, telegram.ServiceChannel)
	if err != nil {
		return nil, err
	}
	return &Courier{app: application, channel: ch}, nil
}

// Mode parses name, falling back to the channel's default mode when name
// is empty.
func (c *Courier) Mode(name string) (delivery.Mode, error) {
	if name == "" {
		return c.channel.DefaultMode(), nil
	}
	return delivery.ParseMode(name)
}

// Send delivers req through the shared Deliverer.
func (c *Courier) Send(ctx context.Context, req delivery.SendRequest) (delivery.Outcome, error) {
	out, err := c.channel.Deliverer().Send(ctx, req)
	if err != nil {
		return out, fmt.Errorf("send to chat %d: %w", req.ChatID, err)
	}
	return out, nil
}

// Edit replaces the text of an existing message.
func (c *Courier) Edit(ctx context.Context, req delivery.EditRequest) (bool, error) {
	changed, err := c.channel.Deliverer().Edit(ctx, req)
	if err != nil {
		return false, fmt.Errorf("edit message %d in chat %d: %w", req.MessageID, req.ChatID, err)
	}
	return changed, nil
}

// Stats returns the counters accumulated by this courier.
func (c *Courier) Stats() delivery.StatsSnapshot {
	return c.channel.Deliverer().Stats()
}

// Close releases the loaded modules.
func (c *Courier) Close() {
	c.app.Stop()
}
