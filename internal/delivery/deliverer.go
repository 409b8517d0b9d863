// Package delivery sends outbound chat messages completely and in order
// while staying inside the transport's length limit, markup rules and
// send-rate ceilings. It recovers from throttling, oversized chunks,
// rejected markup and transient network failures.
package delivery

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/flemzord/tgcourier/internal/delivery"

// SendRequest describes one outbound message. Link previews are disabled
// unless ShowPreview is set.
type SendRequest struct {
	ChatID      int64           `json:"chat_id"`
	Text        string          `json:"text"`
	Mode        Mode            `json:"-"`
	Markup      *InlineKeyboard `json:"markup,omitempty"`
	ReplyTo     int             `json:"reply_to,omitempty"`
	Silent      bool            `json:"silent,omitempty"`
	ShowPreview bool            `json:"show_preview,omitempty"`
}

// EditRequest replaces the text of an existing message.
type EditRequest struct {
	ChatID      int64           `json:"chat_id"`
	MessageID   int             `json:"message_id"`
	Text        string          `json:"text"`
	Mode        Mode            `json:"-"`
	Markup      *InlineKeyboard `json:"markup,omitempty"`
	ShowPreview bool            `json:"show_preview,omitempty"`
}

// Outcome lists the remote ids of the messages created by a send, in
// chunk order. PlainFallback reports that rejected markup forced the send
// to continue as plain text.
type Outcome struct {
	MessageIDs    []int `json:"message_ids"`
	PlainFallback bool  `json:"plain_fallback,omitempty"`
}

// Deliverer is the entry point for sending and editing messages.
// It is safe for concurrent use; all calls share one RateLimiter.
type Deliverer struct {
	cfg     Config
	limiter *RateLimiter
	exec    *executor
	logger  *slog.Logger
	tracer  trace.Tracer
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a Deliverer sending through t. Zero fields of cfg take
// their defaults.
func New(t Transport, cfg Config, logger *slog.Logger) *Deliverer {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	tracer := otel.Tracer(tracerName)
	limiter := NewRateLimiter(cfg.PerSecond, cfg.PerMinute)
	return &Deliverer{
		cfg:     cfg,
		limiter: limiter,
		logger:  logger,
		tracer:  tracer,
		sleep:   sleepCtx,
		exec: &executor{
			transport: t,
			limiter:   limiter,
			cfg:       cfg,
			logger:    logger,
			tracer:    tracer,
			sleep:     sleepCtx,
		},
	}
}

// Config returns the effective configuration, defaults included.
func (d *Deliverer) Config() Config { return d.cfg }

// Stats returns a snapshot of the delivery counters.
func (d *Deliverer) Stats() StatsSnapshot { return d.limiter.Stats() }

// Send escapes and splits req.Text, then delivers every chunk in order.
// On failure the returned Outcome still lists the chunks that were sent and
// the error is a *DeliveryError.
func (d *Deliverer) Send(ctx context.Context, req SendRequest) (Outcome, error) {
	if req.ChatID == 0 {
		return Outcome{}, ErrInvalidTarget
	}
	if strings.TrimSpace(req.Text) == "" {
		return Outcome{}, ErrEmptyText
	}
	if err := req.Markup.validate(); err != nil {
		return Outcome{}, err
	}

	ctx, span := d.tracer.Start(ctx, "delivery.send", trace.WithAttributes(
		attribute.Int64("chat.id", req.ChatID),
		attribute.String("mode", req.Mode.String()),
	))
	defer span.End()

	text := Escape(req.Text, req.Mode)
	pieces := split(text, d.cfg.MaxTextLength, Escape(TruncationMarker, req.Mode))
	span.SetAttributes(attribute.Int("chunk.count", len(pieces)))

	st := newDispatch(req, pieces)
	for st.hasWork() {
		p := st.popFront()
		if len(st.ids) > 0 {
			if err := d.sleep(ctx, d.cfg.ChunkDelay); err != nil {
				return d.fail(span, st, err)
			}
		}

		id, replaced, err := d.exec.deliver(ctx, st, p)
		if err != nil {
			return d.fail(span, st, err)
		}
		if replaced {
			continue
		}
		st.ids = append(st.ids, id)
	}

	d.limiter.record(func(s *StatsSnapshot) { s.Sends++ })
	d.logger.Debug("delivery: message sent",
		"chat_id", req.ChatID,
		"chunks", len(st.ids),
		"plain_fallback", st.fellBack,
	)
	return Outcome{MessageIDs: st.ids, PlainFallback: st.fellBack}, nil
}

func (d *Deliverer) fail(span trace.Span, st *dispatch, err error) (Outcome, error) {
	d.limiter.record(func(s *StatsSnapshot) { s.Failures++ })
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	d.logger.Error("delivery: send failed",
		"chat_id", st.req.ChatID,
		"delivered", len(st.ids),
		"remaining", len(st.queue)+1,
		"error", err,
	)
	out := Outcome{MessageIDs: st.ids, PlainFallback: st.fellBack}
	return out, &DeliveryError{
		Delivered:  len(st.ids),
		MessageIDs: slices.Clone(st.ids),
		Err:        err,
	}
}

// Edit replaces the text of an existing message. Edits cannot be split, so
// text over the limit is truncated. A "not modified" answer counts as
// success.
func (d *Deliverer) Edit(ctx context.Context, req EditRequest) (bool, error) {
	if req.ChatID == 0 || req.MessageID == 0 {
		return false, ErrInvalidTarget
	}
	if strings.TrimSpace(req.Text) == "" {
		return false, ErrEmptyText
	}
	if err := req.Markup.validate(); err != nil {
		return false, err
	}

	ctx, span := d.tracer.Start(ctx, "delivery.edit", trace.WithAttributes(
		attribute.Int64("chat.id", req.ChatID),
		attribute.Int("message.id", req.MessageID),
		attribute.String("mode", req.Mode.String()),
	))
	defer span.End()

	text := Escape(req.Text, req.Mode)
	if runeLen(text) > d.cfg.MaxTextLength {
		text = truncate(text, d.cfg.MaxTextLength, Escape(TruncationMarker, req.Mode))
		d.limiter.record(func(s *StatsSnapshot) { s.Truncations++ })
		d.logger.Warn("delivery: edit text truncated",
			"chat_id", req.ChatID,
			"message_id", req.MessageID,
			"limit", d.cfg.MaxTextLength,
		)
	}
	plain := req.Text
	if runeLen(plain) > d.cfg.MaxTextLength {
		plain = truncatePlain(plain, d.cfg.MaxTextLength)
	}

	err := d.exec.edit(ctx, EditParams{
		ChatID:         req.ChatID,
		MessageID:      req.MessageID,
		Text:           text,
		Mode:           req.Mode,
		Markup:         req.Markup,
		DisablePreview: !req.ShowPreview,
	}, plain)
	if err != nil {
		d.limiter.record(func(s *StatsSnapshot) { s.Failures++ })
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Error("delivery: edit failed",
			"chat_id", req.ChatID,
			"message_id", req.MessageID,
			"error", err,
		)
		return false, err
	}

	d.limiter.record(func(s *StatsSnapshot) { s.Edits++ })
	return true, nil
}
