package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// pending is a queued chunk and the retries it has already used.
type pending struct {
	chunk   Chunk
	retries int
}

// dispatch is the per-call state of a send. The work queue replaces the
// chunk list: a re-split pushes its halves back to the front.
type dispatch struct {
	req      SendRequest
	mode     Mode
	fellBack bool
	queue    []pending
	ids      []int
}

func newDispatch(req SendRequest, pieces []string) *dispatch {
	st := &dispatch{req: req, mode: req.Mode}
	for i, text := range pieces {
		st.queue = append(st.queue, pending{chunk: Chunk{Text: text, Index: i, First: i == 0}})
	}
	return st
}

func (st *dispatch) hasWork() bool { return len(st.queue) > 0 }

func (st *dispatch) popFront() pending {
	p := st.queue[0]
	st.queue = st.queue[1:]
	return p
}

func (st *dispatch) pushFront(items ...pending) {
	st.queue = append(items, st.queue...)
}

// fallBack switches the request to plain text. The current chunk and
// everything still queued are replaced by their unescaped form.
func (st *dispatch) fallBack(p *pending) {
	from := st.mode
	plain := func(c Chunk) Chunk {
		return Chunk{Text: Unescape(c.Text, from), Index: c.Index, First: c.First}
	}
	p.chunk = plain(p.chunk)
	for i := range st.queue {
		st.queue[i].chunk = plain(st.queue[i].chunk)
	}
	st.mode = ModeNone
	st.fellBack = true
}

func (st *dispatch) params(c Chunk) SendParams {
	p := SendParams{
		ChatID:              st.req.ChatID,
		Text:                c.Text,
		Mode:                st.mode,
		DisableNotification: st.req.Silent,
		DisablePreview:      !st.req.ShowPreview,
	}
	if c.First {
		p.Markup = st.req.Markup
		p.ReplyTo = st.req.ReplyTo
	}
	return p
}

// executor drives a single transport call to a terminal state.
type executor struct {
	transport Transport
	limiter   *RateLimiter
	cfg       Config
	logger    *slog.Logger
	tracer    trace.Tracer
	sleep     func(ctx context.Context, d time.Duration) error
}

// deliver sends one chunk. It returns the remote message id, or
// replaced=true when the chunk was split and its halves queued instead.
func (e *executor) deliver(ctx context.Context, st *dispatch, p pending) (int, bool, error) {
	ctx, span := e.tracer.Start(ctx, "delivery.chunk", trace.WithAttributes(
		attribute.Int("chunk.index", p.chunk.Index),
		attribute.Int("chunk.length", runeLen(p.chunk.Text)),
	))
	defer span.End()

	for attempt := 1; ; attempt++ {
		if err := e.limiter.Acquire(ctx); err != nil {
			return 0, false, err
		}

		id, err := e.transport.SendMessage(ctx, st.params(p.chunk))
		if err == nil {
			e.limiter.record(func(s *StatsSnapshot) { s.Chunks++ })
			span.SetAttributes(attribute.Int("attempts", attempt))
			return id, false, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, false, ctxErr
		}

		te := Classify(err)
		span.AddEvent("transport_error", trace.WithAttributes(attribute.String("error.kind", te.Kind.String())))

		switch te.Kind {
		case KindRateLimited:
			if err := e.throttle(ctx, st.req.ChatID, te); err != nil {
				return 0, false, err
			}

		case KindTooLong:
			if !e.spend(&p.retries) {
				return 0, false, exhausted(te)
			}
			left, right, ok := SplitHalf(p.chunk.Text, e.cfg.SplitSearchWindow)
			if !ok {
				return 0, false, te
			}
			st.pushFront(
				pending{chunk: Chunk{Text: left, Index: p.chunk.Index, First: p.chunk.First}, retries: p.retries},
				pending{chunk: Chunk{Text: right, Index: p.chunk.Index}, retries: p.retries},
			)
			e.limiter.record(func(s *StatsSnapshot) { s.Resplits++ })
			e.logger.Warn("delivery: chunk rejected as too long, re-split",
				"chat_id", st.req.ChatID,
				"chunk", p.chunk.Index,
				"length", runeLen(p.chunk.Text),
			)
			return 0, true, nil

		case KindUnparsableMarkup:
			if st.fellBack || st.mode == ModeNone {
				return 0, false, te
			}
			if !e.spend(&p.retries) {
				return 0, false, exhausted(te)
			}
			e.logger.Warn("delivery: markup rejected, falling back to plain text",
				"chat_id", st.req.ChatID,
				"chunk", p.chunk.Index,
				"mode", st.mode.String(),
				"error", te.Err,
			)
			st.fallBack(&p)
			e.limiter.record(func(s *StatsSnapshot) { s.MarkupFallbacks++ })

		case KindNetwork:
			if !e.spend(&p.retries) {
				return 0, false, exhausted(te)
			}
			if err := e.backoff(ctx, st.req.ChatID, p.retries, te); err != nil {
				return 0, false, err
			}

		default:
			return 0, false, te
		}
	}
}

// edit replaces a message's text. plain is sent with ModeNone if the
// remote side rejects the markup of p.Text.
func (e *executor) edit(ctx context.Context, p EditParams, plain string) error {
	ctx, span := e.tracer.Start(ctx, "delivery.chunk", trace.WithAttributes(
		attribute.Int("message.id", p.MessageID),
		attribute.Int("chunk.length", runeLen(p.Text)),
	))
	defer span.End()

	retries := 0
	fellBack := false
	for {
		if err := e.limiter.Acquire(ctx); err != nil {
			return err
		}

		err := e.transport.EditMessageText(ctx, p)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		te := Classify(err)
		span.AddEvent("transport_error", trace.WithAttributes(attribute.String("error.kind", te.Kind.String())))

		switch te.Kind {
		case KindNotModified:
			e.limiter.record(func(s *StatsSnapshot) { s.NotModified++ })
			return nil

		case KindRateLimited:
			if err := e.throttle(ctx, p.ChatID, te); err != nil {
				return err
			}

		case KindUnparsableMarkup:
			if fellBack || p.Mode == ModeNone {
				return te
			}
			if !e.spend(&retries) {
				return exhausted(te)
			}
			e.logger.Warn("delivery: edit markup rejected, falling back to plain text",
				"chat_id", p.ChatID,
				"message_id", p.MessageID,
				"error", te.Err,
			)
			p.Text = plain
			p.Mode = ModeNone
			fellBack = true
			e.limiter.record(func(s *StatsSnapshot) { s.MarkupFallbacks++ })

		case KindNetwork:
			if !e.spend(&retries) {
				return exhausted(te)
			}
			if err := e.backoff(ctx, p.ChatID, retries, te); err != nil {
				return err
			}

		default:
			return te
		}
	}
}

// throttle waits out a server-requested pause. It never counts as a retry.
func (e *executor) throttle(ctx context.Context, chatID int64, te *TransportError) error {
	wait := te.RetryAfter + e.cfg.RetryMargin
	e.limiter.record(func(s *StatsSnapshot) { s.Throttled++ })
	e.logger.Warn("delivery: throttled by transport",
		"chat_id", chatID,
		"retry_after", te.RetryAfter,
		"wait", wait,
	)
	return e.sleep(ctx, wait)
}

func (e *executor) backoff(ctx context.Context, chatID int64, attempt int, te *TransportError) error {
	wait := backoffDelay(e.cfg.BaseBackoff, e.cfg.MaxBackoff, attempt)
	e.logger.Warn("delivery: transport unavailable, backing off",
		"chat_id", chatID,
		"attempt", attempt,
		"wait", wait,
		"error", te.Err,
	)
	return e.sleep(ctx, wait)
}

// spend consumes one retry slot, reporting false once the budget is used.
func (e *executor) spend(retries *int) bool {
	if *retries >= e.cfg.Retries() {
		return false
	}
	*retries++
	e.limiter.record(func(s *StatsSnapshot) { s.Retries++ })
	return true
}

// backoffDelay returns base * 2^(attempt-1), capped at maxDelay.
func backoffDelay(base, maxDelay time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt && d < maxDelay; i++ {
		d *= 2
	}
	return min(d, maxDelay)
}

func exhausted(te *TransportError) error {
	return fmt.Errorf("%w: %w", ErrRetriesExhausted, te)
}
