package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/flemzord/tgcourier/internal/delivery"
)

// Compile-time interface guard.
var _ delivery.Transport = (*Transport)(nil)

// Transport adapts Client to delivery.Transport. Every failure it returns
// is a *delivery.TransportError.
type Transport struct {
	client *Client
}

// NewTransport wraps a Bot API client.
func NewTransport(client *Client) *Transport {
	return &Transport{client: client}
}

// SendMessage implements delivery.Transport.
func (t *Transport) SendMessage(ctx context.Context, p delivery.SendParams) (int, error) {
	req := SendMessageRequest{
		ChatID:                p.ChatID,
		Text:                  p.Text,
		ParseMode:             parseMode(p.Mode),
		DisableWebPagePreview: p.DisablePreview,
		DisableNotification:   p.DisableNotification,
		ReplyMarkup:           inlineKeyboard(p.Markup),
	}
	if p.ReplyTo != 0 {
		req.ReplyToMessageID = p.ReplyTo
		req.AllowSendingWithoutReply = true
	}

	msg, err := t.client.SendMessage(ctx, req)
	if err != nil {
		return 0, classify(err)
	}
	return msg.MessageID, nil
}

// EditMessageText implements delivery.Transport.
func (t *Transport) EditMessageText(ctx context.Context, p delivery.EditParams) error {
	_, err := t.client.EditMessageText(ctx, EditMessageTextRequest{
		ChatID:                p.ChatID,
		MessageID:             p.MessageID,
		Text:                  p.Text,
		ParseMode:             parseMode(p.Mode),
		DisableWebPagePreview: p.DisablePreview,
		ReplyMarkup:           inlineKeyboard(p.Markup),
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// parseMode maps a delivery mode to the Bot API parse_mode value.
func parseMode(m delivery.Mode) string {
	switch m {
	case delivery.ModeBasic:
		return "Markdown"
	case delivery.ModeStrict:
		return "MarkdownV2"
	default:
		return ""
	}
}

func inlineKeyboard(kb *delivery.InlineKeyboard) *InlineKeyboardMarkup {
	if kb == nil || len(kb.Rows) == 0 {
		return nil
	}
	markup := &InlineKeyboardMarkup{InlineKeyboard: make([][]InlineKeyboardButton, 0, len(kb.Rows))}
	for _, row := range kb.Rows {
		buttons := make([]InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, InlineKeyboardButton{
				Text:         b.Text,
				CallbackData: b.CallbackData,
				URL:          b.URL,
			})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
	}
	return markup
}

// Bot API descriptions, lower-cased, grouped by how delivery reacts.
var (
	tooLongReasons = []string{
		"message is too long",
		"text is too long",
	}
	markupReasons = []string{
		"can't parse entities",
		"can't find end",
		"unsupported start tag",
	}
	unreachableReasons = []string{
		"chat not found",
		"bot was blocked",
		"bot was kicked",
		"user is deactivated",
		"not enough rights to send",
		"have no rights to send",
		"chat_write_forbidden",
	}
)

// classify converts a client error into a *delivery.TransportError.
func classify(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return delivery.Classify(err)
	}

	desc := strings.ToLower(apiErr.Description)
	te := &delivery.TransportError{Kind: delivery.KindOther, Err: apiErr}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		te.Kind = delivery.KindRateLimited
		te.RetryAfter = time.Duration(apiErr.RetryAfter) * time.Second
		if te.RetryAfter <= 0 {
			te.RetryAfter = time.Second
		}
	case strings.Contains(desc, "message is not modified"):
		te.Kind = delivery.KindNotModified
	case containsAny(desc, tooLongReasons):
		te.Kind = delivery.KindTooLong
	case containsAny(desc, markupReasons):
		te.Kind = delivery.KindUnparsableMarkup
	case apiErr.Code == http.StatusForbidden, containsAny(desc, unreachableReasons):
		te.Kind = delivery.KindChatUnreachable
	case apiErr.Code >= http.StatusInternalServerError:
		te.Kind = delivery.KindNetwork
	}
	return te
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
