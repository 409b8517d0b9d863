package delivery

import (
	"context"
	"fmt"
)

// MaxCallbackDataLength is the largest callback payload the remote API
// accepts, in bytes.
const MaxCallbackDataLength = 64

// Button is one inline keyboard button. Exactly one of CallbackData or URL
// is expected to be set.
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// InlineKeyboard is a grid of buttons attached below a message.
type InlineKeyboard struct {
	Rows [][]Button `json:"rows"`
}

func (k *InlineKeyboard) validate() error {
	if k == nil {
		return nil
	}
	for i, row := range k.Rows {
		for j, b := range row {
			if n := len(b.CallbackData); n > MaxCallbackDataLength {
				return fmt.Errorf("%w: button [%d][%d] %q carries %d bytes, max %d",
					ErrCallbackDataTooLong, i, j, b.Text, n, MaxCallbackDataLength)
			}
		}
	}
	return nil
}

// SendParams is a single transport call creating a message.
type SendParams struct {
	ChatID              int64
	Text                string
	Mode                Mode
	Markup              *InlineKeyboard
	ReplyTo             int
	DisableNotification bool
	DisablePreview      bool
}

// EditParams is a single transport call replacing a message's text.
type EditParams struct {
	ChatID         int64
	MessageID      int
	Text           string
	Mode           Mode
	Markup         *InlineKeyboard
	DisablePreview bool
}

// Transport is the remote chat API. Implementations should report
// failures as *TransportError; other errors go through Classify.
type Transport interface {
	SendMessage(ctx context.Context, p SendParams) (messageID int, err error)
	EditMessageText(ctx context.Context, p EditParams) error
}
