package delivery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var (
	// ErrEmptyText is returned when a request carries no visible text.
	ErrEmptyText = errors.New("delivery: text must not be empty")

	// ErrRetriesExhausted marks a failure caused by running out of retries
	// on a retryable error class.
	ErrRetriesExhausted = errors.New("delivery: retries exhausted")

	// ErrInvalidTarget is returned for requests without a chat or message id.
	ErrInvalidTarget = errors.New("delivery: invalid target")

	// ErrCallbackDataTooLong is returned when a button's callback payload
	// exceeds MaxCallbackDataLength.
	ErrCallbackDataTooLong = errors.New("delivery: callback data too long")
)

// Kind classifies a transport failure for the retry policy.
type Kind int

const (
	// KindOther is any failure without a recovery strategy. It is fatal.
	KindOther Kind = iota
	// KindRateLimited asks the caller to wait RetryAfter before resending.
	KindRateLimited
	// KindTooLong means the text exceeded the remote length limit.
	KindTooLong
	// KindUnparsableMarkup means the remote side rejected the rich-text markup.
	KindUnparsableMarkup
	// KindChatUnreachable covers blocked bots and missing or deactivated chats.
	KindChatUnreachable
	// KindNetwork is a transient transport failure, including timeouts and 5xx.
	KindNetwork
	// KindNotModified reports an edit whose text and markup were unchanged.
	KindNotModified
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTooLong:
		return "too_long"
	case KindUnparsableMarkup:
		return "unparsable_markup"
	case KindChatUnreachable:
		return "chat_unreachable"
	case KindNetwork:
		return "network"
	case KindNotModified:
		return "not_modified"
	default:
		return "other"
	}
}

// TransportError is a classified transport failure. RetryAfter is only
// meaningful for KindRateLimited.
type TransportError struct {
	Kind       Kind
	RetryAfter time.Duration
	Err        error
}

func (e *TransportError) Error() string {
	if e.Kind == KindRateLimited {
		return fmt.Sprintf("delivery: %s (retry after %s): %v", e.Kind, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("delivery: %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Classify returns the classified form of a transport error. Errors that
// already carry a *TransportError are returned as is; network and timeout
// errors become KindNetwork; anything else is KindOther.
func Classify(err error) *TransportError {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Kind: KindNetwork, Err: err}
	}
	return &TransportError{Kind: KindOther, Err: err}
}

// DeliveryError reports a send that stopped before every chunk was sent.
// Delivered and MessageIDs describe what already reached the chat so a
// caller retrying at a higher level can avoid duplicates.
type DeliveryError struct {
	Delivered  int
	MessageIDs []int
	Err        error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery: stopped after %d delivered chunk(s): %v", e.Delivered, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
