// Package sender delivers rendered automation messages over the
// configured channels (email via SES, push via LINE).
package sender

import (
	"context"
	"time"
)

// Message is one rendered message ready for delivery. Exactly one of
// Email or LineUserID is used depending on the sender.
type Message struct {
	Email      string
	LineUserID string
	FromName   string
	FromEmail  string
	ReplyTo    string
	Subject    string
	Body       string

	// Delivery metadata, threaded through for provider-side tracing.
	ProfileID  string
	CustomerID string
	LogID      string
}

// SendResult reports the outcome of one delivery attempt. A provider
// rejection is Success=false with Error set; transport failures come back
// as the method's error instead.
type SendResult struct {
	Success   bool
	MessageID string
	Channel   string
	Error     error
	SentAt    time.Time
}

// Sender delivers a single message. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, msg *Message) (*SendResult, error)
}
