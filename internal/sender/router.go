package sender

import (
	"context"
	"fmt"
)

// Router picks the delivery channel per message: email when the customer
// has an address, LINE push otherwise. Either channel may be nil when
// not configured.
type Router struct {
	email Sender
	line  Sender
}

// NewRouter creates a channel router over the configured senders.
func NewRouter(email, line Sender) *Router {
	return &Router{email: email, line: line}
}

// Send routes the message to the first usable channel.
func (r *Router) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	if msg.Email != "" && r.email != nil {
		return r.email.Send(ctx, msg)
	}
	if msg.LineUserID != "" && r.line != nil {
		return r.line.Send(ctx, msg)
	}
	return nil, fmt.Errorf("no deliverable channel for customer %s", msg.CustomerID)
}
