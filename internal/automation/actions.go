package automation

import (
	"fmt"

	"github.com/beaconpage/lifecycle-engine/internal/domain"
	"github.com/beaconpage/lifecycle-engine/internal/render"
	"github.com/beaconpage/lifecycle-engine/internal/sender"
)

// actionContent is the rendered subject and body for one action. The
// executor fills in channel defaults when the rule has no override.
type actionContent struct {
	Subject string
	Body    string
}

// buildAction produces the message content for one rule firing. The
// switch is over the closed ActionType set; an unknown variant is an
// error, not a silent default, so new action types cannot ship without
// an executor.
func buildAction(eng *render.Engine, rule *domain.AutomationRule, c *domain.Customer, p *domain.Profile) (*actionContent, error) {
	ctx := render.Context(c, p)

	subject := rule.Subject
	body := rule.Body

	switch rule.ActionType {
	case domain.ActionSendEmail:
		if subject == "" {
			subject = "A message from {{ business_name }}"
		}
		if body == "" {
			body = "Hi {{ customer_name }}, thanks for visiting {{ business_name }}!"
		}

	case domain.ActionSendReviewRequest:
		if subject == "" {
			subject = "How was your visit to {{ business_name }}?"
		}
		if body == "" {
			body = "Hi {{ customer_name }}, we'd love to hear how your visit to {{ business_name }} went. Could you leave us a quick review?"
		}

	case domain.ActionSendCoupon:
		if rule.CouponID == "" {
			return nil, fmt.Errorf("send_coupon rule %s has no coupon_id", rule.ID)
		}
		if subject == "" {
			subject = "A thank-you from {{ business_name }}"
		}
		if body == "" {
			body = "Hi {{ customer_name }}, here's a coupon from {{ business_name }} as a thank-you. Show this message on your next visit."
		}
		ctx["coupon_id"] = rule.CouponID

	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidAction, rule.ActionType)
	}

	renderedSubject, err := eng.Render(rule.ID+":subject", subject, ctx)
	if err != nil {
		return nil, fmt.Errorf("render subject: %w", err)
	}
	renderedBody, err := eng.Render(rule.ID+":body", body, ctx)
	if err != nil {
		return nil, fmt.Errorf("render body: %w", err)
	}

	return &actionContent{Subject: renderedSubject, Body: renderedBody}, nil
}

// buildMessage assembles the outbound message for the sender boundary.
func buildMessage(content *actionContent, l *domain.AutomationLog, c *domain.Customer, p *domain.Profile) *sender.Message {
	return &sender.Message{
		Email:      c.Email,
		LineUserID: c.LineUserID,
		FromName:   p.BusinessName,
		FromEmail:  p.ReplyEmail,
		ReplyTo:    p.ReplyEmail,
		Subject:    content.Subject,
		Body:       content.Body,
		ProfileID:  p.ID,
		CustomerID: c.ID,
		LogID:      l.ID,
	}
}
