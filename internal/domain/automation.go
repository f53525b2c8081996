package domain

import "time"

// TriggerType is the lifecycle event that causes automation rule matching.
type TriggerType string

const (
	TriggerAfterBooking       TriggerType = "after_booking"
	TriggerAfterContact       TriggerType = "after_contact"
	TriggerAfterSubscribe     TriggerType = "after_subscribe"
	TriggerAfterStampComplete TriggerType = "after_stamp_complete"
	TriggerNoVisit30d         TriggerType = "no_visit_30d"
	TriggerNoVisit60d         TriggerType = "no_visit_60d"
	TriggerNoVisit90d         TriggerType = "no_visit_90d"
	TriggerBirthday           TriggerType = "birthday"
)

// KnownTrigger reports whether t is a supported trigger type.
func KnownTrigger(t TriggerType) bool {
	switch t {
	case TriggerAfterBooking, TriggerAfterContact, TriggerAfterSubscribe,
		TriggerAfterStampComplete, TriggerNoVisit30d, TriggerNoVisit60d,
		TriggerNoVisit90d, TriggerBirthday:
		return true
	}
	return false
}

// ActionType is the closed set of follow-up actions a rule can configure.
// Adding a variant requires extending the executor switch in
// internal/automation, which the compiler checks for exhaustiveness through
// the default-is-error idiom there.
type ActionType string

const (
	ActionSendEmail         ActionType = "send_email"
	ActionSendReviewRequest ActionType = "send_review_request"
	ActionSendCoupon        ActionType = "send_coupon"
)

// KnownAction reports whether a is a supported action type.
func KnownAction(a ActionType) bool {
	switch a {
	case ActionSendEmail, ActionSendReviewRequest, ActionSendCoupon:
		return true
	}
	return false
}

// AutomationRule maps a trigger type to a delayed action for one profile.
type AutomationRule struct {
	ID          string      `json:"id" db:"id"`
	ProfileID   string      `json:"profile_id" db:"profile_id"`
	Name        string      `json:"name" db:"name"`
	TriggerType TriggerType `json:"trigger_type" db:"trigger_type"`
	ActionType  ActionType  `json:"action_type" db:"action_type"`
	DelayHours  int         `json:"delay_hours" db:"delay_hours"`

	TemplateID string `json:"template_id,omitempty" db:"template_id"`
	CouponID   string `json:"coupon_id,omitempty" db:"coupon_id"`
	Subject    string `json:"subject,omitempty" db:"subject"`
	Body       string `json:"body,omitempty" db:"body"`

	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LogStatus is the per-log state machine:
//
//	pending → processing → {sent, failed, skipped}
//
// The processing state is the claim marker: a row moves there atomically
// when a batch picks it up, so overlapping batches cannot double-send.
// sent/failed/skipped are terminal; no log is reopened or retried.
type LogStatus string

const (
	LogPending    LogStatus = "pending"
	LogProcessing LogStatus = "processing"
	LogSent       LogStatus = "sent"
	LogFailed     LogStatus = "failed"
	LogSkipped    LogStatus = "skipped"
)

// AutomationLog is one scheduled/executed instance of a rule firing for one
// customer. Created by the dispatcher with status=pending; mutated only by
// the log processor afterwards.
type AutomationLog struct {
	ID         string    `json:"id" db:"id"`
	RuleID     string    `json:"rule_id" db:"rule_id"`
	CustomerID string    `json:"customer_id" db:"customer_id"`
	ProfileID  string    `json:"profile_id" db:"profile_id"`
	Status     LogStatus `json:"status" db:"status"`

	ScheduledAt time.Time  `json:"scheduled_at" db:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	Error       string     `json:"error,omitempty" db:"error"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
