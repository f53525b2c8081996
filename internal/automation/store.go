package automation

import (
	"context"
	"time"

	"github.com/beaconpage/lifecycle-engine/internal/domain"
)

// RuleRepository is the data access contract for automation rules.
type RuleRepository interface {
	// Get returns one rule. Returns ErrRuleNotFound when absent.
	Get(ctx context.Context, profileID, id string) (*domain.AutomationRule, error)

	// ListByProfile returns all rules owned by a profile, newest first.
	ListByProfile(ctx context.Context, profileID string) ([]domain.AutomationRule, error)

	// ListActiveByTrigger returns the active rules for a profile matching
	// one trigger type.
	ListActiveByTrigger(ctx context.Context, profileID string, trigger domain.TriggerType) ([]domain.AutomationRule, error)

	// Create inserts a new rule.
	Create(ctx context.Context, r *domain.AutomationRule) error

	// Update applies the non-nil fields. Returns ErrRuleNotFound when absent.
	Update(ctx context.Context, profileID, id string, u RuleUpdate) error

	// Delete removes a rule. Returns ErrRuleNotFound when absent.
	Delete(ctx context.Context, profileID, id string) error
}

// RuleUpdate holds the mutable rule fields. Nil fields are not applied.
type RuleUpdate struct {
	Name       *string
	DelayHours *int
	TemplateID *string
	CouponID   *string
	Subject    *string
	Body       *string
	IsActive   *bool
}

// LogRepository is the data access contract for automation logs.
type LogRepository interface {
	// Insert writes a new pending log row.
	Insert(ctx context.Context, l *domain.AutomationLog) error

	// ClaimDue atomically moves up to limit pending rows with
	// scheduled_at <= now into status=processing and returns them oldest
	// first. Two concurrent claims never return the same row.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.AutomationLog, error)

	// Finish records a terminal status for a claimed row. sentAt marks
	// when the row left pending regardless of outcome; errMsg is set for
	// failures and customer-resolution skips.
	Finish(ctx context.Context, id string, status domain.LogStatus, sentAt *time.Time, errMsg string) error

	// ListByProfile returns a profile's recent logs, newest first.
	ListByProfile(ctx context.Context, profileID string, limit int) ([]domain.AutomationLog, error)

	// ExistsForRule reports whether any log already exists for the
	// rule/customer pair since the given time. Used by the sweeper to
	// dispatch inactivity and birthday triggers at most once.
	ExistsForRule(ctx context.Context, ruleID, customerID string, since time.Time) (bool, error)
}

// CustomerResolver loads the customer and profile context needed to
// execute one log row.
type CustomerResolver interface {
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)

	// ListInactive returns customers whose last_seen_at falls inside
	// [olderThan, newerThan), for the inactivity sweep.
	ListInactive(ctx context.Context, olderThan, newerThan time.Time, limit int) ([]domain.Customer, error)

	// ListBirthdays returns customers whose birthday month/day equals the
	// given date's.
	ListBirthdays(ctx context.Context, on time.Time, limit int) ([]domain.Customer, error)
}
