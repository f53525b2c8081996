package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/beaconpage/lifecycle-engine/internal/domain"
)

// RuleService owns validation and persistence for automation rules.
type RuleService struct {
	rules RuleRepository
	logs  LogRepository
	now   func() time.Time
}

// NewRuleService creates the rule CRUD service.
func NewRuleService(rules RuleRepository, logs LogRepository) *RuleService {
	return &RuleService{rules: rules, logs: logs, now: time.Now}
}

// SetClock overrides the wall clock, for tests.
func (s *RuleService) SetClock(now func() time.Time) { s.now = now }

// RuleInput holds the caller-supplied fields for a new rule.
type RuleInput struct {
	Name        string
	TriggerType domain.TriggerType
	ActionType  domain.ActionType
	DelayHours  int
	TemplateID  string
	CouponID    string
	Subject     string
	Body        string
}

// Create validates and persists a new automation rule.
func (s *RuleService) Create(ctx context.Context, profileID string, input RuleInput) (*domain.AutomationRule, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if !domain.KnownTrigger(input.TriggerType) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTrigger, input.TriggerType)
	}
	if !domain.KnownAction(input.ActionType) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAction, input.ActionType)
	}
	if input.DelayHours < 0 {
		return nil, fmt.Errorf("delay_hours must be >= 0")
	}
	if input.ActionType == domain.ActionSendCoupon && input.CouponID == "" {
		return nil, fmt.Errorf("send_coupon rules require a coupon_id")
	}

	now := s.now()
	rule := &domain.AutomationRule{
		ID:          uuid.New().String(),
		ProfileID:   profileID,
		Name:        input.Name,
		TriggerType: input.TriggerType,
		ActionType:  input.ActionType,
		DelayHours:  input.DelayHours,
		TemplateID:  input.TemplateID,
		CouponID:    input.CouponID,
		Subject:     input.Subject,
		Body:        input.Body,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}
	return rule, nil
}

// Get returns one rule for the profile.
func (s *RuleService) Get(ctx context.Context, profileID, id string) (*domain.AutomationRule, error) {
	return s.rules.Get(ctx, profileID, id)
}

// List returns all of a profile's rules.
func (s *RuleService) List(ctx context.Context, profileID string) ([]domain.AutomationRule, error) {
	return s.rules.ListByProfile(ctx, profileID)
}

// Update applies a partial update to a rule.
func (s *RuleService) Update(ctx context.Context, profileID, id string, u RuleUpdate) error {
	if u.DelayHours != nil && *u.DelayHours < 0 {
		return fmt.Errorf("delay_hours must be >= 0")
	}
	return s.rules.Update(ctx, profileID, id, u)
}

// Delete removes a rule. Pending logs referencing it resolve as skipped
// at processing time rather than being purged here.
func (s *RuleService) Delete(ctx context.Context, profileID, id string) error {
	return s.rules.Delete(ctx, profileID, id)
}

// Logs returns a profile's recent automation logs.
func (s *RuleService) Logs(ctx context.Context, profileID string, limit int) ([]domain.AutomationLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.logs.ListByProfile(ctx, profileID, limit)
}
