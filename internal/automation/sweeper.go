package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/beaconpage/lifecycle-engine/internal/domain"
	"github.com/beaconpage/lifecycle-engine/internal/pkg/logger"
)

// sweepScanLimit bounds how many customers one sweep band examines.
const sweepScanLimit = 500

// inactivityBands maps each no-visit trigger to the last_seen_at window
// it covers. Bands do not overlap, so a customer drifts from the 30d
// band into the 60d band instead of matching both.
var inactivityBands = []struct {
	trigger domain.TriggerType
	minDays int
	maxDays int
}{
	{domain.TriggerNoVisit30d, 30, 60},
	{domain.TriggerNoVisit60d, 60, 90},
	{domain.TriggerNoVisit90d, 90, 365},
}

// Sweeper dispatches the time-based triggers that no customer action
// fires: inactivity thresholds and birthdays. Intended to run once per
// day from the worker.
type Sweeper struct {
	rules     RuleRepository
	logs      LogRepository
	customers CustomerResolver
	now       func() time.Time
}

// NewSweeper creates a sweeper over the given stores.
func NewSweeper(rules RuleRepository, logs LogRepository, customers CustomerResolver) *Sweeper {
	return &Sweeper{rules: rules, logs: logs, customers: customers, now: time.Now}
}

// SetClock overrides the wall clock, for tests.
func (s *Sweeper) SetClock(now func() time.Time) { s.now = now }

// Run executes one full sweep: every inactivity band plus birthdays.
// Per-band failures are logged and do not stop the remaining bands.
func (s *Sweeper) Run(ctx context.Context) error {
	now := s.now()
	var firstErr error

	for _, band := range inactivityBands {
		if err := s.sweepInactivity(ctx, now, band.trigger, band.minDays, band.maxDays); err != nil {
			logger.Error("inactivity sweep failed", "trigger", string(band.trigger), "error", err.Error())
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if err := s.sweepBirthdays(ctx, now); err != nil {
		logger.Error("birthday sweep failed", "error", err.Error())
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// sweepInactivity fires one trigger band. A customer whose last visit
// falls inside the band gets at most one log per matching rule for this
// inactivity spell; a new visit resets the dedupe window.
func (s *Sweeper) sweepInactivity(ctx context.Context, now time.Time, trigger domain.TriggerType, minDays, maxDays int) error {
	newerThan := now.AddDate(0, 0, -minDays)
	olderThan := now.AddDate(0, 0, -maxDays)

	customers, err := s.customers.ListInactive(ctx, olderThan, newerThan, sweepScanLimit)
	if err != nil {
		return fmt.Errorf("list inactive customers: %w", err)
	}

	for _, c := range customers {
		if err := s.fireForCustomer(ctx, now, trigger, &c, c.LastSeenAt); err != nil {
			logger.Warn("sweep dispatch failed",
				"trigger", string(trigger), "customer_id", c.ID, "error", err.Error())
		}
	}
	return nil
}

// sweepBirthdays fires the birthday trigger for customers whose birthday
// is today, at most once per year per rule.
func (s *Sweeper) sweepBirthdays(ctx context.Context, now time.Time) error {
	customers, err := s.customers.ListBirthdays(ctx, now, sweepScanLimit)
	if err != nil {
		return fmt.Errorf("list birthdays: %w", err)
	}

	yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	for _, c := range customers {
		if err := s.fireForCustomer(ctx, now, domain.TriggerBirthday, &c, yearStart); err != nil {
			logger.Warn("birthday dispatch failed", "customer_id", c.ID, "error", err.Error())
		}
	}
	return nil
}

// fireForCustomer inserts one pending log per matching active rule,
// unless a log for that rule/customer pair already exists since the
// dedupe boundary.
func (s *Sweeper) fireForCustomer(ctx context.Context, now time.Time, trigger domain.TriggerType, c *domain.Customer, dedupeSince time.Time) error {
	matched, err := s.rules.ListActiveByTrigger(ctx, c.ProfileID, trigger)
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}

	for _, rule := range matched {
		exists, err := s.logs.ExistsForRule(ctx, rule.ID, c.ID, dedupeSince)
		if err != nil {
			return fmt.Errorf("dedupe check: %w", err)
		}
		if exists {
			continue
		}

		l := &domain.AutomationLog{
			ID:          uuid.New().String(),
			RuleID:      rule.ID,
			CustomerID:  c.ID,
			ProfileID:   c.ProfileID,
			Status:      domain.LogPending,
			ScheduledAt: now.Add(time.Duration(rule.DelayHours) * time.Hour),
			CreatedAt:   now,
		}
		if err := s.logs.Insert(ctx, l); err != nil {
			return fmt.Errorf("insert log: %w", err)
		}
		logger.Debug("sweep scheduled",
			"trigger", string(trigger), "rule_id", rule.ID, "customer_id", c.ID)
	}
	return nil
}
