package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/beaconpage/lifecycle-engine/internal/domain"
	"github.com/beaconpage/lifecycle-engine/internal/pkg/logger"
)

// dispatchBuffer is the trigger queue depth. Dispatch drops events once
// the buffer is full rather than block the caller's write path.
const dispatchBuffer = 256

// TriggerEvent is one lifecycle event awaiting rule matching.
type TriggerEvent struct {
	Trigger    domain.TriggerType
	CustomerID string
	ProfileID  string
	OccurredAt time.Time
}

// Dispatcher turns lifecycle events into pending automation logs. Events
// flow through a buffered channel so the triggering request never waits
// on rule lookup or log inserts.
type Dispatcher struct {
	rules  RuleRepository
	logs   LogRepository
	events chan TriggerEvent
	now    func() time.Time
}

// NewDispatcher creates a dispatcher. Run must be started for queued
// events to be consumed.
func NewDispatcher(rules RuleRepository, logs LogRepository) *Dispatcher {
	return &Dispatcher{
		rules:  rules,
		logs:   logs,
		events: make(chan TriggerEvent, dispatchBuffer),
		now:    time.Now,
	}
}

// SetClock overrides the wall clock, for tests.
func (d *Dispatcher) SetClock(now func() time.Time) { d.now = now }

// Dispatch enqueues a trigger event. It never blocks and never returns
// an error to the caller: an unknown trigger or a full buffer is logged
// and dropped, because automation must not fail the write that fired it.
func (d *Dispatcher) Dispatch(trigger domain.TriggerType, customerID, profileID string) {
	if !domain.KnownTrigger(trigger) {
		logger.Warn("dropping unknown trigger", "trigger", string(trigger), "customer_id", customerID)
		return
	}

	ev := TriggerEvent{
		Trigger:    trigger,
		CustomerID: customerID,
		ProfileID:  profileID,
		OccurredAt: d.now(),
	}
	select {
	case d.events <- ev:
	default:
		logger.Warn("trigger buffer full, dropping event",
			"trigger", string(trigger), "customer_id", customerID, "profile_id", profileID)
	}
}

// Run consumes queued events until ctx is cancelled. Intended to run as
// a single goroutine; per-event failures are logged and swallowed.
func (d *Dispatcher) Run(ctx context.Context) {
	logger.Info("trigger dispatcher started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("trigger dispatcher stopped", "queued", len(d.events))
			return
		case ev := <-d.events:
			if err := d.dispatchEvent(ctx, ev); err != nil {
				logger.Error("trigger dispatch failed",
					"trigger", string(ev.Trigger), "customer_id", ev.CustomerID, "error", err.Error())
			}
		}
	}
}

// dispatchEvent matches one event against the profile's active rules and
// inserts one pending log per match, scheduled delay_hours out. Exported
// to the package's tests through the synchronous path used by the sweeper.
func (d *Dispatcher) dispatchEvent(ctx context.Context, ev TriggerEvent) error {
	matched, err := d.rules.ListActiveByTrigger(ctx, ev.ProfileID, ev.Trigger)
	if err != nil {
		return fmt.Errorf("list rules for %s: %w", ev.Trigger, err)
	}
	if len(matched) == 0 {
		return nil
	}

	now := d.now()
	for _, rule := range matched {
		l := &domain.AutomationLog{
			ID:          uuid.New().String(),
			RuleID:      rule.ID,
			CustomerID:  ev.CustomerID,
			ProfileID:   ev.ProfileID,
			Status:      domain.LogPending,
			ScheduledAt: now.Add(time.Duration(rule.DelayHours) * time.Hour),
			CreatedAt:   now,
		}
		if err := d.logs.Insert(ctx, l); err != nil {
			logger.Error("automation log insert failed",
				"rule_id", rule.ID, "customer_id", ev.CustomerID, "error", err.Error())
			continue
		}
		logger.Debug("automation scheduled",
			"rule_id", rule.ID, "customer_id", ev.CustomerID,
			"trigger", string(ev.Trigger), "delay_hours", rule.DelayHours)
	}
	return nil
}

// DispatchSync runs the match-and-insert path inline instead of through
// the channel. Used by the sweeper, which already runs off the request
// path, and by tests.
func (d *Dispatcher) DispatchSync(ctx context.Context, trigger domain.TriggerType, customerID, profileID string) error {
	if !domain.KnownTrigger(trigger) {
		return fmt.Errorf("%w: %s", ErrInvalidTrigger, trigger)
	}
	return d.dispatchEvent(ctx, TriggerEvent{
		Trigger:    trigger,
		CustomerID: customerID,
		ProfileID:  profileID,
		OccurredAt: d.now(),
	})
}
