package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beaconpage/lifecycle-engine/internal/domain"
	"github.com/beaconpage/lifecycle-engine/internal/pkg/distlock"
	"github.com/beaconpage/lifecycle-engine/internal/pkg/logger"
	"github.com/beaconpage/lifecycle-engine/internal/render"
	"github.com/beaconpage/lifecycle-engine/internal/sender"
)

// DefaultBatchLimit caps how many due logs one processor run claims.
const DefaultBatchLimit = 50

// ProcessLockKey and ProcessLockTTL identify the single-flight batch
// lease. The TTL bounds how long a crashed batch can hold it.
const (
	ProcessLockKey = "automation:process"
	ProcessLockTTL = 5 * time.Minute
)

// BatchStats summarizes one processor run.
type BatchStats struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Processor executes due automation logs. Each run claims a bounded
// batch under a distributed lease; rows fail or skip independently and
// never abort the rest of the batch.
type Processor struct {
	rules     RuleRepository
	logs      LogRepository
	customers CustomerResolver
	renderer  *render.Engine
	send      sender.Sender
	lock      distlock.DistLock
}

// NewProcessor creates a log processor. lock may be nil when the caller
// guarantees single-flight invocation (tests, single-node deployments).
func NewProcessor(rules RuleRepository, logs LogRepository, customers CustomerResolver, renderer *render.Engine, send sender.Sender, lock distlock.DistLock) *Processor {
	return &Processor{
		rules:     rules,
		logs:      logs,
		customers: customers,
		renderer:  renderer,
		send:      send,
		lock:      lock,
	}
}

// ProcessBatch claims and executes up to limit due logs. Returns the
// zero stats without error when another batch holds the lease.
func (p *Processor) ProcessBatch(ctx context.Context, now time.Time, limit int) (BatchStats, error) {
	var stats BatchStats
	if limit <= 0 {
		limit = DefaultBatchLimit
	}

	if p.lock != nil {
		acquired, err := p.lock.Acquire(ctx)
		if err != nil {
			return stats, fmt.Errorf("acquire process lease: %w", err)
		}
		if !acquired {
			logger.Debug("log batch skipped, lease held elsewhere")
			return stats, nil
		}
		defer p.lock.Release(ctx)
	}

	claimed, err := p.logs.ClaimDue(ctx, now, limit)
	if err != nil {
		return stats, fmt.Errorf("claim due logs: %w", err)
	}
	if len(claimed) == 0 {
		return stats, nil
	}

	for i := range claimed {
		l := &claimed[i]
		status, errMsg := p.processOne(ctx, l, now)

		// sent_at marks when the row left pending, whatever the outcome.
		t := now
		sentAt := &t
		if err := p.logs.Finish(ctx, l.ID, status, sentAt, errMsg); err != nil {
			logger.Error("log finish write failed", "log_id", l.ID, "status", string(status), "error", err.Error())
		}

		stats.Processed++
		switch status {
		case domain.LogSent:
			stats.Sent++
		case domain.LogSkipped:
			stats.Skipped++
		default:
			stats.Failed++
		}
	}

	logger.Info("log batch processed",
		"processed", stats.Processed, "sent", stats.Sent,
		"failed", stats.Failed, "skipped", stats.Skipped)
	return stats, nil
}

// processOne resolves and executes a single claimed row, returning its
// terminal status. A panic anywhere in the row degrades it to failed so
// one poisoned row cannot take down the batch.
func (p *Processor) processOne(ctx context.Context, l *domain.AutomationLog, now time.Time) (status domain.LogStatus, errMsg string) {
	defer func() {
		if r := recover(); r != nil {
			status = domain.LogFailed
			errMsg = fmt.Sprintf("panic: %v", r)
			logger.Error("log row panicked", "log_id", l.ID, "panic", fmt.Sprintf("%v", r))
		}
	}()

	// Rule-side skips carry no error note; customer-side skips do.
	rule, err := p.rules.Get(ctx, l.ProfileID, l.RuleID)
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			return domain.LogSkipped, ""
		}
		return domain.LogFailed, fmt.Sprintf("resolve rule: %v", err)
	}
	if !rule.IsActive {
		return domain.LogSkipped, ""
	}

	customer, err := p.customers.GetCustomer(ctx, l.CustomerID)
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			return domain.LogSkipped, "customer deleted"
		}
		return domain.LogFailed, fmt.Sprintf("resolve customer: %v", err)
	}
	if !customer.HasEmail() && !customer.HasLine() {
		return domain.LogSkipped, "customer unreachable, no email or line"
	}

	profile, err := p.customers.GetProfile(ctx, l.ProfileID)
	if err != nil {
		return domain.LogFailed, fmt.Sprintf("resolve profile: %v", err)
	}

	content, err := buildAction(p.renderer, rule, customer, profile)
	if err != nil {
		return domain.LogFailed, err.Error()
	}

	result, err := p.send.Send(ctx, buildMessage(content, l, customer, profile))
	if err != nil {
		return domain.LogFailed, fmt.Sprintf("send: %v", err)
	}
	if result == nil || !result.Success {
		return domain.LogFailed, "send failed"
	}
	return domain.LogSent, ""
}
