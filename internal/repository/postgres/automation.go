package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/beaconpage/lifecycle-engine/internal/automation"
	"github.com/beaconpage/lifecycle-engine/internal/domain"
)

// RuleRepo implements automation.RuleRepository against PostgreSQL.
type RuleRepo struct{ db *sql.DB }

// NewRuleRepo creates a Postgres-backed automation rule repository.
func NewRuleRepo(db *sql.DB) *RuleRepo { return &RuleRepo{db: db} }

const ruleColumns = `id, profile_id, name, trigger_type, action_type, delay_hours,
       COALESCE(template_id,''), COALESCE(coupon_id,''),
       COALESCE(subject,''), COALESCE(body,''),
       is_active, created_at, updated_at`

func scanRule(row interface{ Scan(...interface{}) error }) (*domain.AutomationRule, error) {
	r := &domain.AutomationRule{}
	err := row.Scan(
		&r.ID, &r.ProfileID, &r.Name, &r.TriggerType, &r.ActionType, &r.DelayHours,
		&r.TemplateID, &r.CouponID, &r.Subject, &r.Body,
		&r.IsActive, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RuleRepo) Get(ctx context.Context, profileID, id string) (*domain.AutomationRule, error) {
	rule, err := scanRule(r.db.QueryRowContext(ctx, `
		SELECT `+ruleColumns+`
		FROM automation_rules
		WHERE id = $1 AND profile_id = $2
	`, id, profileID))
	if err == sql.ErrNoRows {
		return nil, automation.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

func (r *RuleRepo) ListByProfile(ctx context.Context, profileID string) ([]domain.AutomationRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+ruleColumns+`
		FROM automation_rules
		WHERE profile_id = $1
		ORDER BY created_at DESC
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

func (r *RuleRepo) ListActiveByTrigger(ctx context.Context, profileID string, trigger domain.TriggerType) ([]domain.AutomationRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+ruleColumns+`
		FROM automation_rules
		WHERE profile_id = $1 AND trigger_type = $2 AND is_active = true
		ORDER BY created_at ASC
	`, profileID, trigger)
	if err != nil {
		return nil, fmt.Errorf("list rules by trigger: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

func collectRules(rows *sql.Rows) ([]domain.AutomationRule, error) {
	var out []domain.AutomationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, *rule)
	}
	return out, rows.Err()
}

func (r *RuleRepo) Create(ctx context.Context, rule *domain.AutomationRule) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO automation_rules
			(id, profile_id, name, trigger_type, action_type, delay_hours,
			 template_id, coupon_id, subject, body, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, rule.ID, rule.ProfileID, rule.Name, rule.TriggerType, rule.ActionType,
		rule.DelayHours, rule.TemplateID, rule.CouponID, rule.Subject, rule.Body,
		rule.IsActive, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

func (r *RuleRepo) Update(ctx context.Context, profileID, id string, u automation.RuleUpdate) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.DelayHours != nil {
		add("delay_hours", *u.DelayHours)
	}
	if u.TemplateID != nil {
		add("template_id", *u.TemplateID)
	}
	if u.CouponID != nil {
		add("coupon_id", *u.CouponID)
	}
	if u.Subject != nil {
		add("subject", *u.Subject)
	}
	if u.Body != nil {
		add("body", *u.Body)
	}
	if u.IsActive != nil {
		add("is_active", *u.IsActive)
	}

	if len(sets) == 0 {
		return nil
	}

	q := fmt.Sprintf("UPDATE automation_rules SET %s, updated_at = NOW() WHERE id = $%d AND profile_id = $%d",
		joinComma(sets), idx, idx+1)
	args = append(args, id, profileID)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return automation.ErrRuleNotFound
	}
	return nil
}

func (r *RuleRepo) Delete(ctx context.Context, profileID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM automation_rules WHERE id = $1 AND profile_id = $2
	`, id, profileID)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return automation.ErrRuleNotFound
	}
	return nil
}

// LogRepo implements automation.LogRepository against PostgreSQL.
type LogRepo struct{ db *sql.DB }

// NewLogRepo creates a Postgres-backed automation log repository.
func NewLogRepo(db *sql.DB) *LogRepo { return &LogRepo{db: db} }

const logColumns = `id, rule_id, customer_id, profile_id, status,
       scheduled_at, sent_at, COALESCE(error,''), created_at`

func (r *LogRepo) Insert(ctx context.Context, l *domain.AutomationLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO automation_logs
			(id, rule_id, customer_id, profile_id, status, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, l.ID, l.RuleID, l.CustomerID, l.ProfileID, l.Status, l.ScheduledAt, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

// ClaimDue atomically flips due pending rows to processing and returns
// them. FOR UPDATE SKIP LOCKED makes overlapping claims disjoint: a row
// is only ever returned to one caller.
func (r *LogRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.AutomationLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE automation_logs
		SET status = 'processing'
		WHERE id IN (
			SELECT id FROM automation_logs
			WHERE status = 'pending' AND scheduled_at <= $1
			ORDER BY scheduled_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+logColumns+`
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due logs: %w", err)
	}
	defer rows.Close()

	var out []domain.AutomationLog
	for rows.Next() {
		var l domain.AutomationLog
		if err := rows.Scan(
			&l.ID, &l.RuleID, &l.CustomerID, &l.ProfileID, &l.Status,
			&l.ScheduledAt, &l.SentAt, &l.Error, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan claimed log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *LogRepo) Finish(ctx context.Context, id string, status domain.LogStatus, sentAt *time.Time, errMsg string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE automation_logs
		SET status = $1, sent_at = $2, error = NULLIF($3, '')
		WHERE id = $4 AND status = 'processing'
	`, status, sentAt, errMsg, id)
	if err != nil {
		return fmt.Errorf("finish log: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("log %s not in processing state", id)
	}
	return nil
}

func (r *LogRepo) ListByProfile(ctx context.Context, profileID string, limit int) ([]domain.AutomationLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+logColumns+`
		FROM automation_logs
		WHERE profile_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var out []domain.AutomationLog
	for rows.Next() {
		var l domain.AutomationLog
		if err := rows.Scan(
			&l.ID, &l.RuleID, &l.CustomerID, &l.ProfileID, &l.Status,
			&l.ScheduledAt, &l.SentAt, &l.Error, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *LogRepo) ExistsForRule(ctx context.Context, ruleID, customerID string, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM automation_logs
			WHERE rule_id = $1 AND customer_id = $2 AND created_at >= $3
		)
	`, ruleID, customerID, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check existing log: %w", err)
	}
	return exists, nil
}
