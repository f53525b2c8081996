// Package postgres implements the engine's repositories against
// PostgreSQL using database/sql with lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/beaconpage/lifecycle-engine/internal/domain"
	"github.com/beaconpage/lifecycle-engine/internal/segments"
)

// SegmentRepo implements segments.Repository against PostgreSQL.
type SegmentRepo struct{ db *sql.DB }

// NewSegmentRepo creates a Postgres-backed segment repository.
func NewSegmentRepo(db *sql.DB) *SegmentRepo { return &SegmentRepo{db: db} }

const segmentColumns = `id, profile_id, name, COALESCE(description,''), type,
       criteria, COALESCE(color,''), COALESCE(icon,''), auto_actions,
       customer_count, is_active, created_at, updated_at`

func scanSegment(row interface{ Scan(...interface{}) error }) (*domain.SegmentDefinition, error) {
	s := &domain.SegmentDefinition{}
	var criteriaJSON, actionsJSON []byte
	err := row.Scan(
		&s.ID, &s.ProfileID, &s.Name, &s.Description, &s.Type,
		&criteriaJSON, &s.Color, &s.Icon, &actionsJSON,
		&s.CustomerCount, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(criteriaJSON, &s.Criteria); err != nil {
		return nil, fmt.Errorf("decode criteria: %w", err)
	}
	if len(actionsJSON) > 0 {
		if err := json.Unmarshal(actionsJSON, &s.AutoActions); err != nil {
			return nil, fmt.Errorf("decode auto_actions: %w", err)
		}
	}
	return s, nil
}

func (r *SegmentRepo) Get(ctx context.Context, profileID, id string) (*domain.SegmentDefinition, error) {
	s, err := scanSegment(r.db.QueryRowContext(ctx, `
		SELECT `+segmentColumns+`
		FROM segments
		WHERE id = $1 AND profile_id = $2
	`, id, profileID))
	if err == sql.ErrNoRows {
		return nil, segments.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	return s, nil
}

func (r *SegmentRepo) ListByProfile(ctx context.Context, profileID string) ([]domain.SegmentDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+segmentColumns+`
		FROM segments
		WHERE profile_id = $1
		ORDER BY type = 'system' DESC, created_at ASC
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var out []domain.SegmentDefinition
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *SegmentRepo) Create(ctx context.Context, s *domain.SegmentDefinition) error {
	criteriaJSON, err := s.CriteriaJSON()
	if err != nil {
		return fmt.Errorf("encode criteria: %w", err)
	}
	actionsJSON, err := json.Marshal(s.AutoActions)
	if err != nil {
		return fmt.Errorf("encode auto_actions: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO segments
			(id, profile_id, name, description, type, criteria, color, icon,
			 auto_actions, customer_count, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11, $12)
	`, s.ID, s.ProfileID, s.Name, s.Description, s.Type, criteriaJSON,
		s.Color, s.Icon, actionsJSON, s.IsActive, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create segment: %w", err)
	}
	return nil
}

func (r *SegmentRepo) Update(ctx context.Context, profileID, id string, u segments.UpdateFields) error {
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
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.Criteria != nil {
		criteriaJSON, err := json.Marshal(*u.Criteria)
		if err != nil {
			return fmt.Errorf("encode criteria: %w", err)
		}
		add("criteria", criteriaJSON)
	}
	if u.Color != nil {
		add("color", *u.Color)
	}
	if u.Icon != nil {
		add("icon", *u.Icon)
	}
	if u.AutoActions != nil {
		actionsJSON, err := json.Marshal(*u.AutoActions)
		if err != nil {
			return fmt.Errorf("encode auto_actions: %w", err)
		}
		add("auto_actions", actionsJSON)
	}
	if u.IsActive != nil {
		add("is_active", *u.IsActive)
	}

	if len(sets) == 0 {
		return nil
	}

	q := fmt.Sprintf("UPDATE segments SET %s, updated_at = NOW() WHERE id = $%d AND profile_id = $%d",
		joinComma(sets), idx, idx+1)
	args = append(args, id, profileID)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update segment: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return segments.ErrNotFound
	}
	return nil
}

func (r *SegmentRepo) Delete(ctx context.Context, profileID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM segments WHERE id = $1 AND profile_id = $2
	`, id, profileID)
	if err != nil {
		return fmt.Errorf("delete segment: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return segments.ErrNotFound
	}
	return nil
}

func (r *SegmentRepo) CountSystemSegments(ctx context.Context, profileID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM segments WHERE profile_id = $1 AND type = 'system'
	`, profileID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count system segments: %w", err)
	}
	return n, nil
}

func (r *SegmentRepo) UpdateCustomerCount(ctx context.Context, id string, count int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE segments SET customer_count = $1, updated_at = NOW() WHERE id = $2
	`, count, id)
	if err != nil {
		return fmt.Errorf("update customer count: %w", err)
	}
	return nil
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
