package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/beaconpage/lifecycle-engine/internal/automation"
	"github.com/beaconpage/lifecycle-engine/internal/domain"
)

// CustomerRepo implements segments.CustomerReader and
// automation.CustomerResolver against PostgreSQL.
type CustomerRepo struct{ db *sql.DB }

// NewCustomerRepo creates a Postgres-backed customer repository.
func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{db: db} }

const customerColumns = `id, profile_id, COALESCE(name,''), COALESCE(email,''),
       COALESCE(phone,''), COALESCE(line_user_id,''), source,
       total_bookings, total_messages, first_seen_at, last_seen_at,
       birthday, tags, created_at, updated_at`

func scanCustomer(row interface{ Scan(...interface{}) error }) (*domain.Customer, error) {
	c := &domain.Customer{}
	err := row.Scan(
		&c.ID, &c.ProfileID, &c.Name, &c.Email,
		&c.Phone, &c.LineUserID, &c.Source,
		&c.TotalBookings, &c.TotalMessages, &c.FirstSeenAt, &c.LastSeenAt,
		&c.Birthday, pq.Array(&c.Tags), &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CustomerRepo) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := scanCustomer(r.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+` FROM customers WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, automation.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

func (r *CustomerRepo) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	p := &domain.Profile{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, business_name, COALESCE(reply_email,'')
		FROM profiles WHERE id = $1
	`, id).Scan(&p.ID, &p.BusinessName, &p.ReplyEmail)
	if err == sql.ErrNoRows {
		return nil, automation.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *CustomerRepo) ListRecentByProfile(ctx context.Context, profileID string, limit int) ([]domain.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE profile_id = $1
		ORDER BY last_seen_at DESC
		LIMIT $2
	`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()
	return collectCustomers(rows)
}

func (r *CustomerRepo) ListInactive(ctx context.Context, olderThan, newerThan time.Time, limit int) ([]domain.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE last_seen_at >= $1 AND last_seen_at < $2
		ORDER BY last_seen_at ASC
		LIMIT $3
	`, olderThan, newerThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list inactive customers: %w", err)
	}
	defer rows.Close()
	return collectCustomers(rows)
}

func (r *CustomerRepo) ListBirthdays(ctx context.Context, on time.Time, limit int) ([]domain.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE birthday IS NOT NULL
		  AND EXTRACT(MONTH FROM birthday) = $1
		  AND EXTRACT(DAY FROM birthday) = $2
		LIMIT $3
	`, int(on.Month()), on.Day(), limit)
	if err != nil {
		return nil, fmt.Errorf("list birthdays: %w", err)
	}
	defer rows.Close()
	return collectCustomers(rows)
}

func collectCustomers(rows *sql.Rows) ([]domain.Customer, error) {
	var out []domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// FetchExtras bulk-loads the referral and stamp-card booleans for a set
// of customers. Customers with no side-table rows are simply absent from
// the result, which reads as all-false extras.
func (r *CustomerRepo) FetchExtras(ctx context.Context, customerIDs []string) (map[string]domain.CustomerExtras, error) {
	out := make(map[string]domain.CustomerExtras, len(customerIDs))
	if len(customerIDs) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id,
		       EXISTS (SELECT 1 FROM referrals ref
		               WHERE ref.referrer_customer_id = c.id AND ref.referral_count > 0),
		       EXISTS (SELECT 1 FROM stamp_progress sp
		               WHERE sp.customer_id = c.id AND sp.current_stamps > 0)
		FROM customers c
		WHERE c.id = ANY($1)
	`, pq.Array(customerIDs))
	if err != nil {
		return nil, fmt.Errorf("fetch extras: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var ex domain.CustomerExtras
		if err := rows.Scan(&id, &ex.HasReferrals, &ex.HasStamps); err != nil {
			return nil, fmt.Errorf("scan extras: %w", err)
		}
		out[id] = ex
	}
	return out, rows.Err()
}
