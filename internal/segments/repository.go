package segments

import (
	"context"

	"github.com/beaconpage/lifecycle-engine/internal/domain"
)

// Repository defines the data access contract for segment definitions.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single segment. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, profileID, id string) (*domain.SegmentDefinition, error)

	// ListByProfile returns all segments owned by a profile, system first,
	// then customs by creation time.
	ListByProfile(ctx context.Context, profileID string) ([]domain.SegmentDefinition, error)

	// Create inserts a new segment definition.
	Create(ctx context.Context, s *domain.SegmentDefinition) error

	// Update applies the non-nil fields. Returns ErrNotFound when the
	// segment doesn't exist for the profile.
	Update(ctx context.Context, profileID, id string, u UpdateFields) error

	// Delete removes a segment. Returns ErrNotFound when absent.
	Delete(ctx context.Context, profileID, id string) error

	// CountSystemSegments reports how many system-type segments the profile
	// already has; used for idempotent seeding.
	CountSystemSegments(ctx context.Context, profileID string) (int, error)

	// UpdateCustomerCount refreshes the cached membership count.
	UpdateCustomerCount(ctx context.Context, id string, count int) error
}

// CustomerReader is the registry's read-only view of the customer
// population. The registry never mutates customers.
type CustomerReader interface {
	// ListRecentByProfile returns up to limit customers ordered by
	// last_seen_at descending.
	ListRecentByProfile(ctx context.Context, profileID string, limit int) ([]domain.Customer, error)

	// FetchExtras bulk-loads side-table booleans for the given customers.
	// Customers absent from the result have all-false extras.
	FetchExtras(ctx context.Context, customerIDs []string) (map[string]domain.CustomerExtras, error)
}

// UpdateFields holds the mutable fields for a segment update. Nil fields
// are not applied. System segments accept only IsActive and AutoActions.
type UpdateFields struct {
	Name        *string
	Description *string
	Criteria    *domain.SegmentCriteria
	Color       *string
	Icon        *string
	AutoActions *[]domain.AutoAction
	IsActive    *bool
}

// touchesRestricted reports whether the update modifies fields that system
// segments lock down.
func (u UpdateFields) touchesRestricted() bool {
	return u.Name != nil || u.Description != nil || u.Criteria != nil ||
		u.Color != nil || u.Icon != nil
}
