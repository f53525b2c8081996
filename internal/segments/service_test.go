package segments_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconpage/lifecycle-engine/internal/domain"
	"github.com/beaconpage/lifecycle-engine/internal/segments"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// memRepo is an in-memory segment repository for unit testing.
type memRepo struct {
	mu   sync.Mutex
	defs map[string]*domain.SegmentDefinition
}

func newMemRepo() *memRepo {
	return &memRepo{defs: make(map[string]*domain.SegmentDefinition)}
}

func (m *memRepo) Get(_ context.Context, profileID, id string) (*domain.SegmentDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.defs[id]
	if !ok || d.ProfileID != profileID {
		return nil, segments.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memRepo) ListByProfile(_ context.Context, profileID string) ([]domain.SegmentDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SegmentDefinition
	for _, d := range m.defs {
		if d.ProfileID == profileID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *memRepo) Create(_ context.Context, s *domain.SegmentDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		return fmt.Errorf("id required")
	}
	cp := *s
	m.defs[cp.ID] = &cp
	return nil
}

func (m *memRepo) Update(_ context.Context, profileID, id string, u segments.UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.defs[id]
	if !ok || d.ProfileID != profileID {
		return segments.ErrNotFound
	}
	if u.Name != nil {
		d.Name = *u.Name
	}
	if u.Criteria != nil {
		d.Criteria = *u.Criteria
	}
	if u.IsActive != nil {
		d.IsActive = *u.IsActive
	}
	if u.AutoActions != nil {
		d.AutoActions = *u.AutoActions
	}
	return nil
}

func (m *memRepo) Delete(_ context.Context, profileID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.defs[id]
	if !ok || d.ProfileID != profileID {
		return segments.ErrNotFound
	}
	delete(m.defs, id)
	return nil
}

func (m *memRepo) CountSystemSegments(_ context.Context, profileID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.defs {
		if d.ProfileID == profileID && d.Type == domain.SegmentSystem {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) UpdateCustomerCount(_ context.Context, id string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.defs[id]; ok {
		d.CustomerCount = count
	}
	return nil
}

// memCustomers is an in-memory customer reader.
type memCustomers struct {
	customers []domain.Customer
	extras    map[string]domain.CustomerExtras
}

func (m *memCustomers) ListRecentByProfile(_ context.Context, profileID string, limit int) ([]domain.Customer, error) {
	var out []domain.Customer
	for _, c := range m.customers {
		if c.ProfileID == profileID {
			out = append(out, c)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memCustomers) FetchExtras(_ context.Context, ids []string) (map[string]domain.CustomerExtras, error) {
	out := make(map[string]domain.CustomerExtras)
	for _, id := range ids {
		if ex, ok := m.extras[id]; ok {
			out[id] = ex
		}
	}
	return out, nil
}

const testProfile = "prof-1"

func newTestService(customers *memCustomers) (*segments.Service, *memRepo) {
	repo := newMemRepo()
	if customers == nil {
		customers = &memCustomers{extras: map[string]domain.CustomerExtras{}}
	}
	svc := segments.NewService(repo, customers, nil)
	svc.SetClock(func() time.Time { return testNow })
	return svc, repo
}

func TestSeedIdempotent(t *testing.T) {
	svc, repo := newTestService(nil)

	require.NoError(t, svc.Seed(context.Background(), testProfile))

	n, _ := repo.CountSystemSegments(context.Background(), testProfile)
	assert.Equal(t, 8, n)

	err := svc.Seed(context.Background(), testProfile)
	assert.ErrorIs(t, err, segments.ErrAlreadySeeded)

	n, _ = repo.CountSystemSegments(context.Background(), testProfile)
	assert.Equal(t, 8, n, "re-seed must not duplicate")
}

func TestSeedPerProfileIndependent(t *testing.T) {
	svc, _ := newTestService(nil)
	require.NoError(t, svc.Seed(context.Background(), "prof-a"))
	require.NoError(t, svc.Seed(context.Background(), "prof-b"))
}

func TestCreateCustomValidation(t *testing.T) {
	svc, _ := newTestService(nil)

	_, err := svc.CreateCustom(context.Background(), testProfile, segments.CreateInput{
		Name:     "Empty",
		Criteria: domain.SegmentCriteria{Match: domain.MatchAll},
	})
	assert.ErrorIs(t, err, segments.ErrInvalidCriteria, "zero rules rejected at creation")

	_, err = svc.CreateCustom(context.Background(), testProfile, segments.CreateInput{
		Name: "Bad op",
		Criteria: domain.SegmentCriteria{
			Match: domain.MatchAll,
			Rules: []domain.SegmentRule{{Field: "total_bookings", Operator: "regex", Value: domain.NumberValue(1)}},
		},
	})
	assert.ErrorIs(t, err, segments.ErrInvalidCriteria, "unknown operator rejected at creation")

	_, err = svc.CreateCustom(context.Background(), testProfile, segments.CreateInput{
		Name: "Bad field",
		Criteria: domain.SegmentCriteria{
			Match: domain.MatchAll,
			Rules: []domain.SegmentRule{{Field: "shoe_size", Operator: domain.OpGte, Value: domain.NumberValue(42)}},
		},
	})
	assert.ErrorIs(t, err, segments.ErrInvalidCriteria, "unresolvable field rejected at creation")

	def, err := svc.CreateCustom(context.Background(), testProfile, segments.CreateInput{
		Name: "Big spenders",
		Criteria: domain.SegmentCriteria{
			Match: domain.MatchAll,
			Rules: []domain.SegmentRule{{Field: "total_bookings", Operator: domain.OpGte, Value: domain.NumberValue(5)}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SegmentCustom, def.Type)
	assert.True(t, def.IsActive)
}

func TestSystemSegmentMutationGuards(t *testing.T) {
	svc, repo := newTestService(nil)
	require.NoError(t, svc.Seed(context.Background(), testProfile))

	defs, _ := repo.ListByProfile(context.Background(), testProfile)
	require.NotEmpty(t, defs)
	sysID := defs[0].ID

	name := "Renamed"
	err := svc.Update(context.Background(), testProfile, sysID, segments.UpdateFields{Name: &name})
	assert.ErrorIs(t, err, segments.ErrSystemSegment)

	crit := domain.SegmentCriteria{
		Match: domain.MatchAll,
		Rules: []domain.SegmentRule{{Field: "is_vip", Operator: domain.OpEq, Value: domain.BoolValue(true)}},
	}
	err = svc.Update(context.Background(), testProfile, sysID, segments.UpdateFields{Criteria: &crit})
	assert.ErrorIs(t, err, segments.ErrSystemSegment)

	// is_active and auto_actions remain editable
	inactive := false
	actions := []domain.AutoAction{{ActionType: domain.ActionSendCoupon, CouponID: "c-1"}}
	err = svc.Update(context.Background(), testProfile, sysID, segments.UpdateFields{
		IsActive: &inactive, AutoActions: &actions,
	})
	require.NoError(t, err)

	got, _ := repo.Get(context.Background(), testProfile, sysID)
	assert.False(t, got.IsActive)
	assert.Len(t, got.AutoActions, 1)

	err = svc.Delete(context.Background(), testProfile, sysID)
	assert.ErrorIs(t, err, segments.ErrSystemSegment, "system segments cannot be deleted")
}

func TestDeleteCustom(t *testing.T) {
	svc, _ := newTestService(nil)
	def, err := svc.CreateCustom(context.Background(), testProfile, segments.CreateInput{
		Name: "Temp",
		Criteria: domain.SegmentCriteria{
			Match: domain.MatchAll,
			Rules: []domain.SegmentRule{{Field: "has_line", Operator: domain.OpEq, Value: domain.BoolValue(true)}},
		},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), testProfile, def.ID))
	err = svc.Delete(context.Background(), testProfile, def.ID)
	assert.ErrorIs(t, err, segments.ErrNotFound)
}

func TestUpdateRejectsUnknownField(t *testing.T) {
	svc, _ := newTestService(nil)
	def, err := svc.CreateCustom(context.Background(), testProfile, segments.CreateInput{
		Name: "Bookers",
		Criteria: domain.SegmentCriteria{
			Match: domain.MatchAll,
			Rules: []domain.SegmentRule{{Field: "total_bookings", Operator: domain.OpGte, Value: domain.NumberValue(1)}},
		},
	})
	require.NoError(t, err)

	crit := domain.SegmentCriteria{
		Match: domain.MatchAll,
		Rules: []domain.SegmentRule{{Field: "favorite_color", Operator: domain.OpEq, Value: domain.TextValue("red")}},
	}
	err = svc.Update(context.Background(), testProfile, def.ID, segments.UpdateFields{Criteria: &crit})
	assert.ErrorIs(t, err, segments.ErrInvalidCriteria)
}

func TestSegmentCount(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := newMemRepo()
	customers := &memCustomers{
		customers: []domain.Customer{{
			ID: "c-1", ProfileID: testProfile, Name: "Mika", LineUserID: "U1",
			FirstSeenAt: testNow.AddDate(0, 0, -30), LastSeenAt: testNow.AddDate(0, 0, -1),
		}},
		extras: map[string]domain.CustomerExtras{},
	}
	svc := segments.NewService(repo, customers, cache)
	svc.SetClock(func() time.Time { return testNow })

	def, err := svc.CreateCustom(context.Background(), testProfile, segments.CreateInput{
		Name: "LINE reachable",
		Criteria: domain.SegmentCriteria{
			Match: domain.MatchAll,
			Rules: []domain.SegmentRule{{Field: "has_line", Operator: domain.OpEq, Value: domain.BoolValue(true)}},
		},
	})
	require.NoError(t, err)

	n, err := svc.Count(context.Background(), testProfile, def.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "cold cache falls back to the stored count")

	res, err := svc.Recompute(context.Background(), testProfile, def.ID)
	require.NoError(t, err)
	require.Equal(t, 1, res.CustomerCount)

	n, err = svc.Count(context.Background(), testProfile, def.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "warm cache serves the recomputed count")

	// Cache eviction falls back to the persisted definition count.
	mr.FlushAll()
	n, err = svc.Count(context.Background(), testProfile, def.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.Count(context.Background(), testProfile, "nope")
	assert.ErrorIs(t, err, segments.ErrNotFound)
}

func TestMembershipRecompute(t *testing.T) {
	customers := &memCustomers{
		customers: []domain.Customer{
			{
				ID: "c-new", ProfileID: testProfile, Name: "New",
				FirstSeenAt: testNow.AddDate(0, 0, -5),
				LastSeenAt:  testNow.AddDate(0, 0, -5),
			},
			{
				ID: "c-vip", ProfileID: testProfile, Name: "VIP",
				TotalBookings: 12,
				FirstSeenAt:   testNow.AddDate(0, 0, -300),
				LastSeenAt:    testNow.AddDate(0, 0, -10),
			},
			{
				ID: "c-churned", ProfileID: testProfile, Name: "Gone",
				TotalBookings: 2,
				FirstSeenAt:   testNow.AddDate(0, 0, -400),
				LastSeenAt:    testNow.AddDate(0, 0, -120),
			},
			{
				ID: "c-other", ProfileID: "prof-2", Name: "Other",
				FirstSeenAt: testNow.AddDate(0, 0, -5),
				LastSeenAt:  testNow.AddDate(0, 0, -5),
			},
		},
		extras: map[string]domain.CustomerExtras{
			"c-vip": {HasReferrals: true},
		},
	}

	svc, repo := newTestService(customers)
	require.NoError(t, svc.Seed(context.Background(), testProfile))

	views, err := svc.ListWithMembership(context.Background(), testProfile)
	require.NoError(t, err)

	byName := make(map[string]segments.SegmentView)
	for _, v := range views {
		byName[v.Name] = v
	}

	assert.Equal(t, []string{"c-new"}, byName["New Customers"].CustomerIDs)
	assert.Equal(t, []string{"c-vip"}, byName["VIP"].CustomerIDs)
	assert.Equal(t, []string{"c-churned"}, byName["Churned"].CustomerIDs)
	assert.Equal(t, 1, byName["VIP"].CustomerCount)

	// Counts were cached on the definitions
	stored, _ := repo.Get(context.Background(), testProfile, byName["VIP"].ID)
	assert.Equal(t, 1, stored.CustomerCount)

	// Single-segment recompute agrees
	res, err := svc.Recompute(context.Background(), testProfile, byName["Churned"].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CustomerCount)
	assert.Equal(t, []string{"c-churned"}, res.CustomerIDs)
	assert.Equal(t, testNow, res.CalculatedAt)
}

func TestMembershipScanBounded(t *testing.T) {
	customers := &memCustomers{extras: map[string]domain.CustomerExtras{}}
	for i := 0; i < 50; i++ {
		customers.customers = append(customers.customers, domain.Customer{
			ID: fmt.Sprintf("c-%d", i), ProfileID: testProfile,
			FirstSeenAt: testNow.AddDate(0, 0, -1),
			LastSeenAt:  testNow.AddDate(0, 0, -1),
		})
	}

	svc, _ := newTestService(customers)
	svc.SetScanLimit(10)
	require.NoError(t, svc.Seed(context.Background(), testProfile))

	views, err := svc.ListWithMembership(context.Background(), testProfile)
	require.NoError(t, err)
	for _, v := range views {
		if v.Name == "New Customers" {
			assert.Len(t, v.CustomerIDs, 10, "scan respects the limit")
		}
	}
}
