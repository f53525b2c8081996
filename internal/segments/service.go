package segments

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/beaconpage/lifecycle-engine/internal/domain"
	"github.com/beaconpage/lifecycle-engine/internal/metrics"
	"github.com/beaconpage/lifecycle-engine/internal/pkg/logger"
	"github.com/beaconpage/lifecycle-engine/internal/rules"
)

// DefaultScanLimit bounds how many customers one membership recomputation
// walks. The scan is O(segments × customers × rules) by design; at this
// scale that is cheaper than maintaining indexes.
const DefaultScanLimit = 1000

const countCacheTTL = 10 * time.Minute

// Service implements the segment registry. All public methods are safe for
// concurrent use if the underlying repositories are.
type Service struct {
	repo      Repository
	customers CustomerReader
	cache     *redis.Client // optional; nil disables the count cache
	scanLimit int
	now       func() time.Time
}

// NewService creates a segment registry backed by the given repositories.
// cache may be nil.
func NewService(repo Repository, customers CustomerReader, cache *redis.Client) *Service {
	return &Service{
		repo:      repo,
		customers: customers,
		cache:     cache,
		scanLimit: DefaultScanLimit,
		now:       time.Now,
	}
}

// SetClock overrides the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SetScanLimit overrides the customer scan bound.
func (s *Service) SetScanLimit(n int) {
	if n > 0 {
		s.scanLimit = n
	}
}

// Seed inserts the system segment catalog for a profile. Seeding is
// one-time: a profile that already has system segments gets
// ErrAlreadySeeded, never duplicates.
func (s *Service) Seed(ctx context.Context, profileID string) error {
	n, err := s.repo.CountSystemSegments(ctx, profileID)
	if err != nil {
		return fmt.Errorf("check existing system segments: %w", err)
	}
	if n > 0 {
		return ErrAlreadySeeded
	}

	now := s.now()
	for _, def := range systemCatalog() {
		def.ID = uuid.New().String()
		def.ProfileID = profileID
		def.Type = domain.SegmentSystem
		def.IsActive = true
		def.CreatedAt = now
		def.UpdatedAt = now
		if err := s.repo.Create(ctx, &def); err != nil {
			return fmt.Errorf("seed segment %q: %w", def.Name, err)
		}
	}
	logger.Info("seeded system segments", "profile_id", profileID, "count", len(systemCatalog()))
	return nil
}

// CreateInput holds the caller-supplied fields for a custom segment.
type CreateInput struct {
	Name        string
	Description string
	Criteria    domain.SegmentCriteria
	Color       string
	Icon        string
	AutoActions []domain.AutoAction
}

// CreateCustom validates and persists a user-defined segment.
func (s *Service) CreateCustom(ctx context.Context, profileID string, input CreateInput) (*domain.SegmentDefinition, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if err := validateCriteria(input.Criteria); err != nil {
		return nil, err
	}

	now := s.now()
	def := &domain.SegmentDefinition{
		ID:          uuid.New().String(),
		ProfileID:   profileID,
		Name:        input.Name,
		Description: input.Description,
		Type:        domain.SegmentCustom,
		Criteria:    input.Criteria,
		Color:       input.Color,
		Icon:        input.Icon,
		AutoActions: input.AutoActions,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, def); err != nil {
		return nil, fmt.Errorf("create segment: %w", err)
	}
	return def, nil
}

// Update applies a partial update. System segments accept only IsActive and
// AutoActions; anything else returns ErrSystemSegment.
func (s *Service) Update(ctx context.Context, profileID, id string, u UpdateFields) error {
	def, err := s.repo.Get(ctx, profileID, id)
	if err != nil {
		return err
	}
	if def.Type == domain.SegmentSystem && u.touchesRestricted() {
		return ErrSystemSegment
	}
	if u.Criteria != nil {
		if err := validateCriteria(*u.Criteria); err != nil {
			return err
		}
	}
	return s.repo.Update(ctx, profileID, id, u)
}

// Delete removes a custom segment. System segments cannot be deleted, only
// deactivated.
func (s *Service) Delete(ctx context.Context, profileID, id string) error {
	def, err := s.repo.Get(ctx, profileID, id)
	if err != nil {
		return err
	}
	if def.Type == domain.SegmentSystem {
		return ErrSystemSegment
	}
	return s.repo.Delete(ctx, profileID, id)
}

// MembershipResult is the outcome of recomputing one segment's membership.
type MembershipResult struct {
	SegmentID     string    `json:"segment_id"`
	CustomerCount int       `json:"customer_count"`
	CustomerIDs   []string  `json:"customer_ids"`
	CalculatedAt  time.Time `json:"calculated_at"`
	DurationMs    int64     `json:"duration_ms"`
}

// SegmentView is a segment definition with live membership attached.
type SegmentView struct {
	domain.SegmentDefinition
	CustomerIDs []string `json:"customer_ids"`
}

// ListWithMembership returns all of a profile's segments with freshly
// computed membership. One bounded customer scan serves every segment.
func (s *Service) ListWithMembership(ctx context.Context, profileID string) ([]SegmentView, error) {
	defs, err := s.repo.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	if len(defs) == 0 {
		return nil, nil
	}

	population, extras, err := s.loadPopulation(ctx, profileID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]SegmentView, 0, len(defs))
	for _, def := range defs {
		ids := s.matchPopulation(def.Criteria, population, extras, now)
		def.CustomerCount = len(ids)
		views = append(views, SegmentView{SegmentDefinition: def, CustomerIDs: ids})
		s.storeCount(ctx, def.ID, len(ids))
	}
	return views, nil
}

// Recompute recalculates membership for a single segment and refreshes its
// cached count.
func (s *Service) Recompute(ctx context.Context, profileID, segmentID string) (*MembershipResult, error) {
	started := time.Now()
	now := s.now()

	def, err := s.repo.Get(ctx, profileID, segmentID)
	if err != nil {
		return nil, err
	}

	population, extras, err := s.loadPopulation(ctx, profileID)
	if err != nil {
		return nil, err
	}

	ids := s.matchPopulation(def.Criteria, population, extras, now)
	s.storeCount(ctx, def.ID, len(ids))

	return &MembershipResult{
		SegmentID:     def.ID,
		CustomerCount: len(ids),
		CustomerIDs:   ids,
		CalculatedAt:  now,
		DurationMs:    time.Since(started).Milliseconds(),
	}, nil
}

// validateCriteria checks structural soundness plus that every rule
// addresses a declared field. Field resolution lives in internal/rules,
// so the check sits here rather than on the domain type.
func validateCriteria(crit domain.SegmentCriteria) error {
	if err := crit.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCriteria, err)
	}
	for i, r := range crit.Rules {
		if !rules.KnownField(rules.FieldKey(r.Field)) {
			return fmt.Errorf("%w: rule %d: unknown field %q", ErrInvalidCriteria, i, r.Field)
		}
	}
	return nil
}

func (s *Service) loadPopulation(ctx context.Context, profileID string) ([]domain.Customer, map[string]domain.CustomerExtras, error) {
	population, err := s.customers.ListRecentByProfile(ctx, profileID, s.scanLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("load customers: %w", err)
	}

	ids := make([]string, len(population))
	for i, c := range population {
		ids[i] = c.ID
	}
	extras, err := s.customers.FetchExtras(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load extras: %w", err)
	}
	return population, extras, nil
}

func (s *Service) matchPopulation(crit domain.SegmentCriteria, population []domain.Customer, extras map[string]domain.CustomerExtras, now time.Time) []string {
	var ids []string
	for _, c := range population {
		ex := extras[c.ID]
		cf := metrics.Compute(c, ex, now)
		if rules.Matches(c, cf, crit, ex) {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// storeCount persists the cached membership count to the repository and, if
// configured, Redis. Both writes are best-effort: a stale count never fails
// a read.
func (s *Service) storeCount(ctx context.Context, segmentID string, count int) {
	if err := s.repo.UpdateCustomerCount(ctx, segmentID, count); err != nil {
		logger.Warn("segment count cache update failed", "segment_id", segmentID, "error", err.Error())
	}
	if s.cache != nil {
		key := "segment:count:" + segmentID
		if err := s.cache.Set(ctx, key, strconv.Itoa(count), countCacheTTL).Err(); err != nil {
			logger.Debug("redis count cache write failed", "segment_id", segmentID, "error", err.Error())
		}
	}
}

// Count returns the segment's membership count without a population scan:
// the Redis cache when warm, the definition's stored count otherwise.
func (s *Service) Count(ctx context.Context, profileID, segmentID string) (int, error) {
	if n, ok := s.CachedCount(ctx, segmentID); ok {
		return n, nil
	}
	def, err := s.repo.Get(ctx, profileID, segmentID)
	if err != nil {
		return 0, err
	}
	return def.CustomerCount, nil
}

// CachedCount returns the Redis-cached membership count, or ok=false when
// no cache is configured or the key is cold.
func (s *Service) CachedCount(ctx context.Context, segmentID string) (int, bool) {
	if s.cache == nil {
		return 0, false
	}
	val, err := s.cache.Get(ctx, "segment:count:"+segmentID).Result()
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return n, true
}
