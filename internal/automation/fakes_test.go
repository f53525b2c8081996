package automation_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/beaconpage/lifecycle-engine/internal/automation"
	"github.com/beaconpage/lifecycle-engine/internal/domain"
	"github.com/beaconpage/lifecycle-engine/internal/sender"
)

type memRules struct {
	mu    sync.Mutex
	rules map[string]*domain.AutomationRule
}

func newMemRules() *memRules {
	return &memRules{rules: make(map[string]*domain.AutomationRule)}
}

func (m *memRules) add(r domain.AutomationRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := r
	m.rules[r.ID] = &cp
}

func (m *memRules) Get(_ context.Context, profileID, id string) (*domain.AutomationRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok || r.ProfileID != profileID {
		return nil, automation.ErrRuleNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRules) ListByProfile(_ context.Context, profileID string) ([]domain.AutomationRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AutomationRule
	for _, r := range m.rules {
		if r.ProfileID == profileID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memRules) ListActiveByTrigger(_ context.Context, profileID string, trigger domain.TriggerType) ([]domain.AutomationRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AutomationRule
	for _, r := range m.rules {
		if r.ProfileID == profileID && r.TriggerType == trigger && r.IsActive {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRules) Create(_ context.Context, r *domain.AutomationRule) error {
	m.add(*r)
	return nil
}

func (m *memRules) Update(_ context.Context, profileID, id string, u automation.RuleUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok || r.ProfileID != profileID {
		return automation.ErrRuleNotFound
	}
	if u.Name != nil {
		r.Name = *u.Name
	}
	if u.DelayHours != nil {
		r.DelayHours = *u.DelayHours
	}
	if u.IsActive != nil {
		r.IsActive = *u.IsActive
	}
	return nil
}

func (m *memRules) Delete(_ context.Context, profileID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok || r.ProfileID != profileID {
		return automation.ErrRuleNotFound
	}
	delete(m.rules, id)
	return nil
}

type memLogs struct {
	mu   sync.Mutex
	logs map[string]*domain.AutomationLog
}

func newMemLogs() *memLogs {
	return &memLogs{logs: make(map[string]*domain.AutomationLog)}
}

func (m *memLogs) Insert(_ context.Context, l *domain.AutomationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.logs[l.ID] = &cp
	return nil
}

func (m *memLogs) ClaimDue(_ context.Context, now time.Time, limit int) ([]domain.AutomationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*domain.AutomationLog
	for _, l := range m.logs {
		if l.Status == domain.LogPending && !l.ScheduledAt.After(now) {
			due = append(due, l)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledAt.Before(due[j].ScheduledAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	out := make([]domain.AutomationLog, 0, len(due))
	for _, l := range due {
		l.Status = domain.LogProcessing
		out = append(out, *l)
	}
	return out, nil
}

func (m *memLogs) Finish(_ context.Context, id string, status domain.LogStatus, sentAt *time.Time, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.logs[id]
	if !ok {
		return automation.ErrRuleNotFound
	}
	l.Status = status
	l.SentAt = sentAt
	l.Error = errMsg
	return nil
}

func (m *memLogs) ListByProfile(_ context.Context, profileID string, limit int) ([]domain.AutomationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AutomationLog
	for _, l := range m.logs {
		if l.ProfileID == profileID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memLogs) ExistsForRule(_ context.Context, ruleID, customerID string, since time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if l.RuleID == ruleID && l.CustomerID == customerID && !l.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memLogs) byStatus(status domain.LogStatus) []domain.AutomationLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AutomationLog
	for _, l := range m.logs {
		if l.Status == status {
			out = append(out, *l)
		}
	}
	return out
}

func (m *memLogs) get(id string) *domain.AutomationLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.logs[id]; ok {
		cp := *l
		return &cp
	}
	return nil
}

type memResolver struct {
	customers map[string]*domain.Customer
	profiles  map[string]*domain.Profile
}

func newMemResolver() *memResolver {
	return &memResolver{
		customers: make(map[string]*domain.Customer),
		profiles:  make(map[string]*domain.Profile),
	}
}

func (m *memResolver) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return nil, automation.ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memResolver) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, automation.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memResolver) ListInactive(_ context.Context, olderThan, newerThan time.Time, limit int) ([]domain.Customer, error) {
	var out []domain.Customer
	for _, c := range m.customers {
		if !c.LastSeenAt.Before(olderThan) && c.LastSeenAt.Before(newerThan) {
			out = append(out, *c)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memResolver) ListBirthdays(_ context.Context, on time.Time, limit int) ([]domain.Customer, error) {
	var out []domain.Customer
	for _, c := range m.customers {
		if c.Birthday != nil && c.Birthday.Month() == on.Month() && c.Birthday.Day() == on.Day() {
			out = append(out, *c)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// fakeSender records messages and fails or panics on demand, keyed by
// recipient email.
type fakeSender struct {
	mu      sync.Mutex
	sent    []sender.Message
	failFor map[string]bool
	panicOn string
}

func newFakeSender() *fakeSender {
	return &fakeSender{failFor: make(map[string]bool)}
}

func (f *fakeSender) Send(_ context.Context, msg *sender.Message) (*sender.SendResult, error) {
	if f.panicOn != "" && msg.Email == f.panicOn {
		panic("sender exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[msg.Email] {
		return &sender.SendResult{Success: false, Channel: "fake"}, nil
	}
	f.sent = append(f.sent, *msg)
	return &sender.SendResult{Success: true, MessageID: "msg-1", Channel: "fake", SentAt: time.Now()}, nil
}

func (f *fakeSender) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		out = append(out, m.Email)
	}
	sort.Strings(out)
	return out
}
