package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/DukeRupert/quotachat/internal/domain"
	"github.com/google/uuid"
)

// Memory is a process-local Store. All data is lost on exit.
type Memory struct {
	mu            sync.Mutex
	users         map[string]domain.User
	usage         map[uuid.UUID]*domain.UsageRecord
	usageByKey    map[usageKey]uuid.UUID
	bundles       map[uuid.UUID]domain.Bundle
	bundlesByKey  map[bundleKey]uuid.UUID
	subscriptions map[uuid.UUID]*domain.Subscription
	messages      []domain.ChatMessage

	locksMu   sync.Mutex
	userLocks map[string]*sync.Mutex
}

type usageKey struct {
	userID string
	period domain.Period
}

type bundleKey struct {
	tier  domain.Tier
	cycle domain.BillingCycle
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:         make(map[string]domain.User),
		usage:         make(map[uuid.UUID]*domain.UsageRecord),
		usageByKey:    make(map[usageKey]uuid.UUID),
		bundles:       make(map[uuid.UUID]domain.Bundle),
		bundlesByKey:  make(map[bundleKey]uuid.UUID),
		subscriptions: make(map[uuid.UUID]*domain.Subscription),
		userLocks:     make(map[string]*sync.Mutex),
	}
}

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

// InUserTx serializes fn with other calls for the same user. Writes made
// through the Queries passed to fn are undone if fn returns an error.
func (m *Memory) InUserTx(ctx context.Context, userID string, fn func(q Queries) error) error {
	if _, err := m.GetUser(ctx, userID); err != nil {
		return err
	}

	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{Memory: m}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (m *Memory) userLock(userID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	lock, ok := m.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.userLocks[userID] = lock
	}
	return lock
}

// =============================================================================
// Users
// =============================================================================

func (m *Memory) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.ID]; ok {
		return nil, fmt.Errorf("%w: user %s", ErrConflict, user.ID)
	}
	m.users[user.ID] = user
	return &user, nil
}

func (m *Memory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

// =============================================================================
// Usage Records
// =============================================================================

func (m *Memory) EnsureUsageRecord(ctx context.Context, userID string, period domain.Period, now time.Time) (*domain.UsageRecord, error) {
	rec, _, err := m.ensureUsageRecord(userID, period, now)
	return rec, err
}

// ensureUsageRecord also reports whether the record was created.
func (m *Memory) ensureUsageRecord(userID string, period domain.Period, now time.Time) (*domain.UsageRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return nil, false, ErrNotFound
	}

	key := usageKey{userID: userID, period: period}
	if id, ok := m.usageByKey[key]; ok {
		rec := *m.usage[id]
		return &rec, false, nil
	}

	rec := &domain.UsageRecord{
		ID:        uuid.New(),
		UserID:    userID,
		Month:     period.Month,
		Year:      period.Year,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.usage[rec.ID] = rec
	m.usageByKey[key] = rec.ID
	out := *rec
	return &out, true, nil
}

func (m *Memory) ResetStaleUsageRecord(ctx context.Context, id uuid.UUID, periodStart, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.usage[id]
	if !ok || !rec.UpdatedAt.Before(periodStart) {
		return false, nil
	}
	rec.FreeUsed = 0
	rec.PaidUsed = 0
	rec.UpdatedAt = now
	return true, nil
}

func (m *Memory) IncrementUsage(ctx context.Context, id uuid.UUID, kind domain.UsageKind, limit *int, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.usage[id]
	if !ok {
		return 0, ErrNotFound
	}

	counter, err := counterFor(rec, kind)
	if err != nil {
		return 0, err
	}
	if kind == domain.UsageFree && limit == nil {
		return 0, fmt.Errorf("free usage requires a limit")
	}
	if limit != nil && *counter >= *limit {
		return 0, ErrLimitReached
	}
	*counter++
	rec.UpdatedAt = now
	return *counter, nil
}

func (m *Memory) DecrementUsage(ctx context.Context, id uuid.UUID, kind domain.UsageKind, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.usage[id]
	if !ok {
		return 0, nil
	}

	counter, err := counterFor(rec, kind)
	if err != nil {
		return 0, err
	}
	if *counter > 0 {
		*counter--
		rec.UpdatedAt = now
	}
	return *counter, nil
}

func counterFor(rec *domain.UsageRecord, kind domain.UsageKind) (*int, error) {
	switch kind {
	case domain.UsageFree:
		return &rec.FreeUsed, nil
	case domain.UsagePaid:
		return &rec.PaidUsed, nil
	default:
		return nil, fmt.Errorf("unknown usage kind %q", kind)
	}
}

func (m *Memory) DeleteUsageRecordsForPeriod(ctx context.Context, period domain.Period) (int64, error) {
	removed := m.deleteUsageRecordsForPeriod(period)
	return int64(len(removed)), nil
}

// deleteUsageRecordsForPeriod returns the records it removed.
func (m *Memory) deleteUsageRecordsForPeriod(period domain.Period) []domain.UsageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []domain.UsageRecord
	for key, id := range m.usageByKey {
		if key.period != period {
			continue
		}
		removed = append(removed, *m.usage[id])
		delete(m.usageByKey, key)
		delete(m.usage, id)
	}
	return removed
}

// =============================================================================
// Bundles
// =============================================================================

func (m *Memory) InsertBundleIfAbsent(ctx context.Context, b domain.Bundle) (*domain.Bundle, error) {
	bundle, _ := m.insertBundleIfAbsent(b)
	return bundle, nil
}

// insertBundleIfAbsent also reports whether b was inserted.
func (m *Memory) insertBundleIfAbsent(b domain.Bundle) (*domain.Bundle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := bundleKey{tier: b.Tier, cycle: b.BillingCycle}
	if id, ok := m.bundlesByKey[key]; ok {
		existing := m.bundles[id]
		return &existing, false
	}
	m.bundles[b.ID] = b
	m.bundlesByKey[key] = b.ID
	return &b, true
}

func (m *Memory) GetBundle(ctx context.Context, id uuid.UUID) (*domain.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bundles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (m *Memory) GetBundleByKey(ctx context.Context, tier domain.Tier, cycle domain.BillingCycle) (*domain.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.bundlesByKey[bundleKey{tier: tier, cycle: cycle}]
	if !ok {
		return nil, ErrNotFound
	}
	b := m.bundles[id]
	return &b, nil
}

func (m *Memory) ListBundles(ctx context.Context) ([]domain.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bundles := make([]domain.Bundle, 0, len(m.bundles))
	for _, b := range m.bundles {
		bundles = append(bundles, b)
	}
	sort.Slice(bundles, func(i, j int) bool {
		if bundles[i].Tier != bundles[j].Tier {
			return bundles[i].Tier < bundles[j].Tier
		}
		return bundles[i].BillingCycle < bundles[j].BillingCycle
	})
	return bundles, nil
}

// =============================================================================
// Subscriptions
// =============================================================================

func (m *Memory) CreateSubscription(ctx context.Context, s domain.Subscription) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[s.UserID]; !ok {
		return nil, ErrNotFound
	}
	if _, ok := m.bundles[s.BundleID]; !ok {
		return nil, ErrNotFound
	}
	if _, ok := m.subscriptions[s.ID]; ok {
		return nil, fmt.Errorf("%w: subscription %s", ErrConflict, s.ID)
	}

	s.IsActive = true
	s.Bundle = nil
	s.UpdatedAt = s.CreatedAt
	stored := s
	m.subscriptions[s.ID] = &stored
	return &s, nil
}

func (m *Memory) GetSubscription(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.subscriptions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s
	return &out, nil
}

func (m *Memory) ListActiveSubscriptions(ctx context.Context, userID string, now time.Time) ([]domain.Subscription, error) {
	return m.ListActiveSubscriptionsForUsers(ctx, []string{userID}, now)
}

func (m *Memory) ListActiveSubscriptionsForUsers(ctx context.Context, userIDs []string, now time.Time) ([]domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}

	subs := make([]domain.Subscription, 0)
	for _, s := range m.subscriptions {
		if wanted[s.UserID] && s.IsCurrentlyActive(now) {
			subs = append(subs, *s)
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].UserID != subs[j].UserID {
			return subs[i].UserID < subs[j].UserID
		}
		if !subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].CreatedAt.After(subs[j].CreatedAt)
		}
		return subs[i].ID.String() > subs[j].ID.String()
	})
	return subs, nil
}

func (m *Memory) CancelSubscription(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.subscriptions[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.IsActive = false
	s.AutoRenew = false
	s.UpdatedAt = now
	out := *s
	return &out, nil
}

func (m *Memory) SetAutoRenew(ctx context.Context, id uuid.UUID, autoRenew bool, now time.Time) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.subscriptions[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.AutoRenew = autoRenew
	s.UpdatedAt = now
	out := *s
	return &out, nil
}

// =============================================================================
// Chat Transcript
// =============================================================================

func (m *Memory) CreateChatMessage(ctx context.Context, msg domain.ChatMessage, metadata json.RawMessage) (*domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[msg.UserID]; !ok {
		return nil, ErrNotFound
	}
	m.messages = append(m.messages, msg)
	return &msg, nil
}

func (m *Memory) ListChatMessages(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.ChatMessage, 0)
	// Newest first
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if m.messages[i].UserID == userID {
			out = append(out, m.messages[i])
		}
	}
	return out, nil
}
