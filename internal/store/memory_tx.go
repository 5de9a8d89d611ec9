package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/DukeRupert/quotachat/internal/domain"
	"github.com/google/uuid"
)

// memoryTx is the Queries view handed to InUserTx callbacks. Every write
// records an undo step; rollback applies them newest first.
type memoryTx struct {
	*Memory
	undo []func()
}

func (tx *memoryTx) onRollback(fn func()) {
	tx.undo = append(tx.undo, fn)
}

func (tx *memoryTx) rollback() {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

// =============================================================================
// Users
// =============================================================================

func (tx *memoryTx) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	created, err := tx.Memory.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	tx.onRollback(func() {
		delete(tx.users, created.ID)
	})
	return created, nil
}

// =============================================================================
// Usage Records
// =============================================================================

func (tx *memoryTx) EnsureUsageRecord(ctx context.Context, userID string, period domain.Period, now time.Time) (*domain.UsageRecord, error) {
	rec, created, err := tx.ensureUsageRecord(userID, period, now)
	if err != nil {
		return nil, err
	}
	if created {
		tx.onRollback(func() {
			key := usageKey{userID: userID, period: period}
			if tx.usageByKey[key] == rec.ID {
				delete(tx.usageByKey, key)
			}
			delete(tx.usage, rec.ID)
		})
	}
	return rec, nil
}

func (tx *memoryTx) ResetStaleUsageRecord(ctx context.Context, id uuid.UUID, periodStart, now time.Time) (bool, error) {
	prev, ok := tx.usageSnapshot(id)
	reset, err := tx.Memory.ResetStaleUsageRecord(ctx, id, periodStart, now)
	if err != nil || !reset || !ok {
		return reset, err
	}
	tx.onRollback(func() {
		if rec, ok := tx.usage[id]; ok {
			rec.FreeUsed = prev.FreeUsed
			rec.PaidUsed = prev.PaidUsed
			rec.UpdatedAt = prev.UpdatedAt
		}
	})
	return reset, nil
}

func (tx *memoryTx) IncrementUsage(ctx context.Context, id uuid.UUID, kind domain.UsageKind, limit *int, now time.Time) (int, error) {
	used, err := tx.Memory.IncrementUsage(ctx, id, kind, limit, now)
	if err != nil {
		return 0, err
	}
	tx.onRollback(func() {
		tx.adjustCounter(id, kind, -1)
	})
	return used, nil
}

func (tx *memoryTx) DecrementUsage(ctx context.Context, id uuid.UUID, kind domain.UsageKind, now time.Time) (int, error) {
	prev, ok := tx.usageSnapshot(id)
	used, err := tx.Memory.DecrementUsage(ctx, id, kind, now)
	if err != nil {
		return 0, err
	}
	if ok {
		if before, err := counterFor(&prev, kind); err == nil && *before > used {
			tx.onRollback(func() {
				tx.adjustCounter(id, kind, 1)
			})
		}
	}
	return used, nil
}

func (tx *memoryTx) DeleteUsageRecordsForPeriod(ctx context.Context, period domain.Period) (int64, error) {
	removed := tx.deleteUsageRecordsForPeriod(period)
	if len(removed) > 0 {
		tx.onRollback(func() {
			for _, rec := range removed {
				key := usageKey{userID: rec.UserID, period: period}
				if _, taken := tx.usageByKey[key]; taken {
					continue
				}
				restored := rec
				tx.usage[rec.ID] = &restored
				tx.usageByKey[key] = rec.ID
			}
		})
	}
	return int64(len(removed)), nil
}

// usageSnapshot copies the record with the given id, if present.
func (tx *memoryTx) usageSnapshot(id uuid.UUID) (domain.UsageRecord, bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	rec, ok := tx.usage[id]
	if !ok {
		return domain.UsageRecord{}, false
	}
	return *rec, true
}

// adjustCounter moves a counter by delta, never below zero. Callers hold mu.
func (tx *memoryTx) adjustCounter(id uuid.UUID, kind domain.UsageKind, delta int) {
	rec, ok := tx.usage[id]
	if !ok {
		return
	}
	counter, err := counterFor(rec, kind)
	if err != nil {
		return
	}
	*counter = max(*counter+delta, 0)
}

// =============================================================================
// Bundles
// =============================================================================

func (tx *memoryTx) InsertBundleIfAbsent(ctx context.Context, b domain.Bundle) (*domain.Bundle, error) {
	bundle, inserted := tx.insertBundleIfAbsent(b)
	if inserted {
		tx.onRollback(func() {
			for _, s := range tx.subscriptions {
				if s.BundleID == bundle.ID {
					return
				}
			}
			delete(tx.bundles, bundle.ID)
			delete(tx.bundlesByKey, bundleKey{tier: bundle.Tier, cycle: bundle.BillingCycle})
		})
	}
	return bundle, nil
}

// =============================================================================
// Subscriptions
// =============================================================================

func (tx *memoryTx) CreateSubscription(ctx context.Context, s domain.Subscription) (*domain.Subscription, error) {
	created, err := tx.Memory.CreateSubscription(ctx, s)
	if err != nil {
		return nil, err
	}
	tx.onRollback(func() {
		delete(tx.subscriptions, created.ID)
	})
	return created, nil
}

func (tx *memoryTx) CancelSubscription(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Subscription, error) {
	prev, err := tx.Memory.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	sub, err := tx.Memory.CancelSubscription(ctx, id, now)
	if err != nil {
		return nil, err
	}
	tx.restoreSubscriptionOnRollback(*prev)
	return sub, nil
}

func (tx *memoryTx) SetAutoRenew(ctx context.Context, id uuid.UUID, autoRenew bool, now time.Time) (*domain.Subscription, error) {
	prev, err := tx.Memory.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	sub, err := tx.Memory.SetAutoRenew(ctx, id, autoRenew, now)
	if err != nil {
		return nil, err
	}
	tx.restoreSubscriptionOnRollback(*prev)
	return sub, nil
}

func (tx *memoryTx) restoreSubscriptionOnRollback(prev domain.Subscription) {
	tx.onRollback(func() {
		if s, ok := tx.subscriptions[prev.ID]; ok {
			s.IsActive = prev.IsActive
			s.AutoRenew = prev.AutoRenew
			s.UpdatedAt = prev.UpdatedAt
		}
	})
}

// =============================================================================
// Chat Transcript
// =============================================================================

func (tx *memoryTx) CreateChatMessage(ctx context.Context, msg domain.ChatMessage, metadata json.RawMessage) (*domain.ChatMessage, error) {
	created, err := tx.Memory.CreateChatMessage(ctx, msg, metadata)
	if err != nil {
		return nil, err
	}
	tx.onRollback(func() {
		for i := len(tx.messages) - 1; i >= 0; i-- {
			if tx.messages[i].ID == created.ID {
				tx.messages = append(tx.messages[:i], tx.messages[i+1:]...)
				return
			}
		}
	})
	return created, nil
}
