// Package store provides persistence for the quota ledger.
//
// Two implementations exist: Postgres, backed by the sqlc query layer, and
// Memory, used by tests and by single-process development runs. Both speak
// domain types so the service layer never sees database models.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/DukeRupert/quotachat/internal/domain"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a lookup by identity matches nothing.
	ErrNotFound = errors.New("store: not found")

	// ErrLimitReached is returned by IncrementUsage when the counter is
	// already at its cap. The counter is left unchanged.
	ErrLimitReached = errors.New("store: usage limit reached")

	// ErrConflict is returned when an insert violates a uniqueness rule.
	ErrConflict = errors.New("store: conflict")
)

// Queries is the set of ledger operations available both directly on a
// Store and inside a per-user transaction.
type Queries interface {
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)

	// EnsureUsageRecord returns the record for (userID, period), creating a
	// zeroed one if absent. Concurrent callers converge on a single record.
	EnsureUsageRecord(ctx context.Context, userID string, period domain.Period, now time.Time) (*domain.UsageRecord, error)

	// ResetStaleUsageRecord zeroes the record's counters if it was last
	// written before periodStart. It reports whether a reset happened.
	ResetStaleUsageRecord(ctx context.Context, id uuid.UUID, periodStart, now time.Time) (bool, error)

	// IncrementUsage atomically adds one to the kind counter if it is below
	// limit (nil means no limit) and returns the new value. It returns
	// ErrNotFound if the record no longer exists, for example after a
	// period sweep.
	IncrementUsage(ctx context.Context, id uuid.UUID, kind domain.UsageKind, limit *int, now time.Time) (int, error)

	// DecrementUsage atomically gives back one unit of the kind counter,
	// never going below zero, and returns the new value.
	DecrementUsage(ctx context.Context, id uuid.UUID, kind domain.UsageKind, now time.Time) (int, error)

	DeleteUsageRecordsForPeriod(ctx context.Context, period domain.Period) (int64, error)

	// InsertBundleIfAbsent stores b unless a bundle with the same tier and
	// billing cycle exists, and returns whichever bundle is stored.
	InsertBundleIfAbsent(ctx context.Context, b domain.Bundle) (*domain.Bundle, error)
	GetBundle(ctx context.Context, id uuid.UUID) (*domain.Bundle, error)
	GetBundleByKey(ctx context.Context, tier domain.Tier, cycle domain.BillingCycle) (*domain.Bundle, error)
	ListBundles(ctx context.Context) ([]domain.Bundle, error)

	CreateSubscription(ctx context.Context, s domain.Subscription) (*domain.Subscription, error)
	GetSubscription(ctx context.Context, id uuid.UUID) (*domain.Subscription, error)

	// ListActiveSubscriptions returns subscriptions that are active at now,
	// most recently created first.
	ListActiveSubscriptions(ctx context.Context, userID string, now time.Time) ([]domain.Subscription, error)
	ListActiveSubscriptionsForUsers(ctx context.Context, userIDs []string, now time.Time) ([]domain.Subscription, error)
	CancelSubscription(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Subscription, error)
	SetAutoRenew(ctx context.Context, id uuid.UUID, autoRenew bool, now time.Time) (*domain.Subscription, error)

	CreateChatMessage(ctx context.Context, m domain.ChatMessage, metadata json.RawMessage) (*domain.ChatMessage, error)
	ListChatMessages(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error)
}

// Store is the persistence capability consumed by the ledger services.
type Store interface {
	Queries

	// InUserTx runs fn with userID's ledger mutations serialized against
	// every other InUserTx call for the same user. It returns ErrNotFound
	// without calling fn if the user does not exist. Calls must not nest.
	InUserTx(ctx context.Context, userID string, fn func(q Queries) error) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
