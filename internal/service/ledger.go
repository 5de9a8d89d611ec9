// Package service contains the business logic layer.
//
// This file holds configuration and helpers shared by the ledger services:
// the usage tracker, the subscription registry and the chat admission flow.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/quotachat/internal/cache"
	"github.com/DukeRupert/quotachat/internal/domain"
	"github.com/DukeRupert/quotachat/internal/metrics"
	"github.com/DukeRupert/quotachat/internal/store"
	"github.com/google/uuid"
)

// DefaultBundleCacheTTL is how long bundles stay cached. Bundles never change
// once written, so the TTL only bounds memory use.
const DefaultBundleCacheTTL = 10 * time.Minute

// DefaultTranscriptLimit caps transcript listings when no limit is given.
const DefaultTranscriptLimit = 50

// MaxTranscriptLimit is the largest transcript page served.
const MaxTranscriptLimit = 200

// LedgerConfig holds settings shared by the ledger services.
type LedgerConfig struct {
	// FreeMessagesPerMonth is the allowance without a subscription.
	FreeMessagesPerMonth int

	// BundleCacheTTL bounds how long bundles stay in the cache.
	BundleCacheTTL time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// normalize fills in defaults for unset or out-of-range values.
func (c LedgerConfig) normalize() LedgerConfig {
	if c.FreeMessagesPerMonth <= 0 {
		c.FreeMessagesPerMonth = domain.DefaultFreeMessagesPerMonth
	}
	if c.BundleCacheTTL <= 0 {
		c.BundleCacheTTL = DefaultBundleCacheTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// ensureUsageRecord returns the user's record for the period containing now,
// creating it if needed. On the first day of a month a record last written
// before the month began is zeroed, so the first access of a month always
// starts from fresh counters. Callers run it inside InUserTx.
func ensureUsageRecord(ctx context.Context, q store.Queries, userID string, now time.Time, logger *slog.Logger) (*domain.UsageRecord, error) {
	period := domain.PeriodOf(now)

	rec, err := q.EnsureUsageRecord(ctx, userID, period, now)
	if err != nil {
		return nil, err
	}

	if domain.IsFirstDayOfMonth(now) {
		reset, err := q.ResetStaleUsageRecord(ctx, rec.ID, period.Start(), now)
		if err != nil {
			return nil, err
		}
		if reset {
			rec.FreeUsed = 0
			rec.PaidUsed = 0
			rec.UpdatedAt = now
			metrics.UsageReset("lazy", 1)
			logger.Info("Usage record reset for new month",
				"user_id", userID,
				"period", period.String(),
			)
		}
	}

	return rec, nil
}

// activeSubscription resolves the subscription governing paid access at now,
// with its bundle loaded. It returns nil when the user has none.
func activeSubscription(ctx context.Context, q store.Queries, bundles *bundleCache, userID string, now time.Time) (*domain.Subscription, error) {
	subs, err := q.ListActiveSubscriptions(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	sub := domain.PickActive(subs, now)
	if sub == nil {
		return nil, nil
	}

	bundle, err := bundles.get(ctx, q, sub.BundleID)
	if err != nil {
		return nil, err
	}
	sub.Bundle = bundle
	return sub, nil
}

// =============================================================================
// Bundle Cache
// =============================================================================

// bundleCache reads bundles through the cache. Bundles are immutable once
// stored, so entries never need invalidation.
type bundleCache struct {
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func newBundleCache(c cache.Cache, ttl time.Duration, logger *slog.Logger) *bundleCache {
	if c == nil {
		c = cache.Noop{}
	}
	return &bundleCache{cache: c, ttl: ttl, logger: logger}
}

func bundleIDKey(id uuid.UUID) string {
	return "bundle:" + id.String()
}

func bundlePlanKey(tier domain.Tier, cycle domain.BillingCycle) string {
	return "bundle:plan:" + string(tier) + ":" + string(cycle)
}

// get loads a bundle by id, preferring the cache.
func (b *bundleCache) get(ctx context.Context, q store.Queries, id uuid.UUID) (*domain.Bundle, error) {
	var cached domain.Bundle
	found, err := b.cache.Get(ctx, bundleIDKey(id), &cached)
	if err != nil {
		b.logger.Warn("bundle cache read failed", "bundle_id", id, "error", err)
	} else if found {
		return &cached, nil
	}

	bundle, err := q.GetBundle(ctx, id)
	if err != nil {
		return nil, err
	}
	b.put(ctx, bundle)
	return bundle, nil
}

// lookupPlan returns the cached bundle for a (tier, cycle) plan, if any.
func (b *bundleCache) lookupPlan(ctx context.Context, tier domain.Tier, cycle domain.BillingCycle) *domain.Bundle {
	var cached domain.Bundle
	found, err := b.cache.Get(ctx, bundlePlanKey(tier, cycle), &cached)
	if err != nil {
		b.logger.Warn("bundle cache read failed", "tier", tier, "billing_cycle", cycle, "error", err)
		return nil
	}
	if !found {
		return nil
	}
	return &cached
}

// put stores a committed bundle under both of its keys. Failures only cost
// a later cache miss.
func (b *bundleCache) put(ctx context.Context, bundle *domain.Bundle) {
	for _, key := range []string{bundleIDKey(bundle.ID), bundlePlanKey(bundle.Tier, bundle.BillingCycle)} {
		if err := b.cache.Set(ctx, key, bundle, b.ttl); err != nil {
			b.logger.Warn("bundle cache write failed", "key", key, "error", err)
		}
	}
}
