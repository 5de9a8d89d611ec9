// Package service contains the business logic layer.
//
// This file implements the subscription registry: priced bundles and the
// subscriptions users hold against them.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/quotachat/internal/cache"
	"github.com/DukeRupert/quotachat/internal/domain"
	"github.com/DukeRupert/quotachat/internal/metrics"
	"github.com/DukeRupert/quotachat/internal/store"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SubscriptionService defines operations on bundles and subscriptions.
type SubscriptionService interface {
	// Subscribe buys a plan for the user: it reuses or creates the bundle for
	// (tier, billing cycle), opens a subscription starting now and makes sure
	// the user has a usage record for the current month.
	Subscribe(ctx context.Context, params SubscribeParams) (*domain.Subscription, error)

	// CreateSubscription opens a subscription on an existing bundle. It never
	// deactivates the user's other subscriptions.
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*domain.Subscription, error)

	// CancelSubscription deactivates a subscription immediately and turns off
	// auto-renew. Cancelling twice is not an error.
	CancelSubscription(ctx context.Context, id uuid.UUID) (*domain.Subscription, error)

	// SetAutoRenew changes only the auto-renew flag.
	SetAutoRenew(ctx context.Context, id uuid.UUID, autoRenew bool) (*domain.Subscription, error)

	// GetActiveSubscription returns the subscription governing paid access at
	// now, or nil if there is none.
	GetActiveSubscription(ctx context.Context, userID string, now time.Time) (*domain.Subscription, error)

	// ListActiveSubscriptions returns the user's active subscriptions with
	// bundles, most recently created first.
	ListActiveSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error)

	// ListActiveSubscriptionsForUsers returns active subscriptions keyed by user.
	ListActiveSubscriptionsForUsers(ctx context.Context, userIDs []string) (map[string][]domain.Subscription, error)

	// GetOrCreateBundle returns the bundle for (tier, billing cycle), storing
	// params as a new bundle only if none exists yet.
	GetOrCreateBundle(ctx context.Context, params BundleParams) (*domain.Bundle, error)

	ListBundles(ctx context.Context) ([]domain.Bundle, error)
}

// BundleParams describes a plan. A nil MaxMessages means unbounded.
type BundleParams struct {
	Tier         domain.Tier
	BillingCycle domain.BillingCycle
	MaxMessages  *int
	Price        float64
}

// SubscribeParams contains parameters for buying a plan.
type SubscribeParams struct {
	UserID    string
	Bundle    BundleParams
	AutoRenew bool
}

// CreateSubscriptionParams contains parameters for opening a subscription
// on an existing bundle.
type CreateSubscriptionParams struct {
	UserID    string
	BundleID  uuid.UUID
	StartDate time.Time
	EndDate   time.Time
	AutoRenew bool
}

// MaxUsersPerLookup bounds ListActiveSubscriptionsForUsers.
const MaxUsersPerLookup = 100

// =============================================================================
// Implementation
// =============================================================================

type subscriptionService struct {
	store   store.Store
	bundles *bundleCache
	cfg     LedgerConfig
	logger  *slog.Logger
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(st store.Store, c cache.Cache, cfg LedgerConfig, logger *slog.Logger) SubscriptionService {
	cfg = cfg.normalize()
	return &subscriptionService{
		store:   st,
		bundles: newBundleCache(c, cfg.BundleCacheTTL, logger),
		cfg:     cfg,
		logger:  logger,
	}
}

// validateBundle checks plan parameters before anything is stored.
func validateBundle(op string, p BundleParams) error {
	if p.Tier == "" {
		return domain.NewValidationError(op, "tier", "Tier is required")
	}
	if p.BillingCycle != domain.BillingCycleMonthly && p.BillingCycle != domain.BillingCycleYearly {
		return domain.NewValidationError(op, "billingCycle", "Billing cycle must be MONTHLY or YEARLY")
	}
	if p.MaxMessages != nil && *p.MaxMessages <= 0 {
		return domain.NewValidationError(op, "messagesLimit", "Messages limit must be positive or INFINITE")
	}
	if p.Price < 0 {
		return domain.NewValidationError(op, "price", "Price cannot be negative")
	}
	return nil
}

// Subscribe buys a plan for the user.
func (s *subscriptionService) Subscribe(ctx context.Context, params SubscribeParams) (*domain.Subscription, error) {
	const op = "subscription.subscribe"

	if err := validateBundle(op, params.Bundle); err != nil {
		return nil, err
	}

	now := s.cfg.Now()
	var (
		sub     *domain.Subscription
		created bool
	)
	err := s.store.InUserTx(ctx, params.UserID, func(q store.Queries) error {
		bundle, isNew, err := s.getOrCreateBundle(ctx, q, params.Bundle, now)
		if err != nil {
			return err
		}
		created = isNew

		sub, err = q.CreateSubscription(ctx, domain.Subscription{
			ID:          uuid.New(),
			UserID:      params.UserID,
			BundleID:    bundle.ID,
			StartDate:   now,
			EndDate:     bundle.BillingCycle.EndDate(now),
			RenewalDate: bundle.BillingCycle.EndDate(now),
			AutoRenew:   params.AutoRenew,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		sub.Bundle = bundle

		_, err = ensureUsageRecord(ctx, q, params.UserID, now, s.logger)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.UserNotFound(op, params.UserID)
		}
		return nil, domain.Internal(err, op, "failed to create subscription")
	}

	// Cached only after commit so a rolled-back bundle is never served.
	s.bundles.put(ctx, sub.Bundle)

	metrics.SubscriptionCreated(sub.Bundle.Tier.MetricLabel(), string(sub.Bundle.BillingCycle))
	s.logger.Info("Subscription created",
		"user_id", params.UserID,
		"subscription_id", sub.ID,
		"tier", sub.Bundle.Tier,
		"billing_cycle", sub.Bundle.BillingCycle,
		"new_bundle", created,
		"end_date", sub.EndDate,
	)

	return sub, nil
}

// CreateSubscription opens a subscription on an existing bundle.
func (s *subscriptionService) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*domain.Subscription, error) {
	const op = "subscription.create"

	if !params.EndDate.After(params.StartDate) {
		return nil, domain.NewValidationError(op, "endDate", "End date must be after start date")
	}

	now := s.cfg.Now()
	var sub *domain.Subscription
	err := s.store.InUserTx(ctx, params.UserID, func(q store.Queries) error {
		bundle, err := s.bundles.get(ctx, q, params.BundleID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.NotFound(op, "bundle", params.BundleID.String())
			}
			return err
		}

		sub, err = q.CreateSubscription(ctx, domain.Subscription{
			ID:          uuid.New(),
			UserID:      params.UserID,
			BundleID:    bundle.ID,
			StartDate:   params.StartDate,
			EndDate:     params.EndDate,
			RenewalDate: params.EndDate,
			AutoRenew:   params.AutoRenew,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		sub.Bundle = bundle
		return nil
	})
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			return nil, de
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.UserNotFound(op, params.UserID)
		}
		return nil, domain.Internal(err, op, "failed to create subscription")
	}

	metrics.SubscriptionCreated(sub.Bundle.Tier.MetricLabel(), string(sub.Bundle.BillingCycle))
	s.logger.Info("Subscription created",
		"user_id", params.UserID,
		"subscription_id", sub.ID,
		"bundle_id", params.BundleID,
	)

	return sub, nil
}

// CancelSubscription deactivates a subscription immediately.
func (s *subscriptionService) CancelSubscription(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	const op = "subscription.cancel"

	var wasActive bool
	sub, err := s.updateSubscription(ctx, op, id, func(q store.Queries, current *domain.Subscription, now time.Time) (*domain.Subscription, error) {
		wasActive = current.IsActive
		return q.CancelSubscription(ctx, id, now)
	})
	if err != nil {
		return nil, err
	}

	if wasActive {
		metrics.SubscriptionCanceled()
		s.logger.Info("Subscription canceled",
			"user_id", sub.UserID,
			"subscription_id", sub.ID,
		)
	}

	return sub, nil
}

// SetAutoRenew updates the auto-renew flag.
func (s *subscriptionService) SetAutoRenew(ctx context.Context, id uuid.UUID, autoRenew bool) (*domain.Subscription, error) {
	const op = "subscription.set_auto_renew"

	sub, err := s.updateSubscription(ctx, op, id, func(q store.Queries, _ *domain.Subscription, now time.Time) (*domain.Subscription, error) {
		return q.SetAutoRenew(ctx, id, autoRenew, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Subscription auto-renew updated",
		"user_id", sub.UserID,
		"subscription_id", sub.ID,
		"auto_renew", autoRenew,
	)

	return sub, nil
}

// updateSubscription applies fn to a subscription while holding its owner's
// ledger lock, and loads the bundle into the result.
func (s *subscriptionService) updateSubscription(
	ctx context.Context,
	op string,
	id uuid.UUID,
	fn func(q store.Queries, current *domain.Subscription, now time.Time) (*domain.Subscription, error),
) (*domain.Subscription, error) {
	current, err := s.store.GetSubscription(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.SubscriptionNotFound(op, id.String())
		}
		return nil, domain.Internal(err, op, "failed to load subscription")
	}

	now := s.cfg.Now()
	var sub *domain.Subscription
	err = s.store.InUserTx(ctx, current.UserID, func(q store.Queries) error {
		var err error
		sub, err = fn(q, current, now)
		if err != nil {
			return err
		}
		sub.Bundle, err = s.bundles.get(ctx, q, sub.BundleID)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.SubscriptionNotFound(op, id.String())
		}
		return nil, domain.Internal(err, op, "failed to update subscription")
	}

	return sub, nil
}

// GetActiveSubscription returns the governing subscription, or nil.
func (s *subscriptionService) GetActiveSubscription(ctx context.Context, userID string, now time.Time) (*domain.Subscription, error) {
	const op = "subscription.get_active"

	sub, err := activeSubscription(ctx, s.store, s.bundles, userID, now)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load active subscription")
	}
	return sub, nil
}

// ListActiveSubscriptions returns the user's active subscriptions.
func (s *subscriptionService) ListActiveSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error) {
	const op = "subscription.list_active"

	if _, err := s.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.UserNotFound(op, userID)
		}
		return nil, domain.Internal(err, op, "failed to load user")
	}

	subs, err := s.store.ListActiveSubscriptions(ctx, userID, s.cfg.Now())
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list subscriptions")
	}
	if err := s.attachBundles(ctx, subs); err != nil {
		return nil, domain.Internal(err, op, "failed to load bundles")
	}
	return subs, nil
}

// ListActiveSubscriptionsForUsers returns active subscriptions keyed by user id.
func (s *subscriptionService) ListActiveSubscriptionsForUsers(ctx context.Context, userIDs []string) (map[string][]domain.Subscription, error) {
	const op = "subscription.list_active_for_users"

	if len(userIDs) == 0 {
		return map[string][]domain.Subscription{}, nil
	}
	if len(userIDs) > MaxUsersPerLookup {
		return nil, domain.Invalid(op, "Too many users requested")
	}

	subs, err := s.store.ListActiveSubscriptionsForUsers(ctx, userIDs, s.cfg.Now())
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list subscriptions")
	}
	if err := s.attachBundles(ctx, subs); err != nil {
		return nil, domain.Internal(err, op, "failed to load bundles")
	}

	byUser := make(map[string][]domain.Subscription, len(userIDs))
	for _, sub := range subs {
		byUser[sub.UserID] = append(byUser[sub.UserID], sub)
	}
	return byUser, nil
}

func (s *subscriptionService) attachBundles(ctx context.Context, subs []domain.Subscription) error {
	for i := range subs {
		bundle, err := s.bundles.get(ctx, s.store, subs[i].BundleID)
		if err != nil {
			return err
		}
		subs[i].Bundle = bundle
	}
	return nil
}

// GetOrCreateBundle returns the bundle for a plan, creating it on first use.
func (s *subscriptionService) GetOrCreateBundle(ctx context.Context, params BundleParams) (*domain.Bundle, error) {
	const op = "subscription.get_or_create_bundle"

	if err := validateBundle(op, params); err != nil {
		return nil, err
	}

	bundle, created, err := s.getOrCreateBundle(ctx, s.store, params, s.cfg.Now())
	if err != nil {
		return nil, domain.Internal(err, op, "failed to store bundle")
	}
	s.bundles.put(ctx, bundle)

	if created {
		s.logger.Info("Bundle created",
			"bundle_id", bundle.ID,
			"tier", bundle.Tier,
			"billing_cycle", bundle.BillingCycle,
		)
	}
	return bundle, nil
}

// getOrCreateBundle is the idempotent upsert keyed by (tier, cycle); the
// first stored values win. It reports whether params became the bundle.
func (s *subscriptionService) getOrCreateBundle(ctx context.Context, q store.Queries, params BundleParams, now time.Time) (*domain.Bundle, bool, error) {
	if cached := s.bundles.lookupPlan(ctx, params.Tier, params.BillingCycle); cached != nil {
		return cached, false, nil
	}

	candidate := domain.Bundle{
		ID:           uuid.New(),
		Tier:         params.Tier,
		BillingCycle: params.BillingCycle,
		MaxMessages:  params.MaxMessages,
		Price:        params.Price,
		CreatedAt:    now,
	}
	bundle, err := q.InsertBundleIfAbsent(ctx, candidate)
	if err != nil {
		return nil, false, err
	}
	return bundle, bundle.ID == candidate.ID, nil
}

// ListBundles returns every stored bundle.
func (s *subscriptionService) ListBundles(ctx context.Context) ([]domain.Bundle, error) {
	const op = "subscription.list_bundles"

	bundles, err := s.store.ListBundles(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list bundles")
	}
	return bundles, nil
}
