package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DukeRupert/quotachat/internal/cache"
	"github.com/DukeRupert/quotachat/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mock Cache
// =============================================================================

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}

func (m *mockCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// =============================================================================
// Subscribe
// =============================================================================

func TestSubscribe(t *testing.T) {
	tests := []struct {
		name    string
		cycle   domain.BillingCycle
		wantEnd time.Time
	}{
		{
			name:    "monthly",
			cycle:   domain.BillingCycleMonthly,
			wantEnd: time.Date(2026, 11, 16, 12, 0, 0, 0, time.UTC),
		},
		{
			name:    "yearly",
			cycle:   domain.BillingCycleYearly,
			wantEnd: time.Date(2027, 10, 16, 12, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newLedgerEnv(t)
			userID := env.newUser(t)

			sub, err := env.subs.Subscribe(context.Background(), SubscribeParams{
				UserID: userID,
				Bundle: BundleParams{
					Tier:         domain.TierBasic,
					BillingCycle: tt.cycle,
					MaxMessages:  intPtr(50),
					Price:        9.99,
				},
				AutoRenew: true,
			})
			require.NoError(t, err)

			assert.Equal(t, userID, sub.UserID)
			assert.True(t, sub.IsActive)
			assert.True(t, sub.AutoRenew)
			assert.Equal(t, midOctober, sub.StartDate)
			assert.Equal(t, tt.wantEnd, sub.EndDate)
			assert.Equal(t, tt.wantEnd, sub.RenewalDate)
			require.NotNil(t, sub.Bundle)
			assert.Equal(t, domain.TierBasic, sub.Bundle.Tier)
			assert.Equal(t, 50, *sub.Bundle.MaxMessages)

			active, err := env.subs.GetActiveSubscription(context.Background(), userID, env.clock.Now())
			require.NoError(t, err)
			require.NotNil(t, active)
			assert.Equal(t, sub.ID, active.ID)
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	env := newLedgerEnv(t)
	userID := env.newUser(t)

	tests := []struct {
		name   string
		bundle BundleParams
		field  string
	}{
		{
			name:   "missing tier",
			bundle: BundleParams{BillingCycle: domain.BillingCycleMonthly},
			field:  "tier",
		},
		{
			name:   "bad cycle",
			bundle: BundleParams{Tier: domain.TierPro, BillingCycle: "WEEKLY"},
			field:  "billingCycle",
		},
		{
			name:   "zero limit",
			bundle: BundleParams{Tier: domain.TierPro, BillingCycle: domain.BillingCycleMonthly, MaxMessages: intPtr(0)},
			field:  "messagesLimit",
		},
		{
			name:   "negative price",
			bundle: BundleParams{Tier: domain.TierPro, BillingCycle: domain.BillingCycleMonthly, Price: -1},
			field:  "price",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.subs.Subscribe(context.Background(), SubscribeParams{UserID: userID, Bundle: tt.bundle})
			var ve *domain.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Contains(t, ve.Fields, tt.field)
		})
	}
}

func TestSubscribe_UserNotFound(t *testing.T) {
	env := newLedgerEnv(t)

	_, err := env.subs.Subscribe(context.Background(), SubscribeParams{
		UserID: "ghost",
		Bundle: BundleParams{Tier: domain.TierPro, BillingCycle: domain.BillingCycleMonthly},
	})
	assert.True(t, errors.Is(err, domain.ErrUserNotFound))
}

func TestSubscribe_CreatesUsageRecord(t *testing.T) {
	env := newLedgerEnv(t)
	userID := env.newUser(t)
	env.subscribe(t, userID, domain.TierPro, intPtr(10))

	rec, err := env.store.EnsureUsageRecord(context.Background(), userID, domain.PeriodOf(midOctober), midOctober)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.PaidUsed)
	assert.Equal(t, midOctober, rec.CreatedAt)
}

func TestSubscribe_NewestSubscriptionWins(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()
	userID := env.newUser(t)

	env.subscribe(t, userID, domain.TierBasic, intPtr(5))
	env.clock.Set(midOctober.Add(time.Hour))
	newer := env.subscribe(t, userID, domain.TierPro, intPtr(100))

	active, err := env.subs.GetActiveSubscription(ctx, userID, env.clock.Now())
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, newer.ID, active.ID)

	subs, err := env.subs.ListActiveSubscriptions(ctx, userID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, newer.ID, subs[0].ID)
	assert.Equal(t, domain.TierBasic, subs[1].Bundle.Tier)
}

// =============================================================================
// CreateSubscription
// =============================================================================

func TestCreateSubscription(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()
	userID := env.newUser(t)

	bundle, err := env.subs.GetOrCreateBundle(ctx, BundleParams{
		Tier:         domain.TierEnterprise,
		BillingCycle: domain.BillingCycleYearly,
		Price:        999,
	})
	require.NoError(t, err)

	t.Run("opens subscription on existing bundle", func(t *testing.T) {
		end := midOctober.AddDate(0, 0, 7)
		sub, err := env.subs.CreateSubscription(ctx, CreateSubscriptionParams{
			UserID:    userID,
			BundleID:  bundle.ID,
			StartDate: midOctober,
			EndDate:   end,
		})
		require.NoError(t, err)
		assert.True(t, sub.IsActive)
		assert.Equal(t, end, sub.EndDate)
		assert.True(t, sub.Bundle.IsUnbounded())
	})

	t.Run("end before start", func(t *testing.T) {
		_, err := env.subs.CreateSubscription(ctx, CreateSubscriptionParams{
			UserID:    userID,
			BundleID:  bundle.ID,
			StartDate: midOctober,
			EndDate:   midOctober,
		})
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})

	t.Run("unknown bundle", func(t *testing.T) {
		_, err := env.subs.CreateSubscription(ctx, CreateSubscriptionParams{
			UserID:    userID,
			BundleID:  uuid.New(),
			StartDate: midOctober,
			EndDate:   midOctober.AddDate(0, 1, 0),
		})
		assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
		assert.False(t, errors.Is(err, domain.ErrUserNotFound))
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := env.subs.CreateSubscription(ctx, CreateSubscriptionParams{
			UserID:    "ghost",
			BundleID:  bundle.ID,
			StartDate: midOctober,
			EndDate:   midOctober.AddDate(0, 1, 0),
		})
		assert.True(t, errors.Is(err, domain.ErrUserNotFound))
	})
}

// =============================================================================
// Cancel and Auto-Renew
// =============================================================================

func TestCancelSubscription(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()
	userID := env.newUser(t)
	sub := env.subscribe(t, userID, domain.TierPro, intPtr(10))

	env.clock.Set(midOctober.Add(time.Minute))
	canceled, err := env.subs.CancelSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, canceled.IsActive)
	assert.False(t, canceled.AutoRenew)
	assert.Equal(t, env.clock.Now(), canceled.UpdatedAt)
	require.NotNil(t, canceled.Bundle)

	// Cancelling again is not an error and changes nothing
	again, err := env.subs.CancelSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, again.IsActive)

	active, err := env.subs.GetActiveSubscription(ctx, userID, env.clock.Now())
	require.NoError(t, err)
	assert.Nil(t, active)

	_, err = env.subs.CancelSubscription(ctx, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrSubscriptionNotFound))
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestSetAutoRenew(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()
	userID := env.newUser(t)
	sub := env.subscribe(t, userID, domain.TierPro, intPtr(10))

	updated, err := env.subs.SetAutoRenew(ctx, sub.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.AutoRenew)
	assert.True(t, updated.IsActive)
	assert.Equal(t, sub.EndDate, updated.EndDate)

	updated, err = env.subs.SetAutoRenew(ctx, sub.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.AutoRenew)

	_, err = env.subs.SetAutoRenew(ctx, uuid.New(), true)
	assert.True(t, errors.Is(err, domain.ErrSubscriptionNotFound))
}

// =============================================================================
// Listing
// =============================================================================

func TestListActiveSubscriptions_UserNotFound(t *testing.T) {
	env := newLedgerEnv(t)

	_, err := env.subs.ListActiveSubscriptions(context.Background(), "ghost")
	assert.True(t, errors.Is(err, domain.ErrUserNotFound))
}

func TestListActiveSubscriptionsForUsers(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	alice := env.newUser(t)
	bob := env.newUser(t)
	carol := env.newUser(t)
	env.subscribe(t, alice, domain.TierPro, intPtr(10))
	env.subscribe(t, bob, domain.TierBasic, intPtr(5))
	canceled := env.subscribe(t, carol, domain.TierBasic, intPtr(5))
	_, err := env.subs.CancelSubscription(ctx, canceled.ID)
	require.NoError(t, err)

	byUser, err := env.subs.ListActiveSubscriptionsForUsers(ctx, []string{alice, bob, carol})
	require.NoError(t, err)
	assert.Len(t, byUser[alice], 1)
	assert.Len(t, byUser[bob], 1)
	assert.Empty(t, byUser[carol])
	assert.Equal(t, domain.TierPro, byUser[alice][0].Bundle.Tier)

	empty, err := env.subs.ListActiveSubscriptionsForUsers(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	tooMany := make([]string, MaxUsersPerLookup+1)
	_, err = env.subs.ListActiveSubscriptionsForUsers(ctx, tooMany)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

// =============================================================================
// Bundles
// =============================================================================

func TestGetOrCreateBundle_Idempotent(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	first, err := env.subs.GetOrCreateBundle(ctx, BundleParams{
		Tier:         domain.TierPro,
		BillingCycle: domain.BillingCycleMonthly,
		MaxMessages:  intPtr(100),
		Price:        19.99,
	})
	require.NoError(t, err)

	// The first stored values win
	second, err := env.subs.GetOrCreateBundle(ctx, BundleParams{
		Tier:         domain.TierPro,
		BillingCycle: domain.BillingCycleMonthly,
		MaxMessages:  intPtr(500),
		Price:        49.99,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 100, *second.MaxMessages)
	assert.Equal(t, 19.99, second.Price)

	yearly, err := env.subs.GetOrCreateBundle(ctx, BundleParams{
		Tier:         domain.TierPro,
		BillingCycle: domain.BillingCycleYearly,
		MaxMessages:  intPtr(100),
		Price:        199,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, yearly.ID)

	bundles, err := env.subs.ListBundles(ctx)
	require.NoError(t, err)
	assert.Len(t, bundles, 2)
}

func TestGetOrCreateBundle_SharedAcrossSubscriptions(t *testing.T) {
	env := newLedgerEnv(t)
	alice := env.newUser(t)
	bob := env.newUser(t)

	a := env.subscribe(t, alice, domain.TierPro, intPtr(10))
	b := env.subscribe(t, bob, domain.TierPro, intPtr(10))
	assert.Equal(t, a.BundleID, b.BundleID)
}

func TestBundleCache_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	redisCache, err := cache.NewRedis(context.Background(), cache.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisCache.Close() })

	env := newLedgerEnvWithCache(t, redisCache)
	userID := env.newUser(t)
	sub := env.subscribe(t, userID, domain.TierPro, intPtr(10))

	assert.True(t, mr.Exists(bundleIDKey(sub.BundleID)))
	assert.True(t, mr.Exists(bundlePlanKey(domain.TierPro, domain.BillingCycleMonthly)))

	// Paid admissions read the bundle through the cache
	result, err := env.chat.ProcessMessage(context.Background(), userID, "cached?")
	require.NoError(t, err)
	assert.Equal(t, 9, result.QuotaInfo.MessagesRemaining.Count())

	// A second subscriber reuses the cached plan
	other := env.newUser(t)
	otherSub := env.subscribe(t, other, domain.TierPro, intPtr(99))
	assert.Equal(t, sub.BundleID, otherSub.BundleID)
	assert.Equal(t, 10, *otherSub.Bundle.MaxMessages)
}

func TestBundleCache_ReadFailureFallsBackToStore(t *testing.T) {
	c := new(mockCache)
	c.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("connection refused"))
	c.On("Set", mock.Anything, mock.Anything, mock.Anything, DefaultBundleCacheTTL).Return(errors.New("connection refused"))

	env := newLedgerEnvWithCache(t, c)
	userID := env.newUser(t)
	env.subscribe(t, userID, domain.TierPro, intPtr(10))

	result, err := env.chat.ProcessMessage(context.Background(), userID, "still works")
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, result.QuotaInfo.BundleTier)

	c.AssertCalled(t, "Get", mock.Anything, bundlePlanKey(domain.TierPro, domain.BillingCycleMonthly), mock.Anything)
	c.AssertCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, DefaultBundleCacheTTL)
}
