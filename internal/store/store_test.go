package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DukeRupert/quotachat/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// baseTime is a whole-second UTC instant that survives a TIMESTAMPTZ round trip.
var baseTime = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

// runStoreTests exercises behavior every Store implementation must share.
// newStore must return an empty store for each call.
func runStoreTests(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("users", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		user, err := st.CreateUser(ctx, domain.User{ID: "visitor-1", CreatedAt: baseTime})
		require.NoError(t, err)
		assert.Equal(t, "visitor-1", user.ID)

		got, err := st.GetUser(ctx, "visitor-1")
		require.NoError(t, err)
		assert.True(t, got.CreatedAt.Equal(baseTime))

		_, err = st.CreateUser(ctx, domain.User{ID: "visitor-1", CreatedAt: baseTime})
		assert.True(t, errors.Is(err, ErrConflict))

		_, err = st.GetUser(ctx, "missing")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("usage record is unique per period", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		userID := createUser(t, st)
		period := domain.PeriodOf(baseTime)

		first, err := st.EnsureUsageRecord(ctx, userID, period, baseTime)
		require.NoError(t, err)
		assert.Equal(t, 10, first.Month)
		assert.Equal(t, 2026, first.Year)

		second, err := st.EnsureUsageRecord(ctx, userID, period, baseTime.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		next, err := st.EnsureUsageRecord(ctx, userID, period.Next(), baseTime)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, next.ID)
	})

	t.Run("increment respects limit", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		rec := createUsageRecord(t, st)
		limit := 3

		for want := 1; want <= limit; want++ {
			used, err := st.IncrementUsage(ctx, rec.ID, domain.UsageFree, &limit, baseTime)
			require.NoError(t, err)
			assert.Equal(t, want, used)
		}

		_, err := st.IncrementUsage(ctx, rec.ID, domain.UsageFree, &limit, baseTime)
		assert.True(t, errors.Is(err, ErrLimitReached))

		got, err := st.EnsureUsageRecord(ctx, rec.UserID, rec.Period(), baseTime)
		require.NoError(t, err)
		assert.Equal(t, 3, got.FreeUsed)
		assert.Equal(t, 0, got.PaidUsed)
	})

	t.Run("paid increment without limit is unbounded", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		rec := createUsageRecord(t, st)

		var used int
		var err error
		for i := 0; i < 20; i++ {
			used, err = st.IncrementUsage(ctx, rec.ID, domain.UsagePaid, nil, baseTime)
			require.NoError(t, err)
		}
		assert.Equal(t, 20, used)
	})

	t.Run("decrement floors at zero", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		rec := createUsageRecord(t, st)
		limit := 5

		_, err := st.IncrementUsage(ctx, rec.ID, domain.UsagePaid, &limit, baseTime)
		require.NoError(t, err)

		used, err := st.DecrementUsage(ctx, rec.ID, domain.UsagePaid, baseTime)
		require.NoError(t, err)
		assert.Equal(t, 0, used)

		used, err = st.DecrementUsage(ctx, rec.ID, domain.UsagePaid, baseTime)
		require.NoError(t, err)
		assert.Equal(t, 0, used)
	})

	t.Run("stale reset", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		rec := createUsageRecord(t, st)
		limit := 3

		_, err := st.IncrementUsage(ctx, rec.ID, domain.UsageFree, &limit, baseTime)
		require.NoError(t, err)

		// Written after the cutoff: untouched
		reset, err := st.ResetStaleUsageRecord(ctx, rec.ID, baseTime.Add(-time.Hour), baseTime)
		require.NoError(t, err)
		assert.False(t, reset)

		cutoff := baseTime.Add(time.Hour)
		reset, err = st.ResetStaleUsageRecord(ctx, rec.ID, cutoff, cutoff)
		require.NoError(t, err)
		assert.True(t, reset)

		got, err := st.EnsureUsageRecord(ctx, rec.UserID, rec.Period(), cutoff)
		require.NoError(t, err)
		assert.Equal(t, 0, got.FreeUsed)

		reset, err = st.ResetStaleUsageRecord(ctx, rec.ID, cutoff, cutoff)
		require.NoError(t, err)
		assert.False(t, reset)
	})

	t.Run("delete usage records for period", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		period := domain.PeriodOf(baseTime)

		for i := 0; i < 3; i++ {
			_, err := st.EnsureUsageRecord(ctx, createUser(t, st), period, baseTime)
			require.NoError(t, err)
		}
		other := createUser(t, st)
		_, err := st.EnsureUsageRecord(ctx, other, period.Next(), baseTime)
		require.NoError(t, err)

		n, err := st.DeleteUsageRecordsForPeriod(ctx, period)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		n, err = st.DeleteUsageRecordsForPeriod(ctx, period)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("increment of deleted record is not found", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		rec := createUsageRecord(t, st)
		limit := 3

		_, err := st.DeleteUsageRecordsForPeriod(ctx, rec.Period())
		require.NoError(t, err)

		_, err = st.IncrementUsage(ctx, rec.ID, domain.UsageFree, &limit, baseTime)
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.False(t, errors.Is(err, ErrLimitReached))

		_, err = st.IncrementUsage(ctx, rec.ID, domain.UsagePaid, nil, baseTime)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("bundles", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		limit := 100

		pro, err := st.InsertBundleIfAbsent(ctx, domain.Bundle{
			ID:           uuid.New(),
			Tier:         domain.TierPro,
			BillingCycle: domain.BillingCycleMonthly,
			MaxMessages:  &limit,
			Price:        19.99,
			CreatedAt:    baseTime,
		})
		require.NoError(t, err)
		assert.Equal(t, 19.99, pro.Price)

		again, err := st.InsertBundleIfAbsent(ctx, domain.Bundle{
			ID:           uuid.New(),
			Tier:         domain.TierPro,
			BillingCycle: domain.BillingCycleMonthly,
			Price:        49.99,
			CreatedAt:    baseTime,
		})
		require.NoError(t, err)
		assert.Equal(t, pro.ID, again.ID)
		require.NotNil(t, again.MaxMessages)
		assert.Equal(t, 100, *again.MaxMessages)

		enterprise, err := st.InsertBundleIfAbsent(ctx, domain.Bundle{
			ID:           uuid.New(),
			Tier:         domain.TierEnterprise,
			BillingCycle: domain.BillingCycleYearly,
			Price:        999,
			CreatedAt:    baseTime,
		})
		require.NoError(t, err)
		assert.True(t, enterprise.IsUnbounded())

		got, err := st.GetBundle(ctx, pro.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TierPro, got.Tier)

		byKey, err := st.GetBundleByKey(ctx, domain.TierEnterprise, domain.BillingCycleYearly)
		require.NoError(t, err)
		assert.Equal(t, enterprise.ID, byKey.ID)

		_, err = st.GetBundle(ctx, uuid.New())
		assert.True(t, errors.Is(err, ErrNotFound))
		_, err = st.GetBundleByKey(ctx, domain.TierBasic, domain.BillingCycleMonthly)
		assert.True(t, errors.Is(err, ErrNotFound))

		all, err := st.ListBundles(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("subscriptions", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		userID := createUser(t, st)
		bundle := createBundle(t, st)

		older := createSubscription(t, st, userID, bundle.ID, baseTime, baseTime.AddDate(0, 1, 0))
		newer := createSubscription(t, st, userID, bundle.ID, baseTime.Add(time.Minute), baseTime.AddDate(0, 1, 0))
		createSubscription(t, st, userID, bundle.ID, baseTime.AddDate(0, -2, 0), baseTime.AddDate(0, -1, 0))

		assert.True(t, older.IsActive)

		active, err := st.ListActiveSubscriptions(ctx, userID, baseTime.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, newer.ID, active[0].ID)
		assert.Equal(t, older.ID, active[1].ID)

		updated, err := st.SetAutoRenew(ctx, newer.ID, false, baseTime.Add(2*time.Hour))
		require.NoError(t, err)
		assert.False(t, updated.AutoRenew)
		assert.True(t, updated.IsActive)

		canceled, err := st.CancelSubscription(ctx, newer.ID, baseTime.Add(3*time.Hour))
		require.NoError(t, err)
		assert.False(t, canceled.IsActive)
		assert.False(t, canceled.AutoRenew)
		assert.True(t, canceled.UpdatedAt.Equal(baseTime.Add(3*time.Hour)))

		active, err = st.ListActiveSubscriptions(ctx, userID, baseTime.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, older.ID, active[0].ID)

		got, err := st.GetSubscription(ctx, newer.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)

		missing := uuid.New()
		_, err = st.GetSubscription(ctx, missing)
		assert.True(t, errors.Is(err, ErrNotFound))
		_, err = st.CancelSubscription(ctx, missing, baseTime)
		assert.True(t, errors.Is(err, ErrNotFound))
		_, err = st.SetAutoRenew(ctx, missing, true, baseTime)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("subscriptions for users", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		bundle := createBundle(t, st)
		alice := createUser(t, st)
		bob := createUser(t, st)
		carol := createUser(t, st)

		createSubscription(t, st, alice, bundle.ID, baseTime, baseTime.AddDate(0, 1, 0))
		createSubscription(t, st, alice, bundle.ID, baseTime.Add(time.Second), baseTime.AddDate(0, 1, 0))
		createSubscription(t, st, bob, bundle.ID, baseTime, baseTime.AddDate(0, 1, 0))
		createSubscription(t, st, carol, bundle.ID, baseTime, baseTime.AddDate(0, 1, 0))

		subs, err := st.ListActiveSubscriptionsForUsers(ctx, []string{alice, bob}, baseTime.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, subs, 3)
		for _, s := range subs {
			assert.NotEqual(t, carol, s.UserID)
		}
	})

	t.Run("chat messages", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		userID := createUser(t, st)
		other := createUser(t, st)
		metadata := json.RawMessage(`{"bundleTier":"PRO"}`)

		for i, q := range []string{"first", "second", "third"} {
			_, err := st.CreateChatMessage(ctx, domain.ChatMessage{
				ID:         uuid.New(),
				UserID:     userID,
				Question:   q,
				Answer:     "You said: " + q,
				TokenCount: 3,
				CreatedAt:  baseTime.Add(time.Duration(i) * time.Second),
			}, metadata)
			require.NoError(t, err)
		}
		_, err := st.CreateChatMessage(ctx, domain.ChatMessage{
			ID:        uuid.New(),
			UserID:    other,
			Question:  "elsewhere",
			Answer:    "You said: elsewhere",
			CreatedAt: baseTime,
		}, nil)
		require.NoError(t, err)

		messages, err := st.ListChatMessages(ctx, userID, 2)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, "third", messages[0].Question)
		assert.Equal(t, "second", messages[1].Question)
		assert.Equal(t, 3, messages[0].TokenCount)
	})

	t.Run("user tx requires user", func(t *testing.T) {
		st := newStore(t)

		called := false
		err := st.InUserTx(context.Background(), "missing", func(q Queries) error {
			called = true
			return nil
		})
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.False(t, called)
	})

	t.Run("user tx returns fn error", func(t *testing.T) {
		st := newStore(t)
		userID := createUser(t, st)
		boom := errors.New("boom")

		err := st.InUserTx(context.Background(), userID, func(q Queries) error {
			return boom
		})
		assert.True(t, errors.Is(err, boom))
	})

	t.Run("user tx rolls back writes on error", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		userID := createUser(t, st)
		existing := createBundle(t, st)
		kept := createSubscription(t, st, userID, existing.ID, baseTime, baseTime.AddDate(0, 1, 0))
		period := domain.PeriodOf(baseTime)
		boom := errors.New("boom")
		limit := 3

		err := st.InUserTx(ctx, userID, func(q Queries) error {
			bundle, err := q.InsertBundleIfAbsent(ctx, domain.Bundle{
				ID:           uuid.New(),
				Tier:         domain.TierEnterprise,
				BillingCycle: domain.BillingCycleYearly,
				Price:        199,
				CreatedAt:    baseTime,
			})
			require.NoError(t, err)

			_, err = q.CreateSubscription(ctx, domain.Subscription{
				ID:          uuid.New(),
				UserID:      userID,
				BundleID:    bundle.ID,
				StartDate:   baseTime,
				EndDate:     baseTime.AddDate(1, 0, 0),
				RenewalDate: baseTime.AddDate(1, 0, 0),
				CreatedAt:   baseTime.Add(time.Minute),
			})
			require.NoError(t, err)

			_, err = q.CancelSubscription(ctx, kept.ID, baseTime)
			require.NoError(t, err)

			rec, err := q.EnsureUsageRecord(ctx, userID, period, baseTime)
			require.NoError(t, err)
			_, err = q.IncrementUsage(ctx, rec.ID, domain.UsageFree, &limit, baseTime)
			require.NoError(t, err)

			return boom
		})
		require.True(t, errors.Is(err, boom))

		_, err = st.GetBundleByKey(ctx, domain.TierEnterprise, domain.BillingCycleYearly)
		assert.True(t, errors.Is(err, ErrNotFound))

		subs, err := st.ListActiveSubscriptions(ctx, userID, baseTime)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, kept.ID, subs[0].ID)
		assert.True(t, subs[0].AutoRenew)

		rec, err := st.EnsureUsageRecord(ctx, userID, period, baseTime)
		require.NoError(t, err)
		assert.Equal(t, 0, rec.FreeUsed)
	})

	t.Run("user tx serializes reservations", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		rec := createUsageRecord(t, st)
		limit := 3

		const workers = 10
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			granted int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := st.InUserTx(ctx, rec.UserID, func(q Queries) error {
					_, err := q.IncrementUsage(ctx, rec.ID, domain.UsageFree, &limit, baseTime)
					return err
				})
				if err == nil {
					mu.Lock()
					granted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, limit, granted)
	})
}

// =============================================================================
// Fixtures
// =============================================================================

func createUser(t *testing.T, st Store) string {
	t.Helper()
	user, err := st.CreateUser(context.Background(), domain.User{ID: uuid.NewString(), CreatedAt: baseTime})
	require.NoError(t, err)
	return user.ID
}

func createUsageRecord(t *testing.T, st Store) *domain.UsageRecord {
	t.Helper()
	rec, err := st.EnsureUsageRecord(context.Background(), createUser(t, st), domain.PeriodOf(baseTime), baseTime)
	require.NoError(t, err)
	return rec
}

func createBundle(t *testing.T, st Store) *domain.Bundle {
	t.Helper()
	limit := 10
	b, err := st.InsertBundleIfAbsent(context.Background(), domain.Bundle{
		ID:           uuid.New(),
		Tier:         domain.TierBasic,
		BillingCycle: domain.BillingCycleMonthly,
		MaxMessages:  &limit,
		Price:        9.99,
		CreatedAt:    baseTime,
	})
	require.NoError(t, err)
	return b
}

func createSubscription(t *testing.T, st Store, userID string, bundleID uuid.UUID, createdAt, end time.Time) *domain.Subscription {
	t.Helper()
	sub, err := st.CreateSubscription(context.Background(), domain.Subscription{
		ID:          uuid.New(),
		UserID:      userID,
		BundleID:    bundleID,
		StartDate:   createdAt,
		EndDate:     end,
		RenewalDate: end,
		AutoRenew:   true,
		CreatedAt:   createdAt,
	})
	require.NoError(t, err)
	return sub
}
