package store

import (
	"context"
	"testing"

	"github.com/DukeRupert/quotachat/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		return NewMemory()
	})
}

func TestMemory_IncrementMissingRecord(t *testing.T) {
	st := NewMemory()
	limit := 3

	_, err := st.IncrementUsage(context.Background(), uuid.New(), domain.UsageFree, &limit, baseTime)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_RollbackKeepsBundleInUse(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()
	owner := createUser(t, st)
	other := createUser(t, st)
	limit := 5

	err := st.InUserTx(ctx, owner, func(q Queries) error {
		bundle, err := q.InsertBundleIfAbsent(ctx, domain.Bundle{
			ID:           uuid.New(),
			Tier:         domain.TierPro,
			BillingCycle: domain.BillingCycleMonthly,
			MaxMessages:  &limit,
			Price:        19.99,
			CreatedAt:    baseTime,
		})
		require.NoError(t, err)

		// Another visitor subscribes to the same plan before this one fails
		createSubscription(t, st, other, bundle.ID, baseTime, baseTime.AddDate(0, 1, 0))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = st.GetBundleByKey(ctx, domain.TierPro, domain.BillingCycleMonthly)
	assert.NoError(t, err)
}

func TestMemory_FreeIncrementRequiresLimit(t *testing.T) {
	st := NewMemory()
	rec := createUsageRecord(t, st)

	_, err := st.IncrementUsage(context.Background(), rec.ID, domain.UsageFree, nil, baseTime)
	assert.Error(t, err)
}

func TestMemory_CreateSubscriptionUnknownBundle(t *testing.T) {
	st := NewMemory()
	userID := createUser(t, st)

	_, err := st.CreateSubscription(context.Background(), domain.Subscription{
		ID:        uuid.New(),
		UserID:    userID,
		BundleID:  uuid.New(),
		StartDate: baseTime,
		EndDate:   baseTime.AddDate(0, 1, 0),
		CreatedAt: baseTime,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_InUserTxCanceledContext(t *testing.T) {
	st := NewMemory()
	userID := createUser(t, st)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := st.InUserTx(ctx, userID, func(q Queries) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
