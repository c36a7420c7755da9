package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/smmops/internal/domain"
)

func seedOrder(t *testing.T, m *Memory, status domain.OrderStatus) *domain.ServiceOrder {
	t.Helper()
	o := &domain.ServiceOrder{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		ServiceID:  uuid.New(),
		Status:     status,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	require.NoError(t, m.CreateOrder(context.Background(), o))
	return o
}

func TestClaimDispatchSingleWinner(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	o := seedOrder(t, m, domain.OrderProcessing)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.ClaimDispatch(ctx, o.ID, time.Now(), time.Now().Add(-5*time.Minute))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, domain.ErrConflict)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestClaimDispatchRequiresProcessing(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	o := seedOrder(t, m, domain.OrderPending)
	assert.ErrorIs(t, m.ClaimDispatch(ctx, o.ID, time.Now(), time.Time{}), domain.ErrConflict)

	assert.ErrorIs(t, m.ClaimDispatch(ctx, uuid.New(), time.Now(), time.Time{}), domain.ErrNotFound)
}

func TestClaimDispatchStaleClaimIsReclaimable(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	o := seedOrder(t, m, domain.OrderProcessing)

	staleBefore := time.Now().Add(-5 * time.Minute)
	require.NoError(t, m.ClaimDispatch(ctx, o.ID, time.Now().Add(-time.Hour), time.Time{}))

	// A fresh claim is still exclusive.
	fresh := seedOrder(t, m, domain.OrderProcessing)
	require.NoError(t, m.ClaimDispatch(ctx, fresh.ID, time.Now(), staleBefore))
	assert.ErrorIs(t, m.ClaimDispatch(ctx, fresh.ID, time.Now(), staleBefore), domain.ErrConflict)

	// The hour-old claim belongs to a dead dispatcher and can be taken over.
	assert.NoError(t, m.ClaimDispatch(ctx, o.ID, time.Now(), staleBefore))
}

func TestReleaseDispatchClearsClaim(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	o := seedOrder(t, m, domain.OrderProcessing)

	staleBefore := time.Now().Add(-5 * time.Minute)
	require.NoError(t, m.ClaimDispatch(ctx, o.ID, time.Now(), staleBefore))
	assert.ErrorIs(t, m.ClaimDispatch(ctx, o.ID, time.Now(), staleBefore), domain.ErrConflict)

	require.NoError(t, m.ReleaseDispatch(ctx, o.ID))

	got, err := m.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DispatchClaimedAt)
	assert.NoError(t, m.ClaimDispatch(ctx, o.ID, time.Now(), staleBefore))

	assert.ErrorIs(t, m.ReleaseDispatch(ctx, uuid.New()), domain.ErrNotFound)
}

func TestListStaleDispatchesFindsStrandedOrders(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	stranded := seedOrder(t, m, domain.OrderProcessing)
	require.NoError(t, m.ClaimDispatch(ctx, stranded.ID, time.Now().Add(-time.Hour), time.Time{}))

	seedOrder(t, m, domain.OrderProcessing) // fresh, not stale yet
	seedOrder(t, m, domain.OrderInProgress) // already dispatched

	got, err := m.ListStaleDispatches(ctx, time.Now().Add(-5*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stranded.ID, got[0].ID)
}

func TestTransitionOrderCompareAndSwap(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	o := seedOrder(t, m, domain.OrderPending)

	got, err := m.TransitionOrder(ctx, o.ID, domain.OrderPending, domain.OrderProcessing)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderProcessing, got.Status)

	_, err = m.TransitionOrder(ctx, o.ID, domain.OrderPending, domain.OrderProcessing)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestApplyStatusRefreshNeverRegressesTerminal(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	o := seedOrder(t, m, domain.OrderCompleted)

	start, remains := 10, 5
	got, err := m.ApplyStatusRefresh(ctx, o.ID, StatusRefresh{
		Status:     domain.OrderInProgress,
		StartCount: &start,
		Remains:    &remains,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCompleted, got.Status, "terminal status is immutable")
	assert.Nil(t, got.StartCount)
}

func TestMarkTransactionSucceededReplay(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	tx := &domain.Transaction{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		Amount:     decimal.NewFromInt(100),
		Fees:       decimal.NewFromInt(3),
		Currency:   "USD",
		Status:     domain.TxPending,
	}
	require.NoError(t, m.CreateTransaction(ctx, tx))

	first, replayed, err := m.MarkTransactionSucceeded(ctx, tx.ID, "ref-1", time.Now())
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.True(t, first.NetAmount.Equal(decimal.NewFromInt(97)))

	second, replayed, err := m.MarkTransactionSucceeded(ctx, tx.ID, "ref-1", time.Now())
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.True(t, second.NetAmount.Equal(first.NetAmount))

	_, _, err = m.MarkTransactionSucceeded(ctx, tx.ID, "ref-2", time.Now())
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUpsertProviderServicePreservesMapping(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	providerID := uuid.New()
	local := uuid.New()
	first := &domain.ProviderService{
		ID:             uuid.New(),
		ProviderID:     providerID,
		ServiceID:      "42",
		LocalServiceID: &local,
		Name:           "old name",
		Rate:           decimal.RequireFromString("0.01"),
		Min:            10,
		Max:            100,
	}
	created, err := m.UpsertProviderService(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	update := &domain.ProviderService{
		ID:         uuid.New(),
		ProviderID: providerID,
		ServiceID:  "42",
		Name:       "new name",
		Rate:       decimal.RequireFromString("0.02"),
		Min:        10,
		Max:        200,
	}
	created, err = m.UpsertProviderService(ctx, update)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, update.ID, "upsert reports the existing row id")

	got, err := m.GetProviderService(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "new name", got.Name)
	require.NotNil(t, got.LocalServiceID, "resync must not drop the admin mapping")
	assert.Equal(t, local, *got.LocalServiceID)
}

func TestDeactivateMissingProviderServices(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	providerID := uuid.New()

	for _, sid := range []string{"1", "2", "3"} {
		_, err := m.UpsertProviderService(ctx, &domain.ProviderService{
			ID:         uuid.New(),
			ProviderID: providerID,
			ServiceID:  sid,
			Rate:       decimal.RequireFromString("0.01"),
		})
		require.NoError(t, err)
	}

	n, err := m.DeactivateMissingProviderServices(ctx, providerID, []string{"2"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	skus, err := m.ListProviderServicesByProvider(ctx, providerID)
	require.NoError(t, err)
	require.Len(t, skus, 3, "deactivation never deletes")
	for _, s := range skus {
		assert.Equal(t, s.ServiceID == "2", s.IsActive, "sku %s", s.ServiceID)
	}
}
