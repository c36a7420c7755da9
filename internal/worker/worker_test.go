package worker

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
	"github.com/punchamoorthee/smmops/internal/provider"
	"github.com/punchamoorthee/smmops/internal/service"
	"github.com/punchamoorthee/smmops/internal/store"
)

type scriptedClient struct {
	mu         sync.Mutex
	placeCalls int
	status     provider.OrderStatus
}

func (c *scriptedClient) PlaceOrder(context.Context, string, string, int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.placeCalls++
	return "55001", nil
}

func (c *scriptedClient) GetStatus(context.Context, string) (provider.OrderStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, nil
}

func (c *scriptedClient) ListCatalog(context.Context) ([]provider.CatalogItem, error) {
	return nil, nil
}

func (c *scriptedClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.placeCalls
}

// pipelineFixture wires a memory store, a memory queue and an orders service
// around a scripted provider, with one paid order in processing.
type pipelineFixture struct {
	orders *service.Orders
	store  *store.Memory
	queue  *MemoryQueue
	client *scriptedClient
	order  *domain.ServiceOrder
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	svc := &domain.Service{
		ID:       uuid.New(),
		Title:    "Views",
		Price:    decimal.RequireFromString("0.01"),
		Features: []string{"fast"},
		IsActive: true,
	}
	require.NoError(t, mem.CreateService(ctx, svc))

	prov := &domain.Provider{
		ID:             uuid.New(),
		Name:           "panel",
		APIURL:         "https://panel.example.com/api/v2",
		APIKey:         "k",
		IsActive:       true,
		RateMultiplier: decimal.NewFromInt(1),
	}
	require.NoError(t, mem.CreateProvider(ctx, prov))

	sku := &domain.ProviderService{
		ID:             uuid.New(),
		ProviderID:     prov.ID,
		ServiceID:      "7",
		LocalServiceID: &svc.ID,
		Name:           "views",
		Type:           "default",
		Rate:           decimal.RequireFromString("0.005"),
		Min:            100,
		Max:            100000,
		IsActive:       true,
	}
	_, err := mem.UpsertProviderService(ctx, sku)
	require.NoError(t, err)

	client := &scriptedClient{status: provider.OrderStatus{Status: domain.OrderInProgress}}
	queue := NewMemoryQueue(16)
	orders := service.NewOrders(mem, func(domain.Provider) provider.Client { return client },
		queue, service.NewNotifier(mem), 3, time.Millisecond)

	customer := uuid.New()
	order, err := orders.PlaceOrder(ctx, customer, svc.ID, "https://example.com/v", 1000)
	require.NoError(t, err)

	ref := "gw-1"
	now := time.Now()
	tx := &domain.Transaction{
		ID:         uuid.New(),
		CustomerID: customer,
		Amount:     decimal.NewFromInt(10),
		Currency:   "USD",
		Status:     domain.TxSucceeded,
		GatewayRef: &ref,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, mem.CreateTransaction(ctx, tx))

	order, err = orders.ConfirmPayment(ctx, order.ID, tx.ID)
	require.NoError(t, err)

	return &pipelineFixture{orders: orders, store: mem, queue: queue, client: client, order: order}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestDispatcherConsumesQueue(t *testing.T) {
	f := newPipelineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDispatcher(f.orders, f.queue)
	require.NoError(t, d.Run(ctx))

	// ConfirmPayment already enqueued the order id.
	waitFor(t, func() bool {
		o, err := f.store.GetOrder(ctx, f.order.ID)
		return err == nil && o.Status == domain.OrderInProgress
	})
	assert.Equal(t, 1, f.client.calls())
}

func TestDispatcherRedeliveryIsHarmless(t *testing.T) {
	f := newPipelineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Duplicate deliveries of the same order id.
	require.NoError(t, f.queue.PublishDispatch(ctx, f.order.ID))
	require.NoError(t, f.queue.PublishDispatch(ctx, f.order.ID))

	d := NewDispatcher(f.orders, f.queue)
	require.NoError(t, d.Run(ctx))

	waitFor(t, func() bool {
		o, err := f.store.GetOrder(ctx, f.order.ID)
		return err == nil && o.Status == domain.OrderInProgress
	})
	// Give the duplicates time to drain.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.client.calls(), "store claim keeps dispatch exactly-once")
}

func TestDispatcherInFlightClaim(t *testing.T) {
	d := NewDispatcher(nil, nil)
	id := uuid.New()

	assert.True(t, d.claim(id))
	assert.False(t, d.claim(id), "second claim while in flight")
	d.release(id)
	assert.True(t, d.claim(id), "reclaimable after release")
}

func TestSweeperRefreshesOpenOrders(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	_, err := f.orders.Dispatch(ctx, f.order.ID)
	require.NoError(t, err)

	f.client.mu.Lock()
	f.client.status = provider.OrderStatus{Status: domain.OrderCompleted, StartCount: 50, Remains: 0}
	f.client.mu.Unlock()

	s := NewSweeper(f.orders, time.Minute, 10)
	s.Sweep(ctx)

	got, err := f.store.GetOrder(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)

	// A second sweep finds nothing open.
	batch, err := f.orders.ListForSweep(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestSweeperRecoversStrandedDispatch(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	// A dispatcher claimed the order an hour ago and never finished; its
	// queue message is gone.
	require.NoError(t, f.store.ClaimDispatch(ctx, f.order.ID, time.Now().Add(-time.Hour), time.Time{}))

	s := NewSweeper(f.orders, time.Minute, 10)
	s.Sweep(ctx)

	got, err := f.store.GetOrder(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderInProgress, got.Status)
	assert.Equal(t, 1, f.client.calls())
}
