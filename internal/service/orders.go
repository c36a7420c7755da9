package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/smmops/internal/domain"
	"github.com/punchamoorthee/smmops/internal/provider"
	"github.com/punchamoorthee/smmops/internal/store"
)

var (
	dispatchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smm_dispatch_attempts_total",
		Help: "Provider placement attempts by outcome",
	}, []string{"outcome"})

	ordersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smm_orders_placed_total",
		Help: "Orders accepted into the ledger",
	})
)

// DispatchPublisher hands an order id to the background dispatch pipeline.
// Satisfied by the worker queue.
type DispatchPublisher interface {
	PublishDispatch(ctx context.Context, orderID uuid.UUID) error
}

// Orders owns the ServiceOrder lifecycle. The provider registry is consulted
// read-only for selection and credentials.
type Orders struct {
	store    store.Store
	clients  provider.Factory
	queue    DispatchPublisher
	notifier *Notifier

	maxAttempts int
	backoffBase time.Duration
	claimTTL    time.Duration
}

func NewOrders(s store.Store, clients provider.Factory, queue DispatchPublisher, n *Notifier, maxAttempts int, backoffBase time.Duration) *Orders {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoffBase <= 0 {
		backoffBase = 500 * time.Millisecond
	}
	return &Orders{
		store:       s,
		clients:     clients,
		queue:       queue,
		notifier:    n,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		claimTTL:    5 * time.Minute,
	}
}

func (o *Orders) List(ctx context.Context) ([]domain.ServiceOrder, error) {
	return o.store.ListOrders(ctx)
}

func (o *Orders) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.ServiceOrder, error) {
	return o.store.ListOrdersByCustomer(ctx, customerID)
}

func (o *Orders) Get(ctx context.Context, id uuid.UUID) (*domain.ServiceOrder, error) {
	return o.store.GetOrder(ctx, id)
}

// ListForSweep returns dispatched, still-open orders for the status sweep.
func (o *Orders) ListForSweep(ctx context.Context, limit int) ([]domain.ServiceOrder, error) {
	return o.store.ListOrdersForSweep(ctx, limit)
}

// PlaceOrder validates the request, selects the cheapest active provider SKU
// for the service and persists the order in pending. It never dispatches;
// dispatch is gated on payment confirmation.
func (o *Orders) PlaceOrder(ctx context.Context, customerID, serviceID uuid.UUID, link string, quantity int) (*domain.ServiceOrder, error) {
	if link == "" {
		return nil, domain.Validationf("link", "required")
	}
	if quantity <= 0 {
		return nil, domain.Validationf("quantity", "must be positive")
	}

	svc, err := o.store.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return nil, domain.ErrNotFound
	}

	ps, prov, err := o.selectProviderService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if quantity < ps.Min || quantity > ps.Max {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", domain.ErrOutOfRange, quantity, ps.Min, ps.Max)
	}

	originalPrice := svc.Price.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	// No discount rule configured; the final price passes through.
	finalPrice := originalPrice
	cost := ps.EffectiveCost(prov.RateMultiplier, quantity).Round(2)

	now := time.Now()
	order := &domain.ServiceOrder{
		ID:                uuid.New(),
		CustomerID:        customerID,
		ServiceID:         serviceID,
		ProviderServiceID: ps.ID,
		ProviderID:        prov.ID,
		Link:              link,
		Quantity:          quantity,
		OriginalPrice:     originalPrice,
		FinalPrice:        finalPrice,
		ProviderCost:      cost,
		Profit:            finalPrice.Sub(cost),
		Status:            domain.OrderPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := o.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	ordersPlaced.Inc()
	slog.Info("order placed", "order", order.ID, "service", serviceID, "provider", prov.ID, "quantity", quantity)
	return order, nil
}

// selectProviderService picks the candidate with the lowest effective cost
// (rate × provider multiplier), tie-broken by provider priority.
func (o *Orders) selectProviderService(ctx context.Context, serviceID uuid.UUID) (*domain.ProviderService, *domain.Provider, error) {
	candidates, err := o.store.ListCandidates(ctx, serviceID)
	if err != nil {
		return nil, nil, fmt.Errorf("list candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil, domain.Validationf("service_id", "no active provider offers this service")
	}

	providers := map[uuid.UUID]*domain.Provider{}
	var best *domain.ProviderService
	var bestProv *domain.Provider
	for i := range candidates {
		ps := &candidates[i]
		prov, ok := providers[ps.ProviderID]
		if !ok {
			prov, err = o.store.GetProvider(ctx, ps.ProviderID)
			if err != nil {
				return nil, nil, fmt.Errorf("load provider %s: %w", ps.ProviderID, err)
			}
			providers[ps.ProviderID] = prov
		}
		if best == nil {
			best, bestProv = ps, prov
			continue
		}
		unitCost := ps.Rate.Mul(prov.RateMultiplier)
		bestCost := best.Rate.Mul(bestProv.RateMultiplier)
		if unitCost.LessThan(bestCost) || (unitCost.Equal(bestCost) && prov.Priority > bestProv.Priority) {
			best, bestProv = ps, prov
		}
	}
	return best, bestProv, nil
}

// ConfirmPayment transitions pending → processing once the funding
// transaction has settled, then hands the order to the dispatch pipeline.
func (o *Orders) ConfirmPayment(ctx context.Context, orderID, transactionID uuid.UUID) (*domain.ServiceOrder, error) {
	tx, err := o.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != domain.TxSucceeded {
		return nil, fmt.Errorf("%w: transaction %s is %s, not succeeded", domain.ErrInvalidState, transactionID, tx.Status)
	}

	order, err := o.store.TransitionOrder(ctx, orderID, domain.OrderPending, domain.OrderProcessing)
	if errors.Is(err, domain.ErrConflict) {
		return nil, fmt.Errorf("%w: order is not pending", domain.ErrInvalidState)
	}
	if err != nil {
		return nil, err
	}

	if err := o.queue.PublishDispatch(ctx, orderID); err != nil {
		// The order is paid; losing the dispatch message would strand it in
		// processing. Fall back to dispatching inline.
		slog.Error("dispatch enqueue failed, dispatching inline", "order", orderID, "error", err)
		go func() {
			if _, derr := o.Dispatch(context.Background(), orderID); derr != nil {
				slog.Error("inline dispatch failed", "order", orderID, "error", derr)
			}
		}()
	}

	o.notifier.Notify(ctx, order.CustomerID, "Payment confirmed",
		fmt.Sprintf("Your order %s is being processed.", orderID), "order")
	return order, nil
}

// Dispatch submits a processing order to its provider. The claim is a
// compare-and-swap in the store, so two concurrent calls produce exactly one
// provider-side order: the loser either sees the winner's result or
// ErrConflict while the winner is still in flight. A claim older than
// claimTTL belongs to a dispatcher that died mid-flight and may be taken
// over.
func (o *Orders) Dispatch(ctx context.Context, orderID uuid.UUID) (*domain.ServiceOrder, error) {
	now := time.Now()
	if err := o.store.ClaimDispatch(ctx, orderID, now, now.Add(-o.claimTTL)); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			cur, gerr := o.store.GetOrder(ctx, orderID)
			if gerr != nil {
				return nil, gerr
			}
			if cur.Status != domain.OrderProcessing {
				// Already dispatched (or cancelled); same result for the caller.
				return cur, nil
			}
		}
		return nil, err
	}

	order, err := o.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	ps, err := o.store.GetProviderService(ctx, order.ProviderServiceID)
	if err != nil {
		return nil, fmt.Errorf("load provider service: %w", err)
	}
	prov, err := o.store.GetProvider(ctx, order.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("load provider: %w", err)
	}

	// Once the placement outcome is known the finishing write must land even
	// if the request context has been cancelled in the meantime.
	fctx := context.WithoutCancel(ctx)

	client := o.clients(*prov)
	providerOrderID, attempts, err := o.placeWithRetry(ctx, client, ps.ServiceID, order.Link, order.Quantity)
	switch {
	case err == nil:
		dispatchAttempts.WithLabelValues("placed").Inc()
		if ferr := o.store.FinishDispatch(fctx, orderID, domain.OrderInProgress, providerOrderID, ""); ferr != nil {
			return nil, ferr
		}
		o.notifier.Notify(fctx, order.CustomerID, "Order started",
			fmt.Sprintf("Your order %s was submitted to the network.", orderID), "order")
	case ctx.Err() != nil:
		// Shutdown or request cancellation cut the placement short. The
		// order is paid, so it stays in processing with the claim released
		// for a later redelivery or the stale sweep.
		dispatchAttempts.WithLabelValues("interrupted").Inc()
		if rerr := o.store.ReleaseDispatch(fctx, orderID); rerr != nil {
			slog.Error("dispatch claim release failed", "order", orderID, "error", rerr)
		}
		return nil, err
	case domain.IsTransient(err):
		dispatchAttempts.WithLabelValues("failed").Inc()
		note := fmt.Sprintf("dispatch failed after %d attempts: %v", attempts, err)
		if ferr := o.store.FinishDispatch(fctx, orderID, domain.OrderFailed, "", note); ferr != nil {
			return nil, ferr
		}
		o.notifier.Notify(fctx, order.CustomerID, "Order failed",
			fmt.Sprintf("Your order %s could not be submitted. Support has been notified.", orderID), "error")
	default:
		dispatchAttempts.WithLabelValues("rejected").Inc()
		note := fmt.Sprintf("provider rejected order: %v", err)
		if ferr := o.store.FinishDispatch(fctx, orderID, domain.OrderCancelled, "", note); ferr != nil {
			return nil, ferr
		}
		o.notifier.Notify(fctx, order.CustomerID, "Order cancelled",
			fmt.Sprintf("Your order %s was rejected by the network.", orderID), "error")
	}

	return o.store.GetOrder(fctx, orderID)
}

// RedispatchStale re-enters processing orders whose dispatcher died
// mid-flight. Their claims have expired, so the regular claim CAS applies
// and a concurrently redelivered message still cannot double-place.
func (o *Orders) RedispatchStale(ctx context.Context, limit int) error {
	stale, err := o.store.ListStaleDispatches(ctx, time.Now().Add(-o.claimTTL), limit)
	if err != nil {
		return fmt.Errorf("list stale dispatches: %w", err)
	}
	for _, ord := range stale {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, derr := o.Dispatch(ctx, ord.ID); derr != nil && !errors.Is(derr, domain.ErrConflict) {
			slog.Warn("stale dispatch recovery failed", "order", ord.ID, "error", derr)
		}
	}
	return nil
}

// placeWithRetry retries the placement on transient provider errors with
// bounded exponential backoff. Permanent errors return immediately, as does
// context cancellation, which is reported bare so the caller can tell a
// shutdown from a genuinely exhausted retry budget. The returned count is the
// number of attempts actually made.
func (o *Orders) placeWithRetry(ctx context.Context, client provider.Client, serviceID, link string, quantity int) (string, int, error) {
	var err error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := o.backoffBase << (attempt - 2)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", attempt - 1, ctx.Err()
			}
		}
		var id string
		id, err = client.PlaceOrder(ctx, serviceID, link, quantity)
		if err == nil {
			return id, attempt, nil
		}
		if !domain.IsTransient(err) {
			return "", attempt, err
		}
		if ctx.Err() != nil {
			// A dying context makes every provider call look transient.
			return "", attempt, ctx.Err()
		}
		slog.Warn("placement attempt failed", "attempt", attempt, "error", err)
	}
	return "", o.maxAttempts, err
}

// RefreshStatus polls the provider for progress and applies the result.
// Idempotent; a terminal order is returned unchanged.
func (o *Orders) RefreshStatus(ctx context.Context, orderID uuid.UUID) (*domain.ServiceOrder, error) {
	order, err := o.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() || order.ProviderOrderID == nil {
		return order, nil
	}

	prov, err := o.store.GetProvider(ctx, order.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("load provider: %w", err)
	}

	st, err := o.clients(*prov).GetStatus(ctx, *order.ProviderOrderID)
	if err != nil {
		return nil, err
	}

	next := st.Status
	if next == domain.OrderCompleted && st.Remains > 0 {
		// Provider says done but under-delivered.
		next = domain.OrderPartial
	}
	if !next.Valid() || next == domain.OrderPending || next == domain.OrderProcessing {
		next = domain.OrderInProgress
	}

	start, remains := st.StartCount, st.Remains
	updated, err := o.store.ApplyStatusRefresh(ctx, orderID, store.StatusRefresh{
		Status:     next,
		StartCount: &start,
		Remains:    &remains,
	})
	if err != nil {
		return nil, err
	}

	if updated.Status != order.Status {
		o.notifier.Notify(ctx, order.CustomerID, "Order update",
			fmt.Sprintf("Your order %s is now %s.", orderID, updated.Status), "order")
	}
	return updated, nil
}

// Cancel is permitted only before the order reaches the provider.
func (o *Orders) Cancel(ctx context.Context, orderID uuid.UUID) (*domain.ServiceOrder, error) {
	order, err := o.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderPending && order.Status != domain.OrderProcessing {
		return nil, fmt.Errorf("%w: cannot cancel a %s order", domain.ErrInvalidState, order.Status)
	}

	updated, err := o.store.TransitionOrder(ctx, orderID, order.Status, domain.OrderCancelled)
	if err != nil {
		return nil, err
	}

	o.notifier.Notify(ctx, order.CustomerID, "Order cancelled",
		fmt.Sprintf("Your order %s was cancelled.", orderID), "order")
	return updated, nil
}
