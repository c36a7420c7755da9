package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/punchamoorthee/smmops/internal/service"
)

var sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "smm_sweep_duration_seconds",
	Help:    "Duration of a full status sweep",
	Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60},
})

// Dispatcher consumes the dispatch queue and submits orders to providers.
// An in-process in-flight set keeps at most one dispatch per order even when
// the broker redelivers.
type Dispatcher struct {
	orders *service.Orders
	queue  Queue

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

func NewDispatcher(orders *service.Orders, queue Queue) *Dispatcher {
	return &Dispatcher{
		orders:   orders,
		queue:    queue,
		inFlight: make(map[uuid.UUID]struct{}),
	}
}

// Run starts consuming until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	return d.queue.ConsumeDispatch(ctx, d.handle)
}

func (d *Dispatcher) handle(ctx context.Context, orderID uuid.UUID) error {
	if !d.claim(orderID) {
		slog.Debug("dispatch already in flight", "order", orderID)
		return nil
	}
	defer d.release(orderID)

	order, err := d.orders.Dispatch(ctx, orderID)
	if err != nil {
		return err
	}
	slog.Info("order dispatched", "order", orderID, "status", order.Status)
	return nil
}

func (d *Dispatcher) claim(orderID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inFlight[orderID]; busy {
		return false
	}
	d.inFlight[orderID] = struct{}{}
	return true
}

func (d *Dispatcher) release(orderID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inFlight, orderID)
}

// Sweeper periodically reconciles dispatched orders against provider state,
// in batches, to keep within provider rate limits.
type Sweeper struct {
	orders    *service.Orders
	interval  time.Duration
	batchSize int
}

func NewSweeper(orders *service.Orders, interval time.Duration, batchSize int) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Sweeper{orders: orders, interval: interval, batchSize: batchSize}
}

// Run sweeps on every tick until ctx is cancelled. Cancellation takes effect
// between orders; a single order's refresh is atomic in the store.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep re-enters orders stranded by a dispatcher that died mid-flight,
// then refreshes one batch of open orders.
func (s *Sweeper) Sweep(ctx context.Context) {
	timer := prometheus.NewTimer(sweepDuration)
	defer timer.ObserveDuration()

	if err := s.orders.RedispatchStale(ctx, s.batchSize); err != nil {
		slog.Warn("stale dispatch recovery failed", "error", err)
	}

	batch, err := s.orders.ListForSweep(ctx, s.batchSize)
	if err != nil {
		slog.Error("sweep listing failed", "error", err)
		return
	}

	refreshed := 0
	for _, o := range batch {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.orders.RefreshStatus(ctx, o.ID); err != nil {
			slog.Warn("status refresh failed", "order", o.ID, "error", err)
			continue
		}
		refreshed++
	}
	if len(batch) > 0 {
		slog.Info("sweep finished", "batch", len(batch), "refreshed", refreshed)
	}
}
