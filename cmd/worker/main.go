package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/punchamoorthee/smmops/internal/config"
	"github.com/punchamoorthee/smmops/internal/provider"
	"github.com/punchamoorthee/smmops/internal/service"
	"github.com/punchamoorthee/smmops/internal/store"
	"github.com/punchamoorthee/smmops/internal/telemetry"
	"github.com/punchamoorthee/smmops/internal/worker"
)

// The worker binary runs the dispatch consumer and the reconciliation
// sweeper against a shared broker, for deployments where the API and the
// provider traffic are scaled separately.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(cfg.Env)

	if cfg.AMQPURL == "" {
		slog.Error("AMQP_URL is required for the worker binary")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := store.NewPostgres(ctx, cfg.DBSource)
	if err != nil {
		slog.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	queue, err := worker.NewAMQPQueue(cfg.AMQPURL)
	if err != nil {
		slog.Error("amqp connect failed", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	clients := provider.NewPanelClient(cfg.ProviderTimeout)
	notifier := service.NewNotifier(pg)
	orders := service.NewOrders(pg, clients, queue, notifier, cfg.DispatchMaxAttempts, cfg.DispatchBackoffBase)

	sweeper := worker.NewSweeper(orders, cfg.SweepInterval, cfg.SweepBatchSize)
	go sweeper.Run(ctx)

	dispatcher := worker.NewDispatcher(orders, queue)
	slog.Info("worker starting", "sweep_interval", cfg.SweepInterval, "batch", cfg.SweepBatchSize)
	if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("dispatcher failed to start", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("worker stopped")
}
