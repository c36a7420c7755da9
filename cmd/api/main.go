package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/smmops/internal/api"
	"github.com/punchamoorthee/smmops/internal/cache"
	"github.com/punchamoorthee/smmops/internal/config"
	"github.com/punchamoorthee/smmops/internal/provider"
	"github.com/punchamoorthee/smmops/internal/service"
	"github.com/punchamoorthee/smmops/internal/store"
	"github.com/punchamoorthee/smmops/internal/telemetry"
	"github.com/punchamoorthee/smmops/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := store.NewPostgres(ctx, cfg.DBSource)
	if err != nil {
		slog.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	if err := pg.Bootstrap(ctx); err != nil {
		slog.Error("schema bootstrap failed", "error", err)
		os.Exit(1)
	}

	var c cache.Cache
	if cfg.RedisAddr != "" {
		c = cache.NewRedis(cfg.RedisAddr, "smmops")
	} else {
		c = cache.NewMemory()
	}

	var queue worker.Queue
	if cfg.AMQPURL != "" {
		q, err := worker.NewAMQPQueue(cfg.AMQPURL)
		if err != nil {
			slog.Error("amqp connect failed", "error", err)
			os.Exit(1)
		}
		queue = q
	} else {
		queue = worker.NewMemoryQueue(0)
	}
	defer queue.Close()

	clients := provider.NewPanelClient(cfg.ProviderTimeout)

	notifier := service.NewNotifier(pg)
	catalog := service.NewCatalog(pg, notifier)
	registry := service.NewRegistry(pg, clients, notifier, cfg.ProviderFailureThreshold)
	orders := service.NewOrders(pg, clients, queue, notifier, cfg.DispatchMaxAttempts, cfg.DispatchBackoffBase)
	transactions := service.NewTransactions(pg, notifier)
	dashboard := service.NewDashboard(pg, c, cfg.StatsCacheTTL)

	// The API process consumes its own dispatch queue when no broker is
	// configured, so a single-binary deployment still dispatches orders.
	if cfg.AMQPURL == "" {
		dispatcher := worker.NewDispatcher(orders, queue)
		if err := dispatcher.Run(ctx); err != nil {
			slog.Error("dispatcher failed to start", "error", err)
			os.Exit(1)
		}
		sweeper := worker.NewSweeper(orders, cfg.SweepInterval, cfg.SweepBatchSize)
		go sweeper.Run(ctx)
	}

	handler := api.NewHandler(catalog, registry, orders, transactions, notifier, dashboard, pg)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}
