package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/punchamoorthee/smmops/internal/cache"
	"github.com/punchamoorthee/smmops/internal/domain"
	"github.com/punchamoorthee/smmops/internal/store"
)

// Dashboard serves read-time rollups. Counts are cheap individually but the
// admin UI polls them, so results sit behind a short TTL cache.
type Dashboard struct {
	store store.Store
	cache cache.Cache
	ttl   time.Duration
}

func NewDashboard(s store.Store, c cache.Cache, ttl time.Duration) *Dashboard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Dashboard{store: s, cache: c, ttl: ttl}
}

func (d *Dashboard) Stats(ctx context.Context) (domain.DashboardStats, error) {
	key := d.cache.GenerateKey("dashboard", "stats")

	if raw, err := d.cache.Get(ctx, key); err == nil && raw != "" {
		var st domain.DashboardStats
		if err := json.Unmarshal([]byte(raw), &st); err == nil {
			return st, nil
		}
	} else if err != nil {
		// Cache trouble is not a reason to fail the dashboard.
		slog.Warn("stats cache read failed", "error", err)
	}

	st, err := d.store.CountStats(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	if raw, err := json.Marshal(st); err == nil {
		if err := d.cache.Set(ctx, key, string(raw), d.ttl); err != nil {
			slog.Warn("stats cache write failed", "error", err)
		}
	}
	return st, nil
}
