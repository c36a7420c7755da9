package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/smmops/internal/domain"
	"github.com/punchamoorthee/smmops/internal/provider"
	"github.com/punchamoorthee/smmops/internal/store"
)

var syncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "smm_provider_syncs_total",
	Help: "Provider catalog sync attempts by outcome",
}, []string{"outcome"})

// Registry tracks external fulfillment providers and keeps their catalogs
// synced. It is read-only to the order ledger.
type Registry struct {
	store    store.Store
	clients  provider.Factory
	notifier *Notifier

	// failureThreshold is the number of consecutive sync failures after
	// which a provider is deactivated.
	failureThreshold int
}

func NewRegistry(s store.Store, clients provider.Factory, n *Notifier, failureThreshold int) *Registry {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	return &Registry{store: s, clients: clients, notifier: n, failureThreshold: failureThreshold}
}

// ProviderInput is the admin payload for registering a provider.
type ProviderInput struct {
	Name           string          `json:"name"`
	APIURL         string          `json:"api_url"`
	APIKey         string          `json:"api_key"`
	RateMultiplier decimal.Decimal `json:"rate_multiplier"`
	Priority       int             `json:"priority"`
}

// Register validates and persists a provider. The endpoint is probed with a
// catalog fetch before activation, and the fetched catalog is stored in the
// same pass.
func (r *Registry) Register(ctx context.Context, actor ActivityEntry, in ProviderInput) (*domain.Provider, error) {
	if in.Name == "" {
		return nil, domain.Validationf("name", "required")
	}
	if in.APIKey == "" {
		return nil, domain.Validationf("api_key", "required")
	}
	u, err := url.Parse(in.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.Validationf("api_url", "must be an absolute http(s) URL")
	}
	if in.RateMultiplier.IsZero() {
		in.RateMultiplier = decimal.NewFromInt(1)
	}
	if in.RateMultiplier.IsNegative() {
		return nil, domain.Validationf("rate_multiplier", "must be positive")
	}

	p := &domain.Provider{
		ID:             uuid.New(),
		Name:           in.Name,
		APIURL:         in.APIURL,
		APIKey:         in.APIKey,
		IsActive:       true,
		RateMultiplier: in.RateMultiplier,
		Priority:       in.Priority,
		AddedAt:        time.Now(),
	}

	// Reachability probe doubles as the initial catalog fetch.
	items, err := r.clients(*p).ListCatalog(ctx)
	if err != nil {
		return nil, domain.Validationf("api_url", "endpoint not reachable: %v", err)
	}

	if err := r.store.CreateProvider(ctx, p); err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}
	if err := r.applyCatalog(ctx, p, items); err != nil {
		return nil, err
	}

	actor.Action = "provider.register"
	actor.Resource = "provider"
	actor.ResourceID = p.ID.String()
	actor.Details = p.Name
	r.notifier.Record(ctx, actor)
	return p, nil
}

// ListActive returns active providers ordered by priority descending, then
// rate multiplier ascending.
func (r *Registry) ListActive(ctx context.Context) ([]domain.Provider, error) {
	return r.store.ListActiveProviders(ctx)
}

func (r *Registry) ListAll(ctx context.Context) ([]domain.Provider, error) {
	return r.store.ListProviders(ctx)
}

func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*domain.Provider, error) {
	return r.store.GetProvider(ctx, id)
}

func (r *Registry) ListServices(ctx context.Context) ([]domain.ProviderService, error) {
	return r.store.ListProviderServices(ctx)
}

func (r *Registry) ListServicesByProvider(ctx context.Context, providerID uuid.UUID) ([]domain.ProviderService, error) {
	if _, err := r.store.GetProvider(ctx, providerID); err != nil {
		return nil, err
	}
	return r.store.ListProviderServicesByProvider(ctx, providerID)
}

// MapService links a synced provider SKU to the catalog entry it fulfills.
func (r *Registry) MapService(ctx context.Context, actor ActivityEntry, providerServiceID, localServiceID uuid.UUID) error {
	if _, err := r.store.GetService(ctx, localServiceID); err != nil {
		return err
	}
	if err := r.store.SetProviderServiceMapping(ctx, providerServiceID, localServiceID); err != nil {
		return err
	}
	actor.Action = "provider_service.map"
	actor.Resource = "provider_service"
	actor.ResourceID = providerServiceID.String()
	actor.Details = "mapped to service " + localServiceID.String()
	r.notifier.Record(ctx, actor)
	return nil
}

// SyncCatalog refreshes the provider's SKU list: fetched entries are
// upserted, entries the provider no longer lists are deactivated (never
// deleted). A failed fetch leaves existing rows untouched and only
// deactivates the provider after the configured number of consecutive
// failures.
func (r *Registry) SyncCatalog(ctx context.Context, providerID uuid.UUID) error {
	p, err := r.store.GetProvider(ctx, providerID)
	if err != nil {
		return err
	}

	items, err := r.clients(*p).ListCatalog(ctx)
	if err != nil {
		syncTotal.WithLabelValues("failure").Inc()
		p.SyncFailures++
		deactivated := false
		if p.SyncFailures >= r.failureThreshold && p.IsActive {
			p.IsActive = false
			deactivated = true
		}
		if uerr := r.store.UpdateProvider(ctx, p); uerr != nil {
			slog.Error("provider failure bookkeeping failed", "provider", p.ID, "error", uerr)
		}
		r.notifier.Record(ctx, ActivityEntry{
			Action:     "provider.sync_failed",
			Resource:   "provider",
			ResourceID: p.ID.String(),
			Details:    fmt.Sprintf("failure %d/%d (deactivated=%t): %v", p.SyncFailures, r.failureThreshold, deactivated, err),
		})
		return fmt.Errorf("sync catalog for %s: %w", p.Name, err)
	}

	if err := r.applyCatalog(ctx, p, items); err != nil {
		return err
	}

	now := time.Now()
	p.SyncFailures = 0
	p.LastSyncAt = &now
	if err := r.store.UpdateProvider(ctx, p); err != nil {
		return fmt.Errorf("record sync time: %w", err)
	}

	syncTotal.WithLabelValues("success").Inc()
	r.notifier.Record(ctx, ActivityEntry{
		Action:     "provider.synced",
		Resource:   "provider",
		ResourceID: p.ID.String(),
		Details:    fmt.Sprintf("%d services", len(items)),
	})
	return nil
}

func (r *Registry) applyCatalog(ctx context.Context, p *domain.Provider, items []provider.CatalogItem) error {
	now := time.Now()
	keep := make([]string, 0, len(items))
	for _, item := range items {
		keep = append(keep, item.ServiceID)
		_, err := r.store.UpsertProviderService(ctx, &domain.ProviderService{
			ID:         uuid.New(),
			ProviderID: p.ID,
			ServiceID:  item.ServiceID,
			Name:       item.Name,
			Type:       item.Type,
			Category:   item.Category,
			Rate:       item.Rate,
			Min:        item.Min,
			Max:        item.Max,
			SyncedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("upsert provider service %s: %w", item.ServiceID, err)
		}
	}

	n, err := r.store.DeactivateMissingProviderServices(ctx, p.ID, keep)
	if err != nil {
		return fmt.Errorf("deactivate missing services: %w", err)
	}
	if n > 0 {
		slog.Info("provider services deactivated", "provider", p.ID, "count", n)
	}
	return nil
}
