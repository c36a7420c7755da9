package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/smmops/internal/domain"
	"github.com/punchamoorthee/smmops/internal/store"
)

// Catalog manages the sellable Service entries.
type Catalog struct {
	store    store.Store
	notifier *Notifier
}

func NewCatalog(s store.Store, n *Notifier) *Catalog {
	return &Catalog{store: s, notifier: n}
}

// ServiceInput is the admin-facing create/update payload.
type ServiceInput struct {
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Features  []string        `json:"features"`
	IsPopular bool            `json:"is_popular"`
	IsActive  *bool           `json:"is_active,omitempty"`
}

func (in ServiceInput) validate() error {
	if in.Title == "" {
		return domain.Validationf("title", "required")
	}
	if !in.Price.IsPositive() {
		return domain.Validationf("price", "must be positive")
	}
	if len(in.Features) == 0 {
		return domain.Validationf("features", "at least one feature required")
	}
	for i, f := range in.Features {
		if f == "" {
			return domain.Validationf("features", "feature %d is empty", i)
		}
	}
	return nil
}

// List returns active services, newest first.
func (c *Catalog) List(ctx context.Context) ([]domain.Service, error) {
	return c.store.ListServices(ctx, true)
}

// ListAll includes deactivated services, for the admin view.
func (c *Catalog) ListAll(ctx context.Context) ([]domain.Service, error) {
	return c.store.ListServices(ctx, false)
}

func (c *Catalog) Get(ctx context.Context, id uuid.UUID) (*domain.Service, error) {
	return c.store.GetService(ctx, id)
}

func (c *Catalog) Create(ctx context.Context, actor ActivityEntry, in ServiceInput) (*domain.Service, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	svc := &domain.Service{
		ID:        uuid.New(),
		Title:     in.Title,
		Price:     in.Price,
		Features:  in.Features,
		IsPopular: in.IsPopular,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.IsActive != nil {
		svc.IsActive = *in.IsActive
	}
	if err := c.store.CreateService(ctx, svc); err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}

	actor.Action = "service.create"
	actor.Resource = "service"
	actor.ResourceID = svc.ID.String()
	actor.Details = svc.Title
	c.notifier.Record(ctx, actor)
	return svc, nil
}

func (c *Catalog) Update(ctx context.Context, actor ActivityEntry, id uuid.UUID, in ServiceInput) (*domain.Service, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	svc, err := c.store.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	svc.Title = in.Title
	svc.Price = in.Price
	svc.Features = in.Features
	svc.IsPopular = in.IsPopular
	if in.IsActive != nil {
		svc.IsActive = *in.IsActive
	}
	svc.UpdatedAt = time.Now()
	if err := c.store.UpdateService(ctx, svc); err != nil {
		return nil, fmt.Errorf("update service: %w", err)
	}

	actor.Action = "service.update"
	actor.Resource = "service"
	actor.ResourceID = id.String()
	c.notifier.Record(ctx, actor)
	return svc, nil
}

// Delete removes a service. When any non-terminal order still references it
// the delete is logical: the service is deactivated and its history kept.
func (c *Catalog) Delete(ctx context.Context, actor ActivityEntry, id uuid.UUID) error {
	svc, err := c.store.GetService(ctx, id)
	if err != nil {
		return err
	}

	open, err := c.store.ServiceHasOpenOrders(ctx, id)
	if err != nil {
		return fmt.Errorf("check open orders: %w", err)
	}

	action := "service.delete"
	if open {
		svc.IsActive = false
		svc.UpdatedAt = time.Now()
		if err := c.store.UpdateService(ctx, svc); err != nil {
			return fmt.Errorf("deactivate service: %w", err)
		}
		action = "service.deactivate"
	} else if err := c.store.DeleteService(ctx, id); err != nil {
		return fmt.Errorf("delete service: %w", err)
	}

	actor.Action = action
	actor.Resource = "service"
	actor.ResourceID = id.String()
	actor.Details = svc.Title
	c.notifier.Record(ctx, actor)
	return nil
}
