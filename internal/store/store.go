package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/punchamoorthee/smmops/internal/domain"
)

// StatusRefresh carries the outcome of one provider status poll.
type StatusRefresh struct {
	Status     domain.OrderStatus
	StartCount *int
	Remains    *int
}

// Store is the persistence capability the domain services call. Two
// implementations exist: Postgres for production and Memory for tests and
// demo mode.
type Store interface {
	// Catalog
	ListServices(ctx context.Context, activeOnly bool) ([]domain.Service, error)
	GetService(ctx context.Context, id uuid.UUID) (*domain.Service, error)
	CreateService(ctx context.Context, s *domain.Service) error
	UpdateService(ctx context.Context, s *domain.Service) error
	DeleteService(ctx context.Context, id uuid.UUID) error
	ServiceHasOpenOrders(ctx context.Context, id uuid.UUID) (bool, error)

	// Providers
	ListProviders(ctx context.Context) ([]domain.Provider, error)
	ListActiveProviders(ctx context.Context) ([]domain.Provider, error)
	GetProvider(ctx context.Context, id uuid.UUID) (*domain.Provider, error)
	CreateProvider(ctx context.Context, p *domain.Provider) error
	UpdateProvider(ctx context.Context, p *domain.Provider) error

	// Provider services
	ListProviderServices(ctx context.Context) ([]domain.ProviderService, error)
	ListProviderServicesByProvider(ctx context.Context, providerID uuid.UUID) ([]domain.ProviderService, error)
	GetProviderService(ctx context.Context, id uuid.UUID) (*domain.ProviderService, error)
	// ListCandidates returns the active provider services mapped to a local
	// catalog service, offered by active providers only.
	ListCandidates(ctx context.Context, localServiceID uuid.UUID) ([]domain.ProviderService, error)
	// UpsertProviderService inserts or updates by (provider_id, service_id)
	// and returns whether a new row was created.
	UpsertProviderService(ctx context.Context, ps *domain.ProviderService) (bool, error)
	// DeactivateMissingProviderServices flips is_active off for every SKU of
	// the provider whose provider-side id is not in keep. Rows are never
	// deleted; order history keeps pointing at them.
	DeactivateMissingProviderServices(ctx context.Context, providerID uuid.UUID, keep []string) (int, error)
	// SetProviderServiceMapping links a synced SKU to the local catalog
	// entry it fulfills. Catalog syncs preserve the mapping.
	SetProviderServiceMapping(ctx context.Context, id uuid.UUID, localServiceID uuid.UUID) error

	// Orders
	ListOrders(ctx context.Context) ([]domain.ServiceOrder, error)
	ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.ServiceOrder, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.ServiceOrder, error)
	CreateOrder(ctx context.Context, o *domain.ServiceOrder) error
	// TransitionOrder moves the order from → to in one compare-and-swap.
	// Returns ErrConflict when the order is no longer in from.
	TransitionOrder(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) (*domain.ServiceOrder, error)
	// ClaimDispatch marks the order as being dispatched. Exactly one caller
	// can win the claim for a processing order; everyone else gets
	// ErrConflict. A claim stamped before staleBefore counts as abandoned
	// and may be taken over.
	ClaimDispatch(ctx context.Context, id uuid.UUID, at, staleBefore time.Time) error
	// ReleaseDispatch clears the claim on a still-processing order so a
	// later dispatch attempt can claim it again.
	ReleaseDispatch(ctx context.Context, id uuid.UUID) error
	// FinishDispatch records the dispatch outcome: the provider order id on
	// success, or a note explaining a rejection/failure.
	FinishDispatch(ctx context.Context, id uuid.UUID, status domain.OrderStatus, providerOrderID, note string) error
	// ApplyStatusRefresh applies a provider poll result. It is a no-op when
	// the order has already reached a terminal state.
	ApplyStatusRefresh(ctx context.Context, id uuid.UUID, r StatusRefresh) (*domain.ServiceOrder, error)
	// ListOrdersForSweep returns dispatched, non-terminal orders oldest
	// first, capped at limit.
	ListOrdersForSweep(ctx context.Context, limit int) ([]domain.ServiceOrder, error)
	// ListStaleDispatches returns processing orders untouched since
	// staleBefore, oldest first. These were confirmed but never finished
	// dispatching.
	ListStaleDispatches(ctx context.Context, staleBefore time.Time, limit int) ([]domain.ServiceOrder, error)

	// Transactions
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	CreateTransaction(ctx context.Context, t *domain.Transaction) error
	// MarkTransactionSucceeded is idempotent per gateway reference: a replay
	// with the same ref returns the stored row with replayed=true and must
	// not credit twice. A different ref on a settled transaction is
	// ErrConflict.
	MarkTransactionSucceeded(ctx context.Context, id uuid.UUID, gatewayRef string, at time.Time) (tx *domain.Transaction, replayed bool, err error)
	MarkTransactionFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*domain.Transaction, error)

	// Notifications
	ListNotifications(ctx context.Context) ([]domain.Notification, error)
	ListNotificationsByRecipient(ctx context.Context, recipientID uuid.UUID) ([]domain.Notification, error)
	CreateNotification(ctx context.Context, n *domain.Notification) error
	// MarkNotificationRead is an idempotent no-op on an already-read row.
	MarkNotificationRead(ctx context.Context, id uuid.UUID, at time.Time) error

	// Activity log
	ListActivityLogs(ctx context.Context, limit int) ([]domain.ActivityLog, error)
	CreateActivityLog(ctx context.Context, e *domain.ActivityLog) error

	// Payment methods
	ListPaymentMethods(ctx context.Context, activeOnly bool) ([]domain.PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, id uuid.UUID) (*domain.PaymentMethod, error)
	CreatePaymentMethod(ctx context.Context, m *domain.PaymentMethod) error

	// Profiles
	GetProfile(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
	CreateProfile(ctx context.Context, p *domain.Profile) error
	UpdateProfile(ctx context.Context, p *domain.Profile) error

	// Dashboard
	CountStats(ctx context.Context) (domain.DashboardStats, error)
}
