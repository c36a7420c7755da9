package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service is a sellable catalog entry shown to customers.
type Service struct {
	ID        uuid.UUID       `json:"id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Features  []string        `json:"features"`
	IsPopular bool            `json:"is_popular"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Provider is an external fulfillment vendor reachable over its own API.
type Provider struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	APIURL         string          `json:"api_url"`
	APIKey         string          `json:"-"`
	IsActive       bool            `json:"is_active"`
	RateMultiplier decimal.Decimal `json:"rate_multiplier"`
	Priority       int             `json:"priority"`
	SyncFailures   int             `json:"sync_failures"`
	AddedAt        time.Time       `json:"added_at"`
	LastSyncAt     *time.Time      `json:"last_sync_at,omitempty"`
}

// ProviderService is one SKU offered by a Provider, synced from its catalog.
// ServiceID is the provider-side identifier; LocalServiceID is the catalog
// entry it fulfills.
type ProviderService struct {
	ID             uuid.UUID       `json:"id"`
	ProviderID     uuid.UUID       `json:"provider_id"`
	ServiceID      string          `json:"service_id"`
	LocalServiceID *uuid.UUID      `json:"local_service_id,omitempty"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	Category       string          `json:"category"`
	Rate           decimal.Decimal `json:"rate"`
	Min            int             `json:"min"`
	Max            int             `json:"max"`
	IsActive       bool            `json:"is_active"`
	SyncedAt       time.Time       `json:"synced_at"`
}

// EffectiveCost is the cost of fulfilling quantity units through this SKU at
// the given provider markup. Rate is cost per unit.
func (ps ProviderService) EffectiveCost(multiplier decimal.Decimal, quantity int) decimal.Decimal {
	return ps.Rate.Mul(multiplier).Mul(decimal.NewFromInt(int64(quantity)))
}

// ServiceOrder is the central entity: a customer's purchase of a Service,
// fulfilled through a chosen ProviderService.
type ServiceOrder struct {
	ID                uuid.UUID       `json:"id"`
	CustomerID        uuid.UUID       `json:"customer_id"`
	ServiceID         uuid.UUID       `json:"service_id"`
	ProviderServiceID uuid.UUID       `json:"provider_service_id"`
	ProviderID        uuid.UUID       `json:"provider_id"`
	Link              string          `json:"link"`
	Quantity          int             `json:"quantity"`
	OriginalPrice     decimal.Decimal `json:"original_price"`
	FinalPrice        decimal.Decimal `json:"final_price"`
	ProviderCost      decimal.Decimal `json:"provider_cost"`
	Profit            decimal.Decimal `json:"profit"`
	Status            OrderStatus     `json:"status"`
	StartCount        *int            `json:"start_count,omitempty"`
	Remains           *int            `json:"remains,omitempty"`
	ProviderOrderID   *string         `json:"provider_order_id,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	DispatchClaimedAt *time.Time      `json:"-"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

// Transaction is a payment event. It is independent of any order; callers
// carry the association in Metadata.
type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        TxStatus        `json:"status"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Description   string          `json:"description,omitempty"`
	GatewayRef    *string         `json:"gateway_ref,omitempty"`
	Fees          decimal.Decimal `json:"fees"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// PaymentMethod describes a way customers can pay, with its fee schedule.
type PaymentMethod struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	FeesPercentage decimal.Decimal `json:"fees_percentage"`
	IsActive       bool            `json:"is_active"`
	ProcessingTime string          `json:"processing_time,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Profile is the minimal customer record the platform keeps: enough for
// dashboard counts and notification delivery.
type Profile struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notification is a user-facing notice emitted on system events.
type Notification struct {
	ID          uuid.UUID  `json:"id"`
	RecipientID uuid.UUID  `json:"recipient_id"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Type        string     `json:"type"`
	IsRead      bool       `json:"is_read"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ActivityLog is one append-only audit trail entry. Never mutated.
type ActivityLog struct {
	ID         uuid.UUID  `json:"id"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	Action     string     `json:"action"`
	Resource   string     `json:"resource"`
	ResourceID string     `json:"resource_id,omitempty"`
	Details    string     `json:"details,omitempty"`
	IPAddress  string     `json:"ip_address,omitempty"`
	UserAgent  string     `json:"user_agent,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// DashboardStats is the read-time rollup served to the admin dashboard.
type DashboardStats struct {
	TotalUsers        int64 `json:"total_users"`
	TotalOrders       int64 `json:"total_orders"`
	TotalTransactions int64 `json:"total_transactions"`
	TotalServices     int64 `json:"total_services"`
}
