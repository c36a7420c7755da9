package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/punchamoorthee/smmops/internal/domain"
)

// Memory implements Store with mutex-guarded maps. It backs the test suite
// and the queue-less demo mode; semantics (CAS claims, idempotent marks)
// mirror the Postgres implementation.
type Memory struct {
	mu sync.Mutex

	services         map[uuid.UUID]*domain.Service
	providers        map[uuid.UUID]*domain.Provider
	providerServices map[uuid.UUID]*domain.ProviderService
	orders           map[uuid.UUID]*domain.ServiceOrder
	transactions     map[uuid.UUID]*domain.Transaction
	notifications    map[uuid.UUID]*domain.Notification
	activityLogs     []domain.ActivityLog
	paymentMethods   map[uuid.UUID]*domain.PaymentMethod
	profiles         map[uuid.UUID]*domain.Profile
}

func NewMemory() *Memory {
	return &Memory{
		services:         make(map[uuid.UUID]*domain.Service),
		providers:        make(map[uuid.UUID]*domain.Provider),
		providerServices: make(map[uuid.UUID]*domain.ProviderService),
		orders:           make(map[uuid.UUID]*domain.ServiceOrder),
		transactions:     make(map[uuid.UUID]*domain.Transaction),
		notifications:    make(map[uuid.UUID]*domain.Notification),
		paymentMethods:   make(map[uuid.UUID]*domain.PaymentMethod),
		profiles:         make(map[uuid.UUID]*domain.Profile),
	}
}

// --- Catalog ---

func (m *Memory) ListServices(_ context.Context, activeOnly bool) ([]domain.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Service
	for _, s := range m.services {
		if activeOnly && !s.IsActive {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) GetService(_ context.Context, id uuid.UUID) (*domain.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) CreateService(_ context.Context, s *domain.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.services[s.ID] = &cp
	return nil
}

func (m *Memory) UpdateService(_ context.Context, s *domain.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.services[s.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *s
	m.services[s.ID] = &cp
	return nil
}

func (m *Memory) DeleteService(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.services[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.services, id)
	return nil
}

func (m *Memory) ServiceHasOpenOrders(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ServiceID == id && !o.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

// --- Providers ---

func (m *Memory) ListProviders(_ context.Context) ([]domain.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Provider
	for _, p := range m.providers {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.After(out[j].AddedAt) })
	return out, nil
}

func (m *Memory) ListActiveProviders(_ context.Context) ([]domain.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Provider
	for _, p := range m.providers {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].RateMultiplier.LessThan(out[j].RateMultiplier)
	})
	return out, nil
}

func (m *Memory) GetProvider(_ context.Context, id uuid.UUID) (*domain.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) CreateProvider(_ context.Context, p *domain.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.providers[p.ID] = &cp
	return nil
}

func (m *Memory) UpdateProvider(_ context.Context, p *domain.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[p.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *p
	m.providers[p.ID] = &cp
	return nil
}

// --- Provider services ---

func (m *Memory) ListProviderServices(_ context.Context) ([]domain.ProviderService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ProviderService
	for _, ps := range m.providerServices {
		out = append(out, *ps)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SyncedAt.After(out[j].SyncedAt) })
	return out, nil
}

func (m *Memory) ListProviderServicesByProvider(_ context.Context, providerID uuid.UUID) ([]domain.ProviderService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ProviderService
	for _, ps := range m.providerServices {
		if ps.ProviderID == providerID {
			out = append(out, *ps)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SyncedAt.After(out[j].SyncedAt) })
	return out, nil
}

func (m *Memory) GetProviderService(_ context.Context, id uuid.UUID) (*domain.ProviderService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps, ok := m.providerServices[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *ps
	return &cp, nil
}

func (m *Memory) ListCandidates(_ context.Context, localServiceID uuid.UUID) ([]domain.ProviderService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ProviderService
	for _, ps := range m.providerServices {
		if !ps.IsActive || ps.LocalServiceID == nil || *ps.LocalServiceID != localServiceID {
			continue
		}
		p, ok := m.providers[ps.ProviderID]
		if !ok || !p.IsActive {
			continue
		}
		out = append(out, *ps)
	}
	return out, nil
}

func (m *Memory) UpsertProviderService(_ context.Context, ps *domain.ProviderService) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.providerServices {
		if existing.ProviderID == ps.ProviderID && existing.ServiceID == ps.ServiceID {
			existing.Name = ps.Name
			existing.Type = ps.Type
			existing.Category = ps.Category
			existing.Rate = ps.Rate
			existing.Min = ps.Min
			existing.Max = ps.Max
			existing.IsActive = true
			existing.SyncedAt = ps.SyncedAt
			ps.ID = existing.ID
			return false, nil
		}
	}
	cp := *ps
	cp.IsActive = true
	m.providerServices[ps.ID] = &cp
	return true, nil
}

func (m *Memory) DeactivateMissingProviderServices(_ context.Context, providerID uuid.UUID, keep []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ps := range m.providerServices {
		if ps.ProviderID != providerID || !ps.IsActive {
			continue
		}
		if !slices.Contains(keep, ps.ServiceID) {
			ps.IsActive = false
			n++
		}
	}
	return n, nil
}

func (m *Memory) SetProviderServiceMapping(_ context.Context, id uuid.UUID, localServiceID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps, ok := m.providerServices[id]
	if !ok {
		return domain.ErrNotFound
	}
	ps.LocalServiceID = &localServiceID
	return nil
}

// --- Orders ---

func (m *Memory) ListOrders(_ context.Context) ([]domain.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ServiceOrder
	for _, o := range m.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ListOrdersByCustomer(_ context.Context, customerID uuid.UUID) ([]domain.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ServiceOrder
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) GetOrder(_ context.Context, id uuid.UUID) (*domain.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *Memory) CreateOrder(_ context.Context, o *domain.ServiceOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *Memory) TransitionOrder(_ context.Context, id uuid.UUID, from, to domain.OrderStatus) (*domain.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Status != from {
		return nil, domain.ErrConflict
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	cp := *o
	return &cp, nil
}

func (m *Memory) ClaimDispatch(_ context.Context, id uuid.UUID, at, staleBefore time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	if o.Status != domain.OrderProcessing {
		return domain.ErrConflict
	}
	if o.DispatchClaimedAt != nil && !o.DispatchClaimedAt.Before(staleBefore) {
		return domain.ErrConflict
	}
	o.DispatchClaimedAt = &at
	o.UpdatedAt = at
	return nil
}

func (m *Memory) ReleaseDispatch(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	if o.Status != domain.OrderProcessing {
		return domain.ErrConflict
	}
	o.DispatchClaimedAt = nil
	o.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) FinishDispatch(_ context.Context, id uuid.UUID, status domain.OrderStatus, providerOrderID, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	if o.Status != domain.OrderProcessing {
		return domain.ErrConflict
	}
	o.Status = status
	if providerOrderID != "" {
		o.ProviderOrderID = &providerOrderID
	}
	if note != "" {
		o.Notes = note
	}
	o.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) ApplyStatusRefresh(_ context.Context, id uuid.UUID, r StatusRefresh) (*domain.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !o.Status.Terminal() {
		now := time.Now()
		o.Status = r.Status
		o.StartCount = r.StartCount
		o.Remains = r.Remains
		if r.Status == domain.OrderCompleted {
			o.CompletedAt = &now
		}
		o.UpdatedAt = now
	}
	cp := *o
	return &cp, nil
}

func (m *Memory) ListOrdersForSweep(_ context.Context, limit int) ([]domain.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ServiceOrder
	for _, o := range m.orders {
		if (o.Status == domain.OrderInProgress || o.Status == domain.OrderPartial) && o.ProviderOrderID != nil {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListStaleDispatches(_ context.Context, staleBefore time.Time, limit int) ([]domain.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ServiceOrder
	for _, o := range m.orders {
		if o.Status == domain.OrderProcessing && o.UpdatedAt.Before(staleBefore) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- Transactions ---

func (m *Memory) ListTransactions(_ context.Context) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Transaction
	for _, t := range m.transactions {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) GetTransaction(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) CreateTransaction(_ context.Context, t *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.transactions[t.ID] = &cp
	return nil
}

func (m *Memory) MarkTransactionSucceeded(_ context.Context, id uuid.UUID, gatewayRef string, at time.Time) (*domain.Transaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	switch t.Status {
	case domain.TxSucceeded:
		if t.GatewayRef != nil && *t.GatewayRef == gatewayRef {
			cp := *t
			return &cp, true, nil
		}
		return nil, false, domain.ErrConflict
	case domain.TxPending:
	default:
		return nil, false, domain.ErrInvalidState
	}
	t.Status = domain.TxSucceeded
	t.GatewayRef = &gatewayRef
	t.NetAmount = t.Amount.Sub(t.Fees)
	t.ProcessedAt = &at
	t.UpdatedAt = at
	cp := *t
	return &cp, false, nil
}

func (m *Memory) MarkTransactionFailed(_ context.Context, id uuid.UUID, reason string, at time.Time) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if t.Status != domain.TxPending {
		return nil, domain.ErrInvalidState
	}
	t.Status = domain.TxFailed
	t.Description = reason
	t.ProcessedAt = &at
	t.UpdatedAt = at
	cp := *t
	return &cp, nil
}

// --- Notifications ---

func (m *Memory) ListNotifications(_ context.Context) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.notifications {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ListNotificationsByRecipient(_ context.Context, recipientID uuid.UUID) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.notifications {
		if n.RecipientID == recipientID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CreateNotification(_ context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *n
	m.notifications[n.ID] = &cp
	return nil
}

func (m *Memory) MarkNotificationRead(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !n.IsRead {
		n.IsRead = true
		n.ReadAt = &at
	}
	return nil
}

// --- Activity log ---

func (m *Memory) ListActivityLogs(_ context.Context, limit int) ([]domain.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ActivityLog, len(m.activityLogs))
	copy(out, m.activityLogs)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CreateActivityLog(_ context.Context, e *domain.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activityLogs = append(m.activityLogs, *e)
	return nil
}

// --- Payment methods ---

func (m *Memory) ListPaymentMethods(_ context.Context, activeOnly bool) ([]domain.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PaymentMethod
	for _, pm := range m.paymentMethods {
		if activeOnly && !pm.IsActive {
			continue
		}
		out = append(out, *pm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) GetPaymentMethod(_ context.Context, id uuid.UUID) (*domain.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm, ok := m.paymentMethods[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *pm
	return &cp, nil
}

func (m *Memory) CreatePaymentMethod(_ context.Context, pm *domain.PaymentMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *pm
	m.paymentMethods[pm.ID] = &cp
	return nil
}

// --- Profiles ---

func (m *Memory) GetProfile(_ context.Context, id uuid.UUID) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) CreateProfile(_ context.Context, p *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *Memory) UpdateProfile(_ context.Context, p *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

// --- Dashboard ---

func (m *Memory) CountStats(_ context.Context) (domain.DashboardStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.DashboardStats{
		TotalUsers:        int64(len(m.profiles)),
		TotalOrders:       int64(len(m.orders)),
		TotalTransactions: int64(len(m.transactions)),
		TotalServices:     int64(len(m.services)),
	}, nil
}
