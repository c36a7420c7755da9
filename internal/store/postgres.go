package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/smmops/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Bootstrap applies the embedded schema. Safe to run repeatedly.
func (s *Postgres) Bootstrap(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("schema bootstrap failed: %w", err)
	}
	return nil
}

func (s *Postgres) Close() {
	s.pool.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecimal(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// --- Catalog ---

const serviceCols = `id, title, price::text, features, is_popular, is_active, created_at, updated_at`

func scanService(r rowScanner) (*domain.Service, error) {
	var s domain.Service
	var price string
	if err := r.Scan(&s.ID, &s.Title, &price, &s.Features, &s.IsPopular, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Price = scanDecimal(price)
	return &s, nil
}

func (s *Postgres) ListServices(ctx context.Context, activeOnly bool) ([]domain.Service, error) {
	q := `SELECT ` + serviceCols + ` FROM services ORDER BY created_at DESC`
	if activeOnly {
		q = `SELECT ` + serviceCols + ` FROM services WHERE is_active ORDER BY created_at DESC`
	}
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *svc)
	}
	return out, rows.Err()
}

func (s *Postgres) GetService(ctx context.Context, id uuid.UUID) (*domain.Service, error) {
	svc, err := scanService(s.pool.QueryRow(ctx, `SELECT `+serviceCols+` FROM services WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return svc, err
}

func (s *Postgres) CreateService(ctx context.Context, svc *domain.Service) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO services (id, title, price, features, is_popular, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		svc.ID, svc.Title, svc.Price.String(), svc.Features, svc.IsPopular, svc.IsActive, svc.CreatedAt, svc.UpdatedAt)
	return err
}

func (s *Postgres) UpdateService(ctx context.Context, svc *domain.Service) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE services SET title = $2, price = $3, features = $4, is_popular = $5, is_active = $6, updated_at = $7
		 WHERE id = $1`,
		svc.ID, svc.Title, svc.Price.String(), svc.Features, svc.IsPopular, svc.IsActive, svc.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Postgres) DeleteService(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Postgres) ServiceHasOpenOrders(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM service_orders WHERE service_id = $1 AND status NOT IN ('completed', 'cancelled', 'failed'))`,
		id).Scan(&exists)
	return exists, err
}

// --- Providers ---

const providerCols = `id, name, api_url, api_key, is_active, rate_multiplier::text, priority, sync_failures, added_at, last_sync_at`

func scanProvider(r rowScanner) (*domain.Provider, error) {
	var p domain.Provider
	var mult string
	if err := r.Scan(&p.ID, &p.Name, &p.APIURL, &p.APIKey, &p.IsActive, &mult, &p.Priority, &p.SyncFailures, &p.AddedAt, &p.LastSyncAt); err != nil {
		return nil, err
	}
	p.RateMultiplier = scanDecimal(mult)
	return &p, nil
}

func (s *Postgres) listProviders(ctx context.Context, q string) ([]domain.Provider, error) {
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Postgres) ListProviders(ctx context.Context) ([]domain.Provider, error) {
	return s.listProviders(ctx, `SELECT `+providerCols+` FROM providers ORDER BY added_at DESC`)
}

func (s *Postgres) ListActiveProviders(ctx context.Context) ([]domain.Provider, error) {
	return s.listProviders(ctx,
		`SELECT `+providerCols+` FROM providers WHERE is_active ORDER BY priority DESC, rate_multiplier ASC`)
}

func (s *Postgres) GetProvider(ctx context.Context, id uuid.UUID) (*domain.Provider, error) {
	p, err := scanProvider(s.pool.QueryRow(ctx, `SELECT `+providerCols+` FROM providers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

func (s *Postgres) CreateProvider(ctx context.Context, p *domain.Provider) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO providers (id, name, api_url, api_key, is_active, rate_multiplier, priority, sync_failures, added_at, last_sync_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.Name, p.APIURL, p.APIKey, p.IsActive, p.RateMultiplier.String(), p.Priority, p.SyncFailures, p.AddedAt, p.LastSyncAt)
	return err
}

func (s *Postgres) UpdateProvider(ctx context.Context, p *domain.Provider) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE providers SET name = $2, api_url = $3, api_key = $4, is_active = $5, rate_multiplier = $6,
		        priority = $7, sync_failures = $8, last_sync_at = $9
		 WHERE id = $1`,
		p.ID, p.Name, p.APIURL, p.APIKey, p.IsActive, p.RateMultiplier.String(), p.Priority, p.SyncFailures, p.LastSyncAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// --- Provider services ---

const providerServiceCols = `id, provider_id, service_id, local_service_id, name, type, category, rate::text, min, max, is_active, synced_at`

func scanProviderService(r rowScanner) (*domain.ProviderService, error) {
	var ps domain.ProviderService
	var rate string
	var local uuid.NullUUID
	if err := r.Scan(&ps.ID, &ps.ProviderID, &ps.ServiceID, &local, &ps.Name, &ps.Type, &ps.Category, &rate, &ps.Min, &ps.Max, &ps.IsActive, &ps.SyncedAt); err != nil {
		return nil, err
	}
	ps.Rate = scanDecimal(rate)
	if local.Valid {
		ps.LocalServiceID = &local.UUID
	}
	return &ps, nil
}

func (s *Postgres) listProviderServices(ctx context.Context, q string, args ...any) ([]domain.ProviderService, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ProviderService
	for rows.Next() {
		ps, err := scanProviderService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ps)
	}
	return out, rows.Err()
}

func (s *Postgres) ListProviderServices(ctx context.Context) ([]domain.ProviderService, error) {
	return s.listProviderServices(ctx, `SELECT `+providerServiceCols+` FROM provider_services ORDER BY synced_at DESC`)
}

func (s *Postgres) ListProviderServicesByProvider(ctx context.Context, providerID uuid.UUID) ([]domain.ProviderService, error) {
	return s.listProviderServices(ctx,
		`SELECT `+providerServiceCols+` FROM provider_services WHERE provider_id = $1 ORDER BY synced_at DESC`, providerID)
}

func (s *Postgres) GetProviderService(ctx context.Context, id uuid.UUID) (*domain.ProviderService, error) {
	ps, err := scanProviderService(s.pool.QueryRow(ctx, `SELECT `+providerServiceCols+` FROM provider_services WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return ps, err
}

func (s *Postgres) ListCandidates(ctx context.Context, localServiceID uuid.UUID) ([]domain.ProviderService, error) {
	return s.listProviderServices(ctx,
		`SELECT ps.id, ps.provider_id, ps.service_id, ps.local_service_id, ps.name, ps.type, ps.category,
		        ps.rate::text, ps.min, ps.max, ps.is_active, ps.synced_at
		 FROM provider_services ps
		 JOIN providers p ON p.id = ps.provider_id
		 WHERE ps.local_service_id = $1 AND ps.is_active AND p.is_active`,
		localServiceID)
}

func (s *Postgres) UpsertProviderService(ctx context.Context, ps *domain.ProviderService) (bool, error) {
	var inserted bool
	err := s.pool.QueryRow(ctx,
		`INSERT INTO provider_services (id, provider_id, service_id, local_service_id, name, type, category, rate, min, max, is_active, synced_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, $11)
		 ON CONFLICT (provider_id, service_id) DO UPDATE
		 SET name = EXCLUDED.name, type = EXCLUDED.type, category = EXCLUDED.category,
		     rate = EXCLUDED.rate, min = EXCLUDED.min, max = EXCLUDED.max,
		     is_active = TRUE, synced_at = EXCLUDED.synced_at
		 RETURNING (xmax = 0)`,
		ps.ID, ps.ProviderID, ps.ServiceID, ps.LocalServiceID, ps.Name, ps.Type, ps.Category,
		ps.Rate.String(), ps.Min, ps.Max, ps.SyncedAt).Scan(&inserted)
	return inserted, err
}

func (s *Postgres) DeactivateMissingProviderServices(ctx context.Context, providerID uuid.UUID, keep []string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE provider_services SET is_active = FALSE
		 WHERE provider_id = $1 AND is_active AND NOT (service_id = ANY($2))`,
		providerID, keep)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Postgres) SetProviderServiceMapping(ctx context.Context, id uuid.UUID, localServiceID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE provider_services SET local_service_id = $2 WHERE id = $1`, id, localServiceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// --- Orders ---

const orderCols = `id, customer_id, service_id, provider_service_id, provider_id, link, quantity,
	original_price::text, final_price::text, provider_cost::text, profit::text, status,
	start_count, remains, provider_order_id, notes, metadata, dispatch_claimed_at,
	created_at, updated_at, completed_at`

func scanOrder(r rowScanner) (*domain.ServiceOrder, error) {
	var o domain.ServiceOrder
	var original, final, cost, profit, status string
	if err := r.Scan(&o.ID, &o.CustomerID, &o.ServiceID, &o.ProviderServiceID, &o.ProviderID, &o.Link, &o.Quantity,
		&original, &final, &cost, &profit, &status,
		&o.StartCount, &o.Remains, &o.ProviderOrderID, &o.Notes, &o.Metadata, &o.DispatchClaimedAt,
		&o.CreatedAt, &o.UpdatedAt, &o.CompletedAt); err != nil {
		return nil, err
	}
	o.OriginalPrice = scanDecimal(original)
	o.FinalPrice = scanDecimal(final)
	o.ProviderCost = scanDecimal(cost)
	o.Profit = scanDecimal(profit)
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

func (s *Postgres) listOrders(ctx context.Context, q string, args ...any) ([]domain.ServiceOrder, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ServiceOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *Postgres) ListOrders(ctx context.Context) ([]domain.ServiceOrder, error) {
	return s.listOrders(ctx, `SELECT `+orderCols+` FROM service_orders ORDER BY created_at DESC`)
}

func (s *Postgres) ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.ServiceOrder, error) {
	return s.listOrders(ctx,
		`SELECT `+orderCols+` FROM service_orders WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
}

func (s *Postgres) GetOrder(ctx context.Context, id uuid.UUID) (*domain.ServiceOrder, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderCols+` FROM service_orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return o, err
}

func (s *Postgres) CreateOrder(ctx context.Context, o *domain.ServiceOrder) error {
	metadata := o.Metadata
	if len(metadata) == 0 {
		metadata = []byte(`{}`)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO service_orders (id, customer_id, service_id, provider_service_id, provider_id, link, quantity,
		        original_price, final_price, provider_cost, profit, status, notes, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		o.ID, o.CustomerID, o.ServiceID, o.ProviderServiceID, o.ProviderID, o.Link, o.Quantity,
		o.OriginalPrice.String(), o.FinalPrice.String(), o.ProviderCost.String(), o.Profit.String(),
		string(o.Status), o.Notes, metadata, o.CreatedAt, o.UpdatedAt)
	return err
}

func (s *Postgres) TransitionOrder(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) (*domain.ServiceOrder, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE service_orders SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetOrder(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrConflict
	}
	return s.GetOrder(ctx, id)
}

func (s *Postgres) ClaimDispatch(ctx context.Context, id uuid.UUID, at, staleBefore time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE service_orders SET dispatch_claimed_at = $2, updated_at = $2
		 WHERE id = $1 AND status = 'processing'
		   AND (dispatch_claimed_at IS NULL OR dispatch_claimed_at < $3)`,
		id, at, staleBefore)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetOrder(ctx, id); err != nil {
			return err
		}
		return domain.ErrConflict
	}
	return nil
}

func (s *Postgres) ReleaseDispatch(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE service_orders SET dispatch_claimed_at = NULL, updated_at = now()
		 WHERE id = $1 AND status = 'processing'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetOrder(ctx, id); err != nil {
			return err
		}
		return domain.ErrConflict
	}
	return nil
}

func (s *Postgres) FinishDispatch(ctx context.Context, id uuid.UUID, status domain.OrderStatus, providerOrderID, note string) error {
	var pid *string
	if providerOrderID != "" {
		pid = &providerOrderID
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE service_orders
		 SET status = $2, provider_order_id = $3,
		     notes = CASE WHEN $4 = '' THEN notes ELSE $4 END,
		     updated_at = now()
		 WHERE id = $1 AND status = 'processing'`,
		id, string(status), pid, note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *Postgres) ApplyStatusRefresh(ctx context.Context, id uuid.UUID, r StatusRefresh) (*domain.ServiceOrder, error) {
	// Terminal rows are left untouched; the refresh is an idempotent no-op.
	_, err := s.pool.Exec(ctx,
		`UPDATE service_orders
		 SET status = $2, start_count = $3, remains = $4,
		     completed_at = CASE WHEN $2 = 'completed' THEN now() ELSE completed_at END,
		     updated_at = now()
		 WHERE id = $1 AND status NOT IN ('completed', 'cancelled', 'failed')`,
		id, string(r.Status), r.StartCount, r.Remains)
	if err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, id)
}

func (s *Postgres) ListStaleDispatches(ctx context.Context, staleBefore time.Time, limit int) ([]domain.ServiceOrder, error) {
	return s.listOrders(ctx,
		`SELECT `+orderCols+` FROM service_orders
		 WHERE status = 'processing' AND updated_at < $1
		 ORDER BY updated_at ASC LIMIT $2`, staleBefore, limit)
}

func (s *Postgres) ListOrdersForSweep(ctx context.Context, limit int) ([]domain.ServiceOrder, error) {
	return s.listOrders(ctx,
		`SELECT `+orderCols+` FROM service_orders
		 WHERE status IN ('in_progress', 'partial') AND provider_order_id IS NOT NULL
		 ORDER BY updated_at ASC LIMIT $1`, limit)
}

// --- Transactions ---

const txCols = `id, customer_id, customer_name, customer_email, amount::text, currency, status,
	payment_method, description, gateway_ref, fees::text, net_amount::text, metadata,
	processed_at, created_at, updated_at`

func scanTransaction(r rowScanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var amount, fees, net, status string
	if err := r.Scan(&t.ID, &t.CustomerID, &t.CustomerName, &t.CustomerEmail, &amount, &t.Currency, &status,
		&t.PaymentMethod, &t.Description, &t.GatewayRef, &fees, &net, &t.Metadata,
		&t.ProcessedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Amount = scanDecimal(amount)
	t.Fees = scanDecimal(fees)
	t.NetAmount = scanDecimal(net)
	t.Status = domain.TxStatus(status)
	return &t, nil
}

func (s *Postgres) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+txCols+` FROM transactions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Postgres) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	t, err := scanTransaction(s.pool.QueryRow(ctx, `SELECT `+txCols+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return t, err
}

func (s *Postgres) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	metadata := t.Metadata
	if len(metadata) == 0 {
		metadata = []byte(`{}`)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions (id, customer_id, customer_name, customer_email, amount, currency, status,
		        payment_method, description, fees, net_amount, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		t.ID, t.CustomerID, t.CustomerName, t.CustomerEmail, t.Amount.String(), t.Currency, string(t.Status),
		t.PaymentMethod, t.Description, t.Fees.String(), t.NetAmount.String(), metadata, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *Postgres) MarkTransactionSucceeded(ctx context.Context, id uuid.UUID, gatewayRef string, at time.Time) (*domain.Transaction, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	cur, err := scanTransaction(tx.QueryRow(ctx, `SELECT `+txCols+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, domain.ErrNotFound
	}
	if err != nil {
		return nil, false, err
	}

	switch cur.Status {
	case domain.TxSucceeded:
		// Duplicate gateway delivery: same ref is a replay, anything else
		// is a genuine conflict.
		if cur.GatewayRef != nil && *cur.GatewayRef == gatewayRef {
			return cur, true, nil
		}
		return nil, false, domain.ErrConflict
	case domain.TxPending:
		// fallthrough to settle below
	default:
		return nil, false, domain.ErrInvalidState
	}

	net := cur.Amount.Sub(cur.Fees)
	_, err = tx.Exec(ctx,
		`UPDATE transactions SET status = 'succeeded', gateway_ref = $2, net_amount = $3, processed_at = $4, updated_at = $4
		 WHERE id = $1`,
		id, gatewayRef, net.String(), at)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("tx commit failed: %w", err)
	}

	cur.Status = domain.TxSucceeded
	cur.GatewayRef = &gatewayRef
	cur.NetAmount = net
	cur.ProcessedAt = &at
	cur.UpdatedAt = at
	return cur, false, nil
}

func (s *Postgres) MarkTransactionFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*domain.Transaction, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE transactions SET status = 'failed', description = $2, processed_at = $3, updated_at = $3
		 WHERE id = $1 AND status = 'pending'`,
		id, reason, at)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetTransaction(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrInvalidState
	}
	return s.GetTransaction(ctx, id)
}

// --- Notifications ---

const notificationCols = `id, recipient_id, title, message, type, is_read, read_at, created_at`

func scanNotification(r rowScanner) (*domain.Notification, error) {
	var n domain.Notification
	if err := r.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Message, &n.Type, &n.IsRead, &n.ReadAt, &n.CreatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Postgres) listNotifications(ctx context.Context, q string, args ...any) ([]domain.Notification, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (s *Postgres) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	return s.listNotifications(ctx, `SELECT `+notificationCols+` FROM notifications ORDER BY created_at DESC`)
}

func (s *Postgres) ListNotificationsByRecipient(ctx context.Context, recipientID uuid.UUID) ([]domain.Notification, error) {
	return s.listNotifications(ctx,
		`SELECT `+notificationCols+` FROM notifications WHERE recipient_id = $1 ORDER BY created_at DESC`, recipientID)
}

func (s *Postgres) CreateNotification(ctx context.Context, n *domain.Notification) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (id, recipient_id, title, message, type, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.RecipientID, n.Title, n.Message, n.Type, n.IsRead, n.CreatedAt)
	return err
}

func (s *Postgres) MarkNotificationRead(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = $2 WHERE id = $1 AND NOT is_read`,
		id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM notifications WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
	}
	return nil
}

// --- Activity log ---

func (s *Postgres) ListActivityLogs(ctx context.Context, limit int) ([]domain.ActivityLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, actor_id, action, resource, resource_id, details, ip_address, user_agent, created_at
		 FROM activity_logs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ActivityLog
	for rows.Next() {
		var e domain.ActivityLog
		var actor uuid.NullUUID
		if err := rows.Scan(&e.ID, &actor, &e.Action, &e.Resource, &e.ResourceID, &e.Details, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		if actor.Valid {
			e.ActorID = &actor.UUID
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Postgres) CreateActivityLog(ctx context.Context, e *domain.ActivityLog) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO activity_logs (id, actor_id, action, resource, resource_id, details, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.ActorID, e.Action, e.Resource, e.ResourceID, e.Details, e.IPAddress, e.UserAgent, e.CreatedAt)
	return err
}

// --- Payment methods ---

const paymentMethodCols = `id, name, type, fees_percentage::text, is_active, processing_time, created_at`

func scanPaymentMethod(r rowScanner) (*domain.PaymentMethod, error) {
	var m domain.PaymentMethod
	var fees string
	if err := r.Scan(&m.ID, &m.Name, &m.Type, &fees, &m.IsActive, &m.ProcessingTime, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.FeesPercentage = scanDecimal(fees)
	return &m, nil
}

func (s *Postgres) ListPaymentMethods(ctx context.Context, activeOnly bool) ([]domain.PaymentMethod, error) {
	q := `SELECT ` + paymentMethodCols + ` FROM payment_methods ORDER BY created_at`
	if activeOnly {
		q = `SELECT ` + paymentMethodCols + ` FROM payment_methods WHERE is_active ORDER BY created_at`
	}
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PaymentMethod
	for rows.Next() {
		m, err := scanPaymentMethod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *Postgres) GetPaymentMethod(ctx context.Context, id uuid.UUID) (*domain.PaymentMethod, error) {
	m, err := scanPaymentMethod(s.pool.QueryRow(ctx, `SELECT `+paymentMethodCols+` FROM payment_methods WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return m, err
}

func (s *Postgres) CreatePaymentMethod(ctx context.Context, m *domain.PaymentMethod) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO payment_methods (id, name, type, fees_percentage, is_active, processing_time, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.Name, m.Type, m.FeesPercentage.String(), m.IsActive, m.ProcessingTime, m.CreatedAt)
	return err
}

// --- Profiles ---

func (s *Postgres) GetProfile(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	var p domain.Profile
	err := s.pool.QueryRow(ctx,
		`SELECT id, display_name, email, created_at FROM profiles WHERE id = $1`, id).
		Scan(&p.ID, &p.DisplayName, &p.Email, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Postgres) CreateProfile(ctx context.Context, p *domain.Profile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (id, display_name, email, created_at) VALUES ($1, $2, $3, $4)`,
		p.ID, p.DisplayName, p.Email, p.CreatedAt)
	return err
}

func (s *Postgres) UpdateProfile(ctx context.Context, p *domain.Profile) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE profiles SET display_name = $2, email = $3 WHERE id = $1`,
		p.ID, p.DisplayName, p.Email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// --- Dashboard ---

func (s *Postgres) CountStats(ctx context.Context) (domain.DashboardStats, error) {
	var st domain.DashboardStats
	err := s.pool.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM profiles),
		        (SELECT COUNT(*) FROM service_orders),
		        (SELECT COUNT(*) FROM transactions),
		        (SELECT COUNT(*) FROM services)`).
		Scan(&st.TotalUsers, &st.TotalOrders, &st.TotalTransactions, &st.TotalServices)
	return st, err
}
