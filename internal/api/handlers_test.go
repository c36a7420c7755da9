package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/smmops/internal/cache"
	"github.com/punchamoorthee/smmops/internal/domain"
	"github.com/punchamoorthee/smmops/internal/provider"
	"github.com/punchamoorthee/smmops/internal/service"
	"github.com/punchamoorthee/smmops/internal/store"
)

// stubClient answers every provider call successfully.
type stubClient struct{}

func (stubClient) PlaceOrder(context.Context, string, string, int) (string, error) {
	return "77001", nil
}

func (stubClient) GetStatus(context.Context, string) (provider.OrderStatus, error) {
	return provider.OrderStatus{Status: domain.OrderInProgress}, nil
}

func (stubClient) ListCatalog(context.Context) ([]provider.CatalogItem, error) {
	return []provider.CatalogItem{
		{ServiceID: "11", Name: "Followers", Type: "default", Rate: decimal.RequireFromString("0.01"), Min: 100, Max: 5000},
	}, nil
}

type nopQueue struct{}

func (nopQueue) PublishDispatch(context.Context, uuid.UUID) error { return nil }

type apiFixture struct {
	router http.Handler
	store  *store.Memory
	actor  uuid.UUID
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	mem := store.NewMemory()
	clients := func(domain.Provider) provider.Client { return stubClient{} }

	notifier := service.NewNotifier(mem)
	h := NewHandler(
		service.NewCatalog(mem, notifier),
		service.NewRegistry(mem, clients, notifier, 3),
		service.NewOrders(mem, clients, nopQueue{}, notifier, 3, time.Millisecond),
		service.NewTransactions(mem, notifier),
		notifier,
		service.NewDashboard(mem, cache.NewMemory(), 30*time.Second),
		mem,
	)
	return &apiFixture{router: NewRouter(h), store: mem, actor: uuid.New()}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, asActor bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if asActor {
		req.Header.Set("X-Actor-Id", f.actor.String())
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeResp[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "body: %s", rr.Body.String())
	return out
}

// seedFulfillment wires a service, a provider and a mapped SKU directly.
func (f *apiFixture) seedFulfillment(t *testing.T) *domain.Service {
	t.Helper()
	ctx := context.Background()
	svc := &domain.Service{
		ID:       uuid.New(),
		Title:    "Followers",
		Price:    decimal.RequireFromString("0.015"),
		Features: []string{"gradual"},
		IsActive: true,
	}
	require.NoError(t, f.store.CreateService(ctx, svc))

	prov := &domain.Provider{
		ID:             uuid.New(),
		Name:           "panel",
		APIURL:         "https://panel.example.com/api/v2",
		APIKey:         "k",
		IsActive:       true,
		RateMultiplier: decimal.NewFromInt(1),
	}
	require.NoError(t, f.store.CreateProvider(ctx, prov))

	sku := &domain.ProviderService{
		ID:             uuid.New(),
		ProviderID:     prov.ID,
		ServiceID:      "11",
		LocalServiceID: &svc.ID,
		Name:           "followers",
		Type:           "default",
		Rate:           decimal.RequireFromString("0.01"),
		Min:            100,
		Max:            5000,
		IsActive:       true,
	}
	_, err := f.store.UpsertProviderService(ctx, sku)
	require.NoError(t, err)
	return svc
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	rr := f.do(t, "GET", "/health", nil, false)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestActorHeaderRequired(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, "GET", "/api/v1/orders", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest("GET", "/api/v1/orders", nil)
	req.Header.Set("X-Actor-Id", "not-a-uuid")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The catalog and payment methods stay public.
	rr = f.do(t, "GET", "/api/v1/services", nil, false)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = f.do(t, "GET", "/api/v1/payment-methods", nil, false)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	svc := f.seedFulfillment(t)

	// Place.
	rr := f.do(t, "POST", "/api/v1/orders", map[string]any{
		"service_id": svc.ID,
		"link":       "https://example.com/p",
		"quantity":   1000,
	}, true)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	order := decodeResp[domain.ServiceOrder](t, rr)
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Equal(t, f.actor, order.CustomerID)

	// Fund.
	rr = f.do(t, "POST", "/api/v1/transactions", map[string]any{
		"customer_id": f.actor,
		"amount":      "15.00",
	}, true)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	tx := decodeResp[domain.Transaction](t, rr)

	// Settle via webhook, twice; the replay must not change the result.
	settlePath := fmt.Sprintf("/api/v1/transactions/%s/succeed", tx.ID)
	rr = f.do(t, "POST", settlePath, map[string]string{"gateway_ref": "evt_1"}, true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = f.do(t, "POST", settlePath, map[string]string{"gateway_ref": "evt_1"}, true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// A conflicting reference is rejected.
	rr = f.do(t, "POST", settlePath, map[string]string{"gateway_ref": "evt_2"}, true)
	assert.Equal(t, http.StatusConflict, rr.Code)

	// Confirm payment; the order advances to processing.
	rr = f.do(t, "POST", fmt.Sprintf("/api/v1/orders/%s/confirm", order.ID), map[string]any{
		"transaction_id": tx.ID,
	}, true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	confirmed := decodeResp[domain.ServiceOrder](t, rr)
	assert.Equal(t, domain.OrderProcessing, confirmed.Status)

	// Confirming again conflicts.
	rr = f.do(t, "POST", fmt.Sprintf("/api/v1/orders/%s/confirm", order.ID), map[string]any{
		"transaction_id": tx.ID,
	}, true)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestOrderValidationMapsTo422(t *testing.T) {
	f := newAPIFixture(t)
	svc := f.seedFulfillment(t)

	rr := f.do(t, "POST", "/api/v1/orders", map[string]any{
		"service_id": svc.ID,
		"link":       "https://example.com/p",
		"quantity":   50,
	}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "below SKU minimum")

	rr = f.do(t, "POST", "/api/v1/orders", map[string]any{
		"service_id": svc.ID,
		"quantity":   1000,
	}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "missing link")
}

func TestNotFoundAndBadRequestMapping(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, "GET", "/api/v1/orders/"+uuid.NewString(), nil, true)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, "GET", "/api/v1/orders/not-a-uuid", nil, true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest("POST", "/api/v1/orders", bytes.NewBufferString("{"))
	req.Header.Set("X-Actor-Id", f.actor.String())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterProviderAndSyncOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, "POST", "/api/v1/providers", map[string]any{
		"name":    "panel-a",
		"api_url": "https://a.example.com/api/v2",
		"api_key": "secret",
	}, true)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	p := decodeResp[domain.Provider](t, rr)
	assert.True(t, p.IsActive)

	rr = f.do(t, "GET", "/api/v1/providers/"+p.ID.String()+"/services", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	skus := decodeResp[[]domain.ProviderService](t, rr)
	assert.Len(t, skus, 1)

	rr = f.do(t, "POST", "/api/v1/providers/"+p.ID.String()+"/sync", nil, true)
	assert.Equal(t, http.StatusOK, rr.Code)

	// The API key never leaks through the JSON surface.
	rr = f.do(t, "GET", "/api/v1/providers", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "secret")
}

func TestCreateServiceAndDashboard(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, "POST", "/api/v1/services", map[string]any{
		"title":    "YouTube Views",
		"price":    "0.004",
		"features": []string{"worldwide"},
	}, true)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = f.do(t, "POST", "/api/v1/services", map[string]any{
		"title": "No price",
	}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = f.do(t, "GET", "/api/v1/dashboard/stats", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	stats := decodeResp[domain.DashboardStats](t, rr)
	assert.Equal(t, int64(1), stats.TotalServices)
}

func TestNotificationsFlow(t *testing.T) {
	f := newAPIFixture(t)
	svc := f.seedFulfillment(t)

	// Activity from placing an order lands in the audit log.
	rr := f.do(t, "POST", "/api/v1/orders", map[string]any{
		"service_id": svc.ID,
		"link":       "https://example.com/p",
		"quantity":   1000,
	}, true)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = f.do(t, "GET", "/api/v1/activity-logs", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	logs := decodeResp[[]domain.ActivityLog](t, rr)
	require.NotEmpty(t, logs)
	assert.Equal(t, "order.place", logs[0].Action)

	// Profile round trip; the profile id is the actor id.
	rr = f.do(t, "POST", "/api/v1/profiles", map[string]string{
		"display_name": "Sam",
		"email":        "sam@example.com",
	}, true)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = f.do(t, "GET", "/api/v1/profiles/"+f.actor.String(), nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	prof := decodeResp[domain.Profile](t, rr)
	assert.Equal(t, "Sam", prof.DisplayName)
}

func TestCreateNotificationOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	recipient := uuid.New()

	rr := f.do(t, "POST", "/api/v1/notifications", map[string]string{
		"recipient_id": recipient.String(),
		"title":        "Maintenance window",
		"message":      "Dispatch pauses at midnight UTC.",
		"type":         "system",
	}, true)
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decodeResp[domain.Notification](t, rr)
	assert.Equal(t, recipient, created.RecipientID)
	assert.Equal(t, "system", created.Type)

	rr = f.do(t, "GET", "/api/v1/notifications/user/"+recipient.String(), nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	notes := decodeResp[[]domain.Notification](t, rr)
	require.Len(t, notes, 1)
	assert.Equal(t, "Maintenance window", notes[0].Title)

	// Missing title is a validation error.
	rr = f.do(t, "POST", "/api/v1/notifications", map[string]string{
		"recipient_id": recipient.String(),
	}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestUpdateProfileOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, "POST", "/api/v1/profiles", map[string]string{
		"display_name": "Sam",
		"email":        "sam@example.com",
	}, true)
	require.Equal(t, http.StatusCreated, rr.Code)

	// Partial update keeps the untouched field.
	rr = f.do(t, "PUT", "/api/v1/profiles/"+f.actor.String(), map[string]string{
		"display_name": "Sam R.",
	}, true)
	require.Equal(t, http.StatusOK, rr.Code)
	prof := decodeResp[domain.Profile](t, rr)
	assert.Equal(t, "Sam R.", prof.DisplayName)
	assert.Equal(t, "sam@example.com", prof.Email)

	rr = f.do(t, "PUT", "/api/v1/profiles/"+uuid.NewString(), map[string]string{
		"display_name": "Nobody",
	}, true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
