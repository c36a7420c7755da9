package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/smmops/internal/domain"
)

func panelServer(t *testing.T, handler func(action string, r *http.Request, w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "test-key", r.PostFormValue("key"))
		handler(r.PostFormValue("action"), r, w)
	}))
}

func testClient(srv *httptest.Server) Client {
	factory := NewPanelClient(5 * time.Second)
	return factory(domain.Provider{APIURL: srv.URL, APIKey: "test-key"})
}

func TestPlaceOrderParsesNumericAndStringIDs(t *testing.T) {
	srv := panelServer(t, func(action string, r *http.Request, w http.ResponseWriter) {
		assert.Equal(t, "add", action)
		assert.Equal(t, "42", r.PostFormValue("service"))
		assert.Equal(t, "1000", r.PostFormValue("quantity"))
		// Some panels quote the order id.
		w.Write([]byte(`{"order": "12345"}`))
	})
	defer srv.Close()

	id, err := testClient(srv).PlaceOrder(context.Background(), "42", "https://example.com/p", 1000)
	require.NoError(t, err)
	assert.Equal(t, "12345", id)
}

func TestPlaceOrderPanelErrorIsPermanent(t *testing.T) {
	srv := panelServer(t, func(_ string, _ *http.Request, w http.ResponseWriter) {
		w.Write([]byte(`{"error": "not enough funds"}`))
	})
	defer srv.Close()

	_, err := testClient(srv).PlaceOrder(context.Background(), "42", "https://example.com/p", 1000)
	require.Error(t, err)
	assert.False(t, domain.IsTransient(err), "a panel rejection must not be retried")
}

func TestServerErrorIsTransient(t *testing.T) {
	srv := panelServer(t, func(_ string, _ *http.Request, w http.ResponseWriter) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer srv.Close()

	_, err := testClient(srv).PlaceOrder(context.Background(), "42", "https://example.com/p", 1000)
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}

func TestGetStatusNormalizesFields(t *testing.T) {
	srv := panelServer(t, func(action string, r *http.Request, w http.ResponseWriter) {
		assert.Equal(t, "status", action)
		assert.Equal(t, "12345", r.PostFormValue("order"))
		w.Write([]byte(`{"status": "Partial", "start_count": "120", "remains": 40}`))
	})
	defer srv.Close()

	st, err := testClient(srv).GetStatus(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPartial, st.Status)
	assert.Equal(t, 120, st.StartCount)
	assert.Equal(t, 40, st.Remains)
}

func TestListCatalogParsesRates(t *testing.T) {
	srv := panelServer(t, func(action string, _ *http.Request, w http.ResponseWriter) {
		assert.Equal(t, "services", action)
		w.Write([]byte(`[
			{"service": 11, "name": "Followers", "type": "Default", "category": "Instagram", "rate": "0.90", "min": "100", "max": "10000"},
			{"service": "12", "name": "Likes", "type": "Default", "category": "Instagram", "rate": "0.05", "min": 10, "max": 50000}
		]`))
	})
	defer srv.Close()

	items, err := testClient(srv).ListCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "11", items[0].ServiceID)
	assert.True(t, items[0].Rate.Equal(decimal.RequireFromString("0.9")))
	assert.Equal(t, 100, items[0].Min)
	assert.Equal(t, "12", items[1].ServiceID)
	assert.Equal(t, 50000, items[1].Max)
}

func TestMapStatusVocabulary(t *testing.T) {
	cases := map[string]domain.OrderStatus{
		"Completed":   domain.OrderCompleted,
		"partial":     domain.OrderPartial,
		"Canceled":    domain.OrderCancelled,
		"cancelled":   domain.OrderCancelled,
		"refunded":    domain.OrderCancelled,
		"In progress": domain.OrderInProgress,
		"Pending":     domain.OrderInProgress,
		"something":   domain.OrderInProgress,
		"":            domain.OrderInProgress,
	}
	for in, want := range cases {
		assert.Equal(t, want, MapStatus(in), "%q", in)
	}
}
