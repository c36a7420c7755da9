// Package provider normalizes vendor-specific SMM panel APIs into the three
// capabilities the order ledger needs: place an order, query its status, and
// list the vendor's catalog.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/smmops/internal/domain"
)

// OrderStatus is a normalized provider-side order snapshot.
type OrderStatus struct {
	Status     domain.OrderStatus
	StartCount int
	Remains    int
}

// CatalogItem is one SKU from a provider's catalog listing.
type CatalogItem struct {
	ServiceID string
	Name      string
	Type      string
	Category  string
	Rate      decimal.Decimal
	Min       int
	Max       int
}

// Client is the normalized provider capability surface.
type Client interface {
	PlaceOrder(ctx context.Context, serviceID, link string, quantity int) (providerOrderID string, err error)
	GetStatus(ctx context.Context, providerOrderID string) (OrderStatus, error)
	ListCatalog(ctx context.Context) ([]CatalogItem, error)
}

// Factory builds a Client for a registered provider. Injected so tests can
// substitute doubles.
type Factory func(p domain.Provider) Client

// panelClient speaks the de-facto standard SMM panel v2 API: form-encoded
// POSTs with key/action parameters against a single endpoint.
type panelClient struct {
	apiURL string
	apiKey string
	http   *http.Client
}

// NewPanelClient returns the production Factory.
func NewPanelClient(timeout time.Duration) Factory {
	hc := &http.Client{Timeout: timeout}
	return func(p domain.Provider) Client {
		return &panelClient{apiURL: p.APIURL, apiKey: p.APIKey, http: hc}
	}
}

func (c *panelClient) call(ctx context.Context, params url.Values, out any) error {
	params.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(params.Encode()))
	if err != nil {
		return &domain.ProviderError{Op: params.Get("action"), Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		// Network-level failures are transient by definition.
		return &domain.ProviderError{Op: params.Get("action"), Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &domain.ProviderError{Op: params.Get("action"), Transient: true,
			Err: fmt.Errorf("http %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return &domain.ProviderError{Op: params.Get("action"),
			Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.ProviderError{Op: params.Get("action"), Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// flexInt tolerates panels returning numbers as strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

func (c *panelClient) PlaceOrder(ctx context.Context, serviceID, link string, quantity int) (string, error) {
	params := url.Values{
		"action":   {"add"},
		"service":  {serviceID},
		"link":     {link},
		"quantity": {strconv.Itoa(quantity)},
	}
	var resp struct {
		Order flexInt `json:"order"`
		Error string  `json:"error"`
	}
	if err := c.call(ctx, params, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		// The panel answered; it just said no. Not retryable.
		return "", &domain.ProviderError{Op: "add", Err: fmt.Errorf("%s", resp.Error)}
	}
	if resp.Order == 0 {
		return "", &domain.ProviderError{Op: "add", Err: fmt.Errorf("no order id in response")}
	}
	return strconv.Itoa(int(resp.Order)), nil
}

func (c *panelClient) GetStatus(ctx context.Context, providerOrderID string) (OrderStatus, error) {
	params := url.Values{
		"action": {"status"},
		"order":  {providerOrderID},
	}
	var resp struct {
		Status     string  `json:"status"`
		StartCount flexInt `json:"start_count"`
		Remains    flexInt `json:"remains"`
		Error      string  `json:"error"`
	}
	if err := c.call(ctx, params, &resp); err != nil {
		return OrderStatus{}, err
	}
	if resp.Error != "" {
		return OrderStatus{}, &domain.ProviderError{Op: "status", Err: fmt.Errorf("%s", resp.Error)}
	}
	return OrderStatus{
		Status:     MapStatus(resp.Status),
		StartCount: int(resp.StartCount),
		Remains:    int(resp.Remains),
	}, nil
}

func (c *panelClient) ListCatalog(ctx context.Context) ([]CatalogItem, error) {
	params := url.Values{"action": {"services"}}
	var resp []struct {
		Service  json.Number `json:"service"`
		Name     string      `json:"name"`
		Type     string      `json:"type"`
		Category string      `json:"category"`
		Rate     string      `json:"rate"`
		Min      flexInt     `json:"min"`
		Max      flexInt     `json:"max"`
	}
	if err := c.call(ctx, params, &resp); err != nil {
		return nil, err
	}

	items := make([]CatalogItem, 0, len(resp))
	for _, e := range resp {
		rate, err := decimal.NewFromString(e.Rate)
		if err != nil {
			return nil, &domain.ProviderError{Op: "services", Err: fmt.Errorf("bad rate %q for service %s", e.Rate, e.Service)}
		}
		items = append(items, CatalogItem{
			ServiceID: e.Service.String(),
			Name:      e.Name,
			Type:      e.Type,
			Category:  e.Category,
			Rate:      rate,
			Min:       int(e.Min),
			Max:       int(e.Max),
		})
	}
	return items, nil
}

// MapStatus translates the panel status vocabulary into the local enum.
// Unknown values map to in_progress so the sweep keeps polling.
func MapStatus(s string) domain.OrderStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed":
		return domain.OrderCompleted
	case "partial":
		return domain.OrderPartial
	case "canceled", "cancelled", "refunded":
		return domain.OrderCancelled
	case "pending", "processing", "in progress", "inprogress":
		return domain.OrderInProgress
	default:
		return domain.OrderInProgress
	}
}
