package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/punchamoorthee/smmops/internal/domain"
	"github.com/punchamoorthee/smmops/internal/service"
	"github.com/punchamoorthee/smmops/internal/store"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smm_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smm_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

type Handler struct {
	catalog      *service.Catalog
	registry     *service.Registry
	orders       *service.Orders
	transactions *service.Transactions
	notifier     *service.Notifier
	dashboard    *service.Dashboard
	store        store.Store
}

func NewHandler(
	catalog *service.Catalog,
	registry *service.Registry,
	orders *service.Orders,
	transactions *service.Transactions,
	notifier *service.Notifier,
	dashboard *service.Dashboard,
	st store.Store,
) *Handler {
	return &Handler{
		catalog:      catalog,
		registry:     registry,
		orders:       orders,
		transactions: transactions,
		notifier:     notifier,
		dashboard:    dashboard,
		store:        st,
	}
}

// --- Actor capability ---

type ctxKey int

const actorKey ctxKey = 0

// requireActor resolves the authenticated actor id from the X-Actor-Id
// header set by the auth front end. The id travels as an explicit capability
// in the request context, not as ambient session state.
func requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := uuid.Parse(r.Header.Get("X-Actor-Id"))
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "Missing or invalid X-Actor-Id header", r.Method, r.URL.Path)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

func actorID(r *http.Request) uuid.UUID {
	if v, ok := r.Context().Value(actorKey).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// activityFrom seeds an audit entry with the request's actor and metadata.
func activityFrom(r *http.Request) service.ActivityEntry {
	e := service.ActivityEntry{
		UserAgent: r.UserAgent(),
	}
	if actor := actorID(r); actor != uuid.Nil {
		e.ActorID = &actor
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		e.IPAddress = host
	} else {
		e.IPAddress = r.RemoteAddr
	}
	return e
}

// --- Response helpers ---

func respondWithJSON(w http.ResponseWriter, code int, payload any, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func respondWithError(w http.ResponseWriter, code int, message, method, endpoint string) {
	respondWithJSON(w, code, map[string]string{"error": message}, method, endpoint)
}

// respondServiceError maps the domain error taxonomy onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error, method, endpoint string) {
	var ve *domain.ValidationError
	var pe *domain.ProviderError
	switch {
	case errors.As(err, &ve):
		respondWithError(w, http.StatusUnprocessableEntity, ve.Error(), method, endpoint)
	case errors.Is(err, domain.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Not found", method, endpoint)
	case errors.Is(err, domain.ErrOutOfRange):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error(), method, endpoint)
	case errors.Is(err, domain.ErrInvalidState):
		respondWithError(w, http.StatusConflict, err.Error(), method, endpoint)
	case errors.Is(err, domain.ErrConflict):
		respondWithError(w, http.StatusConflict, "Concurrent update, retry the request", method, endpoint)
	case errors.As(err, &pe):
		respondWithError(w, http.StatusBadGateway, "Provider unavailable", method, endpoint)
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error", method, endpoint)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, method, endpoint string) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body", method, endpoint)
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, raw string, method, endpoint string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id", method, endpoint)
		return uuid.Nil, false
	}
	return id, true
}
