package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/punchamoorthee/smmops/internal/service"
)

func (h *Handler) ListProvidersHandler(w http.ResponseWriter, r *http.Request) {
	providers, err := h.registry.ListAll(r.Context())
	if err != nil {
		respondServiceError(w, err, "GET", "/providers")
		return
	}
	respondWithJSON(w, http.StatusOK, providers, "GET", "/providers")
}

func (h *Handler) RegisterProviderHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/providers"))
	defer timer.ObserveDuration()

	var in service.ProviderInput
	if !decodeBody(w, r, &in, "POST", "/providers") {
		return
	}
	p, err := h.registry.Register(r.Context(), activityFrom(r), in)
	if err != nil {
		respondServiceError(w, err, "POST", "/providers")
		return
	}
	respondWithJSON(w, http.StatusCreated, p, "POST", "/providers")
}

// SyncProviderHandler triggers a catalog sync for one provider.
func (h *Handler) SyncProviderHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, mux.Vars(r)["id"], "POST", "/providers/{id}/sync")
	if !ok {
		return
	}
	if err := h.registry.SyncCatalog(r.Context(), id); err != nil {
		respondServiceError(w, err, "POST", "/providers/{id}/sync")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "synced"}, "POST", "/providers/{id}/sync")
}

func (h *Handler) ListProviderServicesHandler(w http.ResponseWriter, r *http.Request) {
	services, err := h.registry.ListServices(r.Context())
	if err != nil {
		respondServiceError(w, err, "GET", "/provider-services")
		return
	}
	respondWithJSON(w, http.StatusOK, services, "GET", "/provider-services")
}

func (h *Handler) ListProviderServicesByProviderHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, mux.Vars(r)["id"], "GET", "/providers/{id}/services")
	if !ok {
		return
	}
	services, err := h.registry.ListServicesByProvider(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "GET", "/providers/{id}/services")
		return
	}
	respondWithJSON(w, http.StatusOK, services, "GET", "/providers/{id}/services")
}

type mapServiceRequest struct {
	ServiceID uuid.UUID `json:"service_id"`
}

// MapProviderServiceHandler links a synced SKU to a catalog entry.
func (h *Handler) MapProviderServiceHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, mux.Vars(r)["id"], "POST", "/provider-services/{id}/map")
	if !ok {
		return
	}
	var req mapServiceRequest
	if !decodeBody(w, r, &req, "POST", "/provider-services/{id}/map") {
		return
	}
	if err := h.registry.MapService(r.Context(), activityFrom(r), id, req.ServiceID); err != nil {
		respondServiceError(w, err, "POST", "/provider-services/{id}/map")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "mapped"}, "POST", "/provider-services/{id}/map")
}
