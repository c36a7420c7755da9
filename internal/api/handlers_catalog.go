package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/punchamoorthee/smmops/internal/service"
)

// ListServicesHandler is public: the customer-facing catalog.
func (h *Handler) ListServicesHandler(w http.ResponseWriter, r *http.Request) {
	services, err := h.catalog.List(r.Context())
	if err != nil {
		respondServiceError(w, err, "GET", "/services")
		return
	}
	respondWithJSON(w, http.StatusOK, services, "GET", "/services")
}

func (h *Handler) GetServiceHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, mux.Vars(r)["id"], "GET", "/services/{id}")
	if !ok {
		return
	}
	svc, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "GET", "/services/{id}")
		return
	}
	respondWithJSON(w, http.StatusOK, svc, "GET", "/services/{id}")
}

func (h *Handler) CreateServiceHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/services"))
	defer timer.ObserveDuration()

	var in service.ServiceInput
	if !decodeBody(w, r, &in, "POST", "/services") {
		return
	}
	svc, err := h.catalog.Create(r.Context(), activityFrom(r), in)
	if err != nil {
		respondServiceError(w, err, "POST", "/services")
		return
	}
	respondWithJSON(w, http.StatusCreated, svc, "POST", "/services")
}

func (h *Handler) UpdateServiceHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, mux.Vars(r)["id"], "PUT", "/services/{id}")
	if !ok {
		return
	}
	var in service.ServiceInput
	if !decodeBody(w, r, &in, "PUT", "/services/{id}") {
		return
	}
	svc, err := h.catalog.Update(r.Context(), activityFrom(r), id, in)
	if err != nil {
		respondServiceError(w, err, "PUT", "/services/{id}")
		return
	}
	respondWithJSON(w, http.StatusOK, svc, "PUT", "/services/{id}")
}

func (h *Handler) DeleteServiceHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, mux.Vars(r)["id"], "DELETE", "/services/{id}")
	if !ok {
		return
	}
	if err := h.catalog.Delete(r.Context(), activityFrom(r), id); err != nil {
		respondServiceError(w, err, "DELETE", "/services/{id}")
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil, "DELETE", "/services/{id}")
}
