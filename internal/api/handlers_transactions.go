package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/punchamoorthee/smmops/internal/service"
)

func (h *Handler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	txs, err := h.transactions.List(r.Context())
	if err != nil {
		respondServiceError(w, err, "GET", "/transactions")
		return
	}
	respondWithJSON(w, http.StatusOK, txs, "GET", "/transactions")
}

func (h *Handler) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, mux.Vars(r)["id"], "GET", "/transactions/{id}")
	if !ok {
		return
	}
	tx, err := h.transactions.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "GET", "/transactions/{id}")
		return
	}
	respondWithJSON(w, http.StatusOK, tx, "GET", "/transactions/{id}")
}

func (h *Handler) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/transactions"))
	defer timer.ObserveDuration()

	var in service.TransactionInput
	if !decodeBody(w, r, &in, "POST", "/transactions") {
		return
	}
	tx, err := h.transactions.Record(r.Context(), in)
	if err != nil {
		respondServiceError(w, err, "POST", "/transactions")
		return
	}
	respondWithJSON(w, http.StatusCreated, tx, "POST", "/transactions")
}

type settleRequest struct {
	GatewayRef string `json:"gateway_ref"`
}

// SettleTransactionHandler is the payment-gateway webhook target. Gateways
// retry deliveries, so the operation is idempotent per gateway reference.
func (h *Handler) SettleTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, mux.Vars(r)["id"], "POST", "/transactions/{id}/succeed")
	if !ok {
		return
	}
	var req settleRequest
	if !decodeBody(w, r, &req, "POST", "/transactions/{id}/succeed") {
		return
	}
	tx, err := h.transactions.MarkSucceeded(r.Context(), id, req.GatewayRef)
	if err != nil {
		respondServiceError(w, err, "POST", "/transactions/{id}/succeed")
		return
	}
	respondWithJSON(w, http.StatusOK, tx, "POST", "/transactions/{id}/succeed")
}

type failRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) FailTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, mux.Vars(r)["id"], "POST", "/transactions/{id}/fail")
	if !ok {
		return
	}
	var req failRequest
	if !decodeBody(w, r, &req, "POST", "/transactions/{id}/fail") {
		return
	}
	tx, err := h.transactions.MarkFailed(r.Context(), id, req.Reason)
	if err != nil {
		respondServiceError(w, err, "POST", "/transactions/{id}/fail")
		return
	}
	respondWithJSON(w, http.StatusOK, tx, "POST", "/transactions/{id}/fail")
}

// ListPaymentMethodsHandler is public, like the catalog.
func (h *Handler) ListPaymentMethodsHandler(w http.ResponseWriter, r *http.Request) {
	methods, err := h.transactions.ListPaymentMethods(r.Context())
	if err != nil {
		respondServiceError(w, err, "GET", "/payment-methods")
		return
	}
	respondWithJSON(w, http.StatusOK, methods, "GET", "/payment-methods")
}
