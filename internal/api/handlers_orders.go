package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

type placeOrderRequest struct {
	ServiceID uuid.UUID `json:"service_id"`
	Link      string    `json:"link"`
	Quantity  int       `json:"quantity"`
}

func (h *Handler) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		respondServiceError(w, err, "GET", "/orders")
		return
	}
	respondWithJSON(w, http.StatusOK, orders, "GET", "/orders")
}

func (h *Handler) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, mux.Vars(r)["id"], "GET", "/orders/{id}")
	if !ok {
		return
	}
	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "GET", "/orders/{id}")
		return
	}
	respondWithJSON(w, http.StatusOK, order, "GET", "/orders/{id}")
}

// PlaceOrderHandler creates a pending order for the acting customer.
func (h *Handler) PlaceOrderHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/orders"))
	defer timer.ObserveDuration()

	var req placeOrderRequest
	if !decodeBody(w, r, &req, "POST", "/orders") {
		return
	}

	order, err := h.orders.PlaceOrder(r.Context(), actorID(r), req.ServiceID, req.Link, req.Quantity)
	if err != nil {
		respondServiceError(w, err, "POST", "/orders")
		return
	}

	e := activityFrom(r)
	e.Action = "order.place"
	e.Resource = "order"
	e.ResourceID = order.ID.String()
	h.notifier.Record(r.Context(), e)

	respondWithJSON(w, http.StatusCreated, order, "POST", "/orders")
}

type confirmPaymentRequest struct {
	TransactionID uuid.UUID `json:"transaction_id"`
}

// ConfirmPaymentHandler gates dispatch on a settled transaction.
func (h *Handler) ConfirmPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, mux.Vars(r)["id"], "POST", "/orders/{id}/confirm")
	if !ok {
		return
	}
	var req confirmPaymentRequest
	if !decodeBody(w, r, &req, "POST", "/orders/{id}/confirm") {
		return
	}

	order, err := h.orders.ConfirmPayment(r.Context(), id, req.TransactionID)
	if err != nil {
		respondServiceError(w, err, "POST", "/orders/{id}/confirm")
		return
	}
	respondWithJSON(w, http.StatusOK, order, "POST", "/orders/{id}/confirm")
}

func (h *Handler) CancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, mux.Vars(r)["id"], "POST", "/orders/{id}/cancel")
	if !ok {
		return
	}
	order, err := h.orders.Cancel(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "POST", "/orders/{id}/cancel")
		return
	}

	e := activityFrom(r)
	e.Action = "order.cancel"
	e.Resource = "order"
	e.ResourceID = order.ID.String()
	h.notifier.Record(r.Context(), e)

	respondWithJSON(w, http.StatusOK, order, "POST", "/orders/{id}/cancel")
}

// RefreshOrderHandler forces a provider status poll for one order, outside
// the scheduled sweep.
func (h *Handler) RefreshOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, mux.Vars(r)["id"], "POST", "/orders/{id}/refresh")
	if !ok {
		return
	}
	order, err := h.orders.RefreshStatus(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "POST", "/orders/{id}/refresh")
		return
	}
	respondWithJSON(w, http.StatusOK, order, "POST", "/orders/{id}/refresh")
}
