package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the REST surface. The catalog and payment-method listings
// are public; everything else requires an authenticated actor.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()

	// Public
	apiV1.HandleFunc("/services", h.ListServicesHandler).Methods("GET")
	apiV1.HandleFunc("/services/{id}", h.GetServiceHandler).Methods("GET")
	apiV1.HandleFunc("/payment-methods", h.ListPaymentMethodsHandler).Methods("GET")

	// Authenticated
	auth := apiV1.NewRoute().Subrouter()
	auth.Use(requireActor)

	auth.HandleFunc("/services", h.CreateServiceHandler).Methods("POST")
	auth.HandleFunc("/services/{id}", h.UpdateServiceHandler).Methods("PUT")
	auth.HandleFunc("/services/{id}", h.DeleteServiceHandler).Methods("DELETE")

	auth.HandleFunc("/orders", h.ListOrdersHandler).Methods("GET")
	auth.HandleFunc("/orders", h.PlaceOrderHandler).Methods("POST")
	auth.HandleFunc("/orders/{id}", h.GetOrderHandler).Methods("GET")
	auth.HandleFunc("/orders/{id}/confirm", h.ConfirmPaymentHandler).Methods("POST")
	auth.HandleFunc("/orders/{id}/cancel", h.CancelOrderHandler).Methods("POST")
	auth.HandleFunc("/orders/{id}/refresh", h.RefreshOrderHandler).Methods("POST")

	auth.HandleFunc("/transactions", h.ListTransactionsHandler).Methods("GET")
	auth.HandleFunc("/transactions", h.CreateTransactionHandler).Methods("POST")
	auth.HandleFunc("/transactions/{id}", h.GetTransactionHandler).Methods("GET")
	auth.HandleFunc("/transactions/{id}/succeed", h.SettleTransactionHandler).Methods("POST")
	auth.HandleFunc("/transactions/{id}/fail", h.FailTransactionHandler).Methods("POST")

	auth.HandleFunc("/providers", h.ListProvidersHandler).Methods("GET")
	auth.HandleFunc("/providers", h.RegisterProviderHandler).Methods("POST")
	auth.HandleFunc("/providers/{id}/sync", h.SyncProviderHandler).Methods("POST")
	auth.HandleFunc("/providers/{id}/services", h.ListProviderServicesByProviderHandler).Methods("GET")
	auth.HandleFunc("/provider-services", h.ListProviderServicesHandler).Methods("GET")
	auth.HandleFunc("/provider-services/{id}/map", h.MapProviderServiceHandler).Methods("POST")

	auth.HandleFunc("/notifications", h.ListNotificationsHandler).Methods("GET")
	auth.HandleFunc("/notifications", h.CreateNotificationHandler).Methods("POST")
	auth.HandleFunc("/notifications/user/{userId}", h.ListUserNotificationsHandler).Methods("GET")
	auth.HandleFunc("/notifications/{id}/read", h.MarkNotificationReadHandler).Methods("PATCH")

	auth.HandleFunc("/activity-logs", h.ListActivityLogsHandler).Methods("GET")
	auth.HandleFunc("/dashboard/stats", h.DashboardStatsHandler).Methods("GET")

	auth.HandleFunc("/profiles", h.CreateProfileHandler).Methods("POST")
	auth.HandleFunc("/profiles/{id}", h.GetProfileHandler).Methods("GET")
	auth.HandleFunc("/profiles/{id}", h.UpdateProfileHandler).Methods("PUT")

	return r
}
