package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/punchamoorthee/smmops/internal/domain"
)

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "GET", "/health")
}

// --- Notifications ---

func (h *Handler) ListNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	out, err := h.notifier.ListAll(r.Context())
	if err != nil {
		respondServiceError(w, err, "GET", "/notifications")
		return
	}
	respondWithJSON(w, http.StatusOK, out, "GET", "/notifications")
}

func (h *Handler) ListUserNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, mux.Vars(r)["userId"], "GET", "/notifications/user/{userId}")
	if !ok {
		return
	}
	out, err := h.notifier.ListByRecipient(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "GET", "/notifications/user/{userId}")
		return
	}
	respondWithJSON(w, http.StatusOK, out, "GET", "/notifications/user/{userId}")
}

type notificationRequest struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Type        string    `json:"type"`
}

func (h *Handler) CreateNotificationHandler(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if !decodeBody(w, r, &req, "POST", "/notifications") {
		return
	}
	n, err := h.notifier.Create(r.Context(), req.RecipientID, req.Title, req.Message, req.Type)
	if err != nil {
		respondServiceError(w, err, "POST", "/notifications")
		return
	}
	respondWithJSON(w, http.StatusCreated, n, "POST", "/notifications")
}

func (h *Handler) MarkNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, mux.Vars(r)["id"], "PATCH", "/notifications/{id}/read")
	if !ok {
		return
	}
	if err := h.notifier.MarkRead(r.Context(), id); err != nil {
		respondServiceError(w, err, "PATCH", "/notifications/{id}/read")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true}, "PATCH", "/notifications/{id}/read")
}

// --- Activity logs ---

func (h *Handler) ListActivityLogsHandler(w http.ResponseWriter, r *http.Request) {
	logs, err := h.notifier.ListActivity(r.Context(), 100)
	if err != nil {
		respondServiceError(w, err, "GET", "/activity-logs")
		return
	}
	respondWithJSON(w, http.StatusOK, logs, "GET", "/activity-logs")
}

// --- Dashboard ---

func (h *Handler) DashboardStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.Stats(r.Context())
	if err != nil {
		respondServiceError(w, err, "GET", "/dashboard/stats")
		return
	}
	respondWithJSON(w, http.StatusOK, stats, "GET", "/dashboard/stats")
}

// --- Profiles ---

type profileRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

func (h *Handler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, mux.Vars(r)["id"], "GET", "/profiles/{id}")
	if !ok {
		return
	}
	p, err := h.store.GetProfile(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "GET", "/profiles/{id}")
		return
	}
	respondWithJSON(w, http.StatusOK, p, "GET", "/profiles/{id}")
}

func (h *Handler) CreateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeBody(w, r, &req, "POST", "/profiles") {
		return
	}
	if req.DisplayName == "" {
		respondWithError(w, http.StatusUnprocessableEntity, "display_name required", "POST", "/profiles")
		return
	}
	p := &domain.Profile{
		ID:          actorID(r),
		DisplayName: req.DisplayName,
		Email:       req.Email,
		CreatedAt:   time.Now(),
	}
	if err := h.store.CreateProfile(r.Context(), p); err != nil {
		respondServiceError(w, err, "POST", "/profiles")
		return
	}
	respondWithJSON(w, http.StatusCreated, p, "POST", "/profiles")
}

// UpdateProfileHandler applies a partial update: empty fields keep their
// stored value.
func (h *Handler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, mux.Vars(r)["id"], "PUT", "/profiles/{id}")
	if !ok {
		return
	}
	var req profileRequest
	if !decodeBody(w, r, &req, "PUT", "/profiles/{id}") {
		return
	}
	p, err := h.store.GetProfile(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "PUT", "/profiles/{id}")
		return
	}
	if req.DisplayName != "" {
		p.DisplayName = req.DisplayName
	}
	if req.Email != "" {
		p.Email = req.Email
	}
	if err := h.store.UpdateProfile(r.Context(), p); err != nil {
		respondServiceError(w, err, "PUT", "/profiles/{id}")
		return
	}
	respondWithJSON(w, http.StatusOK, p, "PUT", "/profiles/{id}")
}
