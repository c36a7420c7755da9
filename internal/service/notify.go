package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/punchamoorthee/smmops/internal/domain"
	"github.com/punchamoorthee/smmops/internal/store"
)

// Notifier is the fire-and-forget notification and audit sink. Neither
// notifications nor activity entries may fail the calling operation; errors
// are logged and swallowed.
type Notifier struct {
	store store.Store
}

func NewNotifier(s store.Store) *Notifier {
	return &Notifier{store: s}
}

// Notify persists a user-facing notice. Best effort.
func (n *Notifier) Notify(ctx context.Context, recipientID uuid.UUID, title, message, typ string) {
	if _, err := n.Create(ctx, recipientID, title, message, typ); err != nil {
		slog.Warn("notification write failed", "recipient", recipientID, "title", title, "error", err)
	}
}

// Create persists an operator-authored notification. Unlike Notify, the
// caller wants the row back and sees the failure.
func (n *Notifier) Create(ctx context.Context, recipientID uuid.UUID, title, message, typ string) (*domain.Notification, error) {
	if recipientID == uuid.Nil {
		return nil, domain.Validationf("recipient_id", "required")
	}
	if title == "" {
		return nil, domain.Validationf("title", "required")
	}
	if typ == "" {
		typ = "info"
	}
	note := &domain.Notification{
		ID:          uuid.New(),
		RecipientID: recipientID,
		Title:       title,
		Message:     message,
		Type:        typ,
		CreatedAt:   time.Now(),
	}
	if err := n.store.CreateNotification(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// MarkRead marks a notification read. Re-marking an already-read one is a
// no-op, not an error.
func (n *Notifier) MarkRead(ctx context.Context, id uuid.UUID) error {
	return n.store.MarkNotificationRead(ctx, id, time.Now())
}

func (n *Notifier) ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]domain.Notification, error) {
	return n.store.ListNotificationsByRecipient(ctx, recipientID)
}

func (n *Notifier) ListAll(ctx context.Context) ([]domain.Notification, error) {
	return n.store.ListNotifications(ctx)
}

// ActivityEntry is the caller-supplied part of an audit record.
type ActivityEntry struct {
	ActorID    *uuid.UUID
	Action     string
	Resource   string
	ResourceID string
	Details    string
	IPAddress  string
	UserAgent  string
}

// Record appends to the audit trail. A logging failure must not block the
// user-facing action, so the error is only surfaced through diagnostics.
func (n *Notifier) Record(ctx context.Context, e ActivityEntry) {
	err := n.store.CreateActivityLog(ctx, &domain.ActivityLog{
		ID:         uuid.New(),
		ActorID:    e.ActorID,
		Action:     e.Action,
		Resource:   e.Resource,
		ResourceID: e.ResourceID,
		Details:    e.Details,
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		slog.Warn("activity log write failed", "action", e.Action, "resource", e.Resource, "error", err)
	}
}

func (n *Notifier) ListActivity(ctx context.Context, limit int) ([]domain.ActivityLog, error) {
	if limit <= 0 {
		limit = 100
	}
	return n.store.ListActivityLogs(ctx, limit)
}
