package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaharia-lab/userhub/internal/eventbus"
	"github.com/shaharia-lab/userhub/internal/service"
	"github.com/shaharia-lab/userhub/internal/storage"
)

const sendTimeout = 30 * time.Second

// EventTest is the log event type of manually triggered test messages.
const EventTest = "notification.test"

// ErrNotConfigured is returned when no delivery provider is set up.
var ErrNotConfigured = errors.New("notification provider not configured")

// Handler receives application events and delivers notifications for the
// ones users care about. Currently that is a welcome mail on registration.
type Handler struct {
	provider Provider
	store    storage.NotificationStore
	logger   *slog.Logger
}

// NewHandler creates a new Handler. A nil provider disables delivery.
func NewHandler(provider Provider, store storage.NotificationStore, logger *slog.Logger) *Handler {
	return &Handler{provider: provider, store: store, logger: logger}
}

// Handle processes a single event. It is safe to register directly as an
// eventbus.Listener.
func (h *Handler) Handle(e eventbus.Event) {
	if h.provider == nil {
		return
	}

	msg, ok := messageFor(e)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	_ = h.deliver(ctx, e.ID, e.Type, msg)
}

// SendTest delivers a test message to a single address and records the
// attempt like any other notification.
func (h *Handler) SendTest(ctx context.Context, to string) error {
	if h.provider == nil {
		return ErrNotConfigured
	}
	msg := Message{
		Subject:  buildSubject("Test notification"),
		Greeting: "It works!",
		Body:     "This is a test notification from userhub.\nYour SMTP configuration is working correctly.",
		To:       []string{to},
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return h.deliver(ctx, "", EventTest, msg)
}

// deliver sends msg and records the outcome in the notification log.
func (h *Handler) deliver(ctx context.Context, eventID, eventType string, msg Message) error {
	sendErr := h.provider.Send(ctx, msg)

	entry := storage.NotificationLogEntry{
		EventType: eventType,
		Provider:  h.provider.Name(),
		Subject:   msg.Subject,
		Recipient: msg.To[0],
		Status:    "sent",
		CreatedAt: time.Now(),
	}
	if sendErr != nil {
		entry.Status = "failed"
		entry.ErrorMsg = sendErr.Error()
		h.logger.Warn("notification delivery failed",
			"event_id", eventID, "event_type", eventType, "error", sendErr)
	} else {
		h.logger.Info("notification sent", "event_id", eventID, "event_type", eventType)
	}

	if logErr := h.store.LogNotification(context.Background(), entry); logErr != nil {
		h.logger.Error("failed to record notification",
			"event_id", eventID, "event_type", eventType, "error", logErr)
	}
	return sendErr
}

// messageFor builds the notification for e, or reports false when e does
// not warrant one.
func messageFor(e eventbus.Event) (Message, bool) {
	switch e.Type {
	case service.EventUserCreated:
		email := e.Payload["email"]
		if email == "" {
			return Message{}, false
		}
		return Message{
			Subject:  buildSubject("Welcome aboard"),
			Greeting: fmt.Sprintf("Hello, %s!", e.Payload["name"]),
			Body:     "Your userhub account has been created.\nYou can now sign in with " + email + ".",
			To:       []string{email},
		}, true
	}
	return Message{}, false
}
