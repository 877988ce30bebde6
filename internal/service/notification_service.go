package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/shaharia-lab/userhub/internal/storage"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// NotificationStatus describes the configured delivery channel. Credentials
// are never included.
type NotificationStatus struct {
	Enabled  bool   `json:"enabled"`
	Provider string `json:"provider,omitempty"`
	Host     string `json:"host,omitempty"`
	From     string `json:"from,omitempty"`
}

// NotificationTester delivers a test notification to a single address.
type NotificationTester interface {
	SendTest(ctx context.Context, to string) error
}

// NotificationService exposes notification configuration and delivery history.
type NotificationService interface {
	// Status returns the current delivery configuration.
	Status() NotificationStatus
	// SendTest sends a test notification to the given address.
	SendTest(ctx context.Context, to string) error
	// ListLog returns the most recent notification log entries.
	ListLog(ctx context.Context, limit int) ([]storage.NotificationLogEntry, error)
}

// notificationServiceImpl implements NotificationService.
type notificationServiceImpl struct {
	status NotificationStatus
	tester NotificationTester
	store  storage.NotificationStore
}

// NewNotificationService creates a new NotificationService. tester may be nil
// when delivery is not configured.
func NewNotificationService(
	status NotificationStatus,
	tester NotificationTester,
	store storage.NotificationStore,
) NotificationService {
	return &notificationServiceImpl{
		status: status,
		tester: tester,
		store:  store,
	}
}

func (s *notificationServiceImpl) Status() NotificationStatus {
	return s.status
}

// SendTest validates the recipient and sends a test message. It fails with a
// ValidationError when notifications are not configured.
func (s *notificationServiceImpl) SendTest(ctx context.Context, to string) error {
	if !s.status.Enabled || s.tester == nil {
		return &ValidationError{Message: "email notifications are not configured"}
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return &ValidationError{Field: "to", Message: "recipient is required"}
	}
	if addr, err := mail.ParseAddress(to); err != nil || addr.Address != to {
		return &ValidationError{Field: "to", Message: fmt.Sprintf("invalid email address %q", to)}
	}
	if err := s.tester.SendTest(ctx, to); err != nil {
		return fmt.Errorf("sending test notification: %w", err)
	}
	return nil
}

// ListLog returns the most recent notification log entries. Non-positive
// limits use the default; large ones are capped.
func (s *notificationServiceImpl) ListLog(ctx context.Context, limit int) ([]storage.NotificationLogEntry, error) {
	switch {
	case limit <= 0:
		limit = defaultLogLimit
	case limit > maxLogLimit:
		limit = maxLogLimit
	}
	entries, err := s.store.ListNotifications(ctx, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []storage.NotificationLogEntry{}
	}
	return entries, nil
}
