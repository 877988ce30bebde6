package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/userhub/internal/service"
	"github.com/shaharia-lab/userhub/internal/storage"
)

// MockNotificationService is a mock implementation of service.NotificationService.
type MockNotificationService struct {
	mock.Mock
}

//nolint:revive
func (m *MockNotificationService) Status() service.NotificationStatus {
	args := m.Called()
	return args.Get(0).(service.NotificationStatus)
}

//nolint:revive
func (m *MockNotificationService) SendTest(ctx context.Context, to string) error {
	args := m.Called(ctx, to)
	return args.Error(0)
}

//nolint:revive
func (m *MockNotificationService) ListLog(ctx context.Context, limit int) ([]storage.NotificationLogEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.NotificationLogEntry), args.Error(1)
}
