package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/userhub/internal/storage"
)

// MockUserStore is a mock implementation of storage.UserStore.
type MockUserStore struct {
	mock.Mock
}

//nolint:revive
func (m *MockUserStore) List(ctx context.Context) ([]*storage.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*storage.User), args.Error(1)
}

//nolint:revive
func (m *MockUserStore) Get(ctx context.Context, id int64) (*storage.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.User), args.Error(1)
}

//nolint:revive
func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*storage.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.User), args.Error(1)
}

//nolint:revive
func (m *MockUserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

//nolint:revive
func (m *MockUserStore) Create(ctx context.Context, u *storage.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

//nolint:revive
func (m *MockUserStore) Update(ctx context.Context, u *storage.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

//nolint:revive
func (m *MockUserStore) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

//nolint:revive
func (m *MockUserStore) SearchByName(ctx context.Context, substr string) ([]*storage.User, error) {
	args := m.Called(ctx, substr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*storage.User), args.Error(1)
}

//nolint:revive
func (m *MockUserStore) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
