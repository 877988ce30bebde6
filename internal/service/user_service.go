// Package service implements the business logic layer between HTTP handlers
// and the storage package. All interfaces are designed for easy mocking
// in tests.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"

	"github.com/shaharia-lab/userhub/internal/storage"
)

// User lifecycle event types.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// EventPublisher receives the user lifecycle events above, with the user's
// id, name and email as payload. eventbus.Bus satisfies it.
type EventPublisher interface {
	Publish(eventType string, payload map[string]string)
}

// UserService defines the business logic interface for managing users.
type UserService interface {
	// List returns all users.
	List(ctx context.Context) ([]*storage.User, error)

	// Get returns the user identified by id, or nil if not found.
	Get(ctx context.Context, id int64) (*storage.User, error)

	// GetByEmail returns the user with the given email, or nil if not found.
	GetByEmail(ctx context.Context, email string) (*storage.User, error)

	// Create validates and persists a new user. Emails must be unique.
	Create(ctx context.Context, user *storage.User) (*storage.User, error)

	// Update replaces name and email of an existing user.
	Update(ctx context.Context, id int64, user *storage.User) (*storage.User, error)

	// Delete removes a user by id. Returns a NotFoundError if absent.
	Delete(ctx context.Context, id int64) error

	// Search returns users whose name contains the given text.
	Search(ctx context.Context, name string) ([]*storage.User, error)

	// Count returns the number of registered users.
	Count(ctx context.Context) (int64, error)
}

// userService is the default implementation of UserService.
type userService struct {
	repo      storage.UserStore
	publisher EventPublisher
	logger    *slog.Logger
}

// NewUserService returns a new UserService backed by the given UserStore.
// publisher may be nil, in which case no events are emitted.
func NewUserService(repo storage.UserStore, publisher EventPublisher, logger *slog.Logger) UserService {
	return &userService{repo: repo, publisher: publisher, logger: logger}
}

func (s *userService) List(ctx context.Context) ([]*storage.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

func (s *userService) Get(ctx context.Context, id int64) (*storage.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting user %d: %w", id, err)
	}
	return user, nil
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*storage.User, error) {
	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return user, nil
}

func (s *userService) Create(ctx context.Context, user *storage.User) (*storage.User, error) {
	if err := normalize(user); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByEmail(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("checking email uniqueness: %w", err)
	}
	if exists {
		return nil, &ConflictError{Resource: "user", Field: "email", Value: user.Email}
	}

	if err := s.repo.Create(ctx, user); err != nil {
		// Lost a race with a concurrent create of the same email.
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return nil, &ConflictError{Resource: "user", Field: "email", Value: user.Email}
		}
		return nil, fmt.Errorf("saving user: %w", err)
	}

	s.logger.Info("user created", "id", user.ID)
	s.publish(EventUserCreated, user)
	return user, nil
}

func (s *userService) Update(ctx context.Context, id int64, user *storage.User) (*storage.User, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if existing == nil {
		return nil, &NotFoundError{Resource: "user", ID: id}
	}

	if err := normalize(user); err != nil {
		return nil, err
	}

	if user.Email != existing.Email {
		owner, err := s.repo.GetByEmail(ctx, user.Email)
		if err != nil {
			return nil, fmt.Errorf("checking email uniqueness: %w", err)
		}
		if owner != nil && owner.ID != id {
			return nil, &ConflictError{Resource: "user", Field: "email", Value: user.Email}
		}
	}

	// The id is the stable identifier; it cannot be changed via an update.
	user.ID = id
	user.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicateEmail):
			return nil, &ConflictError{Resource: "user", Field: "email", Value: user.Email}
		case errors.Is(err, storage.ErrUserNotFound):
			return nil, &NotFoundError{Resource: "user", ID: id}
		}
		return nil, fmt.Errorf("saving user: %w", err)
	}

	s.logger.Info("user updated", "id", id)
	s.publish(EventUserUpdated, user)
	return user, nil
}

func (s *userService) Delete(ctx context.Context, id int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}
	if existing == nil {
		return &NotFoundError{Resource: "user", ID: id}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return &NotFoundError{Resource: "user", ID: id}
		}
		return fmt.Errorf("deleting user %d: %w", id, err)
	}

	s.logger.Info("user deleted", "id", id)
	s.publish(EventUserDeleted, existing)
	return nil
}

func (s *userService) Search(ctx context.Context, name string) ([]*storage.User, error) {
	users, err := s.repo.SearchByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	return users, nil
}

func (s *userService) Count(ctx context.Context) (int64, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

func (s *userService) publish(eventType string, u *storage.User) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(eventType, map[string]string{
		"id":    strconv.FormatInt(u.ID, 10),
		"name":  u.Name,
		"email": u.Email,
	})
}

// normalize trims user fields in place and validates them.
func normalize(u *storage.User) error {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(u.Email)

	if u.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if u.Email == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	addr, err := mail.ParseAddress(u.Email)
	if err != nil || addr.Address != u.Email {
		return &ValidationError{Field: "email", Message: fmt.Sprintf("invalid email address %q", u.Email)}
	}
	return nil
}
