package storage

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateEmail is returned when a write would give two users the same email.
var ErrDuplicateEmail = errors.New("email already in use")

// ErrUserNotFound is returned by Update and Delete when no user has the given id.
var ErrUserNotFound = errors.New("user not found")

// User is a registered user.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserStore defines the interface for user persistence.
type UserStore interface {
	// List returns all users ordered by id.
	List(ctx context.Context) ([]*User, error)
	// Get returns the user with the given id, or nil if none exists.
	Get(ctx context.Context, id int64) (*User, error)
	// GetByEmail returns the user with the given email, or nil if none exists.
	GetByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// Create inserts u and fills in its ID and timestamps.
	Create(ctx context.Context, u *User) error
	// Update replaces the name and email of the user identified by u.ID.
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id int64) error
	// SearchByName returns users whose name contains substr (case-sensitive).
	SearchByName(ctx context.Context, substr string) ([]*User, error)
	Count(ctx context.Context) (int64, error)
}
