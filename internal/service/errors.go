package service

import "fmt"

// NotFoundError is returned when no record exists with the requested id.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// ConflictError is returned when a unique field already holds the submitted
// value, e.g. a second user registering with a taken email.
type ConflictError struct {
	Resource string
	Field    string
	Value    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Resource, e.Field, e.Value)
}

// ValidationError is returned when request data fails validation. Field names
// the offending request field and is empty for whole-request failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
