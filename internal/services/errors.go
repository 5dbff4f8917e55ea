package services

import (
	"errors"

	"taskboard/internal/repositories"
)

var (
	// ErrInvalidStatus marks a status value outside todo, in-progress, done.
	ErrInvalidStatus = errors.New("invalid status")
	ErrNotFound      = repositories.ErrNotFound
)

// ValidationError rejects a mutation before it reaches the store.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStoreError reports whether err came from the persistence layer.
func IsStoreError(err error) bool {
	var se *repositories.StoreError
	return errors.As(err, &se)
}
