package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a user, session or message does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateField matches every *DuplicateFieldError.
	ErrDuplicateField = errors.New("duplicate field")

	// ErrInvalidCredentials is returned when a username/password pair does not match.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrSessionExpired is returned when a session token is past its expiry.
	ErrSessionExpired = errors.New("session expired")

	// ErrPersistence wraps failures to read or write a document.
	ErrPersistence = errors.New("persistence failure")
)

// DuplicateFieldError reports which unique field collided with another user.
type DuplicateFieldError struct {
	Field string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("%s already in use", e.Field)
}

func (e *DuplicateFieldError) Is(target error) bool {
	return target == ErrDuplicateField
}

// persistenceError wraps a storage failure as ErrPersistence while keeping
// the cause reachable through errors.Is/As.
func persistenceError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
