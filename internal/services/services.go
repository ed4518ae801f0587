package services

import (
	"context"
	"errors"
	"time"

	"github.com/admitportal/apiserver/internal/store"
)

var (
	// ErrInvalidInput is returned for requests that fail basic validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownField is returned by CheckDuplicate for a field that is not unique.
	ErrUnknownField = errors.New("unknown field")

	// errUnchanged aborts a document update that has nothing to write.
	errUnchanged = errors.New("unchanged")
)

// unknownUserError is what Authenticate returns for a username that does not
// exist. It matches store.ErrNotFound for callers that care, but reads the
// same as a wrong password so it cannot be used to probe for usernames.
type unknownUserError struct{}

func (unknownUserError) Error() string {
	return store.ErrInvalidCredentials.Error()
}

func (unknownUserError) Is(target error) bool {
	return target == store.ErrNotFound || target == store.ErrInvalidCredentials
}

// AuditLog receives one line per completed mutation.
type AuditLog interface {
	Append(ctx context.Context, file, description string) error
}

// Option configures a service.
type Option func(*clock)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *clock) {
		c.now = now
	}
}

type clock struct {
	now func() time.Time
}

func newClock(opts []Option) clock {
	c := clock{now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
