package types

import "time"

// Session maps an opaque token to a username until ExpiresAt.
// The token itself is the key of the sessions document.
type Session struct {
	// Username refers to a User. The reference is weak: deleting the user
	// does not delete its sessions.
	Username string `json:"username"`

	CreatedAt Timestamp `json:"created_at"`

	// ExpiresAt is fixed at creation; access does not extend it.
	ExpiresAt Timestamp `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
// A session is still valid at exactly ExpiresAt.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt.Time)
}
