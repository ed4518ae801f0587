package services

import (
	"context"
	"errors"
	"time"

	"github.com/admitportal/apiserver/internal/logging"
	"github.com/admitportal/apiserver/internal/store"
	"github.com/admitportal/apiserver/types"
	"github.com/google/uuid"
)

// DefaultSessionTTL is how long a login stays valid.
const DefaultSessionTTL = 24 * time.Hour

// SessionRepository defines persistence operations for sessions.
type SessionRepository interface {
	Load(ctx context.Context) store.Sessions
	Get(ctx context.Context, token string) (types.Session, error)
	Update(ctx context.Context, fn func(store.Sessions) error) (store.Sessions, error)
}

// UserLookup resolves a username to its record.
type UserLookup interface {
	Get(ctx context.Context, username string) (types.User, error)
}

// SessionService issues and validates login tokens.
type SessionService struct {
	repo  SessionRepository
	users UserLookup
	ttl   time.Duration
	log   logging.Logger
	clock
}

// NewSessionService builds a SessionService. users may be nil, in which case
// sessions are not checked against the user directory.
func NewSessionService(repo SessionRepository, users UserLookup, ttl time.Duration, log logging.Logger, opts ...Option) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if log == nil {
		log = logging.Discard()
	}
	return &SessionService{
		repo:  repo,
		users: users,
		ttl:   ttl,
		log:   log,
		clock: newClock(opts),
	}
}

// TTL returns the lifetime of new sessions.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Create starts a session for username and returns its token.
func (s *SessionService) Create(ctx context.Context, username string) (string, error) {
	token := uuid.NewString()
	now := s.now()
	_, err := s.repo.Update(ctx, func(sessions store.Sessions) error {
		sessions[token] = types.Session{
			Username:  username,
			CreatedAt: types.NewTimestamp(now),
			ExpiresAt: types.NewTimestamp(now.Add(s.ttl)),
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	s.log.Info(ctx, "session created", "username", username)
	return token, nil
}

// Validate returns the username owning token. Unknown tokens fail with
// store.ErrNotFound. Expired tokens, and tokens whose user no longer
// exists, are deleted as a side effect. A user directory that cannot be
// read fails the check without touching the session.
func (s *SessionService) Validate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", store.ErrNotFound
	}
	session, err := s.repo.Get(ctx, token)
	if err != nil {
		return "", err
	}

	if session.Expired(s.now()) {
		s.remove(ctx, token, "expired")
		return "", store.ErrSessionExpired
	}

	if s.users != nil {
		_, err := s.users.Get(ctx, session.Username)
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.remove(ctx, token, "orphaned")
			return "", store.ErrNotFound
		case err != nil:
			// the directory could not be read; keep the session
			return "", err
		}
	}
	return session.Username, nil
}

// Logout deletes token. Unknown tokens are not an error.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	_, err := s.repo.Update(ctx, func(sessions store.Sessions) error {
		delete(sessions, token)
		return nil
	})
	return err
}

// Sweep deletes every expired session and returns how many went.
func (s *SessionService) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	removed := 0
	_, err := s.repo.Update(ctx, func(sessions store.Sessions) error {
		for token, session := range sessions {
			if session.Expired(now) {
				delete(sessions, token)
				removed++
			}
		}
		if removed == 0 {
			return errUnchanged
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	s.log.Info(ctx, "expired sessions swept", "count", removed)
	return removed, nil
}

// CountActive returns the number of unexpired sessions.
func (s *SessionService) CountActive(ctx context.Context) int {
	now := s.now()
	active := 0
	for _, session := range s.repo.Load(ctx) {
		if !session.Expired(now) {
			active++
		}
	}
	return active
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *SessionService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Error(ctx, "session sweep failed", "error", err)
			}
		}
	}
}

func (s *SessionService) remove(ctx context.Context, token, reason string) {
	if err := s.Logout(ctx, token); err != nil {
		s.log.Warn(ctx, "session cleanup failed", "reason", reason, "error", err)
		return
	}
	s.log.Debug(ctx, "session removed", "reason", reason)
}
