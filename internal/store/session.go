package store

import (
	"context"

	"github.com/admitportal/apiserver/internal/docstore"
	"github.com/admitportal/apiserver/types"
)

const SessionsDocument = "sessions"

// Sessions maps token to session.
type Sessions map[string]types.Session

// SessionRepository handles persistence for sessions.
type SessionRepository struct {
	doc *docstore.Document[Sessions]
}

func NewSessionRepository(s *docstore.Store) *SessionRepository {
	return &SessionRepository{
		doc: docstore.NewDocument(s, SessionsDocument, func() Sessions { return Sessions{} }),
	}
}

func (r *SessionRepository) Load(ctx context.Context) Sessions {
	return r.doc.Load(ctx)
}

func (r *SessionRepository) Get(ctx context.Context, token string) (types.Session, error) {
	session, ok := r.doc.Load(ctx)[token]
	if !ok {
		return types.Session{}, ErrNotFound
	}
	return session, nil
}

func (r *SessionRepository) Update(ctx context.Context, fn func(Sessions) error) (Sessions, error) {
	var fnErr error
	sessions, err := r.doc.Update(ctx, func(sessions Sessions) (Sessions, error) {
		if sessions == nil {
			sessions = Sessions{}
		}
		if fnErr = fn(sessions); fnErr != nil {
			return nil, fnErr
		}
		return sessions, nil
	})
	if fnErr != nil {
		return nil, fnErr
	}
	if err != nil {
		return nil, persistenceError(err)
	}
	return sessions, nil
}
