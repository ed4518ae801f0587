package store

import (
	"context"

	"github.com/admitportal/apiserver/internal/docstore"
	"github.com/admitportal/apiserver/types"
)

// UsersDocument is the logical name of the users file.
const UsersDocument = "users"

// Users maps username to record.
type Users map[string]types.User

// UserRepository handles persistence for users.
type UserRepository struct {
	doc *docstore.Document[Users]
}

func NewUserRepository(s *docstore.Store) *UserRepository {
	return &UserRepository{
		doc: docstore.NewDocument(s, UsersDocument, func() Users { return Users{} }),
	}
}

// Load returns every user, keyed by username. Read failures yield an empty set.
func (r *UserRepository) Load(ctx context.Context) Users {
	return r.doc.Load(ctx)
}

// Get returns one user. An unreadable users file fails with ErrPersistence
// rather than ErrNotFound, so callers never mistake it for a deleted user.
func (r *UserRepository) Get(ctx context.Context, username string) (types.User, error) {
	users, err := r.doc.Read(ctx)
	if err != nil {
		return types.User{}, persistenceError(err)
	}
	user, ok := users[username]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

// Update runs fn on the current users under the write lock and persists the
// result. Errors from fn are returned as-is and nothing is written.
func (r *UserRepository) Update(ctx context.Context, fn func(Users) error) (Users, error) {
	var fnErr error
	users, err := r.doc.Update(ctx, func(users Users) (Users, error) {
		if users == nil {
			users = Users{}
		}
		if fnErr = fn(users); fnErr != nil {
			return nil, fnErr
		}
		return users, nil
	})
	if fnErr != nil {
		return nil, fnErr
	}
	if err != nil {
		return nil, persistenceError(err)
	}
	return users, nil
}
