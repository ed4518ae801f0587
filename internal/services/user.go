package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/admitportal/apiserver/internal/audit"
	"github.com/admitportal/apiserver/internal/logging"
	"github.com/admitportal/apiserver/internal/store"
	"github.com/admitportal/apiserver/types"
)

// UniqueFields are the user attributes no two records may share, in the
// order they are checked.
var UniqueFields = []string{"username", "email", "phone", "citizen_id"}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Load(ctx context.Context) store.Users
	Get(ctx context.Context, username string) (types.User, error)
	Update(ctx context.Context, fn func(store.Users) error) (store.Users, error)
}

// PasswordHasher turns plaintext passwords into stored digests.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
	NeedsRehash(digest string) bool
}

// AdminSeed is the administrator created on first run.
type AdminSeed struct {
	Username  string
	Password  string
	Email     string
	Phone     string
	CitizenID string
	FirstName string
	LastName  string
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo   UserRepository
	hasher PasswordHasher
	audit  AuditLog
	log    logging.Logger
	clock
}

func NewUserService(repo UserRepository, hasher PasswordHasher, auditLog AuditLog, log logging.Logger, opts ...Option) *UserService {
	if log == nil {
		log = logging.Discard()
	}
	return &UserService{
		repo:   repo,
		hasher: hasher,
		audit:  auditLog,
		log:    log,
		clock:  newClock(opts),
	}
}

// CheckDuplicate reports whether any user other than exclude already has
// value in field. Field must be one of UniqueFields.
func (s *UserService) CheckDuplicate(ctx context.Context, field, value, exclude string) (bool, error) {
	return hasDuplicate(s.repo.Load(ctx), field, value, exclude)
}

// Register creates a self-registered applicant. The record always gets the
// user role; the password is stored as a digest. Unique fields are checked
// in UniqueFields order and the first collision is reported.
func (s *UserService) Register(ctx context.Context, user types.User, password string) (types.User, error) {
	if err := requireFields(map[string]string{
		"username":   user.Username,
		"password":   password,
		"email":      user.Email,
		"phone":      user.Phone,
		"citizen_id": user.CitizenID,
	}); err != nil {
		return types.User{}, err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return types.User{}, err
	}

	user.Password = digest
	user.Role = types.RoleUser
	user.CreatedAt = types.NewTimestamp(s.now())
	user.UpdatedAt = user.CreatedAt

	_, err = s.repo.Update(ctx, func(users store.Users) error {
		for _, field := range UniqueFields {
			value, _ := fieldValue(user.Username, user, field)
			if dup, _ := hasDuplicate(users, field, value, ""); dup {
				return &store.DuplicateFieldError{Field: field}
			}
		}
		users[user.Username] = user
		return nil
	})
	if err != nil {
		return types.User{}, err
	}

	s.record(ctx, audit.UserChanges, fmt.Sprintf("User registered: %s", user.Username))
	s.log.Info(ctx, "user registered", "username", user.Username)
	return user, nil
}

// Authenticate checks a username/password pair. Unknown usernames and wrong
// passwords both fail with store.ErrInvalidCredentials. A digest made with
// an outdated scheme is replaced after a successful check.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	user, err := s.repo.Get(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, unknownUserError{}
		}
		return types.User{}, err
	}
	if !s.hasher.Verify(password, user.Password) {
		return types.User{}, store.ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.Password) {
		if rehashed, err := s.rehash(ctx, user, password); err != nil {
			s.log.Warn(ctx, "password rehash failed", "username", username, "error", err)
		} else {
			user = rehashed
		}
	}
	return user, nil
}

func (s *UserService) rehash(ctx context.Context, user types.User, password string) (types.User, error) {
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return user, err
	}
	users, err := s.repo.Update(ctx, func(users store.Users) error {
		current, ok := users[user.Username]
		if !ok || current.Password != user.Password {
			return errUnchanged
		}
		current.Password = digest
		users[user.Username] = current
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return user, nil
	}
	if err != nil {
		return user, err
	}
	s.log.Info(ctx, "password rehashed", "username", user.Username)
	return users[user.Username], nil
}

// Get returns a user by username.
func (s *UserService) Get(ctx context.Context, username string) (types.User, error) {
	return s.repo.Get(ctx, username)
}

// List returns users sorted by username. An empty role lists everyone.
func (s *UserService) List(ctx context.Context, role string) []types.User {
	users := s.repo.Load(ctx)
	list := make([]types.User, 0, len(users))
	for _, user := range users {
		if role == "" || user.Role == role {
			list = append(list, user)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Username < list[j].Username })
	return list
}

// Update applies patch to an existing user. Changing email, phone or
// citizen_id to a value another user holds fails with a DuplicateFieldError.
// A patched password is stored as given and must already be a digest.
// Changed fields other than the password are written to the profile log.
func (s *UserService) Update(ctx context.Context, username string, patch types.UserPatch) (types.User, error) {
	if patch.Role != nil && *patch.Role != types.RoleAdmin && *patch.Role != types.RoleUser {
		return types.User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, *patch.Role)
	}
	if patch.Password != nil && *patch.Password == "" {
		return types.User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	var (
		updated types.User
		changes []string
	)
	_, err := s.repo.Update(ctx, func(users store.Users) error {
		current, ok := users[username]
		if !ok {
			return store.ErrNotFound
		}

		for _, candidate := range []struct {
			field string
			value *string
			old   string
		}{
			{"email", patch.Email, current.Email},
			{"phone", patch.Phone, current.Phone},
			{"citizen_id", patch.CitizenID, current.CitizenID},
		} {
			if candidate.value == nil || *candidate.value == candidate.old {
				continue
			}
			if strings.TrimSpace(*candidate.value) == "" {
				return fmt.Errorf("%w: %s is required", ErrInvalidInput, candidate.field)
			}
			if dup, _ := hasDuplicate(users, candidate.field, *candidate.value, username); dup {
				return &store.DuplicateFieldError{Field: candidate.field}
			}
		}

		next, diff := applyPatch(current, patch)
		next.UpdatedAt = types.NewTimestamp(s.now())
		users[username] = next
		updated, changes = next, diff
		return nil
	})
	if err != nil {
		return types.User{}, err
	}

	if len(changes) > 0 {
		s.record(ctx, audit.ProfileChanges, fmt.Sprintf("Profile updated for %s: %s", username, strings.Join(changes, "; ")))
	}
	return updated, nil
}

// Delete removes a user record.
func (s *UserService) Delete(ctx context.Context, username string) error {
	_, err := s.repo.Update(ctx, func(users store.Users) error {
		if _, ok := users[username]; !ok {
			return store.ErrNotFound
		}
		delete(users, username)
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, audit.UserChanges, fmt.Sprintf("User deleted: %s", username))
	return nil
}

// EnsureDefaultAdmin creates the seed administrator when no user has the
// admin role. It reports whether a record was written.
func (s *UserService) EnsureDefaultAdmin(ctx context.Context, seed AdminSeed) (bool, error) {
	if err := requireFields(map[string]string{
		"admin username": seed.Username,
		"admin password": seed.Password,
	}); err != nil {
		return false, err
	}

	digest, err := s.hasher.Hash(seed.Password)
	if err != nil {
		return false, err
	}
	admin := types.User{
		Username:  seed.Username,
		Password:  digest,
		Role:      types.RoleAdmin,
		Email:     seed.Email,
		Phone:     seed.Phone,
		CitizenID: seed.CitizenID,
		FirstName: seed.FirstName,
		LastName:  seed.LastName,
		CreatedAt: types.NewTimestamp(s.now()),
	}

	_, err = s.repo.Update(ctx, func(users store.Users) error {
		for _, user := range users {
			if user.Role == types.RoleAdmin {
				return errUnchanged
			}
		}
		for _, field := range UniqueFields {
			value, _ := fieldValue(admin.Username, admin, field)
			if value == "" {
				continue
			}
			if dup, _ := hasDuplicate(users, field, value, ""); dup {
				return &store.DuplicateFieldError{Field: field}
			}
		}
		users[admin.Username] = admin
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.record(ctx, audit.UserChanges, fmt.Sprintf("User registered: %s", admin.Username))
	s.log.Info(ctx, "default admin created", "username", admin.Username)
	return true, nil
}

// record appends to the audit log. The mutation has already been persisted,
// so a failed append is only logged.
func (s *UserService) record(ctx context.Context, file, line string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, file, line); err != nil {
		s.log.Warn(ctx, "audit append failed", "file", file, "error", err)
	}
}

func hasDuplicate(users store.Users, field, value, exclude string) (bool, error) {
	if !isUniqueField(field) {
		return false, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	for username, user := range users {
		if username == exclude {
			continue
		}
		if current, _ := fieldValue(username, user, field); current == value {
			return true, nil
		}
	}
	return false, nil
}

func isUniqueField(field string) bool {
	for _, f := range UniqueFields {
		if f == field {
			return true
		}
	}
	return false
}

func fieldValue(username string, user types.User, field string) (string, bool) {
	switch field {
	case "username":
		return username, true
	case "email":
		return user.Email, true
	case "phone":
		return user.Phone, true
	case "citizen_id":
		return user.CitizenID, true
	}
	return "", false
}

func requireFields(fields map[string]string) error {
	var missing []string
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s required", ErrInvalidInput, strings.Join(missing, ", "))
}
