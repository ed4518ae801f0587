package services

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/admitportal/apiserver/internal/audit"
	"github.com/admitportal/apiserver/internal/credential"
	"github.com/admitportal/apiserver/internal/docstore"
	"github.com/admitportal/apiserver/internal/storage"
	"github.com/admitportal/apiserver/internal/store"
	"github.com/admitportal/apiserver/types"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store     *docstore.Store
	audit     *audit.Log
	clock     *fakeClock
	events    *recordingPublisher
	userRepo  *store.UserRepository
	users     *UserService
	sessions  *SessionService
	messages  *MessageService
	documents *DocumentService
	admin     *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	clock := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local)}
	ds, err := docstore.New(docstore.Options{Dir: dir, Now: clock.Now})
	require.NoError(t, err)
	auditLog, err := audit.New(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	vault, err := credential.NewVault("sha256")
	require.NoError(t, err)
	objects, err := storage.NewLocalClient(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	require.NoError(t, objects.EnsureBucket(context.Background()))

	f := &fixture{
		store:    ds,
		audit:    auditLog,
		clock:    clock,
		events:   &recordingPublisher{},
		userRepo: store.NewUserRepository(ds),
	}
	opt := WithClock(clock.Now)
	f.users = NewUserService(f.userRepo, vault, auditLog, nil, opt)
	f.sessions = NewSessionService(store.NewSessionRepository(ds), f.users, 24*time.Hour, nil, opt)
	f.messages = NewMessageService(store.NewMessageRepository(ds), auditLog, f.events, nil, opt)
	f.documents = NewDocumentService(storage.NewStorage(objects), f.users, auditLog, f.events, nil, opt)
	f.admin = NewAdminService(f.users, f.sessions, f.messages, f.documents, ds, auditLog)
	return f
}

func (f *fixture) auditLines(t *testing.T, file string) []string {
	t.Helper()
	lines, err := f.audit.Tail(file, 100)
	require.NoError(t, err)
	return lines
}

// withCheckDigit completes a 12-digit prefix into a valid citizen id.
func withCheckDigit(prefix string) string {
	sum := 0
	for i := 0; i < 12; i++ {
		sum += int(prefix[i]-'0') * (13 - i)
	}
	return prefix + strconv.Itoa((11-sum%11)%10)
}

func applicant(username, email, phone, citizenID string) types.User {
	return types.User{
		Username:  username,
		Email:     email,
		Phone:     phone,
		CitizenID: citizenID,
		Title:     "นาย",
		FirstName: "สมชาย",
		LastName:  "ใจดี",
		GPAX:      3.5,
	}
}

func register(t *testing.T, f *fixture, u types.User) types.User {
	t.Helper()
	created, err := f.users.Register(context.Background(), u, "secret1")
	require.NoError(t, err)
	return created
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
