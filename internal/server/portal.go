package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/admitportal/apiserver/config"
	"github.com/admitportal/apiserver/internal/audit"
	"github.com/admitportal/apiserver/internal/credential"
	"github.com/admitportal/apiserver/internal/docstore"
	"github.com/admitportal/apiserver/internal/logging"
	"github.com/admitportal/apiserver/internal/mq"
	"github.com/admitportal/apiserver/internal/services"
	"github.com/admitportal/apiserver/internal/storage"
	"github.com/admitportal/apiserver/internal/store"
)

// Portal holds the wired services shared by the HTTP server and the CLI.
type Portal struct {
	Config config.Config
	Log    logging.Logger

	Store     *docstore.Store
	Vault     *credential.Vault
	Audit     *audit.Log
	Users     *services.UserService
	Sessions  *services.SessionService
	Messages  *services.MessageService
	Documents *services.DocumentService
	Admin     *services.AdminService
	Events    *services.Notifier

	queue *mq.MQ
}

// NewPortal opens the data directory, object storage and broker named in
// cfg. Relative backup, log and upload directories are resolved against the
// data directory.
func NewPortal(ctx context.Context, cfg config.Config, log logging.Logger) (*Portal, error) {
	if log == nil {
		log = logging.Discard()
	}
	dataDir := cfg.Data.Dir
	if dataDir == "" {
		dataDir = "."
	}
	cfg.Data.BackupDir = resolve(dataDir, cfg.Data.BackupDir, "backups")
	cfg.Data.LogDir = resolve(dataDir, cfg.Data.LogDir, "logs")
	cfg.Storage.LocalDir = resolve(dataDir, cfg.Storage.LocalDir, "uploaded_documents")

	// One lock for every document: a user write and a session write never
	// interleave, matching a single-writer file layout.
	lock := &sync.Mutex{}
	ds, err := docstore.New(docstore.Options{
		Dir:        dataDir,
		BackupDir:  cfg.Data.BackupDir,
		MaxBackups: cfg.Data.MaxBackups,
		Lock:       lock,
		Logger:     log.With("component", "docstore"),
	})
	if err != nil {
		return nil, err
	}

	auditLog, err := audit.New(cfg.Data.LogDir)
	if err != nil {
		return nil, err
	}

	vault, err := credential.NewVault(cfg.Auth.PasswordScheme)
	if err != nil {
		return nil, err
	}

	objects, err := storage.FromConfig(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	queue, err := mq.FromConfig(ctx, cfg.MQ)
	if err != nil {
		return nil, err
	}
	notifier := services.NewNotifier(queue, cfg.MQ.Channel, log.With("component", "events"))

	if cfg.Auth.DownloadSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.Auth.DownloadSecret = secret
		log.Warn(ctx, "DOWNLOAD_LINK_SECRET not set; download links will not survive a restart")
	}

	userRepo := store.NewUserRepository(ds)
	p := &Portal{
		Config: cfg,
		Log:    log,
		Store:  ds,
		Audit:  auditLog,
		Vault:  vault,
		Events: notifier,
		queue:  queue,
	}
	p.Users = services.NewUserService(userRepo, vault, auditLog, log.With("component", "users"))
	p.Sessions = services.NewSessionService(store.NewSessionRepository(ds), userRepo, cfg.Session.TTL, log.With("component", "sessions"))
	p.Messages = services.NewMessageService(store.NewMessageRepository(ds), auditLog, notifier, log.With("component", "messages"))
	p.Documents = services.NewDocumentService(objects, userRepo, auditLog, notifier, log.With("component", "documents"))
	p.Admin = services.NewAdminService(p.Users, p.Sessions, p.Messages, p.Documents, ds, auditLog)
	return p, nil
}

// SeedAdmin creates the configured administrator if there is none.
func (p *Portal) SeedAdmin(ctx context.Context) (bool, error) {
	admin := p.Config.Admin
	return p.Users.EnsureDefaultAdmin(ctx, services.AdminSeed{
		Username:  admin.Username,
		Password:  admin.Password,
		Email:     admin.Email,
		Phone:     admin.Phone,
		CitizenID: admin.CitizenID,
		FirstName: admin.FirstName,
		LastName:  admin.LastName,
	})
}

// RunEventLog consumes portal events and writes each one to the log until
// ctx is done.
func (p *Portal) RunEventLog(ctx context.Context) {
	if err := p.Events.Consume(ctx, services.LogEvent(p.Log.With("component", "event-log"))); err != nil {
		p.Log.Error(ctx, "event consumer stopped", "error", err)
	}
}

// Close releases the broker connection.
func (p *Portal) Close() error {
	if p.queue == nil {
		return nil
	}
	return p.queue.Close()
}

func resolve(base, dir, fallback string) string {
	if dir == "" {
		dir = fallback
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(base, dir)
}

func randomSecret() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generating download secret: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}
