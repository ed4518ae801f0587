package services

import (
	"context"
	"fmt"
	"slices"

	"github.com/admitportal/apiserver/internal/audit"
	"github.com/admitportal/apiserver/internal/docstore"
	"github.com/admitportal/apiserver/internal/store"
	"github.com/admitportal/apiserver/types"
)

// BackupDocuments are the documents an administrator may snapshot.
var BackupDocuments = []string{store.UsersDocument, store.SessionsDocument, store.MessagesDocument}

// RecentActivityLines is how much of the user change log the dashboard shows.
const RecentActivityLines = 10

// BackupStore snapshots persisted documents.
type BackupStore interface {
	Backup(ctx context.Context, name string) (string, error)
	Backups(name string) ([]docstore.BackupInfo, error)
	AllBackups() ([]docstore.BackupInfo, error)
}

// AuditReader reads back audit logs.
type AuditReader interface {
	Tail(file string, n int) ([]string, error)
}

// Stats is the admin dashboard summary.
type Stats struct {
	Applicants     int      `json:"applicants"`
	Documents      int      `json:"documents"`
	ActiveSessions int      `json:"active_sessions"`
	UnreadMessages int      `json:"unread_messages"`
	RecentActivity []string `json:"recent_activity"`
}

// AdminService backs the administrator dashboard.
type AdminService struct {
	users     *UserService
	sessions  *SessionService
	messages  *MessageService
	documents *DocumentService
	backups   BackupStore
	audit     AuditReader
}

func NewAdminService(users *UserService, sessions *SessionService, messages *MessageService, documents *DocumentService, backups BackupStore, auditLog AuditReader) *AdminService {
	return &AdminService{
		users:     users,
		sessions:  sessions,
		messages:  messages,
		documents: documents,
		backups:   backups,
		audit:     auditLog,
	}
}

// Stats gathers the dashboard counters. A failing document listing counts
// as zero documents.
func (s *AdminService) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Applicants:     len(s.users.List(ctx, types.RoleUser)),
		ActiveSessions: s.sessions.CountActive(ctx),
		UnreadMessages: s.messages.CountUnread(ctx),
		RecentActivity: []string{},
	}
	if s.documents != nil {
		if docs, err := s.documents.ListAll(ctx); err == nil {
			stats.Documents = len(docs)
		}
	}
	if s.audit != nil {
		lines, err := s.audit.Tail(audit.UserChanges, RecentActivityLines)
		if err != nil {
			return stats, err
		}
		if lines != nil {
			stats.RecentActivity = lines
		}
	}
	return stats, nil
}

// Backup snapshots one of BackupDocuments.
func (s *AdminService) Backup(ctx context.Context, name string) (string, error) {
	if !slices.Contains(BackupDocuments, name) {
		return "", fmt.Errorf("%w: document %q", store.ErrNotFound, name)
	}
	return s.backups.Backup(ctx, name)
}

// Backups lists snapshots of name, or of every document when name is empty.
func (s *AdminService) Backups(name string) ([]docstore.BackupInfo, error) {
	if name == "" {
		return s.backups.AllBackups()
	}
	return s.backups.Backups(name)
}

// AuditTail returns the last n lines of an audit log.
func (s *AdminService) AuditTail(file string, n int) ([]string, error) {
	return s.audit.Tail(file, n)
}
