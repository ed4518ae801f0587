package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/admitportal/apiserver/internal/audit"
	"github.com/admitportal/apiserver/internal/logging"
	"github.com/admitportal/apiserver/internal/storage"
	"github.com/admitportal/apiserver/types"
)

// MaxDocumentSize is the largest accepted upload, per file.
const MaxDocumentSize = 200 << 20

// AllowedExtensions are the accepted upload file types.
var AllowedExtensions = []string{".pdf", ".jpg", ".jpeg", ".png"}

var (
	// ErrDocumentTooLarge is returned for uploads over MaxDocumentSize.
	ErrDocumentTooLarge = errors.New("document exceeds 200MB")

	// ErrUnsupportedType is returned for unknown document types and file extensions.
	ErrUnsupportedType = errors.New("unsupported document type")
)

// ObjectStore holds uploaded document bytes.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
}

// DocumentService stores applicant admission documents.
type DocumentService struct {
	objects ObjectStore
	users   UserLookup
	audit   AuditLog
	events  EventPublisher
	log     logging.Logger
	clock
}

func NewDocumentService(objects ObjectStore, users UserLookup, auditLog AuditLog, events EventPublisher, log logging.Logger, opts ...Option) *DocumentService {
	if log == nil {
		log = logging.Discard()
	}
	return &DocumentService{
		objects: objects,
		users:   users,
		audit:   auditLog,
		events:  events,
		log:     log,
		clock:   newClock(opts),
	}
}

// DocumentKey names the object for one of user's documents. Uploading the
// same type again replaces the earlier file only when the extension matches.
func DocumentKey(user types.User, docType, ext string) string {
	name := strings.ReplaceAll(fmt.Sprintf("%s-%s", user.FirstName, user.LastName), " ", "-")
	return fmt.Sprintf("%s_%s_%s%s", user.CitizenID, name, docType, strings.ToLower(ext))
}

// ParseDocumentKey recovers the citizen id and document type from a key.
// Keys that do not follow the convention yield "unknown" parts.
func ParseDocumentKey(key string) (citizenID, docType string) {
	citizenID, docType = "unknown", "unknown"
	stem := strings.TrimSuffix(key, filepath.Ext(key))
	first := strings.Index(stem, "_")
	if first <= 0 {
		return citizenID, docType
	}
	citizenID = stem[:first]

	rest := stem[first+1:]
	second := strings.Index(rest, "_")
	if second < 0 || second == len(rest)-1 {
		return citizenID, docType
	}
	if t := rest[second+1:]; isDocumentType(t) {
		docType = t
	}
	return citizenID, docType
}

// Upload stores one document for username.
func (s *DocumentService) Upload(ctx context.Context, username, docType, filename string, r io.Reader, size int64, contentType string) (types.Document, error) {
	if !isDocumentType(docType) {
		return types.Document{}, fmt.Errorf("%w: %q", ErrUnsupportedType, docType)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(AllowedExtensions, ext) {
		return types.Document{}, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	if size > MaxDocumentSize {
		return types.Document{}, ErrDocumentTooLarge
	}

	user, err := s.users.Get(ctx, username)
	if err != nil {
		return types.Document{}, err
	}
	if user.CitizenID == "" {
		return types.Document{}, fmt.Errorf("%w: citizen_id required to upload", ErrInvalidInput)
	}

	key := DocumentKey(user, docType, ext)
	if err := s.objects.Put(ctx, key, r, size, contentType); err != nil {
		return types.Document{}, fmt.Errorf("storing %s: %w", key, err)
	}

	now := s.now()
	if s.audit != nil {
		if err := s.audit.Append(ctx, audit.UserChanges, fmt.Sprintf("File uploaded by %s: %s", username, key)); err != nil {
			s.log.Warn(ctx, "audit append failed", "file", audit.UserChanges, "error", err)
		}
	}
	publish(ctx, s.events, s.log, Event{
		Type:     EventDocumentUploaded,
		Username: username,
		ID:       key,
		Subject:  docType,
		At:       types.NewTimestamp(now),
	})

	return types.Document{
		Key:         key,
		CitizenID:   user.CitizenID,
		DocType:     docType,
		Size:        size,
		ContentType: contentType,
		Modified:    now,
	}, nil
}

// ListForUser returns the documents uploaded by username.
func (s *DocumentService) ListForUser(ctx context.Context, username string) ([]types.Document, error) {
	user, err := s.users.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	if user.CitizenID == "" {
		return []types.Document{}, nil
	}
	return s.list(ctx, user.CitizenID+"_")
}

// ListAll returns every stored document.
func (s *DocumentService) ListAll(ctx context.Context) ([]types.Document, error) {
	return s.list(ctx, "")
}

// Open returns the content of key. Callers close the reader.
func (s *DocumentService) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.objects.Get(ctx, key)
}

// Delete removes the document key on behalf of actor. A key that is not
// stored returns storage.ErrObjectNotFound.
func (s *DocumentService) Delete(ctx context.Context, actor, key string) error {
	objects, err := s.objects.List(ctx, key)
	if err != nil {
		return err
	}
	if !slices.ContainsFunc(objects, func(o storage.ObjectInfo) bool { return o.Key == key }) {
		return storage.ErrObjectNotFound
	}
	if err := s.objects.Delete(ctx, key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}

	if s.audit != nil {
		if err := s.audit.Append(ctx, audit.UserChanges, fmt.Sprintf("File deleted by %s: %s", actor, key)); err != nil {
			s.log.Warn(ctx, "audit append failed", "file", audit.UserChanges, "error", err)
		}
	}
	return nil
}

// Owns reports whether key belongs to username.
func (s *DocumentService) Owns(ctx context.Context, username, key string) bool {
	user, err := s.users.Get(ctx, username)
	if err != nil || user.CitizenID == "" {
		return false
	}
	return strings.HasPrefix(key, user.CitizenID+"_")
}

func (s *DocumentService) list(ctx context.Context, prefix string) ([]types.Document, error) {
	objects, err := s.objects.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	docs := make([]types.Document, 0, len(objects))
	for _, obj := range objects {
		citizenID, docType := ParseDocumentKey(obj.Key)
		docs = append(docs, types.Document{
			Key:         obj.Key,
			CitizenID:   citizenID,
			DocType:     docType,
			Size:        obj.Size,
			ContentType: obj.ContentType,
			Modified:    obj.LastModified,
		})
	}
	return docs, nil
}

func isDocumentType(t string) bool {
	return slices.Contains(types.RequiredDocuments, t) || slices.Contains(types.OptionalDocuments, t)
}
