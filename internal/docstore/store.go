// Package docstore persists small JSON documents on the local filesystem.
//
// Each document is a single file; the whole file is the unit of atomicity.
// Writes go to a temp file in the same directory and are renamed over the
// target, so readers only ever see a complete document. Every write across
// every document in a Store is serialized by one shared lock, and the prior
// content is copied to a timestamped backup before it is replaced.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/admitportal/apiserver/internal/logging"
)

const (
	DefaultMaxBackups = 5

	documentExt      = ".json"
	backupTimeLayout = "20060102_150405"
)

var (
	// ErrNoDocument is returned by Backup when the document has never been saved.
	ErrNoDocument = errors.New("document does not exist")

	// ErrInvalidName is returned for names that are not plain file stems.
	ErrInvalidName = errors.New("invalid document name")
)

var (
	namePattern   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
	backupPattern = regexp.MustCompile(`^(.+)_(\d{8}_\d{6})\.json$`)
)

// Options configures a Store.
type Options struct {
	// Dir holds the documents, one <name>.json file each.
	Dir string

	// BackupDir receives <name>_<YYYYMMDD_HHMMSS>.json snapshots.
	BackupDir string

	// MaxBackups is the number of snapshots kept per document. Zero means
	// DefaultMaxBackups.
	MaxBackups int

	// Lock serializes all writes. Pass the process-wide handle so every
	// Store sharing the data directory contends on the same lock. A new
	// mutex is created when nil.
	Lock sync.Locker

	Logger logging.Logger

	// Now is the clock used for backup names; defaults to time.Now.
	Now func() time.Time
}

// Store reads and writes named JSON documents.
type Store struct {
	dir        string
	backupDir  string
	maxBackups int
	lock       sync.Locker
	log        logging.Logger
	now        func() time.Time

	// beforeRename runs after the temp file is complete and before it
	// replaces the target. Tests use it to fail or inspect a save mid-way.
	beforeRename func(tmpPath string) error
}

// BackupInfo describes one backup snapshot.
type BackupInfo struct {
	File      string    `json:"file"`
	Document  string    `json:"document"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
}

// New constructs a Store and creates its directories.
func New(opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, errors.New("docstore: dir is required")
	}
	backupDir := opts.BackupDir
	if strings.TrimSpace(backupDir) == "" {
		backupDir = filepath.Join(opts.Dir, "backups")
	}
	for _, dir := range []string{opts.Dir, backupDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("docstore: mkdir %s: %w", dir, err)
		}
	}

	s := &Store{
		dir:        opts.Dir,
		backupDir:  backupDir,
		maxBackups: opts.MaxBackups,
		lock:       opts.Lock,
		log:        opts.Logger,
		now:        opts.Now,
	}
	if s.maxBackups <= 0 {
		s.maxBackups = DefaultMaxBackups
	}
	if s.lock == nil {
		s.lock = &sync.Mutex{}
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Path returns the file backing the named document.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+documentExt)
}

// BackupDir returns the directory holding backup snapshots.
func (s *Store) BackupDir() string {
	return s.backupDir
}

// Load decodes the named document into dst. It reports false, and leaves dst
// alone, when the document does not exist; the file is not created. Load
// does not take the write lock: a concurrent save is observed either fully
// or not at all.
func (s *Store) Load(ctx context.Context, name string, dst any) (bool, error) {
	if !namePattern.MatchString(name) {
		return false, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decoding %s: %w", name, err)
	}
	return true, nil
}

// Save replaces the named document with v. With backup set, the current
// file is snapshotted first; a failed snapshot is logged and does not stop
// the save. On error the previous document is left in place.
func (s *Store) Save(ctx context.Context, name string, v any, backup bool) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	return s.saveLocked(ctx, name, v, backup)
}

// Backup snapshots the named document and prunes old snapshots. It returns
// the snapshot's file name.
func (s *Store) Backup(ctx context.Context, name string) (string, error) {
	if !namePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	return s.backupLocked(ctx, name)
}

// Backups lists the snapshots of one document, newest first.
func (s *Store) Backups(name string) ([]BackupInfo, error) {
	all, err := s.AllBackups()
	if err != nil {
		return nil, err
	}
	backups := make([]BackupInfo, 0, len(all))
	for _, b := range all {
		if b.Document == name {
			backups = append(backups, b)
		}
	}
	return backups, nil
}

// AllBackups lists every snapshot in the backup directory, newest first.
// Snapshots taken in the same second are ordered by file name.
func (s *Store) AllBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := backupPattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		createdAt, err := time.ParseInLocation(backupTimeLayout, match[2], time.Local)
		if err != nil {
			continue
		}
		info := BackupInfo{
			File:      entry.Name(),
			Document:  match[1],
			CreatedAt: createdAt,
		}
		if fi, err := entry.Info(); err == nil {
			info.Size = fi.Size()
		}
		backups = append(backups, info)
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].CreatedAt.After(backups[j].CreatedAt)
		}
		return backups[i].File > backups[j].File
	})
	return backups, nil
}

func (s *Store) saveLocked(ctx context.Context, name string, v any, backup bool) error {
	target := s.Path(name)

	if backup {
		if _, err := os.Stat(target); err == nil {
			if _, err := s.backupLocked(ctx, name); err != nil {
				s.log.Warn(ctx, "document backup failed", "document", name, "error", err)
			}
		}
	}

	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	tmpFile, err := os.CreateTemp(s.dir, name+"-*"+documentExt+".tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", name, err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing %s: %w", name, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file for %s: %w", name, err)
	}

	if s.beforeRename != nil {
		if err := s.beforeRename(tmpPath); err != nil {
			return err
		}
	}

	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("renaming %s into place: %w", name, err)
	}

	success = true
	s.log.Debug(ctx, "document saved", "document", name, "bytes", len(data))
	return nil
}

func (s *Store) backupLocked(ctx context.Context, name string) (string, error) {
	src, err := os.Open(s.Path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoDocument
		}
		return "", fmt.Errorf("opening %s: %w", name, err)
	}
	defer src.Close()

	backupName := fmt.Sprintf("%s_%s%s", name, s.now().Format(backupTimeLayout), documentExt)
	backupPath := filepath.Join(s.backupDir, backupName)

	dst, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("creating backup %s: %w", backupName, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("copying backup %s: %w", backupName, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("closing backup %s: %w", backupName, err)
	}
	if fi, err := src.Stat(); err == nil {
		_ = os.Chtimes(backupPath, fi.ModTime(), fi.ModTime())
	}

	if err := s.pruneLocked(name); err != nil {
		s.log.Warn(ctx, "backup cleanup failed", "document", name, "error", err)
	}

	s.log.Info(ctx, "document backed up", "document", name, "file", backupName)
	return backupName, nil
}

// pruneLocked keeps the newest maxBackups snapshots of name.
func (s *Store) pruneLocked(name string) error {
	backups, err := s.Backups(name)
	if err != nil {
		return err
	}
	if len(backups) <= s.maxBackups {
		return nil
	}

	var errs []error
	for _, old := range backups[s.maxBackups:] {
		if err := os.Remove(filepath.Join(s.backupDir, old.File)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
