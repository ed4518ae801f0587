// Package audit appends human-readable event lines to plain-text logs.
//
// Each line is "<ISO-timestamp> - <description>\n". The logs are write-only
// from the server's point of view; Tail exists for the admin dashboard.
package audit

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Known log files.
const (
	UserChanges    = "user_changes.log"
	ProfileChanges = "profile_changes.log"
	Messages       = "messages.log"
)

// Files lists the logs the server writes.
var Files = []string{UserChanges, ProfileChanges, Messages}

const timeLayout = "2006-01-02T15:04:05.000000"

// ErrUnknownLog is returned by Tail for a file outside Files.
var ErrUnknownLog = errors.New("unknown audit log")

// Log writes to files under one directory.
type Log struct {
	dir string
	now func() time.Time
}

// New creates dir if needed.
func New(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: mkdir %s: %w", dir, err)
	}
	return &Log{dir: dir, now: time.Now}, nil
}

// Dir returns the directory holding the logs.
func (l *Log) Dir() string {
	return l.dir
}

// Append writes one line to file.
func (l *Log) Append(ctx context.Context, file, description string) error {
	line := fmt.Sprintf("%s - %s\n", l.now().Format(timeLayout), singleLine(description))

	f, err := os.OpenFile(filepath.Join(l.dir, file), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("audit: open %s: %w", file, err)
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("audit: write %s: %w", file, err)
	}
	return f.Close()
}

// Tail returns up to n of the most recent lines of file, oldest first.
// A log that has never been written yields no lines.
func (l *Log) Tail(file string, n int) ([]string, error) {
	if !slices.Contains(Files, file) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLog, file)
	}
	if n <= 0 {
		return nil, nil
	}

	f, err := os.Open(filepath.Join(l.dir, file))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	lines := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(lines) == n {
			lines = lines[1:]
		}
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// singleLine keeps one event on one line.
func singleLine(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}
