package docstore

import (
	"context"
	"fmt"
)

// Document is a typed handle on one named document of a Store.
type Document[T any] struct {
	store *Store
	name  string
	empty func() T
}

// NewDocument binds name to s. empty builds the value returned when the
// document is missing or unreadable; it must return a fresh value each call.
// It panics if name is not a plain file stem.
func NewDocument[T any](s *Store, name string, empty func() T) *Document[T] {
	if !namePattern.MatchString(name) {
		panic(fmt.Sprintf("docstore: %v: %q", ErrInvalidName, name))
	}
	return &Document[T]{store: s, name: name, empty: empty}
}

// Name returns the document's logical name.
func (d *Document[T]) Name() string {
	return d.name
}

// Load returns the stored value. A missing document yields the empty value;
// so does an unreadable one, after the failure is logged.
func (d *Document[T]) Load(ctx context.Context) T {
	v := d.empty()
	if _, err := d.store.Load(ctx, d.name, &v); err != nil {
		d.store.log.Error(ctx, "document load failed", "document", d.name, "error", err)
		return d.empty()
	}
	return v
}

// Read is Load for callers that must tell an unreadable document from a
// missing one: a missing document yields the empty value and no error.
func (d *Document[T]) Read(ctx context.Context) (T, error) {
	v := d.empty()
	if _, err := d.store.Load(ctx, d.name, &v); err != nil {
		return d.empty(), err
	}
	return v, nil
}

// Save writes v, snapshotting the previous content first.
func (d *Document[T]) Save(ctx context.Context, v T) error {
	return d.store.Save(ctx, d.name, v, true)
}

// Update loads the document, passes it to fn and saves what fn returns, all
// while holding the store's write lock. If fn fails nothing is written and
// its error is returned unchanged.
func (d *Document[T]) Update(ctx context.Context, fn func(v T) (T, error)) (T, error) {
	d.store.lock.Lock()
	defer d.store.lock.Unlock()

	current := d.Load(ctx)
	next, err := fn(current)
	if err != nil {
		return current, err
	}
	if err := d.store.saveLocked(ctx, d.name, next, true); err != nil {
		return current, err
	}
	return next, nil
}
