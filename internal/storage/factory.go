package storage

import (
	"context"
	"fmt"

	"github.com/admitportal/apiserver/config"
)

// FromConfig builds the backend named by cfg.Backend and ensures its bucket.
func FromConfig(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Backend {
	case "", "local":
		backend, err = NewLocalClient(cfg.LocalDir)
	case "minio":
		backend, err = NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("storage %s: %w", cfg.Backend, err)
	}

	s := NewStorage(backend)
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("storage %s: ensure bucket: %w", cfg.Backend, err)
	}
	return s, nil
}
