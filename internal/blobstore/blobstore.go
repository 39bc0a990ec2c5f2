// Package blobstore defines the remote file store the pipeline reads audio
// from and writes transcripts to, and the backends that implement it.
//
// A ref is an opaque identifier issued by a backend. Every blob carries an
// optional metadata string which the pipeline uses to persist job state.
package blobstore

import (
	"context"
	"errors"
	"fmt"

	"scribe/internal/config"
)

var (
	// ErrNotFound is returned for refs the backend does not know.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidRef is returned for refs that can never be valid.
	ErrInvalidRef = errors.New("invalid blob ref")
)

// Store is the remote file store.
type Store interface {
	// List returns the refs stored in folder ordered by name.
	List(ctx context.Context, folder string) ([]string, error)
	// GetMetadata returns the metadata string for ref. ok is false when the
	// blob exists but carries no metadata.
	GetMetadata(ctx context.Context, ref string) (value string, ok bool, err error)
	SetMetadata(ctx context.Context, ref, value string) error
	// Upload stores the local file under folder and returns the new ref.
	Upload(ctx context.Context, folder, localPath string) (string, error)
	// Download copies the blob into localDir and returns the local path.
	Download(ctx context.Context, ref, localDir string) (string, error)
	Delete(ctx context.Context, ref string) error
	// Name returns the display file name of ref.
	Name(ctx context.Context, ref string) (string, error)
	Close() error
}

// Open constructs the backend selected by cfg.Storage.Backend.
func Open(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, errors.New("blobstore: config is required")
	}
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendLocal:
		return OpenLocal(cfg.Storage.Root)
	case config.BackendSQLite:
		return OpenSQLite(cfg.Storage.DatabasePath)
	default:
		return nil, fmt.Errorf("blobstore: unsupported backend %q", cfg.Storage.Backend)
	}
}

func notFound(ref string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, ref)
}
