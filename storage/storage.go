// Package storage defines blob storage used to keep baseline snapshots
// between runs. Providers register a factory and are selected by name.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by Download when no object exists at the path.
var ErrNotFound = errors.New("storage: object not found")

// FileInfo describes a stored object. Path is relative to the store root and
// always uses forward slashes.
type FileInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// Storage is a flat object store addressed by slash-separated paths. The
// baseline archive lays objects out as backend/fingerprint/name.
type Storage interface {
	// Upload writes data from reader to the given path. Readers of the path
	// never observe a partially written object.
	Upload(ctx context.Context, path string, reader io.Reader) error

	// Download returns a reader for the object at the given path.
	// The caller is responsible for closing the returned ReadCloser.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the object at the given path.
	// Returns nil if the object does not exist.
	Delete(ctx context.Context, path string) error

	Exists(ctx context.Context, path string) (bool, error)

	// List returns the objects whose path starts with prefix, sorted by path.
	List(ctx context.Context, prefix string) ([]FileInfo, error)
}
