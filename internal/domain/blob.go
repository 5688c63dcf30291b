package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a single stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads objects to durable blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader retrieves and enumerates stored objects.
type BlobReader interface {
	// Get returns ErrNotFound when no object exists at path.
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// BlobDeleter removes stored objects. Deletion is idempotent.
type BlobDeleter interface {
	Delete(ctx context.Context, path string) error
}

// Archiver exports aged records from the primary store to blob storage.
// Archived rows are not removed from the primary store; pruning is a
// separate, explicit step run after the archive has been verified.
type Archiver interface {
	// ArchiveBets exports closed bets created before the cutoff and returns
	// the number of records written.
	ArchiveBets(ctx context.Context, before time.Time) (int64, error)
	// ArchiveEvents exports audit log entries recorded before the cutoff and
	// returns the number of records written.
	ArchiveEvents(ctx context.Context, before time.Time) (int64, error)
}
