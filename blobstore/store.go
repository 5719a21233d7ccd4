// Package blobstore abstracts the storage of immutable snapshot blobs.
//
// Snapshots are written once and never modified, so the interface is a
// whole-blob Put plus random-access reads. Implementations exist for
// memory (testing), the local filesystem (mmap reads), S3 and MinIO.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for storing immutable snapshot blobs.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Put writes a blob atomically, replacing any existing blob with the
	// same name.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	io.ReaderAt
	io.Closer

	// Size returns the size of the blob in bytes.
	Size() int64
}

// PointerStore tracks the name of the latest committed snapshot. Stores
// with compare-and-swap semantics (e.g. DynamoDB conditional writes) can
// implement this to coordinate concurrent writers; object stores without
// them fall back to a CURRENT blob with last-writer-wins semantics.
type PointerStore interface {
	// SetCurrent atomically points the store at name.
	SetCurrent(ctx context.Context, name string) error

	// Current returns the latest committed name, or ErrNotFound if
	// nothing has been committed.
	Current(ctx context.Context) (string, error)
}
