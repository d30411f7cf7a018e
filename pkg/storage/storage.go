// Package storage defines FileStore, a small blob interface for state that is
// always read and written as a whole object: the enrolled speaker table is
// loaded once at startup and replaced in full on every change.
//
// Local keeps objects on disk and replaces them with a rename, so a crash
// leaves either the old or the new object. S3Store keeps them in any
// S3-compatible bucket, where a single PutObject is already all-or-nothing.
package storage

import (
	"context"
	"os"
)

// ErrNotExist is returned (wrapped) by ReadFile when the object is missing.
// It is os.ErrNotExist so callers may test with either errors.Is form.
var ErrNotExist = os.ErrNotExist

// FileStore reads and atomically replaces whole objects.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// ReadFile returns the full contents of the named object.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile replaces the named object with data. Readers observe either
	// the previous contents or data, never a partial write. WriteFile does
	// not return until the data is durable.
	WriteFile(ctx context.Context, path string, data []byte) error

	// Delete removes the named object. Missing objects are not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named object exists.
	Exists(ctx context.Context, path string) (bool, error)
}
