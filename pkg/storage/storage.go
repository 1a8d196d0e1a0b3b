// Package storage defines the FileStore interface used for jingle assets
// and finished show artifacts. It abstracts the backend so the assembly
// pipeline can run against local disk in development and an S3-compatible
// object store in production without changing application code.
package storage

import (
	"context"
	"io"
)

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading.
	// The caller must close the returned ReadCloser when done.
	// If the file does not exist, an error wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing.
	// If the file already exists it is truncated.
	// Parent directories are created automatically.
	// The caller must close the returned WriteCloser to flush data.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)

	// URL returns the durable location of the named file, suitable for
	// handing to downstream consumers of a finished show.
	URL(path string) string
}
