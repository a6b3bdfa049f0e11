package static

import (
	"context"
	"io"
)

// FileStorage defines the read-only file operations a Server needs.
// Implementations can use the local filesystem or any other backend.
//
// Names are relative to the storage root, use the OS path separator, and
// are already cleaned and contained by the caller; "." names the root.
//
// All methods accept a context for cancellation. No method may cache
// results between calls: every Stat must observe the current file.
type FileStorage interface {
	// Stat reports size, modification time, inode and type of name.
	// Returns ErrNotFound if name does not exist.
	Stat(ctx context.Context, name string) (FileInfo, error)

	// Open opens name for reading. The caller closes the returned reader.
	// Returns ErrNotFound if name does not exist.
	Open(ctx context.Context, name string) (io.ReadSeekCloser, error)

	// ReadFile returns the whole content of name.
	// Returns ErrNotFound if name does not exist.
	ReadFile(ctx context.Context, name string) ([]byte, error)
}
