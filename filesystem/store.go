// Package filesystem provides the local file system storage backend for the
// static file server. All access goes through an os.Root, so a name can never
// reach outside the served directory even through symlinks.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sagarc03/static"
)

// Store provides file system storage operations.
type Store struct {
	root *os.Root
}

// Entry describes a regular file found by List.
type Entry struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// NewFileStorage creates a new Store with the given root directory.
// The root provides sandboxed file operations preventing path traversal.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

// Stat reports the metadata of name. Returns static.ErrNotFound if the file
// does not exist.
func (s *Store) Stat(ctx context.Context, name string) (static.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return static.FileInfo{}, err
	}

	info, err := s.root.Stat(name)
	if err != nil {
		return static.FileInfo{}, mapError("stat", err)
	}

	return static.FileInfo{
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Inode:   inode(info),
		IsDir:   info.IsDir(),
		Regular: info.Mode().IsRegular(),
	}, nil
}

// Open opens a file for reading. Returns static.ErrNotFound if the file does not exist.
func (s *Store) Open(ctx context.Context, name string) (io.ReadSeekCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.root.Open(name)
	if err != nil {
		return nil, mapError("open", err)
	}

	return f, nil
}

// ReadFile returns the content of name. Returns static.ErrNotFound if the file
// does not exist.
func (s *Store) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.root.ReadFile(name)
	if err != nil {
		return nil, mapError("read file", err)
	}

	return data, nil
}

// List recursively walks the root directory and returns every regular file.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []Entry

	err := s.walkDir(ctx, ".", &entries)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return entries, nil
}

func (s *Store) walkDir(ctx context.Context, dir string, entries *[]Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dirEntries, err := fs.ReadDir(s.root.FS(), dir)
	if err != nil {
		return err
	}

	for _, entry := range dirEntries {
		if err := ctx.Err(); err != nil {
			return err
		}

		entryPath := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			if err := s.walkDir(ctx, entryPath, entries); err != nil {
				return err
			}
			continue
		}

		if !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("walk dir: %w", err)
		}

		*entries = append(*entries, Entry{
			Path:    entryPath,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	return nil
}

func mapError(op string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, static.ErrNotFound)
	}
	return fmt.Errorf("failed to %s file: %w", op, err)
}
