package file

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

const dirPerm = 0o755

// Storage provides a filesystem-backed image store.
// All paths are relative to the root of the underlying billy filesystem.
type Storage struct {
	fs billy.Filesystem
}

// NewStorage creates a Storage on top of the given billy filesystem.
func NewStorage(fs billy.Filesystem) *Storage {
	return &Storage{fs: fs}
}

// NewLocalStorage creates a Storage rooted at baseDir on the local disk.
func NewLocalStorage(baseDir string) *Storage {
	return NewStorage(osfs.New(baseDir))
}

// EnsureDir creates dir and any missing parents. An existing directory is not an
// error, and concurrent calls for the same path are safe.
func (s *Storage) EnsureDir(dir string) error {
	if err := s.fs.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	return nil
}

// Save writes src to subdir/filename, replacing any existing file.
// It returns the stored path and the number of bytes written. A file left
// incomplete by a failed copy is removed.
func (s *Storage) Save(ctx context.Context, subdir, filename string, src io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	dstPath := s.fs.Join(subdir, filename)

	dst, err := s.fs.Create(dstPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file %s: %w", dstPath, err)
	}

	n, err := io.Copy(dst, src)
	if err != nil {
		_ = dst.Close()
		_ = s.fs.Remove(dstPath)
		return "", 0, fmt.Errorf("failed to save file %s: %w", dstPath, err)
	}

	if err := dst.Close(); err != nil {
		_ = s.fs.Remove(dstPath)
		return "", 0, fmt.Errorf("failed to close file %s: %w", dstPath, err)
	}

	return dstPath, n, nil
}

// Load opens the file at path for reading.
func (s *Storage) Load(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load file %s: %w", path, err)
	}

	return f, nil
}

// List returns the names of regular files directly inside dir whose
// extension is ext, sorted by name. Sub-directories are not descended into.
func (s *Storage) List(dir, ext string) ([]string, error) {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Mode().IsRegular() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	return names, nil
}

// Join joins path elements using the store's separator.
func (s *Storage) Join(elem ...string) string {
	return s.fs.Join(elem...)
}
