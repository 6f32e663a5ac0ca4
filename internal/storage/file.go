package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/SmitUplenchwar2687/Retrace/internal/fault"
)

// FileStore keeps each log in its own file. Locations are paths, resolved
// against Dir when relative.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir.
func NewFileStore(cfg FileConfig) *FileStore {
	return &FileStore{dir: cfg.Dir}
}

// Path resolves a location to a filesystem path.
func (s *FileStore) Path(location string) string {
	if filepath.IsAbs(location) || s.dir == "" {
		return filepath.Clean(location)
	}
	return filepath.Join(s.dir, location)
}

func (s *FileStore) Read(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fault.Storage("storage.read", err)
	}
	data, err := os.ReadFile(s.Path(location))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fault.Storage("storage.read", fmt.Errorf("%s: %w", location, ErrNotFound))
	}
	if err != nil {
		return nil, fault.Storage("storage.read", err)
	}
	return data, nil
}

// Write stages data in a temp file next to the target, syncs it and
// renames it over the target.
func (s *FileStore) Write(ctx context.Context, location string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fault.Storage("storage.write", err)
	}
	path := s.Path(location)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fault.Storage("storage.write", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fault.Storage("storage.write", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fault.Storage("storage.write", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fault.Storage("storage.write", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fault.Storage("storage.write", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fault.Storage("storage.write", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fault.Storage("storage.write", err)
	}
	return nil
}

// Check verifies the target directory accepts new files.
func (s *FileStore) Check(_ context.Context, location string) error {
	path := s.Path(location)
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fault.Storage("storage.check", fmt.Errorf("%s is a directory", path))
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fault.Storage("storage.check", err)
	}
	tmp, err := os.CreateTemp(dir, ".retrace-check-*")
	if err != nil {
		return fault.Storage("storage.check", err)
	}
	name := tmp.Name()
	_ = tmp.Close()
	_ = os.Remove(name)
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
