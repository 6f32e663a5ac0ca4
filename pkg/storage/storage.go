package storage

import (
	"context"

	internalstorage "github.com/SmitUplenchwar2687/Retrace/internal/storage"
)

// Store persists encoded logs by location.
type Store = internalstorage.Store

// Config selects and configures a storage backend.
type Config = internalstorage.Config

// MemoryStore is an in-memory Store.
type MemoryStore = internalstorage.MemoryStore

// FileStore stores each log as a file.
type FileStore = internalstorage.FileStore

// ErrNotFound is wrapped by Read when a location holds no log.
var ErrNotFound = internalstorage.ErrNotFound

// DefaultConfig returns the file backend without compression.
func DefaultConfig() Config {
	return internalstorage.DefaultConfig()
}

// Open builds the Store selected by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	return internalstorage.Open(ctx, cfg)
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return internalstorage.NewMemoryStore()
}

// NewFileStore creates a file store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return internalstorage.NewFileStore(internalstorage.FileConfig{Dir: dir})
}
