package storage

import (
	"context"
	"fmt"
	"strings"
)

// Open builds the Store selected by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		store Store
		err   error
	)

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendFile:
		store = NewFileStore(cfg.File)
	case BackendMemory:
		store = NewMemoryStore()
	case BackendRedis:
		store, err = NewRedisStore(ctx, &cfg.Redis)
	case BackendSQLite:
		store, err = NewSQLiteStore(ctx, cfg.SQLite)
	default:
		return nil, fmt.Errorf("unknown storage backend %q (valid: file, memory, redis, sqlite)", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Compression)) {
	case "", CompressionNone:
		return store, nil
	case CompressionZstd:
		compressed, err := NewCompressedStore(store)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		return compressed, nil
	default:
		_ = store.Close()
		return nil, fmt.Errorf("unknown compression %q (valid: none, zstd)", cfg.Compression)
	}
}
