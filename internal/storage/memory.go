package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/SmitUplenchwar2687/Retrace/internal/fault"
)

// MemoryStore is an in-memory Store backed by a map. It is used by tests
// and by hosts that embed the engine without persistence.
// Thread-safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string][]byte),
	}
}

func (s *MemoryStore) Read(_ context.Context, location string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.items[location]
	if !ok {
		return nil, fault.Storage("storage.read", fmt.Errorf("%s: %w", location, ErrNotFound))
	}
	// Return a copy to prevent mutation.
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Write(_ context.Context, location string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	s.items[location] = buf
	return nil
}

func (s *MemoryStore) Check(context.Context, string) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of stored locations.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
