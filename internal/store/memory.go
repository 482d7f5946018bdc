package store

import (
	"context"
	"sync"
)

// MemoryStore is the in-process partition variant: a lock-protected owned map.
// ReadAll returns a snapshot copy, never a live reference, so readers cannot
// observe a partial replace.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Record)}
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]Record)
	return nil
}

func (s *MemoryStore) Write(_ context.Context, key string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(Record, len(rec))
	for f, v := range rec {
		cp[f] = v
	}
	s.data[key] = cp
	return nil
}

func (s *MemoryStore) ReadAll(_ context.Context) (map[string]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Record, len(s.data))
	for key, rec := range s.data {
		cp := make(Record, len(rec))
		for f, v := range rec {
			cp[f] = v
		}
		out[key] = cp
	}
	return out, nil
}
