// Package memory provides the in-memory key-value store used in development
// and tests.
package memory

import (
	"context"
	"sync"
)

// KVStore is a thread-safe in-memory KeyValueStore
type KVStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewKVStore creates an empty store
func NewKVStore() *KVStore {
	return &KVStore{items: make(map[string][]byte)}
}

// Get implements ports.KeyValueStore
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Set implements ports.KeyValueStore
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = stored
	return nil
}

// Remove implements ports.KeyValueStore
func (s *KVStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Len returns the number of stored keys
func (s *KVStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
