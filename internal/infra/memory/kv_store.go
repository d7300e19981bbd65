package memory

import (
	"context"
	"sync"
)

// KVStore is an in-memory key-value backing for the exam session store.
// Contents are lost when the process exits.
type KVStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewKVStore() *KVStore {
	return &KVStore{
		entries: make(map[string]string),
	}
}

func (s *KVStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.entries[key]
	return value, ok, nil
}

func (s *KVStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

func (s *KVStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

// Len reports how many keys are stored.
func (s *KVStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
