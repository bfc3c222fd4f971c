package repository

import (
	"context"
	"sync"
)

// MemoryStore keeps values in process memory. It is the default backend and
// loses everything on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get decodes the value stored at key into dest.
func (s *MemoryStore) Get(_ context.Context, key string, dest any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return unavailable("get", key, ErrClosed)
	}
	b, ok := s.data[key]
	if !ok {
		return ErrNotFound
	}
	return decode(key, b, dest)
}

// Set encodes value and stores it at key.
func (s *MemoryStore) Set(_ context.Context, key string, value any) error {
	b, err := encode(key, value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return unavailable("set", key, ErrClosed)
	}
	s.data[key] = b
	return nil
}

// Delete removes keys. Missing keys are ignored.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return unavailable("delete", "", ErrClosed)
	}
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

// Close makes every later call fail.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
