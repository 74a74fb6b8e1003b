package store

import (
	"context"
	"sync"
)

// InMemoryStore keeps the record in process memory. Used by tests and by
// TOKEN_STORE=memory, where a restart logs the operator out.
type InMemoryStore struct {
	mu  sync.RWMutex
	rec *Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Load(_ context.Context) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rec == nil {
		return nil, ErrNotFound
	}
	return copyRecord(s.rec), nil
}

func (s *InMemoryStore) Save(_ context.Context, rec *Record) error {
	if _, err := encode(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = copyRecord(rec)
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = nil
	return nil
}
