package storage

import (
	"context"
	"sync"
)

// MemoryTemplateStore is an in-process TemplateStore used by tests and
// the in-memory configuration.
type MemoryTemplateStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
	err   error
}

// NewMemoryTemplateStore creates a store preloaded with data (may be nil).
func NewMemoryTemplateStore(data []byte) *MemoryTemplateStore {
	return &MemoryTemplateStore{data: clone(data)}
}

func (s *MemoryTemplateStore) Load(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return clone(s.data), nil
}

func (s *MemoryTemplateStore) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.data = clone(data)
	s.saves++
	return nil
}

// Data returns the last saved table.
func (s *MemoryTemplateStore) Data() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.data)
}

// Saves returns how many times Save succeeded.
func (s *MemoryTemplateStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// SetError makes subsequent Load and Save calls fail with err (nil clears it).
func (s *MemoryTemplateStore) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
