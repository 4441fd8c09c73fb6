package storage

import (
	"context"
	"fmt"
	"sync"
)

// DeleteCall records one Delete invocation for assertions in tests.
type DeleteCall struct {
	Path     string
	Rollback bool
}

// MemoryStore is the in-process attachment store used by tests.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deletes []DeleteCall
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Upload(_ context.Context, folder string, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := fmt.Sprintf("%s/%s", folder, name)
	s.objects[path] = append([]byte(nil), data...)
	return path, nil
}

func (s *MemoryStore) Delete(_ context.Context, path string, opts DeleteOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, path)
	s.deletes = append(s.deletes, DeleteCall{Path: path, Rollback: opts.Rollback})
	return nil
}

// Deletes returns the recorded Delete calls.
func (s *MemoryStore) Deletes() []DeleteCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DeleteCall(nil), s.deletes...)
}

// Exists reports whether an object is currently stored at path.
func (s *MemoryStore) Exists(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[path]
	return ok
}
