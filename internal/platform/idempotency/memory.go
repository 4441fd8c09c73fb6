package idempotency

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is the test-facing store. Claims are serialized by a mutex so
// the uniqueness semantics match the database constraint.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[string]Record
	retention time.Duration
}

func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryStore{
		records:   make(map[string]Record),
		retention: retention,
	}
}

func (s *MemoryStore) Claim(_ context.Context, key string, now time.Time) (bool, Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = strings.TrimSpace(key)
	now = now.UTC()

	if existing, ok := s.records[key]; ok {
		if !existing.ExpiresAt.IsZero() && now.After(existing.ExpiresAt) {
			delete(s.records, key)
		} else {
			return false, existing, nil
		}
	}

	record := Record{
		Key:       key,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.retention),
	}
	s.records[key] = record
	return true, record, nil
}

func (s *MemoryStore) Finalize(_ context.Context, key string, responseStatus int, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[strings.TrimSpace(key)]
	if !ok || record.Status != StatusPending {
		return ErrClaimRaced
	}
	record.Status = StatusCompleted
	record.ResponseStatus = responseStatus
	record.ResponsePayload = append([]byte(nil), payload...)
	s.records[strings.TrimSpace(key)] = record
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, strings.TrimSpace(key))
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, record := range s.records {
		if !record.ExpiresAt.IsZero() && now.UTC().After(record.ExpiresAt) {
			delete(s.records, key)
			removed++
		}
	}
	return removed, nil
}

// GetRecord exposes the stored row for assertions in tests.
func (s *MemoryStore) GetRecord(key string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[strings.TrimSpace(key)]
	return record, ok
}
