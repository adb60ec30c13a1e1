package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

var _ ports.HandoffStore = (*HandoffStore)(nil)

// HandoffStore provides an in-memory implementation for development and tests.
type HandoffStore struct {
	mu      sync.RWMutex
	records map[string]ports.HandoffRecord
	now     func() time.Time
}

func NewHandoffStore() *HandoffStore {
	return &HandoffStore{
		records: map[string]ports.HandoffRecord{},
		now:     time.Now,
	}
}

// WithClock overrides the time source for deterministic testing.
func (s *HandoffStore) WithClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get returns the stored record for the provided key, or nil when absent.
func (s *HandoffStore) Get(_ context.Context, key string) (*ports.HandoffRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	copy := record
	return &copy, nil
}

// Save persists the record or returns the existing record if it matches.
func (s *HandoffStore) Save(_ context.Context, record ports.HandoffRecord) (*ports.HandoffRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[record.Key]; ok {
		copy := existing
		if existing.RequestHash != record.RequestHash {
			return &copy, ports.ErrHandoffConflict
		}
		return &copy, nil
	}

	now := s.now()
	record.CreatedAt = now
	record.UpdatedAt = now
	s.records[record.Key] = record
	saved := record
	return &saved, nil
}

// Len reports how many hand-offs were recorded.
func (s *HandoffStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
