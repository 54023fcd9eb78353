package memory

import (
	"context"
	"sync"

	"interview-engine-service/internal/domain"
)

// SnapshotStore is an in-memory implementation of engine.SnapshotStore.
type SnapshotStore struct {
	mu      sync.RWMutex
	records map[string]domain.SessionRecord
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{records: make(map[string]domain.SessionRecord)}
}

func (s *SnapshotStore) Save(_ context.Context, record domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Session.ID] = record
	return nil
}

func (s *SnapshotStore) Load(_ context.Context, sessionID string) (domain.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[sessionID]
	if !ok {
		return domain.SessionRecord{}, domain.ErrSnapshotNotFound
	}
	return record, nil
}
