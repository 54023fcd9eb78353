package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"interview-engine-service/internal/domain"
)

// SnapshotStore persists session snapshots in Redis so a session can be
// resumed after a disconnect or a process restart.
// Snapshots are stored as: SET interview:session:{sessionID} {record JSON}
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

func (s *SnapshotStore) Save(ctx context.Context, record domain.SessionRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.client.Set(ctx, s.key(record.Session.ID), payload, s.ttl).Err()
}

func (s *SnapshotStore) Load(ctx context.Context, sessionID string) (domain.SessionRecord, error) {
	payload, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.SessionRecord{}, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return domain.SessionRecord{}, err
	}

	var record domain.SessionRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return domain.SessionRecord{}, fmt.Errorf("%w: %v", domain.ErrCorruptSnapshot, err)
	}
	if err := record.Validate(); err != nil {
		return domain.SessionRecord{}, err
	}
	return record, nil
}

func (s *SnapshotStore) key(sessionID string) string {
	return "interview:session:" + sessionID
}
