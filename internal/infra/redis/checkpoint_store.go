package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"empathy-assessment-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// CheckpointStore keeps the latest snapshot of each session as JSON:
// SET assessment:snapshot:{sessionID} {json} EX ttl
type CheckpointStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCheckpointStore(client *redis.Client, ttl time.Duration) *CheckpointStore {
	return &CheckpointStore{client: client, ttl: ttl}
}

func (s *CheckpointStore) Save(ctx context.Context, snap domain.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.client.Set(ctx, s.key(snap.SessionID), raw, s.ttl).Err()
}

func (s *CheckpointStore) Load(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Snapshot{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (s *CheckpointStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID)).Err()
}

func (s *CheckpointStore) key(sessionID string) string {
	return "assessment:snapshot:" + sessionID
}
