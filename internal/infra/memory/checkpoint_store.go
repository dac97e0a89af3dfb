package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"empathy-assessment-service/internal/domain"
)

// CheckpointStore keeps the latest encoded snapshot per session. Snapshots
// are stored as JSON so a round trip matches what the Redis store persists.
type CheckpointStore struct {
	mu    sync.RWMutex
	snaps map[string][]byte
}

func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{snaps: make(map[string][]byte)}
}

func (s *CheckpointStore) Save(_ context.Context, snap domain.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	s.mu.Lock()
	s.snaps[snap.SessionID] = raw
	s.mu.Unlock()
	return nil
}

func (s *CheckpointStore) Load(_ context.Context, sessionID string) (domain.Snapshot, error) {
	s.mu.RLock()
	raw, ok := s.snaps[sessionID]
	s.mu.RUnlock()
	if !ok {
		return domain.Snapshot{}, domain.ErrSessionNotFound
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (s *CheckpointStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.snaps, sessionID)
	s.mu.Unlock()
	return nil
}

// IDs lists checkpointed sessions in sorted order.
func (s *CheckpointStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.snaps))
	for id := range s.snaps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
