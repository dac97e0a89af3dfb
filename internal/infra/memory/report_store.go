package memory

import (
	"context"
	"sync"

	"empathy-assessment-service/internal/domain"
)

// ReportStore archives terminal sessions in memory. Saving the same session
// twice replaces the earlier archive.
type ReportStore struct {
	mu      sync.RWMutex
	reports map[string]domain.Snapshot
}

func NewReportStore() *ReportStore {
	return &ReportStore{reports: make(map[string]domain.Snapshot)}
}

func (s *ReportStore) SaveReport(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	s.reports[snap.SessionID] = snap
	s.mu.Unlock()
	return nil
}

// Get returns the archived snapshot for a session.
func (s *ReportStore) Get(sessionID string) (domain.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.reports[sessionID]
	return snap, ok
}

func (s *ReportStore) LoadReport(_ context.Context, sessionID string) (domain.Snapshot, error) {
	snap, ok := s.Get(sessionID)
	if !ok {
		return domain.Snapshot{}, domain.ErrSessionNotFound
	}
	return snap, nil
}
