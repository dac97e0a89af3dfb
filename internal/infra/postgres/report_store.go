package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"empathy-assessment-service/internal/domain"
	"github.com/uptrace/bun"
)

// ReportRow is one archived assessment in assessment_reports.
type ReportRow struct {
	bun.BaseModel `bun:"table:assessment_reports"`

	SessionID      string                    `bun:"session_id,pk"`
	AgentID        string                    `bun:"agent_id,notnull"`
	Status         string                    `bun:"status,notnull"`
	Mode           string                    `bun:"mode,notnull"`
	ItemsCompleted int                       `bun:"items_completed,notnull"`
	TotalItems     int                       `bun:"total_items,notnull"`
	TotalScore     float64                   `bun:"total_score,notnull"`
	Complete       bool                      `bun:"complete,notnull"`
	StopReason     string                    `bun:"stop_reason,nullzero"`
	Report         *domain.ScoreReport       `bun:"report,type:jsonb"`
	Transcript     []domain.TranscriptEntry  `bun:"transcript,type:jsonb"`
	Results        map[int]domain.ItemResult `bun:"results,type:jsonb"`
	CreatedAt      time.Time                 `bun:"created_at,notnull"`
	FinishedAt     time.Time                 `bun:"finished_at,notnull"`
}

// ReportStore archives terminal sessions with bun. Re-archiving a session
// overwrites the earlier row.
type ReportStore struct {
	db *bun.DB
}

func NewReportStore(db *bun.DB) *ReportStore {
	return &ReportStore{db: db}
}

func (s *ReportStore) SaveReport(ctx context.Context, snap domain.Snapshot) error {
	row := ReportRow{
		SessionID:      snap.SessionID,
		AgentID:        snap.AgentID,
		Status:         string(snap.Status),
		Mode:           string(snap.Mode),
		ItemsCompleted: len(snap.Results),
		TotalItems:     snap.TotalItems,
		StopReason:     snap.StopReason,
		Report:         snap.Report,
		Transcript:     snap.Transcript,
		Results:        snap.Results,
		CreatedAt:      snap.CreatedAt,
		FinishedAt:     snap.UpdatedAt,
	}
	if snap.Report != nil {
		row.TotalScore = snap.Report.TotalScore
		row.Complete = snap.Report.Complete
	}

	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (session_id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("items_completed = EXCLUDED.items_completed").
		Set("total_score = EXCLUDED.total_score").
		Set("complete = EXCLUDED.complete").
		Set("stop_reason = EXCLUDED.stop_reason").
		Set("report = EXCLUDED.report").
		Set("transcript = EXCLUDED.transcript").
		Set("results = EXCLUDED.results").
		Set("finished_at = EXCLUDED.finished_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save report %s: %w", snap.SessionID, err)
	}
	return nil
}

// LoadReport rebuilds the archived snapshot of one session.
func (s *ReportStore) LoadReport(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	row := ReportRow{SessionID: sessionID}
	if err := s.db.NewSelect().Model(&row).WherePK().Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Snapshot{}, domain.ErrSessionNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("load report %s: %w", sessionID, err)
	}
	return row.snapshot(), nil
}

func (r ReportRow) snapshot() domain.Snapshot {
	snap := domain.Snapshot{
		SessionID:        r.SessionID,
		AgentID:          r.AgentID,
		Status:           domain.Status(r.Status),
		Mode:             domain.Mode(r.Mode),
		CurrentItemIndex: r.ItemsCompleted,
		TotalItems:       r.TotalItems,
		Transcript:       r.Transcript,
		Results:          r.Results,
		StopReason:       r.StopReason,
		Report:           r.Report,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.FinishedAt,
	}
	for _, res := range r.Results {
		snap.Input = res.Input
		break
	}
	return snap
}

// ListReports returns the most recently finished assessments, newest first.
// An empty agentID matches every agent.
func (s *ReportStore) ListReports(ctx context.Context, agentID string, limit int) ([]ReportRow, error) {
	var rows []ReportRow
	q := s.db.NewSelect().Model(&rows).Order("finished_at DESC")
	if agentID != "" {
		q = q.Where("agent_id = ?", agentID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return rows, nil
}
