package app

import (
	"fmt"
	"sync"
	"time"

	"empathy-assessment-service/internal/aggregate"
	"empathy-assessment-service/internal/domain"
	"empathy-assessment-service/internal/itembank"
	"empathy-assessment-service/internal/scoring"
)

// Stop reasons recorded on sessions that end in Error.
const (
	ReasonCanceled       = "canceled"
	ReasonNoValidResults = "no valid results"
)

// SessionConfig selects the scoring variant of a session.
type SessionConfig struct {
	Mode  domain.Mode
	Input domain.InputKind
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.Mode == "" {
		c.Mode = domain.ModeConversational
	}
	if c.Input == "" {
		c.Input = domain.InputText
	}
	return c
}

// Session owns one assessment run: the cursor into the item bank, the
// transcript and the recorded results. All mutation happens under mu, so a
// turn is either fully visible or not at all.
type Session struct {
	id        string
	agentID   string
	cfg       SessionConfig
	bank      *itembank.Bank
	scale     scoring.Scale
	createdAt time.Time
	now       func() time.Time

	mu          sync.RWMutex
	status      domain.Status
	cursor      int
	awaiting    bool
	turnSeq     uint64
	transcript  []domain.TranscriptEntry
	results     map[int]domain.ItemResult
	stopReason  string
	report      *domain.ScoreReport
	updatedAt   time.Time
	subscribers map[chan domain.Progress]struct{}
}

// NewSession starts a session at the first item with the examiner
// instructions as its only transcript entry.
func NewSession(id, agentID string, bank *itembank.Bank, cfg SessionConfig) *Session {
	return NewSessionWithClock(id, agentID, bank, cfg, time.Now)
}

// NewSessionWithClock is NewSession with an injected clock.
func NewSessionWithClock(id, agentID string, bank *itembank.Bank, cfg SessionConfig, now func() time.Time) *Session {
	s := newSession(id, agentID, bank, cfg, now)
	s.transcript = append(s.transcript, domain.TranscriptEntry{
		Role:      domain.RoleSystem,
		Content:   itembank.ExaminerInstructions,
		Timestamp: s.createdAt,
		Metadata:  map[string]any{"type": "instructions"},
	})
	return s
}

func newSession(id, agentID string, bank *itembank.Bank, cfg SessionConfig, now func() time.Time) *Session {
	cfg = cfg.withDefaults()
	created := now()
	return &Session{
		id:          id,
		agentID:     agentID,
		cfg:         cfg,
		bank:        bank,
		scale:       scoring.ScaleFor(cfg.Mode),
		createdAt:   created,
		now:         now,
		status:      domain.StatusActive,
		results:     make(map[int]domain.ItemResult),
		updatedAt:   created,
		subscribers: make(map[chan domain.Progress]struct{}),
	}
}

// RestoreSession rebuilds an active session from a checkpoint. Terminal
// snapshots and snapshots whose transcript does not line up with the cursor
// are rejected, so a half-recorded turn can never be resumed.
func RestoreSession(snap domain.Snapshot, bank *itembank.Bank, now func() time.Time) (*Session, error) {
	if now == nil {
		now = time.Now
	}
	if snap.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session id", domain.ErrInvalidSnapshot)
	}
	if snap.Status.Terminal() {
		return nil, fmt.Errorf("%w: session %s is %s", domain.ErrInvalidSnapshot, snap.SessionID, snap.Status)
	}
	if snap.TotalItems != 0 && snap.TotalItems != bank.Len() {
		return nil, fmt.Errorf("%w: snapshot has %d items, bank has %d", domain.ErrInvalidSnapshot, snap.TotalItems, bank.Len())
	}
	if snap.CurrentItemIndex < 0 || snap.CurrentItemIndex > bank.Len() {
		return nil, fmt.Errorf("%w: cursor %d out of range", domain.ErrInvalidSnapshot, snap.CurrentItemIndex)
	}
	if want := 1 + 2*snap.CurrentItemIndex; len(snap.Transcript) != want {
		return nil, fmt.Errorf("%w: transcript has %d entries, want %d", domain.ErrInvalidSnapshot, len(snap.Transcript), want)
	}
	if snap.Transcript[0].Role != domain.RoleSystem {
		return nil, fmt.Errorf("%w: transcript must open with instructions", domain.ErrInvalidSnapshot)
	}
	if len(snap.Results) != snap.CurrentItemIndex {
		return nil, fmt.Errorf("%w: %d results for cursor %d", domain.ErrInvalidSnapshot, len(snap.Results), snap.CurrentItemIndex)
	}
	for i := 0; i < snap.CurrentItemIndex; i++ {
		item, _ := bank.At(i)
		if _, ok := snap.Results[item.ID]; !ok {
			return nil, fmt.Errorf("%w: missing result for item %d", domain.ErrInvalidSnapshot, item.ID)
		}
		if snap.Transcript[1+2*i].Role != domain.RoleExaminer || snap.Transcript[2+2*i].Role != domain.RoleSubject {
			return nil, fmt.Errorf("%w: transcript out of order at item %d", domain.ErrInvalidSnapshot, item.ID)
		}
	}

	s := newSession(snap.SessionID, snap.AgentID, bank, SessionConfig{Mode: snap.Mode, Input: snap.Input}, now)
	if !snap.CreatedAt.IsZero() {
		s.createdAt = snap.CreatedAt
	}
	s.cursor = snap.CurrentItemIndex
	s.transcript = append([]domain.TranscriptEntry(nil), snap.Transcript...)
	for id, res := range snap.Results {
		s.results[id] = res
	}
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) AgentID() string { return s.agentID }

func (s *Session) Config() SessionConfig { return s.cfg }

func (s *Session) Scale() scoring.Scale { return s.scale }

func (s *Session) TotalItems() int { return s.bank.Len() }

func (s *Session) Status() domain.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) CurrentItemIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

// NextItem returns the item at the cursor, or false once the bank is exhausted.
func (s *Session) NextItem() (domain.AssessmentItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bank.At(s.cursor)
}

// Turn is a claim on the item at the cursor, handed out by BeginTurn.
type Turn struct {
	Item domain.AssessmentItem
	seq  uint64
}

// BeginTurn claims the next item for an external call. Until CompleteTurn or
// AbortTurn, further BeginTurn and RecordTurn calls fail with
// ErrTurnInProgress. The bool is false when no items remain and the caller
// should finalize.
func (s *Session) BeginTurn() (Turn, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return Turn{}, false, domain.ErrSessionClosed
	}
	if s.awaiting {
		return Turn{}, false, domain.ErrTurnInProgress
	}
	item, ok := s.bank.At(s.cursor)
	if !ok {
		return Turn{}, false, nil
	}
	s.awaiting = true
	s.turnSeq++
	return Turn{Item: item, seq: s.turnSeq}, true, nil
}

// AbortTurn releases turn without recording anything. A turn that is no
// longer the claimed one is ignored.
func (s *Session) AbortTurn(turn Turn) {
	s.mu.Lock()
	if s.awaiting && turn.seq == s.turnSeq {
		s.awaiting = false
	}
	s.mu.Unlock()
}

// CompleteTurn records the answer for a turn claimed by BeginTurn.
func (s *Session) CompleteTurn(turn Turn, scenario, response string, result domain.ItemResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return domain.ErrSessionClosed
	}
	if !s.awaiting || turn.seq != s.turnSeq {
		return fmt.Errorf("%w: turn for item %d is no longer claimed", domain.ErrStaleTurn, turn.Item.ID)
	}
	return s.recordLocked(turn.Item, scenario, response, result)
}

// RecordTurn appends the examiner and subject entries, stores the result and
// advances the cursor by one. item must be the item at the cursor and no
// turn may be claimed.
func (s *Session) RecordTurn(item domain.AssessmentItem, scenario, response string, result domain.ItemResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return domain.ErrSessionClosed
	}
	if s.awaiting {
		return domain.ErrTurnInProgress
	}
	return s.recordLocked(item, scenario, response, result)
}

func (s *Session) recordLocked(item domain.AssessmentItem, scenario, response string, result domain.ItemResult) error {
	current, ok := s.bank.At(s.cursor)
	if !ok || current.ID != item.ID {
		return fmt.Errorf("%w: got item %d at cursor %d", domain.ErrStaleTurn, item.ID, s.cursor)
	}

	now := s.now()
	s.transcript = append(s.transcript,
		domain.TranscriptEntry{
			Role:      domain.RoleExaminer,
			Content:   scenario,
			Timestamp: now,
			Metadata:  map[string]any{"itemIndex": s.cursor, "itemId": item.ID, "type": "scenario"},
		},
		domain.TranscriptEntry{
			Role:      domain.RoleSubject,
			Content:   response,
			Timestamp: now,
			Metadata:  map[string]any{"itemIndex": s.cursor, "itemId": item.ID, "type": "response"},
		},
	)
	result.ItemID = item.ID
	s.results[item.ID] = result
	s.cursor++
	s.awaiting = false
	s.updatedAt = now

	latest := result
	s.broadcastLocked(&latest)
	return nil
}

// Finalize completes the session once every item has a result. Repeat calls
// return the cached report. A session whose results aggregate to nothing
// moves to Error and reports ErrNoValidResults.
func (s *Session) Finalize() (domain.ScoreReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case domain.StatusCompleted:
		return cloneReport(*s.report), nil
	case domain.StatusError:
		if s.stopReason == ReasonNoValidResults {
			return cloneReport(*s.report), domain.ErrNoValidResults
		}
		return cloneReport(*s.report), fmt.Errorf("%w: %s", domain.ErrSessionClosed, s.stopReason)
	}
	if s.cursor < s.bank.Len() {
		return domain.ScoreReport{}, fmt.Errorf("%w: %d of %d answered", domain.ErrItemsRemaining, s.cursor, s.bank.Len())
	}

	report := s.aggregateLocked()
	if !aggregate.Valid(report) {
		s.failLocked(ReasonNoValidResults, report)
		return cloneReport(*s.report), domain.ErrNoValidResults
	}
	report.Complete = true
	s.status = domain.StatusCompleted
	s.report = &report
	s.awaiting = false
	s.updatedAt = s.now()
	s.broadcastLocked(nil)
	return cloneReport(report), nil
}

// Fail moves an active session to Error and returns the partial report,
// flagged incomplete and carrying reason. Failing an already failed session
// returns the existing report. Completed sessions cannot fail.
func (s *Session) Fail(reason string) (domain.ScoreReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case domain.StatusError:
		return cloneReport(*s.report), nil
	case domain.StatusCompleted:
		return cloneReport(*s.report), domain.ErrSessionClosed
	}
	s.failLocked(reason, s.aggregateLocked())
	return cloneReport(*s.report), nil
}

func (s *Session) failLocked(reason string, report domain.ScoreReport) {
	report.Complete = false
	report.StopReason = reason
	s.status = domain.StatusError
	s.stopReason = reason
	s.report = &report
	s.awaiting = false
	s.updatedAt = s.now()
	s.broadcastLocked(nil)
}

// Report returns the final report of a terminal session, or a live partial
// report over the results recorded so far.
func (s *Session) Report() domain.ScoreReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.report != nil {
		return cloneReport(*s.report)
	}
	return s.aggregateLocked()
}

// cloneReport copies the map and slices so callers never share the cached report.
func cloneReport(r domain.ScoreReport) domain.ScoreReport {
	if r.ItemsAnswered != nil {
		answered := make(map[domain.Subscale]int, len(r.ItemsAnswered))
		for k, v := range r.ItemsAnswered {
			answered[k] = v
		}
		r.ItemsAnswered = answered
	}
	if r.Degraded != nil {
		r.Degraded = append([]domain.Subscale(nil), r.Degraded...)
	}
	if r.CategoryErrors != nil {
		r.CategoryErrors = append([]domain.CategoryError(nil), r.CategoryErrors...)
	}
	return r
}

func (s *Session) aggregateLocked() domain.ScoreReport {
	report, _ := aggregate.Aggregate(s.results, s.scale, s.bank.Len())
	return report
}

// Snapshot returns a deep copy suitable for checkpointing.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transcript := make([]domain.TranscriptEntry, len(s.transcript))
	for i, e := range s.transcript {
		meta := make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			meta[k] = v
		}
		e.Metadata = meta
		transcript[i] = e
	}
	results := make(map[int]domain.ItemResult, len(s.results))
	for id, r := range s.results {
		results[id] = r
	}
	var report *domain.ScoreReport
	if s.report != nil {
		r := cloneReport(*s.report)
		report = &r
	}
	return domain.Snapshot{
		SessionID:        s.id,
		AgentID:          s.agentID,
		Status:           s.status,
		Mode:             s.cfg.Mode,
		Input:            s.cfg.Input,
		CurrentItemIndex: s.cursor,
		TotalItems:       s.bank.Len(),
		Transcript:       transcript,
		Results:          results,
		StopReason:       s.stopReason,
		Report:           report,
		CreatedAt:        s.createdAt,
		UpdatedAt:        s.updatedAt,
	}
}

func (s *Session) subscribe() (<-chan domain.Progress, func()) {
	ch := make(chan domain.Progress, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.progressLocked(nil)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// broadcastLocked never blocks: a full subscriber loses its oldest update.
func (s *Session) broadcastLocked(latest *domain.ItemResult) {
	p := s.progressLocked(latest)
	for ch := range s.subscribers {
		select {
		case ch <- p:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- p
		}
	}
}

func (s *Session) progressLocked(latest *domain.ItemResult) domain.Progress {
	return domain.Progress{
		SessionID:        s.id,
		Status:           s.status,
		CurrentItemIndex: s.cursor,
		TotalItems:       s.bank.Len(),
		Latest:           latest,
	}
}
