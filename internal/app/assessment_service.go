package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"empathy-assessment-service/internal/domain"
	"empathy-assessment-service/internal/itembank"
	"empathy-assessment-service/internal/scoring"
	"empathy-assessment-service/internal/subject"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// SessionRepository is the registry of live sessions keyed by id (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// ItemLoader loads the assessment catalogue from a backing store.
type ItemLoader interface {
	LoadItems(ctx context.Context) ([]domain.AssessmentItem, error)
}

// CheckpointStore persists session snapshots so partial progress survives a restart.
type CheckpointStore interface {
	Save(ctx context.Context, snap domain.Snapshot) error
	Load(ctx context.Context, sessionID string) (domain.Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
}

// ReportStore archives terminal sessions. LoadReport returns
// domain.ErrSessionNotFound for sessions that were never archived.
type ReportStore interface {
	SaveReport(ctx context.Context, snap domain.Snapshot) error
	LoadReport(ctx context.Context, sessionID string) (domain.Snapshot, error)
}

// DefaultRetainTerminal is how long an archived session stays registered.
const DefaultRetainTerminal = 5 * time.Minute

// Config tunes the orchestrator loop.
type Config struct {
	Mode  domain.Mode
	Input domain.InputKind
	// Retries is the number of extra subject attempts after the first.
	Retries      int
	RetryBackoff time.Duration
	// SubjectTimeout bounds a single subject attempt. Zero means no bound.
	SubjectTimeout time.Duration
	Personality    string

	Renderer    *itembank.Renderer
	Checkpoints CheckpointStore
	Reports     ReportStore
	// RetainTerminal keeps archived sessions in the registry for late
	// readers before they are forgotten. Zero means DefaultRetainTerminal.
	RetainTerminal time.Duration
	Now         func() time.Time
	NewID       func() string
}

// AssessmentService drives sessions through the item bank: render, ask the
// subject, score, record, checkpoint, notify.
type AssessmentService struct {
	sessions SessionRepository
	items    ItemLoader
	subject  subject.Subject
	cfg      Config

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

func NewAssessmentService(sessions SessionRepository, items ItemLoader, subj subject.Subject, cfg Config) *AssessmentService {
	if cfg.Renderer == nil {
		cfg.Renderer = itembank.NewRenderer()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetainTerminal <= 0 {
		cfg.RetainTerminal = DefaultRetainTerminal
	}
	return &AssessmentService{
		sessions: sessions,
		items:    items,
		subject:  subj,
		cfg:      cfg,
		running:  make(map[string]context.CancelFunc),
	}
}

// Start allocates a new session for agentID and checkpoints it.
func (s *AssessmentService) Start(ctx context.Context, agentID string) (*Session, error) {
	bank, err := s.bank(ctx)
	if err != nil {
		return nil, err
	}
	session := NewSessionWithClock(s.cfg.NewID(), agentID, bank, SessionConfig{Mode: s.cfg.Mode, Input: s.cfg.Input}, s.cfg.Now)
	s.sessions.Put(session)
	s.checkpoint(ctx, session)
	return session, nil
}

// Resume rebuilds an active session from a snapshot and registers it.
func (s *AssessmentService) Resume(ctx context.Context, snap domain.Snapshot) (*Session, error) {
	bank, err := s.bank(ctx)
	if err != nil {
		return nil, err
	}
	session, err := RestoreSession(snap, bank, s.cfg.Now)
	if err != nil {
		return nil, err
	}
	s.sessions.Put(session)
	log.Printf("assessment %s: resumed at item %d/%d", session.ID(), session.CurrentItemIndex(), session.TotalItems())
	return session, nil
}

// ResumeFromCheckpoint loads the latest checkpoint for sessionID and resumes it.
func (s *AssessmentService) ResumeFromCheckpoint(ctx context.Context, sessionID string) (*Session, error) {
	if s.cfg.Checkpoints == nil {
		return nil, domain.ErrSessionNotFound
	}
	snap, err := s.cfg.Checkpoints.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.Resume(ctx, snap)
}

// Run steps the session until it reaches a terminal state and returns its report.
func (s *AssessmentService) Run(ctx context.Context, sessionID string) (domain.ScoreReport, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ScoreReport{}, domain.ErrSessionNotFound
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	if _, busy := s.running[sessionID]; busy {
		s.mu.Unlock()
		return session.Report(), domain.ErrAlreadyRunning
	}
	s.running[sessionID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, sessionID)
		s.mu.Unlock()
	}()

	for {
		done, err := s.step(ctx, session)
		if done || err != nil {
			return session.Report(), err
		}
	}
}

// Step runs at most one turn. done is true once the session is terminal.
func (s *AssessmentService) Step(ctx context.Context, sessionID string) (bool, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return false, domain.ErrSessionNotFound
	}
	return s.step(ctx, session)
}

func (s *AssessmentService) step(ctx context.Context, session *Session) (bool, error) {
	turn, ok, err := session.BeginTurn()
	if err != nil {
		if errors.Is(err, domain.ErrSessionClosed) {
			return true, err
		}
		return false, err
	}
	if !ok {
		_, err := session.Finalize()
		s.settle(ctx, session)
		return true, err
	}

	item := turn.Item
	scenario := s.cfg.Renderer.Render(item)
	response, err := s.ask(ctx, session.ID(), subject.Prompt{Scenario: scenario, Personality: s.cfg.Personality})
	if err != nil {
		session.AbortTurn(turn)
		if ctx.Err() != nil {
			s.fail(session, ReasonCanceled)
			return true, fmt.Errorf("assessment %s: %w", session.ID(), ctx.Err())
		}
		s.fail(session, "subject failed: "+err.Error())
		return true, fmt.Errorf("%w: %v", domain.ErrSubjectFailed, err)
	}

	scorer := scoring.New(session.Scale(), session.Config().Input)
	result := scorer.Score(response, item)
	if err := session.CompleteTurn(turn, scenario, response, result); err != nil {
		session.AbortTurn(turn)
		return session.Status().Terminal(), err
	}
	s.checkpoint(ctx, session)
	return false, nil
}

// ask calls the subject with bounded exponential-backoff retries.
func (s *AssessmentService) ask(ctx context.Context, sessionID string, prompt subject.Prompt) (string, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.cfg.RetryBackoff
	exp.MaxInterval = 20 * s.cfg.RetryBackoff
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(s.cfg.Retries)), ctx)

	var response string
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		callCtx, cancel := s.attemptContext(ctx)
		defer cancel()
		out, err := s.subject.Respond(callCtx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			log.Printf("assessment %s: subject attempt %d failed: %v", sessionID, attempt, err)
			return err
		}
		response = out
		return nil
	}, policy)
	return response, err
}

func (s *AssessmentService) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.SubjectTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.SubjectTimeout)
	}
	return context.WithCancel(ctx)
}

// Cancel moves the session to Error and interrupts an in-flight Run.
func (s *AssessmentService) Cancel(sessionID, reason string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if reason == "" {
		reason = ReasonCanceled
	}
	if _, err := session.Fail(reason); err != nil {
		return err
	}

	s.mu.Lock()
	cancel := s.running[sessionID]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.settle(context.Background(), session)
	return nil
}

// Report returns the session's report: final once terminal, partial otherwise.
func (s *AssessmentService) Report(sessionID string) (domain.ScoreReport, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ScoreReport{}, domain.ErrSessionNotFound
	}
	return session.Report(), nil
}

// Snapshot returns the current state of a registered session.
func (s *AssessmentService) Snapshot(sessionID string) (domain.Snapshot, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Snapshot{}, domain.ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

// Lookup returns a registered session's state, falling back to the report
// archive once the session has been forgotten.
func (s *AssessmentService) Lookup(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	if snap, err := s.Snapshot(sessionID); err == nil {
		return snap, nil
	}
	if s.cfg.Reports == nil {
		return domain.Snapshot{}, domain.ErrSessionNotFound
	}
	return s.cfg.Reports.LoadReport(ctx, sessionID)
}

// Subscribe returns a channel of per-turn progress for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *AssessmentService) Subscribe(_ context.Context, sessionID string) (<-chan domain.Progress, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Forget drops a terminal session from the registry. Archived sessions stay
// reachable through Lookup.
func (s *AssessmentService) Forget(sessionID string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if !session.Status().Terminal() {
		return fmt.Errorf("assessment %s is still %s", sessionID, session.Status())
	}
	s.sessions.Delete(sessionID)
	return nil
}

func (s *AssessmentService) bank(ctx context.Context) (*itembank.Bank, error) {
	items, err := s.items.LoadItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	return itembank.New(items)
}

func (s *AssessmentService) fail(session *Session, reason string) {
	if _, err := session.Fail(reason); err != nil {
		log.Printf("assessment %s: fail: %v", session.ID(), err)
	}
	log.Printf("assessment %s: stopped at item %d/%d: %s", session.ID(), session.CurrentItemIndex(), session.TotalItems(), reason)
	s.settle(context.Background(), session)
}

// settle persists a session after a terminal transition. Terminal sessions
// are archived; once the archive holds them their checkpoint is dropped and
// the registry entry expires after RetainTerminal.
func (s *AssessmentService) settle(ctx context.Context, session *Session) {
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if s.cfg.Reports == nil || !session.Status().Terminal() {
		s.checkpoint(ctx, session)
		return
	}
	if err := s.cfg.Reports.SaveReport(ctx, session.Snapshot()); err != nil {
		log.Printf("assessment %s: archive report failed: %v", session.ID(), err)
		s.checkpoint(ctx, session)
		return
	}
	if s.cfg.Checkpoints != nil {
		if err := s.cfg.Checkpoints.Delete(ctx, session.ID()); err != nil {
			log.Printf("assessment %s: drop checkpoint failed: %v", session.ID(), err)
		}
	}
	id := session.ID()
	time.AfterFunc(s.cfg.RetainTerminal, func() {
		if err := s.Forget(id); err == nil {
			log.Printf("assessment %s: forgotten after archive", id)
		}
	})
}

func (s *AssessmentService) checkpoint(ctx context.Context, session *Session) {
	if s.cfg.Checkpoints == nil {
		return
	}
	if err := s.cfg.Checkpoints.Save(ctx, session.Snapshot()); err != nil {
		log.Printf("assessment %s: checkpoint failed: %v", session.ID(), err)
	}
}
