package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when no session is registered under an id.
	ErrSessionNotFound = errors.New("assessment session not found")
	// ErrSessionClosed is returned when a terminal session is asked to take another turn.
	ErrSessionClosed = errors.New("assessment session is closed")
	// ErrTurnInProgress rejects a second turn while the first is awaiting a response.
	ErrTurnInProgress = errors.New("turn already in progress for session")
	// ErrAlreadyRunning rejects a second Run loop on the same session.
	ErrAlreadyRunning = errors.New("assessment session is already running")
	// ErrStaleTurn indicates a recorded item does not match the session cursor.
	ErrStaleTurn = errors.New("item does not match session cursor")
	// ErrItemsRemaining is returned by finalize before the bank is exhausted.
	ErrItemsRemaining = errors.New("assessment has unanswered items")
	// ErrNoValidResults means no item produced a usable score.
	ErrNoValidResults = errors.New("assessment produced no valid results")
	// ErrEmptyItemBank indicates the catalogue has no items.
	ErrEmptyItemBank = errors.New("item bank is empty")
	// ErrInvalidItem flags a catalogue entry with a bad or duplicate id.
	ErrInvalidItem = errors.New("invalid assessment item")
	// ErrInvalidSnapshot is returned when a checkpoint cannot be resumed.
	ErrInvalidSnapshot = errors.New("invalid session snapshot")
	// ErrSubjectFailed wraps the last subject error once retries are exhausted.
	ErrSubjectFailed = errors.New("subject under test failed")
)

// CategoryError reports an item whose subscale the aggregator does not recognize.
type CategoryError struct {
	ItemID   int      `json:"itemId"`
	Subscale Subscale `json:"subscale"`
}

func (e CategoryError) Error() string {
	return fmt.Sprintf("item %d: unknown subscale %q", e.ItemID, e.Subscale)
}
