// Package subject adapts the agent under test. An adapter receives a rendered
// scenario plus an optional personality instruction and returns free text.
package subject

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Prompt is what the examiner hands to the subject for one item.
type Prompt struct {
	Scenario    string `json:"scenario"`
	Personality string `json:"personality,omitempty"`
}

// Text joins the personality instruction and the scenario.
func (p Prompt) Text() string {
	if strings.TrimSpace(p.Personality) == "" {
		return p.Scenario
	}
	return p.Personality + "\n\n" + p.Scenario
}

// Subject produces a free-text answer to a prompt.
type Subject interface {
	Respond(ctx context.Context, prompt Prompt) (string, error)
}

// Func adapts a plain function.
type Func func(ctx context.Context, prompt Prompt) (string, error)

func (f Func) Respond(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}

// ErrScriptExhausted is returned when a Scripted subject runs out of answers.
var ErrScriptExhausted = errors.New("scripted subject has no answers left")

// Scripted replays canned answers in order.
type Scripted struct {
	mu      sync.Mutex
	answers []string
	next    int
	Prompts []Prompt
}

func NewScripted(answers ...string) *Scripted {
	return &Scripted{answers: answers}
}

func (s *Scripted) Respond(ctx context.Context, prompt Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prompts = append(s.Prompts, prompt)
	if s.next >= len(s.answers) {
		return "", ErrScriptExhausted
	}
	answer := s.answers[s.next]
	s.next++
	return answer, nil
}

// Echo answers with a fixed reply. It is the fallback when no subject is configured.
type Echo struct {
	Reply string
}

func (e Echo) Respond(ctx context.Context, _ Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.Reply, nil
}
