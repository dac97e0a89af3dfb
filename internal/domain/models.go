package domain

import "time"

// Subscale identifies one of the four Perth Empathy Scale dimensions.
type Subscale string

const (
	NegCognitive Subscale = "NCE"
	PosCognitive Subscale = "PCE"
	NegAffective Subscale = "NAE"
	PosAffective Subscale = "PAE"
)

// Subscales returns the four subscales in reporting order.
func Subscales() []Subscale {
	return []Subscale{NegCognitive, PosCognitive, NegAffective, PosAffective}
}

// Valid reports whether s is one of the four known subscales.
func (s Subscale) Valid() bool {
	switch s {
	case NegCognitive, PosCognitive, NegAffective, PosAffective:
		return true
	}
	return false
}

// AssessmentItem is one catalogue entry. Items are seeded once and never mutated.
type AssessmentItem struct {
	ID            int      `json:"id"`
	Subscale      Subscale `json:"subscale"`
	ReverseScored bool     `json:"reverseScored"`
	PromptText    string   `json:"promptText"`
	GuidanceText  string   `json:"guidanceText,omitempty"`
}

// Role tags who produced a transcript entry.
type Role string

const (
	RoleSystem   Role = "system"
	RoleExaminer Role = "examiner"
	RoleSubject  Role = "subject"
)

// TranscriptEntry is an append-only conversation record owned by one session.
type TranscriptEntry struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Features holds the four marker-density features, each in [0,1].
type Features struct {
	EmotionalRecognition    float64 `json:"emotionalRecognition"`
	PerspectiveTaking       float64 `json:"perspectiveTaking"`
	EmotionalMirroring      float64 `json:"emotionalMirroring"`
	ContextualUnderstanding float64 `json:"contextualUnderstanding"`
}

// InputKind says which adapter produced an ItemResult.
type InputKind string

const (
	InputText   InputKind = "text"
	InputLikert InputKind = "likert"
)

// ItemResult is the scored outcome of one completed item.
type ItemResult struct {
	ItemID   int       `json:"itemId"`
	Subscale Subscale  `json:"subscale"`
	Response string    `json:"response"`
	Features Features  `json:"features"`
	Input    InputKind `json:"input"`
	// WeightedSum is the combined feature score in [0,1], before scaling.
	WeightedSum float64 `json:"weightedSum"`
	// RawScore is WeightedSum on the output scale, rounded, before reverse-scoring.
	RawScore  float64 `json:"rawScore"`
	ItemScore float64 `json:"itemScore"`
	Reversed  bool    `json:"reversed"`
	// Empty marks a malformed or blank response that was scored as all-zero features.
	Empty bool `json:"empty,omitempty"`
}

// Status is the lifecycle state of an assessment session.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Terminal reports whether no further turns are accepted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Mode selects the output granularity of text scoring.
type Mode string

const (
	// ModeConversational scores on the 1-5 scale.
	ModeConversational Mode = "conversational"
	// ModeSelfReport scores on the 0-100 scale.
	ModeSelfReport Mode = "self-report"
)

// ScoreReport is the aggregated result of a session.
//
// A subscale with no answered items reports 0 and is listed in Degraded; that
// 0 is a missing-data sentinel, not a measured score. ItemsAnswered tells the
// two cases apart.
type ScoreReport struct {
	NCEScore   float64 `json:"nceScore"`
	PCEScore   float64 `json:"pceScore"`
	NAEScore   float64 `json:"naeScore"`
	PAEScore   float64 `json:"paeScore"`
	TotalScore float64 `json:"totalScore"`
	Scale      string  `json:"scale"`

	ItemsAnswered  map[Subscale]int `json:"itemsAnswered"`
	Degraded       []Subscale       `json:"degraded,omitempty"`
	ItemsCompleted int              `json:"itemsCompleted"`
	TotalItems     int              `json:"totalItems"`
	Complete       bool             `json:"complete"`
	StopReason     string           `json:"stopReason,omitempty"`
	CategoryErrors []CategoryError  `json:"categoryErrors,omitempty"`
}

// SubscaleScore returns the average reported for s.
func (r ScoreReport) SubscaleScore(s Subscale) float64 {
	switch s {
	case NegCognitive:
		return r.NCEScore
	case PosCognitive:
		return r.PCEScore
	case NegAffective:
		return r.NAEScore
	case PosAffective:
		return r.PAEScore
	}
	return 0
}

// Snapshot is the serializable checkpoint emitted after every turn.
type Snapshot struct {
	SessionID        string             `json:"sessionId"`
	AgentID          string             `json:"agentId"`
	Status           Status             `json:"status"`
	Mode             Mode               `json:"mode"`
	Input            InputKind          `json:"input"`
	CurrentItemIndex int                `json:"currentItemIndex"`
	TotalItems       int                `json:"totalItems"`
	Transcript       []TranscriptEntry  `json:"transcript"`
	Results          map[int]ItemResult `json:"results"`
	StopReason       string             `json:"stopReason,omitempty"`
	Report           *ScoreReport       `json:"report,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// Progress is the per-turn observer notification.
type Progress struct {
	SessionID        string      `json:"sessionId"`
	Status           Status      `json:"status"`
	CurrentItemIndex int         `json:"currentItemIndex"`
	TotalItems       int         `json:"totalItems"`
	Latest           *ItemResult `json:"latest,omitempty"`
}
