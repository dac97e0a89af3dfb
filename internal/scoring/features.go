package scoring

import (
	"strings"
	"unicode/utf8"

	"empathy-assessment-service/internal/domain"
)

// MaxResponseRunes bounds how much of a response is analysed.
const MaxResponseRunes = 4000

// Feature weights. They sum to 1.
const (
	WeightEmotionalRecognition    = 0.30
	WeightPerspectiveTaking       = 0.30
	WeightEmotionalMirroring      = 0.25
	WeightContextualUnderstanding = 0.15
)

// Marker substrings per dimension. Matching is by containment so inflected
// forms ("feeling", "understood", "relatable") count without stemming.
var (
	emotionMarkers = []string{
		"feel", "felt", "emotion", "sad", "happy", "happi", "joy", "angry", "anger",
		"upset", "hurt", "afraid", "scared", "fear", "anxi", "worr", "lonely",
		"grief", "griev", "excite", "frustrat", "disappoint", "proud", "relie",
		"pain", "distress", "cheer", "mood",
	}
	perspectiveMarkers = []string{
		"you", "they", "them", "their", "someone", "other", "understand",
		"understood", "perspective", "imagine", "point", "seem", "notice",
	}
	mirroringMarkers = []string{
		"also", "too", "relate", "resonat", "same", "share", "mirror", "myself",
		"echo", "alongside",
	}
	contextMarkers = []string{
		"because", "context", "given", "situation", "circumstance", "since",
		"reason", "due", "why", "background", "after", "when",
	}
)

// Extract computes the four marker-density features of text. Empty or
// whitespace-only input yields all zeros.
func Extract(text string) domain.Features {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return domain.Features{}
	}
	return domain.Features{
		EmotionalRecognition:    density(tokens, emotionMarkers),
		PerspectiveTaking:       density(tokens, perspectiveMarkers),
		EmotionalMirroring:      density(tokens, mirroringMarkers),
		ContextualUnderstanding: density(tokens, contextMarkers),
	}
}

// Weighted combines features into one value in [0,1].
func Weighted(f domain.Features) float64 {
	return clamp01(f.EmotionalRecognition*WeightEmotionalRecognition +
		f.PerspectiveTaking*WeightPerspectiveTaking +
		f.EmotionalMirroring*WeightEmotionalMirroring +
		f.ContextualUnderstanding*WeightContextualUnderstanding)
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(truncate(text, MaxResponseRunes)))
}

func truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max])
}

func density(tokens []string, markers []string) float64 {
	hits := 0
	for _, tok := range tokens {
		for _, m := range markers {
			if strings.Contains(tok, m) {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(tokens))
}
