package scoring

import (
	"strconv"
	"strings"
	"unicode"

	"empathy-assessment-service/internal/domain"
)

// Scorer turns a subject's answer to an item into an ItemResult. Both input
// adapters share the same scale mapping and reverse-scoring step.
type Scorer interface {
	FromFreeText(text string, item domain.AssessmentItem) domain.ItemResult
	FromLikert(value int, item domain.AssessmentItem) domain.ItemResult
}

var _ Scorer = (*ResponseScorer)(nil)

// Likert bounds for self-rated answers.
const (
	LikertMin = 1
	LikertMax = 5
)

// ResponseScorer is the default Scorer. It never fails: malformed input
// produces an all-zero-feature result.
type ResponseScorer struct {
	scale Scale
	input domain.InputKind
}

// New returns a scorer reporting on scale. input selects how Score reads raw
// responses.
func New(scale Scale, input domain.InputKind) *ResponseScorer {
	if input == "" {
		input = domain.InputText
	}
	return &ResponseScorer{scale: scale, input: input}
}

// Scale returns the output scale.
func (s *ResponseScorer) Scale() Scale { return s.scale }

// Score accepts whatever the subject produced. Non-text values score as empty.
// In Likert input mode a leading 1-5 rating is used when present, otherwise
// the text is analysed.
func (s *ResponseScorer) Score(response any, item domain.AssessmentItem) domain.ItemResult {
	text, ok := asText(response)
	if !ok {
		return s.empty("", item, domain.InputText)
	}
	if s.input == domain.InputLikert {
		if v, ok := ParseLikert(text); ok {
			res := s.FromLikert(v, item)
			res.Response = text
			return res
		}
	}
	return s.FromFreeText(text, item)
}

// FromFreeText scores text by marker density.
func (s *ResponseScorer) FromFreeText(text string, item domain.AssessmentItem) domain.ItemResult {
	if strings.TrimSpace(text) == "" {
		return s.empty("", item, domain.InputText)
	}
	features := Extract(text)
	return s.finish(domain.ItemResult{
		ItemID:   item.ID,
		Subscale: item.Subscale,
		Response: truncate(text, MaxResponseRunes),
		Features: features,
		Input:    domain.InputText,
	}, Weighted(features), item)
}

// FromLikert scores a 1-5 self rating. Every feature carries the normalized
// rating so the weighted sum equals it.
func (s *ResponseScorer) FromLikert(value int, item domain.AssessmentItem) domain.ItemResult {
	if value < LikertMin || value > LikertMax {
		return s.empty(strconv.Itoa(value), item, domain.InputLikert)
	}
	w := float64(value-LikertMin) / float64(LikertMax-LikertMin)
	return s.finish(domain.ItemResult{
		ItemID:   item.ID,
		Subscale: item.Subscale,
		Response: strconv.Itoa(value),
		Features: domain.Features{
			EmotionalRecognition:    w,
			PerspectiveTaking:       w,
			EmotionalMirroring:      w,
			ContextualUnderstanding: w,
		},
		Input: domain.InputLikert,
	}, w, item)
}

// finish scales, rounds and, for reverse-scored items, reflects the score.
// Reversal happens once, on the rounded forward score, so forward and
// reversed values always sum to Min+Max.
func (s *ResponseScorer) finish(res domain.ItemResult, weighted float64, item domain.AssessmentItem) domain.ItemResult {
	res.WeightedSum = weighted
	res.RawScore = s.scale.Round(s.scale.FromUnit(weighted))
	res.ItemScore = res.RawScore
	if item.ReverseScored {
		res.ItemScore = s.scale.Round(s.scale.Reverse(res.RawScore))
		res.Reversed = true
	}
	return res
}

func (s *ResponseScorer) empty(text string, item domain.AssessmentItem, input domain.InputKind) domain.ItemResult {
	res := s.finish(domain.ItemResult{
		ItemID:   item.ID,
		Subscale: item.Subscale,
		Response: truncate(text, MaxResponseRunes),
		Input:    input,
	}, 0, item)
	res.Empty = true
	return res
}

func asText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case *string:
		if t == nil {
			return "", false
		}
		return *t, true
	case []byte:
		return string(t), true
	case interface{ String() string }:
		return t.String(), true
	}
	return "", false
}

// ParseLikert reads a leading rating such as "4", "4/5" or "4 - often".
func ParseLikert(text string) (int, bool) {
	trimmed := strings.TrimSpace(text)
	end := 0
	for end < len(trimmed) && unicode.IsDigit(rune(trimmed[end])) {
		end++
	}
	if end == 0 {
		return 0, false
	}
	if end < len(trimmed) {
		next := rune(trimmed[end])
		if unicode.IsLetter(next) {
			return 0, false
		}
		decimal := (next == '.' || next == ',') && end+1 < len(trimmed) && unicode.IsDigit(rune(trimmed[end+1]))
		if decimal {
			return 0, false
		}
	}
	v, err := strconv.Atoi(trimmed[:end])
	if err != nil || v < LikertMin || v > LikertMax {
		return 0, false
	}
	return v, true
}
