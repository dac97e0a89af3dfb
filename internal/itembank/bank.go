package itembank

import (
	"fmt"
	"sort"

	"empathy-assessment-service/internal/domain"
)

// Bank is the immutable, ordered item catalogue shared by every session.
// It is read-only after construction and needs no locking.
type Bank struct {
	items []domain.AssessmentItem
}

// New validates items and returns them as a bank ordered by id.
func New(items []domain.AssessmentItem) (*Bank, error) {
	if len(items) == 0 {
		return nil, domain.ErrEmptyItemBank
	}
	sorted := make([]domain.AssessmentItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for i, item := range sorted {
		if item.ID <= 0 {
			return nil, fmt.Errorf("%w: id %d must be positive", domain.ErrInvalidItem, item.ID)
		}
		if i > 0 && sorted[i-1].ID == item.ID {
			return nil, fmt.Errorf("%w: duplicate id %d", domain.ErrInvalidItem, item.ID)
		}
	}
	return &Bank{items: sorted}, nil
}

// MustDefault returns the built-in catalogue.
func MustDefault() *Bank {
	b, err := New(Default())
	if err != nil {
		panic(err)
	}
	return b
}

// Items returns the catalogue in canonical traversal order.
func (b *Bank) Items() []domain.AssessmentItem {
	out := make([]domain.AssessmentItem, len(b.items))
	copy(out, b.items)
	return out
}

func (b *Bank) Len() int { return len(b.items) }

// At returns the item at cursor position i.
func (b *Bank) At(i int) (domain.AssessmentItem, bool) {
	if i < 0 || i >= len(b.items) {
		return domain.AssessmentItem{}, false
	}
	return b.items[i], true
}

// ExaminerInstructions opens every session transcript. It is not scored.
const ExaminerInstructions = "You are taking part in a structured conversation about how you relate to " +
	"other people's emotions. Each turn describes a situation or asks about your experience. " +
	"Answer in your own words, as yourself, in a few sentences. There are no right or wrong answers."

const likertGuidance = "Rate how well this describes you from 1 (almost never) to 5 (almost always), then explain briefly."

// Default is the 20-item Perth Empathy Scale catalogue, five items per subscale.
func Default() []domain.AssessmentItem {
	return []domain.AssessmentItem{
		{ID: 1, Subscale: domain.NegCognitive, PromptText: "I can tell when someone is sad, even if they do not say so.", GuidanceText: likertGuidance},
		{ID: 2, Subscale: domain.PosCognitive, PromptText: "I can tell when someone is excited about something, even before they mention it.", GuidanceText: likertGuidance},
		{ID: 3, Subscale: domain.NegAffective, PromptText: "When someone near me is anxious, I start to feel uneasy too.", GuidanceText: likertGuidance},
		{ID: 4, Subscale: domain.PosAffective, PromptText: "Seeing someone else laugh lifts my own mood.", GuidanceText: likertGuidance},
		{ID: 5, Subscale: domain.NegCognitive, PromptText: "I can work out why a friend is angry from the way they act.", GuidanceText: likertGuidance},
		{ID: 6, Subscale: domain.PosCognitive, PromptText: "I notice when someone is quietly proud of what they have done.", GuidanceText: likertGuidance},
		{ID: 7, Subscale: domain.NegAffective, PromptText: "Other people's grief stays with me after they have gone.", GuidanceText: likertGuidance},
		{ID: 8, Subscale: domain.PosAffective, PromptText: "When a friend shares good news, I feel their happiness as if it were mine.", GuidanceText: likertGuidance},
		{ID: 9, Subscale: domain.NegCognitive, ReverseScored: true, PromptText: "I find it hard to know when someone is frightened.", GuidanceText: likertGuidance},
		{ID: 10, Subscale: domain.PosCognitive, PromptText: "I can read contentment in someone's face or voice.", GuidanceText: likertGuidance},
		{ID: 11, Subscale: domain.NegAffective, PromptText: "Hearing about someone's disappointment makes me feel low.", GuidanceText: likertGuidance},
		{ID: 12, Subscale: domain.PosAffective, ReverseScored: true, PromptText: "Other people's excitement leaves me feeling flat.", GuidanceText: likertGuidance},
		{ID: 13, Subscale: domain.NegCognitive, PromptText: "I can usually tell what is upsetting someone before they explain it.", GuidanceText: likertGuidance},
		{ID: 14, Subscale: domain.PosCognitive, ReverseScored: true, PromptText: "I often miss it when someone is feeling hopeful.", GuidanceText: likertGuidance},
		{ID: 15, Subscale: domain.NegAffective, PromptText: "When someone is in pain, I feel a pang of it myself.", GuidanceText: likertGuidance},
		{ID: 16, Subscale: domain.PosAffective, PromptText: "Being around cheerful people makes me feel cheerful.", GuidanceText: likertGuidance},
		{ID: 17, Subscale: domain.NegCognitive, PromptText: "I recognize when someone is hiding embarrassment.", GuidanceText: likertGuidance},
		{ID: 18, Subscale: domain.PosCognitive, PromptText: "I can tell when someone feels grateful toward me.", GuidanceText: likertGuidance},
		{ID: 19, Subscale: domain.NegAffective, ReverseScored: true, PromptText: "Other people's sadness rarely affects how I feel.", GuidanceText: likertGuidance},
		{ID: 20, Subscale: domain.PosAffective, PromptText: "A friend's relief after a hard time brings me relief too.", GuidanceText: likertGuidance},
	}
}
