package itembank

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"empathy-assessment-service/internal/domain"
)

const promptPlaceholder = "{prompt}"

// Renderer turns items into scenario text, varying the examiner's phrasing
// across presentations without changing what the item measures.
type Renderer struct {
	variants map[domain.Subscale][]string

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRenderer uses the built-in variants and a time-seeded source.
func NewRenderer() *Renderer {
	return NewRendererWithRand(DefaultVariants(), rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewRendererWithRand allows deterministic selection in tests.
func NewRendererWithRand(variants map[domain.Subscale][]string, rnd *rand.Rand) *Renderer {
	if variants == nil {
		variants = map[domain.Subscale][]string{}
	}
	return &Renderer{variants: variants, rnd: rnd}
}

// Render picks a variant for the item's subscale uniformly at random. Items
// whose subscale has no variants render as their raw prompt text.
func (r *Renderer) Render(item domain.AssessmentItem) string {
	options := r.variants[item.Subscale]
	if len(options) == 0 {
		return item.PromptText
	}

	r.mu.Lock()
	idx := r.rnd.Intn(len(options))
	r.mu.Unlock()

	text := options[idx]
	if strings.Contains(text, promptPlaceholder) {
		text = strings.ReplaceAll(text, promptPlaceholder, item.PromptText)
	} else {
		text = text + "\n\n" + item.PromptText
	}
	if item.GuidanceText != "" {
		text = text + "\n" + item.GuidanceText
	}
	return text
}

// DefaultVariants holds the pre-authored scenario framings per subscale.
func DefaultVariants() map[domain.Subscale][]string {
	return map[domain.Subscale][]string{
		domain.NegCognitive: {
			"A colleague comes back from a meeting, sits down without a word and stares at the screen. Think about how you read moments like this. {prompt}",
			"Your friend says \"I'm fine\" but avoids looking at you. Consider how you would pick up on what is going on. {prompt}",
			"Someone in a group chat has gone quiet after a heated exchange. Reflect on how you notice these shifts. {prompt}",
		},
		domain.PosCognitive: {
			"A friend walks in smiling and fidgeting with their phone, clearly holding back some news. Think about how you notice this. {prompt}",
			"Your teammate finishes a difficult project and leans back with a small grin. Consider how you read that moment. {prompt}",
			"A relative keeps glancing at a letter they have just opened, looking lighter than before. Reflect on what you pick up on. {prompt}",
		},
		domain.NegAffective: {
			"A stranger on the train is crying quietly into their sleeve. Describe how being near that affects you. {prompt}",
			"Your friend tells you their pet died this morning. Think about what you feel while they talk. {prompt}",
			"A coworker is panicking about a deadline next to you. Reflect on what happens to your own mood. {prompt}",
		},
		domain.PosAffective: {
			"Your neighbour runs over to tell you they got the job they wanted. Describe how that lands with you. {prompt}",
			"At a party, a group near you bursts out laughing at a shared joke. Think about how it affects your mood. {prompt}",
			"A friend who has been unwell calls to say the tests came back clear. Reflect on what you feel. {prompt}",
		},
	}
}
