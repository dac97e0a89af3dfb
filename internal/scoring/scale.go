package scoring

import (
	"math"

	"empathy-assessment-service/internal/domain"
)

// Scale is an output range for item scores. All scales are affine images of
// the normalized [0,1] weighted sum, so scores convert between them exactly
// (up to rounding).
type Scale struct {
	Name     string  `json:"name"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Decimals int     `json:"decimals"`
}

var (
	// Likert5 is the conversational scale, one decimal place.
	Likert5 = Scale{Name: "likert-5", Min: 1, Max: 5, Decimals: 1}
	// Percent is the self-report scale, whole numbers.
	Percent = Scale{Name: "percent", Min: 0, Max: 100, Decimals: 0}
	// Unit is the normalized scale.
	Unit = Scale{Name: "unit", Min: 0, Max: 1, Decimals: 3}
)

// ScaleFor maps a session mode to its output scale.
func ScaleFor(mode domain.Mode) Scale {
	if mode == domain.ModeSelfReport {
		return Percent
	}
	return Likert5
}

// FromUnit maps w in [0,1] onto the scale.
func (s Scale) FromUnit(w float64) float64 {
	return s.Min + clamp01(w)*(s.Max-s.Min)
}

// ToUnit maps a scale value back onto [0,1].
func (s Scale) ToUnit(v float64) float64 {
	if s.Max == s.Min {
		return 0
	}
	return clamp01((v - s.Min) / (s.Max - s.Min))
}

// Reverse reflects v about the scale midpoint.
func (s Scale) Reverse(v float64) float64 {
	return s.Max + s.Min - v
}

// Round rounds v to the scale's documented precision.
func (s Scale) Round(v float64) float64 {
	p := math.Pow10(s.Decimals)
	return math.Round(v*p) / p
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
