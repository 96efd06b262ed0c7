// Package weight implements the per-row sampling key of the index.
//
// A Weight is a 32-bit integer derived deterministically from a row's
// indexed column values. Smaller weights are retained earlier: selecting
// rows with Weight below Fraction(f) approximates a uniform f-fraction
// sample of the data.
package weight

import "math"

// Weight is the per-row sampling key. Smaller value = higher retention
// priority.
type Weight int32

const (
	// MinValue is the smallest possible weight.
	MinValue Weight = math.MinInt32

	// MaxValue is the largest possible weight.
	MaxValue Weight = math.MaxInt32
)

// span is the size of the weight domain as a float.
const span = float64(math.MaxInt32) - float64(math.MinInt32)

// NormalizedWeight is a weight expressed as a fraction of the domain.
// Values above 1.0 are legal and mean "retain everything": they arise for
// cubes whose natural population is below the desired cube size.
type NormalizedWeight float64

// Fraction returns w's position in the weight domain as a value in [0,1].
func (w Weight) Fraction() NormalizedWeight {
	return NormalizedWeight((float64(w) - float64(math.MinInt32)) / span)
}

// FromFraction maps a sampling fraction in [0,1] to the corresponding
// weight threshold. Fractions outside [0,1] are clamped.
func FromFraction(f float64) Weight {
	if f <= 0 {
		return MinValue
	}
	if f >= 1 {
		return MaxValue
	}
	return Weight(float64(math.MinInt32) + f*span)
}

// Range is a half-open weight interval [From, To).
type Range struct {
	From Weight `json:"from"`
	To   Weight `json:"to"`
}

// FullRange covers the whole weight domain.
func FullRange() Range {
	return Range{From: MinValue, To: MaxValue}
}

// IsFull reports whether r covers the whole domain.
func (r Range) IsFull() bool {
	return r.From == MinValue && r.To == MaxValue
}

// Intersects reports whether [r.From, r.To) and [min, max] overlap.
// The file side is a closed interval: min/max are observed extremes.
func (r Range) Intersects(min, max Weight) bool {
	return r.From <= max && min < r.To
}
