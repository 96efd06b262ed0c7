package weight

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFraction(t *testing.T) {
	assert.InDelta(t, 0.0, float64(MinValue.Fraction()), 1e-9)
	assert.InDelta(t, 1.0, float64(MaxValue.Fraction()), 1e-9)
	assert.InDelta(t, 0.5, float64(Weight(0).Fraction()), 1e-9)
}

func TestFromFraction(t *testing.T) {
	tests := []struct {
		name     string
		fraction float64
		want     Weight
	}{
		{name: "zero", fraction: 0, want: MinValue},
		{name: "one", fraction: 1, want: MaxValue},
		{name: "below range clamps", fraction: -0.5, want: MinValue},
		{name: "above range clamps", fraction: 1.5, want: MaxValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromFraction(tt.fraction))
		})
	}
}

func TestFractionRoundTrip(t *testing.T) {
	for _, f := range []float64{0.001, 0.1, 0.25, 0.5, 0.75, 0.999} {
		got := float64(FromFraction(f).Fraction())
		assert.InDelta(t, f, got, 1e-6, "fraction %v", f)
	}
}

func TestRangeIntersects(t *testing.T) {
	half := Range{From: MinValue, To: FromFraction(0.5)}

	// File entirely below the upper bound.
	assert.True(t, half.Intersects(MinValue, FromFraction(0.25)))
	// File straddling the bound.
	assert.True(t, half.Intersects(FromFraction(0.4), FromFraction(0.9)))
	// File entirely above.
	assert.False(t, half.Intersects(FromFraction(0.6), MaxValue))
	// Closed file interval: min exactly at the open upper bound misses.
	assert.False(t, half.Intersects(FromFraction(0.5), MaxValue))
	// Full range intersects everything.
	assert.True(t, FullRange().Intersects(MinValue, MinValue))
	assert.True(t, FullRange().IsFull())
}

func TestHashDeterministic(t *testing.T) {
	a := Hash(1, int64(42), "foo", 3.14)
	b := Hash(1, int64(42), "foo", 3.14)
	assert.Equal(t, a, b)
}

func TestHashSeedAndValueSensitivity(t *testing.T) {
	base := Hash(1, int64(42), "foo")

	assert.NotEqual(t, base, Hash(2, int64(42), "foo"), "seed must change the weight")
	assert.NotEqual(t, base, Hash(1, int64(43), "foo"), "value must change the weight")
	assert.NotEqual(t, base, Hash(1, int64(42), "bar"), "value must change the weight")
}

func TestHashTypeTagging(t *testing.T) {
	// The string "42" and the integer 42 must not collide by encoding.
	assert.NotEqual(t, Hash(1, "42"), Hash(1, int64(42)))
	// Nil is a distinct value, not an empty encoding.
	assert.NotEqual(t, Hash(1, nil, "x"), Hash(1, "x"))
}

func TestHashDistribution(t *testing.T) {
	// Weak sanity check: over many values, both halves of the domain
	// should be hit.
	var low, high int
	for i := 0; i < 1000; i++ {
		if Hash(7, int64(i)) < 0 {
			low++
		} else {
			high++
		}
	}
	assert.Greater(t, low, 300)
	assert.Greater(t, high, 300)
}
