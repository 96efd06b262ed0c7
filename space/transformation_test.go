package space

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearTransform(t *testing.T) {
	lin := Linear{Min: 0, Max: 100}

	tests := []struct {
		name  string
		value any
		want  float64
	}{
		{name: "nil maps to zero", value: nil, want: 0},
		{name: "min", value: float64(0), want: 0},
		{name: "max", value: float64(100), want: 1},
		{name: "midpoint", value: float64(50), want: 0.5},
		{name: "below min clamps", value: float64(-10), want: 0},
		{name: "above max clamps", value: float64(200), want: 1},
		{name: "int value", value: int64(25), want: 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, lin.Transform(tt.value), 1e-9)
		})
	}
}

func TestLinearSupersededBy(t *testing.T) {
	lin := Linear{Min: 0, Max: 100}

	assert.False(t, lin.SupersededBy(Linear{Min: 10, Max: 90}), "narrower domain does not supersede")
	assert.False(t, lin.SupersededBy(Linear{Min: 0, Max: 100}), "identical domain does not supersede")
	assert.True(t, lin.SupersededBy(Linear{Min: -1, Max: 100}))
	assert.True(t, lin.SupersededBy(Linear{Min: 0, Max: 101}))
}

func TestLinearMerge(t *testing.T) {
	lin := Linear{Min: 0, Max: 100}
	merged := lin.Merge(Linear{Min: -50, Max: 80})

	require.IsType(t, Linear{}, merged)
	m := merged.(Linear)
	assert.Equal(t, float64(-50), m.Min)
	assert.Equal(t, float64(100), m.Max)
}

func TestNewHistogram(t *testing.T) {
	_, err := NewHistogram([]string{"only"})
	assert.ErrorIs(t, err, ErrTooFewBreakpoints)

	_, err = NewHistogram([]string{"dup", "dup"})
	assert.ErrorIs(t, err, ErrTooFewBreakpoints, "duplicates collapse before the count check")

	h, err := NewHistogram([]string{"c", "a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, h.Breakpoints, "breakpoints are sorted")
}

func TestHistogramTransform(t *testing.T) {
	h, err := NewHistogram([]string{"a", "b", "c"})
	require.NoError(t, err)

	// Known breakpoints reproduce their exact rank.
	assert.InDelta(t, 0.0, h.Transform("a"), 1e-9)
	assert.InDelta(t, 0.5, h.Transform("b"), 1e-9)
	assert.InDelta(t, 1.0, h.Transform("c"), 1e-9)

	// Out-of-domain values clamp to the edges.
	assert.InDelta(t, 0.0, h.Transform("0"), 1e-9)
	assert.InDelta(t, 1.0, h.Transform("z"), 1e-9)

	// Unknown values land at their bracket's midpoint, preserving order.
	ab := h.Transform("ab")
	bc := h.Transform("bc")
	assert.InDelta(t, 0.25, ab, 1e-9)
	assert.InDelta(t, 0.75, bc, 1e-9)
	assert.Less(t, ab, bc)
}

func TestHistogramSupersededByAndMerge(t *testing.T) {
	h, err := NewHistogram([]string{"a", "c"})
	require.NoError(t, err)

	wider, err := NewHistogram([]string{"a", "c", "d"})
	require.NoError(t, err)

	assert.False(t, h.SupersededBy(h))
	assert.True(t, h.SupersededBy(wider))

	merged := h.Merge(wider)
	require.IsType(t, Histogram{}, merged)
	assert.Equal(t, []string{"a", "c", "d"}, merged.(Histogram).Breakpoints)
}

func TestTransformationsJSONRoundTrip(t *testing.T) {
	h, err := NewHistogram([]string{"x", "y"})
	require.NoError(t, err)

	in := Transformations{
		Linear{Min: -5, Max: 5},
		h,
	}
	data, err := in.MarshalJSON()
	require.NoError(t, err)

	var out Transformations
	require.NoError(t, out.UnmarshalJSON(data))
	require.Len(t, out, 2)
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, in[1], out[1])
}
