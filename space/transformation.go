package space

import (
	"fmt"
	"sort"
)

// Transformation maps raw column values into [0,1].
//
// A transformation is immutable. When incoming data falls outside a
// transformation's domain, a wider candidate "supersedes" it; the two are
// then merged (union of domains) instead of chaining revisions for every
// small drift.
type Transformation interface {
	// Transform maps a raw value to [0,1]. Nil maps to 0 for linear
	// transformations; out-of-domain values clamp.
	Transform(v any) float64

	// SupersededBy reports whether other covers values this
	// transformation cannot represent without clamping.
	SupersededBy(other Transformation) bool

	// Merge returns a transformation covering the union of both domains.
	Merge(other Transformation) Transformation

	// Kind returns the stable name of the transformation variant,
	// used by persisted metadata.
	Kind() string
}

const (
	// KindLinear names the affine min/max transformation.
	KindLinear = "linear"

	// KindHistogram names the breakpoint-interpolation transformation.
	KindHistogram = "histogram"
)

// Linear is an affine transformation over a numeric [Min, Max] domain.
// Values below Min map to 0, values above Max map to 1, nil maps to 0.
type Linear struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Kind implements Transformation.
func (t Linear) Kind() string { return KindLinear }

// Transform implements Transformation.
func (t Linear) Transform(v any) float64 {
	if v == nil {
		return 0
	}
	x := toFloat(v)
	if t.Max <= t.Min {
		return 0
	}
	switch {
	case x <= t.Min:
		return 0
	case x >= t.Max:
		return 1
	default:
		return (x - t.Min) / (t.Max - t.Min)
	}
}

// SupersededBy implements Transformation.
func (t Linear) SupersededBy(other Transformation) bool {
	o, ok := other.(Linear)
	if !ok {
		return true
	}
	return o.Min < t.Min || o.Max > t.Max
}

// Merge implements Transformation. The result covers the union of both
// domains.
func (t Linear) Merge(other Transformation) Transformation {
	o, ok := other.(Linear)
	if !ok {
		return other
	}
	merged := t
	if o.Min < merged.Min {
		merged.Min = o.Min
	}
	if o.Max > merged.Max {
		merged.Max = o.Max
	}
	return merged
}

// Histogram interpolates string values over a sorted breakpoint array.
// It is meant for low-cardinality string columns where a numeric range
// is meaningless.
//
// transform(Breakpoints[i]) reproduces the i-th normalized rank exactly;
// unknown values map to the midpoint of their bracket so that ordering is
// preserved.
type Histogram struct {
	Breakpoints []string `json:"breakpoints"`
}

// ErrTooFewBreakpoints is returned by NewHistogram for degenerate inputs.
var ErrTooFewBreakpoints = fmt.Errorf("histogram requires at least two breakpoints")

// NewHistogram builds a histogram transformation. Breakpoints are sorted
// and deduplicated. Fewer than two distinct breakpoints is a data error:
// a one-bucket histogram cannot order anything.
func NewHistogram(breakpoints []string) (Histogram, error) {
	bp := append([]string(nil), breakpoints...)
	sort.Strings(bp)
	bp = dedupe(bp)
	if len(bp) < 2 {
		return Histogram{}, ErrTooFewBreakpoints
	}
	return Histogram{Breakpoints: bp}, nil
}

// Kind implements Transformation.
func (t Histogram) Kind() string { return KindHistogram }

// Transform implements Transformation.
func (t Histogram) Transform(v any) float64 {
	if v == nil {
		return 0
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprintf("%v", v)
	}
	n := len(t.Breakpoints)
	if n < 2 {
		return 0
	}
	i := sort.SearchStrings(t.Breakpoints, s)
	switch {
	case i >= n:
		return 1
	case t.Breakpoints[i] == s:
		return float64(i) / float64(n-1)
	case i == 0:
		return 0
	default:
		// Unknown value between two breakpoints: midpoint of the bracket.
		return (float64(i-1) + 0.5) / float64(n-1)
	}
}

// SupersededBy implements Transformation.
func (t Histogram) SupersededBy(other Transformation) bool {
	o, ok := other.(Histogram)
	if !ok {
		return true
	}
	known := make(map[string]struct{}, len(t.Breakpoints))
	for _, b := range t.Breakpoints {
		known[b] = struct{}{}
	}
	for _, b := range o.Breakpoints {
		if _, ok := known[b]; !ok {
			return true
		}
	}
	return false
}

// Merge implements Transformation. The merged histogram covers the union
// of both breakpoint sets.
func (t Histogram) Merge(other Transformation) Transformation {
	o, ok := other.(Histogram)
	if !ok {
		return other
	}
	union := append(append([]string(nil), t.Breakpoints...), o.Breakpoints...)
	sort.Strings(union)
	return Histogram{Breakpoints: dedupe(union)}
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return 0
	}
}
