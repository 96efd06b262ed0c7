// Package space implements the normalized coordinate model of the index.
//
// Raw column values are mapped into [0,1] per indexed column by a
// Transformation; the resulting coordinate vector is a Point. Points are
// immutable and created once per row at index time.
package space

import "fmt"

// Point is a fixed-length coordinate vector in the unit hypercube,
// one coordinate per indexed column.
type Point []float64

// NewPoint applies the transformations to the raw values in declared
// column order. It is pure: same inputs, same point.
func NewPoint(values []any, transformations []Transformation) (Point, error) {
	if len(values) != len(transformations) {
		return nil, fmt.Errorf("point: %d values for %d transformations", len(values), len(transformations))
	}
	p := make(Point, len(values))
	for i, v := range values {
		p[i] = transformations[i].Transform(v)
	}
	return p, nil
}

// Dimensions returns the dimensionality of the point.
func (p Point) Dimensions() int { return len(p) }

// Range is a half-open interval [From, To) over one normalized dimension.
type Range struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

// Contains reports whether v lies in [r.From, r.To).
func (r Range) Contains(v float64) bool {
	return v >= r.From && v < r.To
}

// Intersects reports whether two half-open ranges overlap.
func (r Range) Intersects(o Range) bool {
	return r.From < o.To && o.From < r.To
}

// Box is a per-dimension set of ranges, a query volume in normalized space.
type Box []Range

// AllSpace returns the box covering the whole unit hypercube.
//
// The upper bound is open, so it sits just above 1.0 to keep points that
// transform exactly to the maximum inside the box.
func AllSpace(dimensions int) Box {
	b := make(Box, dimensions)
	for i := range b {
		b[i] = Range{From: 0, To: maxCoordinate}
	}
	return b
}

// maxCoordinate is the open upper bound of the normalized space. Linear
// transformations clamp to 1.0, which must stay inside every cube on the
// upper edge of the space.
const maxCoordinate = 1.0000001

// IsFull reports whether the box covers the whole space.
func (b Box) IsFull() bool {
	for _, r := range b {
		if r.From > 0 || r.To < maxCoordinate {
			return false
		}
	}
	return true
}

// Intersects reports whether the box overlaps the volume described by the
// per-dimension ranges from/to.
//
// A volume ending at 1.0 sits on the upper edge of the space and holds
// the clamped maximum coordinate, so its upper bound is treated as
// closed, consistent with cube containment.
func (b Box) Intersects(from, to []float64) bool {
	for i, r := range b {
		hi := to[i]
		if hi == 1 {
			hi = maxCoordinate
		}
		if !r.Intersects(Range{From: from[i], To: hi}) {
			return false
		}
	}
	return true
}
