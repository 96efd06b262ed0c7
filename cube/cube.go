// Package cube implements the hierarchical address scheme of the index.
//
// The normalized space is covered by a complete 2^d-ary tree. A CubeID is
// the address of one node: a variable-length byte path where each byte
// selects one of the 2^d octants of the parent by comparing the point's
// coordinates against the parent's midpoint per dimension. Addresses are
// arithmetic, not linked nodes: parent is truncation, containment is a
// prefix test, and spatial bounds are recomputed by walking the path.
package cube

import (
	"encoding/hex"
	"fmt"

	"github.com/hupe1980/otree/space"
)

// MaxDimensions bounds the octant encoding to one byte per level.
const MaxDimensions = 8

// CubeID addresses one node of the space-partition tree.
// The zero value is not valid; use Root.
type CubeID struct {
	dims int
	path []byte
}

// Root returns the address of the whole space for the given
// dimensionality.
func Root(dimensions int) (CubeID, error) {
	if dimensions < 1 || dimensions > MaxDimensions {
		return CubeID{}, fmt.Errorf("cube: dimension count %d out of range [1,%d]", dimensions, MaxDimensions)
	}
	return CubeID{dims: dimensions}, nil
}

// Dimensions returns the dimensionality of the space the cube lives in.
func (c CubeID) Dimensions() int { return c.dims }

// Depth returns the cube's level; the root has depth 0.
func (c CubeID) Depth() int { return len(c.path) }

// IsRoot reports whether the cube is the root of the tree.
func (c CubeID) IsRoot() bool { return len(c.path) == 0 }

// Parent returns the cube one level up. ok is false at the root.
func (c CubeID) Parent() (parent CubeID, ok bool) {
	if c.IsRoot() {
		return CubeID{}, false
	}
	return CubeID{dims: c.dims, path: c.path[:len(c.path)-1]}, true
}

// ChildContaining returns the child cube whose half of every dimension
// contains p.
func (c CubeID) ChildContaining(p space.Point) CubeID {
	from, to := c.Bounds()
	var octant byte
	for i := 0; i < c.dims; i++ {
		mid := (from[i] + to[i]) / 2
		if p[i] >= mid {
			octant |= 1 << i
		}
	}
	path := make([]byte, len(c.path)+1)
	copy(path, c.path)
	path[len(c.path)] = octant
	return CubeID{dims: c.dims, path: path}
}

// Bounds returns the cube's per-dimension half-open ranges [from, to).
func (c CubeID) Bounds() (from, to []float64) {
	from = make([]float64, c.dims)
	to = make([]float64, c.dims)
	for i := range to {
		to[i] = 1
	}
	for _, octant := range c.path {
		for i := 0; i < c.dims; i++ {
			mid := (from[i] + to[i]) / 2
			if octant&(1<<i) != 0 {
				from[i] = mid
			} else {
				to[i] = mid
			}
		}
	}
	return from, to
}

// Contains reports whether p lies inside the cube's volume. Ranges are
// half-open except on the upper edge of the space, where the clamped
// maximum coordinate 1.0 is still inside.
func (c CubeID) Contains(p space.Point) bool {
	if len(p) != c.dims {
		return false
	}
	from, to := c.Bounds()
	for i, v := range p {
		if v < from[i] {
			return false
		}
		if v >= to[i] && !(to[i] == 1 && v == 1) {
			return false
		}
	}
	return true
}

// IsAncestorOf reports whether c strictly contains o in the tree.
func (c CubeID) IsAncestorOf(o CubeID) bool {
	if c.dims != o.dims || len(c.path) >= len(o.path) {
		return false
	}
	for i, b := range c.path {
		if o.path[i] != b {
			return false
		}
	}
	return true
}

// Equal reports address equality.
func (c CubeID) Equal(o CubeID) bool {
	if c.dims != o.dims || len(c.path) != len(o.path) {
		return false
	}
	for i, b := range c.path {
		if o.path[i] != b {
			return false
		}
	}
	return true
}

// Compare orders cubes depth-first by level, then lexicographically on
// the address bytes. This gives the deterministic breadth-first traversal
// order used by the analysis pass.
func Compare(a, b CubeID) int {
	if d := a.Depth() - b.Depth(); d != 0 {
		return d
	}
	for i := range a.path {
		if a.path[i] != b.path[i] {
			return int(a.path[i]) - int(b.path[i])
		}
	}
	return 0
}

// String encodes the address losslessly. The root encodes as "root";
// deeper cubes encode their path bytes as hex.
func (c CubeID) String() string {
	if c.IsRoot() {
		return "root"
	}
	return hex.EncodeToString(c.path)
}

// Parse decodes a cube address produced by String for a space of the
// given dimensionality.
func Parse(dimensions int, s string) (CubeID, error) {
	root, err := Root(dimensions)
	if err != nil {
		return CubeID{}, err
	}
	if s == "root" || s == "" {
		return root, nil
	}
	path, err := hex.DecodeString(s)
	if err != nil {
		return CubeID{}, fmt.Errorf("cube: bad address %q: %w", s, err)
	}
	limit := byte(1<<dimensions) - 1
	for _, b := range path {
		if dimensions < MaxDimensions && b > limit {
			return CubeID{}, fmt.Errorf("cube: octant %d out of range for %d dimensions", b, dimensions)
		}
	}
	return CubeID{dims: dimensions, path: path}, nil
}
