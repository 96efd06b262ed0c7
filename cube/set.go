package cube

import "sort"

// Set is an immutable-by-convention collection of cubes keyed by address.
// Mutating helpers return the receiver for chaining during construction;
// shared sets must be cloned before modification.
type Set map[string]CubeID

// NewSet builds a set from the given cubes.
func NewSet(cubes ...CubeID) Set {
	s := make(Set, len(cubes))
	for _, c := range cubes {
		s[c.String()] = c
	}
	return s
}

// Add inserts a cube.
func (s Set) Add(c CubeID) Set {
	s[c.String()] = c
	return s
}

// Contains reports membership.
func (s Set) Contains(c CubeID) bool {
	_, ok := s[c.String()]
	return ok
}

// Union returns a new set containing both operands' cubes.
func (s Set) Union(o Set) Set {
	out := make(Set, len(s)+len(o))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Intersects reports whether the two sets share any cube.
func (s Set) Intersects(o Set) bool {
	small, large := s, o
	if len(large) < len(small) {
		small, large = large, small
	}
	for k := range small {
		if _, ok := large[k]; ok {
			return true
		}
	}
	return false
}

// Values returns the cubes in deterministic traversal order.
func (s Set) Values() []CubeID {
	out := make([]CubeID, 0, len(s))
	for _, c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return Compare(out[i], out[j]) < 0 })
	return out
}

// Strings returns the addresses in deterministic traversal order.
func (s Set) Strings() []string {
	values := s.Values()
	out := make([]string, len(values))
	for i, c := range values {
		out[i] = c.String()
	}
	return out
}
