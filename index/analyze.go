package index

import "github.com/hupe1980/otree/cube"

// Analyze selects overflowed cubes ready for rebalancing.
//
// Rebalancing proceeds root-to-leaf: a cube qualifies only when its
// parent is already replicated, or its parent is the root and the root is
// not itself pending. Cubes already announced or replicated never
// re-qualify.
//
// On a fresh index with nothing overflowed and nothing replicated the
// root itself is returned, bootstrapping the first rebalancing pass.
func (s IndexStatus) Analyze() ([]cube.CubeID, error) {
	root, err := s.Revision.Root()
	if err != nil {
		return nil, err
	}

	var out []cube.CubeID
	for _, c := range s.Overflowed.Values() {
		if s.Announced.Contains(c) || s.Replicated.Contains(c) {
			continue
		}
		if c.IsRoot() {
			out = append(out, c)
			continue
		}
		parent, _ := c.Parent()
		if s.Replicated.Contains(parent) {
			out = append(out, c)
			continue
		}
		if parent.IsRoot() && !s.Announced.Contains(parent) && !s.Overflowed.Contains(parent) {
			out = append(out, c)
		}
	}

	if len(out) == 0 && len(s.Replicated) == 0 && len(s.Announced) == 0 {
		return []cube.CubeID{root}, nil
	}
	return out, nil
}
