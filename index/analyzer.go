package index

import (
	"sort"

	"github.com/hupe1980/otree/cube"
	"github.com/hupe1980/otree/weight"
)

// maxTreeDepth bounds cube descent. Beyond this depth midpoint bisection
// runs out of float64 precision, so routing accepts unconditionally.
const maxTreeDepth = 64

// CubeDomain is the pass-1 statistics of one cube: how many rows the
// batch retains there, how many pass through its subtree, and the
// observed weight extremes of the retained rows.
type CubeDomain struct {
	Cube      cube.CubeID
	Count     int64
	TreeCount int64
	MinWeight weight.Weight
	MaxWeight weight.Weight
}

// DomainMap is the result of the statistics pass: per-cube domains plus
// the derived normalized retention weights broadcast to the routing pass.
// It is immutable after Build returns; parallel workers share it
// read-only.
type DomainMap struct {
	capacity int
	start    cube.CubeID
	domains  map[string]*CubeDomain
}

// BuildDomainMap runs pass 1 over a batch.
//
// Rows are fed in ascending weight order and routed greedily from the
// start cube: the first cube on the row's path with free capacity retains
// it, otherwise the row descends. Feeding by ascending weight makes the
// retained set of every cube exactly the lowest-weight rows destined for
// its subtree, which is what makes the retained rows an unbiased sample.
//
// The correct retention threshold of a cube depends on all rows destined
// for it, so this pass must complete before any row can be assigned.
func BuildDomainMap(records []Record, capacity int, start cube.CubeID) *DomainMap {
	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return records[order[a]].Weight < records[order[b]].Weight
	})

	dm := &DomainMap{
		capacity: capacity,
		start:    start,
		domains:  make(map[string]*CubeDomain),
	}

	for _, idx := range order {
		r := records[idx]
		c := start
		for {
			d := dm.domain(c)
			d.TreeCount++
			if d.Count < int64(capacity) || c.Depth() >= maxTreeDepth {
				if d.Count == 0 || r.Weight < d.MinWeight {
					d.MinWeight = r.Weight
				}
				if d.Count == 0 || r.Weight > d.MaxWeight {
					d.MaxWeight = r.Weight
				}
				d.Count++
				break
			}
			c = c.ChildContaining(r.Point)
		}
	}

	return dm
}

func (dm *DomainMap) domain(c cube.CubeID) *CubeDomain {
	key := c.String()
	d, ok := dm.domains[key]
	if !ok {
		d = &CubeDomain{Cube: c}
		dm.domains[key] = d
	}
	return d
}

// Weights derives the normalized retention weight per cube.
//
// A cube whose subtree population exceeded its capacity retains only rows
// up to its largest accepted weight; an underfilled cube gets a weight
// above 1.0, meaning it retains everything.
func (dm *DomainMap) Weights() map[string]weight.NormalizedWeight {
	out := make(map[string]weight.NormalizedWeight, len(dm.domains))
	for key, d := range dm.domains {
		if d.TreeCount > d.Count {
			out[key] = d.MaxWeight.Fraction()
		} else {
			out[key] = weight.NormalizedWeight(float64(dm.capacity) / float64(max64(d.Count, 1)))
		}
	}
	return out
}

// Counts returns the retained row count per cube.
func (dm *DomainMap) Counts() map[string]int64 {
	out := make(map[string]int64, len(dm.domains))
	for key, d := range dm.domains {
		out[key] = d.Count
	}
	return out
}

// Overflowed returns the cubes whose subtree population exceeded the
// configured capacity.
func (dm *DomainMap) Overflowed() cube.Set {
	out := cube.Set{}
	for _, d := range dm.domains {
		if d.TreeCount > int64(dm.capacity) {
			out.Add(d.Cube)
		}
	}
	return out
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
