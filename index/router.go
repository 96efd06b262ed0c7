package index

import (
	"github.com/hupe1980/otree/cube"
	"github.com/hupe1980/otree/weight"
)

// Assignment is one output record of the routing pass: a row bound to a
// target cube together with the cube's derived state tag. During a
// replication pass one input row can yield several assignments.
type Assignment struct {
	Record Record
	Cube   cube.CubeID
	State  CubeState
}

// Router assigns rows to cubes in pass 2. It holds only read-only
// snapshots (the weight map and the status), so one Router is safely
// shared by all parallel workers.
type Router struct {
	weights     map[string]weight.NormalizedWeight
	status      IndexStatus
	start       cube.CubeID
	replication bool
}

// NewRouter builds a router for a regular write starting at the root.
func NewRouter(weights map[string]weight.NormalizedWeight, status IndexStatus, root cube.CubeID) *Router {
	return &Router{weights: weights, status: status, start: root}
}

// NewReplicationRouter builds a router for an optimize pass over the
// given announced cube. Rows that land in an already-replicated cube are
// additionally emitted one level deeper, the controlled over-sampling
// that rebalancing relies on.
func NewReplicationRouter(weights map[string]weight.NormalizedWeight, status IndexStatus, announced cube.CubeID) *Router {
	return &Router{weights: weights, status: status, start: announced, replication: true}
}

// FindTargetCubes routes one record. The walk starts at the router's
// start cube and descends while the record's weight exceeds the cube's
// retention threshold; depth strictly increases, so it terminates.
func (rt *Router) FindTargetCubes(r Record) []Assignment {
	c := rt.start
	for {
		nw, known := rt.weights[c.String()]
		// A cube the analysis pass never saw has no retention limit.
		fits := !known || r.Weight.Fraction() <= nw || c.Depth() >= maxTreeDepth
		if !fits {
			c = c.ChildContaining(r.Point)
			continue
		}

		out := []Assignment{{Record: r, Cube: c, State: rt.status.StateOf(c)}}
		if rt.replication && rt.status.StateOf(c) == StateReplicated {
			child := c.ChildContaining(r.Point)
			out = append(out, Assignment{Record: r, Cube: child, State: rt.status.StateOf(child)})
		}
		return out
	}
}
