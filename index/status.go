package index

import (
	"fmt"

	"github.com/hupe1980/otree/cube"
)

// CubeState is the rebalancing state of a cube. States are derived from
// the announced/replicated sets at read time, never stored as a mutable
// per-row field.
type CubeState int

const (
	// StateFlooded is the default: the cube is not a rebalancing
	// candidate yet.
	StateFlooded CubeState = iota

	// StateAnnounced marks a cube selected by analyze, pending
	// replication.
	StateAnnounced

	// StateReplicated marks a cube whose rows optimize has already
	// rebalanced into its children.
	StateReplicated
)

// String returns the persisted tag form of the state.
func (s CubeState) String() string {
	switch s {
	case StateFlooded:
		return "FLOODED"
	case StateAnnounced:
		return "ANNOUNCED"
	case StateReplicated:
		return "REPLICATED"
	default:
		return "UNKNOWN"
	}
}

// ParseCubeState decodes a persisted state tag.
func ParseCubeState(s string) (CubeState, error) {
	switch s {
	case "FLOODED":
		return StateFlooded, nil
	case "ANNOUNCED":
		return StateAnnounced, nil
	case "REPLICATED":
		return StateReplicated, nil
	default:
		return StateFlooded, fmt.Errorf("unknown cube state %q", s)
	}
}

// IndexStatus is the full index state of a table at one point in time:
// the active revision plus the three cube sets driving analyze/optimize.
// It is reconstructed fresh per operation from persisted metadata and
// never mutated in place.
type IndexStatus struct {
	Revision   Revision
	Overflowed cube.Set
	Announced  cube.Set
	Replicated cube.Set
}

// NewStatus returns an empty status for the given revision.
func NewStatus(rev Revision) IndexStatus {
	return IndexStatus{
		Revision:   rev,
		Overflowed: cube.Set{},
		Announced:  cube.Set{},
		Replicated: cube.Set{},
	}
}

// StateOf derives a cube's state by membership test.
func (s IndexStatus) StateOf(c cube.CubeID) CubeState {
	switch {
	case s.Replicated.Contains(c):
		return StateReplicated
	case s.Announced.Contains(c):
		return StateAnnounced
	default:
		return StateFlooded
	}
}

// AddAnnouncements folds cubes announced by a concurrent writer into a
// copy of the status. Cubes already replicated stay replicated.
func (s IndexStatus) AddAnnouncements(cubes []cube.CubeID) IndexStatus {
	announced := s.Announced.Clone()
	for _, c := range cubes {
		if !s.Replicated.Contains(c) {
			announced.Add(c)
		}
	}
	next := s
	next.Announced = announced
	return next
}

// Dependencies returns the announced/replicated cube set this status
// relies on. A concurrent commit touching any of these cubes makes a
// conflict unsolvable.
func (s IndexStatus) Dependencies() cube.Set {
	return s.Announced.Union(s.Replicated)
}
