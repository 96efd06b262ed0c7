package index

import (
	"github.com/hupe1980/otree/cube"
	"github.com/hupe1980/otree/weight"
)

// TableChanges is the diff one write or optimize pass produces. It is the
// unit of atomic commit: the external writer turns it into file actions
// and the metadata committer persists both together or not at all.
type TableChanges struct {
	// IsNewRevision marks writes that introduce a revision, either the
	// table's first or one superseding the previous transformations.
	IsNewRevision bool `json:"isNewRevision"`

	// IsReplication marks optimize passes.
	IsReplication bool `json:"isReplication"`

	Revision Revision `json:"revision"`

	// CubeWeights is the estimated normalized retention weight per cube
	// address, from the analysis pass.
	CubeWeights map[string]weight.NormalizedWeight `json:"cubeWeights"`

	// CubeCounts is the estimated retained row count per cube address.
	CubeCounts map[string]int64 `json:"cubeCounts"`

	// OverflowedDelta are cubes newly observed over capacity.
	OverflowedDelta cube.Set `json:"-"`

	// ReplicatedDelta are cubes this pass finished replicating.
	ReplicatedDelta cube.Set `json:"-"`

	// AnnouncedDelta are announcements this writer folded in.
	AnnouncedDelta cube.Set `json:"-"`

	// Dependencies is the announced/replicated set this write was
	// computed against; used by the conflict check.
	Dependencies cube.Set `json:"-"`
}

// Deltas returns the persisted form of the cube set deltas: plain
// address lists, decodable against the revision's dimension count.
func (c TableChanges) Deltas() map[string][]string {
	return map[string][]string{
		"overflowed": c.OverflowedDelta.Strings(),
		"replicated": c.ReplicatedDelta.Strings(),
		"announced":  c.AnnouncedDelta.Strings(),
		"dependsOn":  c.Dependencies.Strings(),
	}
}

// TouchedCubes returns every cube this change writes to, the set another
// writer's conflict check runs against.
func (c TableChanges) TouchedCubes() cube.Set {
	dims := c.Revision.Dimensions()
	out := cube.Set{}
	for addr := range c.CubeWeights {
		if id, err := cube.Parse(dims, addr); err == nil {
			out.Add(id)
		}
	}
	return out.Union(c.ReplicatedDelta).Union(c.AnnouncedDelta)
}
