package query

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/otree/block"
	"github.com/hupe1980/otree/core"
	"github.com/hupe1980/otree/cube"
	"github.com/hupe1980/otree/index"
)

// Pruner selects the block files of a table that can contain rows
// matching a predicate. Files are addressed by their ordinal in the
// committed file list, so the result composes with other bitmap filters.
type Pruner struct {
	revisions map[core.RevisionID]index.Revision
}

// NewPruner builds a pruner over the table's committed revisions.
func NewPruner(revisions []index.Revision) *Pruner {
	byID := make(map[core.RevisionID]index.Revision, len(revisions))
	for _, r := range revisions {
		byID[r.ID] = r
	}
	return &Pruner{revisions: byID}
}

// Prune returns the ordinals of the files worth reading for p. A file
// survives only if its cube volume intersects the query box and its
// min/max weight tags intersect the weight range, both evaluated under
// the file's own revision. Files of unknown revisions are kept; pruning
// must never produce false negatives.
func (pr *Pruner) Prune(files []block.IndexFile, p Predicate) *roaring.Bitmap {
	spaces := make(map[core.RevisionID]QuerySpace, len(pr.revisions))
	matched := roaring.New()

	for ordinal, f := range files {
		rev, known := pr.revisions[f.Tags.Revision]
		if !known {
			matched.Add(uint32(ordinal))
			continue
		}

		qs, ok := spaces[rev.ID]
		if !ok {
			qs = Extract(rev, p)
			spaces[rev.ID] = qs
		}

		if !qs.Weights.Intersects(f.Tags.MinWeight, f.Tags.MaxWeight) {
			continue
		}
		if matchesBox(qs, rev, f.Tags.Cube) {
			matched.Add(uint32(ordinal))
		}
	}
	return matched
}

// PruneFiles is Prune returning the surviving files themselves.
func (pr *Pruner) PruneFiles(files []block.IndexFile, p Predicate) []block.IndexFile {
	bitmap := pr.Prune(files, p)
	out := make([]block.IndexFile, 0, bitmap.GetCardinality())
	it := bitmap.Iterator()
	for it.HasNext() {
		out = append(out, files[it.Next()])
	}
	return out
}

// matchesBox tests the file's cube volume against the query box. The
// converted revision has no dimensions and no cube geometry, so all its
// files pass; the same holds for unparseable addresses.
func matchesBox(qs QuerySpace, rev index.Revision, address string) bool {
	dims := rev.Dimensions()
	if dims == 0 || qs.Box.IsFull() {
		return true
	}
	c, err := cube.Parse(dims, address)
	if err != nil {
		return true
	}
	from, to := c.Bounds()
	return qs.Box.Intersects(from, to)
}
