// Package block writes and reads the index's immutable block files: rows
// grouped by target cube, compressed, checksummed, and tagged with the
// metadata other tools must honor to stay compatible.
package block

import (
	"fmt"
	"strconv"

	"github.com/hupe1980/otree/core"
	"github.com/hupe1980/otree/cube"
	"github.com/hupe1980/otree/index"
	"github.com/hupe1980/otree/weight"
)

// Persisted tag keys. These names are the on-disk contract; renaming any
// of them breaks every reader of existing tables.
const (
	TagCube      = "cube"
	TagMinWeight = "minWeight"
	TagMaxWeight = "maxWeight"
	TagState     = "state"
	TagRevision  = "revision"
	TagRowCount  = "rowCount"
)

// Tags is the per-file metadata of one block file.
type Tags struct {
	Cube      string          `json:"cube"`
	MinWeight weight.Weight   `json:"minWeight"`
	MaxWeight weight.Weight   `json:"maxWeight"`
	State     string          `json:"state"`
	Revision  core.RevisionID `json:"revision"`
	RowCount  int64           `json:"rowCount"`
}

// ToMap renders the tags in their persisted string form.
func (t Tags) ToMap() map[string]string {
	return map[string]string{
		TagCube:      t.Cube,
		TagMinWeight: strconv.FormatInt(int64(t.MinWeight), 10),
		TagMaxWeight: strconv.FormatInt(int64(t.MaxWeight), 10),
		TagState:     t.State,
		TagRevision:  strconv.FormatInt(int64(t.Revision), 10),
		TagRowCount:  strconv.FormatInt(t.RowCount, 10),
	}
}

// TagsFromMap parses persisted string tags.
func TagsFromMap(m map[string]string) (Tags, error) {
	var t Tags
	var ok bool
	if t.Cube, ok = m[TagCube]; !ok {
		return Tags{}, fmt.Errorf("block: missing tag %q", TagCube)
	}
	minW, err := strconv.ParseInt(m[TagMinWeight], 10, 32)
	if err != nil {
		return Tags{}, fmt.Errorf("block: bad tag %q: %w", TagMinWeight, err)
	}
	maxW, err := strconv.ParseInt(m[TagMaxWeight], 10, 32)
	if err != nil {
		return Tags{}, fmt.Errorf("block: bad tag %q: %w", TagMaxWeight, err)
	}
	rev, err := strconv.ParseInt(m[TagRevision], 10, 64)
	if err != nil {
		return Tags{}, fmt.Errorf("block: bad tag %q: %w", TagRevision, err)
	}
	rows, err := strconv.ParseInt(m[TagRowCount], 10, 64)
	if err != nil {
		return Tags{}, fmt.Errorf("block: bad tag %q: %w", TagRowCount, err)
	}
	t.MinWeight = weight.Weight(minW)
	t.MaxWeight = weight.Weight(maxW)
	t.State = m[TagState]
	t.Revision = core.RevisionID(rev)
	t.RowCount = rows
	return t, nil
}

// IndexFile is one committed block file: its blob path plus tags.
type IndexFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	Tags Tags   `json:"tags"`
}

// FileAction is one element of the atomic commit: add or remove a file.
type FileAction struct {
	File   IndexFile `json:"file"`
	Remove bool      `json:"remove,omitempty"`
}

// BuildStatus reconstructs an IndexStatus from a revision and the
// table's committed files. The announced/replicated sets derive from the
// state tags; a cube counts as overflowed once the rows retained across
// its files reach the revision's desired cube size.
func BuildStatus(rev index.Revision, files []IndexFile) index.IndexStatus {
	status := index.NewStatus(rev)
	dims := rev.Dimensions()
	counts := make(map[string]int64)

	for _, f := range files {
		if f.Tags.Revision != rev.ID {
			continue
		}
		c, err := cube.Parse(dims, f.Tags.Cube)
		if err != nil {
			continue
		}
		counts[f.Tags.Cube] += f.Tags.RowCount
		switch f.Tags.State {
		case index.StateAnnounced.String():
			status.Announced.Add(c)
		case index.StateReplicated.String():
			status.Replicated.Add(c)
		}
		if counts[f.Tags.Cube] >= int64(rev.DesiredCubeSize) {
			status.Overflowed.Add(c)
		}
	}
	return status
}
