// Package index implements the OTree indexing core: revisions, the
// two-pass weight assignment algorithm, the cube state machine and the
// diffs a write produces.
//
// Everything here is modeled as immutable values: a revision or status is
// never mutated, it is replaced by a copy with changes. That keeps the
// optimistic concurrency protocol honest, since conflict detection only
// has to compare old and new values.
package index

import (
	"fmt"
	"time"

	"github.com/hupe1980/otree/core"
	"github.com/hupe1980/otree/cube"
	"github.com/hupe1980/otree/space"
	"github.com/hupe1980/otree/weight"
)

// Revision is one immutable indexing configuration of a table.
type Revision struct {
	ID              core.RevisionID       `json:"id"`
	TableID         core.TableID          `json:"tableId"`
	Timestamp       int64                 `json:"timestamp"` // unix millis
	DesiredCubeSize int                   `json:"desiredCubeSize"`
	Transformers    []space.Transformer   `json:"transformers"`
	Transformations space.Transformations `json:"transformations"`
}

// NewRevision creates the first real revision of a table from batch
// statistics.
func NewRevision(tableID core.TableID, desiredCubeSize int, transformers []space.Transformer, stats map[string]space.ColumnStats) (Revision, error) {
	transformations := make(space.Transformations, len(transformers))
	for i, tr := range transformers {
		t, err := tr.MakeTransformation(stats[tr.Column])
		if err != nil {
			return Revision{}, fmt.Errorf("column %q: %w", tr.Column, err)
		}
		transformations[i] = t
	}
	return Revision{
		ID:              core.ConvertedRevisionID + 1,
		TableID:         tableID,
		Timestamp:       time.Now().UnixMilli(),
		DesiredCubeSize: desiredCubeSize,
		Transformers:    transformers,
		Transformations: transformations,
	}, nil
}

// NewConvertedRevision synthesizes the reserved revision 0 for a table
// written before indexing. It has no transformations; every row maps to
// the root cube.
func NewConvertedRevision(tableID core.TableID, desiredCubeSize int) Revision {
	return Revision{
		ID:              core.ConvertedRevisionID,
		TableID:         tableID,
		Timestamp:       time.Now().UnixMilli(),
		DesiredCubeSize: desiredCubeSize,
	}
}

// IsConverted reports whether this is the reserved legacy revision.
func (r Revision) IsConverted() bool { return r.ID == core.ConvertedRevisionID }

// Dimensions returns the number of indexed columns.
func (r Revision) Dimensions() int { return len(r.Transformers) }

// ColumnNames returns the indexed columns in declared order.
func (r Revision) ColumnNames() []string {
	names := make([]string, len(r.Transformers))
	for i, t := range r.Transformers {
		names[i] = t.Column
	}
	return names
}

// Root returns the root cube of this revision's space.
func (r Revision) Root() (cube.CubeID, error) {
	return cube.Root(r.Dimensions())
}

// columnPositions resolves the indexed columns against a schema.
func (r Revision) columnPositions(schema core.Schema) ([]int, error) {
	pos := make([]int, len(r.Transformers))
	for i, t := range r.Transformers {
		idx := schema.IndexOf(t.Column)
		if idx < 0 {
			return nil, fmt.Errorf("%w: indexed column %q not in schema", ErrConfiguration, t.Column)
		}
		pos[i] = idx
	}
	return pos, nil
}

// Binder precomputes the schema positions of the indexed columns so that
// per-row work is a plain slice walk.
type Binder struct {
	revision  Revision
	positions []int
}

// Bind resolves the revision's columns against a schema.
func (r Revision) Bind(schema core.Schema) (*Binder, error) {
	pos, err := r.columnPositions(schema)
	if err != nil {
		return nil, err
	}
	return &Binder{revision: r, positions: pos}, nil
}

// Record computes the indexed values, point and weight of one row.
//
// Indexed numerics are folded to float64 first: the block codecs widen
// integers on read-back, and a row's weight must be identical whether it
// is computed from the original batch or from re-read block rows.
func (b *Binder) Record(row core.Row) (Record, error) {
	values := make([]any, len(b.positions))
	for i, p := range b.positions {
		values[i] = canonicalValue(row[p])
	}
	point, err := space.NewPoint(values, b.revision.Transformations)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Row:    row,
		Point:  point,
		Weight: weight.Hash(uint32(b.revision.ID), values...),
	}, nil
}

// canonicalValue collapses all numeric types to float64, the
// representation the block codecs decode to.
func canonicalValue(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

// Record is one row prepared for routing: its raw form, normalized point
// and sampling weight.
type Record struct {
	Row    core.Row
	Point  space.Point
	Weight weight.Weight
}
