package index

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/otree/core"
	"github.com/hupe1980/otree/cube"
	"github.com/hupe1980/otree/exec"
	"github.com/hupe1980/otree/space"
)

// Indexer runs the two-pass weight assignment over row batches. Pass 1
// (domain statistics) is sequential; pass 2 (routing) fans out over the
// pool with a read-only snapshot per worker.
type Indexer struct {
	pool *exec.Pool
}

// NewIndexer creates an indexer on the given pool.
func NewIndexer(pool *exec.Pool) *Indexer {
	return &Indexer{pool: pool}
}

// Index assigns a batch of prepared records to cubes for a regular
// write. It returns the tagged assignments alongside the TableChanges
// diff describing the write.
func (ix *Indexer) Index(ctx context.Context, records []Record, status IndexStatus) ([]Assignment, TableChanges, error) {
	root, err := status.Revision.Root()
	if err != nil {
		return nil, TableChanges{}, err
	}

	dm := BuildDomainMap(records, status.Revision.DesiredCubeSize, root)
	weights := dm.Weights()
	router := NewRouter(weights, status, root)

	assignments, err := exec.FlatMap(ctx, ix.pool, records, func(_ context.Context, r Record) ([]Assignment, error) {
		return router.FindTargetCubes(r), nil
	})
	if err != nil {
		return nil, TableChanges{}, err
	}

	changes := TableChanges{
		Revision:        status.Revision,
		CubeWeights:     weights,
		CubeCounts:      dm.Counts(),
		OverflowedDelta: dm.Overflowed(),
		AnnouncedDelta:  cube.Set{},
		ReplicatedDelta: cube.Set{},
		Dependencies:    status.Dependencies(),
	}
	return assignments, changes, nil
}

// Optimize re-assigns the rows of an announced cube in replication mode:
// rows are routed starting at the announced cube, and rows landing in
// already-replicated cubes spill one level deeper. The announced cube is
// marked replicated in the resulting diff.
func (ix *Indexer) Optimize(ctx context.Context, records []Record, status IndexStatus, announced cube.CubeID) ([]Assignment, TableChanges, error) {
	dm := BuildDomainMap(records, status.Revision.DesiredCubeSize, announced)
	weights := dm.Weights()

	// The announced cube is replicated by this very pass; routing must
	// already see it that way so its rows spill into the children.
	replicating := status
	replicating.Replicated = status.Replicated.Clone().Add(announced)

	router := NewReplicationRouter(weights, replicating, announced)

	assignments, err := exec.FlatMap(ctx, ix.pool, records, func(_ context.Context, r Record) ([]Assignment, error) {
		return router.FindTargetCubes(r), nil
	})
	if err != nil {
		return nil, TableChanges{}, err
	}

	changes := TableChanges{
		IsReplication:   true,
		Revision:        status.Revision,
		CubeWeights:     weights,
		CubeCounts:      dm.Counts(),
		OverflowedDelta: dm.Overflowed(),
		AnnouncedDelta:  cube.Set{},
		ReplicatedDelta: cube.NewSet(announced),
		Dependencies:    status.Dependencies(),
	}
	return assignments, changes, nil
}

// PrepareRecords computes points and weights for a raw batch in parallel.
func (ix *Indexer) PrepareRecords(ctx context.Context, binder *Binder, rows []core.Row) ([]Record, error) {
	return exec.Map(ctx, ix.pool, rows, func(_ context.Context, row core.Row) (Record, error) {
		return binder.Record(row)
	})
}

// ComputeRevisionChanges decides whether a batch requires a new revision.
//
// The first indexed write of a table always mints one. Later writes mint
// one only when the desired cube size changed or a column's observed
// domain supersedes the current transformation beyond its merge slack; in
// that case the new revision carries the merged transformations.
func ComputeRevisionChanges(current *Revision, tableID core.TableID, desiredCubeSize int, transformers []space.Transformer, stats map[string]space.ColumnStats) (Revision, bool, error) {
	if len(transformers) == 0 {
		return Revision{}, false, fmt.Errorf("%w: no columns to index", ErrConfiguration)
	}

	if current == nil || current.IsConverted() && len(current.Transformers) == 0 {
		rev, err := NewRevision(tableID, desiredCubeSize, transformers, stats)
		if err != nil {
			return Revision{}, false, fmt.Errorf("%w: %w", ErrData, err)
		}
		if current != nil {
			rev.ID = current.ID + 1
		}
		return rev, true, nil
	}

	if len(transformers) != len(current.Transformers) {
		return Revision{}, false, fmt.Errorf("%w: indexed columns changed from %v", ErrConfiguration, current.ColumnNames())
	}
	for i, t := range transformers {
		if t.Column != current.Transformers[i].Column {
			return Revision{}, false, fmt.Errorf("%w: indexed columns changed from %v", ErrConfiguration, current.ColumnNames())
		}
	}

	superseded := false
	merged := make(space.Transformations, len(current.Transformations))
	for i, tr := range transformers {
		candidate, err := tr.MakeTransformation(stats[tr.Column])
		if err != nil {
			return Revision{}, false, fmt.Errorf("%w: column %q: %w", ErrData, tr.Column, err)
		}
		existing := current.Transformations[i]
		if existing.SupersededBy(candidate) {
			superseded = true
			merged[i] = existing.Merge(candidate)
		} else {
			merged[i] = existing
		}
	}

	if !superseded && desiredCubeSize == current.DesiredCubeSize {
		return *current, false, nil
	}

	next := *current
	next.ID = current.ID + 1
	next.Timestamp = time.Now().UnixMilli()
	next.DesiredCubeSize = desiredCubeSize
	next.Transformations = merged
	return next, true, nil
}
