package otree

import (
	"context"
	"fmt"

	"github.com/hupe1980/otree/block"
	"github.com/hupe1980/otree/core"
	"github.com/hupe1980/otree/cube"
	"github.com/hupe1980/otree/index"
	"github.com/hupe1980/otree/space"
	"github.com/hupe1980/otree/txlog"
)

// Append indexes and commits a batch of rows. The batch is routed into
// cubes under the table's current revision; if the batch's value domain
// outgrows the revision's transformations beyond their merge slack, a
// new revision is minted as part of the same commit.
//
// Concurrent appends are safe: the commit runs under the optimistic
// retry protocol and fails with ErrConcurrencyConflict only when
// contention overlaps this write's rebalancing dependencies or outlasts
// the retry budget.
func (ot *OTree) Append(ctx context.Context, schema core.Schema, rows []core.Row) error {
	if len(rows) == 0 {
		return nil
	}
	update, err := ot.append(ctx, schema, rows)
	ot.logger.LogAppend(ctx, len(rows), len(update.Actions), update.BaseVersion+1, err)
	return translateError(ot.tableID, err)
}

func (ot *OTree) append(ctx context.Context, schema core.Schema, rows []core.Row) (txlog.Update, error) {
	for i, row := range rows {
		if err := schema.Validate(row); err != nil {
			return txlog.Update{}, fmt.Errorf("%w: row %d: %w", index.ErrData, i, err)
		}
	}

	if len(ot.opts.columns) == 0 {
		return ot.appendConverted(ctx, schema, rows)
	}

	names := make([]string, len(ot.opts.columns))
	for i, c := range ot.opts.columns {
		names[i] = c.Column
	}
	stats, err := space.CollectStats(schema, rows, names)
	if err != nil {
		return txlog.Update{}, fmt.Errorf("%w: %w", index.ErrConfiguration, err)
	}

	return txlog.UpdateWithTransaction(ctx, ot.log, ot.tableID, ot.opts.commitRetries, func(ctx context.Context, snap txlog.Snapshot) (txlog.Update, error) {
		var current *index.Revision
		if r, ok := snap.LatestRevision(); ok {
			current = &r
		}
		rev, isNew, err := index.ComputeRevisionChanges(current, ot.tableID, ot.opts.desiredCubeSize, ot.opts.columns, stats)
		if err != nil {
			return txlog.Update{}, err
		}

		var status index.IndexStatus
		if isNew {
			status = index.NewStatus(rev)
		} else {
			status = block.BuildStatus(rev, snap.Files)
		}

		// Fold in cubes other writers announced since our snapshot, so
		// routing honors rebalancing that has not committed yet.
		session, err := ot.keeper.BeginWrite(ctx, ot.tableID, rev.ID)
		if err != nil {
			return txlog.Update{}, err
		}
		status = status.AddAnnouncements(session.Announced.Values())

		binder, err := rev.Bind(schema)
		if err != nil {
			return txlog.Update{}, err
		}
		records, err := ot.indexer.PrepareRecords(ctx, binder, rows)
		if err != nil {
			return txlog.Update{}, err
		}
		assignments, changes, err := ot.indexer.Index(ctx, records, status)
		if err != nil {
			return txlog.Update{}, err
		}
		changes.IsNewRevision = isNew

		files, err := ot.writer.Write(ctx, ot.tableID, assignments, changes)
		if err != nil {
			return txlog.Update{}, err
		}
		actions := make([]block.FileAction, len(files))
		for i, f := range files {
			actions[i] = block.FileAction{File: f}
		}
		return txlog.Update{Schema: schema, Changes: changes, Actions: actions}, nil
	})
}

// appendConverted handles tables without indexed columns: rows land in a
// single root block under the reserved converted revision. Enabling
// indexing later picks them up through Optimize of the minted revision.
func (ot *OTree) appendConverted(ctx context.Context, schema core.Schema, rows []core.Row) (txlog.Update, error) {
	file, err := ot.writer.WriteConverted(ctx, ot.tableID, rows)
	if err != nil {
		return txlog.Update{}, err
	}
	return txlog.UpdateWithTransaction(ctx, ot.log, ot.tableID, ot.opts.commitRetries, func(_ context.Context, snap txlog.Snapshot) (txlog.Update, error) {
		changes := index.TableChanges{}
		if _, exists := snap.LatestRevision(); !exists {
			changes.IsNewRevision = true
			changes.Revision = index.NewConvertedRevision(ot.tableID, ot.opts.desiredCubeSize)
		}
		return txlog.Update{
			Schema:  schema,
			Changes: changes,
			Actions: []block.FileAction{{File: file}},
		}, nil
	})
}

// Optimize replicates one announced cube: its committed rows are re-read
// and re-routed in replication mode, spilling copies one level deeper,
// and the cube is marked replicated in the same commit.
//
// Runs under the background-job and IO limits of the resource
// configuration.
func (ot *OTree) Optimize(ctx context.Context, announced cube.CubeID) error {
	if err := ot.res.AcquireJob(ctx); err != nil {
		return translateError(ot.tableID, err)
	}
	defer ot.res.ReleaseJob()

	var replicated int
	_, err := txlog.UpdateWithTransaction(ctx, ot.log, ot.tableID, ot.opts.commitRetries, func(ctx context.Context, snap txlog.Snapshot) (txlog.Update, error) {
		rev, ok := snap.LatestRevision()
		if !ok {
			return txlog.Update{}, fmt.Errorf("%w: table has no revision", index.ErrConfiguration)
		}
		if rev.IsConverted() {
			return txlog.Update{}, fmt.Errorf("%w: converted revision cannot be optimized, append indexed data first", index.ErrConfiguration)
		}
		if size := ot.opts.optimizeCubeSize; size > 0 {
			rev.DesiredCubeSize = size
		}

		status := block.BuildStatus(rev, snap.Files)
		session, err := ot.keeper.BeginWrite(ctx, ot.tableID, rev.ID)
		if err != nil {
			return txlog.Update{}, err
		}
		status = status.AddAnnouncements(session.Announced.Values())

		sources := filesOfCube(snap.Files, rev.ID, announced)
		rows, err := ot.readAll(ctx, sources)
		if err != nil {
			return txlog.Update{}, err
		}
		replicated = len(rows)

		binder, err := rev.Bind(snap.Schema)
		if err != nil {
			return txlog.Update{}, err
		}
		records, err := ot.indexer.PrepareRecords(ctx, binder, rows)
		if err != nil {
			return txlog.Update{}, err
		}
		assignments, changes, err := ot.indexer.Optimize(ctx, records, status, announced)
		if err != nil {
			return txlog.Update{}, err
		}

		files, err := ot.writer.Write(ctx, ot.tableID, assignments, changes)
		if err != nil {
			return txlog.Update{}, err
		}
		actions := make([]block.FileAction, 0, len(sources)+len(files))
		for _, f := range sources {
			actions = append(actions, block.FileAction{File: f, Remove: true})
		}
		for _, f := range files {
			actions = append(actions, block.FileAction{File: f})
		}
		return txlog.Update{Changes: changes, Actions: actions}, nil
	})
	ot.logger.LogOptimize(ctx, announced.String(), replicated, err)
	return translateError(ot.tableID, err)
}

func (ot *OTree) readAll(ctx context.Context, files []block.IndexFile) ([]core.Row, error) {
	var rows []core.Row
	for _, f := range files {
		r, err := ot.reader.Read(ctx, f)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r...)
	}
	return rows, nil
}

func filesOfCube(files []block.IndexFile, rev core.RevisionID, c cube.CubeID) []block.IndexFile {
	address := c.String()
	var out []block.IndexFile
	for _, f := range files {
		if f.Tags.Revision == rev && f.Tags.Cube == address {
			out = append(out, f)
		}
	}
	return out
}
