package otree

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/otree/blobstore"
	"github.com/hupe1980/otree/block"
	"github.com/hupe1980/otree/core"
	"github.com/hupe1980/otree/cube"
	"github.com/hupe1980/otree/keeper"
	"github.com/hupe1980/otree/query"
	"github.com/hupe1980/otree/space"
	"github.com/hupe1980/otree/txlog"
	"github.com/hupe1980/otree/weight"
)

func testSchema() core.Schema {
	return core.Schema{
		{Name: "x", Type: core.FieldTypeFloat},
		{Name: "y", Type: core.FieldTypeFloat},
	}
}

func testColumns() []space.Transformer {
	return []space.Transformer{
		{Column: "x", Type: core.FieldTypeFloat},
		{Column: "y", Type: core.FieldTypeFloat},
	}
}

// testRows spreads n rows over both dimensions. Values stay float64 so
// they round-trip through the block payload without type drift.
func testRows(n int) []core.Row {
	rows := make([]core.Row, n)
	for i := range rows {
		rows[i] = core.Row{float64(i), float64((i * 37) % n)}
	}
	return rows
}

func newTestTree(t *testing.T, optFns ...Option) (*OTree, *txlog.MemLog) {
	t.Helper()

	log := txlog.NewMemLog()
	ot, err := New("events", blobstore.NewMemoryStore(), log, optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ot.Close() })
	return ot, log
}

func totalRows(files []block.IndexFile) int64 {
	var n int64
	for _, f := range files {
		n += f.Tags.RowCount
	}
	return n
}

func TestNewValidation(t *testing.T) {
	store := blobstore.NewMemoryStore()
	log := txlog.NewMemLog()

	tests := []struct {
		name string
		fn   func() (*OTree, error)
	}{
		{"empty table id", func() (*OTree, error) {
			return New("", store, log)
		}},
		{"nil store", func() (*OTree, error) {
			return New("events", nil, log)
		}},
		{"nil log", func() (*OTree, error) {
			return New("events", store, nil)
		}},
		{"empty column name", func() (*OTree, error) {
			return New("events", store, log, WithColumns(space.Transformer{Type: core.FieldTypeFloat}))
		}},
		{"duplicate column", func() (*OTree, error) {
			cols := append(testColumns(), space.Transformer{Column: "x", Type: core.FieldTypeFloat})
			return New("events", store, log, WithColumns(cols...))
		}},
		{"too many columns", func() (*OTree, error) {
			cols := make([]space.Transformer, cube.MaxDimensions+1)
			for i := range cols {
				cols[i] = space.Transformer{Column: string(rune('a' + i)), Type: core.FieldTypeFloat}
			}
			return New("events", store, log, WithColumns(cols...))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn()
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestAppendCreatesRevision(t *testing.T) {
	ctx := context.Background()
	ot, _ := newTestTree(t, WithColumns(testColumns()...), WithDesiredCubeSize(1000))

	require.NoError(t, ot.Append(ctx, testSchema(), testRows(50)))

	snap, err := ot.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version)
	assert.Equal(t, testSchema(), snap.Schema)
	require.Len(t, snap.Revisions, 1)
	assert.Equal(t, core.RevisionID(1), snap.Revisions[0].ID)
	assert.False(t, snap.Revisions[0].IsConverted())
	assert.Equal(t, int64(50), totalRows(snap.Files))

	files, err := ot.Files(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, snap.Files, files)

	// An empty batch commits nothing.
	require.NoError(t, ot.Append(ctx, testSchema(), nil))
	snap, err = ot.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version)
}

func TestAppendValidatesRows(t *testing.T) {
	ctx := context.Background()
	ot, _ := newTestTree(t, WithColumns(testColumns()...))

	err := ot.Append(ctx, testSchema(), []core.Row{{1.0}})
	assert.ErrorIs(t, err, ErrData)
}

func TestSamplingPrunesFiles(t *testing.T) {
	ctx := context.Background()
	ot, _ := newTestTree(t, WithColumns(testColumns()...), WithDesiredCubeSize(10))

	require.NoError(t, ot.Append(ctx, testSchema(), testRows(200)))

	all, err := ot.Files(ctx, nil)
	require.NoError(t, err)
	require.NotEmpty(t, all)

	kept, err := ot.Files(ctx, query.SampleFraction(0.1))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(kept), len(all))

	// Every surviving file's weight span must reach below the sampling
	// threshold.
	threshold := weight.FromFraction(0.1)
	for _, f := range kept {
		assert.Less(t, f.Tags.MinWeight, threshold, f.Path)
	}
}

func TestRebalanceLifecycle(t *testing.T) {
	ctx := context.Background()
	ot, _ := newTestTree(t, WithColumns(testColumns()...), WithDesiredCubeSize(10))

	require.NoError(t, ot.Append(ctx, testSchema(), testRows(100)))

	// The root holds its capacity and overflows, so the first analyze
	// announces exactly the root.
	announced, err := ot.Analyze(ctx)
	require.NoError(t, err)
	require.Len(t, announced, 1)
	assert.True(t, announced[0].IsRoot())

	require.NoError(t, ot.Optimize(ctx, announced[0]))

	snap, err := ot.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Version)

	var replicatedRoot *block.IndexFile
	for i := range snap.Files {
		f := &snap.Files[i]
		if f.Tags.Cube == "root" && f.Tags.State == "REPLICATED" {
			replicatedRoot = f
		}
		assert.NotEqual(t, "ANNOUNCED", f.Tags.State)
	}
	require.NotNil(t, replicatedRoot, "root must be replicated after optimize")
	assert.Equal(t, int64(10), replicatedRoot.Tags.RowCount)

	// Replication preserves every row and adds child-level copies.
	assert.GreaterOrEqual(t, totalRows(snap.Files), int64(100))

	// A second analyze moves one level down.
	announced, err = ot.Analyze(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, announced)
	for _, c := range announced {
		assert.False(t, c.IsRoot())
	}
}

func TestAppendWithoutColumns(t *testing.T) {
	ctx := context.Background()
	ot, _ := newTestTree(t)

	require.NoError(t, ot.Append(ctx, testSchema(), testRows(20)))

	snap, err := ot.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Revisions, 1)
	assert.True(t, snap.Revisions[0].IsConverted())
	require.Len(t, snap.Files, 1)
	assert.Equal(t, "root", snap.Files[0].Tags.Cube)
	assert.Equal(t, int64(20), snap.Files[0].Tags.RowCount)
}

func TestConvertAdoptsFiles(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	log := txlog.NewMemLog()

	// A pre-existing block file written outside any table commit.
	file, err := block.NewWriter(store).WriteConverted(ctx, "legacy", testRows(30))
	require.NoError(t, err)

	ot, err := New("legacy", store, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ot.Close() })

	require.NoError(t, ot.Convert(ctx, testSchema(), []string{file.Path}))

	snap, err := ot.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Revisions, 1)
	assert.True(t, snap.Revisions[0].IsConverted())
	require.Len(t, snap.Files, 1)
	assert.Equal(t, int64(30), snap.Files[0].Tags.RowCount)

	// The converted revision has no cube geometry, so sampling keeps its
	// files rather than risking false negatives.
	kept, err := ot.Files(ctx, query.SampleFraction(0.5))
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	assert.ErrorIs(t, ot.Convert(ctx, nil, nil), ErrConfiguration)
}

func TestCompactMergesSmallFiles(t *testing.T) {
	ctx := context.Background()
	ot, _ := newTestTree(t, WithColumns(testColumns()...), WithDesiredCubeSize(100))

	// Two small appends over the same value domain land in the same
	// cube, state and revision.
	require.NoError(t, ot.Append(ctx, testSchema(), testRows(5)))
	require.NoError(t, ot.Append(ctx, testSchema(), testRows(5)))

	snap, err := ot.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Files, 2)

	require.NoError(t, ot.Compact(ctx))

	snap, err = ot.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Files, 1)
	assert.Equal(t, int64(10), snap.Files[0].Tags.RowCount)
}

// raceLog injects a concurrent commit right before a commit attempt,
// forcing the optimistic protocol down its conflict path.
type raceLog struct {
	inner *txlog.MemLog

	mu        sync.Mutex
	interfere bool
}

func (l *raceLog) Snapshot(ctx context.Context, tableID core.TableID) (txlog.Snapshot, error) {
	return l.inner.Snapshot(ctx, tableID)
}

func (l *raceLog) Commit(ctx context.Context, tableID core.TableID, update txlog.Update) error {
	l.mu.Lock()
	fire := l.interfere
	l.interfere = false
	l.mu.Unlock()

	if fire {
		snap, err := l.inner.Snapshot(ctx, tableID)
		if err != nil {
			return err
		}
		racer := txlog.Update{BaseVersion: snap.Version, Touched: []string{"root"}}
		if err := l.inner.Commit(ctx, tableID, racer); err != nil {
			return err
		}
	}
	return l.inner.Commit(ctx, tableID, update)
}

func (l *raceLog) arm() {
	l.mu.Lock()
	l.interfere = true
	l.mu.Unlock()
}

func TestAppendRetriesSolvableConflict(t *testing.T) {
	ctx := context.Background()
	log := &raceLog{inner: txlog.NewMemLog()}
	ot, err := New("events", blobstore.NewMemoryStore(), log, WithColumns(testColumns()...))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ot.Close() })

	require.NoError(t, ot.Append(ctx, testSchema(), testRows(10)))

	// The racer touches the root, but this append depends on no
	// announced cube, so the retry lands cleanly behind it.
	log.arm()
	require.NoError(t, ot.Append(ctx, testSchema(), testRows(10)))

	snap, err := ot.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.Version)
}

func TestAppendFailsOnOverlappingDependency(t *testing.T) {
	ctx := context.Background()
	log := &raceLog{inner: txlog.NewMemLog()}
	k := keeper.NewLocalKeeper()
	ot, err := New("events", blobstore.NewMemoryStore(), log,
		WithColumns(testColumns()...), WithKeeper(k))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ot.Close() })

	require.NoError(t, ot.Append(ctx, testSchema(), testRows(10)))

	// The root is announced for rebalancing, so this append depends on
	// it. The racer touching the same cube makes the conflict
	// unretryable.
	root, err := cube.Root(2)
	require.NoError(t, err)
	require.NoError(t, k.Announce(ctx, "events", 1, []cube.CubeID{root}))

	log.arm()
	err = ot.Append(ctx, testSchema(), testRows(10))
	require.ErrorIs(t, err, ErrConcurrencyConflict)

	var conflict *ConcurrencyConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, core.TableID("events"), conflict.TableID)
	assert.Contains(t, conflict.Touched, "root")
}
