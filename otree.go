package otree

import (
	"context"
	"fmt"

	"github.com/hupe1980/otree/blobstore"
	"github.com/hupe1980/otree/block"
	"github.com/hupe1980/otree/core"
	"github.com/hupe1980/otree/cube"
	"github.com/hupe1980/otree/exec"
	"github.com/hupe1980/otree/index"
	"github.com/hupe1980/otree/keeper"
	"github.com/hupe1980/otree/query"
	"github.com/hupe1980/otree/resource"
	"github.com/hupe1980/otree/txlog"
)

// OTree is the handle to one indexed table. It is safe for concurrent
// use; all coordination between writers happens through the metadata log
// and the keeper, never through in-process locks.
type OTree struct {
	tableID core.TableID
	store   blobstore.Store
	log     txlog.Log
	keeper  keeper.Keeper

	pool      *exec.Pool
	indexer   *index.Indexer
	writer    *block.Writer
	reader    *block.Reader
	compactor *block.Compactor
	res       *resource.Controller

	opts   options
	logger *Logger
}

// New opens the table tableID over the given blob store and metadata
// log. The table need not exist yet; the first Append creates it.
func New(tableID core.TableID, store blobstore.Store, log txlog.Log, optFns ...Option) (*OTree, error) {
	if tableID == "" {
		return nil, fmt.Errorf("%w: empty table id", ErrConfiguration)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: nil blob store", ErrConfiguration)
	}
	if log == nil {
		return nil, fmt.Errorf("%w: nil metadata log", ErrConfiguration)
	}

	opts := applyOptions(optFns)
	seen := make(map[string]struct{}, len(opts.columns))
	for _, c := range opts.columns {
		if c.Column == "" {
			return nil, fmt.Errorf("%w: transformer with empty column name", ErrConfiguration)
		}
		if _, dup := seen[c.Column]; dup {
			return nil, fmt.Errorf("%w: column %q indexed twice", ErrConfiguration, c.Column)
		}
		seen[c.Column] = struct{}{}
	}
	if len(opts.columns) > cube.MaxDimensions {
		return nil, fmt.Errorf("%w: %d indexed columns, maximum is %d", ErrConfiguration, len(opts.columns), cube.MaxDimensions)
	}

	pool := exec.NewPool(opts.workers)
	res := resource.NewController(opts.resources)
	writer := block.NewWriter(store, func(o *block.Options) {
		o.Codec = opts.codec
		o.Compression = opts.compression
	})
	reader := block.NewReader(store, res)

	return &OTree{
		tableID:   tableID,
		store:     store,
		log:       log,
		keeper:    opts.keeper,
		pool:      pool,
		indexer:   index.NewIndexer(pool),
		writer:    writer,
		reader:    reader,
		compactor: block.NewCompactor(reader, writer),
		res:       res,
		opts:      opts,
		logger:    opts.logger.WithTable(tableID),
	}, nil
}

// Close releases the routing workers. The table itself needs no
// shutdown; all state lives in the store and the log.
func (ot *OTree) Close() error {
	ot.pool.Close()
	return nil
}

// TableID returns the table this handle operates on.
func (ot *OTree) TableID() core.TableID { return ot.tableID }

// Analyze selects the cubes whose rebalancing should run next and
// announces them through the keeper. It returns the announced cubes;
// an empty result means the index needs no rebalancing right now.
func (ot *OTree) Analyze(ctx context.Context) ([]cube.CubeID, error) {
	announced, err := ot.analyze(ctx)
	ot.logger.LogAnalyze(ctx, len(announced), err)
	return announced, translateError(ot.tableID, err)
}

func (ot *OTree) analyze(ctx context.Context) ([]cube.CubeID, error) {
	snap, err := ot.log.Snapshot(ctx, ot.tableID)
	if err != nil {
		return nil, err
	}
	rev, ok := snap.LatestRevision()
	if !ok || rev.IsConverted() {
		return nil, nil
	}

	status := block.BuildStatus(rev, snap.Files)
	announced, err := status.Analyze()
	if err != nil {
		return nil, err
	}
	if len(announced) == 0 {
		return nil, nil
	}
	if err := ot.keeper.Announce(ctx, ot.tableID, rev.ID, announced); err != nil {
		return nil, err
	}
	return announced, nil
}

// Files returns the committed block files a read matching p must
// consider. A nil predicate returns all files.
func (ot *OTree) Files(ctx context.Context, p query.Predicate) ([]block.IndexFile, error) {
	snap, err := ot.log.Snapshot(ctx, ot.tableID)
	if err != nil {
		return nil, translateError(ot.tableID, err)
	}
	if p == nil {
		return snap.Files, nil
	}
	return query.NewPruner(snap.Revisions).PruneFiles(snap.Files, p), nil
}

// Snapshot returns the table's current committed metadata.
func (ot *OTree) Snapshot(ctx context.Context) (txlog.Snapshot, error) {
	snap, err := ot.log.Snapshot(ctx, ot.tableID)
	return snap, translateError(ot.tableID, err)
}

// Convert adopts pre-existing block files into the table under the
// reserved converted revision, for tables written before indexing was
// enabled. Tags are read back from each file; files written without
// stats tags fall back to their physical footer.
func (ot *OTree) Convert(ctx context.Context, schema core.Schema, paths []string) error {
	err := ot.convert(ctx, schema, paths)
	ot.logger.LogConvert(ctx, len(paths), err)
	return translateError(ot.tableID, err)
}

func (ot *OTree) convert(ctx context.Context, schema core.Schema, paths []string) error {
	if len(schema) == 0 {
		return fmt.Errorf("%w: empty schema", ErrConfiguration)
	}

	actions := make([]block.FileAction, 0, len(paths))
	for _, p := range paths {
		tags, err := ot.reader.ReadTags(ctx, p)
		if err != nil {
			return fmt.Errorf("convert %s: %w", p, err)
		}
		size, err := blobSize(ctx, ot.store, p)
		if err != nil {
			return fmt.Errorf("convert %s: %w", p, err)
		}
		actions = append(actions, block.FileAction{
			File: block.IndexFile{Path: p, Size: size, Tags: tags},
		})
	}

	_, err := txlog.UpdateWithTransaction(ctx, ot.log, ot.tableID, ot.opts.commitRetries, func(_ context.Context, snap txlog.Snapshot) (txlog.Update, error) {
		changes := index.TableChanges{}
		if _, exists := snap.LatestRevision(); !exists {
			changes.IsNewRevision = true
			changes.Revision = index.NewConvertedRevision(ot.tableID, ot.opts.desiredCubeSize)
		}
		return txlog.Update{Schema: schema, Changes: changes, Actions: actions}, nil
	})
	return err
}

// Compact merges small committed files of the same cube, state and
// revision into one, committing the swap atomically.
func (ot *OTree) Compact(ctx context.Context) error {
	if err := ot.res.AcquireJob(ctx); err != nil {
		return translateError(ot.tableID, err)
	}
	defer ot.res.ReleaseJob()

	_, err := txlog.UpdateWithTransaction(ctx, ot.log, ot.tableID, ot.opts.commitRetries, func(ctx context.Context, snap txlog.Snapshot) (txlog.Update, error) {
		var actions []block.FileAction
		for _, group := range groupFiles(snap.Files) {
			if len(group) < 2 {
				continue
			}
			merged, err := ot.compactor.Compact(ctx, ot.tableID, group)
			if err != nil {
				return txlog.Update{}, err
			}
			for _, f := range group {
				actions = append(actions, block.FileAction{File: f, Remove: true})
			}
			actions = append(actions, block.FileAction{File: merged})
		}
		return txlog.Update{Actions: actions}, nil
	})
	return translateError(ot.tableID, err)
}

func groupFiles(files []block.IndexFile) map[string][]block.IndexFile {
	groups := make(map[string][]block.IndexFile)
	for _, f := range files {
		key := fmt.Sprintf("%s|%s|%d", f.Tags.Cube, f.Tags.State, f.Tags.Revision)
		groups[key] = append(groups[key], f)
	}
	return groups
}

func blobSize(ctx context.Context, store blobstore.Store, path string) (int64, error) {
	b, err := store.Open(ctx, path)
	if err != nil {
		return 0, err
	}
	defer b.Close()
	return b.Size(), nil
}
