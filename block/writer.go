package block

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/hupe1980/otree/blobstore"
	"github.com/hupe1980/otree/codec"
	"github.com/hupe1980/otree/core"
	"github.com/hupe1980/otree/index"
	"github.com/hupe1980/otree/weight"
)

// Options configures the block writer.
type Options struct {
	// Codec encodes row payloads. Defaults to codec.Default.
	Codec codec.Codec

	// Compression selects the payload compression. Defaults to zstd.
	Compression Compression
}

// Writer groups tagged assignments by target cube and writes one block
// file per cube into the blob store. Files are immutable once written;
// commit or discard happens in the metadata log.
type Writer struct {
	store blobstore.Store
	opts  Options
	seq   atomic.Uint64
}

// NewWriter creates a block writer on the given store.
func NewWriter(store blobstore.Store, optFns ...func(*Options)) *Writer {
	opts := Options{
		Codec:       codec.Default,
		Compression: CompressionZstd,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	return &Writer{store: store, opts: opts}
}

// Write persists one block file per (cube, state) group and returns the
// resulting file descriptions for the metadata commit.
func (w *Writer) Write(ctx context.Context, tableID core.TableID, assignments []index.Assignment, changes index.TableChanges) ([]IndexFile, error) {
	type groupKey struct {
		cube  string
		state index.CubeState
	}
	groups := make(map[groupKey][]index.Assignment)
	for _, a := range assignments {
		k := groupKey{cube: a.Cube.String(), state: a.State}
		groups[k] = append(groups[k], a)
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].cube != keys[j].cube {
			return keys[i].cube < keys[j].cube
		}
		return keys[i].state < keys[j].state
	})

	files := make([]IndexFile, 0, len(keys))
	for _, k := range keys {
		group := groups[k]

		rows := make([]core.Row, len(group))
		minW, maxW := weight.MaxValue, weight.MinValue
		for i, a := range group {
			rows[i] = a.Record.Row
			if a.Record.Weight < minW {
				minW = a.Record.Weight
			}
			if a.Record.Weight > maxW {
				maxW = a.Record.Weight
			}
		}

		tags := Tags{
			Cube:      k.cube,
			MinWeight: minW,
			MaxWeight: maxW,
			State:     k.state.String(),
			Revision:  changes.Revision.ID,
			RowCount:  int64(len(rows)),
		}

		file, err := w.writeOne(ctx, tableID, changes.Revision.ID, rows, tags)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

func (w *Writer) writeOne(ctx context.Context, tableID core.TableID, rev core.RevisionID, rows []core.Row, tags Tags) (IndexFile, error) {
	payload, err := w.opts.Codec.Marshal(rows)
	if err != nil {
		return IndexFile{}, fmt.Errorf("block: encode rows: %w", err)
	}
	footer, err := codec.JSON{}.Marshal(tags)
	if err != nil {
		return IndexFile{}, fmt.Errorf("block: encode footer: %w", err)
	}
	image, err := encodeBlock(w.opts.Codec.Name(), w.opts.Compression, payload, footer)
	if err != nil {
		return IndexFile{}, err
	}

	name := fmt.Sprintf("%s/%d/%s-%d-%06d.blk",
		tableID, rev, tags.Cube, time.Now().UnixNano(), w.seq.Add(1))
	if err := w.store.Put(ctx, name, image); err != nil {
		return IndexFile{}, fmt.Errorf("block: put %s: %w", name, err)
	}

	return IndexFile{Path: name, Size: int64(len(image)), Tags: tags}, nil
}

// WriteConverted persists a batch of a converted (unindexed) table as a
// single root-cube block under the reserved revision 0.
func (w *Writer) WriteConverted(ctx context.Context, tableID core.TableID, rows []core.Row) (IndexFile, error) {
	tags := Tags{
		Cube:      "root",
		MinWeight: weight.MinValue,
		MaxWeight: weight.MaxValue,
		State:     index.StateFlooded.String(),
		Revision:  core.ConvertedRevisionID,
		RowCount:  int64(len(rows)),
	}
	return w.writeOne(ctx, tableID, core.ConvertedRevisionID, rows, tags)
}
