package block

import (
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/otree/blobstore"
	"github.com/hupe1980/otree/codec"
	"github.com/hupe1980/otree/core"
	"github.com/hupe1980/otree/resource"
)

// Reader reads block files back into rows. Reads pass through the
// resource controller so background optimize passes cannot starve
// foreground work.
type Reader struct {
	store blobstore.Store
	res   *resource.Controller
}

// NewReader creates a block reader. res may be nil for unthrottled reads.
func NewReader(store blobstore.Store, res *resource.Controller) *Reader {
	return &Reader{store: store, res: res}
}

// Read returns the rows of one block file, verifying its checksum.
func (r *Reader) Read(ctx context.Context, file IndexFile) ([]core.Row, error) {
	data, err := r.readBytes(ctx, file.Path)
	if err != nil {
		return nil, err
	}

	payload, codecName, _, err := decodeBlock(data)
	if err != nil {
		return nil, fmt.Errorf("block: %s: %w", file.Path, err)
	}
	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, fmt.Errorf("block: %s: unknown codec %q", file.Path, codecName)
	}

	var rows []core.Row
	if err := c.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("block: %s: decode rows: %w", file.Path, err)
	}
	return rows, nil
}

// ReadTags recovers a file's tags from its physical footer. This is the
// fallback for converted tables whose metadata log carries no stats for
// the file: degraded but lossless, rather than a hard failure.
func (r *Reader) ReadTags(ctx context.Context, path string) (Tags, error) {
	blob, err := r.store.Open(ctx, path)
	if err != nil {
		return Tags{}, err
	}
	defer blob.Close()

	const tailProbe = 4096
	size := blob.Size()
	n := int64(tailProbe)
	if n > size {
		n = size
	}
	tail := make([]byte, n)
	if _, err := blob.ReadAt(ctx, tail, size-n); err != nil && err != io.EOF {
		return Tags{}, err
	}

	footer, err := decodeFooter(tail)
	if err != nil {
		return Tags{}, fmt.Errorf("block: %s: %w", path, err)
	}
	var tags Tags
	if err := (codec.JSON{}).Unmarshal(footer, &tags); err != nil {
		return Tags{}, fmt.Errorf("block: %s: decode footer: %w", path, err)
	}
	return tags, nil
}

func (r *Reader) readBytes(ctx context.Context, path string) ([]byte, error) {
	data, err := blobstore.ReadAll(ctx, r.store, path)
	if err != nil {
		return nil, err
	}
	if r.res != nil {
		if err := r.res.WaitIO(ctx, int64(len(data))); err != nil {
			return nil, err
		}
	}
	return data, nil
}
