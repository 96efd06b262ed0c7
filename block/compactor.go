package block

import (
	"context"
	"fmt"

	"github.com/hupe1980/otree/core"
)

// Compactor merges small block files of the same cube into one. Bulk
// compaction does not re-route rows: it only reduces file count, so the
// merged tags are the pointwise union of the inputs.
type Compactor struct {
	reader *Reader
	writer *Writer
}

// NewCompactor creates a compactor over the given reader and writer.
func NewCompactor(reader *Reader, writer *Writer) *Compactor {
	return &Compactor{reader: reader, writer: writer}
}

// Compact merges the given files, which must share cube, state and
// revision, into a single block file. It returns the merged file; the
// caller commits the add/remove pair atomically through the log.
func (c *Compactor) Compact(ctx context.Context, tableID core.TableID, files []IndexFile) (IndexFile, error) {
	if len(files) == 0 {
		return IndexFile{}, fmt.Errorf("block: nothing to compact")
	}

	merged := files[0].Tags
	merged.RowCount = 0
	var rows []core.Row
	for _, f := range files {
		if f.Tags.Cube != merged.Cube || f.Tags.State != merged.State || f.Tags.Revision != merged.Revision {
			return IndexFile{}, fmt.Errorf("block: compaction inputs disagree on cube/state/revision")
		}
		batch, err := c.reader.Read(ctx, f)
		if err != nil {
			return IndexFile{}, err
		}
		rows = append(rows, batch...)
		merged.RowCount += f.Tags.RowCount
		if f.Tags.MinWeight < merged.MinWeight {
			merged.MinWeight = f.Tags.MinWeight
		}
		if f.Tags.MaxWeight > merged.MaxWeight {
			merged.MaxWeight = f.Tags.MaxWeight
		}
	}

	return c.writer.writeOne(ctx, tableID, merged.Revision, rows, merged)
}
