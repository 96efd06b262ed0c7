package txlog

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/hupe1980/otree/blobstore"
	"github.com/hupe1980/otree/codec"
	"github.com/hupe1980/otree/core"
	"github.com/hupe1980/otree/cube"
)

const (
	logDir          = "_log"
	currentFileName = "CURRENT"
	manifestPrefix  = "MANIFEST"
)

// FileLog persists the log as versioned manifest blobs plus a CURRENT
// pointer, one manifest per commit. Blob writes are atomic, so readers
// never observe a torn manifest.
//
// Cross-process serialization is only as strong as the backing store's
// CURRENT update; on plain object stores that is last-writer-wins. Use
// dynamo.Log when multiple processes write the same table.
type FileLog struct {
	store blobstore.Store
	codec codec.Codec
	mu    sync.Mutex
}

// NewFileLog creates a manifest-based log on the given store.
func NewFileLog(store blobstore.Store) *FileLog {
	return &FileLog{store: store, codec: codec.JSON{}}
}

// manifestDoc is one committed version: the folded snapshot plus the
// conflict metadata of the commit that produced it.
type manifestDoc struct {
	Snapshot Snapshot            `json:"snapshot"`
	Touched  []string            `json:"touched,omitempty"`
	Deltas   map[string][]string `json:"deltas,omitempty"`
}

func (l *FileLog) currentPath(tableID core.TableID) string {
	return path.Join(string(tableID), logDir, currentFileName)
}

func (l *FileLog) manifestPath(tableID core.TableID, version int64) string {
	return path.Join(string(tableID), logDir, fmt.Sprintf("%s-%06d.json", manifestPrefix, version))
}

// Snapshot implements Log.
func (l *FileLog) Snapshot(ctx context.Context, tableID core.TableID) (Snapshot, error) {
	doc, err := l.head(ctx, tableID)
	if err != nil {
		return Snapshot{}, err
	}
	if doc == nil {
		return Snapshot{TableID: tableID}, nil
	}
	return doc.Snapshot, nil
}

func (l *FileLog) head(ctx context.Context, tableID core.TableID) (*manifestDoc, error) {
	current, err := blobstore.ReadAll(ctx, l.store, l.currentPath(tableID))
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l.readManifest(ctx, path.Join(string(tableID), logDir, strings.TrimSpace(string(current))))
}

func (l *FileLog) readManifest(ctx context.Context, manifestPath string) (*manifestDoc, error) {
	data, err := blobstore.ReadAll(ctx, l.store, manifestPath)
	if err != nil {
		return nil, err
	}
	var doc manifestDoc
	if err := l.codec.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("txlog: decode manifest %s: %w", manifestPath, err)
	}
	return &doc, nil
}

// Commit implements Log.
func (l *FileLog) Commit(ctx context.Context, tableID core.TableID, update Update) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	head, err := l.head(ctx, tableID)
	if err != nil {
		return err
	}

	headVersion := int64(0)
	base := Snapshot{TableID: tableID}
	if head != nil {
		headVersion = head.Snapshot.Version
		base = head.Snapshot
	}

	if update.BaseVersion != headVersion {
		touched, err := l.touchedSince(ctx, tableID, update)
		if err != nil {
			return err
		}
		return &ConflictError{
			TableID:     tableID,
			BaseVersion: update.BaseVersion,
			HeadVersion: headVersion,
			Touched:     touched,
		}
	}

	next := Apply(base, update)
	doc := manifestDoc{Snapshot: next, Touched: update.Touched, Deltas: update.Deltas}
	data, err := l.codec.Marshal(doc)
	if err != nil {
		return fmt.Errorf("txlog: encode manifest: %w", err)
	}

	if err := l.store.Put(ctx, l.manifestPath(tableID, next.Version), data); err != nil {
		return err
	}
	name := fmt.Sprintf("%s-%06d.json", manifestPrefix, next.Version)
	return l.store.Put(ctx, l.currentPath(tableID), []byte(name))
}

// touchedSince unions the touched sets of every manifest after the
// update's base version.
func (l *FileLog) touchedSince(ctx context.Context, tableID core.TableID, update Update) (cube.Set, error) {
	dims := update.Changes.Revision.Dimensions()
	out := cube.Set{}

	names, err := l.store.List(ctx, path.Join(string(tableID), logDir, manifestPrefix))
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		var version int64
		base := path.Base(name)
		if _, err := fmt.Sscanf(base, manifestPrefix+"-%d.json", &version); err != nil {
			continue
		}
		if version <= update.BaseVersion {
			continue
		}
		doc, err := l.readManifest(ctx, path.Join(string(tableID), logDir, base))
		if err != nil {
			return nil, err
		}
		out = out.Union(TouchedSet(dims, doc.Touched))
	}
	return out, nil
}
