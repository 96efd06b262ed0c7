package txlog

import (
	"context"
	"sync"

	"github.com/hupe1980/otree/core"
	"github.com/hupe1980/otree/cube"
)

// MemLog is an in-memory Log for tests and embedded single-process use.
// Thread-safe; conflict semantics match the durable implementations.
type MemLog struct {
	mu     sync.Mutex
	tables map[core.TableID]*memTable
}

type memTable struct {
	snap    Snapshot
	commits []Update
}

// NewMemLog creates an empty in-memory log.
func NewMemLog() *MemLog {
	return &MemLog{tables: make(map[core.TableID]*memTable)}
}

// Snapshot implements Log.
func (l *MemLog) Snapshot(_ context.Context, tableID core.TableID) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tables[tableID]
	if !ok {
		return Snapshot{TableID: tableID}, nil
	}
	return t.snap, nil
}

// Commit implements Log.
func (l *MemLog) Commit(_ context.Context, tableID core.TableID, update Update) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tables[tableID]
	if !ok {
		t = &memTable{snap: Snapshot{TableID: tableID}}
		l.tables[tableID] = t
	}

	if update.BaseVersion != t.snap.Version {
		dims := update.Changes.Revision.Dimensions()
		touched := cube.Set{}
		for _, c := range t.commits[update.BaseVersion:] {
			touched = touched.Union(TouchedSet(dims, c.Touched))
		}
		return &ConflictError{
			TableID:     tableID,
			BaseVersion: update.BaseVersion,
			HeadVersion: t.snap.Version,
			Touched:     touched,
		}
	}

	t.snap = Apply(t.snap, update)
	t.commits = append(t.commits, update)
	return nil
}
