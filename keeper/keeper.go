// Package keeper coordinates announcements between writers.
//
// Announcing a cube marks it as about to be replicated. The keeper is
// the shared registry of those announcements: every write session asks
// it for the cubes announced since the writer's snapshot, so a
// concurrent optimization is visible to appends before it commits and
// the multi-fetch invariant of replicated reads is preserved.
package keeper

import (
	"context"
	"sync"

	"github.com/hupe1980/otree/core"
	"github.com/hupe1980/otree/cube"
)

// Keeper is the announcement coordination interface. A LocalKeeper
// suffices for a single process; a shared deployment needs an
// implementation backed by a shared service.
type Keeper interface {
	// BeginWrite opens a write session for one revision of a table and
	// returns the cubes currently announced for it.
	BeginWrite(ctx context.Context, tableID core.TableID, revisionID core.RevisionID) (*WriteSession, error)

	// Announce registers cubes as pending replication. Announcements
	// are idempotent and survive until cleared.
	Announce(ctx context.Context, tableID core.TableID, revisionID core.RevisionID, cubes []cube.CubeID) error

	// Clear drops the announcements of a revision, called after the
	// replication that consumed them has committed.
	Clear(ctx context.Context, tableID core.TableID, revisionID core.RevisionID) error
}

// WriteSession is the view of the announced set a writer works against.
type WriteSession struct {
	TableID    core.TableID
	RevisionID core.RevisionID

	// Announced holds the cubes announced at session start. The writer
	// folds them into its status so routing honors in-flight
	// replications.
	Announced cube.Set
}

// LocalKeeper is an in-process Keeper. It coordinates goroutines of one
// writer process only.
type LocalKeeper struct {
	mu        sync.Mutex
	announced map[announceKey]cube.Set
}

type announceKey struct {
	table    core.TableID
	revision core.RevisionID
}

// NewLocalKeeper creates an empty in-process keeper.
func NewLocalKeeper() *LocalKeeper {
	return &LocalKeeper{announced: make(map[announceKey]cube.Set)}
}

// BeginWrite implements Keeper.
func (k *LocalKeeper) BeginWrite(_ context.Context, tableID core.TableID, revisionID core.RevisionID) (*WriteSession, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	return &WriteSession{
		TableID:    tableID,
		RevisionID: revisionID,
		Announced:  k.announced[announceKey{tableID, revisionID}].Clone(),
	}, nil
}

// Announce implements Keeper.
func (k *LocalKeeper) Announce(_ context.Context, tableID core.TableID, revisionID core.RevisionID, cubes []cube.CubeID) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	key := announceKey{tableID, revisionID}
	set, ok := k.announced[key]
	if !ok {
		set = cube.Set{}
		k.announced[key] = set
	}
	for _, c := range cubes {
		set.Add(c)
	}
	return nil
}

// Clear implements Keeper.
func (k *LocalKeeper) Clear(_ context.Context, tableID core.TableID, revisionID core.RevisionID) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	delete(k.announced, announceKey{tableID, revisionID})
	return nil
}
