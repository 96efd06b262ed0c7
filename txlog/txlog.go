// Package txlog is the transactional metadata log of the index.
//
// A table's committed state is an append-only sequence of versioned
// commits; a Snapshot is the fold of that sequence. Writers never lock:
// they read a snapshot, compute an Update against it, and try to commit
// it at version base+1. A concurrent commit surfaces as a ConflictError
// carrying the cubes it touched, which is exactly what the bounded-retry
// protocol needs to decide between retrying and failing.
package txlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/otree/block"
	"github.com/hupe1980/otree/core"
	"github.com/hupe1980/otree/cube"
	"github.com/hupe1980/otree/index"
)

var (
	// ErrConcurrentModification is returned when another writer
	// committed between snapshot and commit.
	ErrConcurrentModification = errors.New("txlog: concurrent modification detected")

	// ErrUnresolvableConflict is returned when a concurrent commit
	// touched a cube in this writer's announced/replicated dependency
	// set. Retrying cannot help; the caller must re-plan.
	ErrUnresolvableConflict = errors.New("txlog: conflict overlaps dependency set")
)

// ConflictError reports a failed commit and the cubes the intervening
// commits touched.
type ConflictError struct {
	TableID     core.TableID
	BaseVersion int64
	HeadVersion int64
	Touched     cube.Set
}

// Error implements error.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("txlog: table %s: commit against version %d, head is %d", e.TableID, e.BaseVersion, e.HeadVersion)
}

// Unwrap lets errors.Is match ErrConcurrentModification.
func (e *ConflictError) Unwrap() error { return ErrConcurrentModification }

// Snapshot is a table's committed metadata at one version.
type Snapshot struct {
	TableID   core.TableID      `json:"tableId"`
	Version   int64             `json:"version"`
	Schema    core.Schema       `json:"schema,omitempty"`
	Revisions []index.Revision  `json:"revisions,omitempty"`
	Files     []block.IndexFile `json:"files,omitempty"`
}

// LatestRevision returns the highest revision, if any.
func (s Snapshot) LatestRevision() (index.Revision, bool) {
	if len(s.Revisions) == 0 {
		return index.Revision{}, false
	}
	return s.Revisions[len(s.Revisions)-1], true
}

// Update is the unit of atomic commit: index changes plus file actions,
// applied together or not at all.
type Update struct {
	BaseVersion int64              `json:"baseVersion"`
	Schema      core.Schema        `json:"schema,omitempty"`
	Changes     index.TableChanges `json:"changes"`
	Actions     []block.FileAction `json:"actions,omitempty"`

	// Touched is the persisted form of the cubes this commit writes,
	// consulted by later writers' conflict checks.
	Touched []string `json:"touched,omitempty"`

	// Deltas records the cube-set changes of this commit (overflowed,
	// announced, replicated, dependsOn) as plain address lists, for
	// inspection of the persisted log.
	Deltas map[string][]string `json:"deltas,omitempty"`
}

// Finalize fills the Touched list and the set deltas from the index
// changes. The commit protocol calls it so conflict metadata never goes
// missing.
func (u *Update) Finalize() {
	u.Touched = u.Changes.TouchedCubes().Strings()
	u.Deltas = u.Changes.Deltas()
}

// Log is the transactional metadata log interface.
// Implementations must make Commit atomic: a commit either lands whole
// at exactly BaseVersion+1 or fails with a ConflictError.
type Log interface {
	// Snapshot returns the current committed state of a table.
	// A table that was never committed has Version 0.
	Snapshot(ctx context.Context, tableID core.TableID) (Snapshot, error)

	// Commit applies the update at version BaseVersion+1.
	Commit(ctx context.Context, tableID core.TableID, update Update) error
}

// Apply folds one update into a snapshot. All Log implementations share
// it so a snapshot's meaning never depends on the backend.
func Apply(s Snapshot, u Update) Snapshot {
	next := s
	next.Version = s.Version + 1
	if len(u.Schema) > 0 {
		next.Schema = u.Schema
	}
	if u.Changes.IsNewRevision {
		next.Revisions = append(append([]index.Revision(nil), s.Revisions...), u.Changes.Revision)
	}

	removed := make(map[string]struct{})
	for _, a := range u.Actions {
		if a.Remove {
			removed[a.File.Path] = struct{}{}
		}
	}
	files := make([]block.IndexFile, 0, len(s.Files)+len(u.Actions))
	for _, f := range s.Files {
		if _, gone := removed[f.Path]; !gone {
			files = append(files, f)
		}
	}
	for _, a := range u.Actions {
		if !a.Remove {
			files = append(files, a.File)
		}
	}
	next.Files = files
	return next
}

// TouchedSet decodes persisted touched addresses against a dimension
// count. Unparseable addresses are dropped; they can only come from a
// foreign revision whose cubes cannot overlap ours anyway.
func TouchedSet(dims int, addrs []string) cube.Set {
	out := cube.Set{}
	for _, a := range addrs {
		if c, err := cube.Parse(dims, a); err == nil {
			out.Add(c)
		}
	}
	return out
}
