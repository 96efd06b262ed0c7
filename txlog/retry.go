package txlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/otree/core"
)

// DefaultMaxRetries bounds the optimistic retry loop.
const DefaultMaxRetries = 2

// AttemptFunc computes an update against a fresh snapshot. It is called
// once per attempt and must not reuse state from earlier attempts.
type AttemptFunc func(ctx context.Context, snap Snapshot) (Update, error)

// UpdateWithTransaction runs the optimistic commit protocol: read a
// snapshot, compute the update, try to commit, and on a concurrent
// modification decide between retrying and failing.
//
// A conflict is unsolvable when the intervening commits touched any cube
// in this update's dependency set; that surfaces immediately as
// ErrUnresolvableConflict. Solvable conflicts retry with a fresh
// snapshot up to maxRetries times, after which the last conflict is
// returned as-is.
func UpdateWithTransaction(ctx context.Context, log Log, tableID core.TableID, maxRetries int, fn AttemptFunc) (Update, error) {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}

	var lastErr error
	for try := 0; try <= maxRetries; try++ {
		snap, err := log.Snapshot(ctx, tableID)
		if err != nil {
			return Update{}, err
		}

		update, err := fn(ctx, snap)
		if err != nil {
			return Update{}, err
		}
		update.BaseVersion = snap.Version
		update.Finalize()

		err = log.Commit(ctx, tableID, update)
		if err == nil {
			return update, nil
		}

		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			return Update{}, err
		}

		deps := update.Changes.Dependencies
		if deps != nil && conflict.Touched.Intersects(deps) {
			return Update{}, fmt.Errorf("%w: %w", ErrUnresolvableConflict, conflict)
		}
		lastErr = conflict
	}

	return Update{}, fmt.Errorf("txlog: giving up after %d retries: %w", maxRetries, lastErr)
}
