package otree

import (
	"errors"
	"fmt"

	"github.com/hupe1980/otree/block"
	"github.com/hupe1980/otree/core"
	"github.com/hupe1980/otree/index"
	"github.com/hupe1980/otree/txlog"
)

var (
	// ErrConfiguration indicates an invalid index configuration, such as
	// changed index columns or a missing column in the schema.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrConcurrencyConflict indicates a write that lost to concurrent
	// writers and could not be retried safely.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrData indicates rows that cannot be indexed under the declared
	// schema, or corrupted persisted data.
	ErrData = errors.New("invalid data")
)

// ConcurrencyConflictError reports the cubes whose concurrent
// modification made a write unretryable.
//
// The original underlying error can be accessed via errors.Unwrap;
// errors.Is matches ErrConcurrencyConflict.
type ConcurrencyConflictError struct {
	TableID core.TableID
	Touched []string
	cause   error
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict on table %s: %d contended cubes", e.TableID, len(e.Touched))
}

func (e *ConcurrencyConflictError) Unwrap() error { return e.cause }

func (e *ConcurrencyConflictError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

func translateError(tableID core.TableID, err error) error {
	if err == nil {
		return nil
	}

	// Conflict unification: both the unsolvable case and the exhausted
	// retry case surface as a concurrency conflict.
	var conflict *txlog.ConflictError
	if errors.As(err, &conflict) {
		return &ConcurrencyConflictError{TableID: tableID, Touched: conflict.Touched.Strings(), cause: err}
	}
	if errors.Is(err, txlog.ErrConcurrentModification) {
		return &ConcurrencyConflictError{TableID: tableID, cause: err}
	}

	if errors.Is(err, index.ErrConfiguration) {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if errors.Is(err, index.ErrData) || errors.Is(err, block.ErrCorrupt) {
		return fmt.Errorf("%w: %w", ErrData, err)
	}

	return err
}
