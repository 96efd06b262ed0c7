package exec

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// chunkFor splits n items across workers, clamped so tiny batches do not
// pay fan-out overhead.
func chunkFor(n, workers int) int {
	if workers < 1 {
		workers = 1
	}
	chunk := (n + workers - 1) / workers
	if chunk < 64 {
		chunk = 64
	}
	return chunk
}

// Map applies fn to every item in parallel on the pool, preserving input
// order. fn must be pure with respect to shared state: it receives and
// returns values only.
func Map[T, R any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	if len(items) == 0 {
		return out, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	chunk := chunkFor(len(items), p.Workers())

	for lo := 0; lo < len(items); lo += chunk {
		lo, hi := lo, lo+chunk
		if hi > len(items) {
			hi = len(items)
		}
		done := make(chan struct{})
		var chunkErr error
		task := func() {
			defer close(done)
			for i := lo; i < hi; i++ {
				r, err := fn(ctx, items[i])
				if err != nil {
					chunkErr = err
					return
				}
				out[i] = r
			}
		}
		if err := p.Submit(ctx, task); err != nil {
			return nil, err
		}
		g.Go(func() error {
			// chunkErr is published by close(done).
			select {
			case <-done:
				return chunkErr
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// FlatMap applies fn to every item in parallel and concatenates the
// result slices in input order. Used for routing, where one row can emit
// several assignments during replication.
func FlatMap[T, R any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T) ([]R, error)) ([]R, error) {
	nested, err := Map(ctx, p, items, fn)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, chunk := range nested {
		total += len(chunk)
	}
	out := make([]R, 0, total)
	for _, chunk := range nested {
		out = append(out, chunk...)
	}
	return out, nil
}
