package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Map applies mapFn to every element of items with at most limit goroutines
// in flight and returns the results in input order. The context passed to
// mapFn is cancelled once any call fails. A limit below one means no limit.
func Map[T any, R any](ctx context.Context, items []T, limit int, mapFn func(context.Context, T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	group, groupCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		group.SetLimit(limit)
	}

	for i, item := range items {
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			r, err := mapFn(groupCtx, item)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
