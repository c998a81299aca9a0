package export

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ProgressFunc is called after each label with the number finished so far.
// It may be called from several goroutines.
type ProgressFunc func(done, total int)

// RenderAll applies fn to every label on up to workers goroutines and returns
// the results in label order. Cancellation is checked before each label; the
// first error stops the remaining work and is returned.
func RenderAll[T any](ctx context.Context, labels []GeneratedLabel, workers int, fn func(GeneratedLabel) (T, error), progress ProgressFunc) ([]T, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]T, len(labels))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range labels {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := fn(labels[i])
			if err != nil {
				return fmt.Errorf("label %d (row %d, copy %d): %w", labels[i].Sequence, labels[i].RowIndex+1, labels[i].CopyIndex+1, err)
			}
			results[i] = out
			if progress != nil {
				progress(int(done.Add(1)), len(labels))
			}
			return nil
		})
	}

	err := g.Wait()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}
