// Package collector fans a batch of independent fetches out concurrently and
// joins them behind a single barrier.
//
// A batch is all-or-nothing: either every fetch succeeds and the full result
// set is returned, or the batch fails with the first error observed and no
// partial results are handed back.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// FetchFunc fetches the entity for a single id.
type FetchFunc[ID any, T any] func(ctx context.Context, id ID) (T, error)

// BatchError reports the failure of a batch. It wraps the first error
// observed among the batch's fetches.
type BatchError struct {
	Batch string // batch name, e.g. "vehicles"
	ID    any    // id whose fetch failed first
	Size  int    // number of ids in the batch
	Err   error
}

// Error implements the error interface
func (e *BatchError) Error() string {
	if e.Batch == "" {
		return fmt.Sprintf("batch of %d failed at id %v: %v", e.Size, e.ID, e.Err)
	}
	return fmt.Sprintf("%s batch of %d failed at id %v: %v", e.Batch, e.Size, e.ID, e.Err)
}

// Unwrap returns the underlying fetch error
func (e *BatchError) Unwrap() error {
	return e.Err
}

// Options configures a Collect call.
type Options struct {
	// Name labels the batch in errors and observer callbacks.
	Name string
	// Limit caps the number of in-flight fetches. Zero or less means
	// one goroutine per id with no cap.
	Limit int
	// Observer, when set, is called once per finished fetch.
	Observer Observer
}

// Observer receives per-fetch completion notifications. It is called from
// the fetching goroutines and must be safe for concurrent use.
type Observer func(ctx context.Context, batch string, err error)

// Option mutates Options.
type Option func(*Options)

// WithName labels the batch.
func WithName(name string) Option {
	return func(o *Options) { o.Name = name }
}

// WithLimit caps the number of concurrent fetches.
func WithLimit(n int) Option {
	return func(o *Options) { o.Limit = n }
}

// WithObserver registers a per-fetch completion callback.
func WithObserver(obs Observer) Option {
	return func(o *Options) { o.Observer = obs }
}

// Collect runs fetch once per id concurrently and waits for all of them.
//
// An empty ids slice returns an empty result without calling fetch. When any
// fetch fails, the context passed to the remaining fetches is cancelled, the
// call still waits for every started fetch to return, and the result is nil
// with a *BatchError wrapping the first failure.
//
// Results are written to a slice indexed by dispatch position, so on success
// they line up with ids. Callers should not depend on that ordering.
func Collect[ID any, T any](ctx context.Context, ids []ID, fetch FetchFunc[ID, T], opts ...Option) ([]T, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	if len(ids) == 0 {
		return []T{}, nil
	}

	results := make([]T, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	if o.Limit > 0 {
		g.SetLimit(o.Limit)
	}

	var (
		once     sync.Once
		firstErr error
		failedID any
	)

	for i, id := range ids {
		// Stop dispatching once a sibling failed or the caller gave up;
		// already-running fetches observe gctx themselves.
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			item, err := fetch(gctx, id)
			if o.Observer != nil {
				o.Observer(gctx, o.Name, err)
			}
			if err != nil {
				once.Do(func() {
					firstErr = err
					failedID = id
				})
				return err
			}
			results[i] = item
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if firstErr == nil {
			// Only cancellation surfaced; no fetch failed on its own.
			return nil, &BatchError{Batch: o.Name, Size: len(ids), Err: err}
		}
		return nil, &BatchError{Batch: o.Name, ID: failedID, Size: len(ids), Err: firstErr}
	}

	// Dispatch stopped early because the parent context ended before any
	// fetch reported an error.
	if err := ctx.Err(); err != nil {
		return nil, &BatchError{Batch: o.Name, Size: len(ids), Err: err}
	}

	return results, nil
}

// IsBatchError reports whether err is or wraps a *BatchError.
func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}
