// Package batch runs independent work items concurrently over a bounded
// worker pool and gathers their results in input order.
//
// Two error policies are supported. With FailFast the first failing item
// cancels the context shared by its siblings and Run returns that failure.
// Otherwise every item runs to completion and all failures are reported
// together in an *Error.
package batch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// Options configures a batch run.
type Options struct {
	// Workers is the maximum number of items processed at once.
	// Values <= 0 or above the number of items mean one worker per item.
	Workers int

	// FailFast stops the batch on the first item error.
	FailFast bool
}

// ItemError identifies the item a failure belongs to.
type ItemError struct {
	Index int    // position of the item in the input
	Item  string // human readable item identifier (URL, file name)
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Item, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// Error aggregates every item failure of a batch run without FailFast.
type Error struct {
	Total    int          // number of items in the batch
	Failures []*ItemError // sorted by Index
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}

	return fmt.Sprintf("%d of %d items failed: %s", len(e.Failures), e.Total, strings.Join(msgs, "; "))
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}

	return errs
}

type indexed[R any] struct {
	index  int
	result R
}

// Run calls fn for every item, at most opts.Workers at a time, and returns the
// results of the items that succeeded in input order. name labels an item in errors.
func Run[T, R any](
	ctx context.Context,
	items []T,
	name func(T) string,
	opts Options,
	fn func(ctx context.Context, item T) (R, error),
) ([]R, error) {
	if len(items) == 0 {
		return []R{}, nil
	}

	workers := opts.Workers
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	p := pool.NewWithResults[indexed[R]]().WithContext(ctx).WithMaxGoroutines(workers)
	if opts.FailFast {
		p = p.WithCancelOnError().WithFirstError()
	}

	var (
		mu       sync.Mutex
		failures []*ItemError
	)

	for i, item := range items {
		i, item := i, item // per-iteration copy; go directive is below 1.22
		p.Go(func(ctx context.Context) (indexed[R], error) {
			err := ctx.Err()

			var res R
			if err == nil {
				res, err = fn(ctx, item)
			}
			if err != nil {
				itemErr := &ItemError{Index: i, Item: name(item), Err: err}

				mu.Lock()
				failures = append(failures, itemErr)
				mu.Unlock()

				return indexed[R]{}, itemErr
			}

			return indexed[R]{index: i, result: res}, nil
		})
	}

	done, err := p.Wait()

	sort.Slice(done, func(a, b int) bool { return done[a].index < done[b].index })
	results := make([]R, 0, len(done))
	for _, d := range done {
		results = append(results, d.result)
	}

	if err == nil {
		return results, nil
	}
	if opts.FailFast {
		return results, err
	}

	sort.Slice(failures, func(a, b int) bool { return failures[a].Index < failures[b].Index })

	return results, &Error{Total: len(items), Failures: failures}
}
