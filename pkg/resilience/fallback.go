// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	stderrors "errors"

	"github.com/foodscout/foodscout/pkg/errors"
)

// As is a thin wrapper over the standard errors.As, exported so callers
// of this package do not need both error packages in scope.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Fallback defines an alternate behavior used when a primary operation
// fails.
type Fallback[T any] interface {
	Execute(ctx context.Context, primaryErr error) (T, error)
}

// FallbackFunc wraps a function as a Fallback.
type FallbackFunc[T any] func(ctx context.Context, primaryErr error) (T, error)

// Execute implements Fallback.
func (f FallbackFunc[T]) Execute(ctx context.Context, err error) (T, error) {
	return f(ctx, err)
}

// WithFallback executes fn, and on error, hands the failure to the
// fallback strategy.
func WithFallback[T any](ctx context.Context, fn func() (T, error), fallback Fallback[T]) (T, error) {
	value, err := fn()
	if err == nil {
		return value, nil
	}
	return fallback.Execute(ctx, err)
}

// JoinResult pairs an input key with the outcome of one member of a
// tolerant join.
type JoinResult[T any] struct {
	Key   string
	Value T
	Err   error
}

// TolerantJoin runs fn concurrently for every key and returns the
// successful results in input order. Failed members are dropped from
// the result set rather than failing the join; the caller receives the
// per-member errors for observability but the join itself only errors
// when every member failed.
func TolerantJoin[T any](ctx context.Context, keys []string, fn func(ctx context.Context, key string) (T, error)) ([]T, []JoinResult[T]) {
	results := make([]JoinResult[T], len(keys))
	done := make(chan int, len(keys))

	for i, key := range keys {
		go func(i int, key string) {
			value, err := fn(ctx, key)
			results[i] = JoinResult[T]{Key: key, Value: value, Err: err}
			done <- i
		}(i, key)
	}
	for range keys {
		<-done
	}

	out := make([]T, 0, len(keys))
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Value)
		}
	}
	return out, results
}

// AllFailed reports whether a tolerant join produced no successes, and
// returns the first member error for context.
func AllFailed[T any](results []JoinResult[T]) (bool, error) {
	var first error
	for _, r := range results {
		if r.Err == nil {
			return false, nil
		}
		if first == nil {
			first = r.Err
		}
	}
	if first == nil {
		return false, nil
	}
	return true, errors.New(errors.CodeToolFailure, "all join members failed", first)
}
