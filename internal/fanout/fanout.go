// Package fanout runs independent tasks concurrently and collects every
// result. A failing or panicking task never cancels its siblings.
package fanout

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Outcome is the settled result of one task.
type Outcome[R any] struct {
	Value R
	Err   error
}

// OK reports whether the task succeeded.
func (o Outcome[R]) OK() bool { return o.Err == nil }

// Settle calls fn for every item with at most limit calls in flight (no
// bound when limit <= 0) and waits for all of them. Outcomes keep the order
// of items.
func Settle[T, R any](ctx context.Context, limit int, items []T, fn func(context.Context, T) (R, error)) []Outcome[R] {
	out := make([]Outcome[R], len(items))
	if len(items) == 0 {
		return out
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() error {
			out[i] = run(ctx, i, func(ctx context.Context) (R, error) { return fn(ctx, item) })
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Join runs tasks that write to distinct destinations and waits for all of
// them. The returned slice holds each task's error by position.
func Join(ctx context.Context, limit int, tasks ...func(context.Context) error) []error {
	outs := Settle(ctx, limit, tasks, func(ctx context.Context, task func(context.Context) error) (struct{}, error) {
		return struct{}{}, task(ctx)
	})
	errs := make([]error, len(outs))
	for i, o := range outs {
		errs[i] = o.Err
	}
	return errs
}

func run[R any](ctx context.Context, i int, fn func(context.Context) (R, error)) (o Outcome[R]) {
	defer func() {
		if r := recover(); r != nil {
			o = Outcome[R]{Err: fmt.Errorf("task %d panicked: %v", i, r)}
		}
	}()
	if err := ctx.Err(); err != nil {
		return Outcome[R]{Err: err}
	}
	v, err := fn(ctx)
	return Outcome[R]{Value: v, Err: err}
}

// Values returns the values of the successful outcomes, in order.
func Values[R any](outs []Outcome[R]) []R {
	vals := make([]R, 0, len(outs))
	for _, o := range outs {
		if o.Err == nil {
			vals = append(vals, o.Value)
		}
	}
	return vals
}

// Failures returns the errors of the failed outcomes keyed by position.
func Failures[R any](outs []Outcome[R]) map[int]error {
	var failed map[int]error
	for i, o := range outs {
		if o.Err != nil {
			if failed == nil {
				failed = make(map[int]error)
			}
			failed[i] = o.Err
		}
	}
	return failed
}

// Reduce folds the successful outcomes into acc.
func Reduce[R, A any](outs []Outcome[R], acc A, fn func(A, R) A) A {
	for _, o := range outs {
		if o.Err == nil {
			acc = fn(acc, o.Value)
		}
	}
	return acc
}

// Sum adds the successful values. Failed outcomes contribute zero.
func Sum(outs []Outcome[decimal.Decimal]) decimal.Decimal {
	return Reduce(outs, decimal.Zero, decimal.Decimal.Add)
}

type barrierKey struct{}

// OnBarrier returns a context carrying fn. Barrier calls it at most once.
func OnBarrier(ctx context.Context, fn func()) context.Context {
	return context.WithValue(ctx, barrierKey{}, sync.OnceFunc(fn))
}

// Barrier signals that every fanned-out task of the current transform has
// settled and the join phase starts.
func Barrier(ctx context.Context) {
	if fn, ok := ctx.Value(barrierKey{}).(func()); ok {
		fn()
	}
}
