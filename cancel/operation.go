// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cancel

import (
	"context"
	"sync"

	"github.com/z5labs/stencil/internal/try"
)

// Awaiter is the type independent view of an [Operation].
type Awaiter interface {
	Settled() <-chan struct{}
	Cancel()
}

// Operation is a unit of in-flight work exposing a completion flag,
// a cooperative cancel request and a result which settles exactly once.
//
// Callers may only read [Operation.Done], invoke [Operation.Cancel] or
// wait for the result. Settling is reserved for whoever started the work.
type Operation[T any] struct {
	settled   chan struct{}
	settle    sync.Once
	cancelers Callbacks

	value T
	err   error
}

func newOperation[T any]() *Operation[T] {
	return &Operation[T]{
		settled: make(chan struct{}),
	}
}

// Go starts f on its own goroutine immediately and returns the Operation
// tracking it. The context given to f is canceled, with [ErrCanceled] as
// its cause, as soon as [Operation.Cancel] is called or ctx is done.
//
// A panic inside f settles the Operation with a [try.PanicError].
func Go[T any](ctx context.Context, f func(context.Context) (T, error)) *Operation[T] {
	op := newOperation[T]()

	ctx, cancel := context.WithCancelCause(ctx)
	op.cancelers.Add(func() {
		cancel(ErrCanceled)
	})

	go func() {
		defer cancel(nil)

		v, err := run(ctx, f)
		op.resolve(v, err)
	}()
	return op
}

func run[T any](ctx context.Context, f func(context.Context) (T, error)) (v T, err error) {
	defer try.Recover(&err)

	return f(ctx)
}

// Deferred returns a pending Operation along with the function which
// settles it. Only the first call to settle has any effect.
func Deferred[T any]() (*Operation[T], func(T, error)) {
	op := newOperation[T]()
	return op, op.resolve
}

// Resolved returns an Operation which has already settled with v and err.
func Resolved[T any](v T, err error) *Operation[T] {
	op := newOperation[T]()
	op.resolve(v, err)
	return op
}

func (op *Operation[T]) resolve(v T, err error) {
	op.settle.Do(func() {
		op.value = v
		op.err = err
		close(op.settled)
	})
}

// OnCancel registers f to run when the Operation is canceled. It is used
// by the owner of the work to release resources cooperatively.
func (op *Operation[T]) OnCancel(f func()) {
	op.cancelers.Add(f)
}

// Done reports whether the Operation has settled. Once true, it stays true.
func (op *Operation[T]) Done() bool {
	select {
	case <-op.settled:
		return true
	default:
		return false
	}
}

// Cancel requests cooperative termination of the work. Canceling an
// Operation which already settled, or which was already canceled, is a no-op.
func (op *Operation[T]) Cancel() {
	if op.Done() {
		return
	}
	op.cancelers.Call()
}

// Settled returns a channel which is closed once the Operation settles.
func (op *Operation[T]) Settled() <-chan struct{} {
	return op.settled
}

// Wait blocks until the Operation settles and returns its result.
func (op *Operation[T]) Wait() (T, error) {
	<-op.settled
	return op.value, op.err
}

// WaitContext is like Wait but gives up once ctx is done, in which case
// the context error is returned and the Operation is left untouched.
func (op *Operation[T]) WaitContext(ctx context.Context) (T, error) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-op.settled:
		return op.value, op.err
	}
}

// Err returns the settled error, or nil if the Operation has not settled yet.
func (op *Operation[T]) Err() error {
	if !op.Done() {
		return nil
	}
	return op.err
}
