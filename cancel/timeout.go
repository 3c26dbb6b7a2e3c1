// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cancel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Timeout returns an Operation which resolves with a nil error once d
// elapses. Canceling it first stops the timer and settles it with
// [ErrCanceled].
func Timeout(d time.Duration) *Operation[struct{}] {
	op, settle := Deferred[struct{}]()

	timer := time.AfterFunc(d, func() {
		settle(struct{}{}, nil)
	})
	op.OnCancel(func() {
		if timer.Stop() {
			settle(struct{}{}, ErrCanceled)
		}
	})
	return op
}

// FromCallbacks returns an Operation which settles with [ErrCanceled]
// exactly when cb fires. Canceling the returned Operation settles it the
// same way without firing cb.
func FromCallbacks(cb *Callbacks) *Operation[struct{}] {
	op, settle := Deferred[struct{}]()

	cancelled := func() {
		settle(struct{}{}, ErrCanceled)
	}
	cb.Add(cancelled)
	op.OnCancel(cancelled)
	return op
}

// Race waits for the first of ops to settle and returns its index. Every
// other Operation is canceled before Race returns, so the caller only ever
// observes the winner. Race returns -1 if ops is empty.
func Race(ops ...Awaiter) int {
	if len(ops) == 0 {
		return -1
	}

	won := make(chan int, len(ops))
	stop := make(chan struct{})

	var wg sync.WaitGroup
	for i, op := range ops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-op.Settled():
				won <- i
			case <-stop:
			}
		}()
	}

	winner := <-won
	close(stop)
	wg.Wait()

	for i, op := range ops {
		if i == winner {
			continue
		}
		op.Cancel()
	}
	return winner
}

// FromContext returns an Operation which rejects once ctx is done. The
// rejection always matches [ErrCanceled] and also carries the context
// cause. Canceling the returned Operation detaches it from ctx.
func FromContext(ctx context.Context) *Operation[struct{}] {
	op, settle := Deferred[struct{}]()

	stop := context.AfterFunc(ctx, func() {
		settle(struct{}{}, canceledBy(context.Cause(ctx)))
	})
	op.OnCancel(func() {
		if stop() {
			settle(struct{}{}, ErrCanceled)
		}
	})
	return op
}

func canceledBy(cause error) error {
	if cause == nil || errors.Is(cause, ErrCanceled) {
		return ErrCanceled
	}
	return fmt.Errorf("%w: %w", ErrCanceled, cause)
}
