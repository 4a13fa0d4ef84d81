package rpc

import (
	"context"
	"sync"
)

// Future is the eventual result of a call. It settles exactly once.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Rejected returns a future already rejected with err.
func Rejected[T any](err error) *Future[T] {
	f := newFuture[T]()
	f.reject(err)

	return f
}

// Done is closed once the future has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has a result.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future settles or ctx is done. Cancelling ctx only
// stops this wait; the call itself stays pending.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T

		return zero, ctx.Err()
	}
}

// resolve and reject report whether this call settled the future.
func (f *Future[T]) resolve(v T) bool {
	settled := false

	f.once.Do(func() {
		f.value = v
		settled = true

		close(f.done)
	})

	return settled
}

func (f *Future[T]) reject(err error) bool {
	settled := false

	f.once.Do(func() {
		f.err = err
		settled = true

		close(f.done)
	})

	return settled
}
