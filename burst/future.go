package burst

import "context"

// Future is the eventual result of an asynchronous task.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Completed returns a Future already holding v.
func Completed[T any](v T) *Future[T] {
	f := newFuture[T]()
	f.complete(v, nil)
	return f
}

// Failed returns a Future already holding err.
func Failed[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.complete(zero, err)
	return f
}

// Async runs fn on a new goroutine, outside any pool.
func Async[T any](fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		v, err := fn()
		f.complete(v, err)
	}()
	return f
}

func (f *Future[T]) complete(v T, err error) {
	f.val = v
	f.err = err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the result is available.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.val, f.err
}

// Get blocks until the result is available or ctx is done.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
