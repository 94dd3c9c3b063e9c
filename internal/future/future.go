// Package future provides the one-shot, listener-registerable completion
// primitive used for the connect-future, close-future, and running-future
// of spec.md §3/§9. Grounded on the original's PlainActionFuture and
// momentics-hioload-ws/api/shutdown.go's one-shot signalling shape.
package future

import "sync"

// Future settles at most once, either with a value or an error. Listeners
// registered before or after settlement are invoked exactly once, inline
// on the settling (or registering) goroutine, after the Future's lock has
// been released.
type Future[T any] struct {
	mu        sync.Mutex
	done      bool
	value     T
	err       error
	listeners []func(T, error)
}

// New returns a pending Future.
func New[T any]() *Future[T] {
	return &Future[T]{}
}

// Set settles the future with value and a nil error. A second call is a
// no-op: terminal states are sticky.
func (f *Future[T]) Set(value T) {
	f.settle(value, nil)
}

// SetError settles the future with the zero value and err. A second call
// is a no-op.
func (f *Future[T]) SetError(err error) {
	var zero T
	f.settle(zero, err)
}

func (f *Future[T]) settle(value T, err error) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done = true
	f.value = value
	f.err = err
	listeners := f.listeners
	f.listeners = nil
	f.mu.Unlock()

	for _, l := range listeners {
		l(value, err)
	}
}

// OnComplete registers a listener fired exactly once, synchronously if the
// future is already settled, or when it settles otherwise.
func (f *Future[T]) OnComplete(listener func(T, error)) {
	f.mu.Lock()
	if f.done {
		value, err := f.value, f.err
		f.mu.Unlock()
		listener(value, err)
		return
	}
	f.listeners = append(f.listeners, listener)
	f.mu.Unlock()
}

// Done reports whether the future has settled.
func (f *Future[T]) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Get returns the settled value/error. ok is false if still pending.
func (f *Future[T]) Get() (value T, err error, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err, f.done
}
