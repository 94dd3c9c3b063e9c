// Package queue provides the cross-thread FIFOs the selector core needs.
//
// Removable is the queue type behind the pending-close, new-channel, and
// queued-write FIFOs of spec.md §4.4: a multi-producer/single-consumer
// queue that supports removing a specific previously-enqueued item by its
// handle. This is the one piece of the close-safety handshake that no
// library in the retrieval pack provides — eapache/queue and the teacher's
// own core/concurrency/lock_free_queue.go ring buffers only support
// head/tail access, not removal by identity — so it is built directly on
// container/list plus a mutex, which is the idiomatic Go shape for this
// access pattern (see DESIGN.md).
package queue

import (
	"container/list"
	"sync"
)

// Handle identifies a previously enqueued item for Remove.
type Handle struct {
	elem *list.Element
}

// Removable is safe for concurrent Enqueue/Remove from any goroutine;
// Dequeue must only be called by the single consumer.
type Removable[T any] struct {
	mu   sync.Mutex
	list list.List
}

// New constructs an empty queue.
func New[T any]() *Removable[T] {
	q := &Removable[T]{}
	q.list.Init()
	return q
}

// Enqueue appends val and returns a Handle usable with Remove.
func (q *Removable[T]) Enqueue(val T) Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.list.PushBack(val)
	return Handle{elem: e}
}

// Dequeue removes and returns the front item. ok is false if empty.
// Must only be called by the queue's single consumer.
func (q *Removable[T]) Dequeue() (val T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	front := q.list.Front()
	if front == nil {
		return val, false
	}
	q.list.Remove(front)
	return front.Value.(T), true
}

// Remove removes the item identified by h if it is still present.
// Returns true if it was removed, false if the consumer already took it.
func (q *Removable[T]) Remove(h Handle) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for e := q.list.Front(); e != nil; e = e.Next() {
		if e == h.elem {
			q.list.Remove(e)
			return true
		}
	}
	return false
}

// Len returns the current queue length. Approximate under concurrent use.
func (q *Removable[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list.Len()
}

// DrainAll removes and returns every queued item, in FIFO order.
func (q *Removable[T]) DrainAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, 0, q.list.Len())
	for e := q.list.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(T))
	}
	q.list.Init()
	return out
}
