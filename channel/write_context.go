// WriteContext and WriteOperation implement spec.md §3's write pipeline:
// a selector-thread-only queue of pending writes attached to one
// connection channel, plus the data currently being drained to the
// socket.
//
// The per-channel queue is backed by github.com/eapache/queue, a plain
// growable ring buffer — exactly what a single-consumer, single-producer
// (the owning selector thread is both) FIFO needs, and a real dependency
// of the teacher's go.mod that its own code never imported.
package channel

import (
	"io"

	"github.com/eapache/queue"
)

// WriteOperation is an immutable record of one outbound write: the target
// channel, the buffers to send, and a completion listener that fires
// exactly once, per spec.md §3's WriteOperation invariant.
type WriteOperation struct {
	Channel  *ConnChannel
	Buffers  Buffers
	Listener func(err error)
}

// Buffers is one or more buffer references handed off by a write
// producer, per spec.md §3. Mirrors net.Buffers' shape; kept as a plain
// [][]byte so this package has no allocation or pooling policy of its
// own (spec.md §1 Non-goals).
type Buffers = [][]byte

// Fire invokes the listener (if any) with err; a nil error reports
// success. It has no guard against repeated calls: each call invokes the
// listener again. Exported so package selector can fail an op's listener
// before it is ever handed to a WriteContext (spec.md §4.3.1/§4.3.2).
func (op *WriteOperation) Fire(err error) {
	if op.Listener != nil {
		op.Listener(err)
	}
}

// WriteContext is selector-thread-only: only the owning selector thread
// may call QueueWriteOperations, HasQueuedWriteOps, Flush, or Clear.
type WriteContext struct {
	pending *queue.Queue
	// current holds the buffers still to be drained from the front
	// pending op; nil when the front op hasn't started draining yet.
	current Buffers
}

// NewWriteContext constructs an empty WriteContext.
func NewWriteContext() *WriteContext {
	return &WriteContext{pending: queue.New()}
}

// HasQueuedWriteOps reports whether any write is pending or in flight.
func (w *WriteContext) HasQueuedWriteOps() bool {
	return w.pending.Length() > 0 || len(w.current) > 0
}

// QueueWriteOperations appends op to the pending queue. Caller
// (SocketSelector.queueWriteInChannelBuffer in the original) is
// responsible for having already armed WRITE interest.
func (w *WriteContext) QueueWriteOperations(op *WriteOperation) {
	w.pending.Add(op)
}

// Flush attempts to drain queued writes to writer (a direct, non-blocking
// fd writer) until the socket would block or the queue empties. It
// returns true if the context is now empty (caller should disarm WRITE
// interest).
func (w *WriteContext) Flush(writer io.Writer) (empty bool, err error) {
	for {
		if len(w.current) == 0 {
			if w.pending.Length() == 0 {
				return true, nil
			}
			op := w.pending.Peek().(*WriteOperation)
			w.current = op.Buffers
		}

		for len(w.current) > 0 && len(w.current[0]) == 0 {
			w.current = w.current[1:]
		}
		if len(w.current) == 0 {
			w.completeFront()
			continue
		}

		n, werr := writer.Write(w.current[0])
		if n > 0 {
			w.current[0] = w.current[0][n:]
		}
		if werr != nil {
			if isWouldBlock(werr) {
				return false, nil
			}
			w.failFront(werr)
			return w.pending.Length() == 0 && len(w.current) == 0, werr
		}
		if n == 0 {
			// Nothing written and no error: treat as would-block to
			// avoid a busy loop; the caller will be re-invoked on the
			// next WRITE-ready event.
			return false, nil
		}
	}
}

func (w *WriteContext) completeFront() {
	op := w.pending.Remove().(*WriteOperation)
	w.current = nil
	op.Fire(nil)
}

func (w *WriteContext) failFront(err error) {
	op := w.pending.Remove().(*WriteOperation)
	w.current = nil
	op.Fire(err)
}

// Clear fails every queued op (including one partially in flight) with
// err, per spec.md §3's "on close, every queued op is failed with a
// closed-channel cause before the context is discarded".
func (w *WriteContext) Clear(err error) {
	w.current = nil
	for w.pending.Length() > 0 {
		op := w.pending.Remove().(*WriteOperation)
		op.Fire(err)
	}
}
