// Package selector implements spec.md §4: the selector event-loop
// skeleton (Base) and its two concrete variants, Acceptor and Worker.
//
// Grounded on the original Elasticsearch transport/nio selectors
// (ESSelector.java for the shared loop skeleton, AcceptingSelector.java
// and SocketSelector.java for the concrete variants), reworked per
// spec.md §9's design note into composition rather than inheritance: Base
// holds the lifecycle machinery and is driven by a doSelect/cleanup pair
// of function values supplied by whichever concrete selector embeds it,
// rather than by overriding abstract methods.
package selector

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/momentics/nioselect/api"
	"github.com/momentics/nioselect/channel"
	"github.com/momentics/nioselect/internal/future"
	"github.com/momentics/nioselect/internal/gid"
	"github.com/momentics/nioselect/internal/poller"
	"github.com/momentics/nioselect/internal/queue"
)

// Base is the shared loop skeleton of spec.md §4.1. It is never
// constructed directly by a collaborator; Acceptor and Worker each embed
// one, supplying their own doSelect/cleanup.
type Base struct {
	p    poller.Poller
	opts Options

	closed  atomic.Bool
	runLock sync.Mutex
	loopGID atomic.Uint64

	runningFuture *future.Future[struct{}]

	// pendingClose is the FIFO of spec.md §4.1/§4.4/§4.5: channels
	// scheduled for close, drained once per loop turn before polling.
	// Shared verbatim between Acceptor and Worker because the close
	// drain is fully generic over *channel.Channel once CloseSocket is
	// bound at construction time (see channel.newChannel).
	pendingClose *queue.Removable[*channel.Channel]
	// removeRegistered evicts a closed channel's ID from the concrete
	// selector's own typed registered-channel set. Set once by
	// Acceptor/Worker at construction.
	removeRegistered func(id int64)
	// notifyClose is the collaborator hook fired for each closed channel,
	// nil for Acceptor (spec.md §6's acceptor-side hook list has no
	// handleClose) and set to the WorkerEventHandler.HandleClose method
	// value for Worker.
	notifyClose func(ch *channel.Channel)

	// doSelect runs exactly one loop turn for the concrete selector. It
	// must return nil for "continue looping" and poller.ErrClosed only
	// to signal that the underlying readiness primitive has gone away;
	// every other error it observes must be routed to the collaborator's
	// hooks (SelectException or a per-channel hook) internally, never
	// returned here (spec.md §4.1, steps 3-5).
	doSelect func(timeout time.Duration) error
	// cleanup runs once, after the loop has exited, still holding the
	// run-lock and still reporting IsOnCurrentThread() true.
	cleanup func()
}

func newBase(p poller.Poller, opts Options) Base {
	return Base{
		p:             p,
		opts:          opts,
		runningFuture: future.New[struct{}](),
		pendingClose:  queue.New[*channel.Channel](),
	}
}

// Run blocks the caller, running the loop until Close/CloseInterrupt is
// called. Returns api.ErrAlreadyRunning if another goroutine is already
// running it, or api.ErrSelectorClosed if it was already closed.
// Satisfies spec.md §4.1's single-starter invariant: on entry it records
// the current goroutine as the selector thread and signals the running
// future; on exit (by any path) it runs cleanup and releases the
// run-lock before returning.
func (b *Base) Run() error {
	if b.closed.Load() {
		return api.ErrSelectorClosed
	}
	if !b.runLock.TryLock() {
		return api.ErrAlreadyRunning
	}

	b.loopGID.Store(gid.Current())
	b.runningFuture.Set(struct{}{})

	defer func() {
		b.cleanup()
		_ = b.p.Close()
		b.loopGID.Store(0)
		b.runLock.Unlock()
	}()

	for !b.closed.Load() {
		err := b.doSelect(b.opts.SelectTimeout)
		if err == nil {
			continue
		}
		if errors.Is(err, poller.ErrClosed) {
			if b.closed.Load() {
				// Expected: Close/CloseInterrupt tore down the
				// primitive out from under us. Swallow and exit.
				break
			}
			// The primitive closed itself without anyone asking; this
			// is the bug case spec.md §4.1 step 3 calls out.
			return err
		}
		return err
	}
	return nil
}

// Close requests a graceful shutdown: wakes a blocked Poll so the loop
// observes the closed flag at its next turn, then blocks the caller until
// the loop has exited. Idempotent.
func (b *Base) Close() error { return b.close(false) }

// CloseInterrupt additionally tears down the underlying readiness
// primitive immediately, unblocking a selector thread that may be stuck
// inside a slow collaborator callback rather than inside Poll itself. Go
// has no Thread.interrupt() equivalent; closing the poller's backing fd
// out from under a blocked syscall is this repository's realization of
// that (see DESIGN.md's Open Question resolution).
func (b *Base) CloseInterrupt() error { return b.close(true) }

func (b *Base) close(interrupt bool) error {
	if b.closed.CompareAndSwap(false, true) {
		if interrupt {
			_ = b.p.Close()
		} else {
			_ = b.p.Wakeup()
		}
	}
	// Wait for the loop to actually exit, whether or not this call was
	// the one that flipped the flag — spec.md §8's idempotence property:
	// a second close() is a no-op except for the wait-for-exit behaviour.
	b.runLock.Lock()
	b.runLock.Unlock()
	return nil
}

// IsOpen reports whether Close/CloseInterrupt has been called.
func (b *Base) IsOpen() bool { return !b.closed.Load() }

// IsOnCurrentThread reports whether the calling goroutine is the one
// currently executing this selector's Run loop. False before Run starts
// and after it exits.
func (b *Base) IsOnCurrentThread() bool {
	g := b.loopGID.Load()
	return g != 0 && g == gid.Current()
}

// RunningFuture settles exactly once, when Run first starts executing.
func (b *Base) RunningFuture() *future.Future[struct{}] { return b.runningFuture }

// IsRunning reports whether the running future has settled and the
// selector has not yet closed.
func (b *Base) IsRunning() bool { return b.runningFuture.Done() && !b.closed.Load() }

// ArmInterest changes tok's registered interest set. Satisfies
// channel.Selector for both Acceptor and Worker.
func (b *Base) ArmInterest(tok poller.Token, interest poller.Interest) error {
	return b.p.Modify(tok, interest)
}

// poll is a thin wrapper shared by both concrete selectors' doSelect
// implementations: it reuses a caller-provided buffer across calls, per
// spec.md §5's resource-ownership note that the ready-key buffer belongs
// to the selector thread.
func (b *Base) poll(timeout time.Duration, buf []poller.ReadyKey) ([]poller.ReadyKey, error) {
	return b.p.Poll(timeout, buf)
}

// QueueChannelClose schedules ch for close on this selector's next drain,
// satisfying channel.Selector. Safe from any goroutine, including the
// selector's own. Implements spec.md §4.4's close-safety handshake: if
// this call observes the selector already closed, and the enqueued entry
// can still be removed (meaning the selector thread never saw it), the
// caller finishes the close itself rather than leaving it stranded.
func (b *Base) QueueChannelClose(ch *channel.Channel) {
	ch.MarkClosing()
	EnqueueWithCloseSafety(b, b.pendingClose, ch, b.finishCloseOne)
}

// drainPendingClose runs the spec.md §4.1 step-1 drain: every channel
// queued for close is closed, marked, evicted from the registered set,
// and has its close-future signalled, exactly once.
func (b *Base) drainPendingClose() {
	for {
		ch, ok := b.pendingClose.Dequeue()
		if !ok {
			return
		}
		b.finishCloseOne(ch)
	}
}

// enqueueForClose is the reentrant form used by a selector's own cleanup:
// called only from the selector thread while it is already shutting down,
// so no close-safety check against itself is needed.
func (b *Base) enqueueForClose(ch *channel.Channel) {
	ch.MarkClosing()
	b.pendingClose.Enqueue(ch)
}

// finishCloseOne is spec.md §4.5's channel close hook: release the OS
// resource, notify the collaborator (if any), transition to Closed,
// evict from the registered set, and settle the close-future — in that
// order, and exception-safe: a panic from notifyClose does not prevent
// the state transition, eviction, or future settlement that follow it.
func (b *Base) finishCloseOne(ch *channel.Channel) {
	_ = ch.CloseSocket()
	if b.notifyClose != nil {
		func() {
			defer func() { _ = recover() }()
			b.notifyClose(ch)
		}()
	}
	ch.MarkClosed()
	if b.removeRegistered != nil {
		b.removeRegistered(ch.ID())
	}
	ch.CloseFuture().Set(struct{}{})
}

// EnqueueWithCloseSafety implements spec.md §4.4's handshake for any
// cross-thread FIFO feeding a selector: enqueue, then re-check the
// selector's closed flag. If the caller is the selector's own thread
// (reentrant enqueue during shutdown), no check is needed — the item
// will be seen in this turn's own drain. Otherwise, if the selector is
// open, wake it so the new item is observed promptly. If the selector is
// already closed, attempt to remove what was just enqueued: success means
// the selector thread never saw it, and onLost runs so the caller's value
// is not silently dropped; failure means the selector thread already
// claimed it and will handle it via its own cleanup path.
func EnqueueWithCloseSafety[T any](b *Base, q *queue.Removable[T], val T, onLost func(T)) {
	if b.IsOnCurrentThread() {
		q.Enqueue(val)
		return
	}
	h := q.Enqueue(val)
	if b.closed.Load() {
		if q.Remove(h) {
			onLost(val)
		}
		return
	}
	_ = b.p.Wakeup()
}
