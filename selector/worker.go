// Worker is the SocketSelector-equivalent of spec.md §4.3: it owns
// connection channels, processes CONNECT/READ/WRITE readiness, and
// drains the cross-thread write queue into each channel's WriteContext.
//
// Grounded on
// original_source/test/framework/src/main/java/org/elasticsearch/transport/nio/SocketSelector.java
// and SocketEventHandler.java / ChannelEventHandler.java.
package selector

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/momentics/nioselect/api"
	"github.com/momentics/nioselect/channel"
	"github.com/momentics/nioselect/internal/poller"
	"github.com/momentics/nioselect/internal/queue"
)

// Worker owns a set of connection channels and drives their I/O.
type Worker struct {
	Base

	handler api.WorkerEventHandler
	opts    Options

	mu         sync.Mutex
	registered map[int64]*channel.ConnChannel

	newChannels *queue.Removable[*channel.ConnChannel]
	newWrites   *queue.Removable[*channel.WriteOperation]

	readyBuf []poller.ReadyKey
}

// NewWorker constructs a Worker over an already-open readiness primitive.
func NewWorker(p poller.Poller, handler api.WorkerEventHandler, opts ...Option) *Worker {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	w := &Worker{
		handler:     handler,
		opts:        o,
		registered:  make(map[int64]*channel.ConnChannel),
		newChannels: queue.New[*channel.ConnChannel](),
		newWrites:   queue.New[*channel.WriteOperation](),
		readyBuf:    make([]poller.ReadyKey, 0, o.MaxEventsPerPoll),
	}
	w.Base = newBase(p, o)
	w.Base.doSelect = w.doSelect
	w.Base.cleanup = w.cleanup
	w.Base.removeRegistered = w.removeFromRegistered
	w.Base.notifyClose = func(ch *channel.Channel) { w.handler.HandleClose(ch) }
	return w
}

// RegisterSocketChannel is the producer API of spec.md §6.4: safe from
// any goroutine, including an Acceptor handing off a freshly accepted
// connection.
func (w *Worker) RegisterSocketChannel(cc *channel.ConnChannel) error {
	if !w.IsOpen() {
		return api.ErrSelectorClosed
	}
	var lost bool
	EnqueueWithCloseSafety(&w.Base, w.newChannels, cc, func(*channel.ConnChannel) { lost = true })
	if lost {
		return api.ErrSelectorClosed
	}
	return nil
}

// QueueWrite is spec.md §4.3.2's cross-thread enqueue: fails op's
// listener with a closed-selector cause if the selector is closed and
// the op was never observed by the selector thread; otherwise wakes the
// loop so it is drained on the next turn.
func (w *Worker) QueueWrite(op *channel.WriteOperation) {
	EnqueueWithCloseSafety(&w.Base, w.newWrites, op, func(o *channel.WriteOperation) {
		o.Fire(api.ErrSelectorClosed)
	})
}

// RegisteredChannels returns the connection channels currently owned by
// this selector.
func (w *Worker) RegisteredChannels() []*channel.ConnChannel {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*channel.ConnChannel, 0, len(w.registered))
	for _, c := range w.registered {
		out = append(out, c)
	}
	return out
}

func (w *Worker) removeFromRegistered(id int64) {
	w.mu.Lock()
	delete(w.registered, id)
	w.mu.Unlock()
}

func (w *Worker) doSelect(timeout time.Duration) error {
	w.drainPendingClose()

	// Step 1: set up new channels.
	for {
		cc, ok := w.newChannels.Dequeue()
		if !ok {
			break
		}
		interest := poller.Read
		if !cc.IsConnectComplete() {
			interest |= poller.Write
		}
		tok, err := w.p.Register(cc.Fd(), interest, cc)
		if err != nil {
			w.opts.Logger.Errorf("selector: register connection channel %d: %v", cc.ID(), err)
			w.handler.RegistrationException(cc, err)
			continue
		}
		if !cc.Register(w, tok) {
			_ = w.p.Deregister(tok)
			continue
		}
		w.mu.Lock()
		w.registered[cc.ID()] = cc
		w.mu.Unlock()
		w.handleRegistration(cc)
		if !cc.IsConnectComplete() {
			w.finishConnect(cc)
		}
	}

	// Step 2: drain queued writes.
	for {
		op, ok := w.newWrites.Dequeue()
		if !ok {
			break
		}
		w.queueWriteInChannelBuffer(op)
	}

	// Step 3: poll.
	keys, err := w.poll(timeout, w.readyBuf)
	if err != nil {
		if errors.Is(err, poller.ErrClosed) {
			return err
		}
		w.opts.Logger.Warnf("selector: poll error: %v", err)
		w.handler.SelectException(err)
		return nil
	}
	w.readyBuf = keys

	// Step 4: process ready keys.
	for _, k := range keys {
		cc, ok := k.Token.Attachment.(*channel.ConnChannel)
		if !ok || cc == nil {
			continue
		}
		if !k.Valid {
			w.opts.Logger.Debugf("selector: cancelled key for connection channel %d", cc.ID())
			w.handler.GenericChannelException(cc, api.ErrCancelledKey)
			continue
		}
		if !cc.IsConnectComplete() && k.Ready.Has(poller.Write) {
			w.finishConnect(cc)
		}
		if !cc.IsConnectComplete() {
			// Never read or write a half-open socket.
			continue
		}
		if k.Ready.Has(poller.Write) {
			w.handleWrite(cc)
		}
		if k.Ready.Has(poller.Read) {
			w.handleRead(cc)
		}
	}
	return nil
}

func (w *Worker) handleRegistration(cc *channel.ConnChannel) {
	cc.SetContexts(channel.NewReadContext(w.opts.ReadBufferSize), channel.NewWriteContext())
	w.handler.HandleRegistration(cc)
}

// finishConnect is spec.md §4.3.3. Callers must only invoke this when
// cc.IsConnectComplete() is currently false, so a true result here always
// represents a fresh PENDING→COMPLETE transition and HandleConnect fires
// exactly once for it.
func (w *Worker) finishConnect(cc *channel.ConnChannel) {
	ok, err := cc.FinishConnect()
	if err != nil {
		w.opts.Logger.Errorf("selector: finish connect on channel %d: %v", cc.ID(), err)
		w.handler.ConnectException(cc, err)
		return
	}
	if !ok {
		return
	}
	if wc := cc.WriteContext(); wc != nil && wc.HasQueuedWriteOps() {
		_ = cc.ArmReadWrite()
	} else {
		_ = cc.ArmRead()
	}
	w.handler.HandleConnect(cc)
}

func (w *Worker) handleRead(cc *channel.ConnChannel) {
	rc := cc.ReadContext()
	if rc == nil {
		return
	}
	_, eof, wouldBlock, err := rc.Read(cc.Fd())
	if err != nil {
		w.opts.Logger.Errorf("selector: read on channel %d: %v", cc.ID(), err)
		w.handler.ReadException(cc, err)
		return
	}
	if wouldBlock {
		return
	}
	if eof {
		w.handler.ReadException(cc, io.EOF)
		return
	}
	w.handler.HandleRead(cc)
}

func (w *Worker) handleWrite(cc *channel.ConnChannel) {
	empty, err := cc.Flush()
	if err != nil {
		w.opts.Logger.Errorf("selector: flush on channel %d: %v", cc.ID(), err)
		w.handler.WriteException(cc, err)
		return
	}
	if empty {
		_ = cc.ArmRead()
	}
	w.handler.HandleWrite(cc)
}

// queueWriteInChannelBuffer is spec.md §4.3.1: selector-thread-only. Arms
// WRITE interest, then hands op to the channel's WriteContext. If the
// channel is not writable, or arming fails, op's listener is failed and
// the WriteContext never sees it.
func (w *Worker) queueWriteInChannelBuffer(op *channel.WriteOperation) {
	cc := op.Channel
	if !cc.IsWritable() {
		op.Fire(api.ErrChannelClosed)
		return
	}
	if err := cc.ArmReadWrite(); err != nil {
		op.Fire(err)
		return
	}
	wc := cc.WriteContext()
	if wc == nil {
		op.Fire(api.ErrChannelClosed)
		return
	}
	wc.QueueWriteOperations(op)
}

func (w *Worker) cleanup() {
	for {
		op, ok := w.newWrites.Dequeue()
		if !ok {
			break
		}
		op.Fire(api.ErrSelectorClosed)
	}
	for {
		cc, ok := w.newChannels.Dequeue()
		if !ok {
			break
		}
		w.enqueueForClose(&cc.Channel)
	}

	w.mu.Lock()
	regs := make([]*channel.ConnChannel, 0, len(w.registered))
	for _, cc := range w.registered {
		regs = append(regs, cc)
	}
	w.mu.Unlock()
	for _, cc := range regs {
		w.enqueueForClose(&cc.Channel)
	}
	w.drainPendingClose()
}
