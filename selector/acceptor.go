// Acceptor is the AcceptingSelector-equivalent of spec.md §4.2: it owns
// listening sockets, processes ACCEPT readiness, and hands accepted
// connections to a worker selector chosen by a WorkerSupplier.
//
// Grounded on
// original_source/test/framework/src/main/java/org/elasticsearch/transport/nio/AcceptingSelector.java
// and AcceptorEventHandler.java.
package selector

import (
	"errors"
	"sync"
	"time"

	"github.com/momentics/nioselect/api"
	"github.com/momentics/nioselect/channel"
	"github.com/momentics/nioselect/internal/poller"
	"github.com/momentics/nioselect/internal/queue"
)

// Acceptor owns a set of listening channels and hands accepted
// connections off to worker selectors.
type Acceptor struct {
	Base

	handler  api.AcceptorEventHandler
	supplier WorkerSupplier
	registry *channel.Registry
	opts     Options

	mu         sync.Mutex
	registered map[int64]*channel.ListenChannel

	newListen *queue.Removable[*channel.ListenChannel]

	readyBuf []poller.ReadyKey
}

// NewAcceptor constructs an Acceptor over an already-open readiness
// primitive. registry may be nil if no open-channels bookkeeping is
// wanted.
func NewAcceptor(p poller.Poller, handler api.AcceptorEventHandler, supplier WorkerSupplier, registry *channel.Registry, opts ...Option) *Acceptor {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	a := &Acceptor{
		handler:    handler,
		supplier:   supplier,
		registry:   registry,
		opts:       o,
		registered: make(map[int64]*channel.ListenChannel),
		newListen:  queue.New[*channel.ListenChannel](),
		readyBuf:   make([]poller.ReadyKey, 0, o.MaxEventsPerPoll),
	}
	a.Base = newBase(p, o)
	a.Base.doSelect = a.doSelect
	a.Base.cleanup = a.cleanup
	a.Base.removeRegistered = a.removeFromRegistered
	return a
}

// RegisterServerChannel is the producer API of spec.md §6.4: safe from
// any goroutine. Returns api.ErrSelectorClosed if the selector is already
// closed and the channel was never seen by the loop (spec.md §4.4's
// "relies on the caller to notice closure" new-channel case).
func (a *Acceptor) RegisterServerChannel(ch *channel.ListenChannel) error {
	if !a.IsOpen() {
		return api.ErrSelectorClosed
	}
	var lost bool
	EnqueueWithCloseSafety(&a.Base, a.newListen, ch, func(*channel.ListenChannel) { lost = true })
	if lost {
		return api.ErrSelectorClosed
	}
	return nil
}

// RegisteredChannels returns the listening channels currently owned by
// this selector.
func (a *Acceptor) RegisteredChannels() []*channel.ListenChannel {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*channel.ListenChannel, 0, len(a.registered))
	for _, ch := range a.registered {
		out = append(out, ch)
	}
	return out
}

func (a *Acceptor) removeFromRegistered(id int64) {
	a.mu.Lock()
	delete(a.registered, id)
	a.mu.Unlock()
}

func (a *Acceptor) doSelect(timeout time.Duration) error {
	a.drainPendingClose()

	for {
		lc, ok := a.newListen.Dequeue()
		if !ok {
			break
		}
		tok, err := a.p.Register(lc.Fd(), poller.Read, lc)
		if err != nil {
			a.opts.Logger.Errorf("selector: register server channel %d: %v", lc.ID(), err)
			a.handler.GenericServerChannelException(lc, err)
			continue
		}
		if !lc.Register(a, tok) {
			_ = a.p.Deregister(tok)
			continue
		}
		a.mu.Lock()
		a.registered[lc.ID()] = lc
		a.mu.Unlock()
		a.serverChannelRegistered(lc)
	}

	keys, err := a.poll(timeout, a.readyBuf)
	if err != nil {
		if errors.Is(err, poller.ErrClosed) {
			return err
		}
		a.opts.Logger.Warnf("selector: poll error: %v", err)
		a.handler.SelectException(err)
		return nil
	}
	a.readyBuf = keys

	for _, k := range keys {
		lc, ok := k.Token.Attachment.(*channel.ListenChannel)
		if !ok || lc == nil {
			continue
		}
		if !k.Valid {
			a.opts.Logger.Debugf("selector: cancelled key for server channel %d", lc.ID())
			a.handler.GenericServerChannelException(lc, api.ErrCancelledKey)
			continue
		}
		if k.Ready.Has(poller.Read) {
			a.processAccept(lc)
		}
	}
	return nil
}

// serverChannelRegistered is spec.md §4.2 step 1's post-registration
// hook: record the channel in the open-channels registry, then notify
// the collaborator.
func (a *Acceptor) serverChannelRegistered(lc *channel.ListenChannel) {
	if a.registry != nil {
		a.registry.ServerChannelOpened(lc)
	}
	a.handler.ServerChannelRegistered(lc)
}

// processAccept drains every pending connection on lc (spec.md §4.2's
// acceptChannel): obtain one from the factory, register its close
// observer with the open-channels registry, and hand it to the worker
// the supplier picks.
func (a *Acceptor) processAccept(lc *channel.ListenChannel) {
	for {
		cc, err := lc.Factory().AcceptChannel(lc)
		if err != nil {
			if errors.Is(err, channel.ErrWouldBlock) {
				return
			}
			a.opts.Logger.Errorf("selector: accept on server channel %d: %v", lc.ID(), err)
			a.handler.AcceptException(lc, err)
			return
		}

		if a.registry != nil {
			a.registry.AcceptedChannelOpened(cc)
		}

		worker := a.supplier()
		if worker == nil {
			_ = cc.Close()
			err := errors.New("selector: worker supplier returned no worker")
			a.opts.Logger.Errorf("selector: %v", err)
			a.handler.GenericServerChannelException(lc, err)
			continue
		}
		if regErr := worker.RegisterSocketChannel(cc); regErr != nil {
			_ = cc.Close()
			a.opts.Logger.Errorf("selector: hand off accepted channel %d to worker: %v", cc.ID(), regErr)
			a.handler.GenericServerChannelException(lc, regErr)
			continue
		}
		a.handler.AcceptChannel(cc)
	}
}

func (a *Acceptor) cleanup() {
	a.mu.Lock()
	regs := make([]*channel.ListenChannel, 0, len(a.registered))
	for _, lc := range a.registered {
		regs = append(regs, lc)
	}
	a.mu.Unlock()

	for _, lc := range regs {
		a.enqueueForClose(&lc.Channel)
	}
	for {
		lc, ok := a.newListen.Dequeue()
		if !ok {
			break
		}
		a.enqueueForClose(&lc.Channel)
	}
	a.drainPendingClose()
}
