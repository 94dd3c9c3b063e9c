// Package channel implements the per-socket state machine of spec.md §3:
// UNREGISTERED → REGISTERED → CLOSING → CLOSED, driven by accept/connect/
// read/write events and by asynchronous close requests from arbitrary
// threads.
//
// Grounded on the original Elasticsearch transport/nio channel hierarchy
// (AbstractNioChannel / NioSocketChannel / NioServerSocketChannel) as
// referenced from test/framework/src/main/java/org/elasticsearch/transport/
// nio/channel/NioSocketChannel.java, reworked into idiomatic Go: no
// inheritance, a plain struct embedded by the two concrete variants, state
// held in a go.uber.org/atomic.Int32 so isWritable/isReadable are safe to
// call from any goroutine without taking the selector's own lock.
package channel

import (
	"syscall"

	"go.uber.org/atomic"

	"github.com/momentics/nioselect/internal/future"
	"github.com/momentics/nioselect/internal/poller"
)

// State is a channel's position in the spec.md §3 lifecycle. State is
// monotonically non-decreasing for the lifetime of a Channel.
type State int32

const (
	Unregistered State = iota
	Registered
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case Registered:
		return "registered"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Selector is the subset of the owning selector's surface a Channel needs:
// enough to ask it to schedule an asynchronous close. Defined here (rather
// than imported from package selector) to keep channel free of a
// dependency on selector, which itself depends on channel.
type Selector interface {
	QueueChannelClose(ch *Channel)
	IsOnCurrentThread() bool
	ArmInterest(tok poller.Token, interest poller.Interest) error
}

// Channel is the state shared by every concrete channel variant. It is
// never constructed directly; embed it in ListenChannel or ConnChannel.
type Channel struct {
	id    int64
	state atomic.Int32

	// fd is the raw descriptor extracted from the underlying net.Listener
	// or net.Conn at construction time (see fdFromConn). ListenChannel and
	// ConnChannel keep the original net.Listener/net.Conn alongside this
	// for Close and remote-address queries; I/O goes through fd directly.
	fd int

	token      poller.Token
	tokenValid atomic.Bool

	// selectorRef is the back-reference to the owning selector, set once
	// on first registration and never changed afterward (spec.md §3's
	// "owning selector, once set, never changes" invariant). A weak
	// relation, not ownership: the Channel does not keep the selector
	// alive, and removing the channel from the selector's registered set
	// does not touch this field.
	selectorRef atomic.Value // holds Selector

	closeFuture *future.Future[struct{}]

	// closeSocket is bound at construction time to the concrete variant's
	// own Close method (ListenChannel.Close / ConnChannel.Close), so the
	// generic pending-close drain in package selector can release the OS
	// resource without needing to know which concrete type it is holding
	// — including a channel closed before it was ever registered.
	closeSocket func() error
}

func newChannel(id int64, fd int, closeSocket func() error) Channel {
	return Channel{id: id, fd: fd, closeFuture: future.New[struct{}](), closeSocket: closeSocket}
}

// ID returns the channel's stable identity.
func (c *Channel) ID() int64 { return c.id }

// Fd returns the underlying OS file descriptor.
func (c *Channel) Fd() int { return c.fd }

// State returns the current lifecycle state.
func (c *Channel) State() State { return State(c.state.Load()) }

// Token returns the current readiness-primitive registration token. Only
// meaningful when State is Registered or Closing.
func (c *Channel) Token() poller.Token { return c.token }

// CloseFuture is signalled exactly once, after handleClose has run on the
// owning selector thread.
func (c *Channel) CloseFuture() *future.Future[struct{}] { return c.closeFuture }

// Selector returns the owning selector, or nil if never registered.
func (c *Channel) Selector() Selector {
	v := c.selectorRef.Load()
	if v == nil {
		return nil
	}
	return v.(Selector)
}

// Register transitions Unregistered → Registered, records the
// registration token, and sets the owning-selector back-reference. It is
// a no-op (returns false) if the channel is not in the Unregistered
// state, mirroring the original's register() returning false for a
// channel that lost a race or was closed before setup ran. Called by the
// owning selector's doSelect only.
func (c *Channel) Register(sel Selector, tok poller.Token) bool {
	if !c.state.CompareAndSwap(int32(Unregistered), int32(Registered)) {
		return false
	}
	c.token = tok
	c.tokenValid.Store(true)
	c.selectorRef.Store(sel)
	return true
}

// CloseSocket releases the underlying OS resource via the function bound
// at construction time. Safe to call even if Register was never called (e.g.
// a channel closed before it was ever registered); a nil hook is a no-op.
func (c *Channel) CloseSocket() error {
	if c.closeSocket == nil {
		return nil
	}
	return c.closeSocket()
}

// MarkClosing transitions Registered → Closing. Safe to call on an
// already-Closing or Closed channel: those calls are no-ops.
func (c *Channel) MarkClosing() {
	c.state.CompareAndSwap(int32(Registered), int32(Closing))
}

// MarkClosed transitions to Closed unconditionally (from Registered or
// Closing) and invalidates the registration token. Called once by the
// owning selector's channel-close hook.
func (c *Channel) MarkClosed() {
	c.state.Store(int32(Closed))
	c.tokenValid.Store(false)
}

// QueueClose schedules this channel for close on its owning selector.
// Safe to call from any goroutine, including the selector's own thread.
func (c *Channel) QueueClose() {
	c.MarkClosing()
	if sel := c.Selector(); sel != nil {
		sel.QueueChannelClose(c)
	}
}

// syscallConner is implemented by *net.TCPConn and *net.TCPListener.
type syscallConner interface {
	SyscallConn() (syscall.RawConn, error)
}

// fdFromConn extracts the raw file descriptor from a TCP connection or
// listener for registration with the readiness primitive. Once extracted,
// the channel performs its own reads/writes directly against the fd
// (package unix) rather than through conn.Read/conn.Write, so that only
// this repository's own poller observes readiness for it.
func fdFromConn(conn syscallConner) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	err = raw.Control(func(d uintptr) { fd = int(d) })
	if err != nil {
		return 0, err
	}
	return fd, nil
}
