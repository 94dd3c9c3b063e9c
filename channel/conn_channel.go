package channel

import (
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"

	"github.com/momentics/nioselect/internal/future"
)

// ConnectFuture is the three-state connect outcome of spec.md §3:
// PENDING, COMPLETE, FAILED(cause). Transitions are sticky; listeners
// fire at most once. Built on the same future.Future primitive as
// CloseFuture, specialised with a struct{} payload that is meaningless except
// for its settlement (the interesting information is in the error).
type ConnectFuture struct {
	f *future.Future[struct{}]
}

func newConnectFuture() *ConnectFuture {
	return &ConnectFuture{f: future.New[struct{}]()}
}

// Complete reports PENDING→COMPLETE. Idempotent: a second call is a
// no-op, matching spec.md's "terminal states are sticky".
func (cf *ConnectFuture) Complete() { cf.f.Set(struct{}{}) }

// Fail reports PENDING→FAILED with cause. Idempotent.
func (cf *ConnectFuture) Fail(cause error) { cf.f.SetError(cause) }

// IsComplete reports whether the connect finished successfully.
func (cf *ConnectFuture) IsComplete() bool {
	_, err, done := cf.f.Get()
	return done && err == nil
}

// IsFailed reports whether the connect finished with an error, along
// with the cause.
func (cf *ConnectFuture) IsFailed() (bool, error) {
	_, err, done := cf.f.Get()
	return done && err != nil, err
}

// OnComplete registers a listener fired exactly once when the connect
// settles, with err nil on success.
func (cf *ConnectFuture) OnComplete(listener func(err error)) {
	cf.f.OnComplete(func(_ struct{}, err error) { listener(err) })
}

// ConnChannel is the connection-channel variant of spec.md §3: a remote
// address, a ConnectFuture, a ReadContext, and a WriteContext.
//
// Grounded on the original's NioSocketChannel (see
// test/framework/.../channel/NioSocketChannel.java): isWritable/
// isReadable ⇔ state == REGISTERED AND connect complete; close clears any
// queued writes even if called from a non-selector thread.
type ConnChannel struct {
	Channel

	conn   *net.TCPConn
	remote net.Addr

	connectFuture *ConnectFuture

	mu      sync.Mutex // guards readCtx/writeCtx install, not their use
	readCtx *ReadContext
	wCtx    *WriteContext
}

// NewConnChannel wraps an already-connected or still-connecting
// *net.TCPConn. pendingConnect is true for client-initiated connections
// that have not yet completed (see finishConnect semantics).
func NewConnChannel(id int64, conn *net.TCPConn, pendingConnect bool) (*ConnChannel, error) {
	fd, err := fdFromConn(conn)
	if err != nil {
		return nil, fmt.Errorf("extract fd: %w", err)
	}
	cc := &ConnChannel{
		conn:          conn,
		remote:        conn.RemoteAddr(),
		connectFuture: newConnectFuture(),
	}
	cc.Channel = newChannel(id, fd, cc.Close)
	if !pendingConnect {
		cc.connectFuture.Complete()
	}
	return cc, nil
}

// Close fails any queued writes with ErrChannelClosed and releases the
// underlying TCP connection. Idempotent, per net.Conn. Invoked by the
// owning selector's generic pending-close drain via Channel.CloseSocket.
func (c *ConnChannel) Close() error {
	c.clearQueuedWrites(ErrChannelClosed)
	return c.conn.Close()
}

// RemoteAddr returns the peer address captured at construction time.
func (c *ConnChannel) RemoteAddr() net.Addr { return c.remote }

// ConnectFuture returns the channel's connect outcome.
func (c *ConnChannel) ConnectFuture() *ConnectFuture { return c.connectFuture }

// IsConnectComplete reports whether finishConnect has succeeded.
func (c *ConnChannel) IsConnectComplete() bool { return c.connectFuture.IsComplete() }

// SetContexts installs the selector-thread-only read/write contexts,
// mirroring NioSocketChannel.setContexts. Called once from
// handleRegistration.
func (c *ConnChannel) SetContexts(read *ReadContext, write *WriteContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readCtx = read
	c.wCtx = write
}

// ReadContext returns the installed read context, or nil before
// registration has run.
func (c *ConnChannel) ReadContext() *ReadContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readCtx
}

// WriteContext returns the installed write context, or nil before
// registration has run.
func (c *ConnChannel) WriteContext() *WriteContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wCtx
}

// IsWritable reports state == Registered AND connect complete, per
// spec.md §3.
func (c *ConnChannel) IsWritable() bool {
	return c.State() == Registered && c.IsConnectComplete()
}

// IsReadable reports state == Registered AND connect complete.
func (c *ConnChannel) IsReadable() bool {
	return c.State() == Registered && c.IsConnectComplete()
}

// pollConnectFn is pollConnect behind a package-level var, the same
// test seam read_context.go uses for syscallRead, so FinishConnect's
// pending/complete/failed branches can be driven deterministically in
// tests without needing a socket whose handshake is actually in flight.
var pollConnectFn = pollConnect

// FinishConnect attempts to complete a pending connection. Idempotent: if
// already COMPLETE it returns (true, nil); if already FAILED it re-raises
// the stored cause. Otherwise it mirrors Net.pollConnect: first confirms
// the socket is actually writable (a non-blocking connect still in flight
// reads SO_ERROR == 0 exactly like a finished one, so writability must be
// checked first), and only then consults SO_ERROR for the outcome. Returns
// (false, nil) while still pending — callers must not treat that as
// failure.
func (c *ConnChannel) FinishConnect() (bool, error) {
	if c.connectFuture.IsComplete() {
		return true, nil
	}
	if failed, cause := c.connectFuture.IsFailed(); failed {
		return false, cause
	}

	done, soErr, err := pollConnectFn(c.Fd())
	if err != nil {
		c.connectFuture.Fail(err)
		return false, err
	}
	if !done {
		return false, nil
	}
	if soErr != nil {
		c.connectFuture.Fail(soErr)
		return false, soErr
	}
	c.connectFuture.Complete()
	return true, nil
}

// rawWrite performs a single non-blocking write attempt of b to the fd,
// used by WriteContext.Flush via fdWriter.
func (c *ConnChannel) rawWrite(b []byte) (int, error) {
	return syscall.Write(c.Fd(), b)
}

// fdWriter adapts ConnChannel.rawWrite to io.Writer for WriteContext.
type fdWriter struct{ c *ConnChannel }

func (w fdWriter) Write(b []byte) (int, error) { return w.c.rawWrite(b) }

// Flush drains the channel's WriteContext directly to the socket.
func (c *ConnChannel) Flush() (empty bool, err error) {
	wc := c.WriteContext()
	if wc == nil {
		return true, nil
	}
	return wc.Flush(fdWriter{c: c})
}

// clearQueuedWrites fails any queued writes with ErrChannelClosed. Called
// from Close, which may run on any goroutine, and from handleClose, which
// always runs on the selector thread — both are safe because WriteContext
// fields are only mutated here under the same invariant the original
// documents: clearing is safe even off-thread because it only discards
// state, never drains to the socket.
func (c *ConnChannel) clearQueuedWrites(cause error) {
	if wc := c.WriteContext(); wc != nil {
		wc.Clear(cause)
	}
}

// CloseAsync requests close and clears queued writes eagerly, mirroring
// NioSocketChannel.closeAsync's extra clearQueuedWrites before deferring
// to the selector thread's close hook.
func (c *ConnChannel) CloseAsync(cause error) {
	c.clearQueuedWrites(cause)
	c.QueueClose()
}

var _ io.Writer = fdWriter{}
