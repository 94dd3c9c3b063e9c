package channel

import (
	"fmt"
	"net"
)

// Factory produces a new ConnChannel from a socket accepted on a
// ListenChannel. Grounded on the original's ChannelFactory
// (AcceptorEventHandler.acceptChannel calls channelFactory.acceptNioChannel).
type Factory interface {
	AcceptChannel(l *ListenChannel) (*ConnChannel, error)
}

// ListenChannel is the listening-channel variant of spec.md §3: a factory
// that produces accepted connection channels, and a supplier (owned by
// the caller, typically the Acceptor) that picks the worker selector each
// new connection is handed to. The supplier itself lives in package
// selector to avoid an import cycle; ListenChannel only holds the
// Factory.
type ListenChannel struct {
	Channel

	ln      *net.TCPListener
	factory Factory
}

// NewListenChannel wraps an already-bound *net.TCPListener.
func NewListenChannel(id int64, ln *net.TCPListener, factory Factory) (*ListenChannel, error) {
	fd, err := fdFromConn(ln)
	if err != nil {
		return nil, fmt.Errorf("extract fd: %w", err)
	}
	lc := &ListenChannel{
		ln:      ln,
		factory: factory,
	}
	lc.Channel = newChannel(id, fd, lc.Close)
	return lc, nil
}

// Close releases the underlying TCP listener. Idempotent, per net.Listener.
func (l *ListenChannel) Close() error { return l.ln.Close() }

// Factory returns the injected connection-channel factory.
func (l *ListenChannel) Factory() Factory { return l.factory }

// Addr returns the bound local address.
func (l *ListenChannel) Addr() net.Addr { return l.ln.Addr() }

// AcceptTCP performs one non-blocking accept attempt directly on the raw
// fd (see fdFromConn's doc comment for why), returning the accepted
// *net.TCPConn. ok is false and err is nil if no connection is pending
// right now (EAGAIN).
func (l *ListenChannel) AcceptTCP() (conn *net.TCPConn, ok bool, err error) {
	return acceptTCP(l.Fd())
}

// TCPFactory is the default Factory: one AcceptTCP attempt wrapped
// straight into a ConnChannel, for the common case of a bare TCP server
// with no collaborator-specific accepted-channel setup.
type TCPFactory struct{}

func (TCPFactory) AcceptChannel(l *ListenChannel) (*ConnChannel, error) {
	conn, ok, err := l.AcceptTCP()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrWouldBlock
	}
	return NewConnChannel(NewID(), conn, false)
}
