package selector_test

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/nioselect/channel"
	"github.com/momentics/nioselect/internal/poller"
	"github.com/momentics/nioselect/internal/pollertest"
	"github.com/momentics/nioselect/selector"
)

func newListenChannel(t *testing.T, factory channel.Factory) (*channel.ListenChannel, net.Listener) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	lc, err := channel.NewListenChannel(channel.NewID(), ln.(*net.TCPListener), factory)
	require.NoError(t, err)
	return lc, ln
}

// newIdleWorker starts a real Worker so an Acceptor under test has somewhere
// real to hand off accepted connections.
func newIdleWorker(t *testing.T) (*selector.Worker, *recordingWorkerHandler) {
	t.Helper()
	fake := pollertest.New()
	handler := newRecordingWorkerHandler()
	w := selector.NewWorker(fake, handler)
	go func() { _ = w.Run() }()
	t.Cleanup(func() { _ = w.Close() })
	return w, handler
}

func TestAcceptorRegistersServerChannelAndNotifiesHandler(t *testing.T) {
	fake := pollertest.New()
	handler := newRecordingAcceptorHandler()
	worker, _ := newIdleWorker(t)
	registry := channel.NewRegistry()
	a := selector.NewAcceptor(fake, handler, selector.RoundRobin([]*selector.Worker{worker}), registry)

	go func() { _ = a.Run() }()
	defer func() { _ = a.Close() }()

	lc, ln := newListenChannel(t, channel.TCPFactory{})
	defer ln.Close()

	require.NoError(t, a.RegisterServerChannel(lc))

	select {
	case got := <-handler.registered:
		require.Equal(t, lc.ID(), got.ID())
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for ServerChannelRegistered")
	}

	require.Contains(t, a.RegisteredChannels(), lc)
	listening, _ := registry.Snapshot()
	require.Len(t, listening, 1)
}

func TestAcceptorAcceptsConnectionAndHandsOffToWorker(t *testing.T) {
	fake := pollertest.New()
	handler := newRecordingAcceptorHandler()
	worker, workerHandler := newIdleWorker(t)
	registry := channel.NewRegistry()
	a := selector.NewAcceptor(fake, handler, selector.RoundRobin([]*selector.Worker{worker}), registry)

	go func() { _ = a.Run() }()
	defer func() { _ = a.Close() }()

	lc, ln := newListenChannel(t, channel.TCPFactory{})
	defer ln.Close()
	require.NoError(t, a.RegisterServerChannel(lc))
	<-handler.registered

	clientConn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer clientConn.Close()

	fake.Script([]poller.ReadyKey{{
		Token: poller.Token{Attachment: lc},
		Ready: poller.Read,
		Valid: true,
	}})

	var accepted *channel.ConnChannel
	select {
	case accepted = <-handler.accepted:
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for AcceptChannel")
	}
	require.NotNil(t, accepted)

	_, acc := registry.Snapshot()
	require.Len(t, acc, 1)

	select {
	case got := <-workerHandler.registered:
		require.Equal(t, accepted.ID(), got.ID())
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for worker to register the handed-off channel")
	}
}

func TestAcceptorCancelledKeyInvokesGenericException(t *testing.T) {
	fake := pollertest.New()
	handler := newRecordingAcceptorHandler()
	worker, _ := newIdleWorker(t)
	a := selector.NewAcceptor(fake, handler, selector.RoundRobin([]*selector.Worker{worker}), nil)

	go func() { _ = a.Run() }()
	defer func() { _ = a.Close() }()

	lc, ln := newListenChannel(t, channel.TCPFactory{})
	defer ln.Close()
	require.NoError(t, a.RegisterServerChannel(lc))
	<-handler.registered

	fake.Script([]poller.ReadyKey{{
		Token: poller.Token{Attachment: lc},
		Valid: false,
	}})

	select {
	case err := <-handler.genericFailed:
		require.Error(t, err)
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for GenericServerChannelException")
	}
}

func TestAcceptorWorkerSupplierReturningNilClosesAcceptedChannelAndNotifies(t *testing.T) {
	fake := pollertest.New()
	handler := newRecordingAcceptorHandler()
	nilSupplier := func() *selector.Worker { return nil }
	a := selector.NewAcceptor(fake, handler, nilSupplier, nil)

	go func() { _ = a.Run() }()
	defer func() { _ = a.Close() }()

	lc, ln := newListenChannel(t, channel.TCPFactory{})
	defer ln.Close()
	require.NoError(t, a.RegisterServerChannel(lc))
	<-handler.registered

	clientConn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer clientConn.Close()

	fake.Script([]poller.ReadyKey{{
		Token: poller.Token{Attachment: lc},
		Ready: poller.Read,
		Valid: true,
	}})

	select {
	case err := <-handler.genericFailed:
		require.Error(t, err)
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for GenericServerChannelException on nil worker")
	}
}

// refusingFactory always fails a pending accept with a non-would-block
// error, exercising the AcceptException path without depending on a real
// accept(2) failure mode.
type refusingFactory struct{ err error }

func (f refusingFactory) AcceptChannel(l *channel.ListenChannel) (*channel.ConnChannel, error) {
	return nil, f.err
}

func TestAcceptorAcceptExceptionOnFactoryFailure(t *testing.T) {
	fake := pollertest.New()
	handler := newRecordingAcceptorHandler()
	worker, _ := newIdleWorker(t)
	a := selector.NewAcceptor(fake, handler, selector.RoundRobin([]*selector.Worker{worker}), nil)

	go func() { _ = a.Run() }()
	defer func() { _ = a.Close() }()

	cause := errors.New("accept4: too many open files")
	lc, ln := newListenChannel(t, refusingFactory{err: cause})
	defer ln.Close()
	require.NoError(t, a.RegisterServerChannel(lc))
	<-handler.registered

	fake.Script([]poller.ReadyKey{{
		Token: poller.Token{Attachment: lc},
		Ready: poller.Read,
		Valid: true,
	}})

	select {
	case err := <-handler.acceptFailed:
		require.ErrorIs(t, err, cause)
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for AcceptException")
	}
}

func TestAcceptorCloseIsIdempotentAndDrainsRegisteredChannels(t *testing.T) {
	fake := pollertest.New()
	handler := newRecordingAcceptorHandler()
	worker, _ := newIdleWorker(t)
	a := selector.NewAcceptor(fake, handler, selector.RoundRobin([]*selector.Worker{worker}), nil)

	go func() { _ = a.Run() }()

	lc, ln := newListenChannel(t, channel.TCPFactory{})
	defer ln.Close()
	require.NoError(t, a.RegisterServerChannel(lc))
	<-handler.registered

	require.NoError(t, a.Close())
	require.NoError(t, a.Close()) // idempotent

	require.Equal(t, channel.Closed, lc.State())
}
