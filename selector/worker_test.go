package selector_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/nioselect/api"
	"github.com/momentics/nioselect/channel"
	"github.com/momentics/nioselect/internal/poller"
	"github.com/momentics/nioselect/internal/pollertest"
	"github.com/momentics/nioselect/selector"
)

const waitFor = 2 * time.Second

func TestWorkerRegistersChannelAndArmsReadInterest(t *testing.T) {
	fake := pollertest.New()
	handler := newRecordingWorkerHandler()
	w := selector.NewWorker(fake, handler)

	go func() { _ = w.Run() }()
	defer func() { _ = w.Close() }()

	cc, _ := newConnPair(t)
	require.NoError(t, w.RegisterSocketChannel(cc))

	select {
	case got := <-handler.registered:
		require.Equal(t, cc.ID(), got.ID())
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for HandleRegistration")
	}

	require.Contains(t, w.RegisteredChannels(), cc)

	interest, ok := fake.Interest(cc.Fd())
	require.True(t, ok)
	require.Equal(t, poller.Read, interest)
}

func TestWorkerQueueWriteFlushesOnWriteReadiness(t *testing.T) {
	fake := pollertest.New()
	handler := newRecordingWorkerHandler()
	w := selector.NewWorker(fake, handler)

	go func() { _ = w.Run() }()
	defer func() { _ = w.Close() }()

	cc, client := newConnPair(t)
	require.NoError(t, w.RegisterSocketChannel(cc))
	<-handler.registered

	var fireErr error
	fired := make(chan struct{})
	w.QueueWrite(&channel.WriteOperation{
		Channel: cc,
		Buffers: channel.Buffers{[]byte("hello")},
		Listener: func(err error) {
			fireErr = err
			close(fired)
		},
	})

	// queueWriteInChannelBuffer runs on the worker's own thread during its
	// next doSelect turn; wait until it has armed WRITE interest for the op,
	// then script a WRITE-ready event so handleWrite flushes it straight to
	// the real socket.
	require.Eventually(t, func() bool {
		interest, _ := fake.Interest(cc.Fd())
		return interest.Has(poller.Write)
	}, waitFor, time.Millisecond)
	fake.Script([]poller.ReadyKey{{
		Token: poller.Token{Attachment: cc},
		Ready: poller.Write,
		Valid: true,
	}})

	select {
	case got := <-handler.wrote:
		require.Equal(t, cc.ID(), got.ID())
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for HandleWrite")
	}

	select {
	case <-fired:
		require.NoError(t, fireErr)
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for write listener")
	}

	buf := make([]byte, 5)
	require.NoError(t, client.SetReadDeadline(time.Now().Add(waitFor)))
	_, err := client.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
}

func TestWorkerHandleReadFiresOnReadReadiness(t *testing.T) {
	fake := pollertest.New()
	handler := newRecordingWorkerHandler()
	w := selector.NewWorker(fake, handler)

	go func() { _ = w.Run() }()
	defer func() { _ = w.Close() }()

	cc, client := newConnPair(t)
	require.NoError(t, w.RegisterSocketChannel(cc))
	<-handler.registered

	_, err := client.Write([]byte("ping"))
	require.NoError(t, err)

	fake.Script([]poller.ReadyKey{{
		Token: poller.Token{Attachment: cc},
		Ready: poller.Read,
		Valid: true,
	}})

	select {
	case got := <-handler.read:
		require.Equal(t, cc.ID(), got.ID())
		require.Equal(t, "ping", string(cc.ReadContext().LastRead()))
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for HandleRead")
	}
}

func TestWorkerQueueWriteIntoClosedSelectorFailsListener(t *testing.T) {
	fake := pollertest.New()
	handler := newRecordingWorkerHandler()
	w := selector.NewWorker(fake, handler)

	go func() { _ = w.Run() }()
	require.NoError(t, w.Close())

	cc, _ := newConnPair(t)
	var fireErr error
	fired := make(chan struct{})
	w.QueueWrite(&channel.WriteOperation{
		Channel: cc,
		Buffers: channel.Buffers{[]byte("x")},
		Listener: func(err error) {
			fireErr = err
			close(fired)
		},
	})

	select {
	case <-fired:
		require.ErrorIs(t, fireErr, api.ErrSelectorClosed)
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for write listener on closed selector")
	}
}

func TestWorkerRegisterSocketChannelIntoClosedSelectorFails(t *testing.T) {
	fake := pollertest.New()
	handler := newRecordingWorkerHandler()
	w := selector.NewWorker(fake, handler)

	go func() { _ = w.Run() }()
	require.NoError(t, w.Close())

	cc, _ := newConnPair(t)
	err := w.RegisterSocketChannel(cc)
	require.ErrorIs(t, err, api.ErrSelectorClosed)
}

func TestWorkerCancelledKeyInvokesGenericException(t *testing.T) {
	fake := pollertest.New()
	handler := newRecordingWorkerHandler()
	w := selector.NewWorker(fake, handler)

	go func() { _ = w.Run() }()
	defer func() { _ = w.Close() }()

	cc, _ := newConnPair(t)
	require.NoError(t, w.RegisterSocketChannel(cc))
	<-handler.registered

	fake.Script([]poller.ReadyKey{{
		Token: poller.Token{Attachment: cc},
		Valid: false,
	}})

	select {
	case err := <-handler.genericFailed:
		require.ErrorIs(t, err, api.ErrCancelledKey)
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for GenericChannelException")
	}
}

func TestWorkerCloseIsIdempotentAndDrainsRegisteredChannels(t *testing.T) {
	fake := pollertest.New()
	handler := newRecordingWorkerHandler()
	w := selector.NewWorker(fake, handler)

	go func() { _ = w.Run() }()

	cc, _ := newConnPair(t)
	require.NoError(t, w.RegisterSocketChannel(cc))
	<-handler.registered

	require.NoError(t, w.Close())
	require.NoError(t, w.Close()) // idempotent

	select {
	case got := <-handler.closed:
		require.Equal(t, cc.ID(), got.ID())
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for HandleClose during shutdown drain")
	}
	require.Equal(t, channel.Closed, cc.State())
}
