package selector_test

import (
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/nioselect/channel"
)

// newConnPair dials a real loopback TCP pair and wraps the server side as a
// *channel.ConnChannel, returning the raw client conn so a test can push
// bytes across the wire to exercise real Read/Write syscalls against a
// pollertest.Fake-scripted readiness sequence.
func newConnPair(t *testing.T) (*channel.ConnChannel, *net.TCPConn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	clientCh := make(chan *net.TCPConn, 1)
	go func() {
		c, err := net.Dial("tcp", ln.Addr().String())
		require.NoError(t, err)
		clientCh <- c.(*net.TCPConn)
	}()

	serverConn, err := ln.Accept()
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverConn.Close() })

	clientConn := <-clientCh
	t.Cleanup(func() { _ = clientConn.Close() })

	cc, err := channel.NewConnChannel(channel.NewID(), serverConn.(*net.TCPConn), false)
	require.NoError(t, err)
	return cc, clientConn
}

// recordingWorkerHandler implements api.WorkerEventHandler, recording every
// call and signalling completion on buffered channels so tests can wait for
// an async worker-loop turn without polling.
type recordingWorkerHandler struct {
	mu sync.Mutex

	registrations []*channel.ConnChannel
	closes        []*channel.Channel

	registered     chan *channel.ConnChannel
	connected      chan *channel.ConnChannel
	connectFailed  chan error
	read           chan *channel.ConnChannel
	readFailed     chan error
	wrote          chan *channel.ConnChannel
	writeFailed    chan error
	closed         chan *channel.Channel
	genericFailed  chan error
	selectFailed   chan error
	uncaughtErrors chan error
}

func newRecordingWorkerHandler() *recordingWorkerHandler {
	return &recordingWorkerHandler{
		registered:     make(chan *channel.ConnChannel, 16),
		connected:      make(chan *channel.ConnChannel, 16),
		connectFailed:  make(chan error, 16),
		read:           make(chan *channel.ConnChannel, 16),
		readFailed:     make(chan error, 16),
		wrote:          make(chan *channel.ConnChannel, 16),
		writeFailed:    make(chan error, 16),
		closed:         make(chan *channel.Channel, 16),
		genericFailed:  make(chan error, 16),
		selectFailed:   make(chan error, 16),
		uncaughtErrors: make(chan error, 16),
	}
}

func (h *recordingWorkerHandler) HandleRegistration(ch *channel.ConnChannel) {
	h.mu.Lock()
	h.registrations = append(h.registrations, ch)
	h.mu.Unlock()
	h.registered <- ch
}
func (h *recordingWorkerHandler) RegistrationException(ch *channel.ConnChannel, err error) {
	h.genericFailed <- err
}
func (h *recordingWorkerHandler) HandleConnect(ch *channel.ConnChannel)           { h.connected <- ch }
func (h *recordingWorkerHandler) ConnectException(ch *channel.ConnChannel, err error) { h.connectFailed <- err }
func (h *recordingWorkerHandler) HandleRead(ch *channel.ConnChannel)              { h.read <- ch }
func (h *recordingWorkerHandler) ReadException(ch *channel.ConnChannel, err error) { h.readFailed <- err }
func (h *recordingWorkerHandler) HandleWrite(ch *channel.ConnChannel)             { h.wrote <- ch }
func (h *recordingWorkerHandler) WriteException(ch *channel.ConnChannel, err error) { h.writeFailed <- err }
func (h *recordingWorkerHandler) HandleClose(ch *channel.Channel) {
	h.mu.Lock()
	h.closes = append(h.closes, ch)
	h.mu.Unlock()
	h.closed <- ch
}
func (h *recordingWorkerHandler) GenericChannelException(ch *channel.ConnChannel, err error) {
	h.genericFailed <- err
}
func (h *recordingWorkerHandler) SelectException(err error)    { h.selectFailed <- err }
func (h *recordingWorkerHandler) UncaughtException(err error)  { h.uncaughtErrors <- err }

// recordingAcceptorHandler implements api.AcceptorEventHandler likewise.
type recordingAcceptorHandler struct {
	registered     chan *channel.ListenChannel
	accepted       chan *channel.ConnChannel
	acceptFailed   chan error
	genericFailed  chan error
	selectFailed   chan error
	uncaughtErrors chan error
}

func newRecordingAcceptorHandler() *recordingAcceptorHandler {
	return &recordingAcceptorHandler{
		registered:     make(chan *channel.ListenChannel, 16),
		accepted:       make(chan *channel.ConnChannel, 16),
		acceptFailed:   make(chan error, 16),
		genericFailed:  make(chan error, 16),
		selectFailed:   make(chan error, 16),
		uncaughtErrors: make(chan error, 16),
	}
}

func (h *recordingAcceptorHandler) ServerChannelRegistered(ch *channel.ListenChannel) {
	h.registered <- ch
}
func (h *recordingAcceptorHandler) AcceptChannel(ch *channel.ConnChannel) { h.accepted <- ch }
func (h *recordingAcceptorHandler) AcceptException(ch *channel.ListenChannel, err error) {
	h.acceptFailed <- err
}
func (h *recordingAcceptorHandler) GenericServerChannelException(ch *channel.ListenChannel, err error) {
	h.genericFailed <- err
}
func (h *recordingAcceptorHandler) SelectException(err error)   { h.selectFailed <- err }
func (h *recordingAcceptorHandler) UncaughtException(err error) { h.uncaughtErrors <- err }
