// Handler interfaces are the collaborator surface of spec.md §6: every
// method here runs on the owning selector's own goroutine and must not
// block. Grounded on the original transport/nio event-handler hierarchy
// (AcceptorEventHandler.java, ChannelEventHandler.java / SocketEventHandler.java),
// collapsed to the idiomatic Go shape of one interface per selector kind
// plus a shared base.
package api

import "github.com/momentics/nioselect/channel"

// EventHandler carries the two selector-wide hooks every selector kind
// invokes, regardless of whether it is an acceptor or a worker.
type EventHandler interface {
	// SelectException is invoked when the readiness primitive itself
	// reports an I/O error from Poll. The loop continues.
	SelectException(err error)
	// UncaughtException is the hook for errors not classified by a more
	// specific hook. The Acceptor and Worker in package selector do not
	// call it: they route every error they observe to a more specific
	// hook, and a panic raised inside another hook is not recovered by
	// their loops (only HandleClose panics are recovered).
	UncaughtException(err error)
}

// AcceptorEventHandler is implemented by the collaborator driving an
// Acceptor selector.
type AcceptorEventHandler interface {
	EventHandler
	ServerChannelRegistered(ch *channel.ListenChannel)
	AcceptChannel(ch *channel.ConnChannel)
	AcceptException(ch *channel.ListenChannel, err error)
	GenericServerChannelException(ch *channel.ListenChannel, err error)
}

// WorkerEventHandler is implemented by the collaborator driving a Worker
// selector.
type WorkerEventHandler interface {
	EventHandler
	HandleRegistration(ch *channel.ConnChannel)
	RegistrationException(ch *channel.ConnChannel, err error)
	HandleConnect(ch *channel.ConnChannel)
	ConnectException(ch *channel.ConnChannel, err error)
	HandleRead(ch *channel.ConnChannel)
	ReadException(ch *channel.ConnChannel, err error)
	HandleWrite(ch *channel.ConnChannel)
	WriteException(ch *channel.ConnChannel, err error)
	HandleClose(ch *channel.Channel)
	GenericChannelException(ch *channel.ConnChannel, err error)
}
