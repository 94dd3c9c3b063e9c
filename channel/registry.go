// Registry restores the original's OpenChannels bookkeeping
// (AcceptorEventHandler.java: serverChannelOpened/acceptedChannelOpened/
// channelClosed), a feature spec.md's distillation dropped but which is
// small enough, and useful enough for graceful-shutdown accounting and
// metrics, to carry forward per SPEC_FULL.md §7.
package channel

import "sync"

// Registry is a concurrent-safe bookkeeping set of the channels recorded
// as opened and not yet removed by ChannelClosed, independent of which
// selector currently owns them. Safe for use from any goroutine.
type Registry struct {
	mu       sync.Mutex
	listen   map[int64]*ListenChannel
	accepted map[int64]*ConnChannel
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		listen:   make(map[int64]*ListenChannel),
		accepted: make(map[int64]*ConnChannel),
	}
}

// ServerChannelOpened records a newly registered listening channel.
func (r *Registry) ServerChannelOpened(ch *ListenChannel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listen[ch.ID()] = ch
}

// AcceptedChannelOpened records a newly accepted connection channel and
// arranges for ChannelClosed to run when its close-future settles.
func (r *Registry) AcceptedChannelOpened(ch *ConnChannel) {
	r.mu.Lock()
	r.accepted[ch.ID()] = ch
	r.mu.Unlock()

	ch.CloseFuture().OnComplete(func(struct{}, error) {
		r.ChannelClosed(ch.ID())
	})
}

// ChannelClosed removes id from both bookkeeping sets.
func (r *Registry) ChannelClosed(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listen, id)
	delete(r.accepted, id)
}

// Snapshot returns the currently tracked listening and accepted channels.
func (r *Registry) Snapshot() (listening []*ListenChannel, accepted []*ConnChannel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.listen {
		listening = append(listening, l)
	}
	for _, c := range r.accepted {
		accepted = append(accepted, c)
	}
	return listening, accepted
}
