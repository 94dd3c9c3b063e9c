package channel

import "github.com/momentics/nioselect/internal/poller"

// Grounded on the original's SelectionKeyUtils
// (setAcceptInterested/setWriteInterested/setConnectInterested): a single
// narrow helper per interest transition. Each helper replaces the
// registration's whole interest set. The initial interest (Read, plus
// Write for a still-pending connect) is set when the selector registers
// the fd with the poller, not through these helpers; afterwards
// queueWriteInChannelBuffer arms Read|Write, a completed connect arms
// Read|Write or Read depending on whether writes are queued, and a
// drained WriteContext disarms back to Read only.
func (c *Channel) armInterest(interest poller.Interest) error {
	sel := c.Selector()
	if sel == nil {
		return nil
	}
	return sel.ArmInterest(c.Token(), interest)
}

// ArmRead sets the channel's interest set to Read only (accept-readiness
// for a ListenChannel, read-readiness for a ConnChannel — the same
// underlying epoll bit in both cases).
func (c *Channel) ArmRead() error { return c.armInterest(poller.Read) }

// ArmReadWrite sets the interest set to Read|Write, used when a
// ConnChannel has data queued to flush. Read stays armed throughout so a
// peer's data or close is never missed while draining a write backlog.
func (c *Channel) ArmReadWrite() error { return c.armInterest(poller.Read | poller.Write) }
