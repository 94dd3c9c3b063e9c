// Package poller defines the readiness-primitive contract used by the
// selector event loop: register a descriptor with a set of interests,
// modify interests, poll with a timeout, and wake a blocked poll from
// another thread.
package poller

import (
	"errors"
	"time"
)

// Interest is a bitmask of readiness conditions a descriptor can be
// registered for. Accept-readiness and connect-readiness are reported
// through the same underlying bits as Read and Write respectively, since
// that is what the Linux readiness primitive actually exposes; the
// selector layer is responsible for interpreting the bit in context.
type Interest uint32

const (
	None Interest = 0
	Read Interest = 1 << 0
	Write Interest = 1 << 1
)

func (i Interest) Has(bit Interest) bool { return i&bit != 0 }

// ErrPlatformNotSupported is returned by platform stubs where no readiness
// primitive is implemented.
var ErrPlatformNotSupported = errors.New("poller: this platform is not supported")

// ErrClosed is returned by operations attempted on a closed Poller.
var ErrClosed = errors.New("poller: closed")

// Token is the opaque registration handle returned by Register. It is
// only valid for the lifetime of the registration; after Deregister (or
// after the owning Poller is closed) a Token is stale and any ReadyKey
// referencing it is reported invalid.
type Token struct {
	fd   int
	gen  *tokenGen
	Attachment any
}

// Fd exposes the raw descriptor for diagnostics; it must not be used to
// perform I/O that bypasses the owning channel.
func (t Token) Fd() int { return t.fd }

type tokenGen struct {
	valid bool
}

// ReadyKey describes one descriptor's readiness result from a Poll call.
type ReadyKey struct {
	Token Token
	Ready Interest
	// Valid is false if the descriptor was cancelled (deregistered or its
	// owning channel closed) between being reported ready and being
	// processed by the selector thread.
	Valid bool
}

// Poller is the readiness primitive. Register/Modify/Deregister may be
// called from the owning selector thread only; Wakeup and Close are safe
// from any goroutine (a selector's CloseInterrupt closes it from the
// closing goroutine).
type Poller interface {
	// Register adds fd to the interest set, returning a Token used to
	// Modify or Deregister it later. attachment is stashed on the Token
	// for the caller's own bookkeeping (mirrors SelectionKey.attach).
	Register(fd int, interest Interest, attachment any) (Token, error)

	// Modify changes the interest set for an existing registration.
	Modify(tok Token, interest Interest) error

	// Deregister removes a descriptor from the interest set. Safe to call
	// more than once; the second call is a no-op.
	Deregister(tok Token) error

	// Poll blocks up to timeout (or indefinitely if timeout < 0) and
	// appends ready descriptors to out[:0]. Returns the resulting slice.
	Poll(timeout time.Duration, out []ReadyKey) ([]ReadyKey, error)

	// Wakeup interrupts a blocked Poll call from any goroutine.
	Wakeup() error

	// Close releases the underlying OS resources. Safe to call more than
	// once.
	Close() error
}
