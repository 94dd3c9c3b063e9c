// Functional options over selector.Base, grounded on
// momentics-hioload-ws/control/config.go and server/options.go's
// functional-options pattern over a plain struct.
package selector

import (
	"time"

	"github.com/momentics/nioselect/internal/logging"
)

// Options configures a Base. Zero value is meaningless; NewAcceptor and
// NewWorker start from defaultOptions, which holds the documented
// defaults, and apply the given Option values on top.
type Options struct {
	// SelectTimeout bounds how long one Poll call may block, which in
	// turn bounds shutdown latency — it is not otherwise behaviourally
	// significant (spec.md §4.1).
	SelectTimeout time.Duration
	// MaxEventsPerPoll caps the ready-key buffer reused across Poll
	// calls.
	MaxEventsPerPoll int
	// ReadBufferSize sizes each connection channel's ReadContext buffer.
	// Buffer sizing policy otherwise belongs to the caller (spec.md §1
	// Non-goals); this is just the one default a Worker must pick
	// somewhere to construct a ReadContext at all.
	ReadBufferSize int
	Logger         logging.Logger
}

// Option mutates an Options in place.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		SelectTimeout:    300 * time.Millisecond,
		MaxEventsPerPoll: 256,
		ReadBufferSize:   64 * 1024,
		Logger:           logging.NoOp{},
	}
}

// WithReadBufferSize overrides the default 64KiB per-channel read buffer.
func WithReadBufferSize(n int) Option {
	return func(o *Options) { o.ReadBufferSize = n }
}

// WithSelectTimeout overrides the default ~300ms poll timeout.
func WithSelectTimeout(d time.Duration) Option {
	return func(o *Options) { o.SelectTimeout = d }
}

// WithMaxEvents overrides the default ready-key buffer capacity.
func WithMaxEvents(n int) Option {
	return func(o *Options) { o.MaxEventsPerPoll = n }
}

// WithLogger installs a structured logger; the default is a no-op.
func WithLogger(l logging.Logger) Option {
	return func(o *Options) { o.Logger = l }
}
