// Package logging defines the engine-wide Logger interface, grounded on
// joeycumines-go-utilpkg/eventloop/logging.go's package-level Logger
// abstraction: a small interface the core logs through, with a no-op
// default and a real structured-logging backend (zerolog) pluggable at
// construction time rather than at package-init time.
package logging

// Logger is the minimal structured-logging surface the selector core
// needs. Implementations must not block; this is called from the
// selector's own thread on the error paths of spec.md §7.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NoOp discards everything. It is the default when no Logger is supplied.
type NoOp struct{}

func (NoOp) Debugf(string, ...any) {}
func (NoOp) Warnf(string, ...any)  {}
func (NoOp) Errorf(string, ...any) {}
