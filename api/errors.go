// Package api defines the external surface the selector core exposes to
// collaborators: event handler interfaces and the error taxonomy of
// spec.md §7. The channel factory (channel.Factory) and worker supplier
// (selector.WorkerSupplier) live in their own packages.
//
// Adapted from momentics-hioload-ws/api/errors.go: same structured-error
// shape (sentinel errors plus a code+context error type), retargeted from
// transport/buffer-pool errors to the selector's taxonomy.

package api

import (
	"fmt"

	"github.com/momentics/nioselect/channel"
)

// Common errors used across the selector core (spec.md §7's taxonomy).
var (
	// ErrSelectorClosed: an operation targeted a selector that has shut
	// down. Producer-facing: surfaces as a listener failure on enqueue.
	ErrSelectorClosed = fmt.Errorf("selector is closed")

	// ErrChannelClosed: a channel is no longer usable for reads/writes.
	// Aliased to channel.ErrChannelClosed so a collaborator's single
	// errors.Is(err, api.ErrChannelClosed) check matches regardless of
	// whether the cause originated inside package channel (e.g.
	// WriteContext.Clear on an actual close) or package selector (e.g.
	// rejecting a write into a non-writable channel).
	ErrChannelClosed = channel.ErrChannelClosed

	// ErrCancelledKey: the readiness primitive reported a key that no
	// longer refers to a live registration.
	ErrCancelledKey = fmt.Errorf("registration key is cancelled")

	// ErrRegistrationFailed: the readiness primitive refused to accept a
	// channel's registration.
	ErrRegistrationFailed = fmt.Errorf("channel registration failed")

	// ErrAlreadyRunning: Run() was called on a selector whose loop is
	// already being driven by another goroutine.
	ErrAlreadyRunning = fmt.Errorf("selector is already running")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeSelectorClosed
	ErrCodeChannelClosed
	ErrCodeCancelledKey
	ErrCodeRegistrationFailed
	ErrCodeInternal
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
