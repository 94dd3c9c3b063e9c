//go:build !linux

// Stub readiness primitive for platforms without an epoll-based
// implementation in this repository. Grounded on the pack's consistent
// stub idiom: momentics-hioload-ws/reactor/reactor_stub.go and
// momentics-hioload-ws/affinity/affinity_stub.go.

package poller

// New returns ErrPlatformNotSupported on non-Linux platforms. A Windows
// IOCP backend is a carried Non-goal (see SPEC_FULL.md §5); only the
// Linux epoll primitive is implemented.
func New() (Poller, error) {
	return nil, ErrPlatformNotSupported
}
