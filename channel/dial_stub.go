//go:build !linux

package channel

import (
	"net"

	"github.com/momentics/nioselect/internal/poller"
)

// DialTCP is unsupported outside the Linux readiness primitive (see
// internal/poller/poller_stub.go); this repository targets Linux epoll as
// its reference implementation.
func DialTCP(id int64, raddr *net.TCPAddr) (*ConnChannel, error) {
	return nil, poller.ErrPlatformNotSupported
}
