//go:build !linux

package channel

import (
	"errors"
	"net"
)

func acceptTCP(fd int) (*net.TCPConn, bool, error) {
	return nil, false, errors.New("channel: raw accept not supported on this platform")
}
