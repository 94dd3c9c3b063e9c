//go:build linux

package channel

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// acceptTCP performs one non-blocking accept4(2) on fd and wraps the
// result back into a *net.TCPConn via os.NewFile/net.FileConn — the
// standard trick (used by raw-epoll frameworks throughout the retrieval
// pack's other_examples/ files) for recovering a *net.TCPConn from a
// raw accepted descriptor so callers keep net.Conn-shaped ergonomics
// for everything except the hot I/O path.
func acceptTCP(fd int) (*net.TCPConn, bool, error) {
	nfd, _, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, false, nil
		}
		return nil, false, err
	}

	f := os.NewFile(uintptr(nfd), "")
	c, err := net.FileConn(f)
	_ = f.Close()
	if err != nil {
		_ = unix.Close(nfd)
		return nil, false, err
	}
	tcpConn, ok := c.(*net.TCPConn)
	if !ok {
		_ = c.Close()
		return nil, false, fmt.Errorf("accepted socket is not TCP")
	}
	return tcpConn, true, nil
}
