//go:build linux

// DialTCP initiates a client-side, non-blocking connect(2), the missing
// counterpart to TCPFactory's accept-side wrapping: spec.md's
// ConnectFuture/FinishConnect machinery is otherwise only ever reachable in
// the already-COMPLETE state an accepted socket starts in. Grounded on
// other_examples/grafana-agent__conn.go's unix.Connect + SO_ERROR-probe
// pattern and accept_linux.go's os.NewFile/net.FileConn recovery trick.
package channel

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// DialTCP starts connecting to raddr without blocking and returns a
// ConnChannel with PENDING connect state. The caller registers it with a
// worker selector as usual; FinishConnect (driven by Worker.finishConnect on
// CONNECT/WRITE readiness) completes or fails it.
func DialTCP(id int64, raddr *net.TCPAddr) (*ConnChannel, error) {
	domain := unix.AF_INET
	if raddr.IP.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	sa, err := tcpAddrToSockaddr(raddr)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("connect: %w", err)
	}

	f := os.NewFile(uintptr(fd), "")
	c, err := net.FileConn(f)
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("wrap connecting socket: %w", err)
	}
	tcpConn, ok := c.(*net.TCPConn)
	if !ok {
		_ = c.Close()
		return nil, fmt.Errorf("connecting socket is not TCP")
	}

	return NewConnChannel(id, tcpConn, true)
}

func tcpAddrToSockaddr(addr *net.TCPAddr) (unix.Sockaddr, error) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		var sa unix.SockaddrInet4
		sa.Port = addr.Port
		copy(sa.Addr[:], ip4)
		return &sa, nil
	}
	ip6 := addr.IP.To16()
	if ip6 == nil {
		return nil, fmt.Errorf("invalid IP address: %v", addr.IP)
	}
	var sa unix.SockaddrInet6
	sa.Port = addr.Port
	copy(sa.Addr[:], ip6)
	return &sa, nil
}
