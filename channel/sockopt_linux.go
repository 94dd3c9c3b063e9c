//go:build linux

// pollConnect implements the original's Net.pollConnect contract
// (SocketChannelImpl.finishConnect, invoked from SocketSelector.java's
// attemptConnect): a non-blocking connect is only actually finished once
// the descriptor is writable. SO_ERROR alone cannot distinguish "still
// connecting" from "connected successfully" — it reads 0 in both cases —
// so this probes writability via a zero-timeout poll(2) first and only
// consults SO_ERROR once POLLOUT is observed. Grounded on
// other_examples/grafana-agent__conn.go's GetsockoptInt(SOL_SOCKET,
// SO_ERROR) pattern for the second half of the check.
package channel

import "golang.org/x/sys/unix"

// pollConnect reports whether fd's pending non-blocking connect has
// finished. done is false while the socket is not yet writable (connect
// still in flight); once done is true, sockErr carries the getsockopt
// SO_ERROR outcome (nil on success). err is a hard failure from poll(2) or
// getsockopt(2) itself, distinct from a failed connection.
func pollConnect(fd int) (done bool, sockErr error, err error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	n, err := unix.Poll(fds, 0)
	if err != nil {
		if err == unix.EINTR {
			return false, nil, nil
		}
		return false, nil, err
	}
	if n == 0 || fds[0].Revents&(unix.POLLOUT|unix.POLLERR|unix.POLLHUP) == 0 {
		return false, nil, nil
	}

	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return true, nil, err
	}
	if errno != 0 {
		return true, unix.Errno(errno), nil
	}
	return true, nil, nil
}
