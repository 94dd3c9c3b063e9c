package channel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// These are white-box regression tests for FinishConnect's three-way
// pollConnectFn contract: SO_ERROR alone cannot tell "still connecting"
// from "connected", so FinishConnect must stay pending until the probe
// reports writable, exactly as Net.pollConnect does in the original. A
// real loopback DialTCP completes its handshake too fast to reliably
// observe the pending window, so pollConnectFn is stubbed here instead.
func TestFinishConnectStaysPendingUntilPollReportsWritable(t *testing.T) {
	prev := pollConnectFn
	defer func() { pollConnectFn = prev }()

	calls := 0
	pollConnectFn = func(fd int) (bool, error, error) {
		calls++
		if calls == 1 {
			return false, nil, nil
		}
		return true, nil, nil
	}

	cc := &ConnChannel{connectFuture: newConnectFuture()}

	ok, err := cc.FinishConnect()
	require.NoError(t, err)
	require.False(t, ok, "must not report complete before the socket is writable")
	require.False(t, cc.IsConnectComplete())

	ok, err = cc.FinishConnect()
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, cc.IsConnectComplete())
	require.Equal(t, 2, calls)
}

func TestFinishConnectFailsFutureOnSocketError(t *testing.T) {
	prev := pollConnectFn
	defer func() { pollConnectFn = prev }()

	cause := errors.New("connection refused")
	pollConnectFn = func(fd int) (bool, error, error) {
		return true, cause, nil
	}

	cc := &ConnChannel{connectFuture: newConnectFuture()}

	ok, err := cc.FinishConnect()
	require.False(t, ok)
	require.ErrorIs(t, err, cause)

	failed, got := cc.connectFuture.IsFailed()
	require.True(t, failed)
	require.ErrorIs(t, got, cause)

	// Sticky: a second call re-raises the same cause without polling again.
	ok, err = cc.FinishConnect()
	require.False(t, ok)
	require.ErrorIs(t, err, cause)
}

func TestFinishConnectHardPollErrorFailsFuture(t *testing.T) {
	prev := pollConnectFn
	defer func() { pollConnectFn = prev }()

	hard := errors.New("poll: bad file descriptor")
	pollConnectFn = func(fd int) (bool, error, error) {
		return false, nil, hard
	}

	cc := &ConnChannel{connectFuture: newConnectFuture()}

	ok, err := cc.FinishConnect()
	require.False(t, ok)
	require.ErrorIs(t, err, hard)

	failed, got := cc.connectFuture.IsFailed()
	require.True(t, failed)
	require.ErrorIs(t, got, hard)
}

func TestFinishConnectIdempotentOnceComplete(t *testing.T) {
	prev := pollConnectFn
	defer func() { pollConnectFn = prev }()

	calls := 0
	pollConnectFn = func(fd int) (bool, error, error) {
		calls++
		return true, nil, nil
	}

	cc := &ConnChannel{connectFuture: newConnectFuture()}

	ok, err := cc.FinishConnect()
	require.True(t, ok)
	require.NoError(t, err)

	ok, err = cc.FinishConnect()
	require.True(t, ok)
	require.NoError(t, err)
	require.Equal(t, 1, calls, "a completed future must not be re-polled")
}
