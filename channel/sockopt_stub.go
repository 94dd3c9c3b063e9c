//go:build !linux

package channel

import "errors"

func pollConnect(fd int) (done bool, sockErr error, err error) {
	return false, nil, errors.New("channel: connect-completion probe not supported on this platform")
}
