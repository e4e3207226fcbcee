//go:build unix

package transport

import (
	"errors"
	"io"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// probeSocket peeks at raw without blocking. It reports false when the
// connection does not expose a socket descriptor.
//
// A nil error means the socket is open with nothing to read. io.EOF means
// the peer closed it; errUnsolicitedData means bytes are waiting.
func probeSocket(raw net.Conn) (bool, error) {
	sc, ok := raw.(syscall.Conn)
	if !ok {
		return false, nil
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return true, err
	}

	var probeErr error
	buf := make([]byte, 1)
	err = rc.Read(func(fd uintptr) bool {
		n, _, rerr := unix.Recvfrom(int(fd), buf, unix.MSG_PEEK|unix.MSG_DONTWAIT)
		switch {
		case rerr != nil:
			if errors.Is(rerr, unix.EAGAIN) || errors.Is(rerr, unix.EWOULDBLOCK) {
				probeErr = nil
			} else {
				probeErr = rerr
			}
		case n == 0:
			probeErr = io.EOF
		default:
			probeErr = errUnsolicitedData
		}
		// Never wait for readiness.
		return true
	})
	if err != nil {
		return true, err
	}
	return true, probeErr
}
