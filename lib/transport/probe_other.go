//go:build !unix

package transport

import "net"

// probeSocket is unavailable here; callers fall back to a deadline peek.
func probeSocket(net.Conn) (bool, error) {
	return false, nil
}
