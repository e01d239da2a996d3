//go:build linux

package transport

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/flashrpc/flashrpc/internal/constants"
)

// configureKeepAlive tunes TCP_KEEPIDLE/INTVL/CNT directly via
// setsockopt so idle connections are detected well inside the
// script-worker's single-flight contract without depending on OS
// keepalive defaults (often 2+ hours).
func configureKeepAlive(conn *net.TCPConn) error {
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}

	rawConn, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	err = rawConn.Control(func(fd uintptr) {
		idleSecs := int(constants.StreamKeepAliveIdle.Seconds())
		intervalSecs := int(constants.StreamKeepAliveInterval.Seconds())

		if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, idleSecs); e != nil {
			sockErr = e
			return
		}
		if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, intervalSecs); e != nil {
			sockErr = e
			return
		}
		if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPCNT, constants.StreamKeepAliveCount); e != nil {
			sockErr = e
			return
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}
