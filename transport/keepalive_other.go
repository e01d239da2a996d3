//go:build !linux

package transport

import (
	"net"

	"github.com/flashrpc/flashrpc/internal/constants"
)

// configureKeepAlive falls back to the portable net.TCPConn knobs on
// platforms without TCP_KEEPIDLE/INTVL/CNT setsockopt support.
func configureKeepAlive(conn *net.TCPConn) error {
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}
	return conn.SetKeepAlivePeriod(constants.StreamKeepAliveIdle)
}
