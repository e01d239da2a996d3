package transport

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/flashrpc/flashrpc/internal/constants"
	"github.com/flashrpc/flashrpc/internal/logging"
	"github.com/flashrpc/flashrpc/rpc"
)

// DatagramServer is one UDP socket, one call per datagram, no
// framing. A single goroutine drives the receive loop, so one
// rpc.Dispatcher is shared across the whole server's lifetime without
// contention.
type DatagramServer struct {
	conn       *net.UDPConn
	dispatcher *rpc.Dispatcher
	logger     *logging.Logger
	maxDgram   int
}

// NewDatagramServer wraps an already-bound UDP connection.
func NewDatagramServer(conn *net.UDPConn, dispatcher *rpc.Dispatcher, logger *logging.Logger) *DatagramServer {
	if logger == nil {
		logger = logging.Default()
	}
	return &DatagramServer{
		conn:       conn,
		dispatcher: dispatcher,
		logger:     logger,
		maxDgram:   constants.DefaultMaxMessageSize,
	}
}

// Serve runs the receive loop until ctx is canceled.
func (s *DatagramServer) Serve(ctx context.Context) error {
	buf := make([]byte, s.maxDgram)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(constants.DatagramReceiveTimeout))
		n, peer, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			select {
			case <-ctx.Done():
				return nil
			default:
				s.logger.Errorf("transport: datagram read failed: %v", err)
				return err
			}
		}

		reply := s.dispatcher.Dispatch(buf[:n])
		if reply == nil {
			continue
		}

		replyCopy := append([]byte(nil), reply...)
		if err := s.sendReply(peer, replyCopy); err != nil {
			s.logger.WithPeer(peer.String()).Warnf("transport: datagram reply failed: %v", err)
		}
	}
}

func (s *DatagramServer) sendReply(peer *net.UDPAddr, reply []byte) error {
	n, err := s.conn.WriteToUDP(reply, peer)
	if err != nil {
		return err
	}
	if n != len(reply) {
		return errors.New("transport: partial datagram send")
	}
	return nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
