// Package transport implements the two RPC front ends: a COBS-framed
// TCP stream server and an unframed UDP datagram server, both driving
// an rpc.Dispatcher.
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"

	"github.com/flashrpc/flashrpc/internal/constants"
	"github.com/flashrpc/flashrpc/internal/logging"
	"github.com/flashrpc/flashrpc/rpc"
	"github.com/flashrpc/flashrpc/wire"
)

// DispatcherFactory builds a fresh dispatcher for one connection. Each
// stream connection gets its own Dispatcher so its scratch buffers are
// never shared with another connection's goroutine (rpc.Dispatcher's
// doc comment: one Dispatcher per concurrent caller).
type DispatcherFactory func() *rpc.Dispatcher

// StreamServer accepts TCP connections and runs a COBS-framed
// request/reply loop on each, mirroring the ctx-cancelable
// accept/serve loop shape used throughout this codebase's other
// long-running workers.
type StreamServer struct {
	listener    net.Listener
	newDispatch DispatcherFactory
	logger      *logging.Logger
	maxFrameLen int

	connCount atomic.Uint64
}

// NewStreamServer wraps an already-bound listener. newDispatch is
// called once per accepted connection.
func NewStreamServer(listener net.Listener, newDispatch DispatcherFactory, logger *logging.Logger) *StreamServer {
	if logger == nil {
		logger = logging.Default()
	}
	return &StreamServer{
		listener:    listener,
		newDispatch: newDispatch,
		logger:      logger,
		maxFrameLen: constants.DefaultMaxMessageSize,
	}
}

// Serve runs the accept loop until ctx is canceled or the listener is
// closed. It never returns a non-nil error for a clean shutdown caused
// by ctx cancellation.
func (s *StreamServer) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.logger.Errorf("transport: accept failed: %v", err)
				return err
			}
		}

		id := s.connCount.Add(1)
		go s.handleConn(ctx, id, conn)
	}
}

func (s *StreamServer) handleConn(ctx context.Context, id uint64, conn net.Conn) {
	logger := s.logger.WithConn(id).WithPeer(conn.RemoteAddr().String())
	defer conn.Close()

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := configureKeepAlive(tcpConn); err != nil {
			logger.Debugf("transport: keepalive setup failed: %v", err)
		}
	}

	dispatcher := s.newDispatch()
	deframer := wire.NewDeframer(s.maxFrameLen)
	encodeBuf := make([]byte, s.maxFrameLen*2)
	readBuf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := conn.Read(readBuf)
		if n > 0 {
			frames, ferr := deframer.Feed(readBuf[:n])
			if ferr != nil {
				logger.Warnf("transport: deframe failed: %v", ferr)
				return
			}
			for _, frame := range frames {
				reply := dispatcher.Dispatch(frame)
				if reply == nil {
					continue
				}
				if err := writeFramed(conn, encodeBuf, reply); err != nil {
					logger.Warnf("transport: write failed: %v", err)
					return
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debugf("transport: read ended: %v", err)
			}
			return
		}
	}
}

// writeFramed COBS-encodes payload into buf and writes it to conn,
// retrying on short writes.
func writeFramed(conn net.Conn, buf, payload []byte) error {
	n, err := wire.EncodeCOBS(payload, buf)
	if err != nil {
		return err
	}
	written := 0
	for written < n {
		w, err := conn.Write(buf[written:n])
		if err != nil {
			return err
		}
		written += w
	}
	return nil
}
