package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flashrpc/flashrpc/internal/blockdev"
	"github.com/flashrpc/flashrpc/internal/descpool"
	"github.com/flashrpc/flashrpc/internal/fsengine"
	"github.com/flashrpc/flashrpc/internal/mount"
	"github.com/flashrpc/flashrpc/rpc"
	"github.com/flashrpc/flashrpc/wire"
)

func newTestRegistry(t *testing.T) *mount.Registry {
	t.Helper()
	registry := mount.NewRegistry()
	device := blockdev.New(blockdev.NewRAMDevice(0x30000), 4096)
	require.NoError(t, registry.Register(&mount.Mount{
		Label:       "data",
		BaseAddress: 0x110000,
		ByteLength:  0x30000,
		BlockSize:   4096,
		BlockCount:  48,
		Device:      device,
		Engine:      fsengine.NewMemEngine(device),
	}))
	registry.Seal()
	return registry
}

func newTestDispatcherForTransport(t *testing.T) *rpc.Dispatcher {
	t.Helper()
	registry := newTestRegistry(t)
	pool := descpool.New(4)
	fsHandlers := rpc.NewFilesystemHandlers(registry, pool, nil)
	return rpc.NewDispatcher(2048, []rpc.CallsetResolver{fsHandlers}, nil, nil)
}

func getFsInfoFrame(t *testing.T, seqn uint32) []byte {
	t.Helper()
	payload := make([]byte, 32)
	n := rpc.GetFsInfoCall{Label: "data"}.Marshal(payload)
	buf := make([]byte, 128)
	n2, err := wire.Encode(wire.Envelope{
		HeaderPresent: true,
		Header:        wire.Header{Seqn: seqn},
		Callset:       rpc.CallsetFilesystem,
		Msg:           rpc.MsgGetFsInfoCall,
		Payload:       payload[:n],
	}, buf)
	require.NoError(t, err)
	return buf[:n2]
}

// Scenario 1: a single UDP datagram round-trips through the dispatcher
// with no framing.
func TestDatagramEcho(t *testing.T) {
	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer serverConn.Close()

	dispatcher := newTestDispatcherForTransport(t)
	server := NewDatagramServer(serverConn, dispatcher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Serve(ctx)

	clientConn, err := net.DialUDP("udp", nil, serverConn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer clientConn.Close()

	call := getFsInfoFrame(t, 17)
	_, err = clientConn.Write(call)
	require.NoError(t, err)

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	n, err := clientConn.Read(buf)
	require.NoError(t, err)

	env, err := wire.Decode(buf[:n])
	require.NoError(t, err)
	require.Equal(t, uint32(17), env.Header.Seqn)
	require.Equal(t, wire.StatusSuccess, env.Header.Status)
}
