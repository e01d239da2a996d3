package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashrpc/flashrpc/internal/blockdev"
	"github.com/flashrpc/flashrpc/internal/constants"
	"github.com/flashrpc/flashrpc/internal/descpool"
	"github.com/flashrpc/flashrpc/internal/fsengine"
	"github.com/flashrpc/flashrpc/internal/mount"
	"github.com/flashrpc/flashrpc/wire"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *mount.Registry, *descpool.Pool) {
	t.Helper()
	registry := mount.NewRegistry()
	device := blockdev.New(blockdev.NewRAMDevice(0x30000), 4096)
	engine := fsengine.NewMemEngine(device)
	require.NoError(t, registry.Register(&mount.Mount{
		Label:       "data",
		BaseAddress: 0x110000,
		ByteLength:  0x30000,
		BlockSize:   4096,
		BlockCount:  48,
		Device:      device,
		Engine:      engine,
	}))
	registry.Seal()

	pool := descpool.New(2)
	fsHandlers := NewFilesystemHandlers(registry, pool, nil)

	d := NewDispatcher(constants.DefaultMaxMessageSize, []CallsetResolver{fsHandlers}, nil, nil)
	return d, registry, pool
}

func encodeCall(t *testing.T, seqn uint32, noReply bool, callset, msg uint8, payload []byte) []byte {
	t.Helper()
	buf := make([]byte, 512)
	n, err := wire.Encode(wire.Envelope{
		HeaderPresent: true,
		Header:        wire.Header{Seqn: seqn, NoReply: noReply},
		Callset:       callset,
		Msg:           msg,
		Payload:       payload,
	}, buf)
	require.NoError(t, err)
	return buf[:n]
}

func TestDispatchEchoesSeqnAndCallset(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	payload := make([]byte, 32)
	n := GetFsInfoCall{Label: "data"}.Marshal(payload)
	call := encodeCall(t, 7, false, CallsetFilesystem, MsgGetFsInfoCall, payload[:n])

	replyBytes := d.Dispatch(call)
	require.NotNil(t, replyBytes)

	env, err := wire.Decode(replyBytes)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), env.Header.Seqn)
	assert.Equal(t, CallsetFilesystem, env.Callset)
	assert.Equal(t, wire.StatusSuccess, env.Header.Status)
}

func TestDispatchNoReplySuppressesOutput(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	payload := make([]byte, 32)
	n := GetFsInfoCall{Label: "data"}.Marshal(payload)
	call := encodeCall(t, 1, true, CallsetFilesystem, MsgGetFsInfoCall, payload[:n])

	reply := d.Dispatch(call)
	assert.Nil(t, reply)
}

func TestDispatchUnknownCallset(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	call := encodeCall(t, 99, false, 0xFE, 1, nil)
	replyBytes := d.Dispatch(call)
	require.NotNil(t, replyBytes)

	env, err := wire.Decode(replyBytes)
	require.NoError(t, err)
	assert.Equal(t, uint32(99), env.Header.Seqn)
	assert.Equal(t, wire.StatusRPCBadResolverLookup, env.Header.Status)
}

func TestDispatchUnknownHandler(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	call := encodeCall(t, 5, false, CallsetFilesystem, 0xFE, nil)
	replyBytes := d.Dispatch(call)
	require.NotNil(t, replyBytes)

	env, err := wire.Decode(replyBytes)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusRPCBadHandlerLookup, env.Header.Status)
}

// Echo getfsinfo on a mount configured with base=0x110000,
// size=0x30000, block_size=4096, expect block_count=48.
func TestScenarioGetFsInfo(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	payload := make([]byte, 32)
	n := GetFsInfoCall{Label: "data"}.Marshal(payload)
	call := encodeCall(t, 42, false, CallsetFilesystem, MsgGetFsInfoCall, payload[:n])

	replyBytes := d.Dispatch(call)
	require.NotNil(t, replyBytes)
	env, err := wire.Decode(replyBytes)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), env.Header.Seqn)
	assert.Equal(t, wire.StatusSuccess, env.Header.Status)

	var reply GetFsInfoReply
	_, err = reply.Unmarshal(env.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x110000), reply.Address)
	assert.Equal(t, uint64(0x30000), reply.Size)
	assert.Equal(t, uint32(4096), reply.BlockSize)
	assert.Equal(t, uint32(48), reply.BlockCount)
}

// Scenario 5: unknown callset tag → RPC_BAD_RESOLVER_LOOKUP with the
// original seqn.
func TestScenarioUnknownCallsetTag(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	call := encodeCall(t, 123, false, 0x77, 1, nil)

	replyBytes := d.Dispatch(call)
	require.NotNil(t, replyBytes)
	env, err := wire.Decode(replyBytes)
	require.NoError(t, err)
	assert.Equal(t, uint32(123), env.Header.Seqn)
	assert.Equal(t, wire.StatusRPCBadResolverLookup, env.Header.Status)
}
