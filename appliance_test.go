package flashrpc

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashrpc/flashrpc/rpc"
	"github.com/flashrpc/flashrpc/script"
	"github.com/flashrpc/flashrpc/wire"
)

type fakeInterpreter struct{}

func (fakeInterpreter) Run(source []byte, chunkName string) (string, error) { return "", nil }
func (fakeInterpreter) Close()                                              {}

func newFakeInterpreter() script.Interpreter { return fakeInterpreter{} }

func testApplianceConfig() ApplianceConfig {
	return ApplianceConfig{
		Mounts: []MountConfig{
			{Label: "data", BaseAddress: 0x110000, ByteLength: 0x30000, BlockSize: 4096},
		},
		ScriptMount:        "data",
		StreamAddr:         "127.0.0.1:0",
		DatagramAddr:       "127.0.0.1:0",
		InterpreterFactory: newFakeInterpreter,
	}
}

func encodeGetFsInfo(t *testing.T, seqn uint32) []byte {
	t.Helper()
	payload := make([]byte, 32)
	n := rpc.GetFsInfoCall{Label: "data"}.Marshal(payload)
	buf := make([]byte, 512)
	wn, err := wire.Encode(wire.Envelope{
		HeaderPresent: true,
		Header:        wire.Header{Seqn: seqn},
		Callset:       rpc.CallsetFilesystem,
		Msg:           rpc.MsgGetFsInfoCall,
		Payload:       payload[:n],
	}, buf)
	require.NoError(t, err)
	return buf[:wn]
}

func TestApplianceServesOverDatagram(t *testing.T) {
	a, err := CreateAndServe(testApplianceConfig())
	require.NoError(t, err)
	defer a.StopAndDelete()

	call := encodeGetFsInfo(t, 9)

	conn, err := net.Dial("udp", a.DatagramAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(call)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	require.NoError(t, err)

	env, err := wire.Decode(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, uint32(9), env.Header.Seqn)
	assert.Equal(t, wire.StatusSuccess, env.Header.Status)

	snap := a.Metrics().Snapshot()
	assert.Equal(t, uint64(1), snap.RPCCalls)
	assert.NotZero(t, snap.BytesIn)
	assert.NotZero(t, snap.BytesOut)
}

func TestApplianceServesOverStream(t *testing.T) {
	a, err := CreateAndServe(testApplianceConfig())
	require.NoError(t, err)
	defer a.StopAndDelete()

	conn, err := net.Dial("tcp", a.StreamAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	call := encodeGetFsInfo(t, 3)
	framed := make([]byte, len(call)*2+1)
	fn, err := wire.EncodeCOBS(call, framed)
	require.NoError(t, err)

	_, err = conn.Write(framed[:fn])
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	readBuf := make([]byte, 512)
	var frame []byte
	for {
		n, err := conn.Read(readBuf)
		require.NoError(t, err)
		frame = append(frame, readBuf[:n]...)
		if len(frame) > 0 && frame[len(frame)-1] == 0x00 {
			break
		}
	}

	deframer := wire.NewDeframer(2048)
	frames, err := deframer.Feed(frame)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	env, err := wire.Decode(frames[0])
	require.NoError(t, err)
	assert.Equal(t, uint32(3), env.Header.Seqn)
	assert.Equal(t, wire.StatusSuccess, env.Header.Status)
}

func TestApplianceRejectsUnknownScriptMount(t *testing.T) {
	cfg := testApplianceConfig()
	cfg.ScriptMount = "nonexistent"
	_, err := CreateAndServe(cfg)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeMountNotFound))
}

func TestApplianceStopAndDeleteIsIdempotentSafe(t *testing.T) {
	a, err := CreateAndServe(testApplianceConfig())
	require.NoError(t, err)
	require.NoError(t, a.StopAndDelete())
	require.NoError(t, a.StopAndDelete())
}
