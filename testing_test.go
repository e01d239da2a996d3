package flashrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockRawDeviceReadWriteRoundTrip(t *testing.T) {
	dev := NewMockRawDevice(4096)
	n, err := dev.ProgramAt([]byte("hello"), 10)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = dev.ReadAt(buf, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))

	counts := dev.CallCounts()
	assert.Equal(t, 1, counts["read"])
	assert.Equal(t, 1, counts["program"])
}

func TestMockRawDeviceEraseResetsToFF(t *testing.T) {
	dev := NewMockRawDevice(16)
	_, err := dev.ProgramAt([]byte{0x01, 0x02, 0x03}, 0)
	require.NoError(t, err)

	require.NoError(t, dev.Erase(0, 16))

	buf := make([]byte, 16)
	_, err = dev.ReadAt(buf, 0)
	require.NoError(t, err)
	for _, b := range buf {
		assert.Equal(t, byte(0xFF), b)
	}
}

func TestMockRawDeviceReadPastEndReturnsZero(t *testing.T) {
	dev := NewMockRawDevice(16)
	buf := make([]byte, 4)
	n, err := dev.ReadAt(buf, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMockRawDeviceCloseRejectsFurtherIO(t *testing.T) {
	dev := NewMockRawDevice(16)
	require.NoError(t, dev.Close())
	assert.True(t, dev.IsClosed())

	_, err := dev.ReadAt(make([]byte, 4), 0)
	assert.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeIOError))
}

func TestMockRawDeviceSyncAndReset(t *testing.T) {
	dev := NewMockRawDevice(16)
	assert.False(t, dev.IsSynced())
	require.NoError(t, dev.Sync())
	assert.True(t, dev.IsSynced())

	dev.Reset()
	assert.False(t, dev.IsSynced())
	assert.Equal(t, 0, dev.CallCounts()["sync"])
}
