package blockdev

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceProgramReadRoundTrip(t *testing.T) {
	d := New(NewRAMDevice(4*4096), 4096)

	data := []byte("hello flash")
	n, err := d.Program(1, 0, data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	buf := make([]byte, len(data))
	n, err = d.Read(1, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, buf)
}

func TestDeviceProgramReadRespectsBlockOffset(t *testing.T) {
	d := New(NewRAMDevice(2*4096), 4096)

	require.NoError(t, errIgnoringN(d.Program(0, 100, []byte("payload"))))

	buf := make([]byte, 7)
	_, err := d.Read(0, 100, buf)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(buf))

	zero := make([]byte, 100)
	_, err = d.Read(0, 0, zero)
	require.NoError(t, err)
	for _, b := range zero {
		assert.Equal(t, byte(0), b)
	}
}

func TestDeviceEraseSetsErasedValue(t *testing.T) {
	d := New(NewRAMDevice(4096), 4096)

	require.NoError(t, errIgnoringN(d.Program(0, 0, []byte{0x01, 0x02, 0x03})))
	require.NoError(t, d.Erase(0))

	buf := make([]byte, 3)
	_, err := d.Read(0, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xff, 0xff}, buf)
}

func TestDeviceBlockCountDerivesFromRawSize(t *testing.T) {
	d := New(NewRAMDevice(48*4096), 4096)
	assert.Equal(t, uint32(4096), d.BlockSize())
	assert.Equal(t, uint32(48), d.BlockCount())
}

func TestDeviceLockUnlockSerializesCallers(t *testing.T) {
	d := New(NewRAMDevice(4096), 4096)

	d.Lock()
	acquired := make(chan struct{})
	go func() {
		d.Lock()
		close(acquired)
		d.Unlock()
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("second Lock succeeded while the first was still held")
	default:
	}
	d.Unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Lock never acquired after Unlock")
	}
}

func errIgnoringN(_ int, err error) error { return err }
