package flashrpc

import (
	"sync"

	"github.com/flashrpc/flashrpc/internal/interfaces"
)

// MockRawDevice is a call-counting interfaces.RawDevice for tests that
// need a mount's underlying storage without touching real flash.
type MockRawDevice struct {
	mu     sync.RWMutex
	data   []byte
	size   int64
	closed bool
	synced bool

	readCalls    int
	programCalls int
	eraseCalls   int
	syncCalls    int
}

// NewMockRawDevice creates a mock device of the given size, its
// content initialized to 0xFF to mimic erased flash.
func NewMockRawDevice(size int64) *MockRawDevice {
	data := make([]byte, size)
	for i := range data {
		data[i] = 0xFF
	}
	return &MockRawDevice{data: data, size: size}
}

func (m *MockRawDevice) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls++

	if m.closed {
		return 0, NewError("ReadAt", ErrCodeIOError, "device closed")
	}
	if off >= m.size {
		return 0, nil
	}
	available := m.size - off
	if int64(len(p)) > available {
		p = p[:available]
	}
	n := copy(p, m.data[off:off+int64(len(p))])
	return n, nil
}

func (m *MockRawDevice) ProgramAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.programCalls++

	if m.closed {
		return 0, NewError("ProgramAt", ErrCodeIOError, "device closed")
	}
	if off >= m.size {
		return 0, NewError("ProgramAt", ErrCodeInvalidArgument, "offset beyond device size")
	}
	available := m.size - off
	if int64(len(p)) > available {
		p = p[:available]
	}
	n := copy(m.data[off:off+int64(len(p))], p)
	return n, nil
}

func (m *MockRawDevice) Erase(off, length int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.eraseCalls++
	if off >= m.size {
		return nil
	}
	end := off + length
	if end > m.size {
		end = m.size
	}
	for i := off; i < end; i++ {
		m.data[i] = 0xFF
	}
	return nil
}

func (m *MockRawDevice) Size() int64 { return m.size }

func (m *MockRawDevice) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncCalls++
	m.synced = true
	return nil
}

func (m *MockRawDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}

// IsClosed reports whether Close has been called.
func (m *MockRawDevice) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// IsSynced reports whether Sync has been called at least once.
func (m *MockRawDevice) IsSynced() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.synced
}

// CallCounts returns how many times each method has been invoked, for
// assertions in caller tests.
func (m *MockRawDevice) CallCounts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int{
		"read":    m.readCalls,
		"program": m.programCalls,
		"erase":   m.eraseCalls,
		"sync":    m.syncCalls,
	}
}

// Reset zeroes all call counters and state flags.
func (m *MockRawDevice) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls = 0
	m.programCalls = 0
	m.eraseCalls = 0
	m.syncCalls = 0
	m.synced = false
}

var _ interfaces.RawDevice = (*MockRawDevice)(nil)
