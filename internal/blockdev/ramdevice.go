package blockdev

import (
	"fmt"
	"sync"
)

// shardSize bounds the span covered by one lock, so concurrent
// erase/program calls against disjoint regions of a large RAM-backed
// mount don't serialize on a single mutex.
const shardSize = 64 * 1024

// RAMDevice is an in-memory stand-in for a raw flash partition, used
// by tests and the demo command in place of real hardware.
type RAMDevice struct {
	data   []byte
	size   int64
	shards []sync.RWMutex
}

// NewRAMDevice allocates a zero-filled in-memory device of size bytes.
func NewRAMDevice(size int64) *RAMDevice {
	numShards := (size + shardSize - 1) / shardSize
	if numShards < 1 {
		numShards = 1
	}
	return &RAMDevice{
		data:   make([]byte, size),
		size:   size,
		shards: make([]sync.RWMutex, numShards),
	}
}

func (m *RAMDevice) shardRange(off, length int64) (start, end int) {
	if length <= 0 {
		length = 1
	}
	start = int(off / shardSize)
	end = int((off + length - 1) / shardSize)
	if end >= len(m.shards) {
		end = len(m.shards) - 1
	}
	if start > end {
		start = end
	}
	return start, end
}

// ReadAt implements interfaces.RawDevice.
func (m *RAMDevice) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= m.size {
		return 0, nil
	}
	available := m.size - off
	if int64(len(p)) > available {
		p = p[:available]
	}
	start, end := m.shardRange(off, int64(len(p)))
	for i := start; i <= end; i++ {
		m.shards[i].RLock()
	}
	n := copy(p, m.data[off:off+int64(len(p))])
	for i := start; i <= end; i++ {
		m.shards[i].RUnlock()
	}
	return n, nil
}

// ProgramAt implements interfaces.RawDevice.
func (m *RAMDevice) ProgramAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= m.size {
		return 0, fmt.Errorf("blockdev: program beyond end of device")
	}
	available := m.size - off
	if int64(len(p)) > available {
		p = p[:available]
	}
	start, end := m.shardRange(off, int64(len(p)))
	for i := start; i <= end; i++ {
		m.shards[i].Lock()
	}
	n := copy(m.data[off:off+int64(len(p))], p)
	for i := start; i <= end; i++ {
		m.shards[i].Unlock()
	}
	return n, nil
}

// Erase implements interfaces.RawDevice by setting the given range to
// 0xff, the erased value of NOR flash.
func (m *RAMDevice) Erase(off, length int64) error {
	if off < 0 || off >= m.size {
		return nil
	}
	end := off + length
	if end > m.size {
		end = m.size
	}
	start, endShard := m.shardRange(off, end-off)
	for i := start; i <= endShard; i++ {
		m.shards[i].Lock()
	}
	for i := off; i < end; i++ {
		m.data[i] = 0xff
	}
	for i := start; i <= endShard; i++ {
		m.shards[i].Unlock()
	}
	return nil
}

// Size implements interfaces.RawDevice.
func (m *RAMDevice) Size() int64 { return m.size }

// Sync implements interfaces.RawDevice; RAM needs no flush.
func (m *RAMDevice) Sync() error { return nil }

// Close implements interfaces.RawDevice.
func (m *RAMDevice) Close() error {
	m.data = nil
	return nil
}
