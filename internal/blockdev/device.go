// Package blockdev implements the block device facade: block-granular
// read/program/erase over a raw flash primitive, with a per-mount
// mutex the filesystem engine is expected to bracket every metadata
// operation with.
package blockdev

import (
	"fmt"
	"sync"

	"github.com/flashrpc/flashrpc/internal/interfaces"
)

// Device wraps a RawDevice with block-granular addressing and the
// per-mount mutual exclusion.
type Device struct {
	raw       interfaces.RawDevice
	blockSize uint32
	mu        sync.Mutex
}

// New constructs a Device over raw with the given block size.
func New(raw interfaces.RawDevice, blockSize uint32) *Device {
	return &Device{raw: raw, blockSize: blockSize}
}

func (d *Device) address(block uint32, offset uint32) int64 {
	return int64(block)*int64(d.blockSize) + int64(offset)
}

// Read reads into buf starting at block*block_size+offset.
func (d *Device) Read(block, offset uint32, buf []byte) (int, error) {
	n, err := d.raw.ReadAt(buf, d.address(block, offset))
	if err != nil {
		return n, fmt.Errorf("blockdev: read block=%d offset=%d: %w", block, offset, err)
	}
	return n, nil
}

// Program writes buf starting at block*block_size+offset.
func (d *Device) Program(block, offset uint32, buf []byte) (int, error) {
	n, err := d.raw.ProgramAt(buf, d.address(block, offset))
	if err != nil {
		return n, fmt.Errorf("blockdev: program block=%d offset=%d: %w", block, offset, err)
	}
	return n, nil
}

// Erase erases one block.
func (d *Device) Erase(block uint32) error {
	if err := d.raw.Erase(d.address(block, 0), int64(d.blockSize)); err != nil {
		return fmt.Errorf("blockdev: erase block=%d: %w", block, err)
	}
	return nil
}

// Sync delegates to the raw device's Sync (a no-op for RAMDevice); it
// exists so engines that expect a sync hook can call it
// unconditionally.
func (d *Device) Sync() error {
	return d.raw.Sync()
}

// BlockSize reports the facade's configured block size.
func (d *Device) BlockSize() uint32 {
	return d.blockSize
}

// BlockCount derives the number of whole blocks in the backing device.
func (d *Device) BlockCount() uint32 {
	return uint32(d.raw.Size() / int64(d.blockSize))
}

// Lock acquires the per-mount mutex. The engine must bracket every
// metadata operation with Lock/Unlock.
func (d *Device) Lock() {
	d.mu.Lock()
}

// Unlock releases the per-mount mutex.
func (d *Device) Unlock() {
	d.mu.Unlock()
}
