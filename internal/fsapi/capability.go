// Package fsapi implements the filesystem access layer: a capability
// interface bound to one mount and, at most, one concrete open
// handle at a time. Multi-handle consumers (the RPC filesystem
// handlers, the script worker) each hold their own Capability
// instance rather than sharing one.
package fsapi

import (
	"github.com/flashrpc/flashrpc/internal/fsengine"
)

// Capability wraps exactly one mount and, once Open succeeds, exactly
// one open engine handle.
type Capability struct {
	engine fsengine.Engine
	file   fsengine.File
}

// New returns a Capability bound to engine with no open handle yet.
func New(engine fsengine.Engine) *Capability {
	return &Capability{engine: engine}
}

// Open opens path with flags. A Capability may only have one open
// handle; calling Open again before Close replaces the pending one
// without closing it, which is a caller bug. Handlers in this
// repository never do this.
func (c *Capability) Open(path string, flags fsengine.OpenFlags) error {
	f, err := c.engine.Open(path, flags)
	if err != nil {
		return err
	}
	c.file = f
	return nil
}

// Close closes the open handle.
func (c *Capability) Close() error {
	if c.file == nil {
		return fsengine.ErrInvalid
	}
	err := c.file.Close()
	c.file = nil
	return err
}

// Read reads into buf from the current offset.
func (c *Capability) Read(buf []byte) (int, error) {
	if c.file == nil {
		return 0, fsengine.ErrInvalid
	}
	return c.file.Read(buf)
}

// Write writes buf at the current offset.
func (c *Capability) Write(buf []byte) (int, error) {
	if c.file == nil {
		return 0, fsengine.ErrInvalid
	}
	return c.file.Write(buf)
}

// Seek repositions the current offset.
func (c *Capability) Seek(offset int64, whence fsengine.Whence) (int64, error) {
	if c.file == nil {
		return 0, fsengine.ErrInvalid
	}
	return c.file.Seek(offset, whence)
}

// Size returns the open file's total size.
func (c *Capability) Size() (int64, error) {
	if c.file == nil {
		return 0, fsengine.ErrInvalid
	}
	return c.file.Size()
}

// Stat returns metadata for path without requiring it to be open.
func (c *Capability) Stat(path string) (fsengine.FileInfo, error) {
	return c.engine.Stat(path)
}

// OpenDir opens path as a directory handle, independent of any open
// file handle this Capability may also hold.
func (c *Capability) OpenDir(path string) (fsengine.Dir, error) {
	return c.engine.OpenDir(path)
}

// Remove unlinks path.
func (c *Capability) Remove(path string) error {
	return c.engine.Remove(path)
}
