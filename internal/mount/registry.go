// Package mount implements the partition registry: name→mount lookup
// with one-time registration.
package mount

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/flashrpc/flashrpc/internal/blockdev"
	"github.com/flashrpc/flashrpc/internal/fsengine"
)

// Mount binds a label to a block device facade and the filesystem
// engine mounted on it. Lifetime is the process lifetime; at most one
// engine per label.
type Mount struct {
	Label         string
	BaseAddress   uint64
	ByteLength    uint64
	BlockSize     uint32
	BlockCount    uint32
	CacheSize     int
	LookaheadSize int
	BlockCycles   int

	Device *blockdev.Device
	Engine fsengine.Engine
}

// Registry is a process-global set of registered mounts, keyed by
// label. Registration happens once at boot; after Seal, Lookup never
// mutates shared state and needs no locking on the read path: it's a
// one-shot append at init, and readers observe a stable list after.
type Registry struct {
	mu      sync.Mutex
	mounts  []*Mount
	sealed  atomic.Bool
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds mount to the registry. Duplicate labels are rejected.
func (r *Registry) Register(m *Mount) error {
	if r.sealed.Load() {
		return fmt.Errorf("mount: registry sealed, cannot register %q", m.Label)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.mounts {
		if existing.Label == m.Label {
			return fmt.Errorf("mount: duplicate label %q", m.Label)
		}
	}
	r.mounts = append(r.mounts, m)
	return nil
}

// Seal freezes the registered set. Called once after boot-time
// registration completes; Lookup is lock-free afterward.
func (r *Registry) Seal() {
	r.sealed.Store(true)
}

// Lookup finds a mount by exact, byte-for-byte label match. No
// Unicode normalization.
func (r *Registry) Lookup(label string) (*Mount, bool) {
	if r.sealed.Load() {
		for _, m := range r.mounts {
			if m.Label == label {
				return m, true
			}
		}
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mounts {
		if m.Label == label {
			return m, true
		}
	}
	return nil, false
}
