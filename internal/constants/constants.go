package constants

import "time"

// Default configuration constants for the appliance runtime.
const (
	// DefaultDescriptorPoolCapacity is the default number of simultaneously
	// open files/directories across all mounts.
	DefaultDescriptorPoolCapacity = 4

	// DefaultMaxMessageSize bounds both dispatch scratch buffers and the
	// COBS deframer's accumulator. Chosen to comfortably hold a dirlist
	// reply with a handful of entries without growing unbounded on a
	// microcontroller-class budget.
	DefaultMaxMessageSize = 2048

	// DefaultScriptQueueDepth is the bounded depth of the script worker's
	// request queue.
	DefaultScriptQueueDepth = 4

	// DefaultLastMessageCapacity bounds the captured error/traceback
	// string returned by getLastMessage.
	DefaultLastMessageCapacity = 900

	// MaxScriptFilenameLength is the wire-schema cap on runScript's
	// filename field.
	MaxScriptFilenameLength = 64

	// MaxMounts is the practical upper bound on registered partitions;
	// lookup stays a cheap linear scan below this.
	MaxMounts = 8
)

// Default block-device geometry, mirrored from the filesystem-engine
// defaults a mount is expected to supply when none is configured.
const (
	DefaultBlockSize      = 4096
	DefaultCacheSize      = 512
	DefaultLookaheadSize  = 512
	DefaultBlockCycles    = 500
)

// Timing constants for transport and script-worker behavior.
//
// These mirror the appliance's need to bound blocking operations on a
// single-threaded dispatch path: a datagram receive or a queue send
// must never block forever, or one slow peer starves every other
// caller sharing the same scratch buffers.
const (
	// DatagramReceiveTimeout bounds how long the datagram server blocks
	// waiting for the next packet before re-checking for shutdown.
	DatagramReceiveTimeout = 2 * time.Second

	// ScriptEnqueueTimeout bounds how long runScript blocks trying to
	// push onto a full script queue before failing the RPC call.
	ScriptEnqueueTimeout = 250 * time.Millisecond

	// StreamKeepAliveIdle/Interval/Count configure TCP keep-alive on
	// accepted stream connections, so a peer that vanishes without
	// closing cleanly is eventually reaped.
	StreamKeepAliveIdle     = 30 * time.Second
	StreamKeepAliveInterval = 5 * time.Second
	StreamKeepAliveCount    = 3
)
