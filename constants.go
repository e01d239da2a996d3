package flashrpc

import "github.com/flashrpc/flashrpc/internal/constants"

// Re-exported configuration defaults, for callers assembling an
// Appliance without reaching into internal/constants directly.
const (
	DefaultDescriptorPoolCapacity = constants.DefaultDescriptorPoolCapacity
	DefaultMaxMessageSize         = constants.DefaultMaxMessageSize
	DefaultScriptQueueDepth       = constants.DefaultScriptQueueDepth
	DefaultLastMessageCapacity    = constants.DefaultLastMessageCapacity
	MaxScriptFilenameLength       = constants.MaxScriptFilenameLength
	MaxMounts                     = constants.MaxMounts
	DefaultBlockSize              = constants.DefaultBlockSize
	DefaultCacheSize              = constants.DefaultCacheSize
	DefaultLookaheadSize          = constants.DefaultLookaheadSize
	DefaultBlockCycles            = constants.DefaultBlockCycles

	DatagramReceiveTimeout  = constants.DatagramReceiveTimeout
	ScriptEnqueueTimeout    = constants.ScriptEnqueueTimeout
	StreamKeepAliveIdle     = constants.StreamKeepAliveIdle
	StreamKeepAliveInterval = constants.StreamKeepAliveInterval
	StreamKeepAliveCount    = constants.StreamKeepAliveCount
)
