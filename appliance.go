package flashrpc

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/flashrpc/flashrpc/internal/blockdev"
	"github.com/flashrpc/flashrpc/internal/constants"
	"github.com/flashrpc/flashrpc/internal/descpool"
	"github.com/flashrpc/flashrpc/internal/fsapi"
	"github.com/flashrpc/flashrpc/internal/fsengine"
	"github.com/flashrpc/flashrpc/internal/interfaces"
	"github.com/flashrpc/flashrpc/internal/logging"
	"github.com/flashrpc/flashrpc/internal/mount"
	"github.com/flashrpc/flashrpc/rpc"
	"github.com/flashrpc/flashrpc/script"
	"github.com/flashrpc/flashrpc/transport"
)

// MountConfig describes one partition to register at boot.
type MountConfig struct {
	Label       string
	BaseAddress uint64
	ByteLength  uint64
	BlockSize   uint32

	// Raw, if non-nil, backs this mount's block device; otherwise an
	// in-RAM device of ByteLength is created, which is all this
	// appliance ships a filesystem engine for today.
	Raw interfaces.RawDevice
}

// ApplianceConfig assembles everything CreateAndServe needs.
type ApplianceConfig struct {
	Mounts []MountConfig

	// ScriptMount names the mount the script worker reads run targets
	// from. Must match one entry in Mounts.
	ScriptMount string

	StreamAddr   string
	DatagramAddr string

	DescriptorPoolCapacity int
	MaxMessageSize         int
	ScriptQueueDepth       int

	InterpreterFactory script.InterpreterFactory
	Observer           interfaces.Observer
	Logger             *logging.Logger
}

func (c *ApplianceConfig) setDefaults() {
	if c.DescriptorPoolCapacity <= 0 {
		c.DescriptorPoolCapacity = constants.DefaultDescriptorPoolCapacity
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = constants.DefaultMaxMessageSize
	}
	if c.ScriptQueueDepth <= 0 {
		c.ScriptQueueDepth = constants.DefaultScriptQueueDepth
	}
	if c.InterpreterFactory == nil {
		c.InterpreterFactory = script.NewLuaInterpreter
	}
	if c.Logger == nil {
		c.Logger = logging.Default()
	}
}

// Appliance wires the mount registry, descriptor pool, RPC dispatcher
// resolvers, script worker, and the two transports into one runnable
// unit, mirroring the teacher's backend.go CreateAndServe/StopAndDelete
// orchestration shape.
type Appliance struct {
	cfg      ApplianceConfig
	registry *mount.Registry
	pool     *descpool.Pool
	worker   *script.Worker
	metrics  *Metrics

	streamServer   *transport.StreamServer
	datagramServer *transport.DatagramServer
	streamListener net.Listener
	datagramConn   *net.UDPConn

	cancel context.CancelFunc
	wg     sync.WaitGroup
	errCh  chan error
}

// CreateAndServe builds an Appliance from cfg, binds its listeners, and
// starts serving in background goroutines. Call StopAndDelete to
// unwind it.
func CreateAndServe(cfg ApplianceConfig) (*Appliance, error) {
	cfg.setDefaults()

	registry := mount.NewRegistry()
	var scriptEngine fsengine.Engine
	for _, mc := range cfg.Mounts {
		raw := mc.Raw
		if raw == nil {
			raw = blockdev.NewRAMDevice(int64(mc.ByteLength))
		}
		blockSize := mc.BlockSize
		if blockSize == 0 {
			blockSize = constants.DefaultBlockSize
		}
		device := blockdev.New(raw, blockSize)
		engine := fsengine.NewMemEngine(device)

		blockCount := uint32(mc.ByteLength / uint64(blockSize))
		if err := registry.Register(&mount.Mount{
			Label:       mc.Label,
			BaseAddress: mc.BaseAddress,
			ByteLength:  mc.ByteLength,
			BlockSize:   blockSize,
			BlockCount:  blockCount,
			Device:      device,
			Engine:      engine,
		}); err != nil {
			return nil, WrapError("CreateAndServe", err)
		}
		if mc.Label == cfg.ScriptMount {
			scriptEngine = engine
		}
	}
	registry.Seal()

	if cfg.ScriptMount != "" && scriptEngine == nil {
		return nil, NewError("CreateAndServe", ErrCodeMountNotFound, fmt.Sprintf("script mount %q not registered", cfg.ScriptMount))
	}

	pool := descpool.New(cfg.DescriptorPoolCapacity)

	metrics := NewMetrics()
	observer := cfg.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	var worker *script.Worker
	if scriptEngine != nil {
		scriptCap := fsapi.New(scriptEngine)
		worker = script.NewWorker(scriptCap, cfg.ScriptQueueDepth, cfg.InterpreterFactory, observer, cfg.Logger)
	}

	a := &Appliance{
		cfg:      cfg,
		registry: registry,
		pool:     pool,
		worker:   worker,
		metrics:  metrics,
		errCh:    make(chan error, 2),
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if worker != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			worker.Run(ctx)
		}()
	}

	newDispatch := func() *rpc.Dispatcher {
		resolvers := []rpc.CallsetResolver{rpc.NewFilesystemHandlers(registry, pool, cfg.Logger)}
		if worker != nil {
			resolvers = append(resolvers, rpc.NewScriptHandlers(worker, cfg.Logger))
		}
		return rpc.NewDispatcher(cfg.MaxMessageSize, resolvers, observer, cfg.Logger)
	}

	if cfg.StreamAddr != "" {
		listener, err := net.Listen("tcp", cfg.StreamAddr)
		if err != nil {
			cancel()
			return nil, WrapError("CreateAndServe", err)
		}
		a.streamListener = listener
		a.streamServer = transport.NewStreamServer(listener, newDispatch, cfg.Logger)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.streamServer.Serve(ctx); err != nil {
				select {
				case a.errCh <- err:
				default:
				}
			}
		}()
	}

	if cfg.DatagramAddr != "" {
		udpAddr, err := net.ResolveUDPAddr("udp", cfg.DatagramAddr)
		if err != nil {
			cancel()
			return nil, WrapError("CreateAndServe", err)
		}
		conn, err := net.ListenUDP("udp", udpAddr)
		if err != nil {
			cancel()
			return nil, WrapError("CreateAndServe", err)
		}
		a.datagramConn = conn
		a.datagramServer = transport.NewDatagramServer(conn, newDispatch(), cfg.Logger)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.datagramServer.Serve(ctx); err != nil {
				select {
				case a.errCh <- err:
				default:
				}
			}
		}()
	}

	return a, nil
}

// Registry exposes the mount registry, for callers that need to
// inspect mounts (the demo CLI's startup log, tests).
func (a *Appliance) Registry() *mount.Registry { return a.registry }

// Metrics returns the appliance's runtime metrics.
func (a *Appliance) Metrics() *Metrics { return a.metrics }

// StreamAddr returns the bound stream listener's local address, or nil
// if no stream transport was configured.
func (a *Appliance) StreamAddr() net.Addr {
	if a.streamListener == nil {
		return nil
	}
	return a.streamListener.Addr()
}

// DatagramAddr returns the bound datagram socket's local address, or
// nil if no datagram transport was configured.
func (a *Appliance) DatagramAddr() net.Addr {
	if a.datagramConn == nil {
		return nil
	}
	return a.datagramConn.LocalAddr()
}

// Err returns the first transport error observed, if any, without
// blocking.
func (a *Appliance) Err() error {
	select {
	case err := <-a.errCh:
		return err
	default:
		return nil
	}
}

// StopAndDelete shuts down both transports and the script worker,
// waits for their goroutines to exit, and releases listeners.
func (a *Appliance) StopAndDelete() error {
	a.cancel()
	if a.streamListener != nil {
		a.streamListener.Close()
	}
	if a.datagramConn != nil {
		a.datagramConn.Close()
	}
	a.wg.Wait()
	a.metrics.Stop()
	return nil
}
