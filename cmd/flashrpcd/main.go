package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/docker/go-units"

	"github.com/flashrpc/flashrpc"
	"github.com/flashrpc/flashrpc/internal/logging"
)

func main() {
	var (
		label        = flag.String("label", "data", "Mount label exposed over RPC")
		sizeStr      = flag.String("size", "2M", "Mount size (e.g., 512K, 2M, 1G)")
		blockSize    = flag.Uint("block-size", 4096, "Block size in bytes")
		streamAddr   = flag.String("stream-addr", ":8761", "TCP address for the framed stream transport")
		datagramAddr = flag.String("datagram-addr", ":8762", "UDP address for the datagram transport")
		verbose      = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	size, err := units.RAMInBytes(*sizeStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -size %q: %v\n", *sizeStr, err)
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	logger.Info("starting flashrpc appliance", "label", *label, "size", units.BytesSize(float64(size)))

	appliance, err := flashrpc.CreateAndServe(flashrpc.ApplianceConfig{
		Mounts: []flashrpc.MountConfig{
			{Label: *label, BaseAddress: 0, ByteLength: uint64(size), BlockSize: uint32(*blockSize)},
		},
		ScriptMount:  *label,
		StreamAddr:   *streamAddr,
		DatagramAddr: *datagramAddr,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("failed to start appliance", "error", err)
		os.Exit(1)
	}

	fmt.Printf("flashrpc appliance serving mount %q (%s)\n", *label, units.BytesSize(float64(size)))
	if addr := appliance.StreamAddr(); addr != nil {
		fmt.Printf("  stream:   %s\n", addr)
	}
	if addr := appliance.DatagramAddr(); addr != nil {
		fmt.Printf("  datagram: %s\n", addr)
	}
	fmt.Printf("\nPress Ctrl+C to stop...\n")
	fmt.Printf("Send SIGUSR1 (kill -USR1 %d) to dump goroutine stacks\n", os.Getpid())

	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			buf := make([]byte, 1024*1024)
			n := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "\n=== GOROUTINE STACK DUMP ===\n%s\n", buf[:n])
			pprof.Lookup("goroutine").WriteTo(os.Stderr, 2)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	cleanupDone := make(chan bool)
	go func() {
		if err := appliance.StopAndDelete(); err != nil {
			logger.Error("error stopping appliance", "error", err)
		} else {
			logger.Info("appliance stopped successfully")
		}
		cleanupDone <- true
	}()

	select {
	case <-cleanupDone:
	case <-time.After(1 * time.Second):
		logger.Info("cleanup timeout, forcing exit")
	}

	os.Exit(0)
}
