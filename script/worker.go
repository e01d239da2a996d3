// Package script implements the script worker: a single long-lived
// goroutine that dequeues run requests, reads a script from the
// filesystem through a narrow capability interface, executes it in a
// restricted interpreter, and captures the resulting error or
// traceback text.
package script

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flashrpc/flashrpc/internal/constants"
	"github.com/flashrpc/flashrpc/internal/fsapi"
	"github.com/flashrpc/flashrpc/internal/fsengine"
	"github.com/flashrpc/flashrpc/internal/interfaces"
	"github.com/flashrpc/flashrpc/internal/logging"
)

// Request is a script-execution request: an absolute file path.
type Request struct {
	Path string
	// ID correlates a runScript call with its worker log lines. It is
	// not included in the captured last message.
	ID string
}

// Interpreter is the narrow surface the worker needs from an embedded
// language host. A fresh instance is created per run and never
// outlives the run it was created for.
type Interpreter interface {
	// Run compiles and protected-calls source under chunkName with
	// zero arguments and zero results, returning any captured
	// traceback text.
	Run(source []byte, chunkName string) (traceback string, err error)
	// Close destroys the interpreter instance.
	Close()
}

// InterpreterFactory creates a fresh, restricted Interpreter instance.
type InterpreterFactory func() Interpreter

// Worker is the script worker. Concurrency contract: at most one
// script ever executes at a time, enforced simply by never running
// more than one Run goroutine against a given Worker.
type Worker struct {
	cap      *fsapi.Capability
	queue    chan Request
	factory  InterpreterFactory
	observer interfaces.Observer
	logger   *logging.Logger

	mu         sync.Mutex
	lastMsg    string
	maxMsgLen  int
}

// NewWorker constructs a Worker bound to one filesystem capability
// (its own, independent of any RPC-handler capability) with a bounded
// request queue. A nil observer disables metrics recording.
func NewWorker(cap *fsapi.Capability, queueDepth int, factory InterpreterFactory, observer interfaces.Observer, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	if queueDepth <= 0 {
		queueDepth = constants.DefaultScriptQueueDepth
	}
	return &Worker{
		cap:       cap,
		queue:     make(chan Request, queueDepth),
		factory:   factory,
		observer:  observer,
		logger:    logger,
		maxMsgLen: constants.DefaultLastMessageCapacity,
	}
}

// Enqueue submits req, blocking up to timeout if the queue is full.
// Returns an error if the queue never had room within timeout.
func (w *Worker) Enqueue(req Request, timeout time.Duration) error {
	select {
	case w.queue <- req:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("script: queue full, dropped run request for %q", req.Path)
	}
}

// LastMessage returns the most recently captured error or traceback.
func (w *Worker) LastMessage() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastMsg
}

func (w *Worker) setLastMessage(msg string) {
	if len(msg) > w.maxMsgLen {
		msg = msg[:w.maxMsgLen]
	}
	w.mu.Lock()
	w.lastMsg = msg
	w.mu.Unlock()
}

// Run is the worker's main loop: block on the queue, execute one
// script to completion, repeat, until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.queue:
			w.execute(req)
		}
	}
}

func (w *Worker) execute(req Request) {
	logger := w.logger.With("run_id", req.ID, "path", req.Path)
	startTime := time.Now()

	if err := w.cap.Open(req.Path, fsengine.ORDONLY); err != nil {
		logger.Warnf("script: open failed: %v", err)
		w.setLastMessage(fmt.Sprintf("open %s: %v", req.Path, err))
		w.observeRun(startTime, false)
		return
	}
	defer w.cap.Close()

	size, err := w.cap.Size()
	if err != nil {
		logger.Warnf("script: size failed: %v", err)
		w.setLastMessage(fmt.Sprintf("stat %s: %v", req.Path, err))
		w.observeRun(startTime, false)
		return
	}

	buf := make([]byte, size)
	if _, err := w.cap.Read(buf); err != nil {
		logger.Warnf("script: read failed: %v", err)
		w.setLastMessage(fmt.Sprintf("read %s: %v", req.Path, err))
		w.observeRun(startTime, false)
		return
	}

	interp := w.factory()
	defer interp.Close()

	traceback, err := interp.Run(buf, req.Path)
	if err != nil {
		logger.Infof("script: run failed: %v", err)
		if traceback != "" {
			w.setLastMessage(traceback)
		} else {
			w.setLastMessage(err.Error())
		}
	}
	w.observeRun(startTime, err == nil)
}

func (w *Worker) observeRun(startTime time.Time, ok bool) {
	if w.observer != nil {
		w.observer.ObserveScriptRun(uint64(time.Since(startTime).Nanoseconds()), ok)
	}
}
