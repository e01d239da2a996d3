package rpc

import (
	"time"

	"github.com/google/uuid"

	"github.com/flashrpc/flashrpc/internal/constants"
	"github.com/flashrpc/flashrpc/internal/logging"
	"github.com/flashrpc/flashrpc/script"
	"github.com/flashrpc/flashrpc/wire"
)

// CallsetScript is the outer tag of the script callset.
const CallsetScript uint8 = 2

// ScriptHandlers implements the script-worker handler registry.
// runScript enqueues work; getLastMessage reports the most recent
// captured error or traceback.
type ScriptHandlers struct {
	worker  *script.Worker
	timeout time.Duration
	logger  *logging.Logger
}

// NewScriptHandlers constructs the script callset resolver over
// worker, using constants.ScriptEnqueueTimeout as runScript's bounded
// wait.
func NewScriptHandlers(worker *script.Worker, logger *logging.Logger) *ScriptHandlers {
	if logger == nil {
		logger = logging.Default()
	}
	return &ScriptHandlers{worker: worker, timeout: constants.ScriptEnqueueTimeout, logger: logger}
}

// OuterTag implements CallsetResolver.
func (h *ScriptHandlers) OuterTag() uint8 { return CallsetScript }

// Resolve implements CallsetResolver.
func (h *ScriptHandlers) Resolve(msgTag uint8) (Handler, bool) {
	switch msgTag {
	case MsgRunScriptCall:
		return h.runScript, true
	case MsgGetLastMessageCall:
		return h.getLastMessage, true
	default:
		return nil, false
	}
}

func (h *ScriptHandlers) runScript(callBytes []byte) ([]byte, uint8, wire.Status) {
	var call RunScriptCall
	if _, err := call.Unmarshal(callBytes); err != nil {
		return h.runReply(-1), MsgRunScriptReply, wire.StatusRPCHandlerError
	}

	runID := uuid.NewString()
	if err := h.worker.Enqueue(script.Request{Path: call.Filename, ID: runID}, h.timeout); err != nil {
		h.logger.Warnf("rpc: runScript enqueue failed run_id=%s: %v", runID, err)
		return h.runReply(-1), MsgRunScriptReply, wire.StatusRPCHandlerError
	}
	h.logger.Infof("rpc: runScript enqueued run_id=%s path=%s", runID, call.Filename)
	return h.runReply(0), MsgRunScriptReply, wire.StatusSuccess
}

func (h *ScriptHandlers) runReply(status int32) []byte {
	buf := make([]byte, 4)
	n := RunScriptReply{Status: status}.Marshal(buf)
	return buf[:n]
}

func (h *ScriptHandlers) getLastMessage(callBytes []byte) ([]byte, uint8, wire.Status) {
	msg := h.worker.LastMessage()
	buf := make([]byte, 2+constants.DefaultLastMessageCapacity)
	n := GetLastMessageReply{Msg: msg}.Marshal(buf)
	return buf[:n], MsgGetLastMessageReply, wire.StatusSuccess
}
