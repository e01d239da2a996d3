// Package rpc implements the RPC dispatch core and the two handler
// registries built on top of it: the filesystem callset and the
// script callset.
package rpc

import (
	"strconv"
	"sync"
	"time"

	"github.com/flashrpc/flashrpc/internal/interfaces"
	"github.com/flashrpc/flashrpc/internal/logging"
	"github.com/flashrpc/flashrpc/wire"
)

// Handler processes one call payload and fills a reply payload. It
// returns the reply's payload bytes, the reply's inner message tag,
// and the status to carry in the reply header.
type Handler func(call []byte) (replyPayload []byte, msgTag uint8, status wire.Status)

// CallsetResolver translates an inner (call) tag to a Handler within
// one outer-tag callset.
type CallsetResolver interface {
	OuterTag() uint8
	Resolve(msgTag uint8) (Handler, bool)
}

// Dispatcher owns a reply scratch buffer (reply_frame) and performs
// the six-step dispatch algorithm: decode, resolve callset, resolve
// handler, invoke, short-circuit on no-reply, encode reply. There is
// no separate call buffer: the call is decoded in place over the bytes
// passed to Dispatch. Each Dispatcher instance owns its own buffer, so two
// independent Dispatchers never contend. Callers running two transport
// servers concurrently should construct one Dispatcher per server, or
// serialize calls into a shared one with its own mutex, which is what
// this type does.
type Dispatcher struct {
	mu        sync.Mutex
	replyBuf  []byte
	resolvers []CallsetResolver
	observer  interfaces.Observer
	logger    *logging.Logger
}

// NewDispatcher constructs a Dispatcher with the given scratch-buffer
// size and ordered resolver list. A nil observer disables metrics
// recording.
func NewDispatcher(maxMessageSize int, resolvers []CallsetResolver, observer interfaces.Observer, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		replyBuf:  make([]byte, maxMessageSize),
		resolvers: resolvers,
		observer:  observer,
		logger:    logger,
	}
}

func (d *Dispatcher) resolverFor(outerTag uint8) (CallsetResolver, bool) {
	for _, r := range d.resolvers {
		if r.OuterTag() == outerTag {
			return r, true
		}
	}
	return nil, false
}

// Dispatch decodes data as one RPC envelope, routes it to a handler,
// and returns the encoded reply bytes (nil if no reply should be
// sent). The returned slice aliases the Dispatcher's internal scratch
// buffer and is only valid until the next call to Dispatch.
func (d *Dispatcher) Dispatch(data []byte) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.observer != nil {
		d.observer.ObserveBytesIn(uint64(len(data)))
	}

	env, err := wire.Decode(data)
	if err != nil {
		d.logger.Warnf("rpc: decode failed: %v", err)
		return nil
	}

	resolver, ok := d.resolverFor(env.Callset)
	if !ok {
		return d.encodeStatusOnlyReply(env, 0, wire.StatusRPCBadResolverLookup)
	}

	handler, ok := resolver.Resolve(env.Msg)
	if !ok {
		return d.encodeStatusOnlyReply(env, 0, wire.StatusRPCBadHandlerLookup)
	}

	startTime := time.Now()
	replyPayload, msgTag, status := handler(env.Payload)
	if d.observer != nil {
		d.observer.ObserveCall(strconv.Itoa(int(env.Callset)), strconv.Itoa(int(env.Msg)), uint64(time.Since(startTime).Nanoseconds()), uint8(status))
	}

	if env.Header.NoReply {
		return nil
	}

	reply := wire.Envelope{
		HeaderPresent: true,
		Header: wire.Header{
			Seqn:    env.Header.Seqn,
			NoReply: false,
			Status:  status,
		},
		Callset: env.Callset,
		Msg:     msgTag,
		Payload: replyPayload,
	}
	n, err := wire.Encode(reply, d.replyBuf)
	if err != nil {
		d.logger.Errorf("rpc: encode reply failed: %v", err)
		return nil
	}
	if d.observer != nil {
		d.observer.ObserveBytesOut(uint64(n))
	}
	return d.replyBuf[:n]
}

func (d *Dispatcher) encodeStatusOnlyReply(env wire.Envelope, msgTag uint8, status wire.Status) []byte {
	if env.Header.NoReply {
		return nil
	}
	reply := wire.Envelope{
		HeaderPresent: true,
		Header: wire.Header{
			Seqn:    env.Header.Seqn,
			NoReply: false,
			Status:  status,
		},
		Callset: env.Callset,
		Msg:     msgTag,
	}
	n, err := wire.Encode(reply, d.replyBuf)
	if err != nil {
		d.logger.Errorf("rpc: encode status reply failed: %v", err)
		return nil
	}
	return d.replyBuf[:n]
}
