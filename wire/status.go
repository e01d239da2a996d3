// Package wire implements the RPC wire format: the frame codec
// (schema-driven pack/unpack of the header and both callsets) and the
// COBS framer/deframer used on the stream transport.
package wire

// Status is the reply-header status code. Only meaningful on replies.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusRPCHandlerError
	StatusRPCBadResolverLookup
	StatusRPCBadHandlerLookup
	// statusDecodeFail is internal: a decode failure never reaches the
	// wire as a reply (the caller cannot be meaningfully addressed);
	// the dispatcher drops such a frame without using this value, which
	// only gives String a name for it.
	statusDecodeFail
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusRPCHandlerError:
		return "RPC_HANDLER_ERROR"
	case StatusRPCBadResolverLookup:
		return "RPC_BAD_RESOLVER_LOOKUP"
	case StatusRPCBadHandlerLookup:
		return "RPC_BAD_HANDLER_LOOKUP"
	case statusDecodeFail:
		return "DECODE_FAIL"
	default:
		return "UNKNOWN_STATUS"
	}
}
