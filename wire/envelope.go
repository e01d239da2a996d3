package wire

import (
	"encoding/binary"
	"errors"
)

// HeaderPresentFlag is byte 0 of an envelope when a header follows.
// Named so the dispatch core never hard-codes it as a bare literal.
const HeaderPresentFlag byte = 1

// headerAbsentFlag marks a header-less envelope. The dispatch core
// never produces one (every reply/call carries a header in this
// schema) but Decode accepts it defensively.
const headerAbsentFlag byte = 0

// headerSize is the encoded size of a present Header: 4 bytes seqn +
// 1 byte flags + 1 byte status.
const headerSize = 6

const noReplyBit = 1 << 0

// Header carries the sequence number, no-reply flag, and status code.
type Header struct {
	Seqn    uint32
	NoReply bool
	Status  Status
}

// ErrTruncated is returned by Decode when buf is too short to contain
// a well-formed envelope.
var ErrTruncated = errors.New("wire: truncated envelope")

// ErrTooLarge is returned by Encode when the payload would overflow
// the destination buffer.
var ErrTooLarge = errors.New("wire: message exceeds buffer capacity")

// Envelope is the decoded form of a top-level RPC message: an
// optional header, the outer (callset) tag, the inner (call/reply)
// tag, and the opaque payload bytes for that specific message.
type Envelope struct {
	HeaderPresent bool
	Header        Header
	Callset       uint8
	Msg           uint8
	Payload       []byte
}

// Encode packs env into buf, returning the number of bytes written.
func Encode(env Envelope, buf []byte) (int, error) {
	need := 1 + 2 + len(env.Payload)
	if env.HeaderPresent {
		need += headerSize
	}
	if need > len(buf) {
		return 0, ErrTooLarge
	}

	offset := 0
	if env.HeaderPresent {
		buf[offset] = HeaderPresentFlag
		offset++
		binary.LittleEndian.PutUint32(buf[offset:offset+4], env.Header.Seqn)
		offset += 4
		var flags byte
		if env.Header.NoReply {
			flags |= noReplyBit
		}
		buf[offset] = flags
		offset++
		buf[offset] = byte(env.Header.Status)
		offset++
	} else {
		buf[offset] = headerAbsentFlag
		offset++
	}

	buf[offset] = env.Callset
	offset++
	buf[offset] = env.Msg
	offset++

	offset += copy(buf[offset:], env.Payload)
	return offset, nil
}

// Decode unpacks an Envelope from data. The returned Payload aliases
// data and must be copied by the caller if data is reused.
func Decode(data []byte) (Envelope, error) {
	if len(data) < 1 {
		return Envelope{}, ErrTruncated
	}
	var env Envelope
	offset := 0
	present := data[offset] == HeaderPresentFlag
	offset++

	if present {
		if len(data) < offset+headerSize {
			return Envelope{}, ErrTruncated
		}
		env.HeaderPresent = true
		env.Header.Seqn = binary.LittleEndian.Uint32(data[offset : offset+4])
		offset += 4
		env.Header.NoReply = data[offset]&noReplyBit != 0
		offset++
		env.Header.Status = Status(data[offset])
		offset++
	}

	if len(data) < offset+2 {
		return Envelope{}, ErrTruncated
	}
	env.Callset = data[offset]
	offset++
	env.Msg = data[offset]
	offset++

	env.Payload = data[offset:]
	return env, nil
}
