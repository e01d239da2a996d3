package wire

import "errors"

// ErrPayloadTooLarge is returned by EncodeCOBS when payload would
// overflow dst even accounting for stuffing overhead.
var ErrPayloadTooLarge = errors.New("wire: payload too large for cobs buffer")

// EncodeCOBS writes the COBS encoding of payload into dst, followed by
// a single 0x00 terminator, and returns the total bytes written.
// Overhead is at most ceil(len(payload)/254)+1 bytes for a non-empty
// payload; an empty payload encodes as two bytes.
func EncodeCOBS(payload, dst []byte) (int, error) {
	maxOut := len(payload) + len(payload)/254 + 2
	if maxOut > len(dst) {
		return 0, ErrPayloadTooLarge
	}

	codeIdx := 0
	write := 1 // reserve dst[0] as the first code byte
	code := byte(1)

	for i, b := range payload {
		if b == 0 {
			dst[codeIdx] = code
			codeIdx = write
			write++
			code = 1
			continue
		}
		dst[write] = b
		write++
		code++
		if code == 0xFF && i < len(payload)-1 {
			dst[codeIdx] = code
			codeIdx = write
			write++
			code = 1
		}
	}
	dst[codeIdx] = code
	dst[write] = 0x00
	write++
	return write, nil
}

// DeframerState names the three states of the COBS deframer's state
// machine.
type DeframerState int

const (
	StateEmpty DeframerState = iota
	StateAccumulating
	StateOverflowWaitingForTerminator
)

// Deframer reassembles COBS-framed messages out of arbitrary stream
// chunks. Fed byte-by-byte or in bulk, it produces the same sequence
// of delivered payloads either way.
type Deframer struct {
	state DeframerState
	buf   []byte
	max   int
}

// NewDeframer constructs a Deframer whose accumulator holds at most
// maxFrameLen raw (still-COBS-encoded) bytes.
func NewDeframer(maxFrameLen int) *Deframer {
	return &Deframer{state: StateEmpty, max: maxFrameLen}
}

// State reports the deframer's current state, mostly for tests.
func (d *Deframer) State() DeframerState {
	return d.state
}

// Feed consumes chunk and returns zero or more decoded payloads. A
// zero-length chunk is a no-op.
func (d *Deframer) Feed(chunk []byte) ([][]byte, error) {
	if len(chunk) == 0 {
		return nil, nil
	}

	var out [][]byte
	for _, b := range chunk {
		if b == 0x00 {
			switch d.state {
			case StateAccumulating:
				payload, err := decodeCOBSBlock(d.buf)
				d.buf = nil
				d.state = StateEmpty
				if err == nil {
					out = append(out, payload)
				}
			case StateOverflowWaitingForTerminator:
				d.buf = nil
				d.state = StateEmpty
			case StateEmpty:
				// stray terminator; ignore.
			}
			continue
		}

		switch d.state {
		case StateEmpty:
			d.state = StateAccumulating
			d.buf = append(d.buf[:0], b)
		case StateAccumulating:
			if len(d.buf) >= d.max {
				d.buf = nil
				d.state = StateOverflowWaitingForTerminator
				continue
			}
			d.buf = append(d.buf, b)
		case StateOverflowWaitingForTerminator:
			// drop bytes until resync at the next terminator.
		}
	}
	return out, nil
}

// decodeCOBSBlock decodes a complete COBS block (no trailing zero) to
// its original payload.
func decodeCOBSBlock(block []byte) ([]byte, error) {
	if len(block) == 0 {
		return nil, errors.New("wire: empty cobs block")
	}
	out := make([]byte, 0, len(block))
	i := 0
	for i < len(block) {
		code := int(block[i])
		if code == 0 {
			return nil, errors.New("wire: invalid cobs code byte")
		}
		i++
		end := i + code - 1
		if end > len(block) {
			return nil, errors.New("wire: truncated cobs block")
		}
		out = append(out, block[i:end]...)
		i = end
		if code != 0xFF && i < len(block) {
			out = append(out, 0x00)
		}
	}
	return out, nil
}
