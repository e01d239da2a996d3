package wire

import "encoding/binary"

// The functions below are the field-level primitives the rpc
// package's message structs use to pack/unpack their payloads,
// following the same manual binary.LittleEndian field-by-field style
// the teacher's uapi package used for kernel command structs.

// PutUint32/GetUint32 pack/unpack a little-endian uint32 field.
func PutUint32(buf []byte, v uint32) int {
	binary.LittleEndian.PutUint32(buf, v)
	return 4
}

func GetUint32(buf []byte) (uint32, int) {
	return binary.LittleEndian.Uint32(buf), 4
}

// PutUint64/GetUint64 pack/unpack a little-endian uint64 field.
func PutUint64(buf []byte, v uint64) int {
	binary.LittleEndian.PutUint64(buf, v)
	return 8
}

func GetUint64(buf []byte) (uint64, int) {
	return binary.LittleEndian.Uint64(buf), 8
}

// PutInt32/GetInt32 pack/unpack a little-endian int32 field.
func PutInt32(buf []byte, v int32) int {
	binary.LittleEndian.PutUint32(buf, uint32(v))
	return 4
}

func GetInt32(buf []byte) (int32, int) {
	return int32(binary.LittleEndian.Uint32(buf)), 4
}

// PutString writes a length-prefixed (1 byte, capped at 255) string.
// Strings longer than maxLen are truncated before encoding. The rpc
// message Marshal methods pass the schema max and rely on this
// truncation rather than validating length first.
func PutString(buf []byte, s string, maxLen int) int {
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	buf[0] = byte(len(s))
	n := copy(buf[1:], s)
	return 1 + n
}

// GetString reads a length-prefixed string written by PutString.
func GetString(buf []byte) (string, int) {
	n := int(buf[0])
	return string(buf[1 : 1+n]), 1 + n
}

// PutString2 writes a length-prefixed (2 byte) string, for fields
// whose schema max exceeds 255 bytes (e.g. the script callset's
// captured traceback message).
func PutString2(buf []byte, s string, maxLen int) int {
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	binary.LittleEndian.PutUint16(buf, uint16(len(s)))
	n := copy(buf[2:], s)
	return 2 + n
}

// GetString2 reads a length-prefixed string written by PutString2.
func GetString2(buf []byte) (string, int) {
	n := int(binary.LittleEndian.Uint16(buf))
	return string(buf[2 : 2+n]), 2 + n
}

// String2Size returns the encoded size of s under PutString2.
func String2Size(s string, maxLen int) int {
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return 2 + len(s)
}

// PutBytes writes a length-prefixed (2 byte) byte blob.
func PutBytes(buf []byte, data []byte) int {
	binary.LittleEndian.PutUint16(buf, uint16(len(data)))
	n := copy(buf[2:], data)
	return 2 + n
}

// GetBytes reads a length-prefixed byte blob written by PutBytes. The
// returned slice aliases buf.
func GetBytes(buf []byte) ([]byte, int) {
	n := int(binary.LittleEndian.Uint16(buf))
	return buf[2 : 2+n], 2 + n
}

// StringSize returns the encoded size of s under PutString.
func StringSize(s string, maxLen int) int {
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return 1 + len(s)
}

// BytesSize returns the encoded size of data under PutBytes.
func BytesSize(data []byte) int {
	return 2 + len(data)
}
