// Package serializer implements the two fixed encodings ArenaSQL uses for
// integers on the wire and on disk (spec.md §4.2): a variable-length
// big-endian encoding that preserves byte-wise lexicographic order (used
// for row IDs and most data), and a fixed-width big-endian encoding (used
// for catalog metadata and monotonic counters where a stable width matters
// more than compactness).
package serializer

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Mode selects which integer encoding a Serializer applies.
type Mode int

const (
	// VarInt is the default: a length-prefixed, order-preserving varint.
	VarInt Mode = iota
	// FixedInt encodes integers in a fixed big-endian width (2, 4 or 8
	// bytes, by integer type).
	FixedInt
)

// Order-preserving varint encoding: a one-byte length prefix n (0..8,
// the number of following bytes) followed by the minimal big-endian
// representation of v. Because the prefix grows monotonically with the
// value's magnitude tier, and same-tier values compare correctly as plain
// big-endian integers, lexicographic byte comparison of two encodings
// always agrees with numeric comparison of the original values — the
// row-ID ordering invariant spec.md §3.1 and §8 test exhaustively.
func byteLen(v uint64) int {
	n := 0
	for v > 0 {
		n++
		v >>= 8
	}
	return n
}

// EncodeVarUint64 encodes v as an order-preserving variable-length big-endian
// unsigned integer.
func EncodeVarUint64(v uint64) []byte {
	n := byteLen(v)
	out := make([]byte, 1+n)
	out[0] = byte(n)
	for i := n; i >= 1; i-- {
		out[i] = byte(v & 0xff)
		v >>= 8
	}
	return out
}

// DecodeVarUint64 decodes an EncodeVarUint64 buffer, returning the value and
// the number of bytes consumed.
func DecodeVarUint64(buf []byte) (uint64, int, error) {
	if len(buf) < 1 {
		return 0, 0, fmt.Errorf("serializer: empty varint")
	}
	n := int(buf[0])
	if n > 8 || len(buf) < 1+n {
		return 0, 0, fmt.Errorf("serializer: truncated varint (n=%d, have %d bytes)", n, len(buf)-1)
	}
	var v uint64
	for i := 1; i <= n; i++ {
		v = (v << 8) | uint64(buf[i])
	}
	return v, 1 + n, nil
}

// EncodeFixedUint64 encodes v as a fixed 8-byte big-endian unsigned integer.
func EncodeFixedUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

// DecodeFixedUint64 decodes a fixed 8-byte big-endian unsigned integer.
func DecodeFixedUint64(buf []byte) (uint64, error) {
	if len(buf) < 8 {
		return 0, fmt.Errorf("serializer: fixed uint64 needs 8 bytes, got %d", len(buf))
	}
	return binary.BigEndian.Uint64(buf[:8]), nil
}

// EncodeFixedUint32 encodes v as a fixed 4-byte big-endian unsigned integer.
func EncodeFixedUint32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return buf
}

// DecodeFixedUint32 decodes a fixed 4-byte big-endian unsigned integer.
func DecodeFixedUint32(buf []byte) (uint32, error) {
	if len(buf) < 4 {
		return 0, fmt.Errorf("serializer: fixed uint32 needs 4 bytes, got %d", len(buf))
	}
	return binary.BigEndian.Uint32(buf[:4]), nil
}

// EncodeFixedUint16 encodes v as a fixed 2-byte big-endian unsigned integer.
func EncodeFixedUint16(v uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	return buf
}

// DecodeFixedUint16 decodes a fixed 2-byte big-endian unsigned integer.
func DecodeFixedUint16(buf []byte) (uint16, error) {
	if len(buf) < 2 {
		return 0, fmt.Errorf("serializer: fixed uint16 needs 2 bytes, got %d", len(buf))
	}
	return binary.BigEndian.Uint16(buf[:2]), nil
}

// EncodeRowID encodes a RowID using the order-preserving VarInt encoding.
// Row keys rely on byte-wise comparison of this encoding matching numeric
// order (spec.md §3.1, §3.4, §8 property 1).
func EncodeRowID(rowID uint64) []byte { return EncodeVarUint64(rowID) }

// DecodeRowID decodes a RowID encoded by EncodeRowID.
func DecodeRowID(buf []byte) (uint64, int, error) { return DecodeVarUint64(buf) }

// EncodeOrderedInt32 encodes a signed 32-bit integer so that unsigned
// big-endian byte comparison of the result matches signed numeric order:
// flip the sign bit so negative numbers sort before non-negative ones.
func EncodeOrderedInt32(v int32) []byte {
	return EncodeFixedUint32(uint32(v) ^ 0x8000_0000)
}

// DecodeOrderedInt32 reverses EncodeOrderedInt32.
func DecodeOrderedInt32(buf []byte) (int32, error) {
	u, err := DecodeFixedUint32(buf)
	if err != nil {
		return 0, err
	}
	return int32(u ^ 0x8000_0000), nil
}

// EncodeOrderedInt64 is the 64-bit counterpart of EncodeOrderedInt32.
func EncodeOrderedInt64(v int64) []byte {
	return EncodeFixedUint64(uint64(v) ^ 0x8000_0000_0000_0000)
}

// DecodeOrderedInt64 reverses EncodeOrderedInt64.
func DecodeOrderedInt64(buf []byte) (int64, error) {
	u, err := DecodeFixedUint64(buf)
	if err != nil {
		return 0, err
	}
	return int64(u ^ 0x8000_0000_0000_0000), nil
}

// EncodeOrderedFloat32 encodes an IEEE-754 float so that unsigned big-endian
// byte comparison matches numeric order: for non-negative floats flip the
// sign bit; for negative floats flip every bit (reversing their magnitude
// order, since more-negative floats have larger raw bit patterns).
func EncodeOrderedFloat32(v float32) []byte {
	bits := math.Float32bits(v)
	if bits&0x8000_0000 != 0 {
		bits = ^bits
	} else {
		bits |= 0x8000_0000
	}
	return EncodeFixedUint32(bits)
}

// DecodeOrderedFloat32 reverses EncodeOrderedFloat32.
func DecodeOrderedFloat32(buf []byte) (float32, error) {
	bits, err := DecodeFixedUint32(buf)
	if err != nil {
		return 0, err
	}
	if bits&0x8000_0000 != 0 {
		bits &^= 0x8000_0000
	} else {
		bits = ^bits
	}
	return math.Float32frombits(bits), nil
}

// EncodeOrderedFloat64 is the 64-bit counterpart of EncodeOrderedFloat32.
func EncodeOrderedFloat64(v float64) []byte {
	bits := math.Float64bits(v)
	if bits&0x8000_0000_0000_0000 != 0 {
		bits = ^bits
	} else {
		bits |= 0x8000_0000_0000_0000
	}
	return EncodeFixedUint64(bits)
}

// DecodeOrderedFloat64 reverses EncodeOrderedFloat64.
func DecodeOrderedFloat64(buf []byte) (float64, error) {
	bits, err := DecodeFixedUint64(buf)
	if err != nil {
		return 0, err
	}
	if bits&0x8000_0000_0000_0000 != 0 {
		bits &^= 0x8000_0000_0000_0000
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits), nil
}

// EncodeOrderedBytes escapes b so that it can be concatenated with further
// fields in a composite key while remaining self-delimiting and
// order-preserving: each 0x00 byte is escaped as 0x00 0xFF, and the whole
// sequence is terminated with 0x00 0x00. This is the standard
// zero-escape/terminator trick order-preserving tuple encodings use for
// variable-length fields (FoundationDB's tuple layer, CockroachDB's
// EncodeBytesAscending) and is what lets Text/Binary/Varchar columns
// participate in composite index keys.
func EncodeOrderedBytes(b []byte) []byte {
	out := make([]byte, 0, len(b)+2)
	for _, c := range b {
		if c == 0x00 {
			out = append(out, 0x00, 0xFF)
		} else {
			out = append(out, c)
		}
	}
	return append(out, 0x00, 0x00)
}

// DecodeOrderedBytes reverses EncodeOrderedBytes, returning the decoded
// bytes and the number of input bytes consumed (including the terminator).
func DecodeOrderedBytes(buf []byte) ([]byte, int, error) {
	out := make([]byte, 0, len(buf))
	for i := 0; i < len(buf); i++ {
		if buf[i] != 0x00 {
			out = append(out, buf[i])
			continue
		}
		if i+1 >= len(buf) {
			return nil, 0, fmt.Errorf("serializer: truncated ordered bytes")
		}
		switch buf[i+1] {
		case 0xFF:
			out = append(out, 0x00)
			i++
		case 0x00:
			return out, i + 2, nil
		default:
			return nil, 0, fmt.Errorf("serializer: invalid escape in ordered bytes")
		}
	}
	return nil, 0, fmt.Errorf("serializer: missing terminator in ordered bytes")
}
