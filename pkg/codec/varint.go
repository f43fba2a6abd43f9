package codec

import "encoding/binary"

// VarInt encoding prefixes, following the Bitcoin CompactSize convention:
// values below 0xFD encode as a single byte; 0xFD/0xFE/0xFF mark a
// following little-endian uint16/uint32/uint64.
const (
	varInt16Prefix = 0xFD
	varInt32Prefix = 0xFE
	varInt64Prefix = 0xFF
)

// AppendVarInt appends the canonical minimal-length VarInt encoding of v
// to buf and returns the extended slice.
func AppendVarInt(buf []byte, v uint64) []byte {
	switch {
	case v < varInt16Prefix:
		return append(buf, byte(v))
	case v <= 0xFFFF:
		buf = append(buf, varInt16Prefix)
		return binary.LittleEndian.AppendUint16(buf, uint16(v))
	case v <= 0xFFFFFFFF:
		buf = append(buf, varInt32Prefix)
		return binary.LittleEndian.AppendUint32(buf, uint32(v))
	default:
		buf = append(buf, varInt64Prefix)
		return binary.LittleEndian.AppendUint64(buf, v)
	}
}

// ReadVarInt decodes a VarInt from the front of b, returning the value,
// the number of bytes consumed, and an error if b is truncated or the
// encoding is not the minimal form for its value (a non-minimal VarInt
// is a canonicalization violation, not just wasted space: it would let
// two different byte strings hash to the same logical transaction).
func ReadVarInt(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, malformed("varint: empty input")
	}
	prefix := b[0]
	switch {
	case prefix < varInt16Prefix:
		return uint64(prefix), 1, nil
	case prefix == varInt16Prefix:
		if len(b) < 3 {
			return 0, 0, malformed("varint: truncated uint16")
		}
		v := binary.LittleEndian.Uint16(b[1:3])
		if v < varInt16Prefix {
			return 0, 0, malformed("varint: non-minimal uint16 encoding")
		}
		return uint64(v), 3, nil
	case prefix == varInt32Prefix:
		if len(b) < 5 {
			return 0, 0, malformed("varint: truncated uint32")
		}
		v := binary.LittleEndian.Uint32(b[1:5])
		if v <= 0xFFFF {
			return 0, 0, malformed("varint: non-minimal uint32 encoding")
		}
		return uint64(v), 5, nil
	default: // varInt64Prefix
		if len(b) < 9 {
			return 0, 0, malformed("varint: truncated uint64")
		}
		v := binary.LittleEndian.Uint64(b[1:9])
		if v <= 0xFFFFFFFF {
			return 0, 0, malformed("varint: non-minimal uint64 encoding")
		}
		return v, 9, nil
	}
}
