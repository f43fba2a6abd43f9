package codec

import "encoding/binary"

// Reader decodes a canonical binary encoding produced by Writer, tracking
// position and rejecting truncated or oversize fields as it goes rather
// than letting a caller read past the end of a short buffer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps b for sequential decoding.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining returns the number of undecoded bytes left.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// AtEnd reports whether every byte has been consumed. Callers must check
// this after decoding a complete structure to reject trailing garbage.
func (r *Reader) AtEnd() bool {
	return r.pos == len(r.buf)
}

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return malformed("unexpected end of input")
	}
	return nil
}

// U8 reads a single byte.
func (r *Reader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// U32 reads a little-endian uint32.
func (r *Reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

// U64 reads a little-endian uint64.
func (r *Reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

// Raw reads exactly n unprefixed bytes, for fixed-size fields like a
// 32-byte hash. The returned slice is a copy, safe to retain.
func (r *Reader) Raw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

// VarInt reads a canonical VarInt.
func (r *Reader) VarInt() (uint64, error) {
	v, n, err := ReadVarInt(r.buf[r.pos:])
	if err != nil {
		return 0, err
	}
	r.pos += n
	return v, nil
}

// VarBytes reads a VarInt length prefix followed by that many bytes,
// rejecting the read if the declared length exceeds maxLen.
func (r *Reader) VarBytes(maxLen int) ([]byte, error) {
	n, err := r.VarInt()
	if err != nil {
		return nil, err
	}
	if n > uint64(maxLen) {
		return nil, malformed("length-prefixed field exceeds size cap")
	}
	return r.Raw(int(n))
}
