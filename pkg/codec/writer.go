package codec

import "encoding/binary"

// Writer accumulates a canonical binary encoding. It never fails: every
// method just appends bytes, matching the teacher's manual
// little-endian-append encoding style but factored into one reusable
// type instead of repeating the append calls in every SigningBytes.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with a pre-sized internal buffer.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// U8 appends a single byte.
func (w *Writer) U8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

// U32 appends a little-endian uint32.
func (w *Writer) U32(v uint32) *Writer {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return w
}

// U64 appends a little-endian uint64.
func (w *Writer) U64(v uint64) *Writer {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	return w
}

// Raw appends b unprefixed and unlengthed, for fixed-size fields like a
// 32-byte hash.
func (w *Writer) Raw(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// VarInt appends the canonical VarInt encoding of v.
func (w *Writer) VarInt(v uint64) *Writer {
	w.buf = AppendVarInt(w.buf, v)
	return w
}

// VarBytes appends a VarInt length prefix followed by b, for
// variable-length fields like a script or signature.
func (w *Writer) VarBytes(b []byte) *Writer {
	w.buf = AppendVarInt(w.buf, uint64(len(b)))
	w.buf = append(w.buf, b...)
	return w
}

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte {
	return w.buf
}
