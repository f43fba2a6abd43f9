package script

import "github.com/INT-devs/intcoin/pkg/codec"

// Builder assembles a script program one opcode/push at a time.
type Builder struct {
	buf []byte
	err error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// PushData appends an OP_PUSHDATA opcode carrying data. Elements over
// MaxElementSize are rejected at build time rather than left to fail at
// execution time.
func (b *Builder) PushData(data []byte) *Builder {
	if b.err != nil {
		return b
	}
	if len(data) > MaxElementSize {
		b.err = newError(InvalidOpcode, "pushed element exceeds max stack element size")
		return b
	}
	b.buf = append(b.buf, byte(OP_PUSHDATA))
	b.buf = codec.AppendVarInt(b.buf, uint64(len(data)))
	b.buf = append(b.buf, data...)
	return b
}

// PushInt appends a small-integer push (0-16).
func (b *Builder) PushInt(v int) *Builder {
	if b.err != nil {
		return b
	}
	if v < 0 || v > 16 {
		b.err = newError(InvalidOpcode, "small int push out of range 0-16")
		return b
	}
	b.buf = append(b.buf, byte(OP_0)+byte(v))
	return b
}

// Op appends a single bare opcode (no operand).
func (b *Builder) Op(op Op) *Builder {
	if b.err != nil {
		return b
	}
	b.buf = append(b.buf, byte(op))
	return b
}

// Build returns the assembled program, or an error if any step failed.
func (b *Builder) Build() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out, nil
}

// P2PKHLockScript builds the standard locking script for a pay-to-pubkey-hash
// output: OP_DUP OP_HASH_TAGGED(addr) <pubkeyHash> OP_EQUALVERIFY OP_CHECK_SIG_PQ.
func P2PKHLockScript(pubKeyHash []byte) ([]byte, error) {
	return NewBuilder().
		Op(OP_DUP).
		PushInt(int(TagAddress)).
		Op(OP_HASH_TAGGED).
		PushData(pubKeyHash).
		Op(OP_EQUALVERIFY).
		Op(OP_CHECK_SIG_PQ).
		Build()
}

// P2PKHUnlockScript builds the standard unlocking script for a P2PKH input:
// push the signature, then the public key.
func P2PKHUnlockScript(signature, pubKey []byte) ([]byte, error) {
	return NewBuilder().
		PushData(signature).
		PushData(pubKey).
		Build()
}

// ExtractP2PKHAddress recognizes the exact program P2PKHLockScript builds
// and, if the program matches, returns the pubkey hash pushed into it.
// Used by address indexing, which has no other way to recover "who can
// spend this" from an opaque locking program.
func ExtractP2PKHAddress(program []byte) ([]byte, bool) {
	r := codec.NewReader(program)

	op, err := r.U8()
	if err != nil || Op(op) != OP_DUP {
		return nil, false
	}
	tagOp, err := r.U8()
	if err != nil || !isSmallInt(Op(tagOp)) {
		return nil, false
	}
	op, err = r.U8()
	if err != nil || Op(op) != OP_HASH_TAGGED {
		return nil, false
	}
	op, err = r.U8()
	if err != nil || Op(op) != OP_PUSHDATA {
		return nil, false
	}
	pubKeyHash, err := r.VarBytes(MaxElementSize)
	if err != nil {
		return nil, false
	}
	op, err = r.U8()
	if err != nil || Op(op) != OP_EQUALVERIFY {
		return nil, false
	}
	op, err = r.U8()
	if err != nil || Op(op) != OP_CHECK_SIG_PQ {
		return nil, false
	}
	if !r.AtEnd() {
		return nil, false
	}
	return pubKeyHash, true
}
