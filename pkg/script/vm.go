package script

import (
	"bytes"

	"github.com/INT-devs/intcoin/pkg/codec"
	"github.com/INT-devs/intcoin/pkg/crypto"
)

// Execution limits (spec-mandated).
const (
	MaxElementSize = 520   // bytes per stack element
	MaxOpsExecuted = 201   // non-push opcodes executed per script
	MaxStackDepth  = 1000  // elements on the stack at any time
	MaxStepBudget  = 10000 // total cost units (pushes + opcodes) per script
)

// TagID is a small integer selecting one of the well-known domain tags
// for OP_HASH_TAGGED, so a script only ever carries a single byte rather
// than the full tag string.
type TagID int

const (
	TagAddress TagID = iota
	TagSigHash
	TagMerkleLeaf
)

func tagForID(id TagID) (string, bool) {
	switch id {
	case TagAddress:
		return crypto.TagAddress, true
	case TagSigHash:
		return crypto.TagSigHash, true
	case TagMerkleLeaf:
		return crypto.TagMerkleLeaf, true
	default:
		return "", false
	}
}

// Context supplies the data a running script needs but cannot compute
// itself: the message OP_CHECK_SIG_PQ verifies signatures against.
type Context struct {
	// SigHash is tx_sighash(tx, input_index, prevout_script, amount), the
	// exact preimage a spending signature must cover.
	SigHash []byte
}

// stack holds script execution state: a slice of byte-slice elements.
type stack [][]byte

func (s *stack) push(v []byte) error {
	if len(*s) >= MaxStackDepth {
		return newError(StackOverflow, "stack depth exceeds limit")
	}
	*s = append(*s, v)
	return nil
}

func (s *stack) pop() ([]byte, error) {
	if len(*s) == 0 {
		return nil, newError(StackUnderflow, "pop from empty stack")
	}
	n := len(*s)
	v := (*s)[n-1]
	*s = (*s)[:n-1]
	return v, nil
}

func truthy(v []byte) bool {
	for _, b := range v {
		if b != 0 {
			return true
		}
	}
	return false
}

var (
	trueElem  = []byte{0x01}
	falseElem = []byte{0x00}
)

// Execute runs unlockProgram followed by lockProgram against a shared
// stack, the way a UTXO chain concatenates a spending input's unlocking
// script with the output's locking script. It succeeds only if execution
// completes within the step/op/stack budgets and leaves exactly one
// truthy element on the stack.
func Execute(unlockProgram, lockProgram []byte, ctx Context) error {
	var st stack
	steps := 0
	ops := 0

	run := func(program []byte) error {
		r := codec.NewReader(program)
		for !r.AtEnd() {
			opByte, err := r.U8()
			if err != nil {
				return newError(InvalidOpcode, "truncated program")
			}
			op := Op(opByte)
			steps++
			if steps > MaxStepBudget {
				return newError(BudgetExceeded, "step budget exceeded")
			}

			switch {
			case op == OP_PUSHDATA:
				data, err := r.VarBytes(MaxElementSize)
				if err != nil {
					return newError(InvalidOpcode, "malformed push: "+err.Error())
				}
				if err := st.push(data); err != nil {
					return err
				}
				continue
			case isSmallInt(op):
				if err := st.push([]byte{smallIntValue(op)}); err != nil {
					return err
				}
				continue
			}

			ops++
			if ops > MaxOpsExecuted {
				return newError(BudgetExceeded, "opcode count exceeds limit")
			}

			switch op {
			case OP_DUP:
				v, err := st.pop()
				if err != nil {
					return err
				}
				if err := st.push(v); err != nil {
					return err
				}
				if err := st.push(v); err != nil {
					return err
				}
			case OP_DROP:
				if _, err := st.pop(); err != nil {
					return err
				}
			case OP_SWAP:
				a, err := st.pop()
				if err != nil {
					return err
				}
				b, err := st.pop()
				if err != nil {
					return err
				}
				if err := st.push(a); err != nil {
					return err
				}
				if err := st.push(b); err != nil {
					return err
				}
			case OP_EQUAL, OP_EQUALVERIFY:
				a, err := st.pop()
				if err != nil {
					return err
				}
				b, err := st.pop()
				if err != nil {
					return err
				}
				eq := bytes.Equal(a, b)
				if op == OP_EQUALVERIFY {
					if !eq {
						return newError(VerifyFailed, "OP_EQUALVERIFY failed")
					}
					continue
				}
				if eq {
					if err := st.push(trueElem); err != nil {
						return err
					}
				} else {
					if err := st.push(falseElem); err != nil {
						return err
					}
				}
			case OP_VERIFY:
				v, err := st.pop()
				if err != nil {
					return err
				}
				if !truthy(v) {
					return newError(VerifyFailed, "OP_VERIFY failed")
				}
			case OP_HASH_TAGGED:
				idElem, err := st.pop()
				if err != nil {
					return err
				}
				data, err := st.pop()
				if err != nil {
					return err
				}
				if len(idElem) != 1 {
					return newError(InvalidOpcode, "OP_HASH_TAGGED tag id must be a single byte")
				}
				tag, ok := tagForID(TagID(idElem[0]))
				if !ok {
					return newError(InvalidOpcode, "unknown tag id")
				}
				h := crypto.HashTagged(tag, data)
				digest := h[:]
				if TagID(idElem[0]) == TagAddress {
					// An address is the leading AddressSize bytes of the
					// tagged hash, exactly as crypto.AddressFromPubKey derives it.
					addr := crypto.AddressFromPubKey(data)
					digest = addr[:]
				}
				if err := st.push(digest); err != nil {
					return err
				}
			case OP_CHECK_SIG_PQ:
				pubKey, err := st.pop()
				if err != nil {
					return err
				}
				sig, err := st.pop()
				if err != nil {
					return err
				}
				if len(sig) != crypto.SignatureSize || len(pubKey) != crypto.PublicKeySize {
					return newError(InvalidSignatureEncoding, "signature or public key has the wrong length")
				}
				if crypto.VerifySignature(ctx.SigHash, sig, pubKey) {
					if err := st.push(trueElem); err != nil {
						return err
					}
				} else {
					if err := st.push(falseElem); err != nil {
						return err
					}
				}
			default:
				return newError(InvalidOpcode, op.Name())
			}
		}
		return nil
	}

	if err := run(unlockProgram); err != nil {
		return err
	}
	if err := run(lockProgram); err != nil {
		return err
	}

	if len(st) != 1 {
		return newError(VerifyFailed, "script did not leave exactly one value on the stack")
	}
	if !truthy(st[0]) {
		return newError(VerifyFailed, "final stack value is not truthy")
	}
	return nil
}
