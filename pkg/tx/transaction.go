// Package tx defines transaction types, canonical encoding, and validation.
package tx

import (
	"encoding/binary"

	"github.com/INT-devs/intcoin/pkg/codec"
	"github.com/INT-devs/intcoin/pkg/crypto"
	"github.com/INT-devs/intcoin/pkg/types"
)

// Transaction represents a blockchain transaction.
type Transaction struct {
	Version  uint32   `json:"version"`
	Inputs   []Input  `json:"inputs"`
	Outputs  []Output `json:"outputs"`
	LockTime uint32   `json:"locktime"`
}

// DefaultSequence marks an input as final (no relative-locktime intent).
const DefaultSequence = 0xFFFFFFFF

// Input references a UTXO being spent. UnlockScript is the program run
// ahead of the referenced output's locking script; for a coinbase input
// (PrevOut.IsCoinbase()) it instead carries arbitrary coinbase data whose
// first 8 bytes encode the block height, and is never executed. Sequence
// is carried on the wire for future relative-locktime use; this core does
// not interpret it beyond storing and hashing it.
type Input struct {
	PrevOut      types.Outpoint `json:"prevout"`
	UnlockScript types.Script   `json:"unlock_script"`
	Sequence     uint32         `json:"sequence"`
}

// Output defines a new UTXO.
type Output struct {
	Value  uint64       `json:"value"`
	Script types.Script `json:"script"`
}

// NewCoinbaseInput builds the sentinel input that creates a coinbase
// transaction's subsidy, embedding height in the first 8 bytes of the
// unlock-script field (which is never executed as a program).
func NewCoinbaseInput(height uint64, extra []byte) Input {
	data := make([]byte, 8, 8+len(extra))
	binary.LittleEndian.PutUint64(data, height)
	data = append(data, extra...)
	return Input{
		PrevOut:      types.Outpoint{Index: types.CoinbaseIndex},
		UnlockScript: types.Script(data),
		Sequence:     DefaultSequence,
	}
}

// CoinbaseHeight extracts the embedded height from a coinbase input's
// unlock-script data. Only valid when PrevOut.IsCoinbase() is true.
func (in Input) CoinbaseHeight() (uint64, bool) {
	if !in.PrevOut.IsCoinbase() || len(in.UnlockScript) < 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(in.UnlockScript[:8]), true
}

// Hash computes the transaction ID: HashTagged(TagTx, Encode()).
func (t *Transaction) Hash() types.Hash {
	return crypto.HashTagged(crypto.TagTx, t.Encode())
}

// Encode returns the canonical binary encoding of the transaction.
func (t *Transaction) Encode() []byte {
	w := codec.NewWriter(128)
	w.U32(t.Version)
	w.VarInt(uint64(len(t.Inputs)))
	for _, in := range t.Inputs {
		w.Raw(in.PrevOut.TxID[:])
		w.U32(in.PrevOut.Index)
		w.VarBytes(in.UnlockScript)
		w.U32(in.Sequence)
	}
	w.VarInt(uint64(len(t.Outputs)))
	for _, out := range t.Outputs {
		w.U64(out.Value)
		w.VarBytes(out.Script)
	}
	w.U32(t.LockTime)
	return w.Bytes()
}

// Decode parses a canonical transaction encoding, rejecting malformed or
// oversize input per the hard caps in pkg/codec.
func Decode(b []byte) (*Transaction, error) {
	if len(b) > codec.MaxTxBytes {
		return nil, codec.ErrMalformed
	}
	r := codec.NewReader(b)
	t := &Transaction{}

	version, err := r.U32()
	if err != nil {
		return nil, err
	}
	t.Version = version

	numInputs, err := r.VarInt()
	if err != nil {
		return nil, err
	}
	if numInputs > codec.MaxTxEntries {
		return nil, codec.ErrMalformed
	}
	t.Inputs = make([]Input, numInputs)
	for i := range t.Inputs {
		txid, err := r.Raw(types.HashSize)
		if err != nil {
			return nil, err
		}
		copy(t.Inputs[i].PrevOut.TxID[:], txid)
		index, err := r.U32()
		if err != nil {
			return nil, err
		}
		t.Inputs[i].PrevOut.Index = index
		script, err := r.VarBytes(codec.MaxScriptBytes)
		if err != nil {
			return nil, err
		}
		t.Inputs[i].UnlockScript = script
		sequence, err := r.U32()
		if err != nil {
			return nil, err
		}
		t.Inputs[i].Sequence = sequence
	}

	numOutputs, err := r.VarInt()
	if err != nil {
		return nil, err
	}
	if numOutputs > codec.MaxTxEntries {
		return nil, codec.ErrMalformed
	}
	t.Outputs = make([]Output, numOutputs)
	for i := range t.Outputs {
		value, err := r.U64()
		if err != nil {
			return nil, err
		}
		t.Outputs[i].Value = value
		script, err := r.VarBytes(codec.MaxScriptBytes)
		if err != nil {
			return nil, err
		}
		t.Outputs[i].Script = script
	}

	lockTime, err := r.U32()
	if err != nil {
		return nil, err
	}
	t.LockTime = lockTime

	if !r.AtEnd() {
		return nil, codec.ErrMalformed
	}
	return t, nil
}

// TotalOutputValue returns the sum of all output values, or an error if
// the sum overflows uint64.
func (t *Transaction) TotalOutputValue() (uint64, error) {
	var total uint64
	for _, out := range t.Outputs {
		if total > ^uint64(0)-out.Value {
			return 0, ErrOutputOverflow
		}
		total += out.Value
	}
	return total, nil
}

// IsCoinbase reports whether this is a coinbase transaction: exactly one
// input, and that input's prevout is the coinbase sentinel.
func (t *Transaction) IsCoinbase() bool {
	return len(t.Inputs) == 1 && t.Inputs[0].PrevOut.IsCoinbase()
}

// SigHash computes the message a spending signature for input i must
// cover: the transaction with every other input's unlock script blanked
// out (so one input's signature is independent of siblings still being
// filled in), the signing input's unlock script replaced by the prevout
// script it spends, plus the input index and spent amount bound in.
// Unlike a whole-tx hash, this lets OP_CHECK_SIG_PQ authenticate exactly
// what is being spent rather than the raw transaction bytes.
func (t *Transaction) SigHash(inputIndex int, prevoutScript types.Script, amount uint64) []byte {
	w := codec.NewWriter(128)
	w.U32(t.Version)
	w.VarInt(uint64(len(t.Inputs)))
	for i, in := range t.Inputs {
		w.Raw(in.PrevOut.TxID[:])
		w.U32(in.PrevOut.Index)
		if i == inputIndex {
			w.VarBytes(prevoutScript)
		} else {
			w.VarBytes(nil)
		}
		w.U32(in.Sequence)
	}
	w.VarInt(uint64(len(t.Outputs)))
	for _, out := range t.Outputs {
		w.U64(out.Value)
		w.VarBytes(out.Script)
	}
	w.U32(t.LockTime)
	w.U32(uint32(inputIndex))
	w.U64(amount)
	h := crypto.HashTagged(crypto.TagSigHash, w.Bytes())
	return h[:]
}
