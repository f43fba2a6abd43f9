package tx

import (
	"fmt"

	"github.com/INT-devs/intcoin/pkg/crypto"
	"github.com/INT-devs/intcoin/pkg/script"
	"github.com/INT-devs/intcoin/pkg/types"
)

// Builder constructs transactions incrementally.
type Builder struct {
	tx *Transaction
}

// NewBuilder creates a new transaction builder.
func NewBuilder() *Builder {
	return &Builder{
		tx: &Transaction{Version: 1},
	}
}

// AddInput adds an input referencing a previous output. Its unlock
// script is filled in later by Sign.
func (b *Builder) AddInput(prevOut types.Outpoint) *Builder {
	b.tx.Inputs = append(b.tx.Inputs, Input{PrevOut: prevOut, Sequence: DefaultSequence})
	return b
}

// AddOutput adds an output with a value and locking script.
func (b *Builder) AddOutput(value uint64, lockScript types.Script) *Builder {
	b.tx.Outputs = append(b.tx.Outputs, Output{Value: value, Script: lockScript})
	return b
}

// AddP2PKHOutput adds a standard pay-to-pubkey-hash output.
func (b *Builder) AddP2PKHOutput(value uint64, addr types.Address) *Builder {
	lock, err := script.P2PKHLockScript(addr[:])
	if err != nil {
		// addr is always exactly AddressSize bytes; P2PKHLockScript only
		// fails on an oversize push.
		panic(fmt.Sprintf("build P2PKH lock script: %v", err))
	}
	return b.AddOutput(value, lock)
}

// SetLockTime sets the transaction lock time.
func (b *Builder) SetLockTime(lockTime uint32) *Builder {
	b.tx.LockTime = lockTime
	return b
}

// PrevoutInfo is what Sign needs about each input's referenced output to
// compute its sighash.
type PrevoutInfo struct {
	Script types.Script
	Amount uint64
}

// Sign fills in each non-coinbase input's unlock script with a standard
// P2PKH spend: the signature over that input's sighash, followed by the
// given key's public key. prevouts must have one entry per input, in
// order, describing the output it spends.
func (b *Builder) Sign(key *crypto.PrivateKey, prevouts []PrevoutInfo) error {
	if len(prevouts) != len(b.tx.Inputs) {
		return fmt.Errorf("sign: %d prevouts for %d inputs", len(prevouts), len(b.tx.Inputs))
	}
	pubKey := key.PublicKey()
	for i := range b.tx.Inputs {
		if b.tx.Inputs[i].PrevOut.IsCoinbase() {
			continue
		}
		sigHash := b.tx.SigHash(i, prevouts[i].Script, prevouts[i].Amount)
		sig, err := key.Sign(sigHash)
		if err != nil {
			return fmt.Errorf("sign input %d: %w", i, err)
		}
		unlock, err := script.P2PKHUnlockScript(sig, pubKey)
		if err != nil {
			return fmt.Errorf("build unlock script for input %d: %w", i, err)
		}
		b.tx.Inputs[i].UnlockScript = unlock
	}
	return nil
}

// Build returns the constructed transaction. Does NOT validate — call
// tx.Validate() or tx.ValidateWithUTXOs() separately.
func (b *Builder) Build() *Transaction {
	return b.tx
}
