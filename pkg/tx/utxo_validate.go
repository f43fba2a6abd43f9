package tx

import (
	"errors"
	"fmt"

	"github.com/INT-devs/intcoin/pkg/script"
	"github.com/INT-devs/intcoin/pkg/types"
)

// UTXO-aware validation errors.
var (
	ErrInputNotFound   = errors.New("input UTXO not found")
	ErrInsufficientFee = errors.New("insufficient fee")
	ErrInputOverflow   = errors.New("input values overflow")
	ErrScriptFailed    = errors.New("unlock script failed to satisfy locking script")
)

// UTXOProvider provides read-only access to the UTXO set for validation.
type UTXOProvider interface {
	GetUTXO(outpoint types.Outpoint) (value uint64, lockScript types.Script, err error)
	HasUTXO(outpoint types.Outpoint) bool
}

// ValidateWithUTXOs performs full Phase B validation of a non-coinbase
// transaction against the UTXO set: every input must exist and be
// unspent, every input's unlock script must satisfy its prevout's lock
// script under the ScriptVM, and total inputs must cover total outputs.
// Returns the fee (inputs - outputs).
func (t *Transaction) ValidateWithUTXOs(provider UTXOProvider) (uint64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	if t.IsCoinbase() {
		return 0, fmt.Errorf("coinbase transactions are not validated against the UTXO set")
	}

	var totalInput uint64
	for i, in := range t.Inputs {
		if !provider.HasUTXO(in.PrevOut) {
			return 0, fmt.Errorf("input %d (%s): %w", i, in.PrevOut, ErrInputNotFound)
		}
		value, lockScript, err := provider.GetUTXO(in.PrevOut)
		if err != nil {
			return 0, fmt.Errorf("input %d: %w", i, err)
		}

		sigHash := t.SigHash(i, lockScript, value)
		if err := script.Execute(in.UnlockScript, lockScript, script.Context{SigHash: sigHash}); err != nil {
			return 0, fmt.Errorf("input %d (%s): %w: %v", i, in.PrevOut, ErrScriptFailed, err)
		}

		if totalInput > ^uint64(0)-value {
			return 0, fmt.Errorf("input %d: %w", i, ErrInputOverflow)
		}
		totalInput += value
	}

	totalOutput, err := t.TotalOutputValue()
	if err != nil {
		return 0, fmt.Errorf("output overflow: %w", err)
	}
	if totalInput < totalOutput {
		return 0, fmt.Errorf("%w: inputs=%d outputs=%d", ErrInsufficientFee, totalInput, totalOutput)
	}

	return totalInput - totalOutput, nil
}
