package tx

import (
	"errors"
	"fmt"

	"github.com/INT-devs/intcoin/pkg/codec"
	"github.com/INT-devs/intcoin/pkg/types"
)

// Structural validation errors (context-free: no UTXO access needed).
var (
	ErrNoInputs           = errors.New("transaction has no inputs")
	ErrNoOutputs          = errors.New("transaction has no outputs")
	ErrDuplicateInput     = errors.New("duplicate input")
	ErrOutputOverflow     = errors.New("output values overflow")
	ErrZeroValueOutput    = errors.New("output value is zero")
	ErrTooManyInputs      = errors.New("too many inputs")
	ErrTooManyOutputs     = errors.New("too many outputs")
	ErrScriptTooLarge     = errors.New("script exceeds size cap")
	ErrTxTooLarge         = errors.New("transaction exceeds size cap")
	ErrNonCoinbaseZeroOut = errors.New("non-coinbase input referencing coinbase sentinel outpoint")
	ErrCoinbaseScriptSize = errors.New("coinbase unlock script must be 2-100 bytes")
)

// Coinbase unlock-script length bounds (the height commitment plus
// arbitrary miner data, never executed as a program).
const (
	MinCoinbaseScriptBytes = 2
	MaxCoinbaseScriptBytes = 100
)

// Validate performs Phase A (context-free) structural validation: input
// and output counts, size caps, duplicate-input detection, and output
// value sanity. It does not touch the UTXO set or run scripts — see
// ValidateWithUTXOs and the ScriptVM-driven checks in internal/consensus
// for the contextual (Phase B) rules.
func (t *Transaction) Validate() error {
	if len(t.Inputs) == 0 {
		return ErrNoInputs
	}
	if len(t.Outputs) == 0 {
		return ErrNoOutputs
	}
	if len(t.Inputs) > codec.MaxTxEntries {
		return fmt.Errorf("%w: %d inputs, max %d", ErrTooManyInputs, len(t.Inputs), codec.MaxTxEntries)
	}
	if len(t.Outputs) > codec.MaxTxEntries {
		return fmt.Errorf("%w: %d outputs, max %d", ErrTooManyOutputs, len(t.Outputs), codec.MaxTxEntries)
	}
	if len(t.Encode()) > codec.MaxTxBytes {
		return fmt.Errorf("%w: %d bytes, max %d", ErrTxTooLarge, len(t.Encode()), codec.MaxTxBytes)
	}

	isCoinbase := t.IsCoinbase()

	seen := make(map[types.Outpoint]bool, len(t.Inputs))
	for i, in := range t.Inputs {
		if in.PrevOut.IsCoinbase() && !isCoinbase {
			return fmt.Errorf("input %d: %w", i, ErrNonCoinbaseZeroOut)
		}
		if seen[in.PrevOut] {
			return fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
		}
		seen[in.PrevOut] = true
		if len(in.UnlockScript) > codec.MaxScriptBytes {
			return fmt.Errorf("input %d: %w", i, ErrScriptTooLarge)
		}
		if isCoinbase {
			n := len(in.UnlockScript)
			if n < MinCoinbaseScriptBytes || n > MaxCoinbaseScriptBytes {
				return fmt.Errorf("input %d: %w", i, ErrCoinbaseScriptSize)
			}
		}
	}

	var totalOutput uint64
	for i, out := range t.Outputs {
		if out.Value == 0 {
			return fmt.Errorf("output %d: %w", i, ErrZeroValueOutput)
		}
		if len(out.Script) > codec.MaxScriptBytes {
			return fmt.Errorf("output %d: %w", i, ErrScriptTooLarge)
		}
		if totalOutput > ^uint64(0)-out.Value {
			return fmt.Errorf("output %d: %w", i, ErrOutputOverflow)
		}
		totalOutput += out.Value
	}

	return nil
}
