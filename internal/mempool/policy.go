package mempool

import (
	"fmt"

	"github.com/INT-devs/intcoin/pkg/codec"
	"github.com/INT-devs/intcoin/pkg/tx"
)

// DefaultMaxTxSize is the maximum transaction size in bytes (canonical encoding).
const DefaultMaxTxSize = 100_000

// Policy defines transaction acceptance rules that are stricter than
// consensus but may vary per node, enforced ahead of the full UTXO-aware
// validation so a node never wastes script execution on a tx it would
// reject anyway.
type Policy struct {
	MaxTxSize int // Maximum transaction size in bytes.
}

// DefaultPolicy returns a policy with sensible defaults.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxTxSize: DefaultMaxTxSize,
	}
}

// Check validates a transaction against policy rules. It also re-enforces
// the consensus size caps as defense in depth, rejecting early rather
// than discovering the same fault deeper in Validate.
func (p *Policy) Check(transaction *tx.Transaction) error {
	if len(transaction.Inputs) > codec.MaxTxEntries {
		return fmt.Errorf("too many inputs: %d, max %d", len(transaction.Inputs), codec.MaxTxEntries)
	}
	if len(transaction.Outputs) > codec.MaxTxEntries {
		return fmt.Errorf("too many outputs: %d, max %d", len(transaction.Outputs), codec.MaxTxEntries)
	}
	for i, out := range transaction.Outputs {
		if len(out.Script) > codec.MaxScriptBytes {
			return fmt.Errorf("output %d script too large: %d bytes, max %d", i, len(out.Script), codec.MaxScriptBytes)
		}
	}
	size := len(transaction.Encode())
	if p.MaxTxSize > 0 && size > p.MaxTxSize {
		return fmt.Errorf("transaction too large: %d bytes, max %d", size, p.MaxTxSize)
	}
	return nil
}
