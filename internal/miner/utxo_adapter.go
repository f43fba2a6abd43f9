package miner

import (
	"github.com/INT-devs/intcoin/internal/log"
	"github.com/INT-devs/intcoin/internal/utxo"
	"github.com/INT-devs/intcoin/pkg/types"
)

// UTXOAdapter bridges utxo.Set to tx.UTXOProvider so mempool validation
// and block template assembly see the same live UTXO view the chain
// itself connects blocks against.
type UTXOAdapter struct {
	set utxo.Set
}

// NewUTXOAdapter creates a UTXOProvider backed by set.
func NewUTXOAdapter(set utxo.Set) *UTXOAdapter {
	return &UTXOAdapter{set: set}
}

// GetUTXO returns the value and locking script for outpoint.
func (a *UTXOAdapter) GetUTXO(outpoint types.Outpoint) (uint64, types.Script, error) {
	u, err := a.set.Get(outpoint)
	if err != nil {
		return 0, nil, err
	}
	return u.Value, u.LockScript, nil
}

// HasUTXO returns whether outpoint is currently unspent.
func (a *UTXOAdapter) HasUTXO(outpoint types.Outpoint) bool {
	has, err := a.set.Has(outpoint)
	if err != nil {
		log.Storage.Warn().Err(err).Str("outpoint", outpoint.String()).Msg("utxo lookup failed")
		return false
	}
	return has
}
