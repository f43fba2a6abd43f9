// Package utxo manages the unspent-transaction-output set.
package utxo

import "github.com/INT-devs/intcoin/pkg/types"

// UTXO represents a single unspent output.
type UTXO struct {
	Outpoint   types.Outpoint `json:"outpoint"`
	Value      uint64         `json:"value"`
	LockScript types.Script   `json:"lock_script"`
	// Height is the height of the block that created this output.
	// Used by the coinbase maturity rule.
	Height   uint64 `json:"height"`
	Coinbase bool   `json:"coinbase"`
}

// Set is the narrow point-lookup interface the store and its test
// fakes both satisfy.
type Set interface {
	Get(outpoint types.Outpoint) (*UTXO, error)
	Put(utxo *UTXO) error
	Delete(outpoint types.Outpoint) error
	Has(outpoint types.Outpoint) (bool, error)
}
