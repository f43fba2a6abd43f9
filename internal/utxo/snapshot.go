package utxo

import (
	"fmt"

	"github.com/INT-devs/intcoin/internal/storage"
	"github.com/INT-devs/intcoin/pkg/types"
)

// Snapshot is a read-only, isolated view of the UTXO set, usable by a
// validator running concurrently with the chain writer. Must be
// closed once done to release the pinned backing version.
//
// Its GetUTXO/HasUTXO methods match internal/consensus.UTXOSnapshot's
// shape by construction (value, lock script, origin height,
// coinbase-ness), so a Snapshot can be handed straight to
// Validator.ValidatePhaseB without an adapter.
type Snapshot struct {
	snap storage.Snapshot
}

// Snapshot opens an isolated view of the store. Callers must Close it.
func (s *Store) Snapshot() (*Snapshot, error) {
	snapshotter, ok := s.db.(storage.Snapshotter)
	if !ok {
		return nil, fmt.Errorf("utxo snapshot: backing store does not support isolated snapshots")
	}
	return &Snapshot{snap: snapshotter.NewSnapshot()}, nil
}

// Close releases the snapshot's pinned backing version.
func (sn *Snapshot) Close() error {
	return sn.snap.Close()
}

// GetUTXO returns the value, lock script, origin height, and
// coinbase-ness of the output at op.
func (sn *Snapshot) GetUTXO(op types.Outpoint) (value uint64, lockScript types.Script, originHeight uint64, fromCoinbase bool, err error) {
	data, err := sn.snap.Get(utxoKey(op))
	if err != nil {
		return 0, nil, 0, false, fmt.Errorf("utxo snapshot get: %w", err)
	}
	u, err := decodeUTXO(data)
	if err != nil {
		return 0, nil, 0, false, err
	}
	return u.Value, u.LockScript, u.Height, u.Coinbase, nil
}

// HasUTXO reports whether op is unspent in this snapshot.
func (sn *Snapshot) HasUTXO(op types.Outpoint) bool {
	ok, err := sn.snap.Has(utxoKey(op))
	return err == nil && ok
}
