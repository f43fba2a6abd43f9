package chain

import "github.com/INT-devs/intcoin/pkg/types"

// State is the chain's in-memory view of its current tip, kept in sync
// with the persisted Tip record in BlockStore.
type State struct {
	Height       uint64
	TipHash      types.Hash
	Supply       uint64 // Total coins in circulation (genesis alloc + cumulative subsidy).
	TipTime      uint32 // Time field of the current tip block's header.
	TotalWork    []byte // Cumulative PoW work through the tip, big-endian uint256 bytes.
}

// IsGenesis reports whether no blocks have been processed yet.
func (s *State) IsGenesis() bool {
	return s.Height == 0 && s.TipHash.IsZero()
}
