package chain

import (
	"github.com/holiman/uint256"

	"github.com/INT-devs/intcoin/pkg/block"
	"github.com/INT-devs/intcoin/pkg/types"
)

// Status is a block-index entry's position in the validation/activation
// state machine (spec.md §4.8): Header-Known -> Body-Known -> Validated,
// then either In-Main-Chain (activated) or Failed (terminal).
type Status int

const (
	StatusHeaderKnown Status = iota
	StatusBodyKnown
	StatusValidated
	StatusInMainChain
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusHeaderKnown:
		return "header-known"
	case StatusBodyKnown:
		return "body-known"
	case StatusValidated:
		return "validated"
	case StatusInMainChain:
		return "in-main-chain"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// BlockIndexEntry tracks everything ChainState needs about a known block
// without requiring its body: the header, where it sits in the candidate
// tree, its validation status, and its cumulative work (the sum of
// block.Work(target) along the chain from genesis through this block).
type BlockIndexEntry struct {
	Hash       types.Hash    `json:"hash"`
	Height     uint64        `json:"height"`
	Header     *block.Header `json:"header"`
	Status     Status        `json:"status"`
	TotalWork  []byte        `json:"total_work"` // big-endian uint256 bytes
	ParentHash types.Hash    `json:"parent_hash"`
}

// Work decodes the entry's accumulated work as a uint256.
func (e *BlockIndexEntry) Work() *uint256.Int {
	return new(uint256.Int).SetBytes(e.TotalWork)
}

// setWork stores w as the entry's accumulated work.
func (e *BlockIndexEntry) setWork(w *uint256.Int) {
	e.TotalWork = w.Bytes()
}

// accumulateWork computes a child's total work given its parent's accumulated
// work and its own header's compact target.
func accumulateWork(parentWork *uint256.Int, target uint32) *uint256.Int {
	w := new(uint256.Int).Set(parentWork)
	return w.Add(w, block.Work(target))
}
