package chain

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/INT-devs/intcoin/internal/consensus"
	"github.com/INT-devs/intcoin/internal/emission"
	"github.com/INT-devs/intcoin/internal/utxo"
	"github.com/INT-devs/intcoin/pkg/types"
)

// ErrReorgTooDeep is returned when activating a branch would disconnect
// more than MaxReorgDepth blocks from the current tip.
var ErrReorgTooDeep = errors.New("reorg too deep")

// MaxReorgDepth bounds how far a reorg may reach back: a reorg may
// disconnect at most this many blocks from the tip; a fork point any
// deeper is rejected with ErrReorgTooDeep.
const MaxReorgDepth = 100

// activateBestChain compares candidateHash's accumulated work against
// the current tip and, if it wins, switches the main chain to it:
// disconnecting blocks back to the fork point, then connecting the
// candidate's branch forward. A no-op if the candidate doesn't have
// more work than the current tip (it stays indexed as Validated, a
// side branch, unless/until a later block extends it past the tip).
//
// Phase B validation for each branch block happens inside connectBlock,
// against the live UTXO set at the moment it is actually connected —
// which by then correctly reflects that branch's ancestry, whether the
// candidate extends the tip directly or arrives after a reorg's
// disconnect step. If a block partway up the candidate branch fails
// Phase B, it and the rest of the branch above it are marked Failed and
// the blocks disconnected to make room for it are reconnected, so the
// main chain ends up back exactly where it started rather than
// truncated at the fork height.
func (c *Chain) activateBestChain(candidateHash types.Hash, now uint32) error {
	candidate, err := c.blocks.GetIndexEntry(candidateHash)
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}

	if c.state.IsGenesis() {
		return nil
	}
	if candidateHash == c.state.TipHash {
		return nil
	}

	tipWork := new(uint256.Int).SetBytes(c.state.TotalWork)
	if candidate.Work().Cmp(tipWork) <= 0 {
		return nil // Candidate doesn't beat the current tip; leave as a side branch.
	}

	branch, forkHeight, err := c.collectBranch(candidate)
	if err != nil {
		return fmt.Errorf("collect branch: %w", err)
	}

	if c.state.Height-forkHeight > MaxReorgDepth {
		return fmt.Errorf("%w: would disconnect %d blocks, max %d", ErrReorgTooDeep, c.state.Height-forkHeight, MaxReorgDepth)
	}

	// Snapshot the current main chain above the fork point before
	// touching anything, so a failed connect further down can restore it.
	oldBranch, err := c.collectMainChainAbove(forkHeight)
	if err != nil {
		return fmt.Errorf("collect current branch: %w", err)
	}

	if err := c.blocks.PutReorgCheckpoint(forkHeight); err != nil {
		return fmt.Errorf("write reorg checkpoint: %w", err)
	}

	for h := c.state.Height; h > forkHeight; h-- {
		if err := c.disconnectTip(); err != nil {
			return fmt.Errorf("disconnect at height %d: %w", h, err)
		}
	}

	for i, entry := range branch {
		if err := c.connectBlock(entry, now); err != nil {
			connectErr := fmt.Errorf("connect block at height %d: %w", entry.Height, err)
			if failErr := c.failBranch(branch[i:]); failErr != nil {
				return fmt.Errorf("%v; mark branch failed: %w", connectErr, failErr)
			}
			if restoreErr := c.restoreBranch(oldBranch, now); restoreErr != nil {
				return fmt.Errorf("%v; restore original chain: %w", connectErr, restoreErr)
			}
			if delErr := c.blocks.DeleteReorgCheckpoint(); delErr != nil {
				return fmt.Errorf("%v; clear reorg checkpoint: %w", connectErr, delErr)
			}
			return connectErr
		}
	}

	if err := c.blocks.DeleteReorgCheckpoint(); err != nil {
		return fmt.Errorf("delete reorg checkpoint: %w", err)
	}
	return nil
}

// collectMainChainAbove returns the current main chain's block-index
// entries above forkHeight, in ascending height order. Called before any
// disconnecting happens, so it captures exactly what needs restoring if
// the replacing branch turns out to be invalid partway through.
func (c *Chain) collectMainChainAbove(forkHeight uint64) ([]*BlockIndexEntry, error) {
	entries := make([]*BlockIndexEntry, 0, c.state.Height-forkHeight)
	for h := forkHeight + 1; h <= c.state.Height; h++ {
		hash, err := c.blocks.HashAtHeight(h)
		if err != nil {
			return nil, fmt.Errorf("hash at height %d: %w", h, err)
		}
		entry, err := c.blocks.GetIndexEntry(hash)
		if err != nil {
			return nil, fmt.Errorf("index entry at height %d: %w", h, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// failBranch marks every entry in a rejected branch Failed, starting
// from the block whose Phase B check actually failed through the
// candidate tip above it, so no future ReceiveBlock can build on it
// (ErrParentFailed).
func (c *Chain) failBranch(entries []*BlockIndexEntry) error {
	for _, entry := range entries {
		entry.Status = StatusFailed
		if err := c.blocks.PutIndexEntry(entry); err != nil {
			return fmt.Errorf("mark %s failed: %w", entry.Hash, err)
		}
	}
	return nil
}

// restoreBranch reconnects the chain's previous main-chain blocks after
// a replacement branch failed partway through connecting. oldBranch is
// in ascending height order, picking up exactly where disconnectTip left
// the chain (at the fork point). These blocks were already valid once;
// reconnecting them through the normal connectBlock path is expected to
// succeed again since it is the same data against the state it was
// originally validated against.
func (c *Chain) restoreBranch(oldBranch []*BlockIndexEntry, now uint32) error {
	for _, entry := range oldBranch {
		if err := c.connectBlock(entry, now); err != nil {
			return fmt.Errorf("reconnect at height %d: %w", entry.Height, err)
		}
	}
	return nil
}

// collectBranch walks parent pointers from candidate back to the
// common ancestor with the current main chain, returning the branch in
// ascending height order (fork+1 ... candidate) and the fork height.
func (c *Chain) collectBranch(candidate *BlockIndexEntry) ([]*BlockIndexEntry, uint64, error) {
	var branch []*BlockIndexEntry
	cur := candidate
	for {
		branch = append(branch, cur)
		if cur.Height == 0 {
			return nil, 0, fmt.Errorf("branch reaches a distinct genesis block")
		}
		mainHash, err := c.blocks.HashAtHeight(cur.Height - 1)
		if err == nil && mainHash == cur.ParentHash {
			break // Parent is on the main chain: fork point found.
		}
		parent, err := c.blocks.GetIndexEntry(cur.ParentHash)
		if err != nil {
			return nil, 0, fmt.Errorf("walk to parent: %w", err)
		}
		cur = parent
	}
	forkHeight := cur.Height - 1

	for i, j := 0, len(branch)-1; i < j; i, j = i+1, j-1 {
		branch[i], branch[j] = branch[j], branch[i]
	}
	return branch, forkHeight, nil
}

// disconnectTip reverts the current tip block, moving the chain back to
// its parent. Reconstructs the UTXO changes to revert directly from the
// stored block body plus its chain-level undo record.
func (c *Chain) disconnectTip() error {
	tipHash := c.state.TipHash
	entry, err := c.blocks.GetIndexEntry(tipHash)
	if err != nil {
		return fmt.Errorf("load tip index entry: %w", err)
	}
	blk, err := c.blocks.GetBlock(tipHash)
	if err != nil {
		return fmt.Errorf("load tip block: %w", err)
	}
	chainUndo, err := c.blocks.GetUndo(tipHash)
	if err != nil {
		return fmt.Errorf("load undo: %w", err)
	}

	batch := buildConnectBatch(blk, entry.Height)
	utxoUndo := utxo.UndoRecord{Spent: chainUndo.Spent}

	if chainUndo.BlockReward > c.state.Supply {
		return fmt.Errorf("supply underflow disconnecting %s: reward %d > supply %d", tipHash, chainUndo.BlockReward, c.state.Supply)
	}
	newTip := Tip{Hash: entry.ParentHash, Height: entry.Height - 1, Supply: c.state.Supply - chainUndo.BlockReward}

	if err := c.blocks.CommitDisconnect(tipHash, newTip, batch, utxoUndo); err != nil {
		return fmt.Errorf("commit disconnect: %w", err)
	}

	parentEntry, err := c.blocks.GetIndexEntry(entry.ParentHash)
	if err != nil {
		return fmt.Errorf("load new tip index entry: %w", err)
	}

	c.state.TipHash = newTip.Hash
	c.state.Height = newTip.Height
	c.state.Supply = newTip.Supply
	c.state.TipTime = parentEntry.Header.Time
	c.state.TotalWork = parentEntry.TotalWork
	return nil
}

// connectBlock runs Phase B against the live UTXO set — which at this
// point reflects exactly the state of the branch entry is being
// connected to, whether that is a direct tip extension or a step in a
// reorg's forward-connect pass — then connects entry onto the current
// tip, which must be its parent. Returns the Phase B error wrapped with a
// "phase b" prefix on failure; the caller (activateBestChain) is responsible for marking the
// branch Failed and restoring the prior chain.
func (c *Chain) connectBlock(entry *BlockIndexEntry, now uint32) error {
	blk, err := c.blocks.GetBlock(entry.Hash)
	if err != nil {
		return fmt.Errorf("load block: %w", err)
	}
	parentEntry, err := c.blocks.GetIndexEntry(entry.ParentHash)
	if err != nil {
		return fmt.Errorf("load parent index entry: %w", err)
	}

	retarget := c.timeWindow(parentEntry, consensus.RetargetWindow+1)
	median := c.timeWindow(parentEntry, consensus.MedianTimeWindow)

	snap, err := c.utxos.Snapshot()
	if err != nil {
		return fmt.Errorf("utxo snapshot: %w", err)
	}
	defer snap.Close()

	cctx := consensus.Context{
		Parent:          consensus.ParentInfo{Height: parentEntry.Height, Time: parentEntry.Header.Time, Target: parentEntry.Header.Target},
		RetargetTimes:   retarget,
		MedianPastTimes: median,
		Now:             now,
		Subsidy:         emission.Subsidy(entry.Height),
		Snapshot:        snap,
	}

	fees, err := c.validator.ValidatePhaseB(blk, cctx)
	if err != nil {
		return fmt.Errorf("phase b: %w", err)
	}

	coinbaseTotal, err := blk.Transactions[0].TotalOutputValue()
	if err != nil {
		return fmt.Errorf("coinbase total: %w", err)
	}

	// Capture the pre-spend UTXOs now, while they still exist, so the
	// undo record can restore them on a future disconnect.
	batch := buildConnectBatch(blk, entry.Height)
	spent := make([]*utxo.UTXO, 0, len(batch.Spends))
	for _, op := range batch.Spends {
		u, err := c.utxos.Get(op)
		if err != nil {
			return fmt.Errorf("load spent utxo %s: %w", op, err)
		}
		spent = append(spent, u)
	}
	chainUndo := &UndoRecord{Spent: spent, BlockReward: mintDelta(coinbaseTotal, fees)}

	activeEntry := *entry
	activeEntry.Status = StatusInMainChain
	newSupply := c.state.Supply + chainUndo.BlockReward

	if err := c.blocks.CommitBlock(blk, &activeEntry, chainUndo, batch, newSupply); err != nil {
		return fmt.Errorf("commit block: %w", err)
	}

	c.state.TipHash = activeEntry.Hash
	c.state.Height = activeEntry.Height
	c.state.Supply = newSupply
	c.state.TipTime = blk.Header.Time
	c.state.TotalWork = activeEntry.TotalWork
	return nil
}
