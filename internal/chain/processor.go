package chain

import (
	"errors"
	"fmt"

	"github.com/INT-devs/intcoin/internal/consensus"
	"github.com/INT-devs/intcoin/internal/utxo"
	"github.com/INT-devs/intcoin/pkg/block"
	"github.com/INT-devs/intcoin/pkg/types"
)

// Chain-level errors, named after the ChainError taxonomy: a header
// whose parent isn't known yet, a header descending from a block that
// already failed validation, and a block already indexed.
var (
	ErrOrphanHeader = errors.New("parent block not found")
	ErrParentFailed = errors.New("parent block failed validation")
	ErrBlockKnown   = errors.New("block already indexed")
)

// ReceiveBlock runs Phase A (context-free) validation against a
// candidate block and indexes it regardless of which branch it extends.
// Phase B (the checks needing a UTXO view: script execution, fees,
// coinbase maturity) is deliberately deferred to connect time
// (connectBlock, called from activateBestChain): a block received here
// may sit on a side branch whose UTXO state differs from the live main
// chain, so validating it against c.utxos now would check it against
// the wrong set of outpoints. Returns the block's height once indexed.
func (c *Chain) ReceiveBlock(blk *block.Block, now uint32) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	parentEntry, err := c.blocks.GetIndexEntry(blk.Header.PrevHash)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrOrphanHeader, blk.Header.PrevHash)
	}
	if parentEntry.Status == StatusFailed {
		return 0, fmt.Errorf("%w: %s", ErrParentFailed, parentEntry.Hash)
	}

	height := parentEntry.Height + 1

	epochKey, err := consensus.EpochKey(height, func(h uint64) (*block.Header, error) {
		return c.ancestorHeader(parentEntry, h)
	})
	if err != nil {
		return 0, fmt.Errorf("epoch key: %w", err)
	}
	hash := blk.Header.Hash(epochKey)

	if known, _ := c.blocks.HasIndexEntry(hash); known {
		return 0, fmt.Errorf("%w: %s", ErrBlockKnown, hash)
	}

	if err := c.validator.ValidatePhaseA(blk, epochKey); err != nil {
		entry := &BlockIndexEntry{Hash: hash, Height: height, Header: blk.Header, Status: StatusFailed, ParentHash: parentEntry.Hash}
		_ = c.blocks.PutIndexEntry(entry)
		return 0, fmt.Errorf("phase a: %w", err)
	}

	if err := c.blocks.PutBlock(hash, blk); err != nil {
		return 0, fmt.Errorf("store block: %w", err)
	}

	entry := &BlockIndexEntry{
		Hash:       hash,
		Height:     height,
		Header:     blk.Header,
		Status:     StatusValidated,
		ParentHash: parentEntry.Hash,
	}
	entry.setWork(accumulateWork(parentEntry.Work(), blk.Header.Target))
	if err := c.blocks.PutIndexEntry(entry); err != nil {
		return 0, fmt.Errorf("store index entry: %w", err)
	}

	if err := c.activateBestChain(hash, now); err != nil {
		return 0, fmt.Errorf("activate best chain: %w", err)
	}

	return height, nil
}

// mintDelta returns the amount of new supply a block actually creates:
// its coinbase output total minus fees paid to it. If the miner claims
// less than the fees it was owed, the shortfall is burned rather than
// treated as negative mint.
func mintDelta(coinbaseTotal, fees uint64) uint64 {
	if coinbaseTotal <= fees {
		return 0
	}
	return coinbaseTotal - fees
}

// ancestorHeader returns the header at the given height on from's
// branch, walking parent pointers backward from entry from. Works
// for both main-chain and side-branch ancestors, since it never
// consults the height index.
func (c *Chain) ancestorHeader(from *BlockIndexEntry, height uint64) (*block.Header, error) {
	if height > from.Height {
		return nil, fmt.Errorf("ancestor height %d exceeds branch tip height %d", height, from.Height)
	}
	cur := from
	for cur.Height > height {
		parent, err := c.blocks.GetIndexEntry(cur.ParentHash)
		if err != nil {
			return nil, fmt.Errorf("ancestor walk: %w", err)
		}
		cur = parent
	}
	return cur.Header, nil
}

// timeWindow collects up to window block times ending at entry
// (inclusive), oldest first, walking parent pointers. Used for both
// the retarget window and the median-time-past window.
func (c *Chain) timeWindow(entry *BlockIndexEntry, window int) []uint32 {
	times := make([]uint32, 0, window)
	cur := entry
	for {
		times = append(times, cur.Header.Time)
		if len(times) >= window || cur.Height == 0 {
			break
		}
		parent, err := c.blocks.GetIndexEntry(cur.ParentHash)
		if err != nil {
			break
		}
		cur = parent
	}
	for i, j := 0, len(times)-1; i < j; i, j = i+1, j-1 {
		times[i], times[j] = times[j], times[i]
	}
	return times
}

// buildConnectBatch derives the UTXO-set changes a block makes: every
// non-coinbase input spends an existing outpoint, every output (coinbase
// included) creates a new one recorded at the block's height.
func buildConnectBatch(blk *block.Block, height uint64) utxo.ConnectBatch {
	var batch utxo.ConnectBatch
	for txIdx, t := range blk.Transactions {
		isCoinbase := txIdx == 0
		if !isCoinbase {
			for _, in := range t.Inputs {
				batch.Spends = append(batch.Spends, in.PrevOut)
			}
		}
		txHash := t.Hash()
		for i, out := range t.Outputs {
			batch.Creates = append(batch.Creates, &utxo.UTXO{
				Outpoint:   types.Outpoint{TxID: txHash, Index: uint32(i)},
				Value:      out.Value,
				LockScript: out.Script,
				Height:     height,
				Coinbase:   isCoinbase,
			})
		}
	}
	return batch
}
