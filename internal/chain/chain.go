// Package chain implements the blockchain state machine: block
// validation, UTXO-set connection, and best-chain selection under a
// proof-of-work fork-choice rule.
package chain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/INT-devs/intcoin/internal/consensus"
	"github.com/INT-devs/intcoin/internal/storage"
	"github.com/INT-devs/intcoin/internal/utxo"
	"github.com/INT-devs/intcoin/pkg/block"
	"github.com/INT-devs/intcoin/pkg/types"
)

// Chain owns the block store, UTXO set, and validator for a single
// instance, and serializes all state-mutating operations behind mu.
// Reads of the cached tip (Height, TipHash, Supply) take the read lock;
// ReceiveBlock and InitFromGenesis take the write lock.
type Chain struct {
	mu sync.RWMutex

	blocks    *BlockStore
	utxos     *utxo.Store
	validator *consensus.Validator

	genesisHash types.Hash
	state       State
}

// New builds a chain over db, recovering its tip and genesis hash from
// storage. If a reorg checkpoint was left behind by a crash, the UTXO
// set is rebuilt from scratch by replaying the main chain.
func New(db storage.DB, targetBlockTime uint32) (*Chain, error) {
	blocks := NewBlockStore(db)
	utxos := utxo.NewStore(db)
	validator := consensus.NewValidator(consensus.NewDifficultyEngine(targetBlockTime))

	c := &Chain{
		blocks:    blocks,
		utxos:     utxos,
		validator: validator,
	}

	if tip, err := blocks.GetTip(); err == nil {
		c.state.TipHash = tip.Hash
		c.state.Height = tip.Height
		c.state.Supply = tip.Supply
		if entry, err := blocks.GetIndexEntry(tip.Hash); err == nil {
			c.state.TotalWork = entry.TotalWork
			c.state.TipTime = entry.Header.Time
		}
	} else if !errors.Is(err, ErrBlockNotFound) {
		return nil, fmt.Errorf("recover tip: %w", err)
	}

	if gen, err := blocks.GetBlockByHeight(0); err == nil {
		c.genesisHash = gen.Header.Hash(types.Hash{})
	}

	if forkHeight, found := blocks.GetReorgCheckpoint(); found {
		if err := c.rebuildFromCheckpoint(forkHeight); err != nil {
			return nil, fmt.Errorf("recover from interrupted reorg: %w", err)
		}
	}

	return c, nil
}

// InitFromGenesis bootstraps a fresh chain from params. Returns an
// error if the chain has already been initialized.
func (c *Chain) InitFromGenesis(params GenesisParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsGenesis() {
		return fmt.Errorf("chain already initialized at height %d", c.state.Height)
	}

	blk, err := CreateGenesisBlock(params)
	if err != nil {
		return fmt.Errorf("create genesis: %w", err)
	}
	hash := blk.Header.Hash(types.Hash{})

	var supply uint64
	for _, v := range params.Alloc {
		supply += v
	}

	var batch utxo.ConnectBatch
	coinbase := blk.Transactions[0]
	txHash := coinbase.Hash()
	for i, out := range coinbase.Outputs {
		batch.Creates = append(batch.Creates, &utxo.UTXO{
			Outpoint:   types.Outpoint{TxID: txHash, Index: uint32(i)},
			Value:      out.Value,
			LockScript: out.Script,
			Height:     0,
			Coinbase:   true,
		})
	}

	entry := &BlockIndexEntry{Hash: hash, Height: 0, Header: blk.Header, Status: StatusInMainChain, ParentHash: types.Hash{}}
	entry.setWork(accumulateWork(new(uint256.Int), blk.Header.Target))

	undo := &UndoRecord{BlockReward: supply}
	if err := c.blocks.CommitBlock(blk, entry, undo, batch, supply); err != nil {
		return fmt.Errorf("commit genesis: %w", err)
	}

	c.genesisHash = hash
	c.state = State{Height: 0, TipHash: hash, Supply: supply, TipTime: blk.Header.Time, TotalWork: entry.TotalWork}
	return nil
}

// State returns a copy of the chain's current tip state.
func (c *Chain) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Height returns the current main-chain height.
func (c *Chain) Height() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Height
}

// TipHash returns the hash of the current main-chain tip.
func (c *Chain) TipHash() types.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.TipHash
}

// Supply returns the total coins in circulation as of the tip.
func (c *Chain) Supply() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Supply
}

// GenesisHash returns the hash of the chain's genesis block.
func (c *Chain) GenesisHash() types.Hash {
	return c.genesisHash
}

// GetBlock retrieves a block by hash.
func (c *Chain) GetBlock(hash types.Hash) (*block.Block, error) {
	return c.blocks.GetBlock(hash)
}

// GetBlockByHeight retrieves the main-chain block at height.
func (c *Chain) GetBlockByHeight(height uint64) (*block.Block, error) {
	return c.blocks.GetBlockByHeight(height)
}

// GetIndexEntry retrieves a block's index entry by hash, giving callers
// visibility into a block's validation status without loading its body.
func (c *Chain) GetIndexEntry(hash types.Hash) (*BlockIndexEntry, error) {
	return c.blocks.GetIndexEntry(hash)
}

// UTXOs exposes the chain's UTXO store for template building and
// wallet-facing lookups.
func (c *Chain) UTXOs() *utxo.Store {
	return c.utxos
}

// rebuildFromCheckpoint clears the UTXO set and replays every main-chain
// block from genesis through the current tip, used to recover from a
// crash that interrupted a reorg partway through.
func (c *Chain) rebuildFromCheckpoint(_ uint64) error {
	if err := c.utxos.ClearAll(); err != nil {
		return fmt.Errorf("clear utxo set: %w", err)
	}

	var supply uint64
	work := new(uint256.Int)
	for h := uint64(0); h <= c.state.Height; h++ {
		blk, err := c.blocks.GetBlockByHeight(h)
		if err != nil {
			return fmt.Errorf("load block at height %d: %w", h, err)
		}
		batch := buildConnectBatch(blk, h)
		if _, err := c.utxos.Apply(batch); err != nil {
			return fmt.Errorf("replay block at height %d: %w", h, err)
		}
		if hash, err := c.blocks.HashAtHeight(h); err == nil {
			if undo, err := c.blocks.GetUndo(hash); err == nil {
				supply += undo.BlockReward
			}
		}
		work = accumulateWork(work, blk.Header.Target)
	}

	c.state.Supply = supply
	c.state.TotalWork = work.Bytes()
	if err := c.blocks.DeleteReorgCheckpoint(); err != nil {
		return fmt.Errorf("delete reorg checkpoint: %w", err)
	}
	return nil
}
