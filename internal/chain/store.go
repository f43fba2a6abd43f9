package chain

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/INT-devs/intcoin/internal/storage"
	"github.com/INT-devs/intcoin/internal/utxo"
	"github.com/INT-devs/intcoin/pkg/block"
	"github.com/INT-devs/intcoin/pkg/types"
)

// Key prefixes and well-known keys for the block store. Chosen disjoint
// from internal/utxo's "u/"/"a/" prefixes so both stores can share one
// underlying database and one write-group batch.
var (
	prefixBlock  = []byte("b/") // b/<hash> -> JSON block
	prefixIndex  = []byte("i/") // i/<hash> -> JSON BlockIndexEntry
	prefixHeight = []byte("h/") // h/<height be64> -> hash (main chain only)
	prefixUndo   = []byte("d/") // d/<hash> -> JSON UndoRecord

	keyTipHash         = []byte("s/tip")
	keyTipHeight       = []byte("s/height")
	keySupply          = []byte("s/supply")
	keyReorgCheckpoint = []byte("s/reorg")
)

// ErrBlockNotFound is returned when a requested block hash or height has
// no corresponding entry.
var ErrBlockNotFound = errors.New("block not found")

// UndoRecord captures everything needed to revert a connected block: the
// UTXO-store undo data plus the block reward it minted, so a disconnect
// can also roll back Chain.Supply accurately.
type UndoRecord struct {
	Spent       []*utxo.UTXO `json:"spent"`
	BlockReward uint64       `json:"block_reward"`
}

func heightKey(height uint64) []byte {
	k := make([]byte, len(prefixHeight)+8)
	copy(k, prefixHeight)
	binary.BigEndian.PutUint64(k[len(prefixHeight):], height)
	return k
}

func blockKey(hash types.Hash) []byte {
	k := make([]byte, len(prefixBlock)+types.HashSize)
	copy(k, prefixBlock)
	copy(k[len(prefixBlock):], hash[:])
	return k
}

func indexKey(hash types.Hash) []byte {
	k := make([]byte, len(prefixIndex)+types.HashSize)
	copy(k, prefixIndex)
	copy(k[len(prefixIndex):], hash[:])
	return k
}

func undoKey(hash types.Hash) []byte {
	k := make([]byte, len(prefixUndo)+types.HashSize)
	copy(k, prefixUndo)
	copy(k[len(prefixUndo):], hash[:])
	return k
}

// BlockStore persists block bodies, the block index, the height index
// for main-chain blocks, per-block undo records, and the tip pointer.
// It shares its underlying storage.DB with internal/utxo.Store so that
// CommitBlock/CommitDisconnect can fold both stores' writes into one
// atomic batch.
type BlockStore struct {
	db storage.DB
}

// NewBlockStore builds a block store over db.
func NewBlockStore(db storage.DB) *BlockStore {
	return &BlockStore{db: db}
}

// PutBlock stores a block body keyed by hash. Callers already know the
// hash from validation (the store has no epoch key to recompute it).
func (s *BlockStore) PutBlock(hash types.Hash, blk *block.Block) error {
	data, err := json.Marshal(blk)
	if err != nil {
		return fmt.Errorf("marshal block: %w", err)
	}
	return s.db.Put(blockKey(hash), data)
}

// HasBlock reports whether a block body is stored for hash. This does
// not imply the header has been validated or even has an index entry —
// see HasIndexEntry for that.
func (s *BlockStore) HasBlock(hash types.Hash) (bool, error) {
	return s.db.Has(blockKey(hash))
}

// GetBlock loads a block body by hash.
func (s *BlockStore) GetBlock(hash types.Hash) (*block.Block, error) {
	data, err := s.db.Get(blockKey(hash))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, hash)
	}
	var blk block.Block
	if err := json.Unmarshal(data, &blk); err != nil {
		return nil, fmt.Errorf("unmarshal block: %w", err)
	}
	return &blk, nil
}

// GetBlockByHeight loads the main-chain block at the given height.
func (s *BlockStore) GetBlockByHeight(height uint64) (*block.Block, error) {
	hash, err := s.HashAtHeight(height)
	if err != nil {
		return nil, err
	}
	return s.GetBlock(hash)
}

// HashAtHeight returns the main-chain block hash at the given height.
func (s *BlockStore) HashAtHeight(height uint64) (types.Hash, error) {
	data, err := s.db.Get(heightKey(height))
	if err != nil {
		return types.Hash{}, fmt.Errorf("%w: height %d", ErrBlockNotFound, height)
	}
	var h types.Hash
	copy(h[:], data)
	return h, nil
}

// PutIndexEntry stores (or overwrites) a block's index entry.
func (s *BlockStore) PutIndexEntry(e *BlockIndexEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal index entry: %w", err)
	}
	return s.db.Put(indexKey(e.Hash), data)
}

// GetIndexEntry loads a block's index entry.
func (s *BlockStore) GetIndexEntry(hash types.Hash) (*BlockIndexEntry, error) {
	data, err := s.db.Get(indexKey(hash))
	if err != nil {
		return nil, fmt.Errorf("index entry %s: %w", hash, ErrBlockNotFound)
	}
	var e BlockIndexEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal index entry: %w", err)
	}
	return &e, nil
}

// HasIndexEntry reports whether a block index entry exists for hash.
func (s *BlockStore) HasIndexEntry(hash types.Hash) (bool, error) {
	return s.db.Has(indexKey(hash))
}

// PutUndo stores the undo record for a connected block.
func (s *BlockStore) PutUndo(hash types.Hash, undo *UndoRecord) error {
	data, err := json.Marshal(undo)
	if err != nil {
		return fmt.Errorf("marshal undo: %w", err)
	}
	return s.db.Put(undoKey(hash), data)
}

// GetUndo loads the undo record for a block.
func (s *BlockStore) GetUndo(hash types.Hash) (*UndoRecord, error) {
	data, err := s.db.Get(undoKey(hash))
	if err != nil {
		return nil, fmt.Errorf("undo %s: %w", hash, ErrBlockNotFound)
	}
	var undo UndoRecord
	if err := json.Unmarshal(data, &undo); err != nil {
		return nil, fmt.Errorf("unmarshal undo: %w", err)
	}
	return &undo, nil
}

// DeleteUndo removes a block's undo record, once it falls outside the
// finality window and can never be disconnected again.
func (s *BlockStore) DeleteUndo(hash types.Hash) error {
	return s.db.Delete(undoKey(hash))
}

// Tip is the chain's current main-chain head: hash, height, and running
// coin supply as of that block.
type Tip struct {
	Hash   types.Hash
	Height uint64
	Supply uint64
}

// GetTip loads the persisted chain tip. Returns ErrBlockNotFound before
// genesis has been connected.
func (s *BlockStore) GetTip() (Tip, error) {
	hashData, err := s.db.Get(keyTipHash)
	if err != nil {
		return Tip{}, fmt.Errorf("%w: no tip set", ErrBlockNotFound)
	}
	var hash types.Hash
	copy(hash[:], hashData)

	heightData, err := s.db.Get(keyTipHeight)
	if err != nil {
		return Tip{}, fmt.Errorf("tip height: %w", err)
	}
	height := binary.BigEndian.Uint64(heightData)

	var supply uint64
	if supplyData, err := s.db.Get(keySupply); err == nil {
		supply = binary.BigEndian.Uint64(supplyData)
	}

	return Tip{Hash: hash, Height: height, Supply: supply}, nil
}

// PutReorgCheckpoint records the fork height a reorg is in progress from,
// so a crash mid-reorg can be detected and the UTXO set rebuilt on
// restart rather than left inconsistent.
func (s *BlockStore) PutReorgCheckpoint(forkHeight uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, forkHeight)
	return s.db.Put(keyReorgCheckpoint, buf)
}

// GetReorgCheckpoint reports an in-progress reorg's fork height, if one
// was left behind by a crash.
func (s *BlockStore) GetReorgCheckpoint() (uint64, bool) {
	data, err := s.db.Get(keyReorgCheckpoint)
	if err != nil || len(data) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(data), true
}

// DeleteReorgCheckpoint clears the in-progress-reorg marker once a reorg
// completes (successfully or by rollback) cleanly.
func (s *BlockStore) DeleteReorgCheckpoint() error {
	return s.db.Delete(keyReorgCheckpoint)
}

func stageTip(b storage.Batch, hash types.Hash, height, supply uint64) error {
	if err := b.Put(keyTipHash, hash[:]); err != nil {
		return err
	}
	heightBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBuf, height)
	if err := b.Put(keyTipHeight, heightBuf); err != nil {
		return err
	}
	supplyBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(supplyBuf, supply)
	return b.Put(keySupply, supplyBuf)
}

// CommitBlock connects a new block to the main chain as a single atomic
// write group: the block body, its undo record, its index entry
// (promoted to In-Main-Chain), the height->hash index, the tip pointer,
// and the UTXO-set changes it makes — all in one storage.Batch commit.
// This is the real implementation of the method the teacher's reorg
// logic called but never defined.
func (s *BlockStore) CommitBlock(blk *block.Block, entry *BlockIndexEntry, undo *UndoRecord, utxoChanges utxo.ConnectBatch, newSupply uint64) error {
	batcher, ok := s.db.(storage.Batcher)
	if !ok {
		return s.commitBlockSequential(blk, entry, undo, utxoChanges, newSupply)
	}

	b := batcher.NewBatch()

	blockData, err := json.Marshal(blk)
	if err != nil {
		return fmt.Errorf("marshal block: %w", err)
	}
	if err := b.Put(blockKey(entry.Hash), blockData); err != nil {
		return fmt.Errorf("stage block: %w", err)
	}

	undoData, err := json.Marshal(undo)
	if err != nil {
		return fmt.Errorf("marshal undo: %w", err)
	}
	if err := b.Put(undoKey(entry.Hash), undoData); err != nil {
		return fmt.Errorf("stage undo: %w", err)
	}

	entryData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal index entry: %w", err)
	}
	if err := b.Put(indexKey(entry.Hash), entryData); err != nil {
		return fmt.Errorf("stage index entry: %w", err)
	}

	if err := b.Put(heightKey(entry.Height), entry.Hash[:]); err != nil {
		return fmt.Errorf("stage height index: %w", err)
	}

	if err := stageTip(b, entry.Hash, entry.Height, newSupply); err != nil {
		return fmt.Errorf("stage tip: %w", err)
	}

	if err := utxo.StageApply(b, utxoChanges); err != nil {
		return fmt.Errorf("stage utxo apply: %w", err)
	}

	if err := b.Commit(); err != nil {
		return fmt.Errorf("commit block: %w", err)
	}
	return nil
}

// commitBlockSequential is the best-effort fallback for a DB backend
// without native transactions. It is not atomic: a crash partway through
// can leave the stores disagreeing, recoverable only via the reorg
// checkpoint / rebuild path.
func (s *BlockStore) commitBlockSequential(blk *block.Block, entry *BlockIndexEntry, undo *UndoRecord, utxoChanges utxo.ConnectBatch, newSupply uint64) error {
	if err := s.PutBlock(entry.Hash, blk); err != nil {
		return err
	}
	if err := s.PutUndo(entry.Hash, undo); err != nil {
		return err
	}
	if err := s.PutIndexEntry(entry); err != nil {
		return err
	}
	if err := s.db.Put(heightKey(entry.Height), entry.Hash[:]); err != nil {
		return fmt.Errorf("height index: %w", err)
	}
	if err := s.db.Put(keyTipHash, entry.Hash[:]); err != nil {
		return err
	}
	heightBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBuf, entry.Height)
	if err := s.db.Put(keyTipHeight, heightBuf); err != nil {
		return err
	}
	supplyBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(supplyBuf, newSupply)
	if err := s.db.Put(keySupply, supplyBuf); err != nil {
		return err
	}
	store := utxo.NewStore(s.db)
	if _, err := store.Apply(utxoChanges); err != nil {
		return err
	}
	return nil
}

// CommitDisconnect reverses a previously committed block as a single
// atomic write group: its height index entry is removed, its block
// index entry demoted back to Validated, the tip pointer moves to
// newTip, and the UTXO changes it made are reverted using undo.
func (s *BlockStore) CommitDisconnect(hash types.Hash, newTip Tip, utxoChanges utxo.ConnectBatch, undo utxo.UndoRecord) error {
	entry, err := s.GetIndexEntry(hash)
	if err != nil {
		return err
	}
	entry.Status = StatusValidated

	batcher, ok := s.db.(storage.Batcher)
	if !ok {
		return s.commitDisconnectSequential(entry, newTip, utxoChanges, undo)
	}

	b := batcher.NewBatch()

	if err := b.Delete(heightKey(entry.Height)); err != nil {
		return fmt.Errorf("stage height delete: %w", err)
	}

	entryData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal index entry: %w", err)
	}
	if err := b.Put(indexKey(entry.Hash), entryData); err != nil {
		return fmt.Errorf("stage index entry: %w", err)
	}

	if err := stageTip(b, newTip.Hash, newTip.Height, newTip.Supply); err != nil {
		return fmt.Errorf("stage tip: %w", err)
	}

	if err := utxo.StageRevert(b, utxoChanges, undo); err != nil {
		return fmt.Errorf("stage utxo revert: %w", err)
	}

	if err := b.Commit(); err != nil {
		return fmt.Errorf("commit disconnect: %w", err)
	}
	return nil
}

func (s *BlockStore) commitDisconnectSequential(entry *BlockIndexEntry, newTip Tip, utxoChanges utxo.ConnectBatch, undo utxo.UndoRecord) error {
	if err := s.db.Delete(heightKey(entry.Height)); err != nil {
		return err
	}
	if err := s.PutIndexEntry(entry); err != nil {
		return err
	}
	if err := s.db.Put(keyTipHash, newTip.Hash[:]); err != nil {
		return err
	}
	heightBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBuf, newTip.Height)
	if err := s.db.Put(keyTipHeight, heightBuf); err != nil {
		return err
	}
	supplyBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(supplyBuf, newTip.Supply)
	if err := s.db.Put(keySupply, supplyBuf); err != nil {
		return err
	}
	store := utxo.NewStore(s.db)
	return store.Revert(utxoChanges, undo)
}
