package utxo

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/INT-devs/intcoin/internal/storage"
	"github.com/INT-devs/intcoin/pkg/script"
	"github.com/INT-devs/intcoin/pkg/types"
)

// Key prefixes for the UTXO store.
var (
	prefixUTXO = []byte("u/") // u/<txid><index> -> UTXO JSON
	prefixAddr = []byte("a/") // a/<address><txid><index> -> empty (index)
)

// defaultCacheSize bounds the in-memory write-through cache sitting in
// front of the UTXO store. A block connects at most block.MaxTxsPerBlock
// transactions' worth of outputs, so ten thousand entries keeps the
// hot set of recently touched outpoints resident across blocks without
// holding the whole UTXO set in memory.
const defaultCacheSize = 10_000

// Store implements Set backed by a storage.DB, with an LRU write-through
// cache (every write reaches storage immediately; the cache never holds
// dirty entries) absorbing repeat lookups of outpoints spent shortly after they
// were created (the common case for change outputs and mempool chains).
type Store struct {
	db    storage.DB
	cache *lru.Cache[types.Outpoint, *UTXO]
}

// NewStore creates a new UTXO store backed by the given database.
func NewStore(db storage.DB) *Store {
	cache, _ := lru.New[types.Outpoint, *UTXO](defaultCacheSize)
	return &Store{db: db, cache: cache}
}

// utxoKey builds a storage key for an outpoint: "u/" + txid(32) + index(4).
func utxoKey(op types.Outpoint) []byte {
	key := make([]byte, len(prefixUTXO)+types.HashSize+4)
	copy(key, prefixUTXO)
	copy(key[len(prefixUTXO):], op.TxID[:])
	binary.BigEndian.PutUint32(key[len(prefixUTXO)+types.HashSize:], op.Index)
	return key
}

// addrKey builds an address index key: "a/" + addr(20) + txid(32) + index(4).
func addrKey(addr types.Address, op types.Outpoint) []byte {
	key := make([]byte, len(prefixAddr)+types.AddressSize+types.HashSize+4)
	copy(key, prefixAddr)
	copy(key[len(prefixAddr):], addr[:])
	off := len(prefixAddr) + types.AddressSize
	copy(key[off:], op.TxID[:])
	binary.BigEndian.PutUint32(key[off+types.HashSize:], op.Index)
	return key
}

// scriptAddress recovers the spending address from a lock script, if the
// script is a recognized P2PKH pattern. Scripts this core doesn't
// recognize simply aren't address-indexed; they remain fully spendable,
// just not discoverable by address.
func scriptAddress(lockScript types.Script) (types.Address, bool) {
	pubKeyHash, ok := script.ExtractP2PKHAddress(lockScript)
	if !ok || len(pubKeyHash) != types.AddressSize {
		return types.Address{}, false
	}
	var addr types.Address
	copy(addr[:], pubKeyHash)
	return addr, true
}

func encodeUTXO(u *UTXO) ([]byte, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("utxo marshal: %w", err)
	}
	return data, nil
}

func decodeUTXO(data []byte) (*UTXO, error) {
	var u UTXO
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("utxo unmarshal: %w", err)
	}
	return &u, nil
}

// Get retrieves a UTXO by its outpoint, consulting the write-through cache
// before falling through to storage.
func (s *Store) Get(outpoint types.Outpoint) (*UTXO, error) {
	if u, ok := s.cache.Get(outpoint); ok {
		return u, nil
	}
	data, err := s.db.Get(utxoKey(outpoint))
	if err != nil {
		return nil, fmt.Errorf("utxo get: %w", err)
	}
	u, err := decodeUTXO(data)
	if err != nil {
		return nil, err
	}
	s.cache.Add(outpoint, u)
	return u, nil
}

// Put stores a UTXO, updates the address index, and primes the cache.
func (s *Store) Put(u *UTXO) error {
	data, err := encodeUTXO(u)
	if err != nil {
		return err
	}
	if err := s.db.Put(utxoKey(u.Outpoint), data); err != nil {
		return fmt.Errorf("utxo put: %w", err)
	}
	if addr, ok := scriptAddress(u.LockScript); ok {
		if err := s.db.Put(addrKey(addr, u.Outpoint), []byte{}); err != nil {
			return fmt.Errorf("utxo index put: %w", err)
		}
	}
	s.cache.Add(u.Outpoint, u)
	return nil
}

// Delete removes a UTXO, its address index entry, and its cache entry.
func (s *Store) Delete(outpoint types.Outpoint) error {
	// Read first to clean up the address index.
	u, err := s.Get(outpoint)
	if err == nil {
		if addr, ok := scriptAddress(u.LockScript); ok {
			s.db.Delete(addrKey(addr, u.Outpoint))
		}
	}

	if err := s.db.Delete(utxoKey(outpoint)); err != nil {
		return fmt.Errorf("utxo delete: %w", err)
	}
	s.cache.Remove(outpoint)
	return nil
}

// Has checks if a UTXO exists for the given outpoint.
func (s *Store) Has(outpoint types.Outpoint) (bool, error) {
	return s.db.Has(utxoKey(outpoint))
}

// ForEach iterates over all UTXOs in the store.
func (s *Store) ForEach(fn func(*UTXO) error) error {
	return s.db.ForEach(prefixUTXO, func(key, value []byte) error {
		u, err := decodeUTXO(value)
		if err != nil {
			return err
		}
		return fn(u)
	})
}

// ClearAll removes all UTXOs and the address index. Used during UTXO
// set recovery after a crash mid-reorg.
func (s *Store) ClearAll() error {
	var keys [][]byte
	for _, prefix := range [][]byte{prefixUTXO, prefixAddr} {
		if err := s.db.ForEach(prefix, func(key, _ []byte) error {
			k := make([]byte, len(key))
			copy(k, key)
			keys = append(keys, k)
			return nil
		}); err != nil {
			return fmt.Errorf("scan prefix %s: %w", prefix, err)
		}
	}
	for _, key := range keys {
		if err := s.db.Delete(key); err != nil {
			return fmt.Errorf("delete utxo key: %w", err)
		}
	}
	s.cache.Purge()
	return nil
}

// GetByAddress returns all UTXOs belonging to the given address.
// It scans the address index and loads each referenced UTXO.
func (s *Store) GetByAddress(addr types.Address) ([]*UTXO, error) {
	prefix := make([]byte, len(prefixAddr)+types.AddressSize)
	copy(prefix, prefixAddr)
	copy(prefix[len(prefixAddr):], addr[:])

	var utxos []*UTXO
	err := s.db.ForEach(prefix, func(key, _ []byte) error {
		// Key layout: "a/" + addr(20) + txid(32) + index(4).
		off := len(prefixAddr) + types.AddressSize
		if len(key) < off+types.HashSize+4 {
			return nil // Malformed key, skip.
		}
		var op types.Outpoint
		copy(op.TxID[:], key[off:off+types.HashSize])
		op.Index = binary.BigEndian.Uint32(key[off+types.HashSize:])

		u, err := s.Get(op)
		if err != nil {
			return nil // UTXO may have been spent, skip.
		}
		utxos = append(utxos, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan address index: %w", err)
	}
	return utxos, nil
}

// ErrMissingUTXO is returned by Apply when a batch spends an outpoint
// that isn't in the set.
var ErrMissingUTXO = errors.New("spent outpoint not found in utxo set")

// ErrDuplicateUTXO is returned by Apply when a batch creates an
// outpoint that already exists.
var ErrDuplicateUTXO = errors.New("created outpoint already exists in utxo set")

// ConnectBatch is the set of UTXO-set changes a single connected block
// makes: the outpoints it spends, and the new outputs it creates.
type ConnectBatch struct {
	Spends  []types.Outpoint
	Creates []*UTXO
}

// UndoRecord captures what Apply removed, so Revert can put it back.
type UndoRecord struct {
	Spent []*UTXO
}

// Apply connects a block's outpoint changes as a single atomic batch:
// every spent outpoint is removed, every created outpoint is inserted.
// Fails without touching the store if any spend is missing or any
// create collides with an existing entry. Returns the UndoRecord
// needed to Revert this batch later.
func (s *Store) Apply(batch ConnectBatch) (UndoRecord, error) {
	undo := UndoRecord{Spent: make([]*UTXO, 0, len(batch.Spends))}

	spentCopies := make(map[types.Outpoint]*UTXO, len(batch.Spends))
	for _, op := range batch.Spends {
		u, err := s.Get(op)
		if err != nil {
			return UndoRecord{}, fmt.Errorf("%w: %s", ErrMissingUTXO, op)
		}
		spentCopies[op] = u
	}
	for _, u := range batch.Creates {
		if ok, _ := s.Has(u.Outpoint); ok {
			return UndoRecord{}, fmt.Errorf("%w: %s", ErrDuplicateUTXO, u.Outpoint)
		}
	}

	batcher, atomic := s.db.(storage.Batcher)
	if atomic {
		b := batcher.NewBatch()
		if err := StageApply(b, batch); err != nil {
			return UndoRecord{}, err
		}
		if err := b.Commit(); err != nil {
			return UndoRecord{}, fmt.Errorf("utxo apply commit: %w", err)
		}
	} else {
		if err := applySequential(s, batch); err != nil {
			return UndoRecord{}, err
		}
	}

	for _, op := range batch.Spends {
		s.cache.Remove(op)
		undo.Spent = append(undo.Spent, spentCopies[op])
	}
	for _, u := range batch.Creates {
		s.cache.Add(u.Outpoint, u)
	}
	return undo, nil
}

// StageApply stages a ConnectBatch's writes onto a caller-supplied
// storage.Batch instead of committing them itself. internal/chain uses
// this to fold a block's UTXO-set changes into the same write group as
// its own block-index and tip-pointer writes, so the two stores commit
// atomically as one badger transaction rather than two.
func StageApply(b storage.Batch, batch ConnectBatch) error {
	for _, op := range batch.Spends {
		if err := b.Delete(utxoKey(op)); err != nil {
			return fmt.Errorf("utxo apply: stage spend delete: %w", err)
		}
	}
	for _, u := range batch.Creates {
		data, err := encodeUTXO(u)
		if err != nil {
			return err
		}
		if err := b.Put(utxoKey(u.Outpoint), data); err != nil {
			return fmt.Errorf("utxo apply: stage create put: %w", err)
		}
		if addr, ok := scriptAddress(u.LockScript); ok {
			if err := b.Put(addrKey(addr, u.Outpoint), []byte{}); err != nil {
				return fmt.Errorf("utxo apply: stage index put: %w", err)
			}
		}
	}
	return nil
}

func applySequential(s *Store, batch ConnectBatch) error {
	for _, op := range batch.Spends {
		if err := s.Delete(op); err != nil {
			return fmt.Errorf("utxo apply: spend: %w", err)
		}
	}
	for _, u := range batch.Creates {
		if err := s.Put(u); err != nil {
			return fmt.Errorf("utxo apply: create: %w", err)
		}
	}
	return nil
}

// Revert undoes a previously applied ConnectBatch: the outputs it
// created are deleted, and the outputs it spent are restored from undo.
func (s *Store) Revert(batch ConnectBatch, undo UndoRecord) error {
	batcher, atomic := s.db.(storage.Batcher)
	if !atomic {
		return revertSequential(s, batch, undo)
	}

	b := batcher.NewBatch()
	if err := StageRevert(b, batch, undo); err != nil {
		return err
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("utxo revert commit: %w", err)
	}

	for _, u := range batch.Creates {
		s.cache.Remove(u.Outpoint)
	}
	for _, u := range undo.Spent {
		s.cache.Add(u.Outpoint, u)
	}
	return nil
}

// StageRevert stages a Revert's writes onto a caller-supplied
// storage.Batch, the revert counterpart of StageApply.
func StageRevert(b storage.Batch, batch ConnectBatch, undo UndoRecord) error {
	for _, u := range batch.Creates {
		if err := b.Delete(utxoKey(u.Outpoint)); err != nil {
			return fmt.Errorf("utxo revert: stage create delete: %w", err)
		}
		if addr, ok := scriptAddress(u.LockScript); ok {
			if err := b.Delete(addrKey(addr, u.Outpoint)); err != nil {
				return fmt.Errorf("utxo revert: stage index delete: %w", err)
			}
		}
	}
	for _, u := range undo.Spent {
		data, err := encodeUTXO(u)
		if err != nil {
			return err
		}
		if err := b.Put(utxoKey(u.Outpoint), data); err != nil {
			return fmt.Errorf("utxo revert: stage restore put: %w", err)
		}
		if addr, ok := scriptAddress(u.LockScript); ok {
			if err := b.Put(addrKey(addr, u.Outpoint), []byte{}); err != nil {
				return fmt.Errorf("utxo revert: stage index put: %w", err)
			}
		}
	}
	return nil
}

func revertSequential(s *Store, batch ConnectBatch, undo UndoRecord) error {
	for _, u := range batch.Creates {
		if err := s.Delete(u.Outpoint); err != nil {
			return fmt.Errorf("utxo revert: remove create: %w", err)
		}
	}
	for _, u := range undo.Spent {
		if err := s.Put(u); err != nil {
			return fmt.Errorf("utxo revert: restore spend: %w", err)
		}
	}
	return nil
}
