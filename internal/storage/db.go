// Package storage provides database abstractions.
package storage

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Batch accumulates a group of writes to be applied atomically.
// Connecting or disconnecting a block touches both the UTXO set and
// the block index; a Batch is how those writes land as one group
// instead of two, so a crash mid-write never leaves them disagreeing.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
}

// Batcher is implemented by DB backends that support atomic batched
// writes. Backends without native transaction support can still
// satisfy DB; they just won't satisfy Batcher, and callers fall back
// to sequential writes (see PrefixDB.NewBatch).
type Batcher interface {
	NewBatch() Batch
}

// Snapshot is a read-only, isolated view of a DB taken at a single
// point in time. A long-running reader (template building, an RPC
// query) can hold one open while writers keep advancing the live DB
// underneath it. Must be closed when no longer needed.
type Snapshot interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Snapshotter is implemented by DB backends that can hand out isolated
// read views. Backends without native MVCC support can still satisfy
// DB; they just won't satisfy Snapshotter.
type Snapshotter interface {
	NewSnapshot() Snapshot
}
