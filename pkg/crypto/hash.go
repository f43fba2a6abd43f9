// Package crypto provides cryptographic primitives for intcoin.
package crypto

import (
	"github.com/INT-devs/intcoin/pkg/types"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/argon2"
)

// Hash computes a BLAKE3-256 hash of the input data with no domain
// separation. Prefer HashTagged for anything that needs to be
// distinguishable from hashes of other kinds of content.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// DoubleHash computes Hash(Hash(data)).
func DoubleHash(data []byte) types.Hash {
	first := Hash(data)
	return Hash(first[:])
}

// HashTagged computes a domain-separated BLAKE3 hash: BLAKE3(tag || 0x00 || data).
// Different tags can never collide on the same digest regardless of what
// bytes follow, so a block header hash and a transaction hash computed
// over coincidentally identical bytes still land in disjoint spaces.
func HashTagged(tag string, data []byte) types.Hash {
	buf := make([]byte, 0, len(tag)+1+len(data))
	buf = append(buf, tag...)
	buf = append(buf, 0x00)
	buf = append(buf, data...)
	return blake3.Sum256(buf)
}

// Tag constants used across the codebase for domain-separated hashing.
const (
	TagBlockHeader  = "intcoin/block-header"
	TagTx           = "intcoin/tx"
	TagMerkleLeaf   = "intcoin/merkle-leaf"
	TagMerkleNode   = "intcoin/merkle-node"
	TagPoWChallenge = "intcoin/pow-challenge"
	TagSigHash      = "intcoin/sighash"
	TagAddress      = "intcoin/address"
)

// AddressFromPubKey derives an address from a public key.
// Address = HashTagged(TagAddress, pubkey)[:20], matching the
// OP_HASH_TAGGED(TagAddress, ...) a P2PKH locking script runs to check it.
func AddressFromPubKey(pubKey []byte) types.Address {
	h := HashTagged(TagAddress, pubKey)
	var addr types.Address
	copy(addr[:], h[:types.AddressSize])
	return addr
}

// HashConcat hashes the tagged concatenation of two hashes. Used for
// building merkle trees.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return HashTagged(TagMerkleNode, buf[:])
}

// PoW kernel parameters. Argon2id is used as the memory-hard primitive;
// these costs are tuned for sub-second single-threaded evaluation on
// commodity hardware while still imposing a real memory floor on ASIC
// implementations.
const (
	powArgonTime    = 1
	powArgonMemory  = 64 * 1024 // KiB
	powArgonThreads = 1
	powArgonKeyLen  = 32
)

// PoWHash computes the memory-hard proof-of-work hash of a candidate
// header encoding, salted by the current epoch's seed key. epochKey is
// the tagged hash of the header at the epoch's seed height (see
// internal/consensus for how that height is derived).
func PoWHash(headerBytes []byte, epochKey types.Hash) types.Hash {
	challenge := HashTagged(TagPoWChallenge, headerBytes)
	out := argon2.IDKey(challenge[:], epochKey[:], powArgonTime, powArgonMemory, powArgonThreads, powArgonKeyLen)
	var h types.Hash
	copy(h[:], out)
	return h
}

// EpochSeedHeight returns the block height whose header hash seeds the
// memory-hard PoW kernel for the epoch containing height h.
// Epochs are EPOCH_LENGTH blocks long; the seed is taken EPOCH_SEED_LAG
// blocks before the epoch boundary so miners have a stable key well
// before they need to start hashing against it.
func EpochSeedHeight(height, epochLength, epochSeedLag uint64) uint64 {
	epochStart := height - (height % epochLength)
	if epochStart < epochSeedLag {
		return 0
	}
	return epochStart - epochSeedLag
}
