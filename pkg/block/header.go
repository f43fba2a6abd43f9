package block

import (
	"github.com/INT-devs/intcoin/pkg/codec"
	"github.com/INT-devs/intcoin/pkg/crypto"
	"github.com/INT-devs/intcoin/pkg/types"
)

// Header contains block metadata. Target is a compact ("nBits"-style)
// encoding of the 256-bit PoW threshold (see compact.go); the block hash
// is the memory-hard PoW hash of the header's canonical encoding, seeded
// by the epoch key of the epoch the header's height falls in.
type Header struct {
	Version    uint32     `json:"version"`
	PrevHash   types.Hash `json:"prev_hash"`
	MerkleRoot types.Hash `json:"merkle_root"`
	Time       uint32     `json:"time"`
	Target     uint32     `json:"target"`
	Nonce      uint64     `json:"nonce"`
}

// Encode returns the canonical binary encoding of the header.
func (h *Header) Encode() []byte {
	w := codec.NewWriter(types.HashSize*2 + 20)
	w.U32(h.Version)
	w.Raw(h.PrevHash[:])
	w.Raw(h.MerkleRoot[:])
	w.U32(h.Time)
	w.U32(h.Target)
	w.U64(h.Nonce)
	return w.Bytes()
}

// DecodeHeader parses a canonical header encoding, rejecting trailing
// bytes or truncation.
func DecodeHeader(b []byte) (*Header, error) {
	r := codec.NewReader(b)
	h := &Header{}

	version, err := r.U32()
	if err != nil {
		return nil, err
	}
	h.Version = version

	prevHash, err := r.Raw(types.HashSize)
	if err != nil {
		return nil, err
	}
	copy(h.PrevHash[:], prevHash)

	merkleRoot, err := r.Raw(types.HashSize)
	if err != nil {
		return nil, err
	}
	copy(h.MerkleRoot[:], merkleRoot)

	t, err := r.U32()
	if err != nil {
		return nil, err
	}
	h.Time = t

	target, err := r.U32()
	if err != nil {
		return nil, err
	}
	h.Target = target

	nonce, err := r.U64()
	if err != nil {
		return nil, err
	}
	h.Nonce = nonce

	if !r.AtEnd() {
		return nil, codec.ErrMalformed
	}
	return h, nil
}

// Hash computes the block's PoW hash: the memory-hard kernel over the
// header's canonical encoding, seeded by the given epoch key (see
// crypto.EpochSeedHeight — the key is the hash of the header at height
// epochStart-epochSeedLag, known only to a caller with chain context).
func (h *Header) Hash(epochKey types.Hash) types.Hash {
	return crypto.PoWHash(h.Encode(), epochKey)
}

// MeetsTarget reports whether hash, read as a big-endian 256-bit integer,
// is at or below the header's claimed target threshold.
func (h *Header) MeetsTarget(hash types.Hash) bool {
	return hashMeetsTarget(hash, h.Target)
}
