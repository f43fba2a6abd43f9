package consensus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/INT-devs/intcoin/pkg/block"
	"github.com/INT-devs/intcoin/pkg/crypto"
	"github.com/INT-devs/intcoin/pkg/types"
)

// PoW errors.
var (
	ErrInsufficientWork    = errors.New("header hash does not meet target")
	ErrNonCanonicalTarget  = errors.New("target is not in canonical compact form")
	ErrNonceSpaceExhausted = errors.New("nonce space exhausted")
)

// EpochLength and EpochSeedLag are the epoch-seeding parameters from
// the hash engine: the memory-hard PoW kernel is re-keyed once every
// EpochLength blocks, using the header hash EpochSeedLag blocks before
// the epoch boundary.
const (
	EpochLength  = 2048
	EpochSeedLag = 64
)

// HeaderByHeight looks up a historical block header by height on the
// main chain, used to derive the epoch seed key. Implemented by
// internal/chain.
type HeaderByHeight func(height uint64) (*block.Header, error)

// EpochSeedHeight returns the height of the block whose header hash
// seeds the PoW kernel for a block at the given height.
func EpochSeedHeight(height uint64) uint64 {
	return crypto.EpochSeedHeight(height, EpochLength, EpochSeedLag)
}

// EpochKey derives the PoW epoch key for a block at the given height
// by hashing the header found at that epoch's seed height. getHeader
// resolves a height to the header on the main chain as of the block's
// ancestor path; callers must supply one whose view is consistent with
// the chain the candidate block extends.
func EpochKey(height uint64, getHeader HeaderByHeight) (types.Hash, error) {
	seedHeight := EpochSeedHeight(height)
	header, err := getHeader(seedHeight)
	if err != nil {
		return types.Hash{}, fmt.Errorf("epoch seed height %d: %w", seedHeight, err)
	}
	return crypto.HashTagged(crypto.TagBlockHeader, header.Encode()), nil
}

// VerifyHeaderPoW checks that a header's PoW hash, computed under the
// given epoch key, meets the target the header itself declares. It
// does not check that the target is the one consensus expects for this
// height (see DifficultyEngine.NextTarget / the Validator's Phase B).
func VerifyHeaderPoW(header *block.Header, epochKey types.Hash) error {
	if !block.IsCanonicalCompactTarget(header.Target) {
		return fmt.Errorf("%w: 0x%08x", ErrNonCanonicalTarget, header.Target)
	}
	hash := header.Hash(epochKey)
	if !header.MeetsTarget(hash) {
		return ErrInsufficientWork
	}
	return nil
}

// Seal mines header by incrementing its nonce until the resulting PoW
// hash meets header.Target, or ctx is cancelled. header.Target and all
// other fields except Nonce must already be set.
func Seal(ctx context.Context, header *block.Header, epochKey types.Hash) error {
	return SealParallel(ctx, header, epochKey, 1)
}

// SealParallel mines header using the given number of goroutines, each
// searching a strided partition of the nonce space starting at a
// distinct offset.
func SealParallel(ctx context.Context, header *block.Header, epochKey types.Hash, threads int) error {
	if !block.IsCanonicalCompactTarget(header.Target) {
		return fmt.Errorf("%w: 0x%08x", ErrNonCanonicalTarget, header.Target)
	}
	if threads <= 0 {
		threads = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var found int64 = -1
	var wg sync.WaitGroup
	errCh := make(chan error, threads)

	for i := 0; i < threads; i++ {
		wg.Add(1)
		start := uint64(i)
		stride := uint64(threads)
		go func() {
			defer wg.Done()
			h := *header
			iter := uint64(0)
			for nonce := start; ; nonce += stride {
				if iter&0xFFFF == 0 {
					select {
					case <-ctx.Done():
						return
					default:
					}
				}
				iter++
				h.Nonce = nonce
				hash := h.Hash(epochKey)
				if h.MeetsTarget(hash) {
					if atomic.CompareAndSwapInt64(&found, -1, int64(nonce)) {
						cancel()
					}
					return
				}
				if nonce > ^uint64(0)-stride {
					select {
					case errCh <- ErrNonceSpaceExhausted:
					default:
					}
					return
				}
			}
		}()
	}

	wg.Wait()
	close(errCh)

	if n := atomic.LoadInt64(&found); n >= 0 {
		header.Nonce = uint64(n)
		return nil
	}
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	default:
	}
	return ctx.Err()
}
