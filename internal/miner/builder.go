// Package miner implements the block template builder: assembling
// candidate blocks from the mempool and chain tip, and the in-process
// test sealer used to drive them to a valid proof of work. It is
// explicitly not a production mining command — see cmd/intcoind.
package miner

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/INT-devs/intcoin/internal/chain"
	"github.com/INT-devs/intcoin/internal/consensus"
	"github.com/INT-devs/intcoin/internal/log"
	"github.com/INT-devs/intcoin/pkg/block"
	"github.com/INT-devs/intcoin/pkg/script"
	"github.com/INT-devs/intcoin/pkg/tx"
	"github.com/INT-devs/intcoin/pkg/types"
)

// ChainState is the subset of *chain.Chain the template builder needs:
// the parameters for the next block, and the ability to submit a sealed
// one back into the chain.
type ChainState interface {
	NextTemplate() (chain.TemplateParams, error)
	ReceiveBlock(blk *block.Block, now uint32) (uint64, error)
}

// MempoolSelector selects transactions for block inclusion.
type MempoolSelector interface {
	SelectForBlock(limit int) []*tx.Transaction
	GetFee(txHash types.Hash) uint64
	RemoveConfirmed(txs []*tx.Transaction)
}

// SubsidyFunc returns the block subsidy for a given height.
type SubsidyFunc func(height uint64) uint64

// TemplateBuilder assembles candidate blocks and submits sealed ones
// back to the chain. It never runs the proof-of-work kernel itself in
// the SubmitBlock path — that is the caller's job, using Seal or
// SealParallel from internal/consensus.
type TemplateBuilder struct {
	chain        ChainState
	pool         MempoolSelector
	coinbaseAddr types.Address
	subsidy      SubsidyFunc
	maxBlockTxs  int
}

// New creates a template builder paying block rewards to coinbaseAddr.
func New(chainState ChainState, pool MempoolSelector, coinbaseAddr types.Address, subsidy SubsidyFunc) *TemplateBuilder {
	return &TemplateBuilder{
		chain:        chainState,
		pool:         pool,
		coinbaseAddr: coinbaseAddr,
		subsidy:      subsidy,
		maxBlockTxs:  block.MaxTxsPerBlock,
	}
}

// Template is an unsealed candidate block plus the epoch key its header
// must be sealed under.
type Template struct {
	Header   *block.Header
	Txs      []*tx.Transaction
	EpochKey types.Hash
}

// GetBlockTemplate assembles a candidate block extending the current
// chain tip: the highest fee-rate mempool transactions, up to
// block.MaxTxsPerBlock minus one slot for the coinbase, a coinbase paying
// the subsidy plus their fees, and a header carrying the
// retarget-adjusted target and a valid timestamp. Selection is bounded by
// transaction count only; the template's encoded size and sigop cost are
// not tracked while selecting.
// The header's nonce is left at zero; sealing is a separate step.
func (b *TemplateBuilder) GetBlockTemplate(now uint32) (*Template, error) {
	params, err := b.chain.NextTemplate()
	if err != nil {
		return nil, fmt.Errorf("next template: %w", err)
	}

	var selected []*tx.Transaction
	var totalFees uint64
	if b.pool != nil {
		selected = b.pool.SelectForBlock(b.maxBlockTxs - 1)
		for _, t := range selected {
			totalFees += b.pool.GetFee(t.Hash())
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		hi, hj := selected[i].Hash(), selected[j].Hash()
		return bytes.Compare(hi[:], hj[:]) < 0
	})

	reward := b.subsidy(params.Height)
	coinbase, err := BuildCoinbase(b.coinbaseAddr, reward+totalFees, params.Height)
	if err != nil {
		return nil, fmt.Errorf("build coinbase: %w", err)
	}

	txs := make([]*tx.Transaction, 0, 1+len(selected))
	txs = append(txs, coinbase)
	txs = append(txs, selected...)

	txHashes := make([]types.Hash, len(txs))
	for i, t := range txs {
		txHashes[i] = t.Hash()
	}

	blockTime := params.MinTime
	if now > blockTime {
		blockTime = now
	}

	header := &block.Header{
		Version:    block.CurrentVersion,
		PrevHash:   params.PrevHash,
		MerkleRoot: block.ComputeMerkleRoot(txHashes),
		Time:       blockTime,
		Target:     params.Target,
	}

	log.Template.Debug().Uint64("height", params.Height).Int("txs", len(txs)).Msg("assembled template")
	return &Template{Header: header, Txs: txs, EpochKey: params.EpochKey}, nil
}

// Seal drives tmpl's proof of work to completion using threads parallel
// sealers (1 for the default single-threaded kernel), returning the
// finished block. This is the test-oriented sealer, never a production
// mining loop.
func (b *TemplateBuilder) Seal(ctx context.Context, tmpl *Template, threads int) (*block.Block, error) {
	if threads <= 1 {
		if err := consensus.Seal(ctx, tmpl.Header, tmpl.EpochKey); err != nil {
			return nil, fmt.Errorf("seal: %w", err)
		}
	} else {
		if err := consensus.SealParallel(ctx, tmpl.Header, tmpl.EpochKey, threads); err != nil {
			return nil, fmt.Errorf("seal: %w", err)
		}
	}
	return block.NewBlock(tmpl.Header, tmpl.Txs), nil
}

// SubmitBlock validates and connects a sealed block, then drops any of
// its transactions from the mempool.
func (b *TemplateBuilder) SubmitBlock(blk *block.Block) (uint64, error) {
	height, err := b.chain.ReceiveBlock(blk, uint32(time.Now().Unix()))
	if err != nil {
		return 0, err
	}
	if b.pool != nil {
		b.pool.RemoveConfirmed(blk.Transactions)
	}
	log.Template.Info().Uint64("height", height).Msg("submitted block")
	return height, nil
}

// BuildCoinbase creates a coinbase transaction paying reward to addr,
// with the block height embedded in the coinbase input's data so that
// coinbase transactions at different heights never collide.
func BuildCoinbase(addr types.Address, reward, height uint64) (*tx.Transaction, error) {
	lock, err := script.P2PKHLockScript(addr[:])
	if err != nil {
		return nil, fmt.Errorf("coinbase lock script: %w", err)
	}
	return &tx.Transaction{
		Version: 1,
		Inputs:  []tx.Input{tx.NewCoinbaseInput(height, nil)},
		Outputs: []tx.Output{{Value: reward, Script: lock}},
	}, nil
}
