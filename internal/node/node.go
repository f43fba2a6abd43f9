// Package node wires together storage, chain state, mempool, and the
// template builder into a single runnable process.
package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/INT-devs/intcoin/config"
	"github.com/INT-devs/intcoin/internal/chain"
	"github.com/INT-devs/intcoin/internal/consensus"
	"github.com/INT-devs/intcoin/internal/emission"
	klog "github.com/INT-devs/intcoin/internal/log"
	"github.com/INT-devs/intcoin/internal/mempool"
	"github.com/INT-devs/intcoin/internal/miner"
	"github.com/INT-devs/intcoin/internal/storage"
	"github.com/INT-devs/intcoin/pkg/block"
	"github.com/INT-devs/intcoin/pkg/tx"
	"github.com/INT-devs/intcoin/pkg/types"
	"github.com/rs/zerolog"
)

// Node is a fully-initialized intcoin node: storage, chain state,
// mempool, and (optionally) the local test sealer.
type Node struct {
	cfg     *config.Config
	genesis *config.Genesis
	logger  zerolog.Logger

	db    storage.DB
	ch    *chain.Chain
	pool  *mempool.Pool
	sealr *miner.TemplateBuilder // nil unless Mining.Enabled

	sealThreads int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and initializes a Node: opens storage, recovers or
// bootstraps chain state, and wires the mempool. It does not start the
// local test sealer — call Start for that.
func New(cfg *config.Config) (*Node, error) {
	if cfg.Network == config.Testnet {
		types.SetAddressHRP(types.TestnetHRP)
	} else {
		types.SetAddressHRP(types.MainnetHRP)
	}

	logFile := cfg.Log.File
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithComponent("node")

	genesis := config.GenesisFor(cfg.Network)
	logger.Info().
		Str("chain_id", genesis.ChainID).
		Str("network", string(cfg.Network)).
		Uint32("target_block_time", genesis.Protocol.Consensus.TargetBlockTime).
		Msg("starting intcoin node")

	db, err := storage.NewBadger(cfg.ChainDBDir())
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.ChainDBDir(), err)
	}

	ch, err := chain.New(db, genesis.Protocol.Consensus.TargetBlockTime)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create chain: %w", err)
	}

	if ch.State().IsGenesis() {
		if err := ch.InitFromGenesis(genesis.ToChainParams()); err != nil {
			db.Close()
			return nil, fmt.Errorf("init from genesis: %w", err)
		}
		logger.Info().Msg("chain initialized from genesis")
	} else {
		logger.Info().
			Uint64("height", ch.Height()).
			Str("tip", ch.TipHash().String()).
			Msg("chain resumed from database")
	}

	adapter := miner.NewUTXOAdapter(ch.UTXOs())
	pool := mempool.New(adapter, 5000)
	pool.SetCoinbaseMaturity(consensus.CoinbaseMaturity, ch.Height, ch.UTXOs())
	logger.Info().Msg("mempool ready")

	n := &Node{
		cfg:         cfg,
		genesis:     genesis,
		logger:      logger,
		db:          db,
		ch:          ch,
		pool:        pool,
		sealThreads: cfg.Mining.Threads,
	}

	if cfg.Mining.Enabled {
		coinbase, err := resolveCoinbase(cfg.Mining.Coinbase)
		if err != nil {
			db.Close()
			return nil, err
		}
		n.sealr = miner.New(ch, pool, coinbase, emission.Subsidy)
		logger.Info().Str("coinbase", cfg.Mining.Coinbase).Int("threads", n.sealThreads).
			Msg("local test sealer enabled")
	}

	return n, nil
}

// Height returns the current main-chain height.
func (n *Node) Height() uint64 { return n.ch.Height() }

// TipHash returns the hash of the current main-chain tip.
func (n *Node) TipHash() types.Hash { return n.ch.TipHash() }

// Chain exposes the underlying chain state machine.
func (n *Node) Chain() *chain.Chain { return n.ch }

// Mempool exposes the node's mempool.
func (n *Node) Mempool() *mempool.Pool { return n.pool }

// SubmitTransaction validates and adds a transaction to the mempool.
func (n *Node) SubmitTransaction(transaction *tx.Transaction) (uint64, error) {
	return n.pool.Add(transaction)
}

// SubmitBlock validates, connects, and removes the block's
// transactions from the mempool.
func (n *Node) SubmitBlock(blk *block.Block) (uint64, error) {
	height, err := n.ch.ReceiveBlock(blk, uint32(time.Now().Unix()))
	if err != nil {
		return 0, err
	}
	n.pool.RemoveConfirmed(blk.Transactions)
	return height, nil
}

// Start begins background work: the local test sealer loop, if
// mining was enabled in configuration.
func (n *Node) Start() error {
	n.ctx, n.cancel = context.WithCancel(context.Background())

	if n.sealr != nil {
		n.wg.Add(1)
		go n.runSealer()
	}

	return nil
}

// Stop halts background work and closes the database.
func (n *Node) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	n.wg.Wait()
	if err := n.db.Close(); err != nil {
		n.logger.Warn().Err(err).Msg("error closing database")
	}
}

// runSealer repeatedly builds, seals, and submits block templates. It
// is a test-oriented loop, not a production mining command: no
// difficulty-seeking, retry backoff, or orphan-rate management.
func (n *Node) runSealer() {
	defer n.wg.Done()
	for {
		select {
		case <-n.ctx.Done():
			return
		default:
		}

		tmpl, err := n.sealr.GetBlockTemplate(uint32(time.Now().Unix()))
		if err != nil {
			n.logger.Warn().Err(err).Msg("get block template")
			return
		}

		blk, err := n.sealr.Seal(n.ctx, tmpl, n.sealThreads)
		if err != nil {
			if n.ctx.Err() != nil {
				return
			}
			n.logger.Warn().Err(err).Msg("seal block")
			continue
		}

		height, err := n.sealr.SubmitBlock(blk)
		if err != nil {
			n.logger.Warn().Err(err).Msg("submit sealed block")
			continue
		}
		n.logger.Info().Uint64("height", height).Msg("sealed block")
	}
}
