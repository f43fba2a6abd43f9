package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/INT-devs/intcoin/internal/chain"
	"github.com/INT-devs/intcoin/internal/emission"
	"github.com/INT-devs/intcoin/pkg/block"
	"github.com/INT-devs/intcoin/pkg/crypto"
	"github.com/INT-devs/intcoin/pkg/types"
)

// ForkSchedule defines block heights at which protocol upgrades activate.
// A zero value means the fork is not scheduled.
type ForkSchedule struct {
	// Future forks are added here as fields. Example:
	// ScriptEngineHeight uint64 `json:"script_engine_height,omitempty"`
}

// IsActive returns true if a fork at forkHeight has activated at currentHeight.
// Returns false if forkHeight is 0 (not scheduled).
func (f *ForkSchedule) IsActive(forkHeight, currentHeight uint64) bool {
	return forkHeight > 0 && currentHeight >= forkHeight
}

// ConsensusRules holds the proof-of-work timing parameters fixed at
// genesis. Subsidy schedule (internal/emission) and coinbase maturity
// (internal/consensus) are chain-wide constants, not per-genesis knobs,
// so they aren't duplicated here.
type ConsensusRules struct {
	// TargetBlockTime is the intended spacing between blocks, in seconds.
	TargetBlockTime uint32 `json:"target_block_time"`

	// InitialTarget is the genesis block's compact PoW target.
	InitialTarget uint32 `json:"initial_target"`
}

// ProtocolConfig holds consensus-critical rules. All nodes MUST agree
// on these values.
type ProtocolConfig struct {
	Consensus ConsensusRules `json:"consensus"`
	Forks     ForkSchedule   `json:"forks,omitempty"`
}

// Genesis holds the genesis block configuration and protocol rules.
// This is immutable after chain launch — changes require a hard fork.
type Genesis struct {
	ChainID   string `json:"chain_id"`
	ChainName string `json:"chain_name"`
	Symbol    string `json:"symbol,omitempty"`

	Timestamp uint64 `json:"timestamp"`
	ExtraData string `json:"extra_data,omitempty"`

	// Alloc maps address -> balance in base units.
	Alloc map[string]uint64 `json:"alloc"`

	Protocol ProtocolConfig `json:"protocol"`
}

// MainnetGenesis returns the mainnet genesis configuration.
func MainnetGenesis() *Genesis {
	return &Genesis{
		ChainID:   "intcoin-mainnet-1",
		ChainName: "Intcoin Mainnet",
		Symbol:    "INT",
		Timestamp: 1770734103, // 2026-02-10
		ExtraData: "Intcoin Genesis",
		Alloc:     map[string]uint64{},
		Protocol: ProtocolConfig{
			Consensus: ConsensusRules{
				TargetBlockTime: 150,
				InitialTarget:   block.MaxTargetCompact,
			},
		},
	}
}

// TestnetGenesis returns the testnet genesis configuration.
func TestnetGenesis() *Genesis {
	g := MainnetGenesis()
	g.ChainID = "intcoin-testnet-1"
	g.ChainName = "Intcoin Testnet"
	g.ExtraData = "Intcoin Testnet Genesis"
	g.Protocol.Consensus.TargetBlockTime = 30

	// Well-known testnet faucet address (a fixed raw-hex address, not
	// derived from any key), so every testnet node agrees on the starting balance without
	// needing to exchange keys out of band.
	g.Alloc = map[string]uint64{
		"0000000000000000000000000000000000000001": 200_000 * emission.SubUnitMultiplier,
	}
	return g
}

// GenesisFor returns the genesis config for the given network.
func GenesisFor(network NetworkType) *Genesis {
	switch network {
	case Testnet:
		return TestnetGenesis()
	default:
		return MainnetGenesis()
	}
}

// LoadGenesis loads genesis configuration from a file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}

	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}

	return &g, nil
}

// Save writes the genesis configuration to a file.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}
	return nil
}

// Validate checks that the genesis configuration is internally
// consistent before it is handed to the chain to bootstrap from.
func (g *Genesis) Validate() error {
	if g.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}
	if g.Protocol.Consensus.TargetBlockTime == 0 {
		return fmt.Errorf("target_block_time must be positive")
	}
	if !block.IsCanonicalCompactTarget(g.Protocol.Consensus.InitialTarget) {
		return fmt.Errorf("initial_target is not a canonical compact target")
	}

	var totalAlloc uint64
	for addrStr, v := range g.Alloc {
		if _, err := types.ParseAddress(addrStr); err != nil {
			return fmt.Errorf("invalid alloc address %q: %w", addrStr, err)
		}
		if totalAlloc > ^uint64(0)-v {
			return fmt.Errorf("genesis allocations overflow uint64")
		}
		totalAlloc += v
	}

	return nil
}

// Hash returns a BLAKE3 hash of the genesis configuration. Used to
// identify the chain and detect genesis mismatches between peers.
func (g *Genesis) Hash() (types.Hash, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Hash(data), nil
}

// ToChainParams converts the genesis config into the bootstrap
// parameters internal/chain needs to create the genesis block. Kept as
// a one-way conversion rather than folding chain.GenesisParams directly
// into Genesis, since the wire/file format here carries identity and
// display fields (ChainName, Symbol, ExtraData) the chain package has
// no use for.
func (g *Genesis) ToChainParams() chain.GenesisParams {
	return chain.GenesisParams{
		Time:   uint32(g.Timestamp),
		Target: g.Protocol.Consensus.InitialTarget,
		Alloc:  g.Alloc,
	}
}
