package chain

import (
	"fmt"
	"sort"

	"github.com/INT-devs/intcoin/pkg/block"
	"github.com/INT-devs/intcoin/pkg/script"
	"github.com/INT-devs/intcoin/pkg/tx"
	"github.com/INT-devs/intcoin/pkg/types"
)

// GenesisParams describes the single block a chain is bootstrapped from:
// its wall-clock time, starting difficulty, and the initial coin
// allocation. Kept local to this package rather than depending on the
// config package's genesis loader, since the two evolve independently.
type GenesisParams struct {
	Time   uint32
	Target uint32
	Alloc  map[string]uint64
}

// CreateGenesisBlock builds the genesis block from params. The genesis
// block has a zero PrevHash and a single coinbase transaction that
// distributes the initial allocation.
func CreateGenesisBlock(params GenesisParams) (*block.Block, error) {
	coinbase, err := buildCoinbaseTx(params.Alloc)
	if err != nil {
		return nil, fmt.Errorf("build coinbase: %w", err)
	}

	txs := []*tx.Transaction{coinbase}
	merkle := block.ComputeMerkleRoot([]types.Hash{coinbase.Hash()})

	header := &block.Header{
		Version:    block.CurrentVersion,
		PrevHash:   types.Hash{},
		MerkleRoot: merkle,
		Time:       params.Time,
		Target:     params.Target,
		Nonce:      0,
	}

	return block.NewBlock(header, txs), nil
}

// buildCoinbaseTx creates a coinbase transaction with the initial
// allocation. It has no spendable inputs — height is encoded in its
// coinbase input's scriptless marker via NewCoinbaseInput(0, nil).
// Each allocation becomes a P2PKH output; addresses are sorted for
// deterministic ordering.
func buildCoinbaseTx(alloc map[string]uint64) (*tx.Transaction, error) {
	addrs := make([]string, 0, len(alloc))
	for addr := range alloc {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	var outputs []tx.Output
	for _, addrStr := range addrs {
		addr, err := types.ParseAddress(addrStr)
		if err != nil {
			return nil, fmt.Errorf("invalid alloc address %q: %w", addrStr, err)
		}
		lock, err := script.P2PKHLockScript(addr.Bytes())
		if err != nil {
			return nil, fmt.Errorf("build lock script for %q: %w", addrStr, err)
		}
		outputs = append(outputs, tx.Output{
			Value:  alloc[addrStr],
			Script: lock,
		})
	}

	if len(outputs) == 0 {
		lock, err := script.P2PKHLockScript(make([]byte, types.AddressSize))
		if err != nil {
			return nil, fmt.Errorf("build empty-alloc lock script: %w", err)
		}
		outputs = []tx.Output{{Value: 0, Script: lock}}
	}

	coinbase := &tx.Transaction{
		Version: 1,
		Inputs:  []tx.Input{tx.NewCoinbaseInput(0, nil)},
		Outputs: outputs,
	}

	return coinbase, nil
}
