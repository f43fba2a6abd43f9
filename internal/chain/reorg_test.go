package chain

import (
	"context"
	"testing"

	"github.com/INT-devs/intcoin/internal/consensus"
	"github.com/INT-devs/intcoin/internal/emission"
	"github.com/INT-devs/intcoin/pkg/block"
	"github.com/INT-devs/intcoin/pkg/tx"
	"github.com/INT-devs/intcoin/pkg/types"
)

// secondMinerAddr generates a distinct address for a competing branch's
// coinbase, so UTXO ownership after a reorg can be told apart.
func secondMinerAddr(t *testing.T) types.Address {
	t.Helper()
	_, addr := testMinerKey(t)
	return addr
}

// buildOnto builds, seals, and submits a coinbase-only block extending
// parent (which need not be the current tip), returning the submitted
// block and its resulting index entry.
func buildOnto(t *testing.T, ch *Chain, parent *BlockIndexEntry, minerAddr types.Address) (*block.Block, *BlockIndexEntry) {
	t.Helper()
	height := parent.Height + 1
	cb := coinbaseTx(t, height, minerAddr, emission.Subsidy(height))

	hashes := []types.Hash{cb.Hash()}
	header := &block.Header{
		Version:    block.CurrentVersion,
		PrevHash:   parent.Hash,
		MerkleRoot: block.ComputeMerkleRoot(hashes),
		Time:       parent.Header.Time + testTargetBlockTime,
		Target:     parent.Header.Target,
	}
	ek := epochKeyFor(t, ch, parent)
	if err := consensus.Seal(context.Background(), header, ek); err != nil {
		t.Fatalf("seal: %v", err)
	}
	blk := block.NewBlock(header, []*tx.Transaction{cb})
	hash := header.Hash(ek)

	if _, err := ch.ReceiveBlock(blk, header.Time); err != nil {
		t.Fatalf("receive block at height %d: %v", height, err)
	}
	entry, err := ch.GetIndexEntry(hash)
	if err != nil {
		t.Fatalf("get index entry: %v", err)
	}
	return blk, entry
}

func TestReorg_LongerForkWins(t *testing.T) {
	ch, _, minerA, _ := newTestChain(t, 0)

	genesisEntry, err := ch.GetIndexEntry(ch.GenesisHash())
	if err != nil {
		t.Fatalf("get genesis entry: %v", err)
	}

	// Main branch: genesis -> A1 -> A2 -> A3 (3 blocks).
	_, a1 := buildOnto(t, ch, genesisEntry, minerA)
	_, a2 := buildOnto(t, ch, a1, minerA)
	_, a3 := buildOnto(t, ch, a2, minerA)
	if ch.State().TipHash != a3.Hash {
		t.Fatal("main branch should be the tip after 3 blocks")
	}

	altAddr := secondMinerAddr(t)

	// Side branch forking after genesis: B1 -> B2 -> B3 -> B4 (4 blocks),
	// strictly more accumulated work at equal per-block difficulty.
	_, b1 := buildOnto(t, ch, genesisEntry, altAddr)
	if ch.State().TipHash != a3.Hash {
		t.Fatal("a shorter side branch should not become the tip")
	}
	_, b2 := buildOnto(t, ch, b1, altAddr)
	if ch.State().TipHash != a3.Hash {
		t.Fatal("a shorter side branch should not become the tip")
	}
	_, b3 := buildOnto(t, ch, b2, altAddr)
	if ch.State().TipHash != a3.Hash {
		t.Fatal("a side branch tied on work should not replace the tip")
	}
	_, b4 := buildOnto(t, ch, b3, altAddr)

	if ch.State().TipHash != b4.Hash {
		t.Error("longer side branch should have become the new tip")
	}
	if ch.State().Height != 4 {
		t.Errorf("height after reorg = %d, want 4", ch.State().Height)
	}
}

func TestReorg_SameDifficultyKeepsCurrent(t *testing.T) {
	ch, _, minerA, _ := newTestChain(t, 0)
	genesisEntry, err := ch.GetIndexEntry(ch.GenesisHash())
	if err != nil {
		t.Fatalf("get genesis entry: %v", err)
	}

	buildOnto(t, ch, genesisEntry, minerA)
	tipBefore := ch.State().TipHash

	altAddr := secondMinerAddr(t)
	buildOnto(t, ch, genesisEntry, altAddr)

	if ch.State().TipHash != tipBefore {
		t.Error("a competing branch with equal work should not replace the current tip")
	}
}

func TestReorg_UTXOConsistency(t *testing.T) {
	ch, _, minerA, _ := newTestChain(t, 0)
	genesisEntry, err := ch.GetIndexEntry(ch.GenesisHash())
	if err != nil {
		t.Fatalf("get genesis entry: %v", err)
	}

	_, a1 := buildOnto(t, ch, genesisEntry, minerA)
	_, a2 := buildOnto(t, ch, a1, minerA)
	_ = a2

	altAddr := secondMinerAddr(t)
	_, b1 := buildOnto(t, ch, genesisEntry, altAddr)
	_, b2 := buildOnto(t, ch, b1, altAddr)
	_, b3 := buildOnto(t, ch, b2, altAddr)

	if ch.State().TipHash != b3.Hash {
		t.Fatal("longer alt branch should have won")
	}

	aUTXOs, err := ch.UTXOs().GetByAddress(minerA)
	if err != nil {
		t.Fatalf("GetByAddress(minerA): %v", err)
	}
	if len(aUTXOs) != 0 {
		t.Errorf("disconnected branch's coinbase UTXOs should be gone, found %d", len(aUTXOs))
	}

	bUTXOs, err := ch.UTXOs().GetByAddress(altAddr)
	if err != nil {
		t.Fatalf("GetByAddress(altAddr): %v", err)
	}
	if len(bUTXOs) != 3 {
		t.Errorf("winning branch should have 3 coinbase UTXOs, found %d", len(bUTXOs))
	}
}

func TestReorg_SupplyAdjusted(t *testing.T) {
	ch, _, minerA, _ := newTestChain(t, 0)
	genesisEntry, err := ch.GetIndexEntry(ch.GenesisHash())
	if err != nil {
		t.Fatalf("get genesis entry: %v", err)
	}

	_, a1 := buildOnto(t, ch, genesisEntry, minerA)
	_, a2 := buildOnto(t, ch, a1, minerA)
	_ = a2
	supplyBeforeFork := ch.State().Supply
	if supplyBeforeFork != emission.Subsidy(1)+emission.Subsidy(2) {
		t.Fatalf("supply before fork = %d, want %d", supplyBeforeFork, emission.Subsidy(1)+emission.Subsidy(2))
	}

	altAddr := secondMinerAddr(t)
	_, b1 := buildOnto(t, ch, genesisEntry, altAddr)
	_, b2 := buildOnto(t, ch, b1, altAddr)
	buildOnto(t, ch, b2, altAddr)

	wantSupply := emission.Subsidy(1) + emission.Subsidy(2) + emission.Subsidy(3)
	if ch.State().Supply != wantSupply {
		t.Errorf("supply after reorg = %d, want %d", ch.State().Supply, wantSupply)
	}
}
