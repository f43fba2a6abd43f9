package chain

import (
	"testing"

	"github.com/INT-devs/intcoin/internal/emission"
	"github.com/INT-devs/intcoin/internal/storage"
)

// TestChain_RebuildFromCheckpoint_RecoversState simulates a crash left
// mid-reorg (a reorg checkpoint persisted with no matching in-flight
// disconnect/connect) and verifies that building a fresh Chain over the
// same db detects it, clears the UTXO set, and replays every main-chain
// block from genesis through the persisted tip to rebuild supply and
// UTXO state exactly.
func TestChain_RebuildFromCheckpoint_RecoversState(t *testing.T) {
	db := storage.NewMemory()
	ch, err := New(db, testTargetBlockTime)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, minerAddr := testMinerKey(t)
	if err := ch.InitFromGenesis(testGenesisParams(minerAddr, 0)); err != nil {
		t.Fatalf("InitFromGenesis: %v", err)
	}

	var wantSupply uint64
	for i := uint64(1); i <= 3; i++ {
		mineBlock(t, ch, minerAddr)
		wantSupply += emission.Subsidy(i)
	}
	wantTip := ch.State().TipHash

	// Simulate a crash partway through a reorg: leave a checkpoint
	// behind without having actually disturbed the UTXO set.
	if err := ch.blocks.PutReorgCheckpoint(1); err != nil {
		t.Fatalf("PutReorgCheckpoint: %v", err)
	}

	recovered, err := New(db, testTargetBlockTime)
	if err != nil {
		t.Fatalf("New (recovery): %v", err)
	}

	if recovered.State().Height != 3 {
		t.Errorf("recovered height = %d, want 3", recovered.State().Height)
	}
	if recovered.State().TipHash != wantTip {
		t.Error("recovered tip hash should match the pre-crash tip")
	}
	if recovered.State().Supply != wantSupply {
		t.Errorf("recovered supply = %d, want %d", recovered.State().Supply, wantSupply)
	}
	if _, found := recovered.blocks.GetReorgCheckpoint(); found {
		t.Error("reorg checkpoint should be cleared after recovery")
	}

	utxos, err := recovered.UTXOs().GetByAddress(minerAddr)
	if err != nil {
		t.Fatalf("GetByAddress: %v", err)
	}
	if len(utxos) != 3 {
		t.Errorf("recovered utxo count = %d, want 3", len(utxos))
	}
}

func TestChain_RebuildFromCheckpoint_NoCheckpointIsNoop(t *testing.T) {
	db := storage.NewMemory()
	ch, err := New(db, testTargetBlockTime)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, minerAddr := testMinerKey(t)
	if err := ch.InitFromGenesis(testGenesisParams(minerAddr, 0)); err != nil {
		t.Fatalf("InitFromGenesis: %v", err)
	}
	mineBlock(t, ch, minerAddr)

	reopened, err := New(db, testTargetBlockTime)
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}
	if reopened.State().Height != 1 {
		t.Errorf("reopened height = %d, want 1", reopened.State().Height)
	}
}
