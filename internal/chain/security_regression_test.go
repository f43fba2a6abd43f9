package chain

import (
	"testing"

	"github.com/INT-devs/intcoin/internal/emission"
	"github.com/INT-devs/intcoin/pkg/tx"
	"github.com/INT-devs/intcoin/pkg/types"
)

func TestChain_ReceiveBlock_RejectsSpendBySomeoneElse(t *testing.T) {
	ch, _, ownerAddr, _ := newTestChain(t, 1000*emission.SubUnitMultiplier)

	owned, err := ch.UTXOs().GetByAddress(ownerAddr)
	if err != nil || len(owned) != 1 {
		t.Fatalf("GetByAddress(ownerAddr): %v (len %d)", err, len(owned))
	}

	forgerKey, forgerAddr := testMinerKey(t)
	builder := tx.NewBuilder()
	builder.AddInput(owned[0].Outpoint)
	builder.AddP2PKHOutput(owned[0].Value, forgerAddr)
	if err := builder.Sign(forgerKey, []tx.PrevoutInfo{{Script: owned[0].LockScript, Amount: owned[0].Value}}); err != nil {
		t.Fatalf("sign: %v", err)
	}
	forgedSpend := builder.Build()

	genesisEntry, err := ch.GetIndexEntry(ch.GenesisHash())
	if err != nil {
		t.Fatalf("get genesis entry: %v", err)
	}
	cb := coinbaseTx(t, 1, forgerAddr, emission.Subsidy(1))
	blk := sealChild(t, ch, genesisEntry, []*tx.Transaction{cb, forgedSpend})

	if _, err := ch.ReceiveBlock(blk, blk.Header.Time); err == nil {
		t.Error("expected a spend signed by the wrong key to be rejected")
	}
}

func TestChain_ReceiveBlock_RejectsExcessiveCoinbaseReward(t *testing.T) {
	ch, _, minerAddr, _ := newTestChain(t, 0)
	genesisEntry, err := ch.GetIndexEntry(ch.GenesisHash())
	if err != nil {
		t.Fatalf("get genesis entry: %v", err)
	}
	cb := coinbaseTx(t, 1, minerAddr, emission.Subsidy(1)+1)
	blk := sealChild(t, ch, genesisEntry, []*tx.Transaction{cb})

	if _, err := ch.ReceiveBlock(blk, blk.Header.Time); err == nil {
		t.Error("expected a coinbase reward above subsidy+fees to be rejected")
	}
}

func TestChain_ReceiveBlock_RejectsMalformedCoinbase(t *testing.T) {
	ch, _, minerAddr, _ := newTestChain(t, 0)
	genesisEntry, err := ch.GetIndexEntry(ch.GenesisHash())
	if err != nil {
		t.Fatalf("get genesis entry: %v", err)
	}
	cb := coinbaseTx(t, 1, minerAddr, emission.Subsidy(1))
	// A second input makes IsCoinbase() false, so the block has no
	// recognizable coinbase transaction at all.
	cb.Inputs = append(cb.Inputs, tx.NewCoinbaseInput(1, nil))
	blk := sealChild(t, ch, genesisEntry, []*tx.Transaction{cb})

	if _, err := ch.ReceiveBlock(blk, blk.Header.Time); err == nil {
		t.Error("expected a malformed coinbase to be rejected")
	}
}

func TestChain_ReceiveBlock_RejectsDuplicateSpendWithinBlock(t *testing.T) {
	ch, ownerKey, ownerAddr, _ := newTestChain(t, 1000*emission.SubUnitMultiplier)
	owned, err := ch.UTXOs().GetByAddress(ownerAddr)
	if err != nil || len(owned) != 1 {
		t.Fatalf("GetByAddress(ownerAddr): %v (len %d)", err, len(owned))
	}

	_, recvAddr := testMinerKey(t)
	_, otherAddr := testMinerKey(t)
	buildSpend := func(to types.Address) *tx.Transaction {
		b := tx.NewBuilder()
		b.AddInput(owned[0].Outpoint)
		b.AddP2PKHOutput(owned[0].Value, to)
		if err := b.Sign(ownerKey, []tx.PrevoutInfo{{Script: owned[0].LockScript, Amount: owned[0].Value}}); err != nil {
			t.Fatalf("sign: %v", err)
		}
		return b.Build()
	}
	spendA := buildSpend(recvAddr)
	spendB := buildSpend(otherAddr)

	genesisEntry, err := ch.GetIndexEntry(ch.GenesisHash())
	if err != nil {
		t.Fatalf("get genesis entry: %v", err)
	}
	cb := coinbaseTx(t, 1, recvAddr, emission.Subsidy(1))
	blk := sealChild(t, ch, genesisEntry, []*tx.Transaction{cb, spendA, spendB})

	if _, err := ch.ReceiveBlock(blk, blk.Header.Time); err == nil {
		t.Error("expected a block double-spending the same outpoint across transactions to be rejected")
	}
}
