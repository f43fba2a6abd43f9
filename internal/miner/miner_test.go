package miner

import (
	"context"
	"testing"

	"github.com/INT-devs/intcoin/internal/chain"
	"github.com/INT-devs/intcoin/internal/storage"
	"github.com/INT-devs/intcoin/internal/utxo"
	"github.com/INT-devs/intcoin/pkg/block"
	"github.com/INT-devs/intcoin/pkg/crypto"
	"github.com/INT-devs/intcoin/pkg/script"
	"github.com/INT-devs/intcoin/pkg/tx"
	"github.com/INT-devs/intcoin/pkg/types"
)

// --- BuildCoinbase ---

func TestBuildCoinbase(t *testing.T) {
	addr := types.Address{0x01, 0x02, 0x03}
	cb, err := BuildCoinbase(addr, 50000, 42)
	if err != nil {
		t.Fatalf("BuildCoinbase: %v", err)
	}

	if cb.Version != 1 {
		t.Errorf("version: got %d, want 1", cb.Version)
	}
	if len(cb.Inputs) != 1 {
		t.Fatalf("inputs: got %d, want 1", len(cb.Inputs))
	}
	if !cb.Inputs[0].PrevOut.IsCoinbase() {
		t.Error("coinbase input should carry the coinbase sentinel outpoint")
	}
	height, ok := cb.Inputs[0].CoinbaseHeight()
	if !ok || height != 42 {
		t.Errorf("embedded height: got (%d, %v), want (42, true)", height, ok)
	}
	if len(cb.Outputs) != 1 {
		t.Fatalf("outputs: got %d, want 1", len(cb.Outputs))
	}
	if cb.Outputs[0].Value != 50000 {
		t.Errorf("output value: got %d, want 50000", cb.Outputs[0].Value)
	}

	cb2, err := BuildCoinbase(addr, 50000, 43)
	if err != nil {
		t.Fatalf("BuildCoinbase: %v", err)
	}
	if cb.Hash() == cb2.Hash() {
		t.Error("coinbase txs at different heights must have different hashes")
	}
}

func TestBuildCoinbase_Validate(t *testing.T) {
	addr := types.Address{0xaa}
	cb, err := BuildCoinbase(addr, 1000, 1)
	if err != nil {
		t.Fatalf("BuildCoinbase: %v", err)
	}
	if err := cb.Validate(); err != nil {
		t.Errorf("coinbase should pass Validate: %v", err)
	}
}

// --- mocks ---

type mockChainState struct {
	params chain.TemplateParams
	err    error

	submitted *types.Hash
}

func (m *mockChainState) NextTemplate() (chain.TemplateParams, error) { return m.params, m.err }

func (m *mockChainState) ReceiveBlock(blk *block.Block, now uint32) (uint64, error) {
	h := blk.Header.Hash(m.params.EpochKey)
	m.submitted = &h
	return m.params.Height, nil
}

type mockMempool struct {
	txs  []*tx.Transaction
	fees map[types.Hash]uint64

	removed []*tx.Transaction
}

func (m *mockMempool) SelectForBlock(limit int) []*tx.Transaction {
	if limit >= len(m.txs) || limit < 0 {
		return m.txs
	}
	return m.txs[:limit]
}

func (m *mockMempool) GetFee(txHash types.Hash) uint64 {
	if m.fees == nil {
		return 0
	}
	return m.fees[txHash]
}

func (m *mockMempool) RemoveConfirmed(txs []*tx.Transaction) {
	m.removed = append(m.removed, txs...)
}

func fixedSubsidy(amount uint64) SubsidyFunc {
	return func(uint64) uint64 { return amount }
}

// --- TemplateBuilder ---

func TestTemplateBuilder_GetBlockTemplate(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := crypto.AddressFromPubKey(key.PublicKey())

	cs := &mockChainState{params: chain.TemplateParams{
		Height:   1,
		PrevHash: types.Hash{0xaa, 0xbb},
		Target:   0x1e0fffff,
		EpochKey: types.Hash{0x01},
		MinTime:  1000,
	}}

	b := New(cs, nil, addr, fixedSubsidy(50000))

	tmpl, err := b.GetBlockTemplate(500)
	if err != nil {
		t.Fatalf("GetBlockTemplate: %v", err)
	}

	if len(tmpl.Txs) != 1 {
		t.Fatalf("expected 1 tx (coinbase only), got %d", len(tmpl.Txs))
	}
	if tmpl.Txs[0].Outputs[0].Value != 50000 {
		t.Errorf("coinbase value: got %d, want 50000", tmpl.Txs[0].Outputs[0].Value)
	}
	if tmpl.Header.PrevHash != cs.params.PrevHash {
		t.Error("header PrevHash should match template params")
	}
	if tmpl.Header.Target != cs.params.Target {
		t.Error("header Target should match template params")
	}
	if tmpl.Header.Time != cs.params.MinTime {
		t.Errorf("header Time should be bumped to MinTime when now is earlier: got %d, want %d", tmpl.Header.Time, cs.params.MinTime)
	}
	if tmpl.EpochKey != cs.params.EpochKey {
		t.Error("template EpochKey should match chain params")
	}
}

func TestTemplateBuilder_GetBlockTemplate_UsesLaterTime(t *testing.T) {
	addr := types.Address{0x01}
	cs := &mockChainState{params: chain.TemplateParams{Height: 1, MinTime: 1000}}
	b := New(cs, nil, addr, fixedSubsidy(1))

	tmpl, err := b.GetBlockTemplate(5000)
	if err != nil {
		t.Fatalf("GetBlockTemplate: %v", err)
	}
	if tmpl.Header.Time != 5000 {
		t.Errorf("header Time: got %d, want 5000 (now exceeds MinTime)", tmpl.Header.Time)
	}
}

func TestTemplateBuilder_GetBlockTemplate_WithMempool(t *testing.T) {
	addr := types.Address{0x01}
	cs := &mockChainState{params: chain.TemplateParams{Height: 1, MinTime: 1}}

	lock, err := script.P2PKHLockScript(make([]byte, 20))
	if err != nil {
		t.Fatalf("lock script: %v", err)
	}
	mempoolTx := &tx.Transaction{
		Version: 1,
		Inputs:  []tx.Input{{PrevOut: types.Outpoint{TxID: types.Hash{0xff}, Index: 0}, UnlockScript: []byte{0x01}}},
		Outputs: []tx.Output{{Value: 500, Script: lock}},
	}
	fee := uint64(100)
	pool := &mockMempool{txs: []*tx.Transaction{mempoolTx}, fees: map[types.Hash]uint64{mempoolTx.Hash(): fee}}

	b := New(cs, pool, addr, fixedSubsidy(50000))
	tmpl, err := b.GetBlockTemplate(1)
	if err != nil {
		t.Fatalf("GetBlockTemplate: %v", err)
	}

	if len(tmpl.Txs) != 2 {
		t.Fatalf("expected coinbase + 1 mempool tx, got %d", len(tmpl.Txs))
	}
	want := uint64(50000) + fee
	if tmpl.Txs[0].Outputs[0].Value != want {
		t.Errorf("coinbase value: got %d, want %d (reward + fees)", tmpl.Txs[0].Outputs[0].Value, want)
	}
	if tmpl.Txs[1].Hash() != mempoolTx.Hash() {
		t.Error("mempool tx should be included after coinbase")
	}
}

func TestTemplateBuilder_Seal_And_Submit(t *testing.T) {
	addr := types.Address{0x01}
	cs := &mockChainState{params: chain.TemplateParams{
		Height:   1,
		PrevHash: types.Hash{0x02},
		Target:   0x207fffff,
		EpochKey: types.Hash{0x03},
		MinTime:  1,
	}}
	pool := &mockMempool{}
	b := New(cs, pool, addr, fixedSubsidy(1000))

	tmpl, err := b.GetBlockTemplate(1)
	if err != nil {
		t.Fatalf("GetBlockTemplate: %v", err)
	}

	blk, err := b.Seal(context.Background(), tmpl, 1)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	height, err := b.SubmitBlock(blk)
	if err != nil {
		t.Fatalf("SubmitBlock: %v", err)
	}
	if height != 1 {
		t.Errorf("height: got %d, want 1", height)
	}
	if cs.submitted == nil {
		t.Error("ReceiveBlock should have been called")
	}
}

// --- UTXOAdapter ---

func TestUTXOAdapter_GetUTXO(t *testing.T) {
	db := storage.NewMemory()
	store := utxo.NewStore(db)

	lock, err := script.P2PKHLockScript(make([]byte, 20))
	if err != nil {
		t.Fatalf("lock script: %v", err)
	}
	op := types.Outpoint{TxID: types.Hash{0x01}, Index: 0}
	u := &utxo.UTXO{Outpoint: op, Value: 1000, LockScript: lock}
	if err := store.Put(u); err != nil {
		t.Fatalf("Put: %v", err)
	}

	adapter := NewUTXOAdapter(store)

	val, lockScript, err := adapter.GetUTXO(op)
	if err != nil {
		t.Fatalf("GetUTXO: %v", err)
	}
	if val != 1000 {
		t.Errorf("value: got %d, want 1000", val)
	}
	if len(lockScript) == 0 {
		t.Error("lock script should be populated")
	}
}

func TestUTXOAdapter_HasUTXO(t *testing.T) {
	db := storage.NewMemory()
	store := utxo.NewStore(db)

	op := types.Outpoint{TxID: types.Hash{0x01}, Index: 0}
	if err := store.Put(&utxo.UTXO{Outpoint: op, Value: 1}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	adapter := NewUTXOAdapter(store)

	if !adapter.HasUTXO(op) {
		t.Error("HasUTXO should return true for existing outpoint")
	}

	missing := types.Outpoint{TxID: types.Hash{0xff}, Index: 0}
	if adapter.HasUTXO(missing) {
		t.Error("HasUTXO should return false for missing outpoint")
	}
}

func TestUTXOAdapter_GetUTXO_NotFound(t *testing.T) {
	db := storage.NewMemory()
	store := utxo.NewStore(db)
	adapter := NewUTXOAdapter(store)

	_, _, err := adapter.GetUTXO(types.Outpoint{TxID: types.Hash{0xff}})
	if err == nil {
		t.Error("GetUTXO should fail for missing outpoint")
	}
}
