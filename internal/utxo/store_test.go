package utxo

import (
	"testing"

	"github.com/INT-devs/intcoin/internal/storage"
	"github.com/INT-devs/intcoin/pkg/crypto"
	"github.com/INT-devs/intcoin/pkg/script"
	"github.com/INT-devs/intcoin/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(storage.NewMemory())
}

func makeOutpoint(data string, index uint32) types.Outpoint {
	h := crypto.Hash([]byte(data))
	return types.Outpoint{
		TxID:  h,
		Index: index,
	}
}

func p2pkhScript(t *testing.T, pubKeyHash []byte) types.Script {
	t.Helper()
	prog, err := script.P2PKHLockScript(pubKeyHash)
	if err != nil {
		t.Fatalf("P2PKHLockScript: %v", err)
	}
	return types.Script(prog)
}

func makeUTXO(t *testing.T, data string, index uint32, value uint64) *UTXO {
	t.Helper()
	pubKeyHash := make([]byte, types.AddressSize)
	for i := range pubKeyHash {
		pubKeyHash[i] = byte(i + 1)
	}
	return &UTXO{
		Outpoint:   makeOutpoint(data, index),
		Value:      value,
		LockScript: p2pkhScript(t, pubKeyHash),
		Height:     1,
	}
}

func TestStore_PutAndGet(t *testing.T) {
	s := testStore(t)
	u := makeUTXO(t, "tx1", 0, 5000)

	err := s.Put(u)
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := s.Get(u.Outpoint)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}

	if got.Value != u.Value {
		t.Errorf("Value = %d, want %d", got.Value, u.Value)
	}
	if got.Outpoint != u.Outpoint {
		t.Error("Outpoint mismatch")
	}
	if got.Height != u.Height {
		t.Errorf("Height = %d, want %d", got.Height, u.Height)
	}
}

func TestStore_GetNonexistent(t *testing.T) {
	s := testStore(t)

	_, err := s.Get(makeOutpoint("missing", 0))
	if err == nil {
		t.Error("Get() for nonexistent UTXO should return error")
	}
}

func TestStore_Has(t *testing.T) {
	s := testStore(t)
	u := makeUTXO(t, "tx1", 0, 1000)

	ok, _ := s.Has(u.Outpoint)
	if ok {
		t.Error("Has() should be false before Put()")
	}

	s.Put(u)

	ok, err := s.Has(u.Outpoint)
	if err != nil {
		t.Fatalf("Has() error: %v", err)
	}
	if !ok {
		t.Error("Has() should be true after Put()")
	}
}

func TestStore_Delete(t *testing.T) {
	s := testStore(t)
	u := makeUTXO(t, "tx1", 0, 1000)

	s.Put(u)

	err := s.Delete(u.Outpoint)
	if err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	ok, _ := s.Has(u.Outpoint)
	if ok {
		t.Error("UTXO should be gone after Delete()")
	}
}

func TestStore_MultipleOutputs(t *testing.T) {
	s := testStore(t)

	// Same tx, different output indices.
	u0 := makeUTXO(t, "tx1", 0, 1000)
	u1 := makeUTXO(t, "tx1", 1, 2000)
	u2 := makeUTXO(t, "tx1", 2, 3000)

	s.Put(u0)
	s.Put(u1)
	s.Put(u2)

	got0, _ := s.Get(u0.Outpoint)
	got1, _ := s.Get(u1.Outpoint)
	got2, _ := s.Get(u2.Outpoint)

	if got0.Value != 1000 || got1.Value != 2000 || got2.Value != 3000 {
		t.Error("values mismatch for multi-output tx")
	}

	// Delete middle one.
	s.Delete(u1.Outpoint)

	ok, _ := s.Has(u1.Outpoint)
	if ok {
		t.Error("deleted output should be gone")
	}

	// Others should remain.
	ok0, _ := s.Has(u0.Outpoint)
	ok2, _ := s.Has(u2.Outpoint)
	if !ok0 || !ok2 {
		t.Error("non-deleted outputs should remain")
	}
}

func TestStore_ImplementsSet(t *testing.T) {
	// Compile-time check that Store satisfies Set.
	var _ Set = (*Store)(nil)
}

func TestStore_AddressIndex_PutAndGet(t *testing.T) {
	s := testStore(t)

	pubKeyHash := make([]byte, types.AddressSize)
	for i := range pubKeyHash {
		pubKeyHash[i] = byte(i + 0x40)
	}
	var addr types.Address
	copy(addr[:], pubKeyHash)

	u := &UTXO{
		Outpoint:   makeOutpoint("addr-tx", 0),
		Value:      12345,
		LockScript: p2pkhScript(t, pubKeyHash),
	}
	if err := s.Put(u); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	utxos, err := s.GetByAddress(addr)
	if err != nil {
		t.Fatalf("GetByAddress() error: %v", err)
	}
	if len(utxos) != 1 {
		t.Fatalf("GetByAddress() returned %d, want 1", len(utxos))
	}
	if utxos[0].Value != u.Value {
		t.Errorf("Value = %d, want %d", utxos[0].Value, u.Value)
	}
}

func TestStore_AddressIndex_DeleteRemovesIndex(t *testing.T) {
	s := testStore(t)

	pubKeyHash := make([]byte, types.AddressSize)
	for i := range pubKeyHash {
		pubKeyHash[i] = byte(i + 0x50)
	}
	var addr types.Address
	copy(addr[:], pubKeyHash)

	u := &UTXO{
		Outpoint:   makeOutpoint("addr-del", 0),
		Value:      1000,
		LockScript: p2pkhScript(t, pubKeyHash),
	}
	s.Put(u)

	if err := s.Delete(u.Outpoint); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	utxos, err := s.GetByAddress(addr)
	if err != nil {
		t.Fatalf("GetByAddress() error: %v", err)
	}
	if len(utxos) != 0 {
		t.Errorf("GetByAddress() returned %d after delete, want 0", len(utxos))
	}
}

func TestStore_AddressIndex_UnrecognizedScriptNotIndexed(t *testing.T) {
	s := testStore(t)

	u := &UTXO{
		Outpoint:   makeOutpoint("opaque-tx", 0),
		Value:      1000,
		LockScript: types.Script{0x01, 0x02, 0x03},
	}
	if err := s.Put(u); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	// Still reachable directly, just not address-indexed.
	got, err := s.Get(u.Outpoint)
	if err != nil || got.Value != 1000 {
		t.Errorf("Get() = %v, %v, want value 1000", got, err)
	}
}

func TestStore_CacheServesAfterUnderlyingDelete(t *testing.T) {
	db := storage.NewMemory()
	s := NewStore(db)
	u := makeUTXO(t, "cache1", 0, 4000)

	if err := s.Put(u); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	// Remove the key directly from storage, bypassing the store, to
	// prove Get is actually served from cache rather than re-reading.
	if err := db.Delete(utxoKey(u.Outpoint)); err != nil {
		t.Fatalf("db.Delete() error: %v", err)
	}

	got, err := s.Get(u.Outpoint)
	if err != nil {
		t.Fatalf("Get() should hit cache, got error: %v", err)
	}
	if got.Value != u.Value {
		t.Errorf("Value = %d, want %d", got.Value, u.Value)
	}
}

func TestStore_CacheInvalidatedOnDelete(t *testing.T) {
	s := testStore(t)
	u := makeUTXO(t, "cache2", 0, 7000)

	s.Put(u)
	if _, err := s.Get(u.Outpoint); err != nil {
		t.Fatalf("Get() error: %v", err)
	}

	if err := s.Delete(u.Outpoint); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if _, ok := s.cache.Get(u.Outpoint); ok {
		t.Error("cache should not retain entry after Delete()")
	}
	if _, err := s.Get(u.Outpoint); err == nil {
		t.Error("Get() after Delete() should error")
	}
}

func TestStore_ClearAll(t *testing.T) {
	s := testStore(t)

	s.Put(makeUTXO(t, "c1", 0, 100))
	s.Put(makeUTXO(t, "c2", 0, 200))

	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll() error: %v", err)
	}

	count := 0
	s.ForEach(func(u *UTXO) error {
		count++
		return nil
	})
	if count != 0 {
		t.Errorf("store has %d entries after ClearAll(), want 0", count)
	}
	if s.cache.Len() != 0 {
		t.Errorf("cache has %d entries after ClearAll(), want 0", s.cache.Len())
	}
}
