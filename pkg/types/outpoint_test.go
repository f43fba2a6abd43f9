package types

import (
	"strings"
	"testing"
)

func TestOutpoint_IsCoinbase(t *testing.T) {
	cb := Outpoint{TxID: Hash{}, Index: CoinbaseIndex}
	if !cb.IsCoinbase() {
		t.Error("zero TxID with sentinel index should be coinbase")
	}

	nonZero := Outpoint{TxID: Hash{0x01}, Index: CoinbaseIndex}
	if nonZero.IsCoinbase() {
		t.Error("Outpoint with non-zero TxID should not be coinbase")
	}

	wrongIndex := Outpoint{TxID: Hash{}, Index: 0}
	if wrongIndex.IsCoinbase() {
		t.Error("Outpoint with index 0 should not be coinbase")
	}
}

func TestOutpoint_String(t *testing.T) {
	o := Outpoint{
		TxID:  Hash{0xab},
		Index: 3,
	}
	s := o.String()

	// Should contain the txid hex and :index
	if !strings.HasPrefix(s, "ab") {
		t.Errorf("String() should start with txid hex, got %s", s)
	}
	if !strings.HasSuffix(s, ":3") {
		t.Errorf("String() should end with ':3', got %s", s)
	}

	// Coinbase outpoint
	cb := Outpoint{TxID: Hash{}, Index: CoinbaseIndex}
	cs := cb.String()
	if !strings.HasSuffix(cs, ":4294967295") {
		t.Errorf("coinbase Outpoint String() should end with sentinel index, got %s", cs)
	}
}
