package script

import (
	"testing"

	"github.com/INT-devs/intcoin/pkg/crypto"
)

func TestExecute_P2PKH_Success(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pubKey := key.PublicKey()
	addr := crypto.AddressFromPubKey(pubKey)

	sigHash := crypto.HashTagged(crypto.TagSigHash, []byte("fake tx preimage"))
	sig, err := key.Sign(sigHash[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	lock, err := P2PKHLockScript(addr[:])
	if err != nil {
		t.Fatalf("P2PKHLockScript: %v", err)
	}
	unlock, err := P2PKHUnlockScript(sig, pubKey)
	if err != nil {
		t.Fatalf("P2PKHUnlockScript: %v", err)
	}

	if err := Execute(unlock, lock, Context{SigHash: sigHash[:]}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestExecute_P2PKH_WrongKey(t *testing.T) {
	key, _ := crypto.GenerateKey()
	wrongKey, _ := crypto.GenerateKey()
	addr := crypto.AddressFromPubKey(key.PublicKey())

	sigHash := crypto.HashTagged(crypto.TagSigHash, []byte("preimage"))
	sig, _ := wrongKey.Sign(sigHash[:])

	lock, _ := P2PKHLockScript(addr[:])
	unlock, _ := P2PKHUnlockScript(sig, wrongKey.PublicKey())

	err := Execute(unlock, lock, Context{SigHash: sigHash[:]})
	if err == nil {
		t.Fatal("expected OP_EQUALVERIFY to fail for a key that does not match the address")
	}
}

func TestExecute_DupDropSwap(t *testing.T) {
	prog, err := NewBuilder().
		PushData([]byte{1}).
		PushData([]byte{2}).
		Op(OP_SWAP).
		Op(OP_DROP).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// After swap: [2,1]; after drop: [2]. truthy.
	if err := Execute(nil, prog, Context{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestExecute_StackUnderflow(t *testing.T) {
	prog, _ := NewBuilder().Op(OP_DUP).Build()
	err := Execute(nil, prog, Context{})
	se, ok := err.(*Error)
	if !ok || se.Category != StackUnderflow {
		t.Fatalf("expected StackUnderflow, got %v", err)
	}
}

func TestExecute_InvalidOpcode(t *testing.T) {
	err := Execute(nil, []byte{0xFF}, Context{})
	se, ok := err.(*Error)
	if !ok || se.Category != InvalidOpcode {
		t.Fatalf("expected InvalidOpcode, got %v", err)
	}
}

func TestExecute_StackDepthExceeded(t *testing.T) {
	// MaxStepBudget+1 pushes with no pops: the push past MaxStackDepth
	// fails first, long before the step budget is reached.
	b := NewBuilder()
	for i := 0; i < MaxStepBudget+1; i++ {
		b.PushInt(1)
	}
	prog, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	err = Execute(nil, prog, Context{})
	se, ok := err.(*Error)
	if !ok || se.Category != StackOverflow {
		t.Fatalf("expected StackOverflow, got %v", err)
	}
}

func TestExecute_HashTagged(t *testing.T) {
	prog, err := NewBuilder().
		PushData([]byte("data")).
		PushInt(int(TagMerkleLeaf)).
		Op(OP_HASH_TAGGED).
		Op(OP_DROP).
		PushInt(1).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := Execute(nil, prog, Context{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}
