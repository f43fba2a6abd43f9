package script

import "testing"

func TestCountSigOps_P2PKH(t *testing.T) {
	lock, err := P2PKHLockScript(make([]byte, 20))
	if err != nil {
		t.Fatalf("P2PKHLockScript: %v", err)
	}
	n, err := CountSigOps(lock)
	if err != nil {
		t.Fatalf("CountSigOps: %v", err)
	}
	if n != 1 {
		t.Errorf("P2PKH lock script should have 1 sigop, got %d", n)
	}
}

func TestCountSigOps_NoSigOps(t *testing.T) {
	program := []byte{byte(OP_DUP), byte(OP_DROP)}
	n, err := CountSigOps(program)
	if err != nil {
		t.Fatalf("CountSigOps: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 sigops, got %d", n)
	}
}

func TestCountSigOps_Multiple(t *testing.T) {
	program := []byte{byte(OP_CHECK_SIG_PQ), byte(OP_CHECK_SIG_PQ), byte(OP_CHECK_SIG_PQ)}
	n, err := CountSigOps(program)
	if err != nil {
		t.Fatalf("CountSigOps: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 sigops, got %d", n)
	}
}

func TestCountSigOps_TruncatedPush(t *testing.T) {
	program := []byte{byte(OP_PUSHDATA), 0xfd} // declares u16 length but supplies none
	if _, err := CountSigOps(program); err == nil {
		t.Error("truncated push should error")
	}
}
