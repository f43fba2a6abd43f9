package config

import "testing"

func TestForkSchedule_IsActive_ZeroNotScheduled(t *testing.T) {
	fs := ForkSchedule{}
	if fs.IsActive(0, 100) {
		t.Error("fork at height 0 (not scheduled) should not be active")
	}
}

func TestForkSchedule_IsActive_HeightReached(t *testing.T) {
	fs := ForkSchedule{}
	if !fs.IsActive(50, 50) {
		t.Error("fork at height 50 should be active at height 50")
	}
	if !fs.IsActive(50, 100) {
		t.Error("fork at height 50 should be active at height 100")
	}
}

func TestForkSchedule_IsActive_HeightNotReached(t *testing.T) {
	fs := ForkSchedule{}
	if fs.IsActive(50, 49) {
		t.Error("fork at height 50 should not be active at height 49")
	}
}

func TestMainnetGenesis_HasForks(t *testing.T) {
	g := MainnetGenesis()
	_ = g.Protocol.Forks
}

func TestTestnetGenesis_HasForks(t *testing.T) {
	g := TestnetGenesis()
	_ = g.Protocol.Forks
}

func TestGenesis_Validate_MainnetValid(t *testing.T) {
	g := MainnetGenesis()
	if err := g.Validate(); err != nil {
		t.Errorf("mainnet genesis should be valid: %v", err)
	}
}

func TestGenesis_Validate_TestnetValid(t *testing.T) {
	g := TestnetGenesis()
	if err := g.Validate(); err != nil {
		t.Errorf("testnet genesis should be valid: %v", err)
	}
}

func TestGenesis_Validate_RejectsNonCanonicalTarget(t *testing.T) {
	g := MainnetGenesis()
	g.Protocol.Consensus.InitialTarget = 0xffffffff
	if err := g.Validate(); err == nil {
		t.Error("expected validation error for non-canonical target")
	}
}

func TestGenesis_ToChainParams(t *testing.T) {
	g := TestnetGenesis()
	params := g.ToChainParams()
	if params.Time != uint32(g.Timestamp) {
		t.Errorf("Time = %d, want %d", params.Time, g.Timestamp)
	}
	if params.Target != g.Protocol.Consensus.InitialTarget {
		t.Errorf("Target = %#x, want %#x", params.Target, g.Protocol.Consensus.InitialTarget)
	}
	if len(params.Alloc) != len(g.Alloc) {
		t.Errorf("Alloc length = %d, want %d", len(params.Alloc), len(g.Alloc))
	}
}
