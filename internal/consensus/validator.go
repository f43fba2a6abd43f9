package consensus

import (
	"errors"
	"fmt"

	"github.com/INT-devs/intcoin/pkg/block"
	"github.com/INT-devs/intcoin/pkg/script"
	"github.com/INT-devs/intcoin/pkg/tx"
	"github.com/INT-devs/intcoin/pkg/types"
)

// Phase B validation errors.
var (
	ErrBadTarget            = errors.New("target does not match expected retarget")
	ErrBadTime              = errors.New("block time violates median-past or future-drift rule")
	ErrBadCoinbaseHeight    = errors.New("coinbase embedded height does not match parent height + 1")
	ErrImmatureCoinbase     = errors.New("input spends an immature coinbase output")
	ErrExcessCoinbaseOutput = errors.New("coinbase output total exceeds subsidy plus fees")
	ErrTooManySigOps        = errors.New("block exceeds sigop cost limit")
	ErrFeeOverflow          = errors.New("accumulated fees overflow")
)

// CoinbaseMaturity is the number of confirmations a coinbase output
// needs before it may be spent by a connecting block.
const CoinbaseMaturity = 100

// MaxBlockSigOps caps the number of CHECK_SIG_PQ evaluations a single
// block may require during connection.
const MaxBlockSigOps = 80000

// ParentInfo is the subset of the chain tip's block-index entry Phase B
// needs to validate a candidate child block.
type ParentInfo struct {
	Height uint64
	Time   uint32
	Target uint32
}

// UTXOSnapshot is the contextual view of the UTXO set Phase B validates
// against: like tx.UTXOProvider, but also reporting the origin height
// and coinbase-ness of each entry, which the maturity rule needs.
type UTXOSnapshot interface {
	GetUTXO(op types.Outpoint) (value uint64, lockScript types.Script, originHeight uint64, fromCoinbase bool, err error)
	HasUTXO(op types.Outpoint) bool
}

// Context bundles the ancestor data Phase B validation needs: parent
// state, the time windows feeding the retarget and median-time-past
// rules, the wall-clock validation is run against, the expected block
// subsidy (computed by internal/emission), and a UTXO snapshot.
type Context struct {
	Parent ParentInfo
	// RetargetTimes is the ascending block-time sequence from the oldest
	// ancestor in the retarget window through the parent (inclusive).
	RetargetTimes []uint32
	// MedianPastTimes is the last (up to MedianTimeWindow) block times
	// ending at the parent, used for the median-time-past rule.
	MedianPastTimes []uint32
	Now             uint32
	Subsidy         uint64
	Snapshot        UTXOSnapshot
}

// Validator runs the two-phase consensus checks over candidate blocks.
type Validator struct {
	Difficulty *DifficultyEngine
}

// NewValidator builds a Validator driven by the given difficulty engine.
func NewValidator(difficulty *DifficultyEngine) *Validator {
	return &Validator{Difficulty: difficulty}
}

// ValidatePhaseA runs the context-free checks: block/tx structure (size,
// counts, order, merkle root — pkg/block.Validate) plus the header's
// self-consistency against its own declared target, under the epoch key
// for the block's height.
func (v *Validator) ValidatePhaseA(blk *block.Block, epochKey types.Hash) error {
	if err := blk.Validate(); err != nil {
		return fmt.Errorf("structure: %w", err)
	}
	if err := VerifyHeaderPoW(blk.Header, epochKey); err != nil {
		return fmt.Errorf("proof of work: %w", err)
	}
	return nil
}

// utxoAdapter narrows a UTXOSnapshot down to tx.UTXOProvider so
// Transaction.ValidateWithUTXOs can run its script-execution and fee
// arithmetic unchanged; the maturity check (which needs the extra
// fields UTXOSnapshot carries) is done separately in ValidatePhaseB.
type utxoAdapter struct{ snap UTXOSnapshot }

func (a utxoAdapter) GetUTXO(op types.Outpoint) (uint64, types.Script, error) {
	value, lockScript, _, _, err := a.snap.GetUTXO(op)
	return value, lockScript, err
}

func (a utxoAdapter) HasUTXO(op types.Outpoint) bool { return a.snap.HasUTXO(op) }

// ValidatePhaseB runs the contextual checks that require chain state:
// target retarget, timestamp rules, coinbase height/maturity/subsidy,
// per-input script execution and fees, and the block sigop budget.
// Callers are expected to have already confirmed the parent block is
// Validated (rule 1 of spec §4.7 is chain-index bookkeeping, not
// re-checked here) and that no two transactions in the block
// double-spend the same outpoint (already enforced by
// pkg/block.Validate, which ValidatePhaseA already ran). Returns the
// total fees collected by the block.
func (v *Validator) ValidatePhaseB(blk *block.Block, cctx Context) (uint64, error) {
	expectedTarget := v.Difficulty.NextTarget(cctx.Parent.Target, cctx.RetargetTimes)
	if blk.Header.Target != expectedTarget {
		return 0, fmt.Errorf("%w: got 0x%08x want 0x%08x", ErrBadTarget, blk.Header.Target, expectedTarget)
	}

	medianPast := MedianTime(cctx.MedianPastTimes)
	if blk.Header.Time <= medianPast {
		return 0, fmt.Errorf("%w: time %d must exceed median-past %d", ErrBadTime, blk.Header.Time, medianPast)
	}
	if uint64(blk.Header.Time) > uint64(cctx.Now)+MaxFutureDrift {
		return 0, fmt.Errorf("%w: time %d exceeds now+%ds", ErrBadTime, blk.Header.Time, MaxFutureDrift)
	}

	wantHeight := cctx.Parent.Height + 1
	coinbase := blk.Transactions[0]
	embeddedHeight, ok := coinbase.Inputs[0].CoinbaseHeight()
	if !ok {
		return 0, fmt.Errorf("%w: unreadable embedded height", ErrBadCoinbaseHeight)
	}
	if embeddedHeight != wantHeight {
		return 0, fmt.Errorf("%w: got %d want %d", ErrBadCoinbaseHeight, embeddedHeight, wantHeight)
	}

	adapter := utxoAdapter{snap: cctx.Snapshot}
	var totalFees uint64
	totalSigOps := 0

	for i, t := range blk.Transactions {
		if t.IsCoinbase() {
			continue
		}

		for _, in := range t.Inputs {
			_, lockScript, originHeight, fromCoinbase, err := cctx.Snapshot.GetUTXO(in.PrevOut)
			if err != nil {
				return 0, fmt.Errorf("tx %d: input %s: %w", i, in.PrevOut, err)
			}
			if fromCoinbase && wantHeight-originHeight < CoinbaseMaturity {
				return 0, fmt.Errorf("tx %d: input %s: %w: needs %d confirmations, has %d",
					i, in.PrevOut, ErrImmatureCoinbase, CoinbaseMaturity, wantHeight-originHeight)
			}
			sigOps, err := script.CountSigOps(lockScript)
			if err != nil {
				return 0, fmt.Errorf("tx %d: input %s: %w", i, in.PrevOut, err)
			}
			totalSigOps += sigOps
		}

		fee, err := t.ValidateWithUTXOs(adapter)
		if err != nil {
			return 0, fmt.Errorf("tx %d: %w", i, err)
		}
		if totalFees > ^uint64(0)-fee {
			return 0, fmt.Errorf("tx %d: %w", i, ErrFeeOverflow)
		}
		totalFees += fee
	}

	if totalSigOps > MaxBlockSigOps {
		return 0, fmt.Errorf("%w: %d ops, max %d", ErrTooManySigOps, totalSigOps, MaxBlockSigOps)
	}

	coinbaseTotal, err := coinbase.TotalOutputValue()
	if err != nil {
		return 0, fmt.Errorf("coinbase: %w", err)
	}
	maxCoinbaseOutput := cctx.Subsidy + totalFees
	if coinbaseTotal > maxCoinbaseOutput {
		return 0, fmt.Errorf("%w: coinbase pays %d, max %d (subsidy %d + fees %d)",
			ErrExcessCoinbaseOutput, coinbaseTotal, maxCoinbaseOutput, cctx.Subsidy, totalFees)
	}

	return totalFees, nil
}

var _ tx.UTXOProvider = utxoAdapter{}
