package consensus

import (
	"github.com/holiman/uint256"

	"github.com/INT-devs/intcoin/pkg/block"
)

// RetargetWindow is the number of prior blocks (N) the damped retarget
// looks back over.
const RetargetWindow = 60

// MedianTimeWindow is the number of prior block times used to compute
// the median-time-past a candidate block's timestamp must exceed.
const MedianTimeWindow = 11

// MaxFutureDrift is how far into the future (seconds) a block's
// timestamp may be relative to the validator's clock.
const MaxFutureDrift = 7200

// DifficultyEngine computes the next block's compact target from the
// timestamps and target of its ancestors, per the damped per-block
// retarget: adjusted span is clamped to a quarter/four-times band
// around the expected span before being applied, so no single
// hash-rate swing can move the target by more than 4x in one block.
type DifficultyEngine struct {
	// TargetBlockTime is the intended spacing between blocks, in seconds.
	TargetBlockTime uint32
	// MaxTargetCompact is the loosest target the engine will ever produce
	// (the easiest allowed difficulty).
	MaxTargetCompact uint32
}

// NewDifficultyEngine builds an engine for a chain with the given block
// spacing target.
func NewDifficultyEngine(targetBlockTime uint32) *DifficultyEngine {
	return &DifficultyEngine{
		TargetBlockTime:  targetBlockTime,
		MaxTargetCompact: block.MaxTargetCompact,
	}
}

// NextTarget computes the target a block extending parent must meet.
// times is the ascending sequence of block times from the oldest
// ancestor in the retarget window through the parent itself (so
// times[len(times)-1] is parent.time); it may be shorter than
// RetargetWindow+1 entries near genesis, in which case the retarget
// uses however many ancestors exist. parentTarget is the parent
// block's compact target.
func (d *DifficultyEngine) NextTarget(parentTarget uint32, times []uint32) uint32 {
	n := len(times) - 1
	if n <= 0 {
		return parentTarget
	}

	span := int64(times[len(times)-1]) - int64(times[0])
	expected := int64(d.TargetBlockTime) * int64(n)
	if expected <= 0 {
		return parentTarget
	}

	adjusted := dampedSpan(span, expected)

	target := block.ExpandTarget(parentTarget)
	target.Mul(target, uint256.NewInt(uint64(adjusted)))
	target.Div(target, uint256.NewInt(uint64(expected)))

	maxTarget := block.ExpandTarget(d.MaxTargetCompact)
	if target.Cmp(maxTarget) > 0 {
		target = maxTarget
	}

	return block.CompactFromTarget(target)
}

// dampedSpan applies the §4.3 damping formula:
// adjusted = span * (1 + (expected - span) / (4*expected)), clamped to
// [expected/4, expected*4].
func dampedSpan(span, expected int64) int64 {
	adjusted := span + span*(expected-span)/(4*expected)

	minSpan := expected / 4
	maxSpan := expected * 4
	if adjusted < minSpan {
		adjusted = minSpan
	}
	if adjusted > maxSpan {
		adjusted = maxSpan
	}
	if adjusted <= 0 {
		adjusted = 1
	}
	return adjusted
}

// MedianTime returns the median of the given block times, used for the
// 11-block median-time-past rule.
func MedianTime(times []uint32) uint32 {
	if len(times) == 0 {
		return 0
	}
	sorted := append([]uint32(nil), times...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return sorted[len(sorted)/2]
}
