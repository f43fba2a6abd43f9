package chain

import (
	"fmt"

	"github.com/INT-devs/intcoin/internal/consensus"
	"github.com/INT-devs/intcoin/pkg/block"
	"github.com/INT-devs/intcoin/pkg/types"
)

// TemplateParams carries everything a block template builder outside this
// package needs to assemble and seal a candidate child of the current
// main-chain tip: the height and target it must satisfy, the epoch key
// its proof of work must be sealed under, and the earliest timestamp the
// network will accept.
type TemplateParams struct {
	Height   uint64
	PrevHash types.Hash
	Target   uint32
	EpochKey types.Hash
	MinTime  uint32
}

// NextTemplate computes the parameters for a block extending the current
// tip: the retarget-adjusted target, the epoch key its header must be
// sealed under, and the minimum timestamp (strictly after median-past).
func (c *Chain) NextTemplate() (TemplateParams, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	parent, err := c.blocks.GetIndexEntry(c.state.TipHash)
	if err != nil {
		return TemplateParams{}, fmt.Errorf("get tip index entry: %w", err)
	}

	height := parent.Height + 1
	retarget := c.timeWindow(parent, consensus.RetargetWindow+1)
	target := c.validator.Difficulty.NextTarget(parent.Header.Target, retarget)

	median := c.timeWindow(parent, consensus.MedianTimeWindow)
	minTime := consensus.MedianTime(median) + 1

	epochKey, err := consensus.EpochKey(height, func(h uint64) (*block.Header, error) {
		return c.ancestorHeader(parent, h)
	})
	if err != nil {
		return TemplateParams{}, fmt.Errorf("epoch key: %w", err)
	}

	return TemplateParams{
		Height:   height,
		PrevHash: parent.Hash,
		Target:   target,
		EpochKey: epochKey,
		MinTime:  minTime,
	}, nil
}
