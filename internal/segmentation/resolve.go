package segmentation

import (
	"sort"

	"github.com/jonathan/retention-insights/internal/types"
)

// ResolveOverlaps orders blocks by start time and removes overlaps: where a block runs
// into the next one it is cut at the next block's start, unless that would leave it
// shorter than types.MinBlockDuration, in which case it keeps the minimum length and the
// next block starts later. Every returned block is at least the minimum duration.
// The input slice is not modified.
func ResolveOverlaps(blocks []types.ContentBlock) []types.ContentBlock {
	out := make([]types.ContentBlock, len(blocks))
	copy(out, blocks)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].EndTime < out[j].EndTime
	})

	for i := range out {
		ensureMinDuration(&out[i])
	}

	for i := 1; i < len(out); i++ {
		prev, next := &out[i-1], &out[i]
		if next.StartTime >= prev.EndTime {
			continue
		}
		prev.EndTime = next.StartTime
		if prev.Duration() < types.MinBlockDuration {
			prev.EndTime = prev.StartTime + types.MinBlockDuration
			next.StartTime = prev.EndTime
			ensureMinDuration(next)
		}
	}
	return out
}

func ensureMinDuration(b *types.ContentBlock) {
	if b.StartTime < 0 {
		b.StartTime = 0
	}
	if b.EndTime-b.StartTime < types.MinBlockDuration {
		b.EndTime = b.StartTime + types.MinBlockDuration
	}
}

// Overlapping reports the first pair of adjacent blocks that overlap, or -1
func Overlapping(blocks []types.ContentBlock) int {
	for i := 1; i < len(blocks); i++ {
		if blocks[i].StartTime < blocks[i-1].EndTime {
			return i - 1
		}
	}
	return -1
}
