package segmentation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/retention-insights/internal/types"
)

const epsilon = 1e-9

func span(start, end float64) types.ContentBlock {
	return types.ContentBlock{Name: "b", Kind: types.BlockKindAudio, StartTime: start, EndTime: end}
}

func times(blocks []types.ContentBlock) [][2]float64 {
	out := make([][2]float64, len(blocks))
	for i, b := range blocks {
		out[i] = [2]float64{b.StartTime, b.EndTime}
	}
	return out
}

func TestResolveOverlaps_ClampsPrevious(t *testing.T) {
	got := ResolveOverlaps([]types.ContentBlock{span(0, 2), span(1, 3)})
	assert.Equal(t, [][2]float64{{0, 1}, {1, 3}}, times(got))
}

func TestResolveOverlaps_SortsFirst(t *testing.T) {
	got := ResolveOverlaps([]types.ContentBlock{span(4, 6), span(0, 2), span(2, 4)})
	assert.Equal(t, [][2]float64{{0, 2}, {2, 4}, {4, 6}}, times(got))
}

func TestResolveOverlaps_KeepsMinimumDuration(t *testing.T) {
	got := ResolveOverlaps([]types.ContentBlock{span(0, 3), span(0.2, 1)})
	assert.Equal(t, [][2]float64{{0, 0.5}, {0.5, 1}}, times(got))
}

func TestResolveOverlaps_PushedBlockStaysLongEnough(t *testing.T) {
	got := ResolveOverlaps([]types.ContentBlock{span(0, 1), span(0.1, 0.7)})
	require.Len(t, got, 2)
	assert.Equal(t, [][2]float64{{0, 0.5}, {0.5, 1}}, times(got))
}

func TestResolveOverlaps_ExtendsTinyBlocks(t *testing.T) {
	got := ResolveOverlaps([]types.ContentBlock{span(1, 1.1)})
	assert.Equal(t, [][2]float64{{1, 1.5}}, times(got))
}

func TestResolveOverlaps_DoesNotModifyInput(t *testing.T) {
	in := []types.ContentBlock{span(1, 3), span(0, 2)}
	_ = ResolveOverlaps(in)
	assert.Equal(t, 1.0, in[0].StartTime)
	assert.Equal(t, 3.0, in[0].EndTime)
}

func TestResolveOverlaps_Empty(t *testing.T) {
	assert.Empty(t, ResolveOverlaps(nil))
}

func TestResolveOverlaps_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 500; trial++ {
		n := rng.Intn(12)
		blocks := make([]types.ContentBlock, n)
		for i := range blocks {
			start := rng.Float64() * 30
			blocks[i] = span(start, start+rng.Float64()*6)
		}

		got := ResolveOverlaps(blocks)
		require.Len(t, got, n)
		assert.Equal(t, -1, Overlapping(got), "trial %d: %v", trial, times(got))
		for _, b := range got {
			assert.GreaterOrEqual(t, b.Duration(), types.MinBlockDuration-epsilon, "trial %d: %v", trial, times(got))
		}
	}
}

func TestOverlapping(t *testing.T) {
	assert.Equal(t, -1, Overlapping([]types.ContentBlock{span(0, 1), span(1, 2)}))
	assert.Equal(t, 1, Overlapping([]types.ContentBlock{span(0, 1), span(1, 2.5), span(2, 3)}))
}
