package segmentation

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/jonathan/retention-insights/internal/llm"
	"github.com/jonathan/retention-insights/internal/schemas"
	"github.com/jonathan/retention-insights/internal/types"
)

// DefaultFallbackBlockSeconds is the width of naive fallback blocks
const DefaultFallbackBlockSeconds = 5.0

// fallbackPurpose marks blocks that did not come from the model
const fallbackPurpose = "fallback"

// proposal is one block as proposed by the model
type proposal struct {
	Name      string  `json:"name"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Content   string  `json:"content"`
	Purpose   string  `json:"purpose"`
}

// Timeline is what a segmentation works over: one stream's observations and the video length
type Timeline struct {
	Kind          types.BlockKind
	Observations  []types.Observation
	TotalDuration float64
}

// End returns the timeline length, falling back to the last observation
func (tl Timeline) End() float64 {
	if tl.TotalDuration > 0 {
		return tl.TotalDuration
	}
	end := 0.0
	for _, obs := range tl.Observations {
		end = math.Max(end, obs.Timestamp)
	}
	return end
}

// ParseProposals decodes the model's block list into resolved content blocks.
// Blocks that start at or past the end of the timeline are dropped and ends are clipped to it.
func ParseProposals(raw string, tl Timeline) ([]types.ContentBlock, error) {
	cleaned := llm.CleanJSONBlock(raw)
	if cleaned == "" {
		return nil, &llm.ParseError{Message: "empty segmentation response"}
	}
	if err := schemas.Validate(schemas.ContentBlocks, []byte(cleaned)); err != nil {
		return nil, &llm.ParseError{Message: "segmentation response does not match schema", Cause: err}
	}

	var proposals []proposal
	if err := json.Unmarshal([]byte(cleaned), &proposals); err != nil {
		return nil, &llm.ParseError{Message: "failed to decode segmentation response", Cause: err}
	}

	end := tl.End()
	blocks := make([]types.ContentBlock, 0, len(proposals))
	for _, p := range proposals {
		start, stop := p.StartTime, p.EndTime
		if stop < start {
			start, stop = stop, start
		}
		if end > 0 {
			if start >= end {
				continue
			}
			stop = math.Min(stop, end)
		}
		name := strings.TrimSpace(p.Name)
		if name == "" {
			name = fmt.Sprintf("%s block %d", tl.Kind, len(blocks)+1)
		}
		block, err := types.NewContentBlock(tl.Kind, name, start, stop, strings.TrimSpace(p.Content), strings.TrimSpace(p.Purpose))
		if err != nil {
			continue
		}
		blocks = append(blocks, block)
	}
	if len(blocks) == 0 {
		return nil, &llm.ParseError{Message: "segmentation response contains no usable blocks"}
	}
	return ResolveOverlaps(blocks), nil
}

// ParseOrFallback parses the model's proposal and falls back to equal-width blocks
// when it cannot be used. The second return value reports whether the fallback was taken.
func ParseOrFallback(raw string, tl Timeline, fallbackSeconds float64) ([]types.ContentBlock, bool) {
	blocks, err := ParseProposals(raw, tl)
	if err != nil {
		return NaiveSegments(tl, fallbackSeconds), true
	}
	return blocks, false
}

// NaiveSegments cuts the timeline into equal-width blocks. A trailing remainder shorter
// than the minimum block duration is merged into the previous block. Each block's content
// is the distinct observation text that falls inside it.
func NaiveSegments(tl Timeline, width float64) []types.ContentBlock {
	if width < types.MinBlockDuration {
		width = DefaultFallbackBlockSeconds
	}
	end := tl.End()
	if end < types.MinBlockDuration {
		end = types.MinBlockDuration
	}

	var bounds [][2]float64
	for start := 0.0; start < end; start += width {
		stop := math.Min(start+width, end)
		if stop-start < types.MinBlockDuration && len(bounds) > 0 {
			bounds[len(bounds)-1][1] = stop
			break
		}
		bounds = append(bounds, [2]float64{start, stop})
	}

	blocks := make([]types.ContentBlock, 0, len(bounds))
	for i, b := range bounds {
		last := i == len(bounds)-1
		content := observationText(tl.Observations, b[0], b[1], last)
		block, err := types.NewContentBlock(tl.Kind, fmt.Sprintf("Segment %d", i+1), types.Round2(b[0]), types.Round2(b[1]), content, fallbackPurpose)
		if err != nil {
			continue
		}
		blocks = append(blocks, block)
	}
	return blocks
}

// observationText joins the distinct non-empty texts observed in [start, end), or [start, end] for the final block
func observationText(observations []types.Observation, start, end float64, inclusive bool) string {
	var parts []string
	seen := make(map[string]bool)
	for _, obs := range observations {
		if obs.Timestamp < start || obs.Timestamp > end || (!inclusive && obs.Timestamp == end) {
			continue
		}
		text := strings.TrimSpace(obs.Text)
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		parts = append(parts, text)
	}
	return strings.Join(parts, " / ")
}
