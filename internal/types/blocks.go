package types

import (
	"fmt"

	"github.com/google/uuid"
)

// BlockKind identifies which observation stream a content block was derived from.
type BlockKind string

// BlockKind constants
const (
	BlockKindAudio  BlockKind = "audio"
	BlockKindText   BlockKind = "text"
	BlockKindVisual BlockKind = "visual"
)

// AllBlockKinds lists every kind in report order
var AllBlockKinds = []BlockKind{BlockKindAudio, BlockKindText, BlockKindVisual}

// Valid reports whether k is a known block kind
func (k BlockKind) Valid() bool {
	switch k {
	case BlockKindAudio, BlockKindText, BlockKindVisual:
		return true
	}
	return false
}

// MinBlockDuration is the shortest duration, in seconds, a resolved content block may have.
const MinBlockDuration = 0.5

// ContentBlock is a named, time-bounded segment of one observation stream.
// Dropout is nil until the correlator has enriched the block.
type ContentBlock struct {
	ID        uuid.UUID           `json:"id"`
	Name      string              `json:"name"`
	StartTime float64             `json:"start_time"`
	EndTime   float64             `json:"end_time"`
	Kind      BlockKind           `json:"kind"`
	Content   string              `json:"content"`
	Purpose   string              `json:"purpose,omitempty"`
	Dropout   *BlockDropoutMetric `json:"dropout,omitempty"`
}

// NewContentBlock creates a block of the given kind, rejecting unknown kinds and inverted ranges.
func NewContentBlock(kind BlockKind, name string, start, end float64, content, purpose string) (ContentBlock, error) {
	if !kind.Valid() {
		return ContentBlock{}, fmt.Errorf("unknown block kind %q", kind)
	}
	if start < 0 || end < start {
		return ContentBlock{}, fmt.Errorf("invalid block range [%.2f, %.2f]", start, end)
	}
	return ContentBlock{
		ID:        uuid.New(),
		Name:      name,
		StartTime: start,
		EndTime:   end,
		Kind:      kind,
		Content:   content,
		Purpose:   purpose,
	}, nil
}

// Duration returns the block length in seconds
func (b ContentBlock) Duration() float64 {
	return b.EndTime - b.StartTime
}

// BlockDropoutMetric holds the retention change measured across one content block.
type BlockDropoutMetric struct {
	BlockID           uuid.UUID `json:"block_id"`
	StartRetention    float64   `json:"start_retention"`
	EndRetention      float64   `json:"end_retention"`
	AbsoluteDropout   float64   `json:"absolute_dropout"`
	RelativeDropout   float64   `json:"relative_dropout"`
	DropoutPercentage float64   `json:"dropout_percentage"`
}
