package types

import (
	"time"

	"github.com/google/uuid"
)

// CurveValidation summarises the validator's verdict on the digitized curve
type CurveValidation struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

// ComprehensiveReport is the final output of a successful analysis run.
type ComprehensiveReport struct {
	RunID         uuid.UUID            `json:"run_id"`
	Curve         *RetentionCurve      `json:"curve"`
	Validation    CurveValidation      `json:"validation"`
	Video         *VideoMetadata       `json:"video,omitempty"`
	AudioBlocks   []ContentBlock       `json:"audio_blocks"`
	TextBlocks    []ContentBlock       `json:"text_blocks"`
	VisualBlocks  []ContentBlock       `json:"visual_blocks"`
	Metrics       []BlockDropoutMetric `json:"metrics"`
	TopDropoffs   []ContentBlock       `json:"top_dropoffs,omitempty"`
	FallbackKinds []BlockKind          `json:"fallback_kinds,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// Blocks returns the block collection for a kind
func (r *ComprehensiveReport) Blocks(kind BlockKind) []ContentBlock {
	switch kind {
	case BlockKindAudio:
		return r.AudioBlocks
	case BlockKindText:
		return r.TextBlocks
	case BlockKindVisual:
		return r.VisualBlocks
	}
	return nil
}

// SetBlocks replaces the block collection for a kind
func (r *ComprehensiveReport) SetBlocks(kind BlockKind, blocks []ContentBlock) {
	switch kind {
	case BlockKindAudio:
		r.AudioBlocks = blocks
	case BlockKindText:
		r.TextBlocks = blocks
	case BlockKindVisual:
		r.VisualBlocks = blocks
	}
}
