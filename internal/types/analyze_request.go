package types

import (
	"github.com/go-playground/validator/v10"
)

// AnalyzeRequest holds the inputs of one analysis run.
type AnalyzeRequest struct {
	VideoPath      string  `json:"video_path" validate:"required,file"`
	CurveImagePath string  `json:"curve_image_path" validate:"required,file"`
	VideoDuration  float64 `json:"video_duration,omitempty" validate:"gte=0"`
	StepSeconds    float64 `json:"step_seconds,omitempty" validate:"gte=0,lte=60"`
	MaxFrames      int     `json:"max_frames,omitempty" validate:"gte=0,lte=10000"`
}

// Validate validates the AnalyzeRequest using the validator.
func (r *AnalyzeRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
