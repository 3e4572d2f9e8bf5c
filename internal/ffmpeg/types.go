package ffmpeg

import "github.com/jonathan/retention-insights/internal/types"

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	FilePath     string
	Duration     float64 // seconds
	Width        int
	Height       int
	FPS          float64
	Bitrate      int64
	VideoCodec   string
	HasAudio     bool
	AudioCodec   string
	AudioBitrate int64
}

// Metadata converts the probe result to the pipeline's metadata type
func (v *VideoInfo) Metadata() *types.VideoMetadata {
	return &types.VideoMetadata{
		Duration:   v.Duration,
		Width:      v.Width,
		Height:     v.Height,
		FPS:        v.FPS,
		HasAudio:   v.HasAudio,
		VideoCodec: v.VideoCodec,
		AudioCodec: v.AudioCodec,
	}
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame      int
	FPS        float64
	Bitrate    string
	Time       string
	Seconds    float64
	Speed      string
	Percentage float64
	Done       bool
}

// ProgressFunc is a callback for progress updates during ffmpeg operations.
// Called once per -progress block as the operation executes.
type ProgressFunc func(*Progress)

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	Duration        float64 // input duration in seconds, used to compute Percentage
	ProgressHandler ProgressFunc
	LogHandler      func(line string)
}

// FrameOptions controls single-frame JPEG extraction
type FrameOptions struct {
	Width   int // scaled output width; height keeps aspect ratio
	Quality int // JPEG qscale, 2 (best) to 31
}

// DefaultFrameOptions returns frame options suitable for vision-model input
func DefaultFrameOptions() FrameOptions {
	return FrameOptions{Width: 640, Quality: 4}
}

// AudioFormat defines audio extraction format options
type AudioFormat struct {
	Codec      string
	SampleRate int
	Channels   int
	Bitrate    string
}

// DefaultSpeechFormat returns a compact mono MP3 format for speech-to-text
func DefaultSpeechFormat() AudioFormat {
	return AudioFormat{
		Codec:      "libmp3lame",
		SampleRate: 16000,
		Channels:   1,
		Bitrate:    "64k",
	}
}
