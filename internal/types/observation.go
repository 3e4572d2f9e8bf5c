package types

// Observation is a single timestamped analyzer output (transcript text,
// on-screen text or a visual scene description).
type Observation struct {
	Timestamp float64 `json:"timestamp"`
	Text      string  `json:"text"`
}

// TranscriptSegment is one speech-to-text segment
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Frame is an extracted still image on disk
type Frame struct {
	Index     int     `json:"index"`
	Timestamp float64 `json:"timestamp"`
	Path      string  `json:"path"`
}

// VideoMetadata describes the probed source video
type VideoMetadata struct {
	Duration   float64 `json:"duration"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	HasAudio   bool    `json:"has_audio"`
	VideoCodec string  `json:"video_codec,omitempty"`
	AudioCodec string  `json:"audio_codec,omitempty"`
}
