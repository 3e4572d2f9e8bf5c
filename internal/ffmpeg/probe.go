package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// ProbeVideo extracts metadata from a video file
func (e *Executor) ProbeVideo(ctx context.Context, filePath string) (*VideoInfo, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path is required")
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	}

	e.logger.Debug().Str("cmd", "ffprobe").Strs("args", args).Msg("probing video")

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	info, err := parseProbeOutput(output)
	if err != nil {
		return nil, err
	}
	info.FilePath = filePath
	return info, nil
}

// parseProbeOutput converts ffprobe JSON into VideoInfo
func parseProbeOutput(output []byte) (*VideoInfo, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &VideoInfo{}
	if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.Duration = dur
	}
	if br, err := strconv.ParseInt(probe.Format.BitRate, 10, 64); err == nil {
		info.Bitrate = br
	}

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			if info.VideoCodec != "" {
				continue
			}
			info.Width = stream.Width
			info.Height = stream.Height
			info.VideoCodec = stream.CodecName
			if stream.RFrameRate != "" {
				info.FPS = ParseFrameRate(stream.RFrameRate)
			}
		case "audio":
			info.HasAudio = true
			info.AudioCodec = stream.CodecName
			if br, err := strconv.ParseInt(stream.BitRate, 10, 64); err == nil {
				info.AudioBitrate = br
			}
		}
	}

	if info.VideoCodec == "" {
		return nil, fmt.Errorf("no video stream found")
	}
	return info, nil
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		BitRate    string `json:"bit_rate"`
	} `json:"streams"`
}
