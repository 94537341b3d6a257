package media

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// FFmpeg wraps the generic media transcoder. It serves two roles: fallback
// subtitle extraction when the container identify step finds no usable text
// tracks, and conversion of arbitrary subtitle formats to SRT.
type FFmpeg struct {
	ffmpegCmd  string
	ffprobeCmd string

	// timeout bounds every single extraction/conversion; hitting it is a
	// file-local failure, not a run-local one.
	timeout time.Duration

	run CommandRunner
}

func NewFFmpeg(timeout time.Duration) *FFmpeg {
	return &FFmpeg{
		ffmpegCmd:  "ffmpeg",
		ffprobeCmd: "ffprobe",
		timeout:    timeout,
		run:        runCommand,
	}
}

// CountSubtitleStreams probes the container and returns the number of
// subtitle streams, text or bitmap alike.
func (f *FFmpeg) CountSubtitleStreams(ctx context.Context, mediaPath string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	result, err := f.run(ctx, f.ffprobeCmd,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "s",
		mediaPath)
	if err != nil {
		return 0, fmt.Errorf("failed to run ffprobe: %w", err)
	}
	if result.ExitCode != 0 {
		return 0, fmt.Errorf("ffprobe exited with status %d: %s", result.ExitCode, string(result.Stderr))
	}

	var probe struct {
		Streams []struct {
			Index     int    `json:"index"`
			CodecName string `json:"codec_name"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(result.Stdout, &probe); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	return len(probe.Streams), nil
}

// ExtractStreamToSRT demuxes subtitle stream streamIndex (0-based among
// subtitle streams) and forces SRT output.
func (f *FFmpeg) ExtractStreamToSRT(ctx context.Context, mediaPath string, streamIndex int, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	result, err := f.run(ctx, f.ffmpegCmd,
		"-y",
		"-loglevel", "error",
		"-i", mediaPath,
		"-map", fmt.Sprintf("0:s:%d", streamIndex),
		"-c:s", "srt",
		"-f", "srt",
		outputPath)
	if err != nil {
		return fmt.Errorf("failed to run ffmpeg: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("ffmpeg exited with status %d: %s", result.ExitCode, string(result.Stderr))
	}
	return nil
}

// ConvertToSRT converts a subtitle file of any text format to SRT.
func (f *FFmpeg) ConvertToSRT(ctx context.Context, inputPath, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	result, err := f.run(ctx, f.ffmpegCmd,
		"-y",
		"-loglevel", "error",
		"-i", inputPath,
		"-f", "srt",
		outputPath)
	if err != nil {
		return fmt.Errorf("failed to run ffmpeg: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("ffmpeg exited with status %d: %s", result.ExitCode, string(result.Stderr))
	}
	return nil
}
