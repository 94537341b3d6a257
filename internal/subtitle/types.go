package subtitle

import "time"

// Block represents a single timed cue of an SRT file.
type Block struct {
	Index     int           // block index as written in the file
	StartTime time.Duration // cue start
	EndTime   time.Duration // cue end
	Text      []string      // text lines, in order
}

// Duration returns the on-screen time of the block.
func (b Block) Duration() time.Duration {
	return b.EndTime - b.StartTime
}

// Format is the subtitle file format inferred from the file extension.
type Format string

const (
	FormatSRT     Format = "srt"
	FormatASS     Format = "ass"
	FormatVTT     Format = "vtt"
	FormatUnknown Format = "unknown"
)

// FormatFromPath infers the subtitle format from a file path.
func FormatFromPath(path string) Format {
	switch {
	case hasExt(path, ".srt"):
		return FormatSRT
	case hasExt(path, ".ass"), hasExt(path, ".ssa"):
		return FormatASS
	case hasExt(path, ".vtt"):
		return FormatVTT
	default:
		return FormatUnknown
	}
}
