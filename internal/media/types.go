package media

import "strings"

// CodecFamily groups subtitle codec IDs into the families the pipeline cares
// about. Bitmap subtitles cannot be parsed as text and are never translated.
type CodecFamily int

const (
	CodecUnknown CodecFamily = iota
	CodecSRT
	CodecASS
	CodecVTT
	CodecText
	CodecBitmap
)

// Track is one subtitle track inside a media container, as reported by the
// container identify step.
type Track struct {
	ID       int
	Language string // container language tag, "und" when absent
	CodecID  string // raw codec id, e.g. S_TEXT/UTF8
	Family   CodecFamily
	Name     string // track title, may be empty
}

// IsBitmap reports whether the track is an image-based subtitle.
func (t Track) IsBitmap() bool {
	return t.Family == CodecBitmap
}

// Ext returns the file extension matching the codec family when demuxed
// without conversion.
func (f CodecFamily) Ext() string {
	switch f {
	case CodecASS:
		return "ass"
	case CodecVTT:
		return "vtt"
	default:
		return "srt"
	}
}

func (f CodecFamily) String() string {
	switch f {
	case CodecSRT:
		return "srt"
	case CodecASS:
		return "ass"
	case CodecVTT:
		return "vtt"
	case CodecText:
		return "text"
	case CodecBitmap:
		return "bitmap"
	default:
		return "unknown"
	}
}

// familyForCodecID maps a Matroska subtitle codec id to its family.
func familyForCodecID(codecID string) CodecFamily {
	id := strings.ToUpper(codecID)
	switch {
	case strings.Contains(id, "S_TEXT/UTF8"), strings.Contains(id, "S_TEXT/ASCII"):
		return CodecSRT
	case strings.Contains(id, "SSA"), strings.Contains(id, "ASS"):
		return CodecASS
	case strings.Contains(id, "WEBVTT"):
		return CodecVTT
	case strings.Contains(id, "PGS"), strings.Contains(id, "VOBSUB"),
		strings.Contains(id, "S_HDMV"), strings.Contains(id, "S_IMAGE"),
		strings.Contains(id, "DVBSUB"), strings.Contains(id, "S_DVD"):
		return CodecBitmap
	case strings.HasPrefix(id, "S_TEXT"):
		return CodecText
	default:
		return CodecUnknown
	}
}
