package pipeline

import (
	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/media"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/subtitle"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/pkg/log"
)

// SelectTrack picks the single best translation candidate among the
// container's subtitle tracks.
//
// The fixed language priority list is walked in order; the first non-bitmap
// track matching the priority entry wins, ties within a language resolved by
// track-id order (ListTracks already returns tracks sorted by id). When no
// priority language matches, the first non-bitmap track wins. When every
// track is bitmap the first track is returned anyway as an explicit
// lower-quality fallback.
func SelectTrack(tracks []media.Track) (media.Track, bool) {
	if len(tracks) == 0 {
		return media.Track{}, false
	}

	best := media.Track{}
	bestPriority := -1
	for _, track := range tracks {
		if track.IsBitmap() {
			continue
		}
		priority := subtitle.LangPriority(track.Language)
		if priority < 0 {
			continue
		}
		if bestPriority < 0 || priority < bestPriority {
			best = track
			bestPriority = priority
		}
	}
	if bestPriority >= 0 {
		return best, true
	}

	for _, track := range tracks {
		if !track.IsBitmap() {
			return track, true
		}
	}

	log.Warn("All subtitle tracks are bitmap, falling back to track %d (%s)",
		tracks[0].ID, tracks[0].CodecID)
	return tracks[0], true
}
