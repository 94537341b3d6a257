package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/media"
)

func TestSelectTrack(t *testing.T) {
	srt := func(id int, lang string) media.Track {
		return media.Track{ID: id, Language: lang, CodecID: "S_TEXT/UTF8", Family: media.CodecSRT}
	}
	pgs := func(id int, lang string) media.Track {
		return media.Track{ID: id, Language: lang, CodecID: "S_HDMV/PGS", Family: media.CodecBitmap}
	}

	tests := []struct {
		name     string
		tracks   []media.Track
		wantID   int
		wantNone bool
	}{
		{
			name:     "empty",
			tracks:   nil,
			wantNone: true,
		},
		{
			name:   "single track",
			tracks: []media.Track{srt(2, "spa")},
			wantID: 2,
		},
		{
			name:   "english beats spanish regardless of order",
			tracks: []media.Track{srt(2, "spa"), srt(3, "eng")},
			wantID: 3,
		},
		{
			name:   "portuguese beats spanish",
			tracks: []media.Track{srt(2, "spa"), srt(3, "por")},
			wantID: 3,
		},
		{
			name:   "first of same language wins",
			tracks: []media.Track{srt(2, "eng"), srt(3, "eng")},
			wantID: 2,
		},
		{
			name:   "bitmap english loses to text spanish",
			tracks: []media.Track{pgs(2, "eng"), srt(3, "spa")},
			wantID: 3,
		},
		{
			name:   "unknown language text track beats bitmap",
			tracks: []media.Track{pgs(2, "eng"), srt(3, "und")},
			wantID: 3,
		},
		{
			name:   "all bitmap falls back to first track",
			tracks: []media.Track{pgs(2, "eng"), pgs(3, "por")},
			wantID: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track, ok := SelectTrack(tt.tracks)
			if tt.wantNone {
				assert.False(t, ok)
				return
			}
			assert.True(t, ok)
			assert.Equal(t, tt.wantID, track.ID)
		})
	}
}
