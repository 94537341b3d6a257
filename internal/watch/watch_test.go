package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/media"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/pipeline"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/translator"
)

func identifyRunner(lang string, calls *int) media.CommandRunner {
	return func(ctx context.Context, name string, args ...string) (media.CommandResult, error) {
		if calls != nil {
			*calls++
		}
		out := fmt.Sprintf(`{
			"container": {"recognized": true, "supported": true},
			"tracks": [
				{"id": 1, "type": "subtitles", "properties": {"codec_id": "S_TEXT/UTF8", "language": %q}}
			]
		}`, lang)
		return media.CommandResult{Stdout: []byte(out)}, nil
	}
}

func TestScanSkipsContainersWithTargetTrack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "movie.mkv"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	identifyCalls := 0
	mkv := media.NewMKVToolnix(1).WithRunner(identifyRunner("por", &identifyCalls))

	pipeRuns := 0
	pipe := pipeline.New(pipeline.Config{
		MKV: media.NewMKVToolnix(1).WithRunner(func(ctx context.Context, name string, args ...string) (media.CommandResult, error) {
			pipeRuns++
			return media.CommandResult{}, fmt.Errorf("pipeline should not run")
		}),
		FFmpeg:     media.NewFFmpeg(time.Second),
		Translator: translator.NewClient(translator.Config{APIURL: "http://localhost:0"}),
		TargetLang: "por",
	})

	s := NewService(dir, "*/15 * * * *", "por", cron.New(), pipe, mkv)
	require.NoError(t, s.Scan(context.Background()))

	// only movie.mkv is inspected, and the target track short-circuits the run
	assert.Equal(t, 1, identifyCalls)
	assert.Equal(t, 0, pipeRuns)
}

func TestHasTargetTrack(t *testing.T) {
	mkv := media.NewMKVToolnix(1).WithRunner(identifyRunner("eng", nil))
	s := NewService(t.TempDir(), "*/15 * * * *", "pt-br", cron.New(), nil, mkv)

	has, err := s.hasTargetTrack(context.Background(), "movie.mkv")
	require.NoError(t, err)
	assert.False(t, has)

	s.mkv = media.NewMKVToolnix(1).WithRunner(identifyRunner("pt-br", nil))
	has, err = s.hasTargetTrack(context.Background(), "movie.mkv")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestSinceTimeCapsCatchUp(t *testing.T) {
	s := NewService(t.TempDir(), "0 0 1 1 *", "por", cron.New(), nil, nil)

	since, err := s.sinceTime()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(-maxCatchUp), since, time.Minute)
}

func TestScheduleRejectsBadCron(t *testing.T) {
	s := NewService(t.TempDir(), "not a cron expr", "por", cron.New(), nil, nil)
	assert.Error(t, s.Schedule(context.Background()))
}
