package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/media"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/translator"
)

const englishSRT = `1
00:00:01,000 --> 00:00:03,000
Where have you been all this time?

2
00:00:04,000 --> 00:00:06,000
The weather should clear up tomorrow morning.

3
00:00:07,000 --> 00:00:09,000
Nobody expected the answer to be this simple.

4
00:00:10,000 --> 00:00:12,000
Please remember to close the door when you leave.

5
00:00:13,000 --> 00:00:15,000
Thank you for everything you have done.
`

const portugueseSRT = `1
00:00:01,000 --> 00:00:03,000
Onde voce esteve todo esse tempo?

2
00:00:04,000 --> 00:00:06,000
O tempo deve melhorar amanha de manha.

3
00:00:07,000 --> 00:00:09,000
Ninguem esperava que a resposta fosse tao simples.

4
00:00:10,000 --> 00:00:12,000
Lembre-se de fechar a porta quando sair.

5
00:00:13,000 --> 00:00:15,000
Obrigado por tudo que voce fez.
`

const spanishSRT = `1
00:00:01,000 --> 00:00:03,000
Donde has estado todo este tiempo?

2
00:00:04,000 --> 00:00:06,000
El tiempo deberia mejorar manana por la manana.

3
00:00:07,000 --> 00:00:09,000
Nadie esperaba que la respuesta fuera tan simple.

4
00:00:10,000 --> 00:00:12,000
Recuerda cerrar la puerta cuando salgas.

5
00:00:13,000 --> 00:00:15,000
Gracias por todo lo que has hecho.
`

// fakeContainer simulates the demux/mux tool pair against an in-memory track
// list, so the full pipeline can run without real media files.
type fakeContainer struct {
	mu       sync.Mutex
	tracks   []fakeTrack
	muxCalls int
}

type fakeTrack struct {
	id      int
	lang    string
	codecID string
	content string
}

func (c *fakeContainer) addTrack(lang, codecID, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks = append(c.tracks, fakeTrack{
		id:      len(c.tracks) + 1,
		lang:    lang,
		codecID: codecID,
		content: content,
	})
}

func (c *fakeContainer) trackCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tracks)
}

func (c *fakeContainer) muxCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muxCalls
}

func (c *fakeContainer) identifyJSON() []byte {
	type props struct {
		CodecID  string `json:"codec_id"`
		Language string `json:"language"`
	}
	type track struct {
		ID         int    `json:"id"`
		Type       string `json:"type"`
		Properties props  `json:"properties"`
	}
	out := struct {
		Container struct {
			Recognized bool `json:"recognized"`
			Supported  bool `json:"supported"`
		} `json:"container"`
		Tracks []track `json:"tracks"`
	}{}
	out.Container.Recognized = true
	out.Container.Supported = true
	for _, tr := range c.tracks {
		out.Tracks = append(out.Tracks, track{
			ID:   tr.id,
			Type: "subtitles",
			Properties: props{
				CodecID:  tr.codecID,
				Language: tr.lang,
			},
		})
	}
	data, _ := json.Marshal(out)
	return data
}

func (c *fakeContainer) runner(t *testing.T) media.CommandRunner {
	t.Helper()
	return func(ctx context.Context, name string, args ...string) (media.CommandResult, error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		switch {
		case name == "mkvmerge" && len(args) > 0 && args[0] == "-J":
			return media.CommandResult{Stdout: c.identifyJSON()}, nil

		case name == "mkvextract":
			spec := args[2]
			sep := strings.Index(spec, ":")
			id, err := strconv.Atoi(spec[:sep])
			require.NoError(t, err)
			for _, tr := range c.tracks {
				if tr.id == id {
					require.NoError(t, os.WriteFile(spec[sep+1:], []byte(tr.content), 0o644))
					return media.CommandResult{}, nil
				}
			}
			return media.CommandResult{ExitCode: 2, Stderr: []byte("no such track")}, nil

		case name == "mkvmerge" && args[0] == "-o":
			tmpPath := args[1]
			i := 3 // args[2] is the source container
			for i < len(args) {
				var lang string
				for strings.HasPrefix(args[i], "--") {
					if args[i] == "--language" {
						lang = strings.TrimPrefix(args[i+1], "0:")
					}
					i += 2
				}
				content, err := os.ReadFile(args[i])
				require.NoError(t, err)
				i++
				c.tracks = append(c.tracks, fakeTrack{
					id:      len(c.tracks) + 1,
					lang:    lang,
					codecID: "S_TEXT/UTF8",
					content: string(content),
				})
			}
			c.muxCalls++
			require.NoError(t, os.WriteFile(tmpPath, []byte("muxed"), 0o644))
			return media.CommandResult{}, nil
		}

		t.Fatalf("unexpected command: %s %v", name, args)
		return media.CommandResult{}, nil
	}
}

func emptyProbeRunner(t *testing.T) media.CommandRunner {
	t.Helper()
	return func(ctx context.Context, name string, args ...string) (media.CommandResult, error) {
		if name == "ffprobe" {
			return media.CommandResult{Stdout: []byte(`{"streams": []}`)}, nil
		}
		t.Fatalf("unexpected command: %s %v", name, args)
		return media.CommandResult{}, nil
	}
}

func translationServer(t *testing.T, response string, calls *int) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		if calls != nil {
			*calls++
		}
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"translated_text": response})
	}))
}

func newTestPipeline(t *testing.T, c *fakeContainer, apiURL, target string) *Pipeline {
	t.Helper()
	return New(Config{
		MKV:    media.NewMKVToolnix(1).WithRunner(c.runner(t)),
		FFmpeg: media.NewFFmpeg(5 * time.Second).WithRunner(emptyProbeRunner(t)),
		Translator: translator.NewClient(translator.Config{
			APIURL:     apiURL,
			MaxRetries: 2,
			RetryDelay: time.Millisecond,
		}),
		TargetLang: target,
	})
}

func writeContainer(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movie.mkv")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))
	return path
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRunAllTranslatesAndMerges(t *testing.T) {
	c := &fakeContainer{}
	c.addTrack("eng", "S_TEXT/UTF8", englishSRT)

	server := translationServer(t, portugueseSRT, nil)
	defer server.Close()

	containerPath := writeContainer(t)
	p := newTestPipeline(t, c, server.URL, "por")

	res, err := p.Run(context.Background(), containerPath, ModeAll)
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Len(t, res.Translated, 1)
	assert.Equal(t, 1, res.MergedTracks)
	assert.Equal(t, 1, c.muxCount())
	assert.Equal(t, 2, c.trackCount())

	// only the container survives cleanup
	assert.Equal(t, []string{"movie.mkv"}, listDir(t, filepath.Dir(containerPath)))
}

func TestRunAllRerunAddsNoDuplicateTracks(t *testing.T) {
	c := &fakeContainer{}
	c.addTrack("eng", "S_TEXT/UTF8", englishSRT)

	server := translationServer(t, portugueseSRT, nil)
	defer server.Close()

	containerPath := writeContainer(t)
	p := newTestPipeline(t, c, server.URL, "por")

	_, err := p.Run(context.Background(), containerPath, ModeAll)
	require.NoError(t, err)
	require.Equal(t, 2, c.trackCount())

	res, err := p.Run(context.Background(), containerPath, ModeAll)
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 0, res.MergedTracks)
	assert.Equal(t, 1, c.muxCount())
	assert.Equal(t, 2, c.trackCount())
	assert.Equal(t, []string{"movie.mkv"}, listDir(t, filepath.Dir(containerPath)))
}

func TestRunSelectPrefersEnglishSourceOverTargetPresence(t *testing.T) {
	// a spa track already in the container must not stop a spa-target run:
	// the selector still picks the eng track and translates it
	c := &fakeContainer{}
	c.addTrack("eng", "S_TEXT/UTF8", englishSRT)
	c.addTrack("spa", "S_TEXT/UTF8", spanishSRT)

	calls := 0
	server := translationServer(t, spanishSRT, &calls)
	defer server.Close()

	containerPath := writeContainer(t)
	p := newTestPipeline(t, c, server.URL, "spa")

	res, err := p.Run(context.Background(), containerPath, ModeSelect)
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.False(t, res.NothingToDo)
	assert.GreaterOrEqual(t, calls, 1)
	// the translated content duplicates the embedded spa track, so the
	// content-hash check drops it at merge time
	assert.Equal(t, 0, res.MergedTracks)
	assert.Equal(t, 2, c.trackCount())
	assert.Equal(t, []string{"movie.mkv"}, listDir(t, filepath.Dir(containerPath)))
}

func TestRunSelectNothingToDoWhenOnlyTargetTrack(t *testing.T) {
	c := &fakeContainer{}
	c.addTrack("por", "S_TEXT/UTF8", portugueseSRT)

	calls := 0
	server := translationServer(t, portugueseSRT, &calls)
	defer server.Close()

	containerPath := writeContainer(t)
	p := newTestPipeline(t, c, server.URL, "por")

	res, err := p.Run(context.Background(), containerPath, ModeSelect)
	require.NoError(t, err)

	assert.True(t, res.NothingToDo)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, c.muxCount())
}

func TestRunSelectKeepsSubtitleWhenTranslationFails(t *testing.T) {
	c := &fakeContainer{}
	c.addTrack("eng", "S_TEXT/UTF8", englishSRT)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	containerPath := writeContainer(t)
	p := newTestPipeline(t, c, server.URL, "por")

	res, err := p.Run(context.Background(), containerPath, ModeSelect)
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Len(t, res.FileFailures, 1)
	assert.Equal(t, 0, c.muxCount())

	require.NotEmpty(t, res.KeptSubtitle)
	assert.FileExists(t, res.KeptSubtitle)

	names := listDir(t, filepath.Dir(containerPath))
	assert.ElementsMatch(t, []string{"movie.mkv", filepath.Base(res.KeptSubtitle)}, names)
}

func TestRunAllFailsWhenAllTranslationsFail(t *testing.T) {
	c := &fakeContainer{}
	c.addTrack("eng", "S_TEXT/UTF8", englishSRT)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	containerPath := writeContainer(t)
	p := newTestPipeline(t, c, server.URL, "por")

	res, err := p.Run(context.Background(), containerPath, ModeAll)
	require.Error(t, err)

	assert.True(t, IsKind(err, ErrTranslationFailed))
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, 0, c.muxCount())
	assert.Equal(t, []string{"movie.mkv"}, listDir(t, filepath.Dir(containerPath)))
}

func TestRunNoSubtitleTracks(t *testing.T) {
	c := &fakeContainer{}

	server := translationServer(t, portugueseSRT, nil)
	defer server.Close()

	containerPath := writeContainer(t)
	p := newTestPipeline(t, c, server.URL, "por")

	res, err := p.Run(context.Background(), containerPath, ModeAll)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrNoSubtitlesFound))
	assert.Equal(t, StateFailed, res.State)

	_, err = p.Run(context.Background(), containerPath, ModeSelect)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrNoSubtitlesFound))
}

func TestRunRecordsHistory(t *testing.T) {
	c := &fakeContainer{}
	c.addTrack("eng", "S_TEXT/UTF8", englishSRT)

	server := translationServer(t, portugueseSRT, nil)
	defer server.Close()

	rec := &captureRecorder{}
	containerPath := writeContainer(t)
	p := New(Config{
		MKV:    media.NewMKVToolnix(1).WithRunner(c.runner(t)),
		FFmpeg: media.NewFFmpeg(5 * time.Second).WithRunner(emptyProbeRunner(t)),
		Translator: translator.NewClient(translator.Config{
			APIURL:     server.URL,
			MaxRetries: 2,
			RetryDelay: time.Millisecond,
		}),
		TargetLang: "por",
		History:    rec,
	})

	res, err := p.Run(context.Background(), containerPath, ModeAll)
	require.NoError(t, err)

	require.Len(t, rec.records, 1)
	got := rec.records[0]
	assert.Equal(t, res.RunID, got.ID)
	assert.Equal(t, containerPath, got.Container)
	assert.Equal(t, "all", got.Mode)
	assert.Equal(t, string(StateDone), got.State)
	assert.Empty(t, got.Error)
	assert.Equal(t, 1, got.Translated)
	assert.False(t, got.FinishedAt.Before(got.StartedAt))
}

type captureRecorder struct {
	mu      sync.Mutex
	records []RunRecord
}

func (r *captureRecorder) RecordRun(ctx context.Context, rec RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}
