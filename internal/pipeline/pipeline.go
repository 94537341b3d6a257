// Package pipeline sequences subtitle extraction, normalization, quality
// filtering, translation and merge-back for one media container, with
// guaranteed cleanup of intermediate files on every exit path.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/filter"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/media"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/subtitle"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/translator"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/pkg/file"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/pkg/log"
)

// Mode selects how many tracks a run processes.
type Mode int

const (
	// ModeAll extracts, filters and translates every usable text track.
	ModeAll Mode = iota
	// ModeSelect picks the single best track by language priority.
	ModeSelect
)

func (m Mode) String() string {
	if m == ModeSelect {
		return "select"
	}
	return "all"
}

// State of a pipeline run, advanced linearly with a Failed absorbing state.
type State string

const (
	StateInit        State = "init"
	StateInspecting  State = "inspecting"
	StateExtracting  State = "extracting"
	StateNormalizing State = "normalizing"
	StateFiltering   State = "filtering"
	StateSelecting   State = "selecting"
	StateTranslating State = "translating"
	StateValidating  State = "validating"
	StateMerging     State = "merging"
	StateCleaningUp  State = "cleaning_up"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Recorder persists run outcomes. Optional.
type Recorder interface {
	RecordRun(ctx context.Context, rec RunRecord) error
}

// RunRecord is the durable summary of one run.
type RunRecord struct {
	ID           string
	Container    string
	Mode         string
	State        string
	Error        string
	Translated   int
	MergedTracks int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Config wires the pipeline's collaborators.
type Config struct {
	MKV        *media.MKVToolnix
	FFmpeg     *media.FFmpeg
	Translator *translator.Client

	TargetLang string // canonical three-letter tag

	NormalizeConcurrency int
	TranslateConcurrency int

	History Recorder // may be nil
}

// Pipeline runs the full subtitle translation flow for one container at a
// time. Concurrent runs against the same container are not supported;
// callers must serialize.
type Pipeline struct {
	cfg Config
}

func New(cfg Config) *Pipeline {
	if cfg.NormalizeConcurrency <= 0 {
		cfg.NormalizeConcurrency = 4
	}
	if cfg.TranslateConcurrency <= 0 {
		cfg.TranslateConcurrency = 2
	}
	cfg.TargetLang = subtitle.CanonicalLang(cfg.TargetLang)
	return &Pipeline{cfg: cfg}
}

// Result summarizes a finished run.
type Result struct {
	RunID string
	Mode  Mode
	State State

	Translated   []string // target-language outputs produced this run
	MergedTracks int
	FileFailures []error

	// NothingToDo is set when the run finished without work to perform,
	// e.g. the selected track is already in the target language.
	NothingToDo bool

	// KeptSubtitle is the best-effort SRT a SELECT run leaves on disk when
	// no merge happened.
	KeptSubtitle string
}

// Run executes one pipeline run. Intermediate files are cleaned up exactly
// once on every exit path, including cancellation; only the container and,
// for a SELECT run without a merge, the best subtitle survive.
func (p *Pipeline) Run(ctx context.Context, containerPath string, mode Mode) (*Result, error) {
	res := &Result{
		RunID: uuid.NewString(),
		Mode:  mode,
		State: StateInit,
	}
	startedAt := time.Now()
	man := NewManifest(containerPath)

	var cleanupOnce sync.Once
	cleanup := func() {
		cleanupOnce.Do(func() {
			for _, path := range man.Intermediates() {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					log.Warn("Failed to remove intermediate file %s: %v", path, err)
				}
			}
		})
	}
	defer cleanup()

	log.Info("Run %s: %s mode=%s", res.RunID, containerPath, mode)

	err := p.run(ctx, containerPath, mode, man, res)
	if err != nil {
		res.State = StateFailed
	} else {
		res.State = StateCleaningUp
	}
	cleanup()
	if err == nil {
		res.State = StateDone
	}

	p.record(containerPath, res, err, startedAt)
	return res, err
}

func (p *Pipeline) record(containerPath string, res *Result, runErr error, startedAt time.Time) {
	if p.cfg.History == nil {
		return
	}
	rec := RunRecord{
		ID:           res.RunID,
		Container:    containerPath,
		Mode:         res.Mode.String(),
		State:        string(res.State),
		Translated:   len(res.Translated),
		MergedTracks: res.MergedTracks,
		StartedAt:    startedAt,
		FinishedAt:   time.Now(),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	// recording must survive a canceled run context
	if err := p.cfg.History.RecordRun(context.Background(), rec); err != nil {
		log.Warn("Failed to record run history: %v", err)
	}
}

func (p *Pipeline) run(ctx context.Context, containerPath string, mode Mode, man *Manifest, res *Result) error {
	res.State = StateInspecting
	tracks, err := p.cfg.MKV.ListTracks(ctx, containerPath)
	if err != nil {
		return WrapError(err, ErrContainerRead, "failed to inspect container %s", containerPath)
	}
	log.Info("Found %d subtitle tracks in %s", len(tracks), containerPath)

	if mode == ModeSelect {
		return p.runSelect(ctx, containerPath, tracks, man, res)
	}
	return p.runAll(ctx, containerPath, tracks, man, res)
}

// runAll processes every usable text track: at least one target-language
// output must materialize or the run fails.
func (p *Pipeline) runAll(ctx context.Context, containerPath string, tracks []media.Track, man *Manifest, res *Result) error {
	res.State = StateExtracting
	if err := p.extractTracks(ctx, containerPath, tracks, man); err != nil {
		return err
	}

	res.State = StateNormalizing
	if err := p.normalize(ctx, man, res); err != nil {
		return err
	}

	res.State = StateFiltering
	survivors := filter.Apply(entryPaths(man.Files(StageNormalized)))
	if len(survivors) == 0 {
		return NewError(ErrNoSubtitlesFound, "no subtitle candidates survived quality filtering for %s", containerPath)
	}

	res.State = StateTranslating
	if err := p.translateAll(ctx, survivors, man, res); err != nil {
		return err
	}

	res.State = StateValidating
	outputs := p.validateOutputs(man.Files(StageTranslated))
	if len(outputs) == 0 {
		return NewError(ErrTranslationFailed, "no valid %s subtitles produced for %s", p.cfg.TargetLang, containerPath)
	}

	res.State = StateMerging
	candidates := append(survivors, entryPaths(outputs)...)
	merged, err := p.merge(ctx, containerPath, candidates, man)
	if err != nil {
		return err
	}
	res.MergedTracks = merged
	return nil
}

// runSelect processes exactly one track. A failed translation degrades
// gracefully: the run still succeeds and the best-effort SRT stays on disk.
func (p *Pipeline) runSelect(ctx context.Context, containerPath string, tracks []media.Track, man *Manifest, res *Result) error {
	res.State = StateSelecting
	selected, ok := SelectTrack(tracks)
	if !ok {
		return NewError(ErrNoSubtitlesFound, "container %s has no subtitle tracks", containerPath)
	}
	log.Info("Selected track %d (%s, %s)", selected.ID, selected.Language, selected.Family)

	if subtitle.SameLang(selected.Language, p.cfg.TargetLang) {
		log.Info("Selected track is already %s, nothing to translate", p.cfg.TargetLang)
		res.NothingToDo = true
		return nil
	}
	if selected.IsBitmap() {
		log.Warn("Selected track %d is bitmap-only and cannot be translated", selected.ID)
		res.NothingToDo = true
		return nil
	}

	res.State = StateExtracting
	if err := p.extractTracks(ctx, containerPath, []media.Track{selected}, man); err != nil {
		return err
	}

	res.State = StateNormalizing
	if err := p.normalize(ctx, man, res); err != nil {
		return err
	}

	res.State = StateFiltering
	survivors := filter.Apply(entryPaths(man.Files(StageNormalized)))
	if len(survivors) == 0 {
		log.Warn("Selected subtitle did not survive quality filtering, nothing to translate")
		res.NothingToDo = true
		return nil
	}

	res.State = StateTranslating
	source := survivors[0]
	outputPath := TranslatedPath(source, p.cfg.TargetLang)
	result, err := p.cfg.Translator.TranslateFile(ctx, source, outputPath, p.cfg.TargetLang)
	if err != nil {
		if ctx.Err() != nil {
			return WrapError(ctx.Err(), ErrUnknown, "run canceled")
		}
		// graceful degradation: keep the untranslated source on disk
		log.Error("Translation failed for %s: %v", source, err)
		res.FileFailures = append(res.FileFailures, err)
		man.SetKeep(source, true)
		res.KeptSubtitle = source
		return nil
	}
	man.Add(StageTranslated, Entry{Path: result.OutputPath, Lang: p.cfg.TargetLang})
	res.Translated = append(res.Translated, result.OutputPath)

	res.State = StateValidating
	outputs := p.validateOutputs(man.Files(StageTranslated))
	if len(outputs) == 0 {
		log.Warn("Translated output failed validation, keeping source subtitle")
		man.SetKeep(source, true)
		res.KeptSubtitle = source
		return nil
	}

	// a failed merge must not destroy the translation
	man.SetKeep(result.OutputPath, true)
	res.KeptSubtitle = result.OutputPath

	res.State = StateMerging
	merged, err := p.merge(ctx, containerPath, entryPaths(outputs), man)
	if err != nil {
		return err
	}
	res.MergedTracks = merged

	// the merge pass either added the track or found an equivalent one
	// already embedded; either way the loose copy is redundant
	man.SetKeep(result.OutputPath, false)
	res.KeptSubtitle = ""
	return nil
}

// extractTracks demuxes the given text tracks, falling back to generic
// transcoder extraction when the primary strategy yields nothing usable.
func (p *Pipeline) extractTracks(ctx context.Context, containerPath string, tracks []media.Track, man *Manifest) error {
	langCount := make(map[string]int)
	extracted := 0

	for _, track := range tracks {
		if err := ctx.Err(); err != nil {
			return WrapError(err, ErrUnknown, "run canceled")
		}
		if track.IsBitmap() || track.Family == media.CodecUnknown {
			continue
		}

		lang := subtitle.CanonicalLang(track.Language)
		langCount[lang]++
		outputPath := man.ExtractedPath(lang, langCount[lang], track.Family.Ext())

		if err := p.cfg.MKV.ExtractTrack(ctx, containerPath, track.ID, outputPath); err != nil {
			log.Error("Failed to extract track %d from %s: %v", track.ID, containerPath, err)
			continue
		}
		man.Add(StageExtracted, Entry{Path: outputPath, Lang: lang})
		extracted++
	}

	if extracted > 0 {
		return nil
	}
	return p.extractFallback(ctx, containerPath, man)
}

// extractFallback probes all subtitle streams generically and demuxes each
// one forcing SRT output. Streams whose output fails SRT-shape validation
// are discarded immediately.
func (p *Pipeline) extractFallback(ctx context.Context, containerPath string, man *Manifest) error {
	log.Info("No text tracks demuxed, probing %s with the generic transcoder", containerPath)

	count, err := p.cfg.FFmpeg.CountSubtitleStreams(ctx, containerPath)
	if err != nil {
		return WrapError(err, ErrContainerRead, "failed to probe container %s", containerPath)
	}

	extracted := 0
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return WrapError(err, ErrUnknown, "run canceled")
		}

		outputPath := man.ExtractedPath("und", i+1, "srt")
		if err := p.cfg.FFmpeg.ExtractStreamToSRT(ctx, containerPath, i, outputPath); err != nil {
			log.Warn("Fallback extraction of stream %d failed: %v", i, err)
			continue
		}
		if err := subtitle.ValidateFileShape(outputPath); err != nil {
			log.Warn("Fallback stream %d produced unusable output: %v", i, err)
			os.Remove(outputPath)
			continue
		}
		man.Add(StageExtracted, Entry{Path: outputPath, Lang: "und"})
		extracted++
	}

	if extracted == 0 {
		return NewError(ErrNoSubtitlesFound, "no usable subtitle streams in %s", containerPath)
	}
	return nil
}

// normalize converts every extracted file to cleaned, shape-valid SRT.
// Per-file failures are logged and the file abandoned; they never abort the
// run on their own.
func (p *Pipeline) normalize(ctx context.Context, man *Manifest, res *Result) error {
	entries := man.Files(StageExtracted)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.NormalizeConcurrency)

	var mu sync.Mutex
	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			srtPath, err := p.normalizeOne(gctx, entry)
			if err != nil {
				log.Error("Abandoning subtitle %s: %v", entry.Path, err)
				mu.Lock()
				res.FileFailures = append(res.FileFailures, err)
				mu.Unlock()
				return nil
			}
			man.Add(StageNormalized, Entry{Path: srtPath, Lang: entry.Lang})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return WrapError(err, ErrUnknown, "run canceled")
	}
	return nil
}

func (p *Pipeline) normalizeOne(ctx context.Context, entry Entry) (string, error) {
	srtPath := entry.Path

	if subtitle.FormatFromPath(entry.Path) != subtitle.FormatSRT {
		srtPath = file.ReplaceExt(entry.Path, ".srt")
		if err := p.convertToSRT(ctx, entry.Path, srtPath); err != nil {
			return "", err
		}
	}

	if err := subtitle.CleanFile(srtPath); err != nil {
		return "", err
	}
	if err := subtitle.ValidateFileShape(srtPath); err != nil {
		return "", fmt.Errorf("normalized file failed SRT validation: %w", err)
	}
	return srtPath, nil
}

// convertToSRT converts inputPath to SRT, retrying once with a
// formatting-stripping pass when the direct conversion produces an invalid
// result and the source shows markers of complex formatting.
func (p *Pipeline) convertToSRT(ctx context.Context, inputPath, outputPath string) error {
	err := p.cfg.FFmpeg.ConvertToSRT(ctx, inputPath, outputPath)
	if err == nil {
		if vErr := subtitle.ValidateFileShape(outputPath); vErr == nil {
			return nil
		}
	}

	raw, readErr := os.ReadFile(inputPath)
	if readErr != nil || !subtitle.HasComplexFormatting(string(raw)) {
		if err != nil {
			return err
		}
		return fmt.Errorf("conversion of %s produced invalid SRT", inputPath)
	}

	log.Info("Retrying conversion of %s with formatting stripped", inputPath)
	strippedPath := inputPath + ".stripped" + filepath.Ext(inputPath)
	defer os.Remove(strippedPath)
	if err := os.WriteFile(strippedPath, []byte(subtitle.StripOverrideCodes(string(raw))), 0o644); err != nil {
		return err
	}
	if err := p.cfg.FFmpeg.ConvertToSRT(ctx, strippedPath, outputPath); err != nil {
		return err
	}
	return subtitle.ValidateFileShape(outputPath)
}

// translateAll translates every surviving candidate that is not already in
// the target language, each under its own retry schedule.
func (p *Pipeline) translateAll(ctx context.Context, sources []string, man *Manifest, res *Result) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.TranslateConcurrency)

	var mu sync.Mutex
	for _, source := range sources {
		source := source
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if subtitle.SameLang(LangFromFilename(source), p.cfg.TargetLang) {
				log.Info("Candidate %s is already tagged %s, skipping translation", source, p.cfg.TargetLang)
				return nil
			}

			outputPath := TranslatedPath(source, p.cfg.TargetLang)
			result, err := p.cfg.Translator.TranslateFile(gctx, source, outputPath, p.cfg.TargetLang)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error("Translation failed for %s: %v", source, err)
				res.FileFailures = append(res.FileFailures, err)
				return nil
			}
			man.Add(StageTranslated, Entry{Path: result.OutputPath, Lang: p.cfg.TargetLang})
			res.Translated = append(res.Translated, result.OutputPath)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return WrapError(err, ErrUnknown, "run canceled")
	}
	return nil
}

// validateOutputs re-checks the SRT shape of translated files and drops
// invalid ones.
func (p *Pipeline) validateOutputs(entries []Entry) []Entry {
	valid := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if err := subtitle.ValidateFileShape(entry.Path); err != nil {
			log.Warn("Dropping invalid translated output %s: %v", entry.Path, err)
			continue
		}
		valid = append(valid, entry)
	}
	return valid
}

func entryPaths(entries []Entry) []string {
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		paths = append(paths, entry.Path)
	}
	return paths
}
