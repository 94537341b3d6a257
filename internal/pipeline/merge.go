package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/media"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/subtitle"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/pkg/log"
)

// merge remuxes the container with every candidate subtitle whose content is
// not already embedded. Idempotence rests on content sampling, not on track
// names or languages: a candidate whose sample hash matches an existing text
// track, or an earlier candidate in the same batch, is skipped. Returns the
// number of tracks actually added.
func (p *Pipeline) merge(ctx context.Context, containerPath string, candidates []string, man *Manifest) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	embedded, err := p.embeddedSampleHashes(ctx, containerPath)
	if err != nil {
		return 0, WrapError(err, ErrMerge, "failed to sample existing tracks of %s", containerPath)
	}

	seen := make(map[string]bool, len(embedded))
	for hash := range embedded {
		seen[hash] = true
	}

	var inputs []media.MuxInput
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return 0, WrapError(err, ErrUnknown, "run canceled")
		}

		hash, err := sampleHash(candidate)
		if err != nil {
			log.Warn("Skipping unreadable merge candidate %s: %v", candidate, err)
			continue
		}
		if seen[hash] {
			log.Info("Skipping %s: equivalent track already present", candidate)
			continue
		}
		seen[hash] = true

		muxPath, err := p.ensureUTF8(candidate, man)
		if err != nil {
			log.Warn("Skipping merge candidate %s: %v", candidate, err)
			continue
		}

		lang := LangFromFilename(candidate)
		inputs = append(inputs, media.MuxInput{
			Path:     muxPath,
			Language: lang,
			Name:     subtitle.LangName(lang),
		})
	}

	if len(inputs) == 0 {
		log.Info("No new subtitle tracks to merge into %s", containerPath)
		return 0, nil
	}

	if err := p.cfg.MKV.AddSubtitles(ctx, containerPath, inputs); err != nil {
		return 0, WrapError(err, ErrContainerWrite, "failed to remux %s", containerPath)
	}
	log.Info("Merged %d subtitle tracks into %s", len(inputs), containerPath)
	return len(inputs), nil
}

// embeddedSampleHashes extracts every existing text track to a scratch
// directory and returns the set of their sample hashes. A track that fails
// to extract only loses dedup protection; it never aborts the merge.
func (p *Pipeline) embeddedSampleHashes(ctx context.Context, containerPath string) (map[string]bool, error) {
	tracks, err := p.cfg.MKV.ListTracks(ctx, containerPath)
	if err != nil {
		return nil, err
	}

	scratch, err := os.MkdirTemp("", "subhash-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratch)

	hashes := make(map[string]bool)
	for _, track := range tracks {
		if track.IsBitmap() || track.Family == media.CodecUnknown {
			continue
		}
		outputPath := filepath.Join(scratch, fmt.Sprintf("track%d.%s", track.ID, track.Family.Ext()))
		if err := p.cfg.MKV.ExtractTrack(ctx, containerPath, track.ID, outputPath); err != nil {
			log.Warn("Failed to sample existing track %d: %v", track.ID, err)
			continue
		}
		hash, err := sampleHash(outputPath)
		if err != nil {
			log.Warn("Failed to hash existing track %d: %v", track.ID, err)
			continue
		}
		hashes[hash] = true
	}
	return hashes, nil
}

// ensureUTF8 returns a path holding UTF-8 content for the candidate. Files
// that are already valid UTF-8 are used as is; legacy single-byte encodings
// are transcoded into an intermediate copy registered for cleanup.
func (p *Pipeline) ensureUTF8(candidate string, man *Manifest) (string, error) {
	raw, err := os.ReadFile(candidate)
	if err != nil {
		return "", err
	}
	if utf8.Valid(raw) {
		return candidate, nil
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("failed to transcode to UTF-8: %w", err)
	}

	utf8Path := candidate + ".utf8"
	if err := os.WriteFile(utf8Path, decoded, 0o644); err != nil {
		return "", err
	}
	man.Add(StageNormalized, Entry{Path: utf8Path, Lang: LangFromFilename(candidate)})
	log.Info("Transcoded %s to UTF-8 for merging", candidate)
	return utf8Path, nil
}
