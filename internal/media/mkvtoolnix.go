package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/GabrielUzeda/SubtitleTranslatorAI/pkg/log"
)

// MKVToolnix wraps the container demux/mux tool behind the three operations
// the pipeline needs: list tracks, extract a track, remux with extra
// subtitle inputs.
type MKVToolnix struct {
	mkvmergeCmd   string
	mkvextractCmd string

	// warningExitCode is the mkvmerge/mkvextract exit status that signals
	// warnings only. Tool-version dependent, so it is injected rather than
	// hardcoded.
	warningExitCode int

	// timeout bounds identify and single-track extraction. Muxing is exempt:
	// remuxing a large container legitimately takes long.
	timeout time.Duration

	run CommandRunner
}

// MuxInput is one subtitle file to be appended to a container as a new track.
type MuxInput struct {
	Path     string
	Language string // three-letter tag for the new track
	Name     string // human-readable track title, may be empty
}

func NewMKVToolnix(warningExitCode int) *MKVToolnix {
	return &MKVToolnix{
		mkvmergeCmd:     "mkvmerge",
		mkvextractCmd:   "mkvextract",
		warningExitCode: warningExitCode,
		timeout:         30 * time.Second,
		run:             runCommand,
	}
}

// WithTimeout overrides the per-operation timeout for identify and extract.
func (m *MKVToolnix) WithTimeout(d time.Duration) *MKVToolnix {
	if d > 0 {
		m.timeout = d
	}
	return m
}

// mkvmerge -J output, reduced to the fields the pipeline reads.
type identifyResult struct {
	Container struct {
		Recognized bool `json:"recognized"`
		Supported  bool `json:"supported"`
	} `json:"container"`
	Tracks []struct {
		ID         int    `json:"id"`
		Type       string `json:"type"`
		Codec      string `json:"codec"`
		Properties struct {
			CodecID   string `json:"codec_id"`
			Language  string `json:"language"`
			TrackName string `json:"track_name"`
		} `json:"properties"`
	} `json:"tracks"`
}

// ListTracks identifies the container and returns its subtitle tracks in
// track-id order.
func (m *MKVToolnix) ListTracks(ctx context.Context, containerPath string) ([]Track, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	result, err := m.run(ctx, m.mkvmergeCmd, "-J", containerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to run mkvmerge identify: %w", err)
	}
	if result.ExitCode != 0 && result.ExitCode != m.warningExitCode {
		return nil, fmt.Errorf("mkvmerge identify exited with status %d: %s", result.ExitCode, string(result.Stderr))
	}

	var identify identifyResult
	if err := json.Unmarshal(result.Stdout, &identify); err != nil {
		return nil, fmt.Errorf("failed to parse mkvmerge identify output: %w", err)
	}
	if !identify.Container.Recognized {
		return nil, fmt.Errorf("container format not recognized: %s", containerPath)
	}

	tracks := make([]Track, 0)
	for _, t := range identify.Tracks {
		if t.Type != "subtitles" {
			continue
		}
		lang := t.Properties.Language
		if lang == "" {
			lang = "und"
		}
		tracks = append(tracks, Track{
			ID:       t.ID,
			Language: lang,
			CodecID:  t.Properties.CodecID,
			Family:   familyForCodecID(t.Properties.CodecID),
			Name:     t.Properties.TrackName,
		})
	}
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].ID < tracks[j].ID })

	return tracks, nil
}

// ExtractTrack demuxes a single track to outputPath.
func (m *MKVToolnix) ExtractTrack(ctx context.Context, containerPath string, trackID int, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	result, err := m.run(ctx, m.mkvextractCmd, containerPath, "tracks",
		fmt.Sprintf("%d:%s", trackID, outputPath))
	if err != nil {
		return fmt.Errorf("failed to run mkvextract: %w", err)
	}
	if result.ExitCode != 0 && result.ExitCode != m.warningExitCode {
		return fmt.Errorf("mkvextract exited with status %d: %s", result.ExitCode, string(result.Stderr))
	}
	if result.ExitCode == m.warningExitCode {
		log.Warn("mkvextract finished with warnings for track %d of %s", trackID, containerPath)
	}
	return nil
}

// AddSubtitles remuxes the container with the given subtitle files appended
// as new tracks and atomically replaces the original file. On any failure the
// temp output is discarded and the original container is left untouched.
func (m *MKVToolnix) AddSubtitles(ctx context.Context, containerPath string, subs []MuxInput) error {
	if len(subs) == 0 {
		return nil
	}

	dir := filepath.Dir(containerPath)
	tmpPath := filepath.Join(dir, "."+filepath.Base(containerPath)+".mux.tmp")
	defer os.Remove(tmpPath)

	args := []string{"-o", tmpPath, containerPath}
	for _, sub := range subs {
		args = append(args, "--language", "0:"+sub.Language)
		if sub.Name != "" {
			args = append(args, "--track-name", "0:"+sub.Name)
		}
		args = append(args, sub.Path)
	}

	result, err := m.run(ctx, m.mkvmergeCmd, args...)
	if err != nil {
		return fmt.Errorf("failed to run mkvmerge: %w", err)
	}
	switch result.ExitCode {
	case 0:
	case m.warningExitCode:
		log.Warn("mkvmerge finished with warnings for %s: %s", containerPath, string(result.Stderr))
	default:
		return fmt.Errorf("mkvmerge exited with status %d: %s", result.ExitCode, string(result.Stderr))
	}

	if err := os.Rename(tmpPath, containerPath); err != nil {
		return fmt.Errorf("failed to replace container: %w", err)
	}
	return nil
}
