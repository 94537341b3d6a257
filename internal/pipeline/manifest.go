package pipeline

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/subtitle"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/pkg/file"
)

// Stage of a subtitle artifact within a run.
type Stage int

const (
	StageExtracted Stage = iota
	StageNormalized
	StageTranslated
)

// Entry is one subtitle file tracked by the run.
type Entry struct {
	Path string
	Lang string // canonical three-letter tag, "und" when unknown

	// Keep marks files that survive cleanup: the best-effort subtitle a
	// SELECT run leaves on disk when no merge happened.
	Keep bool
}

// Manifest is the in-memory source of truth for a run's intermediate files.
// The filename convention remains the persisted contract for collaborator
// tools and idempotence detection, but components pass files through the
// manifest rather than re-globbing the working directory.
type Manifest struct {
	base string // container path without extension

	mu    sync.Mutex
	files map[Stage][]Entry
}

func NewManifest(containerPath string) *Manifest {
	return &Manifest{
		base:  file.StripExt(containerPath),
		files: make(map[Stage][]Entry),
	}
}

func (m *Manifest) Add(stage Stage, entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[stage] = append(m.files[stage], entry)
}

// Files returns a copy of the entries at stage, in insertion order.
func (m *Manifest) Files(stage Stage) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]Entry, len(m.files[stage]))
	copy(entries, m.files[stage])
	return entries
}

// SetKeep marks path as surviving cleanup.
func (m *Manifest) SetKeep(path string, keep bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for stage, entries := range m.files {
		for i := range entries {
			if entries[i].Path == path {
				m.files[stage][i].Keep = keep
			}
		}
	}
}

// Intermediates returns every tracked path not marked Keep.
func (m *Manifest) Intermediates() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var paths []string
	for _, entries := range m.files {
		for _, entry := range entries {
			if !entry.Keep {
				paths = append(paths, entry.Path)
			}
		}
	}
	return paths
}

// ExtractedPath builds the filename for an extracted track:
// <base>.<lang><ordinal?>.<ext>, where the ordinal appears from the second
// track of the same language onward.
func (m *Manifest) ExtractedPath(lang string, ordinal int, ext string) string {
	tag := lang
	if ordinal > 1 {
		tag = fmt.Sprintf("%s%d", lang, ordinal)
	}
	return fmt.Sprintf("%s.%s.%s", m.base, tag, ext)
}

// TranslatedPath derives the output filename for a translation:
// <base>.<lang>.<target>.srt.
func TranslatedPath(sourcePath, targetLang string) string {
	return strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + "." + targetLang + ".srt"
}

// LangFromFilename infers the language tag encoded in a subtitle filename,
// taking the last dot-separated token before the extension. An ordinal
// suffix is stripped, so "movie.eng2.srt" yields "eng".
func LangFromFilename(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.Split(name, ".")
	if len(parts) < 2 {
		return "und"
	}
	tag := strings.TrimRight(parts[len(parts)-1], "0123456789")
	if tag == "" {
		return "und"
	}
	return subtitle.CanonicalLang(tag)
}

// sampleHash hashes the first sampleLines lines of a file. Whitespace edges
// and line endings are normalized so the same content hashes identically
// whether it came from disk or out of a demuxed track.
func sampleHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	const sampleLines = 20

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() && len(lines) < sampleLines {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:]), nil
}
