// Package filter removes statistically anomalous, duplicate or corrupt
// subtitle candidates before any of them reach the translation engine. All
// three passes are irreversible: rejected files are deleted from disk.
package filter

import (
	"math"
	"os"
	"strings"
	"time"

	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/subtitle"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/pkg/log"
)

const (
	// outlierStddevFactor is the byte-size deviation threshold, in standard
	// deviations, beyond which a candidate is discarded.
	outlierStddevFactor = 2.0

	shortBlockThreshold = 100 * time.Millisecond
	similarStartWindow  = 100 * time.Millisecond
)

// Apply runs the three passes in order over candidates sharing a base name:
// size-outlier removal, duplicate suppression, corruption detection.
// It returns the surviving paths in their original order.
func Apply(paths []string) []string {
	kept, removed := RemoveOutliers(paths)
	logRemoved("size outlier", removed)

	kept, removed = SuppressDuplicates(kept)
	logRemoved("duplicate", removed)

	kept, removed = RemoveCorrupt(kept)
	logRemoved("corrupt", removed)

	return kept
}

func logRemoved(reason string, removed []string) {
	for _, path := range removed {
		log.Info("Removed %s subtitle candidate: %s", reason, path)
	}
}

// RemoveOutliers deletes files whose byte size deviates from the candidate
// mean by more than 2 population standard deviations. With fewer than two
// candidates the standard deviation is meaningless and the pass is skipped.
func RemoveOutliers(paths []string) (kept []string, removed []string) {
	if len(paths) < 2 {
		return paths, nil
	}

	sizes := make(map[string]float64, len(paths))
	var sum float64
	counted := make([]string, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			log.Warn("Failed to stat subtitle candidate %s: %v", path, err)
			continue
		}
		sizes[path] = float64(info.Size())
		sum += float64(info.Size())
		counted = append(counted, path)
	}
	if len(counted) < 2 {
		return counted, nil
	}

	mean := sum / float64(len(counted))
	var variance float64
	for _, path := range counted {
		d := sizes[path] - mean
		variance += d * d
	}
	variance /= float64(len(counted))
	threshold := outlierStddevFactor * math.Sqrt(variance)

	for _, path := range counted {
		if math.Abs(sizes[path]-mean) > threshold {
			deleteFile(path)
			removed = append(removed, path)
		} else {
			kept = append(kept, path)
		}
	}
	return kept, removed
}

// SuppressDuplicates deletes files whose content matches an earlier
// candidate modulo whitespace and line endings. First seen wins. The
// pairwise comparison is quadratic, acceptable for the small candidate sets
// one container yields.
func SuppressDuplicates(paths []string) (kept []string, removed []string) {
	seen := make([]string, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			log.Warn("Failed to read subtitle candidate %s: %v", path, err)
			kept = append(kept, path)
			continue
		}
		canonical := strings.Join(strings.Fields(string(content)), " ")

		duplicate := false
		for _, prior := range seen {
			if prior == canonical {
				duplicate = true
				break
			}
		}
		if duplicate {
			deleteFile(path)
			removed = append(removed, path)
			continue
		}
		seen = append(seen, canonical)
		kept = append(kept, path)
	}
	return kept, removed
}

// Metrics are the corruption heuristics computed over a parsed block list.
type Metrics struct {
	TotalBlocks         int
	ShortDurationPct    float64
	MaxConsecutiveShort int
	RepeatedTextPct     float64
	SimilarTimestampPct float64
	AvgDuration         time.Duration
}

// IsCorrupt applies the deletion conditions: an overwhelming share of
// sub-100ms blocks with a long consecutive run, heavy text repetition with
// near-identical start times, or an average duration under 100ms. These
// encode "this track is garbage or misaligned", not formatting defects.
func (m Metrics) IsCorrupt() bool {
	if m.TotalBlocks == 0 {
		return true
	}
	if m.ShortDurationPct > 0.80 && m.MaxConsecutiveShort > 20 {
		return true
	}
	if m.RepeatedTextPct > 0.50 && m.SimilarTimestampPct > 0.80 {
		return true
	}
	if m.AvgDuration < shortBlockThreshold {
		return true
	}
	return false
}

// Measure computes the corruption metrics for a block list.
func Measure(blocks []subtitle.Block) Metrics {
	m := Metrics{TotalBlocks: len(blocks)}
	if len(blocks) == 0 {
		return m
	}

	shortCount := 0
	consecutiveShort := 0
	repeated := 0
	similarStarts := 0
	var totalDuration time.Duration

	for i, block := range blocks {
		d := block.Duration()
		totalDuration += d

		if d < shortBlockThreshold {
			shortCount++
			consecutiveShort++
			if consecutiveShort > m.MaxConsecutiveShort {
				m.MaxConsecutiveShort = consecutiveShort
			}
		} else {
			consecutiveShort = 0
		}

		if i > 0 {
			prev := blocks[i-1]
			if strings.Join(block.Text, "\n") == strings.Join(prev.Text, "\n") {
				repeated++
			}
			delta := block.StartTime - prev.StartTime
			if delta < 0 {
				delta = -delta
			}
			if delta <= similarStartWindow {
				similarStarts++
			}
		}
	}

	total := float64(len(blocks))
	m.ShortDurationPct = float64(shortCount) / total
	m.RepeatedTextPct = float64(repeated) / total
	m.SimilarTimestampPct = float64(similarStarts) / total
	m.AvgDuration = totalDuration / time.Duration(len(blocks))
	return m
}

// RemoveCorrupt parses each file and deletes the ones the corruption
// heuristics flag. Files that cannot be parsed at all count as corrupt.
func RemoveCorrupt(paths []string) (kept []string, removed []string) {
	for _, path := range paths {
		blocks, err := subtitle.ReadBlocks(path)
		if err != nil {
			log.Warn("Failed to parse subtitle candidate %s: %v", path, err)
			deleteFile(path)
			removed = append(removed, path)
			continue
		}

		metrics := Measure(blocks)
		if metrics.IsCorrupt() {
			log.Debug("Corruption metrics for %s: %+v", path, metrics)
			deleteFile(path)
			removed = append(removed, path)
			continue
		}
		kept = append(kept, path)
	}
	return kept, removed
}

func deleteFile(path string) {
	if err := os.Remove(path); err != nil {
		log.Warn("Failed to delete subtitle candidate %s: %v", path, err)
	}
}
