// Package watch runs the pipeline periodically over a media directory,
// picking up containers that changed since the previous trigger.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/media"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/pipeline"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/subtitle"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/pkg/file"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/pkg/icron"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/pkg/log"
)

// maxCatchUp bounds how far back a missed trigger reaches.
const maxCatchUp = 24 * time.Hour

type Service struct {
	dir        string
	cronExpr   string
	targetLang string

	cron     *cron.Cron
	pipe     *pipeline.Pipeline
	mkv      *media.MKVToolnix
	runGroup singleflight.Group
}

func NewService(dir, cronExpr, targetLang string, c *cron.Cron, pipe *pipeline.Pipeline, mkv *media.MKVToolnix) *Service {
	return &Service{
		dir:        dir,
		cronExpr:   cronExpr,
		targetLang: subtitle.CanonicalLang(targetLang),
		cron:       c,
		pipe:       pipe,
		mkv:        mkv,
	}
}

// Schedule registers the periodic scan on the cron runner. Overlapping
// triggers collapse into a single scan.
func (s *Service) Schedule(ctx context.Context) error {
	runFunc := func() {
		_, _, _ = s.runGroup.Do("scan", func() (any, error) {
			if err := s.Scan(ctx); err != nil {
				log.Error("Watch scan of %s failed: %v", s.dir, err)
			}
			return nil, nil
		})
	}
	_, err := s.cron.AddFunc(s.cronExpr, runFunc)
	return err
}

// Scan processes every container in the watched directory that changed since
// the previous cron trigger.
func (s *Service) Scan(ctx context.Context) error {
	since, err := s.sinceTime()
	if err != nil {
		return err
	}

	candidates, err := file.FindRecentAfter(s.dir, since)
	if err != nil {
		return err
	}

	for _, path := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !strings.EqualFold(".mkv", filepath.Ext(path)) {
			continue
		}
		s.process(ctx, path)
	}
	return nil
}

// process runs one container in SELECT mode. Containers that already carry a
// target-language track are skipped before the pipeline starts; a run failure
// is logged and the scan moves on.
func (s *Service) process(ctx context.Context, containerPath string) {
	hasTarget, err := s.hasTargetTrack(ctx, containerPath)
	if err != nil {
		log.Warn("Skipping %s, failed to inspect: %v", containerPath, err)
		return
	}
	if hasTarget {
		log.Info("Skipping %s, %s track already present", containerPath, s.targetLang)
		return
	}

	res, err := s.pipe.Run(ctx, containerPath, pipeline.ModeSelect)
	if err != nil {
		log.Error("Pipeline run failed for %s: %v", containerPath, err)
		return
	}
	log.Info("Processed %s: merged=%d translated=%d", containerPath, res.MergedTracks, len(res.Translated))
}

func (s *Service) hasTargetTrack(ctx context.Context, containerPath string) (bool, error) {
	tracks, err := s.mkv.ListTracks(ctx, containerPath)
	if err != nil {
		return false, err
	}
	for _, track := range tracks {
		if !track.IsBitmap() && subtitle.SameLang(track.Language, s.targetLang) {
			return true, nil
		}
	}
	return false, nil
}

// sinceTime resolves the previous cron trigger, capped at maxCatchUp so a
// long-stopped watcher does not replay the whole library.
func (s *Service) sinceTime() (time.Time, error) {
	info, err := icron.GetTriggerInfo(s.cronExpr, time.Now())
	if err != nil {
		return time.Time{}, err
	}
	if info.Last.IsZero() || time.Since(info.Last) > maxCatchUp {
		return time.Now().Add(-maxCatchUp), nil
	}
	return info.Last, nil
}
