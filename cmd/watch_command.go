package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/media"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/watch"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/pkg/log"
)

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Watch a media directory and translate new containers on a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			info, err := os.Stat(dir)
			if err != nil {
				return fmt.Errorf("inspect directory: %w", err)
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pipe, closeHistory, err := buildPipeline(cfg)
			if err != nil {
				return err
			}
			defer closeHistory()

			runner := cron.New()
			svc := watch.NewService(
				dir,
				cfg.Watch.CronExpr,
				cfg.Translate.TargetLanguage,
				runner,
				pipe,
				media.NewMKVToolnix(cfg.Tools.MuxWarningExit).WithTimeout(cfg.Tools.Timeout),
			)
			if err := svc.Schedule(ctx); err != nil {
				return fmt.Errorf("schedule watch: %w", err)
			}

			log.Info("Watching %s on schedule %q", dir, cfg.Watch.CronExpr)
			runner.Start()
			<-ctx.Done()

			stopCtx := runner.Stop()
			<-stopCtx.Done()
			return nil
		},
	}
}
