package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/config"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/history"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/media"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/pipeline"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/translator"
)

func newRunCommand() *cobra.Command {
	var allFlag bool
	var selectFlag bool

	cmd := &cobra.Command{
		Use:   "run <container>",
		Short: "Run the translation pipeline over one media container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			containerPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			info, err := os.Stat(containerPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("file does not exist: %s", containerPath)
				}
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", containerPath)
			}
			if !strings.EqualFold(".mkv", filepath.Ext(containerPath)) {
				return fmt.Errorf("unsupported container extension %q", filepath.Ext(containerPath))
			}

			mode := pipeline.ModeAll
			if selectFlag {
				mode = pipeline.ModeSelect
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

			res, err := pipe.Run(ctx, containerPath, mode)
			if err != nil {
				return err
			}

			printSummary(cmd, res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&allFlag, "all", false, "Translate every usable subtitle track")
	cmd.Flags().BoolVar(&selectFlag, "select", false, "Translate only the best subtitle track")
	cmd.MarkFlagsMutuallyExclusive("all", "select")

	return cmd
}

// buildPipeline assembles the pipeline from configuration. The returned
// closer releases the optional history store.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, func(), error) {
	pipeCfg := pipeline.Config{
		MKV:    media.NewMKVToolnix(cfg.Tools.MuxWarningExit).WithTimeout(cfg.Tools.Timeout),
		FFmpeg: media.NewFFmpeg(cfg.Tools.Timeout),
		Translator: translator.NewClient(translator.Config{
			APIURL:     cfg.Translate.APIURL,
			MaxRetries: cfg.Translate.MaxRetries,
			RetryDelay: cfg.Translate.RetryDelay,
			MinLatency: cfg.Translate.MinLatency,
			Timeout:    cfg.Translate.Timeout,
		}),
		TargetLang:           cfg.Translate.TargetLanguage,
		TranslateConcurrency: cfg.Translate.Concurrency,
	}

	closeHistory := func() {}
	if cfg.History.DBPath != "" {
		store, err := history.NewStore(cfg.History.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open history store: %w", err)
		}
		pipeCfg.History = store
		closeHistory = func() { store.Close() }
	}

	return pipeline.New(pipeCfg), closeHistory, nil
}

func printSummary(cmd *cobra.Command, res *pipeline.Result) {
	out := cmd.OutOrStdout()

	switch {
	case res.NothingToDo:
		fmt.Fprintln(out, "Nothing to do: no translatable subtitle work for this container")
	case res.MergedTracks > 0:
		fmt.Fprintf(out, "Merged %d translated subtitle tracks into the container\n", res.MergedTracks)
	case res.KeptSubtitle != "":
		fmt.Fprintf(out, "Translation incomplete, kept best subtitle at %s\n", res.KeptSubtitle)
	default:
		fmt.Fprintln(out, "Container already carries equivalent subtitle tracks")
	}

	if len(res.FileFailures) > 0 {
		fmt.Fprintf(out, "%d subtitle files failed along the way:\n", len(res.FileFailures))
		for _, failure := range res.FileFailures {
			fmt.Fprintf(out, "  - %v\n", failure)
		}
	}
}
