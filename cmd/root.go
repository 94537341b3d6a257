package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/config"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/pkg/log"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "subtrans",
		Short:         "Translate embedded subtitles and merge them back into their containers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}

// loadConfig loads the optional .env file and builds configuration from the
// environment.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug("Loaded environment from .env file")
	}
	return config.NewFromEnv()
}
