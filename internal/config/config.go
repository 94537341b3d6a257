// Package config loads application configuration from environment variables
// with sensible defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/subtitle"
)

// Config holds all application configuration.
//
// Environment Variables:
// Translation:
// - TRANSLATOR_API_URL: Base URL of the translation service (required)
// - TARGET_LANGUAGE: Target language tag (default: por)
// - TRANSLATE_MAX_RETRIES: Attempts per file (default: 3)
// - TRANSLATE_RETRY_DELAY: Seconds before the first retry, doubles each attempt (default: 2)
// - TRANSLATE_MIN_SECONDS: Minimum wall-clock seconds per translation (default: 2)
// - TRANSLATE_TIMEOUT: Per-request HTTP timeout in seconds (default: 300)
// - TRANSLATE_CONCURRENCY: Parallel file translations (default: 2)
//
// Tools:
// - TOOL_TIMEOUT: Timeout in seconds for extraction/conversion commands (default: 30)
// - MUX_WARNING_EXIT_CODE: Exit status mkvtoolnix uses for warnings (default: 1)
//
// Optional features:
// - HISTORY_DB: Path of the sqlite run-history database (disabled when empty)
// - WATCH_CRON: Cron expression for watch mode (default: "*/15 * * * *")
type Config struct {
	Translate TranslateConfig
	Tools     ToolsConfig
	History   HistoryConfig
	Watch     WatchConfig
}

type TranslateConfig struct {
	APIURL         string
	TargetLanguage string

	MaxRetries  int
	RetryDelay  time.Duration
	MinLatency  time.Duration
	Timeout     time.Duration
	Concurrency int
}

type ToolsConfig struct {
	Timeout        time.Duration
	MuxWarningExit int
}

type HistoryConfig struct {
	DBPath string
}

type WatchConfig struct {
	CronExpr string
}

// NewFromEnv builds a Config from environment variables.
func NewFromEnv() (*Config, error) {
	config := &Config{
		Translate: TranslateConfig{
			APIURL:         getEnvString("TRANSLATOR_API_URL", ""),
			TargetLanguage: subtitle.CanonicalLang(getEnvString("TARGET_LANGUAGE", "por")),
			MaxRetries:     getEnvInt("TRANSLATE_MAX_RETRIES", 3),
			RetryDelay:     time.Duration(getEnvInt("TRANSLATE_RETRY_DELAY", 2)) * time.Second,
			MinLatency:     time.Duration(getEnvInt("TRANSLATE_MIN_SECONDS", 2)) * time.Second,
			Timeout:        time.Duration(getEnvInt("TRANSLATE_TIMEOUT", 300)) * time.Second,
			Concurrency:    getEnvInt("TRANSLATE_CONCURRENCY", 2),
		},
		Tools: ToolsConfig{
			Timeout:        time.Duration(getEnvInt("TOOL_TIMEOUT", 30)) * time.Second,
			MuxWarningExit: getEnvInt("MUX_WARNING_EXIT_CODE", 1),
		},
		History: HistoryConfig{
			DBPath: getEnvString("HISTORY_DB", ""),
		},
		Watch: WatchConfig{
			CronExpr: getEnvString("WATCH_CRON", "*/15 * * * *"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.Translate.APIURL == "" {
		return fmt.Errorf("TRANSLATOR_API_URL is required")
	}
	if c.Translate.TargetLanguage == "" {
		return fmt.Errorf("TARGET_LANGUAGE must not be empty")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
