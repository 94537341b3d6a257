package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnvDefaults(t *testing.T) {
	t.Setenv("TRANSLATOR_API_URL", "http://localhost:8000")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.Translate.APIURL)
	assert.Equal(t, "por", cfg.Translate.TargetLanguage)
	assert.Equal(t, 3, cfg.Translate.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Translate.RetryDelay)
	assert.Equal(t, 2*time.Second, cfg.Translate.MinLatency)
	assert.Equal(t, 300*time.Second, cfg.Translate.Timeout)
	assert.Equal(t, 2, cfg.Translate.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Tools.Timeout)
	assert.Equal(t, 1, cfg.Tools.MuxWarningExit)
	assert.Empty(t, cfg.History.DBPath)
	assert.Equal(t, "*/15 * * * *", cfg.Watch.CronExpr)
}

func TestNewFromEnvOverrides(t *testing.T) {
	t.Setenv("TRANSLATOR_API_URL", "http://translator:9000")
	t.Setenv("TARGET_LANGUAGE", "pt-br")
	t.Setenv("TRANSLATE_MAX_RETRIES", "5")
	t.Setenv("TRANSLATE_RETRY_DELAY", "1")
	t.Setenv("MUX_WARNING_EXIT_CODE", "0")
	t.Setenv("HISTORY_DB", "/data/history.db")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "por", cfg.Translate.TargetLanguage)
	assert.Equal(t, 5, cfg.Translate.MaxRetries)
	assert.Equal(t, time.Second, cfg.Translate.RetryDelay)
	assert.Equal(t, 0, cfg.Tools.MuxWarningExit)
	assert.Equal(t, "/data/history.db", cfg.History.DBPath)
}

func TestNewFromEnvRequiresAPIURL(t *testing.T) {
	t.Setenv("TRANSLATOR_API_URL", "")

	_, err := NewFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRANSLATOR_API_URL")
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("TRANSLATE_MAX_RETRIES", "many")
	t.Setenv("TRANSLATOR_API_URL", "http://localhost:8000")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Translate.MaxRetries)
}
