// Package translator talks to the external translation HTTP service. The
// service is opaque: whole-file text goes in, translated text comes out, and
// any internal chunking is the service's own business.
package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/subtitle"
	"github.com/GabrielUzeda/SubtitleTranslatorAI/pkg/log"
)

var (
	// ErrInvalidSourceFormat marks a source file that fails SRT-shape
	// validation before translation is attempted. File-local.
	ErrInvalidSourceFormat = errors.New("source subtitle is not valid SRT")

	// ErrTranslationFailed marks retry exhaustion or structurally invalid
	// output. File-local; the caller decides whether the run survives.
	ErrTranslationFailed = errors.New("translation failed")
)

// Config for the translation client.
type Config struct {
	APIURL string // base URL of the translation service

	MaxRetries int           // attempts per file
	RetryDelay time.Duration // wait after first failed attempt, doubles each retry

	// MinLatency is the minimum wall-clock time a successful translation
	// must take. A backend answering faster than a model realistically can
	// is suspected of echoing cached or untranslated text, so success is
	// held back until the minimum has passed.
	MinLatency time.Duration

	Timeout time.Duration // per-request HTTP timeout

	SampleSize      int     // lines sampled by the already-target check
	SampleThreshold float64 // match ratio above which the source counts as target-language
}

func (c *Config) applyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 300 * time.Second
	}
	if c.SampleSize <= 0 {
		c.SampleSize = 5
	}
	if c.SampleThreshold <= 0 {
		c.SampleThreshold = 0.6
	}
}

// Client is the translation engine for subtitle files.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Result describes how a translation request for one file ended.
type Result struct {
	OutputPath     string
	Skipped        bool // output already existed
	CopiedVerbatim bool // source already in target language
}

type translateRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

// TranslateFile translates the SRT file at sourcePath into targetLang and
// writes the result to outputPath.
//
// Short-circuits ahead of any network call: an existing output file means a
// previous run already produced it, and a source that is heuristically
// already in the target language is copied verbatim.
func (c *Client) TranslateFile(ctx context.Context, sourcePath, outputPath, targetLang string) (Result, error) {
	result := Result{OutputPath: outputPath}

	if _, err := os.Stat(outputPath); err == nil {
		log.Info("Translation output already exists, skipping: %s", outputPath)
		result.Skipped = true
		return result, nil
	}

	content, err := os.ReadFile(sourcePath)
	if err != nil {
		return result, fmt.Errorf("failed to read source subtitle: %w", err)
	}
	text := string(content)

	if err := subtitle.ValidateShape(text); err != nil {
		return result, fmt.Errorf("%w: %s: %v", ErrInvalidSourceFormat, sourcePath, err)
	}

	blocks, err := subtitle.Parse(text)
	if err != nil {
		return result, fmt.Errorf("%w: %s: %v", ErrInvalidSourceFormat, sourcePath, err)
	}

	if subtitle.IsLikelyLanguage(blocks, targetLang, c.cfg.SampleSize, c.cfg.SampleThreshold) {
		log.Info("Source %s already appears to be %s, copying verbatim", sourcePath, targetLang)
		if err := os.WriteFile(outputPath, content, 0o644); err != nil {
			return result, fmt.Errorf("failed to write output subtitle: %w", err)
		}
		result.CopiedVerbatim = true
		return result, nil
	}

	start := time.Now()
	translated, err := c.translateWithRetry(ctx, text, targetLang)
	if err != nil {
		return result, err
	}

	if err := c.enforceMinLatency(ctx, start); err != nil {
		return result, err
	}

	if err := subtitle.ValidateShape(translated); err != nil {
		return result, fmt.Errorf("%w: output failed SRT validation: %v", ErrTranslationFailed, err)
	}

	srcBlocks := subtitle.CountIndexLines(text)
	outBlocks := subtitle.CountIndexLines(translated)
	if srcBlocks != outBlocks {
		// the service may legitimately restructure blocks
		log.Warn("Block count changed during translation of %s: %d -> %d", sourcePath, srcBlocks, outBlocks)
	}

	if !strings.HasSuffix(translated, "\n") {
		translated += "\n"
	}
	if err := os.WriteFile(outputPath, []byte(translated), 0o644); err != nil {
		return result, fmt.Errorf("failed to write output subtitle: %w", err)
	}

	log.Info("Translated %s -> %s in %s", sourcePath, outputPath, time.Since(start).Round(time.Millisecond))
	return result, nil
}

// translateWithRetry posts the whole file content, retrying with doubling
// delay when the response lacks the translated-text field or the call fails.
// A canceled context stops the retry loop but never interrupts an in-flight
// request beyond the HTTP client's own timeout.
func (c *Client) translateWithRetry(ctx context.Context, text, targetLang string) (string, error) {
	delay := c.cfg.RetryDelay
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrTranslationFailed, err)
		}

		translated, err := c.translateOnce(ctx, text, targetLang)
		if err == nil {
			return translated, nil
		}
		lastErr = err
		log.Warn("Translation attempt %d/%d failed: %v", attempt, c.cfg.MaxRetries, err)

		if attempt == c.cfg.MaxRetries {
			break
		}
		select {
		case <-time.After(delay):
			delay *= 2
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrTranslationFailed, ctx.Err())
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %v", ErrTranslationFailed, c.cfg.MaxRetries, lastErr)
}

func (c *Client) translateOnce(ctx context.Context, text, targetLang string) (string, error) {
	payload, err := json.Marshal(translateRequest{Text: text, TargetLang: targetLang})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.APIURL, "/") + "/translate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var decoded translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if strings.TrimSpace(decoded.TranslatedText) == "" {
		return "", errors.New("response missing translated_text")
	}

	return decoded.TranslatedText, nil
}

// enforceMinLatency sleeps the remaining delta when a translation finished
// suspiciously fast.
func (c *Client) enforceMinLatency(ctx context.Context, start time.Time) error {
	remaining := c.cfg.MinLatency - time.Since(start)
	if remaining <= 0 {
		return nil
	}
	log.Debug("Translation finished below minimum latency, waiting %s", remaining.Round(time.Millisecond))
	select {
	case <-time.After(remaining):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
