package subtitle

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	markupTagRe     = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	styleOverrideRe = regexp.MustCompile(`\{\\[^}]*\}`)
	braceCodeRe     = regexp.MustCompile(`\{[^}]*\}`)
	multiSpaceRe    = regexp.MustCompile(`[ \t]{2,}`)
)

// StripMarkup removes HTML-style tags and ASS inline override codes from a
// text line and collapses redundant whitespace.
func StripMarkup(text string) string {
	text = markupTagRe.ReplaceAllString(text, "")
	text = styleOverrideRe.ReplaceAllString(text, "")
	text = braceCodeRe.ReplaceAllString(text, "")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// HasComplexFormatting reports whether content carries markers of inline
// style overrides or effect-laden cues, which commonly break a straight
// format conversion.
func HasComplexFormatting(content string) bool {
	return strings.Contains(content, "{\\") ||
		strings.Contains(content, "<font") ||
		strings.Contains(content, "\\pos(") ||
		strings.Contains(content, "\\move(") ||
		strings.Contains(content, "Effect:")
}

// StripOverrideCodes removes ASS inline override codes from content while
// leaving everything else intact. Used to simplify a source file before
// retrying a failed format conversion.
func StripOverrideCodes(content string) string {
	return styleOverrideRe.ReplaceAllString(content, "")
}

// CleanContent runs the post-conversion cleanup pass over SRT content: every
// text line has markup tags and style-override codes stripped, whitespace
// runs collapsed and edges trimmed. Index and timestamp lines pass through
// untouched so the block structure is preserved.
func CleanContent(content string) string {
	var sb strings.Builder

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || indexLineRe.MatchString(trimmed) || timestampLineRe.MatchString(trimmed) {
			sb.WriteString(trimmed)
		} else {
			sb.WriteString(StripMarkup(trimmed))
		}
		sb.WriteByte('\n')
	}

	return sb.String()
}

// CleanFile rewrites the SRT file at path with CleanContent applied.
func CleanFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read subtitle file: %w", err)
	}

	cleaned := CleanContent(string(content))
	if err := os.WriteFile(path, []byte(cleaned), 0o644); err != nil {
		return fmt.Errorf("failed to write cleaned subtitle file: %w", err)
	}
	return nil
}
