package subtitle

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	indexLineRe     = regexp.MustCompile(`^\d+$`)
	timestampLineRe = regexp.MustCompile(`\d{2}:\d{2}:\d{2},\d{3}`)
)

// ValidateShape checks the minimal structural validity of SRT content: it is
// non-empty, has at least one bare-integer index line and at least one
// timestamp line. This is the gate used after extraction, after conversion
// and after translation.
func ValidateShape(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("subtitle content is empty")
	}

	hasIndex := false
	hasTimestamp := false

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !hasIndex && indexLineRe.MatchString(line) {
			hasIndex = true
		}
		if !hasTimestamp && timestampLineRe.MatchString(line) {
			hasTimestamp = true
		}
		if hasIndex && hasTimestamp {
			return nil
		}
	}

	if !hasIndex {
		return fmt.Errorf("no subtitle index lines found")
	}
	return fmt.Errorf("no subtitle timestamp lines found")
}

// ValidateFileShape runs ValidateShape on the file at path.
func ValidateFileShape(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read subtitle file: %w", err)
	}
	return ValidateShape(string(content))
}

// CountIndexLines counts bare-integer index lines, i.e. the number of blocks
// as far as the shape validator is concerned. Used to compare source and
// translated files.
func CountIndexLines(content string) int {
	count := 0
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if indexLineRe.MatchString(strings.TrimSpace(scanner.Text())) {
			count++
		}
	}
	return count
}
