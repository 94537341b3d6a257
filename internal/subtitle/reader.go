package subtitle

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var timeLineRe = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2}),(\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2}),(\d{3})`)

func hasExt(path, ext string) bool {
	return strings.EqualFold(filepath.Ext(path), ext)
}

// ReadBlocks parses the SRT file at path into blocks.
func ReadBlocks(path string) ([]Block, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read subtitle file: %w", err)
	}
	return Parse(string(content))
}

// Parse parses SRT content into blocks. Lines that do not fit the expected
// index/time/text sequence are skipped rather than treated as errors, so the
// parser survives the partially mangled files the rest of the pipeline has to
// judge.
func Parse(content string) ([]Block, error) {
	var blocks []Block

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	current := Block{}
	state := "index" // possible values: "index", "time", "text"
	var textLines []string

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		switch state {
		case "index":
			if trimmed == "" {
				continue
			}
			index, err := strconv.Atoi(trimmed)
			if err != nil {
				continue // skip non-index lines
			}
			current.Index = index
			state = "time"

		case "time":
			if trimmed == "" {
				continue
			}
			start, end, err := parseTimeLine(trimmed)
			if err != nil {
				// not a timestamp, maybe a stray index; restart
				state = "index"
				continue
			}
			current.StartTime = start
			current.EndTime = end
			state = "text"
			textLines = nil

		case "text":
			if trimmed == "" {
				if len(textLines) > 0 {
					current.Text = textLines
					blocks = append(blocks, current)
					current = Block{}
				}
				state = "index"
				textLines = nil
			} else {
				textLines = append(textLines, trimmed)
			}
		}
	}

	// last block may not be terminated by a blank line
	if state == "text" && len(textLines) > 0 {
		current.Text = textLines
		blocks = append(blocks, current)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan subtitle content: %w", err)
	}

	return blocks, nil
}

// parseTimeLine parses an SRT timestamp line, e.g.
// "00:02:16,612 --> 00:02:19,376".
func parseTimeLine(line string) (time.Duration, time.Duration, error) {
	matches := timeLineRe.FindStringSubmatch(line)
	if len(matches) != 9 {
		return 0, 0, fmt.Errorf("invalid time format: %s", line)
	}

	parse := func(hours, minutes, seconds, millis string) time.Duration {
		h, _ := strconv.Atoi(hours)
		m, _ := strconv.Atoi(minutes)
		s, _ := strconv.Atoi(seconds)
		ms, _ := strconv.Atoi(millis)

		return time.Duration(h)*time.Hour +
			time.Duration(m)*time.Minute +
			time.Duration(s)*time.Second +
			time.Duration(ms)*time.Millisecond
	}

	return parse(matches[1], matches[2], matches[3], matches[4]),
		parse(matches[5], matches[6], matches[7], matches[8]),
		nil
}
