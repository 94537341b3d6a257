package subtitle

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"
)

// FormatBlocks renders blocks back into SRT text.
func FormatBlocks(blocks []Block) string {
	var sb strings.Builder
	for _, block := range blocks {
		fmt.Fprintf(&sb, "%d\n", block.Index)
		fmt.Fprintf(&sb, "%s --> %s\n", FormatTimestamp(block.StartTime), FormatTimestamp(block.EndTime))
		fmt.Fprintf(&sb, "%s\n\n", strings.Join(block.Text, "\n"))
	}
	return sb.String()
}

// WriteBlocks writes blocks to path as an SRT file.
func WriteBlocks(path string, blocks []Block) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create subtitle file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	defer writer.Flush()

	if _, err := writer.WriteString(FormatBlocks(blocks)); err != nil {
		return fmt.Errorf("failed to write subtitle file: %w", err)
	}
	return nil
}

// FormatTimestamp formats a duration in SRT timestamp form, HH:MM:SS,mmm.
func FormatTimestamp(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, milliseconds)
}
