package util

import (
	"fmt"
	"regexp"
	"strings"
)

// maxErrorLineLength is the maximum length for extracted error messages.
const maxErrorLineLength = 200

// WrapError wraps an error with a descriptive operation context.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// logPrefix matches the "[component @ 0x55d0c8]" context FFmpeg puts in
// front of its log lines.
var logPrefix = regexp.MustCompile(`^\[[^\]]*@\s*[0-9a-fA-Fx]+\]\s*`)

// ExtractLastError returns the last non-empty line of FFmpeg output with
// its log context removed, shortened to maxErrorLineLength.
func ExtractLastError(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(logPrefix.ReplaceAllString(strings.TrimSpace(lines[i]), ""))
		if line == "" {
			continue
		}
		if len(line) > maxErrorLineLength {
			return line[:maxErrorLineLength] + "..."
		}
		return line
	}
	return ""
}
