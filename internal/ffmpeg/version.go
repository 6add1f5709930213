package ffmpeg

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// MinVersion is the oldest FFmpeg release accepted. Earlier libvpx wrappers
// lack the deadline and CBR controls the encoder profile relies on.
const MinVersion = "v4.0.0"

var versionPattern = regexp.MustCompile(`ffmpeg version n?(\d+)(?:\.(\d+))?(?:\.(\d+))?`)

// ParseVersion extracts a semantic version from `ffmpeg -version` output.
// Git snapshot builds (e.g. "N-113045-g...") return an empty string.
func ParseVersion(output string) string {
	line, _, _ := strings.Cut(output, "\n")
	m := versionPattern.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	parts := []string{m[1], "0", "0"}
	if m[2] != "" {
		parts[1] = m[2]
	}
	if m[3] != "" {
		parts[2] = m[3]
	}
	v := "v" + strings.Join(parts, ".")
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

// CheckVersion reports an error if version is a release older than MinVersion.
// An empty version (snapshot build) is accepted.
func CheckVersion(version string) error {
	if version == "" {
		return nil
	}
	if semver.Compare(version, MinVersion) < 0 {
		return fmt.Errorf("ffmpeg %s is older than required %s", version, MinVersion)
	}
	return nil
}
