package ffmpeg

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/oszuidwest/zwfm-webmlive/internal/types"
)

// DeviceListConfig defines how to list capture devices of one category.
type DeviceListConfig struct {
	// Command and args to list devices. A leading "ffmpeg" is replaced by the
	// configured FFmpeg path.
	Command []string

	// StartMarker indicates the start of the relevant section (optional).
	StartMarker string

	// StopMarker indicates the end of the relevant section (optional).
	StopMarker string

	// DevicePattern is the regex to extract device info.
	DevicePattern *regexp.Regexp

	// ParseDevice converts regex matches to a device entry.
	ParseDevice func(matches []string) *deviceEntry
}

// deviceEntry is one listed device. An empty Name is kept so the enumerator
// can decide what to do with unnamed devices.
type deviceEntry struct {
	Name string
	// Input is the FFmpeg -i argument that opens the device.
	Input string
}

// parseDeviceList extracts device entries from listing output in order.
//
//nolint:gocritic // hugeParam: config is passed once per enumeration
func parseDeviceList(output string, cfg DeviceListConfig) []deviceEntry {
	var devices []deviceEntry
	inSection := cfg.StartMarker == "" // If no marker, always in section

	for line := range strings.SplitSeq(output, "\n") {
		if cfg.StartMarker != "" && strings.Contains(line, cfg.StartMarker) {
			inSection = true
			continue
		}
		if cfg.StopMarker != "" && strings.Contains(line, cfg.StopMarker) {
			inSection = false
			continue
		}
		if !inSection {
			continue
		}

		// Skip alternative name lines (Windows DirectShow).
		if strings.Contains(line, "Alternative name") {
			continue
		}

		if cfg.DevicePattern == nil || cfg.ParseDevice == nil {
			continue
		}
		matches := cfg.DevicePattern.FindStringSubmatch(line)
		if len(matches) == 0 {
			continue
		}
		if dev := cfg.ParseDevice(matches); dev != nil {
			devices = append(devices, *dev)
		}
	}
	return devices
}

// listDevices runs the listing command for a category and parses its output.
// FFmpeg exits non-zero after listing devices, so output wins over the error.
func (f *Framework) listDevices(category types.Category) ([]deviceEntry, error) {
	cfg := f.platform.Video
	if category == types.CategoryAudioCapture {
		cfg = f.platform.Audio
	}
	if len(cfg.Command) == 0 {
		return nil, nil
	}

	output, err := f.run(cfg.Command)
	if err != nil && len(output) == 0 {
		slog.Error("failed to list capture devices", "category", category, "error", err)
		return nil, err
	}
	return parseDeviceList(string(output), cfg), nil
}
