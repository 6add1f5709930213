package ffmpeg

import (
	"regexp"
	"strings"
)

// platformConfig describes how capture devices are listed and opened on the
// current platform.
type platformConfig struct {
	// VideoFormat and AudioFormat are the FFmpeg input formats (-f).
	VideoFormat string
	AudioFormat string

	Video DeviceListConfig
	Audio DeviceListConfig

	// PixelFormats are the raw formats a video capture pin advertises,
	// preferred first.
	PixelFormats []string

	// SampleFormat is the raw format an audio capture pin advertises.
	SampleFormat string

	// Combine returns the single input that opens a video device together
	// with its audio, or "" if the platform cannot pair them.
	Combine func(video, audio deviceEntry) string
}

// v4l2Config lists cameras through FFmpeg's v4l2 sources and sound cards
// through arecord.
func v4l2Config() platformConfig {
	return platformConfig{
		VideoFormat: "v4l2",
		AudioFormat: "alsa",
		Video: DeviceListConfig{
			Command: []string{"ffmpeg", "-hide_banner", "-sources", "v4l2"},
			// Match lines like: "  /dev/video0 [Integrated Camera: Integrated C]"
			DevicePattern: regexp.MustCompile(`^\s*\*?\s*(/dev/video\d+)\s+\[([^\]]*)\]`),
			ParseDevice: func(matches []string) *deviceEntry {
				if len(matches) < 3 {
					return nil
				}
				return &deviceEntry{Name: matches[2], Input: matches[1]}
			},
		},
		Audio: DeviceListConfig{
			Command:       []string{"arecord", "-l"},
			DevicePattern: regexp.MustCompile(`card\s+(\d+):\s+(\w+)\s+\[([^\]]*)\]`),
			ParseDevice: func(matches []string) *deviceEntry {
				if len(matches) < 4 {
					return nil
				}
				return &deviceEntry{Name: matches[3], Input: "default:CARD=" + matches[2]}
			},
		},
		PixelFormats: []string{"yuyv422", "mjpeg"},
		SampleFormat: "s16le",
	}
}

// dshowListing lists both populations; FFmpeg versions differ in whether they
// print section headers, so lines are filtered by their "(video)" or
// "(audio)" suffix instead.
var dshowListing = []string{"ffmpeg", "-hide_banner", "-f", "dshow", "-list_devices", "true", "-i", "dummy"}

func dshowConfig() platformConfig {
	return platformConfig{
		VideoFormat: "dshow",
		AudioFormat: "dshow",
		Video: DeviceListConfig{
			Command:       dshowListing,
			DevicePattern: regexp.MustCompile(`\[dshow[^\]]*\]\s*"([^"]*)"\s*\(video\)`),
			ParseDevice: func(matches []string) *deviceEntry {
				if len(matches) < 2 {
					return nil
				}
				name := strings.TrimSpace(matches[1])
				return &deviceEntry{Name: name, Input: "video=" + name}
			},
		},
		Audio: DeviceListConfig{
			Command:       dshowListing,
			DevicePattern: regexp.MustCompile(`\[dshow[^\]]*\]\s*"([^"]*)"\s*\(audio\)`),
			ParseDevice: func(matches []string) *deviceEntry {
				if len(matches) < 2 {
					return nil
				}
				name := strings.TrimSpace(matches[1])
				return &deviceEntry{Name: name, Input: "audio=" + name}
			},
		},
		PixelFormats: []string{"yuyv422", "nv12", "mjpeg"},
		SampleFormat: "s16le",
		Combine: func(video, audio deviceEntry) string {
			return video.Input + ":" + audio.Input
		},
	}
}

var avfoundationListing = []string{"ffmpeg", "-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", ""}

// avfoundationPattern matches lines like: [AVFoundation indev @ 0x7f] [0] FaceTime HD Camera
var avfoundationPattern = regexp.MustCompile(`\[AVFoundation[^\]]*\]\s*\[(\d+)\]\s*(.*)`)

func avfoundationConfig() platformConfig {
	return platformConfig{
		VideoFormat: "avfoundation",
		AudioFormat: "avfoundation",
		Video: DeviceListConfig{
			Command:       avfoundationListing,
			StartMarker:   "AVFoundation video devices:",
			StopMarker:    "AVFoundation audio devices:",
			DevicePattern: avfoundationPattern,
			ParseDevice: func(matches []string) *deviceEntry {
				if len(matches) < 3 {
					return nil
				}
				return &deviceEntry{Name: strings.TrimSpace(matches[2]), Input: matches[1]}
			},
		},
		Audio: DeviceListConfig{
			Command:       avfoundationListing,
			StartMarker:   "AVFoundation audio devices:",
			DevicePattern: avfoundationPattern,
			ParseDevice: func(matches []string) *deviceEntry {
				if len(matches) < 3 {
					return nil
				}
				return &deviceEntry{Name: strings.TrimSpace(matches[2]), Input: ":" + matches[1]}
			},
		},
		PixelFormats: []string{"uyvy422", "nv12", "yuyv422"},
		SampleFormat: "f32le",
		Combine: func(video, audio deviceEntry) string {
			return video.Input + audio.Input
		},
	}
}

// unsupportedConfig has no listing commands; Devices returns an empty
// population.
func unsupportedConfig() platformConfig {
	return platformConfig{
		PixelFormats: []string{"yuv420p"},
		SampleFormat: "s16le",
	}
}
