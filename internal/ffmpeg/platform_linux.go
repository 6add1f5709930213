//go:build linux

package ffmpeg

func getPlatformConfig() platformConfig {
	return v4l2Config()
}
