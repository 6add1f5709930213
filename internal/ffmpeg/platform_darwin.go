//go:build darwin

package ffmpeg

func getPlatformConfig() platformConfig {
	return avfoundationConfig()
}
