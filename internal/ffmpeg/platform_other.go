//go:build !linux && !windows && !darwin

package ffmpeg

func getPlatformConfig() platformConfig {
	return unsupportedConfig()
}
