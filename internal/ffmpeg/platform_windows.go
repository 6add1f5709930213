//go:build windows

package ffmpeg

func getPlatformConfig() platformConfig {
	return dshowConfig()
}
