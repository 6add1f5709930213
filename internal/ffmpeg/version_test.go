package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"release", "ffmpeg version 6.1.1 Copyright (c) 2000-2023 the FFmpeg developers\nbuilt with gcc", "v6.1.1"},
		{"distro suffix", "ffmpeg version 4.4.2-0ubuntu0.22.04.1 Copyright (c) 2000-2021", "v4.4.2"},
		{"major minor", "ffmpeg version n7.0 Copyright (c) 2000-2024", "v7.0.0"},
		{"major only", "ffmpeg version 5 Copyright", "v5.0.0"},
		{"snapshot", "ffmpeg version N-113045-g6d9bd6a Copyright (c) 2000-2023", ""},
		{"not ffmpeg", "bash: ffmpeg: command not found", ""},
		{"version on second line", "warning: something\nffmpeg version 6.0", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseVersion(tt.output))
		})
	}
}

func TestCheckVersion(t *testing.T) {
	assert.NoError(t, CheckVersion("v6.1.1"))
	assert.NoError(t, CheckVersion(MinVersion))
	assert.NoError(t, CheckVersion(""))
	assert.Error(t, CheckVersion("v3.4.8"))
}
