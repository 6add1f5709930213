package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oszuidwest/zwfm-webmlive/internal/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := New(path)

	require.NoError(t, cfg.Load())

	info, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var saved map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.InDelta(t, DefaultWebPort, saved["system"]["port"], 0)
	assert.Equal(t, DefaultOutputPath, saved["output"]["path"])
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `{
		"system": {"ffmpeg_path": "/usr/local/bin/ffmpeg", "port": 9090},
		"capture": {"video_source": "", "audio_source": ""},
		"output": {"path": "/srv/live/capture.webm"},
		"log": {"event_log_path": "/var/log/webmlive/pipeline.jsonl"}
	}`)
	cfg := New(path)

	require.NoError(t, cfg.Load())

	snap := cfg.Snapshot()
	assert.Equal(t, "/usr/local/bin/ffmpeg", snap.FFmpegPath)
	assert.Equal(t, 9090, snap.WebPort)
	assert.Equal(t, "/srv/live/capture.webm", snap.OutputPath)
	assert.True(t, snap.HasEventLog())
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg := New(writeConfig(t, `{"capture": {"video_source": "USB Capture"}}`))

	require.NoError(t, cfg.Load())

	snap := cfg.Snapshot()
	assert.Equal(t, DefaultWebPort, snap.WebPort)
	assert.Equal(t, DefaultOutputPath, snap.OutputPath)
	assert.Equal(t, "USB Capture", snap.VideoSource)
	assert.False(t, snap.HasEventLog())
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	cfg := New(writeConfig(t, `{"system": {"port": 70000}}`))

	err := cfg.Load()

	var verr *types.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Errors, 1)
	assert.Equal(t, "system.port", verr.Errors[0].Field)
}

func TestLoadRejectsTraversal(t *testing.T) {
	cfg := New(writeConfig(t, `{"output": {"path": "../../etc/capture.webm"}, "log": {"event_log_path": "logs/../x.jsonl"}}`))

	err := cfg.Load()

	var verr *types.ValidationError
	require.True(t, errors.As(err, &verr))
	fields := make([]string, 0, len(verr.Errors))
	for _, fe := range verr.Errors {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"output.path", "log.event_log_path"}, fields)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	cfg := New(writeConfig(t, `{"system": `))

	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestNewDefaults(t *testing.T) {
	snap := New("unused.json").Snapshot()

	assert.Equal(t, DefaultWebPort, snap.WebPort)
	assert.Equal(t, DefaultOutputPath, snap.OutputPath)
	assert.Empty(t, snap.FFmpegPath)
}

func TestFieldPath(t *testing.T) {
	assert.Equal(t, "system.port", fieldPath("Config.system.port"))
	assert.Equal(t, "port", fieldPath("port"))
}

func TestLoadRequiresWebMOutput(t *testing.T) {
	cfg := New(writeConfig(t, `{"output": {"path": "/srv/live/capture.mkv"}}`))

	err := cfg.Load()

	var verr *types.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Errors, 1)
	assert.Equal(t, "output.path", verr.Errors[0].Field)
	assert.Equal(t, "must end in .webm", verr.Errors[0].Message)
}
