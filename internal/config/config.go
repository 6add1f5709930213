// Package config provides application configuration management.
package config

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/oszuidwest/zwfm-webmlive/internal/types"
	"github.com/oszuidwest/zwfm-webmlive/internal/util"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultWebPort    = 8080
	DefaultOutputPath = "capture.webm"
)

// SystemConfig holds system-level settings that require restart.
type SystemConfig struct {
	// Path to FFmpeg binary (empty = use PATH)
	FFmpegPath string `json:"ffmpeg_path" validate:"omitempty,max=4096"`
	// HTTP status server port
	Port int `json:"port" validate:"required,gte=1,lte=65535"`
}

// CaptureConfig holds capture source selection. Named sources are not
// supported yet; a non-empty value makes the build fail with not_implemented.
type CaptureConfig struct {
	VideoSource string `json:"video_source" validate:"omitempty,max=256"` // Video capture device name
	AudioSource string `json:"audio_source" validate:"omitempty,max=256"` // Audio capture device name
}

// OutputConfig holds the produced container settings.
type OutputConfig struct {
	Path string `json:"path" validate:"required,max=4096"` // WebM output file
}

// LogConfig holds event log settings.
type LogConfig struct {
	EventLogPath string `json:"event_log_path" validate:"omitempty,max=4096"` // JSON lines event log (empty = disabled)
}

// Config holds all application configuration. It is safe for concurrent use.
type Config struct {
	System  SystemConfig  `json:"system"`
	Capture CaptureConfig `json:"capture"`
	Output  OutputConfig  `json:"output"`
	Log     LogConfig     `json:"log"`

	mu       sync.RWMutex
	filePath string
}

var validate = util.NewValidator()

// New creates a new Config with default values.
func New(filePath string) *Config {
	return &Config{
		System: SystemConfig{
			Port: DefaultWebPort,
		},
		Output: OutputConfig{
			Path: DefaultOutputPath,
		},
		filePath: filePath,
	}
}

// Load reads config from file, creating a default if none exists.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return c.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return util.WrapError("parse config", err)
	}

	c.applyDefaults()

	return c.validate()
}

// validate checks all configuration fields for correctness.
func (c *Config) validate() error {
	verr := types.NewValidationError()

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return util.WrapError("validate config", err)
		}
		for _, fe := range fieldErrs {
			verr.Add(fieldPath(fe.Namespace()), util.ValidationMessage(fe), fe.Value())
		}
	}

	if err := util.ValidateFilePath(c.Output.Path, ".webm"); err != nil {
		verr.Add("output.path", err.Error(), c.Output.Path)
	}
	if c.Log.EventLogPath != "" {
		if err := util.ValidateFilePath(c.Log.EventLogPath); err != nil {
			verr.Add("log.event_log_path", err.Error(), c.Log.EventLogPath)
		}
	}

	if len(verr.Errors) > 0 {
		return verr
	}
	return nil
}

// fieldPath strips the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return rest
}

// applyDefaults sets default values for zero-value fields.
func (c *Config) applyDefaults() {
	if c.System.Port == 0 {
		c.System.Port = DefaultWebPort
	}
	if c.Output.Path == "" {
		c.Output.Path = DefaultOutputPath
	}
}

// saveLocked persists configuration. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return util.WrapError("marshal config", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}

	return nil
}

// Snapshot is a point-in-time copy of all configuration values.
type Snapshot struct {
	FFmpegPath   string
	WebPort      int
	VideoSource  string
	AudioSource  string
	OutputPath   string
	EventLogPath string
}

// Snapshot returns a point-in-time copy of all configuration values.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		FFmpegPath:   c.System.FFmpegPath,
		WebPort:      cmp.Or(c.System.Port, DefaultWebPort),
		VideoSource:  c.Capture.VideoSource,
		AudioSource:  c.Capture.AudioSource,
		OutputPath:   cmp.Or(c.Output.Path, DefaultOutputPath),
		EventLogPath: c.Log.EventLogPath,
	}
}

// HasEventLog reports whether an event log path is configured.
func (s *Snapshot) HasEventLog() bool {
	return s.EventLogPath != ""
}
