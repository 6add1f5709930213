// Package eventlog records pipeline lifecycle events in a JSON lines file.
// Build progress (graph_built through pipeline_ready) and terminal events
// (pipeline_failed, pipeline_stopped) share one file.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-webmlive/internal/types"
)

// EventType represents the type of event.
type EventType string

// Build event types.
const (
	GraphBuilt       EventType = "graph_built"
	VideoSourceReady EventType = "video_source_ready"
	EncoderReady     EventType = "encoder_ready"
	VideoConnected   EventType = "video_connected"
	AudioSourceReady EventType = "audio_source_ready"
	PipelineReady    EventType = "pipeline_ready"
)

// Lifecycle event types.
const (
	PipelineRunning EventType = "pipeline_running"
	PipelineFailed  EventType = "pipeline_failed"
	PipelineStopped EventType = "pipeline_stopped"
)

// stateEvents maps the state entered to the event recorded for it.
var stateEvents = map[types.PipelineState]EventType{
	types.StateBuilt:            GraphBuilt,
	types.StateVideoSourceReady: VideoSourceReady,
	types.StateEncoderReady:     EncoderReady,
	types.StateVideoConnected:   VideoConnected,
	types.StateAudioSourceReady: AudioSourceReady,
	types.StateReady:            PipelineReady,
	types.StateRunning:          PipelineRunning,
	types.StateFailed:           PipelineFailed,
	types.StateStopped:          PipelineStopped,
}

// EventFor returns the event type recorded when a pipeline enters state.
func EventFor(state types.PipelineState) (EventType, bool) {
	t, ok := stateEvents[state]
	return t, ok
}

// Event represents a single log entry with type-specific details.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Type      EventType `json:"type"`
	Message   string    `json:"msg,omitempty"`
	Details   any       `json:"details,omitempty"`
}

// PipelineDetails contains transition-specific event details.
type PipelineDetails struct {
	Pipeline  string              `json:"pipeline,omitempty"` // Builder ID
	From      types.PipelineState `json:"from"`
	To        types.PipelineState `json:"to"`
	ErrorKind types.ErrorKind     `json:"error_kind,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// Logger writes events to a JSON lines file.
type Logger struct {
	mu       sync.Mutex
	filePath string
	file     *os.File
	encoder  *json.Encoder
}

// DefaultLogPath returns the platform-specific log file path.
func DefaultLogPath(port int) string {
	switch runtime.GOOS {
	case "windows":
		// %PROGRAMDATA% is typically C:\ProgramData
		programData := os.Getenv("PROGRAMDATA")
		if programData == "" {
			programData = `C:\ProgramData`
		}
		return filepath.Join(programData, "webmlive", "logs", fmt.Sprintf("%d", port), "pipeline.jsonl")
	default: // linux, darwin
		//nolint:gocritic // Intentional absolute path for Unix systems
		return filepath.Join("/var/log/webmlive", fmt.Sprintf("%d", port), "pipeline.jsonl")
	}
}

// NewLogger creates a new event logger at the specified path.
func NewLogger(filePath string) (*Logger, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &Logger{
		filePath: filePath,
		file:     file,
		encoder:  json.NewEncoder(file),
	}, nil
}

// Log writes an event to the log file.
func (l *Logger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return os.ErrClosed
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	return l.encoder.Encode(event)
}

// LogTransition logs the event for a state change of the pipeline with the
// given ID. Transitions into states without an event are ignored.
func (l *Logger) LogTransition(pipelineID string, at time.Time, from, to types.PipelineState, cause error) error {
	eventType, ok := EventFor(to)
	if !ok {
		return nil
	}

	details := &PipelineDetails{Pipeline: pipelineID, From: from, To: to}
	if cause != nil {
		details.Error = cause.Error()
		details.ErrorKind = types.KindOf(cause)
	}
	return l.Log(&Event{
		Timestamp: at,
		Type:      eventType,
		Details:   details,
	})
}

// Close closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Path returns the path to the log file.
func (l *Logger) Path() string {
	return l.filePath
}

// TypeFilter specifies which event types to include when reading.
type TypeFilter string

// Filter constants for ReadLast.
const (
	FilterAll       TypeFilter = ""
	FilterBuild     TypeFilter = "build"
	FilterLifecycle TypeFilter = "lifecycle"
)

// MaxReadLimit is the maximum number of events that can be read at once.
const MaxReadLimit = 500

// ReadLast reads events from the log file with pagination support.
// Returns up to n events starting from offset, filtered by type, newest
// first, and whether more matching events exist.
func ReadLast(filePath string, n, offset int, filter TypeFilter) ([]Event, bool, error) {
	n = min(n, MaxReadLimit)
	if n <= 0 {
		return []Event{}, false, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Event{}, false, nil
		}
		return nil, false, err
	}
	defer file.Close() //nolint:errcheck // Read-only operation, close error not critical

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, false, err
	}

	events := make([]Event, 0, n)
	skipped := 0
	for i := len(lines) - 1; i >= 0; i-- {
		var event Event
		if err := json.Unmarshal([]byte(lines[i]), &event); err != nil {
			continue // Skip malformed lines
		}
		if !filter.matches(event.Type) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(events) == n {
			return events, true, nil
		}
		events = append(events, event)
	}

	return events, false, nil
}

func (f TypeFilter) matches(t EventType) bool {
	switch f {
	case FilterBuild:
		return IsBuildEvent(t)
	case FilterLifecycle:
		return IsLifecycleEvent(t)
	default:
		return true
	}
}

// IsBuildEvent returns true if the event type marks build progress.
func IsBuildEvent(t EventType) bool {
	return slices.Contains([]EventType{GraphBuilt, VideoSourceReady, EncoderReady, VideoConnected, AudioSourceReady, PipelineReady}, t)
}

// IsLifecycleEvent returns true if the event type marks run, failure or stop.
func IsLifecycleEvent(t EventType) bool {
	return t == PipelineRunning || t == PipelineFailed || t == PipelineStopped
}
