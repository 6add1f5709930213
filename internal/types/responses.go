package types

// WSCommandResult is the standard response for command execution.
type WSCommandResult struct {
	Type    string           `json:"type"`            // "<command>_result"
	Success bool             `json:"success"`         // true if command succeeded
	Error   *ValidationError `json:"error,omitempty"` // Validation errors if failed
	Message string           `json:"message,omitempty"`
	Data    any              `json:"data,omitempty"` // Optional response data
}

// WSStatusResponse is pushed to clients whenever the pipeline changes.
type WSStatusResponse struct {
	Type            string         `json:"type"` // "status"
	FFmpegAvailable bool           `json:"ffmpeg_available"`
	Pipeline        PipelineStatus `json:"pipeline"`
	Preview         []string       `json:"preview,omitempty"` // Rendered FFmpeg argv for the built graph
}

// WSDevicesResponse answers a devices/list command.
type WSDevicesResponse struct {
	Type     string   `json:"type"` // "devices"
	Category Category `json:"category"`
	Devices  []Device `json:"devices"`
	Error    string   `json:"error,omitempty"`
}
