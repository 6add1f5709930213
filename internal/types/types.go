// Package types provides shared type definitions used across the pipeline builder.
package types

// Category selects which capture device population to enumerate.
type Category string

const (
	// CategoryAudioCapture is the population of audio capture devices.
	CategoryAudioCapture Category = "audio"
	// CategoryVideoCapture is the population of video capture devices.
	CategoryVideoCapture Category = "video"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryAudioCapture || c == CategoryVideoCapture
}

// Direction is the data flow direction of an endpoint.
type Direction string

const (
	// DirectionInput marks an endpoint that consumes samples.
	DirectionInput Direction = "input"
	// DirectionOutput marks an endpoint that produces samples.
	DirectionOutput Direction = "output"
)

// MediaKind is the major media type carried by an endpoint.
type MediaKind string

const (
	// MediaUnknown marks an endpoint whose media types carry neither audio nor video.
	MediaUnknown MediaKind = "unknown"
	// MediaAudio marks an endpoint that carries audio samples.
	MediaAudio MediaKind = "audio"
	// MediaVideo marks an endpoint that carries video frames.
	MediaVideo MediaKind = "video"
)

// PipelineState represents the lifecycle state of a pipeline builder.
type PipelineState string

const (
	// StateIdle indicates no device or graph work has happened yet.
	StateIdle PipelineState = "idle"
	// StateBuilt indicates an empty graph exists.
	StateBuilt PipelineState = "built"
	// StateVideoSourceReady indicates the video capture node is in the graph.
	StateVideoSourceReady PipelineState = "video_source_ready"
	// StateEncoderReady indicates the encoder node is in the graph and configured.
	StateEncoderReady PipelineState = "encoder_ready"
	// StateVideoConnected indicates the video source feeds the encoder.
	StateVideoConnected PipelineState = "video_connected"
	// StateAudioSourceReady indicates an audio source has been resolved.
	StateAudioSourceReady PipelineState = "audio_source_ready"
	// StateReady indicates the build sequence completed.
	StateReady PipelineState = "ready"
	// StateRunning indicates the graph is executing.
	StateRunning PipelineState = "running"
	// StateStopped indicates a stop was requested.
	StateStopped PipelineState = "stopped"
	// StateFailed indicates a construction step failed. It is terminal.
	StateFailed PipelineState = "failed"
)

// Device describes a capture device found by one enumeration pass.
// Index is only meaningful within the pass that produced it.
type Device struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// Connection describes an established link between two graph nodes.
type Connection struct {
	From string    `json:"from"` // Label of the node owning the output endpoint
	To   string    `json:"to"`   // Label of the node owning the input endpoint
	Kind MediaKind `json:"kind"`
}

// PipelineStatus is a point-in-time summary of a pipeline builder.
type PipelineStatus struct {
	ID          string        `json:"id,omitzero"`
	State       PipelineState `json:"state"`
	LastError   string        `json:"last_error,omitzero"`
	ErrorKind   ErrorKind     `json:"error_kind,omitzero"`
	Nodes       []string      `json:"nodes"`
	Connections []Connection  `json:"connections"`
	AudioShared bool          `json:"audio_shared,omitzero"` // Audio taken from the video source node
	VideoDevice string        `json:"video_device,omitzero"`
	AudioDevice string        `json:"audio_device,omitzero"`
	OutputPath  string        `json:"output_path,omitzero"`
}
