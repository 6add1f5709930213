package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/oszuidwest/zwfm-webmlive/internal/eventlog"
	"github.com/oszuidwest/zwfm-webmlive/internal/types"
)

// DefaultEventLimit is the number of events returned when events/list
// does not specify a limit.
const DefaultEventLimit = 50

// WSCommand is a command received from a WebSocket client.
type WSCommand struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DeviceLister enumerates capture devices.
type DeviceLister interface {
	Enumerate(category types.Category) ([]types.Device, error)
}

// Pipeline is the view of the pipeline builder the commands operate on.
type Pipeline interface {
	Status() types.PipelineStatus
	Preview() ([]string, error)
	Run() error
	Stop() error
}

// CommandHandler processes WebSocket commands.
type CommandHandler struct {
	devices         DeviceLister
	pipeline        Pipeline
	eventLogPath    string
	ffmpegAvailable bool
}

// NewCommandHandler creates a new command handler. An empty eventLogPath
// disables events/list.
func NewCommandHandler(devices DeviceLister, p Pipeline, eventLogPath string, ffmpegAvailable bool) *CommandHandler {
	return &CommandHandler{
		devices:         devices,
		pipeline:        p,
		eventLogPath:    eventLogPath,
		ffmpegAvailable: ffmpegAvailable,
	}
}

// Handle processes a WebSocket command and performs the requested action.
// Commands use slash-style format: namespace/action (e.g., "devices/list").
func (h *CommandHandler) Handle(cmd WSCommand, send chan<- any, triggerStatusUpdate func()) {
	namespace, action, _ := strings.Cut(cmd.Type, "/")

	switch namespace {
	case "devices":
		h.handleDevices(action, cmd, send)
	case "pipeline":
		h.handlePipeline(action, cmd, send)
	case "events":
		h.handleEvents(action, cmd, send)
	case "status":
		h.handleStatus(action, send)
	default:
		slog.Warn("unknown WebSocket command", "type", cmd.Type)
	}

	triggerStatusUpdate()
}

// Status builds the status message pushed to clients.
func (h *CommandHandler) Status() types.WSStatusResponse {
	resp := types.WSStatusResponse{
		Type:            "status",
		FFmpegAvailable: h.ffmpegAvailable,
	}
	if h.pipeline == nil {
		resp.Pipeline = types.PipelineStatus{State: types.StateIdle, Nodes: []string{}, Connections: []types.Connection{}}
		return resp
	}

	resp.Pipeline = h.pipeline.Status()
	preview, err := h.pipeline.Preview()
	if err != nil {
		slog.Debug("no command line preview", "error", err)
	}
	resp.Preview = preview
	return resp
}

// handleDevices routes devices/* commands
func (h *CommandHandler) handleDevices(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "list":
		h.handleListDevices(cmd, send)
	default:
		slog.Warn("unknown devices action", "action", action)
	}
}

// handlePipeline routes pipeline/* commands
func (h *CommandHandler) handlePipeline(action string, cmd WSCommand, send chan<- any) {
	if action != "status" && h.pipeline == nil {
		SendError(send, cmd.Type, errors.New("no pipeline: FFmpeg not available"))
		return
	}

	switch action {
	case "status":
		SendSuccess(send, cmd.Type, h.Status())
	case "run":
		h.runPipelineAction(cmd, send, h.pipeline.Run)
	case "stop":
		h.runPipelineAction(cmd, send, h.pipeline.Stop)
	default:
		slog.Warn("unknown pipeline action", "action", action)
	}
}

// runPipelineAction applies a lifecycle operation to the pipeline.
func (h *CommandHandler) runPipelineAction(cmd WSCommand, send chan<- any, action func() error) {
	if err := action(); err != nil {
		SendError(send, cmd.Type, err)
		return
	}
	SendSuccess(send, cmd.Type, nil)
}

// handleEvents routes events/* commands
func (h *CommandHandler) handleEvents(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "list":
		h.handleListEvents(cmd, send)
	default:
		slog.Warn("unknown events action", "action", action)
	}
}

// handleStatus routes status/* commands
func (h *CommandHandler) handleStatus(action string, send chan<- any) {
	switch action {
	case "get":
		// Status is sent automatically, but explicit get triggers immediate update
		slog.Debug("status/get received, status update will be triggered")
	default:
		slog.Warn("unknown status action", "action", action)
	}
}

// handleListDevices enumerates a category off the reader goroutine, since
// listing runs external probe commands.
func (h *CommandHandler) handleListDevices(cmd WSCommand, send chan<- any) {
	var req DevicesListRequest
	if !DecodeAndValidate(cmd, send, &req) {
		return
	}
	if h.devices == nil {
		SendError(send, cmd.Type, errors.New("device listing unavailable: FFmpeg not found"))
		return
	}

	category := types.Category(req.Category)
	HandleActionAsync(cmd, send, func() (any, error) {
		devices, err := h.devices.Enumerate(category)
		resp := types.WSDevicesResponse{
			Type:     "devices",
			Category: category,
			Devices:  devices,
		}
		if err != nil {
			if !errors.Is(err, types.ErrNoDeviceFound) {
				return nil, err
			}
			resp.Devices = []types.Device{}
			resp.Error = err.Error()
		}
		return resp, nil
	})
}

func (h *CommandHandler) handleListEvents(cmd WSCommand, send chan<- any) {
	var req EventsListRequest
	if !DecodeAndValidate(cmd, send, &req) {
		return
	}
	if h.eventLogPath == "" {
		SendError(send, cmd.Type, errors.New("event log is not configured"))
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = DefaultEventLimit
	}
	events, hasMore, err := eventlog.ReadLast(h.eventLogPath, limit, req.Offset, eventlog.TypeFilter(req.Filter))
	if err != nil {
		SendError(send, cmd.Type, err)
		return
	}
	SendSuccess(send, cmd.Type, map[string]any{
		"events":   events,
		"has_more": hasMore,
	})
}
