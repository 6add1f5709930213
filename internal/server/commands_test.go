package server

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/oszuidwest/zwfm-webmlive/internal/device"
	"github.com/oszuidwest/zwfm-webmlive/internal/eventlog"
	"github.com/oszuidwest/zwfm-webmlive/internal/media/mediatest"
	"github.com/oszuidwest/zwfm-webmlive/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeLister struct {
	devices map[types.Category][]types.Device
	err     error
}

func (f *fakeLister) Enumerate(category types.Category) ([]types.Device, error) {
	if f.err != nil {
		return nil, f.err
	}
	devices := f.devices[category]
	if len(devices) == 0 {
		return []types.Device{}, types.Errorf(types.KindNoDeviceFound, "enumerate devices", "no %s capture devices", category)
	}
	return devices, nil
}

type fakePipeline struct {
	mu     sync.Mutex
	status types.PipelineStatus
	runs   int
	stops  int
}

func (p *fakePipeline) Status() types.PipelineStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *fakePipeline) Preview() ([]string, error) {
	return []string{"-f", "webm", "pipe:1"}, nil
}

func (p *fakePipeline) Run() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs++
	p.status.State = types.StateFailed
	return types.Errorf(types.KindRunFailed, "run", "graph execution is not available")
}

func (p *fakePipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	p.status.State = types.StateStopped
	return nil
}

func command(t *testing.T, typ string, data any) WSCommand {
	t.Helper()
	cmd := WSCommand{Type: typ}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		cmd.Data = raw
	}
	return cmd
}

func receive(t *testing.T, send <-chan any) types.WSCommandResult {
	t.Helper()
	select {
	case msg := <-send:
		result, ok := msg.(types.WSCommandResult)
		require.True(t, ok, "unexpected message %T", msg)
		return result
	case <-time.After(2 * time.Second):
		t.Fatal("no response")
		return types.WSCommandResult{}
	}
}

func handle(h *CommandHandler, cmd WSCommand, send chan<- any) int {
	triggered := 0
	h.Handle(cmd, send, func() { triggered++ })
	return triggered
}

func TestListDevices(t *testing.T) {
	lister := &fakeLister{devices: map[types.Category][]types.Device{
		types.CategoryVideoCapture: {{Index: 0, Name: "USB Capture"}},
	}}
	h := NewCommandHandler(lister, nil, "", true)
	send := make(chan any, 4)

	assert.Equal(t, 1, handle(h, command(t, "devices/list", DevicesListRequest{Category: "video"}), send))

	result := receive(t, send)
	assert.True(t, result.Success)
	assert.Equal(t, "devices/list_result", result.Type)
	resp, ok := result.Data.(types.WSDevicesResponse)
	require.True(t, ok)
	assert.Equal(t, types.CategoryVideoCapture, resp.Category)
	require.Len(t, resp.Devices, 1)
	assert.Equal(t, "USB Capture", resp.Devices[0].Name)
	assert.Empty(t, resp.Error)
}

func TestListDevicesNoneFound(t *testing.T) {
	h := NewCommandHandler(&fakeLister{}, nil, "", true)
	send := make(chan any, 4)

	handle(h, command(t, "devices/list", DevicesListRequest{Category: "audio"}), send)

	result := receive(t, send)
	assert.True(t, result.Success)
	resp, ok := result.Data.(types.WSDevicesResponse)
	require.True(t, ok)
	assert.NotNil(t, resp.Devices)
	assert.Empty(t, resp.Devices)
	assert.Contains(t, resp.Error, "no audio capture devices")
}

func TestListDevicesFailure(t *testing.T) {
	h := NewCommandHandler(&fakeLister{err: errors.New("ffmpeg crashed")}, nil, "", true)
	send := make(chan any, 4)

	handle(h, command(t, "devices/list", DevicesListRequest{Category: "video"}), send)

	result := receive(t, send)
	assert.False(t, result.Success)
	assert.Equal(t, "ffmpeg crashed", result.Message)
}

func TestListDevicesEnumerationFailure(t *testing.T) {
	fw := mediatest.NewFramework()
	fw.VideoErr = errors.New("probe timed out")
	h := NewCommandHandler(NewSharedLister(device.NewEnumerator(fw)), nil, "", true)
	send := make(chan any, 4)

	handle(h, command(t, "devices/list", DevicesListRequest{Category: "video"}), send)

	result := receive(t, send)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "probe timed out")
	assert.Equal(t, map[string]types.ErrorKind{"kind": types.KindEnumerationFailed}, result.Data)
}

func TestListDevicesEnumeratorNoneFound(t *testing.T) {
	h := NewCommandHandler(NewSharedLister(device.NewEnumerator(mediatest.NewFramework())), nil, "", true)
	send := make(chan any, 4)

	handle(h, command(t, "devices/list", DevicesListRequest{Category: "video"}), send)

	result := receive(t, send)
	assert.True(t, result.Success)
	resp, ok := result.Data.(types.WSDevicesResponse)
	require.True(t, ok)
	assert.Empty(t, resp.Devices)
	assert.Contains(t, resp.Error, "no video capture devices")
}

func TestListDevicesValidation(t *testing.T) {
	h := NewCommandHandler(&fakeLister{}, nil, "", true)
	send := make(chan any, 4)

	handle(h, command(t, "devices/list", map[string]string{"category": "midi"}), send)

	result := receive(t, send)
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	require.Len(t, result.Error.Errors, 1)
	assert.Equal(t, "category", result.Error.Errors[0].Field)
	assert.Equal(t, "must be one of: audio video", result.Error.Errors[0].Message)

	handle(h, WSCommand{Type: "devices/list"}, send)
	result = receive(t, send)
	require.NotNil(t, result.Error)
	assert.Equal(t, "is required", result.Error.Errors[0].Message)

	handle(h, WSCommand{Type: "devices/list", Data: json.RawMessage(`{"category":`)}, send)
	result = receive(t, send)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "invalid JSON")
}

func TestListDevicesWithoutLister(t *testing.T) {
	h := NewCommandHandler(nil, nil, "", false)
	send := make(chan any, 4)

	handle(h, command(t, "devices/list", DevicesListRequest{Category: "video"}), send)

	result := receive(t, send)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "device listing unavailable")
}

func TestPipelineRunReportsKind(t *testing.T) {
	p := &fakePipeline{status: types.PipelineStatus{State: types.StateReady}}
	h := NewCommandHandler(nil, p, "", true)
	send := make(chan any, 4)

	handle(h, WSCommand{Type: "pipeline/run"}, send)

	result := receive(t, send)
	assert.False(t, result.Success)
	assert.Equal(t, map[string]types.ErrorKind{"kind": types.KindRunFailed}, result.Data)
	assert.Equal(t, 1, p.runs)
}

func TestPipelineStop(t *testing.T) {
	p := &fakePipeline{status: types.PipelineStatus{State: types.StateReady}}
	h := NewCommandHandler(nil, p, "", true)
	send := make(chan any, 4)

	handle(h, WSCommand{Type: "pipeline/stop"}, send)

	result := receive(t, send)
	assert.True(t, result.Success)
	assert.Equal(t, 1, p.stops)
	assert.Equal(t, types.StateStopped, h.Status().Pipeline.State)
}

func TestPipelineStatus(t *testing.T) {
	p := &fakePipeline{status: types.PipelineStatus{State: types.StateReady, VideoDevice: "USB Capture"}}
	h := NewCommandHandler(nil, p, "", true)
	send := make(chan any, 4)

	handle(h, WSCommand{Type: "pipeline/status"}, send)

	result := receive(t, send)
	assert.True(t, result.Success)
	status, ok := result.Data.(types.WSStatusResponse)
	require.True(t, ok)
	assert.Equal(t, "USB Capture", status.Pipeline.VideoDevice)
	assert.Equal(t, []string{"-f", "webm", "pipe:1"}, status.Preview)
}

func TestPipelineWithoutFFmpeg(t *testing.T) {
	h := NewCommandHandler(nil, nil, "", false)
	send := make(chan any, 4)

	handle(h, WSCommand{Type: "pipeline/run"}, send)
	result := receive(t, send)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "FFmpeg not available")

	handle(h, WSCommand{Type: "pipeline/status"}, send)
	result = receive(t, send)
	assert.True(t, result.Success)
	status, ok := result.Data.(types.WSStatusResponse)
	require.True(t, ok)
	assert.False(t, status.FFmpegAvailable)
	assert.Equal(t, types.StateIdle, status.Pipeline.State)
	assert.NotNil(t, status.Pipeline.Nodes)
}

func TestListEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.jsonl")
	logger, err := eventlog.NewLogger(path)
	require.NoError(t, err)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, logger.LogTransition("build-1", at, types.StateIdle, types.StateBuilt, nil))
	require.NoError(t, logger.LogTransition("build-1", at.Add(time.Second), types.StateBuilt, types.StateFailed,
		types.Errorf(types.KindNoVideoSource, "acquire video source", "no device")))
	require.NoError(t, logger.Close())

	h := NewCommandHandler(nil, nil, path, true)
	send := make(chan any, 4)

	handle(h, command(t, "events/list", EventsListRequest{Limit: 1}), send)

	result := receive(t, send)
	require.True(t, result.Success, result.Message)
	data, ok := result.Data.(map[string]any)
	require.True(t, ok)
	events, ok := data["events"].([]eventlog.Event)
	require.True(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, eventlog.PipelineFailed, events[0].Type)
	assert.Equal(t, true, data["has_more"])

	handle(h, command(t, "events/list", map[string]any{"filter": "build"}), send)
	result = receive(t, send)
	require.True(t, result.Success)
	events = result.Data.(map[string]any)["events"].([]eventlog.Event)
	require.Len(t, events, 1)
	assert.Equal(t, eventlog.GraphBuilt, events[0].Type)
}

func TestListEventsValidation(t *testing.T) {
	h := NewCommandHandler(nil, nil, filepath.Join(t.TempDir(), "pipeline.jsonl"), true)
	send := make(chan any, 4)

	handle(h, command(t, "events/list", map[string]any{"limit": 501, "filter": "audio"}), send)

	result := receive(t, send)
	require.NotNil(t, result.Error)
	assert.Len(t, result.Error.Errors, 2)
}

func TestListEventsWithoutLog(t *testing.T) {
	h := NewCommandHandler(nil, nil, "", true)
	send := make(chan any, 4)

	handle(h, WSCommand{Type: "events/list"}, send)

	result := receive(t, send)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "event log is not configured")
}

func TestUnknownCommandStillTriggersStatus(t *testing.T) {
	h := NewCommandHandler(nil, nil, "", true)
	send := make(chan any, 4)

	assert.Equal(t, 1, handle(h, WSCommand{Type: "recorder/start"}, send))
	assert.Equal(t, 1, handle(h, WSCommand{Type: "status/get"}, send))
	assert.Empty(t, send)
}

func TestSendDropsWhenFull(t *testing.T) {
	send := make(chan any)

	assert.NotPanics(t, func() { SendSuccess(send, "status/get", nil) })

	closed := make(chan any, 1)
	close(closed)
	assert.NotPanics(t, func() { SendError(closed, "devices/list", errors.New("late")) })
}
