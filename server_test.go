package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/oszuidwest/zwfm-webmlive/internal/config"
	"github.com/oszuidwest/zwfm-webmlive/internal/device"
	"github.com/oszuidwest/zwfm-webmlive/internal/media/mediatest"
	"github.com/oszuidwest/zwfm-webmlive/internal/pipeline"
	"github.com/oszuidwest/zwfm-webmlive/internal/server"
	"github.com/oszuidwest/zwfm-webmlive/internal/types"
)

// newTestServer builds a pipeline over fake devices and serves it.
func newTestServer(t *testing.T, fw *mediatest.Framework) (*Server, *pipeline.Builder, *httptest.Server) {
	t.Helper()
	cfg := config.New(filepath.Join(t.TempDir(), "config.json"))

	var srv *Server
	b, err := pipeline.New(fw, pipeline.WithObserver(pipelineObserver(nil, func() {
		if srv != nil {
			srv.StatusChanged()
		}
	})))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	srv = NewServer(cfg, server.NewSharedLister(device.NewEnumerator(fw)), b, true)
	ts := httptest.NewServer(srv.SetupRoutes())
	t.Cleanup(ts.Close)
	return srv, b, ts
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // test request
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp
}

func fakeDevices() *mediatest.Framework {
	fw := mediatest.NewFramework()
	fw.Video = append(fw.Video, mediatest.Device("USB Capture", mediatest.Camera("USB Capture")))
	fw.Audio = append(fw.Audio, mediatest.Device("Line In", mediatest.Microphone("Line In")))
	return fw
}

func TestStatusEndpoint(t *testing.T) {
	_, b, ts := newTestServer(t, fakeDevices())
	require.NoError(t, b.Build("", ""))

	var status types.WSStatusResponse
	resp := getJSON(t, ts.URL+"/api/status", &status)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.True(t, status.FFmpegAvailable)
	assert.Equal(t, types.StateReady, status.Pipeline.State)
	assert.Equal(t, []string{"VideoSource", "VP8Encoder", "AudioSource"}, status.Pipeline.Nodes)
	assert.Equal(t, "USB Capture", status.Pipeline.VideoDevice)
	assert.Equal(t, "Line In", status.Pipeline.AudioDevice)
}

func TestStatusEndpointFailedBuild(t *testing.T) {
	_, b, ts := newTestServer(t, mediatest.NewFramework())
	require.Error(t, b.Build("", ""))

	var status types.WSStatusResponse
	getJSON(t, ts.URL+"/api/status", &status)

	assert.Equal(t, types.StateFailed, status.Pipeline.State)
	assert.Equal(t, types.KindNoVideoSource, status.Pipeline.ErrorKind)
}

func TestDevicesEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t, fakeDevices())

	var devices types.WSDevicesResponse
	resp := getJSON(t, ts.URL+"/api/devices?category=video", &devices)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []types.Device{{Index: 0, Name: "USB Capture"}}, devices.Devices)

	var bad map[string]string
	resp = getJSON(t, ts.URL+"/api/devices?category=midi", &bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, bad["error"], "category")
}

func TestDevicesEndpointNoneFound(t *testing.T) {
	_, _, ts := newTestServer(t, mediatest.NewFramework())

	var devices types.WSDevicesResponse
	resp := getJSON(t, ts.URL+"/api/devices?category=audio", &devices)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, devices.Devices)
	assert.NotEmpty(t, devices.Error)
}

func TestDevicesEndpointListingFailure(t *testing.T) {
	fw := mediatest.NewFramework()
	fw.VideoErr = errors.New("probe timed out")
	_, _, ts := newTestServer(t, fw)

	var body map[string]string
	resp := getJSON(t, ts.URL+"/api/devices?category=video", &body)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["error"], "probe timed out")
}

func TestDegradedServer(t *testing.T) {
	cfg := config.New(filepath.Join(t.TempDir(), "config.json"))
	ts := httptest.NewServer(NewServer(cfg, nil, nil, false).SetupRoutes())
	defer ts.Close()

	var status types.WSStatusResponse
	getJSON(t, ts.URL+"/api/status", &status)
	assert.False(t, status.FFmpegAvailable)
	assert.Equal(t, types.StateIdle, status.Pipeline.State)

	var body map[string]string
	resp := getJSON(t, ts.URL+"/api/devices?category=video", &body)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return conn
}

// readUntil reads messages until one has the wanted type.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg map[string]json.RawMessage
		require.NoError(t, conn.ReadJSON(&msg))
		var got string
		require.NoError(t, json.Unmarshal(msg["type"], &got))
		if got == typ {
			return msg
		}
	}
}

func TestWebSocket(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	_, b, ts := newTestServer(t, fakeDevices())
	conn := dial(t, ts)

	msg := readUntil(t, conn, "status")
	var pipelineStatus types.PipelineStatus
	require.NoError(t, json.Unmarshal(msg["pipeline"], &pipelineStatus))
	assert.Equal(t, types.StateIdle, pipelineStatus.State)

	require.NoError(t, b.Build("", ""))

	require.NoError(t, conn.WriteJSON(server.WSCommand{Type: "devices/list", Data: json.RawMessage(`{"category":"audio"}`)}))
	msg = readUntil(t, conn, "devices/list_result")
	var ok bool
	require.NoError(t, json.Unmarshal(msg["success"], &ok))
	assert.True(t, ok)

	require.NoError(t, conn.WriteJSON(server.WSCommand{Type: "pipeline/run"}))
	msg = readUntil(t, conn, "pipeline/run_result")
	var data map[string]string
	require.NoError(t, json.Unmarshal(msg["data"], &data))
	assert.Equal(t, string(types.KindRunFailed), data["kind"])

	for {
		msg = readUntil(t, conn, "status")
		require.NoError(t, json.Unmarshal(msg["pipeline"], &pipelineStatus))
		if pipelineStatus.State == types.StateFailed {
			break
		}
	}

	require.NoError(t, conn.Close())
	ts.Close()
}

func TestDevicesEndpointRateLimit(t *testing.T) {
	_, _, ts := newTestServer(t, fakeDevices())

	for range deviceRequestLimit {
		var devices types.WSDevicesResponse
		resp := getJSON(t, ts.URL+"/api/devices?category=video", &devices)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	var body map[string]string
	resp := getJSON(t, ts.URL+"/api/devices?category=video", &body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))

	var status types.WSStatusResponse
	resp = getJSON(t, ts.URL+"/api/status", &status)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	_, b, ts := newTestServer(t, fakeDevices())
	require.NoError(t, b.Build("", ""))

	resp, err := http.Get(ts.URL + "/metrics") //nolint:noctx // test request
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "webmlive_pipeline_transitions_total")
}
