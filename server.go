package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oszuidwest/zwfm-webmlive/internal/config"
	"github.com/oszuidwest/zwfm-webmlive/internal/server"
	"github.com/oszuidwest/zwfm-webmlive/internal/types"
)

// statusInterval is the period of unsolicited status pushes.
const statusInterval = 3 * time.Second

// Device listing runs probe commands, so clients are limited per address.
const (
	deviceRequestLimit  = 30
	deviceRequestWindow = time.Minute
)

// Server is an HTTP server that exposes the pipeline status and device lists.
type Server struct {
	config   *config.Config
	devices  server.DeviceLister
	commands *server.CommandHandler
	notifier *server.StatusNotifier
}

// NewServer returns a new Server. devices and p may be nil when FFmpeg is
// unavailable.
func NewServer(cfg *config.Config, devices server.DeviceLister, p server.Pipeline, ffmpegAvailable bool) *Server {
	snap := cfg.Snapshot()
	return &Server{
		config:   cfg,
		devices:  devices,
		commands: server.NewCommandHandler(devices, p, snap.EventLogPath, ffmpegAvailable),
		notifier: server.NewStatusNotifier(),
	}
}

// StatusChanged pushes a fresh status to every connected client.
func (s *Server) StatusChanged() {
	s.notifier.Notify()
}

// handleWebSocket handles bidirectional WebSocket communication for real-time updates.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.UpgradeConnection(w, r)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	// Only the writer goroutine writes to the connection.
	send := make(chan any, 16)
	done := make(chan struct{})
	statusUpdate := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(statusUpdate)

	go s.runWebSocketWriter(conn, send)
	go s.runWebSocketReader(conn, send, done, statusUpdate)

	s.runWebSocketEventLoop(send, done, statusUpdate)
}

// runWebSocketWriter writes messages from the send channel to the connection.
func (s *Server) runWebSocketWriter(conn server.WebSocketConn, send <-chan any) {
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("WebSocket close error", "error", err)
		}
	}()
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// runWebSocketReader reads commands from the connection and dispatches them.
func (s *Server) runWebSocketReader(conn server.WebSocketConn, send chan<- any, done, statusUpdate chan<- struct{}) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in WebSocket reader", "panic", r)
		}
		close(done)
	}()

	for {
		var cmd server.WSCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		s.commands.Handle(cmd, send, func() {
			select {
			case statusUpdate <- struct{}{}:
			default:
			}
		})
	}
}

// runWebSocketEventLoop sends the initial status and then pushes updates on
// change and on a fixed interval until the reader finishes.
func (s *Server) runWebSocketEventLoop(send chan any, done, statusUpdate <-chan struct{}) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	trySend := func(msg any) bool {
		select {
		case send <- msg:
			return true
		case <-done:
			return false
		}
	}

	if !trySend(s.commands.Status()) {
		close(send)
		return
	}

	for {
		select {
		case <-done:
			close(send)
			return
		case <-statusUpdate:
		case <-ticker.C:
		}
		if !trySend(s.commands.Status()) {
			close(send)
			return
		}
	}
}

// SetupRoutes returns an [http.Handler] configured with all application routes.
func (s *Server) SetupRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.Get("/api/status", s.handleStatus)
	r.With(deviceRateLimit()).Get("/api/devices", s.handleDevices)
	r.Get("/ws", s.handleWebSocket)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// deviceRateLimit limits device listing requests per client address.
func deviceRateLimit() func(http.Handler) http.Handler {
	return httprate.Limit(
		deviceRequestLimit,
		deviceRequestWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(deviceRequestWindow.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many device listing requests"})
		}),
	)
}

// securityHeaders returns middleware that wraps handlers with security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.commands.Status())
}

// handleDevices handles GET /api/devices?category=video.
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	category := types.Category(r.URL.Query().Get("category"))
	if !category.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category must be one of: audio video"})
		return
	}
	if s.devices == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "device listing unavailable: FFmpeg not found"})
		return
	}

	devices, err := s.devices.Enumerate(category)
	resp := types.WSDevicesResponse{Type: "devices", Category: category, Devices: devices}
	if err != nil {
		if !errors.Is(err, types.ErrNoDeviceFound) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Start begins the HTTP server.
// Returns an *http.Server that can be used for graceful shutdown.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.config.Snapshot().WebPort)
	slog.Info("starting web server", "addr", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return srv
}
