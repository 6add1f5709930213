// Package main provides a live capture service that builds a VP8/WebM
// encoding pipeline from the first video and audio capture devices and
// serves its status over HTTP and WebSocket.
//
// Usage:
//
//	webmlive [-config path/to/config.json]
//
// If -config is not specified, the service looks for config.json in the same
// directory as the binary.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/oszuidwest/zwfm-webmlive/internal/config"
	"github.com/oszuidwest/zwfm-webmlive/internal/device"
	"github.com/oszuidwest/zwfm-webmlive/internal/eventlog"
	"github.com/oszuidwest/zwfm-webmlive/internal/ffmpeg"
	"github.com/oszuidwest/zwfm-webmlive/internal/metrics"
	"github.com/oszuidwest/zwfm-webmlive/internal/pipeline"
	"github.com/oszuidwest/zwfm-webmlive/internal/server"
	"github.com/oszuidwest/zwfm-webmlive/internal/util"
)

// Build information, set via -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: config.json next to binary)")
	showVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *showVersion {
		slog.Info("version info", "version", Version, "commit", Commit, "build_time", BuildTime)
		return
	}

	if *configPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			slog.Error("failed to get executable path", "error", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(filepath.Dir(execPath), "config.json")
	}

	slog.Info("using config file", "path", *configPath)

	cfg := config.New(*configPath)
	if err := cfg.Load(); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	snap := cfg.Snapshot()

	var events *eventlog.Logger
	if snap.HasEventLog() {
		l, err := eventlog.NewLogger(snap.EventLogPath)
		if err != nil {
			slog.Error("failed to open event log", "path", snap.EventLogPath, "error", err)
		} else {
			events = l
			slog.Info("event log enabled", "path", l.Path())
		}
	}

	ffmpegPath, err := util.ResolveBinary(snap.FFmpegPath, "ffmpeg")
	ffmpegAvailable := err == nil
	if !ffmpegAvailable {
		slog.Warn("FFmpeg not found - running in degraded mode",
			"configured_path", snap.FFmpegPath, "error", err)
	} else {
		slog.Info("FFmpeg found", "path", ffmpegPath)
	}
	// Sound cards are listed with arecord on Linux.
	if runtime.GOOS == "linux" {
		if _, err := util.ResolveBinary("", "arecord"); err != nil {
			slog.Warn("audio capture devices cannot be listed", "error", err)
		}
	}

	var (
		builder *pipeline.Builder
		srv     *Server
	)
	if ffmpegAvailable {
		fw := ffmpeg.New(ffmpegPath)
		b, err := pipeline.New(fw,
			pipeline.WithOutputPath(snap.OutputPath),
			pipeline.WithObserver(pipelineObserver(events, func() {
				if srv != nil {
					srv.StatusChanged()
				}
			})),
		)
		if err != nil {
			slog.Error("failed to open media framework", "error", err)
		} else {
			builder = b
			slog.Info("pipeline created", "id", b.ID())
			srv = NewServer(cfg, server.NewSharedLister(device.NewEnumerator(fw)), builder, true)
		}
	}
	if srv == nil {
		srv = NewServer(cfg, nil, nil, false)
	}

	if builder != nil {
		buildPipeline(builder, snap)
	}

	httpServer := srv.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, util.ShutdownSignals()...)
	<-sigChan

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if builder != nil {
		if err := builder.Stop(); err != nil {
			slog.Error("error stopping pipeline", "error", err)
		}
		if err := builder.Close(); err != nil {
			slog.Error("error closing pipeline", "error", err)
		}
	}
	if events != nil {
		if err := events.Close(); err != nil {
			slog.Error("error closing event log", "error", err)
		}
	}

	slog.Info("shutdown complete")
}

// pipelineObserver returns an observer that records each transition in the
// event log (if enabled) and in the metrics, then calls notify.
func pipelineObserver(events *eventlog.Logger, notify func()) func(pipeline.Transition) {
	return func(t pipeline.Transition) {
		metrics.ObserveTransition(t.From, t.To, t.Err)
		if events != nil {
			if err := events.LogTransition(t.Pipeline, t.At, t.From, t.To, t.Err); err != nil {
				slog.Warn("failed to write event", "error", err)
			}
		}
		notify()
	}
}

// buildPipeline assembles the graph from the configured sources and logs
// the command line it renders to.
func buildPipeline(b *pipeline.Builder, snap config.Snapshot) {
	slog.Info("building pipeline", "output", snap.OutputPath)
	if err := util.CheckPathWritable(filepath.Dir(snap.OutputPath)); err != nil {
		slog.Warn("output directory is not writable", "path", snap.OutputPath, "error", err)
	}
	if err := b.Build(snap.VideoSource, snap.AudioSource); err != nil {
		slog.Error("failed to build pipeline", "state", b.State(), "error", err)
		return
	}

	status := b.Status()
	slog.Info("pipeline ready",
		"video_device", status.VideoDevice,
		"audio_device", status.AudioDevice,
		"audio_shared", status.AudioShared)

	args, err := b.Preview()
	if err != nil {
		slog.Warn("cannot render command line", "error", err)
		return
	}
	if args != nil {
		slog.Info("rendered command line", "args", strings.Join(args, " "))
	}
}
