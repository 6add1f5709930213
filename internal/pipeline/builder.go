// Package pipeline builds the capture-to-encoder graph and tracks its lifecycle.
//
// The build sequence is fixed: graph, video source, encoder, video
// connection, audio source. The first failing step moves the builder to
// StateFailed and no further step runs. Nothing is retried; a new attempt
// needs a new Builder.
package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/oszuidwest/zwfm-webmlive/internal/device"
	"github.com/oszuidwest/zwfm-webmlive/internal/graph"
	"github.com/oszuidwest/zwfm-webmlive/internal/media"
	"github.com/oszuidwest/zwfm-webmlive/internal/types"
)

// Node labels used when adding filters to the graph.
const (
	LabelVideoSource   = "VideoSource"
	LabelAudioSource   = "AudioSource"
	LabelVP8Encoder    = "VP8Encoder"
	LabelVorbisEncoder = "VorbisEncoder" // Reserved for the audio encoder stage
)

// Fixed encoder profile for live capture.
const (
	DefaultDeadline      = media.DeadlineRealtime
	DefaultEndUsage      = media.EndUsageCBR
	DefaultTargetBitrate = 500 // kbps
)

// Device choice is fixed to the first enumerated entry.
const (
	DefaultVideoDevice = 0
	DefaultAudioDevice = 0
)

// Option configures a Builder.
type Option func(*Builder)

// WithObserver registers a callback invoked after every state change.
// Observers run outside the builder's lock and may call Status.
func WithObserver(fn func(Transition)) Option {
	return func(b *Builder) {
		b.observers = append(b.observers, fn)
	}
}

// WithOutputPath sets the path of the WebM file the graph will produce.
func WithOutputPath(path string) Option {
	return func(b *Builder) {
		b.outputPath = path
	}
}

// Previewer is implemented by filter graphs that can render themselves as a
// command line for diagnostics.
type Previewer interface {
	Args(outputPath string) ([]string, error)
}

// Builder drives the construction of one pipeline. It is safe for
// concurrent use. Operations run one at a time under opMu; mu guards the
// state and is only held for short mutations, so Status and Preview do not
// wait for device probes.
type Builder struct {
	id      string
	fw      media.Framework
	devices *device.Enumerator
	graph   *graph.Graph

	state   types.PipelineState
	lastErr error

	videoNode   media.Node
	videoDevice types.Device
	encoder     media.EncoderNode
	audioNode   media.Node
	audioDevice types.Device
	audioShared bool

	outputPath string
	observers  []func(Transition)

	opMu      sync.Mutex
	mu        sync.RWMutex
	closeOnce sync.Once
	closeErr  error
}

// New opens the media framework and returns an idle Builder. The framework
// stays open until Close.
func New(fw media.Framework, opts ...Option) (*Builder, error) {
	if fw == nil {
		return nil, types.Errorf(types.KindInvalidArgument, "open framework", "nil framework")
	}
	if err := fw.Open(); err != nil {
		return nil, types.NewError(types.KindCreationFailed, "open framework", err)
	}

	b := &Builder{
		id:      uuid.NewString(),
		fw:      fw,
		devices: device.NewEnumerator(fw),
		state:   types.StateIdle,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Close releases the graph and the media framework. It is safe to call more
// than once; only the first call has any effect.
func (b *Builder) Close() error {
	b.closeOnce.Do(func() {
		b.opMu.Lock()
		defer b.opMu.Unlock()
		b.mu.Lock()
		g := b.graph
		b.mu.Unlock()

		var result *multierror.Error
		if g != nil {
			if c, ok := g.Backend().(io.Closer); ok {
				if err := c.Close(); err != nil {
					result = multierror.Append(result, fmt.Errorf("release graph: %w", err))
				}
			}
		}
		if err := b.fw.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close framework: %w", err))
		}
		b.closeErr = result.ErrorOrNil()
	})
	return b.closeErr
}

// ID returns the identifier of this builder. Events and status reports
// carry it so that builds of successive runs can be told apart.
func (b *Builder) ID() string {
	return b.id
}

// State returns the current pipeline state.
func (b *Builder) State() types.PipelineState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Err returns the error that moved the builder to StateFailed, if any.
func (b *Builder) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastErr
}

// Status returns a snapshot of the builder.
func (b *Builder) Status() types.PipelineStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	status := types.PipelineStatus{
		ID:          b.id,
		State:       b.state,
		Nodes:       []string{},
		Connections: []types.Connection{},
		AudioShared: b.audioShared,
		OutputPath:  b.outputPath,
	}
	if b.lastErr != nil {
		status.LastError = b.lastErr.Error()
		status.ErrorKind = types.KindOf(b.lastErr)
	}
	if b.graph != nil {
		status.Nodes = b.graph.Nodes()
		status.Connections = b.graph.Connections()
	}
	if b.videoNode != nil {
		status.VideoDevice = b.videoDevice.Name
	}
	if b.audioNode != nil {
		status.AudioDevice = b.audioDevice.Name
	}
	return status
}

// Preview renders the current graph as a command line if the framework
// supports it. It returns nil when there is nothing to render.
func (b *Builder) Preview() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.graph == nil {
		return nil, nil
	}
	p, ok := b.graph.Backend().(Previewer)
	if !ok {
		return nil, nil
	}
	return p.Args(b.outputPath)
}

// Build runs the full build sequence and stops at the first failure.
// Empty source names select the default devices.
func (b *Builder) Build(videoSource, audioSource string) error {
	if err := b.BuildGraph(); err != nil {
		return err
	}
	if err := b.AcquireVideoSource(videoSource); err != nil {
		return err
	}
	if err := b.ConfigureEncoder(); err != nil {
		return err
	}
	if err := b.ConnectVideo(); err != nil {
		return err
	}
	if err := b.AcquireAudioSource(audioSource); err != nil {
		return err
	}
	return b.step("complete build", types.StateAudioSourceReady, types.StateReady, func() error { return nil })
}

// Initialize checks that the builder has not started any work.
func (b *Builder) Initialize() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.state != types.StateIdle {
		return types.Errorf(types.KindInvalidState, "initialize", "state is %s", b.state)
	}
	return nil
}

// BuildGraph allocates an empty graph.
func (b *Builder) BuildGraph() error {
	return b.step("build graph", types.StateIdle, types.StateBuilt, b.buildGraph)
}

// AcquireVideoSource adds the first video capture device to the graph.
// Choosing a source by name is not implemented.
func (b *Builder) AcquireVideoSource(name string) error {
	return b.step("acquire video source", types.StateBuilt, types.StateVideoSourceReady, func() error {
		return b.acquireVideoSource(name)
	})
}

// ConfigureEncoder adds the VP8 encoder and applies the live profile.
func (b *Builder) ConfigureEncoder() error {
	return b.step("configure encoder", types.StateVideoSourceReady, types.StateEncoderReady, b.configureEncoder)
}

// ConnectVideo connects the video source to the encoder.
func (b *Builder) ConnectVideo() error {
	return b.step("connect video", types.StateEncoderReady, types.StateVideoConnected, b.connectVideo)
}

// AcquireAudioSource resolves the audio source, preferring an audio output
// on the video source node over a separate audio device.
// Choosing a source by name is not implemented.
func (b *Builder) AcquireAudioSource(name string) error {
	return b.step("acquire audio source", types.StateVideoConnected, types.StateAudioSourceReady, func() error {
		return b.acquireAudioSource(name)
	})
}

// Run would start graph execution. Execution belongs to the media runtime,
// so this always fails and leaves the builder in StateFailed.
func (b *Builder) Run() error {
	b.opMu.Lock()
	b.mu.Lock()
	from := b.state
	if from == types.StateFailed {
		b.mu.Unlock()
		b.opMu.Unlock()
		return types.Errorf(types.KindInvalidState, "run", "pipeline already failed")
	}
	err := types.Errorf(types.KindRunFailed, "run", "graph execution is not available")
	b.state = types.StateFailed
	b.lastErr = err
	t := Transition{Pipeline: b.id, From: from, To: types.StateFailed, Err: err, At: time.Now()}
	b.mu.Unlock()
	b.opMu.Unlock()

	slog.Error("run failed", "error", err)
	b.notify(t)
	return err
}

// Stop records the intent to halt. It always succeeds; a failed pipeline
// stays failed.
func (b *Builder) Stop() error {
	b.opMu.Lock()
	b.mu.Lock()
	from := b.state
	if from == types.StateFailed || from == types.StateStopped {
		b.mu.Unlock()
		b.opMu.Unlock()
		return nil
	}
	b.state = types.StateStopped
	t := Transition{Pipeline: b.id, From: from, To: types.StateStopped, At: time.Now()}
	b.mu.Unlock()
	b.opMu.Unlock()

	slog.Info("pipeline stopped", "from", from)
	b.notify(t)
	return nil
}

// step runs one build operation that is only valid in state from. On
// success the builder moves to to, otherwise to StateFailed. fn runs
// without mu; it takes mu itself around the fields it changes.
func (b *Builder) step(op string, from, to types.PipelineState, fn func() error) error {
	b.opMu.Lock()
	b.mu.RLock()
	cur := b.state
	b.mu.RUnlock()
	if cur != from {
		b.opMu.Unlock()
		return types.Errorf(types.KindInvalidState, op, "state is %s, need %s", cur, from)
	}
	if !canTransition(from, to) {
		b.opMu.Unlock()
		return types.Errorf(types.KindInvalidState, op, "no transition %s -> %s", from, to)
	}

	err := fn()

	b.mu.Lock()
	t := Transition{Pipeline: b.id, From: from, At: time.Now()}
	if err != nil {
		b.state = types.StateFailed
		b.lastErr = err
		t.To = types.StateFailed
		t.Err = err
	} else {
		b.state = to
		t.To = to
	}
	b.mu.Unlock()
	b.opMu.Unlock()

	if err != nil {
		slog.Error("pipeline step failed", "step", op, "kind", types.KindOf(err), "error", err)
	} else {
		slog.Info("pipeline step done", "step", op, "state", to)
	}
	b.notify(t)
	return err
}

// locked runs fn with mu held.
func (b *Builder) locked(fn func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fn()
}

func (b *Builder) notify(t Transition) {
	for _, fn := range b.observers {
		fn(t)
	}
}

func (b *Builder) buildGraph() error {
	const op = "build graph"
	fg, err := b.fw.NewFilterGraph()
	if err != nil {
		return types.NewError(types.KindGraphCreationFailed, op, types.NewError(types.KindCreationFailed, "create filter graph", err))
	}
	if fg == nil {
		return types.Errorf(types.KindGraphCreationFailed, op, "framework returned no graph")
	}
	return b.locked(func() error {
		b.graph = graph.New(fg)
		return nil
	})
}

func (b *Builder) acquireVideoSource(name string) error {
	const op = "acquire video source"
	if name != "" {
		return types.NewError(types.KindNoVideoSource, op,
			types.Errorf(types.KindNotImplemented, op, "selecting video source %q by name", name))
	}

	devices, err := b.devices.Enumerate(types.CategoryVideoCapture)
	if err != nil {
		return types.NewError(types.KindNoVideoSource, op, err)
	}
	device.Log(types.CategoryVideoCapture, devices)

	node, dev, err := b.devices.Select(types.CategoryVideoCapture, DefaultVideoDevice)
	if err != nil {
		return types.NewError(types.KindNoVideoSource, op, err)
	}
	return b.locked(func() error {
		if err := b.graph.Add(node, LabelVideoSource); err != nil {
			return types.NewError(types.KindNoVideoSource, op, err)
		}
		b.videoNode = node
		b.videoDevice = dev
		return nil
	})
}

func (b *Builder) configureEncoder() error {
	const op = "configure encoder"
	enc, err := b.fw.NewEncoder()
	if err != nil {
		return types.NewError(types.KindVideoEncoderError, op, types.NewError(types.KindCreationFailed, "create encoder", err))
	}
	if enc == nil {
		return types.Errorf(types.KindVideoEncoderError, op, "framework returned no encoder")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.graph.Add(enc, LabelVP8Encoder); err != nil {
		return types.NewError(types.KindVideoEncoderError, op, err)
	}
	b.encoder = enc

	settings := []struct {
		name  string
		apply func() error
	}{
		{"deadline", func() error { return enc.SetDeadline(DefaultDeadline) }},
		{"end usage", func() error { return enc.SetEndUsage(DefaultEndUsage) }},
		{"target bitrate", func() error { return enc.SetTargetBitrate(DefaultTargetBitrate) }},
	}
	for _, s := range settings {
		if err := s.apply(); err != nil {
			slog.Error("cannot set encoder parameter", "parameter", s.name, "error", err)
			return types.NewError(types.KindVideoEncoderError, op,
				types.NewError(types.KindVpxConfigureError, "set "+s.name,
					types.NewError(types.KindConfigureFailed, "", err)))
		}
	}
	return nil
}

func (b *Builder) connectVideo() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.graph.ConnectVideo(b.videoNode, b.encoder); err != nil {
		return types.NewError(types.KindVideoConnectError, "connect video", err)
	}
	return nil
}

func (b *Builder) acquireAudioSource(name string) error {
	const op = "acquire audio source"
	if name != "" {
		return types.NewError(types.KindNoAudioSource, op,
			types.Errorf(types.KindNotImplemented, op, "selecting audio source %q by name", name))
	}

	_, ok, err := graph.Find(b.videoNode, types.DirectionOutput, types.MediaAudio, 0)
	if err != nil {
		return types.NewError(types.KindNoAudioSource, op, err)
	}
	if ok {
		slog.Info("using video source audio output")
		return b.locked(func() error {
			b.audioNode = b.videoNode
			b.audioDevice = b.videoDevice
			b.audioShared = true
			return nil
		})
	}

	devices, err := b.devices.Enumerate(types.CategoryAudioCapture)
	if err != nil {
		return types.NewError(types.KindNoAudioSource, op, err)
	}
	device.Log(types.CategoryAudioCapture, devices)

	node, dev, err := b.devices.Select(types.CategoryAudioCapture, DefaultAudioDevice)
	if err != nil {
		return types.NewError(types.KindNoAudioSource, op, err)
	}
	return b.locked(func() error {
		if err := b.graph.Add(node, LabelAudioSource); err != nil {
			return types.NewError(types.KindNoAudioSource, op, err)
		}
		b.audioNode = node
		b.audioDevice = dev
		return nil
	})
}
