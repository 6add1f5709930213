package ffmpeg

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oszuidwest/zwfm-webmlive/internal/media"
	"github.com/oszuidwest/zwfm-webmlive/internal/types"
)

// Sentinel errors for framework lifecycle misuse.
var (
	ErrNotOpen     = errors.New("ffmpeg framework not open")
	ErrAlreadyOpen = errors.New("ffmpeg framework already open")
	ErrNoBinary    = errors.New("ffmpeg binary not configured")
)

var _ media.Framework = (*Framework)(nil)

// Framework implements media.Framework by probing the FFmpeg binary.
type Framework struct {
	path     string
	runner   Runner
	platform platformConfig

	mu      sync.Mutex
	open    bool
	version string
}

// Option configures a Framework.
type Option func(*Framework)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(f *Framework) {
		f.runner = r
	}
}

// withPlatform replaces the platform configuration.
func withPlatform(cfg platformConfig) Option {
	return func(f *Framework) {
		f.platform = cfg
	}
}

// New returns a Framework that runs the FFmpeg binary at ffmpegPath.
func New(ffmpegPath string, opts ...Option) *Framework {
	f := &Framework{
		path:     ffmpegPath,
		runner:   ExecRunner{},
		platform: getPlatformConfig(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Open checks that the binary runs and is recent enough.
func (f *Framework) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.open {
		return ErrAlreadyOpen
	}
	if f.path == "" {
		return ErrNoBinary
	}

	out, err := f.run([]string{"ffmpeg", "-hide_banner", "-version"})
	if err != nil {
		return fmt.Errorf("probe ffmpeg: %w", err)
	}
	version := ParseVersion(string(out))
	if err := CheckVersion(version); err != nil {
		return err
	}
	if version == "" {
		slog.Warn("unrecognized ffmpeg version, assuming snapshot build", "path", f.path)
	} else {
		slog.Info("ffmpeg framework opened", "path", f.path, "version", version)
	}

	f.version = version
	f.open = true
	return nil
}

// Close marks the framework closed. Closing a closed framework is a no-op.
func (f *Framework) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	return nil
}

// Version returns the version detected by Open.
func (f *Framework) Version() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

func (f *Framework) isOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// NewFilterGraph implements media.Framework.
func (f *Framework) NewFilterGraph() (media.FilterGraph, error) {
	if !f.isOpen() {
		return nil, ErrNotOpen
	}
	return &filterGraph{}, nil
}

// NewEncoder implements media.Framework.
func (f *Framework) NewEncoder() (media.EncoderNode, error) {
	if !f.isOpen() {
		return nil, ErrNotOpen
	}
	return newEncoderNode(), nil
}

// Devices implements media.Framework. Video devices that share their name
// with an audio device are paired when the platform can open both through a
// single input.
func (f *Framework) Devices(category types.Category) ([]media.Moniker, error) {
	if !f.isOpen() {
		return nil, ErrNotOpen
	}

	entries, err := f.listDevices(category)
	if err != nil {
		return nil, err
	}

	var audio []deviceEntry
	if category == types.CategoryVideoCapture && f.platform.Combine != nil {
		audio, err = f.listDevices(types.CategoryAudioCapture)
		if err != nil {
			slog.Warn("cannot list audio devices for pairing", "error", err)
			audio = nil
		}
	}

	monikers := make([]media.Moniker, 0, len(entries))
	for _, e := range entries {
		m := &moniker{platform: &f.platform, category: category, entry: e}
		if e.Name != "" {
			for _, a := range audio {
				if a.Name == e.Name {
					m.combined = f.platform.Combine(e, a)
					break
				}
			}
		}
		monikers = append(monikers, m)
	}
	return monikers, nil
}

// moniker is one listed device.
type moniker struct {
	platform *platformConfig
	category types.Category
	entry    deviceEntry
	combined string
}

func (m *moniker) Properties() (media.PropertyBag, error) {
	bag := propertyBag{media.PropertyDevicePath: m.entry.Input}
	if m.entry.Name != "" {
		bag[media.PropertyFriendlyName] = m.entry.Name
	}
	return bag, nil
}

func (m *moniker) Bind() (media.Node, error) {
	if m.entry.Input == "" {
		return nil, fmt.Errorf("device %q has no input path", m.entry.Name)
	}
	return newCaptureNode(m.platform, m.category, m.entry, m.combined), nil
}

// propertyBag is a fixed set of device properties.
type propertyBag map[string]string

func (b propertyBag) Read(name string) (string, bool) {
	v, ok := b[name]
	return v, ok
}
