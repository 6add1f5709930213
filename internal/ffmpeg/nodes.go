package ffmpeg

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/oszuidwest/zwfm-webmlive/internal/media"
	"github.com/oszuidwest/zwfm-webmlive/internal/types"
)

// pin is a connection point of an FFmpeg-backed node.
type pin struct {
	owner     media.Node
	id        string
	direction types.Direction
	formats   []media.MediaType
}

func (p *pin) ID() string { return p.id }

func (p *pin) Direction() (types.Direction, error) { return p.direction, nil }

func (p *pin) MediaTypes() ([]media.MediaType, error) {
	out := make([]media.MediaType, len(p.formats))
	copy(out, p.formats)
	return out, nil
}

func formatsOf(kind types.MediaKind, subtypes ...string) []media.MediaType {
	mts := make([]media.MediaType, len(subtypes))
	for i, s := range subtypes {
		mts[i] = media.MediaType{Major: kind, Subtype: s}
	}
	return mts
}

// captureNode is an FFmpeg input opened from a capture device. A video
// device paired with an audio device of the same name also exposes an audio
// output pin.
type captureNode struct {
	name     string
	category types.Category
	format   string // FFmpeg input format (-f)
	input    string // FFmpeg input (-i)
	pins     []media.Pin
}

func newCaptureNode(cfg *platformConfig, category types.Category, dev deviceEntry, combined string) *captureNode {
	n := &captureNode{name: dev.Name, category: category, input: dev.Input}
	switch category {
	case types.CategoryVideoCapture:
		n.format = cfg.VideoFormat
		n.pins = append(n.pins, &pin{
			owner:     n,
			id:        "video",
			direction: types.DirectionOutput,
			formats:   formatsOf(types.MediaVideo, cfg.PixelFormats...),
		})
		if combined != "" {
			n.input = combined
			n.pins = append(n.pins, &pin{
				owner:     n,
				id:        "audio",
				direction: types.DirectionOutput,
				formats:   formatsOf(types.MediaAudio, cfg.SampleFormat),
			})
		}
	case types.CategoryAudioCapture:
		n.format = cfg.AudioFormat
		n.pins = append(n.pins, &pin{
			owner:     n,
			id:        "audio",
			direction: types.DirectionOutput,
			formats:   formatsOf(types.MediaAudio, cfg.SampleFormat),
		})
	}
	return n
}

func (n *captureNode) Name() string { return n.name }

func (n *captureNode) Pins() ([]media.Pin, error) {
	return append([]media.Pin(nil), n.pins...), nil
}

// hasAudio reports whether the node delivers an audio stream.
func (n *captureNode) hasAudio() bool {
	for _, p := range n.pins {
		if p.ID() == "audio" {
			return true
		}
	}
	return false
}

// encoderInputFormats are the raw formats libvpx accepts without a separate
// decoding or conversion stage.
var encoderInputFormats = []string{"yuv420p", "yuyv422", "uyvy422", "nv12"}

// maxTargetBitrate caps the target bitrate in kbps.
const maxTargetBitrate = 100000

// encoderNode is the libvpx VP8 encoder stage of an FFmpeg invocation.
type encoderNode struct {
	mu       sync.Mutex
	deadline media.Deadline
	endUsage media.EndUsage
	bitrate  int // kbps
	pins     []media.Pin
}

func newEncoderNode() *encoderNode {
	e := &encoderNode{
		deadline: media.DeadlineGoodQuality,
		endUsage: media.EndUsageVBR,
	}
	e.pins = []media.Pin{
		&pin{owner: e, id: "in", direction: types.DirectionInput, formats: formatsOf(types.MediaVideo, encoderInputFormats...)},
		&pin{owner: e, id: "out", direction: types.DirectionOutput, formats: formatsOf(types.MediaVideo, "vp8")},
	}
	return e
}

func (e *encoderNode) Name() string { return "libvpx" }

func (e *encoderNode) Pins() ([]media.Pin, error) {
	return append([]media.Pin(nil), e.pins...), nil
}

func (e *encoderNode) SetDeadline(d media.Deadline) error {
	switch d {
	case media.DeadlineRealtime, media.DeadlineGoodQuality, media.DeadlineBestQuality:
	default:
		return fmt.Errorf("unsupported deadline %q", d)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deadline = d
	return nil
}

func (e *encoderNode) SetEndUsage(u media.EndUsage) error {
	switch u {
	case media.EndUsageVBR, media.EndUsageCBR, media.EndUsageCQ:
	default:
		return fmt.Errorf("unsupported end usage %q", u)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.endUsage = u
	return nil
}

func (e *encoderNode) SetTargetBitrate(kbps int) error {
	if kbps <= 0 || kbps > maxTargetBitrate {
		return fmt.Errorf("target bitrate %d kbps out of range 1-%d", kbps, maxTargetBitrate)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bitrate = kbps
	return nil
}

// args returns the libvpx codec arguments for the current settings.
func (e *encoderNode) args() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	args := []string{"-c:v", "libvpx", "-deadline", string(e.deadline)}
	if e.bitrate == 0 {
		return args
	}
	rate := strconv.Itoa(e.bitrate) + "k"
	switch e.endUsage {
	case media.EndUsageCBR:
		args = append(args, "-b:v", rate, "-minrate", rate, "-maxrate", rate)
	case media.EndUsageCQ:
		args = append(args, "-crf", "10", "-b:v", rate)
	default:
		args = append(args, "-b:v", rate)
	}
	return args
}
