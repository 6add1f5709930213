package ffmpeg

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/oszuidwest/zwfm-webmlive/internal/media"
)

// ErrNoCommonFormat is returned when two pins share no concrete format.
var ErrNoCommonFormat = errors.New("no common media format")

type graphNode struct {
	node  media.Node
	label string
}

// negotiatedLink is a direct connection and the format agreed for it.
type negotiatedLink struct {
	out    *pin
	in     *pin
	format media.MediaType
}

// filterGraph collects the nodes and links of one FFmpeg invocation.
type filterGraph struct {
	mu     sync.Mutex
	nodes  []graphNode
	links  []negotiatedLink
	closed bool
}

// AddFilter implements media.FilterGraph.
func (g *filterGraph) AddFilter(node media.Node, label string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return errors.New("graph released")
	}
	switch node.(type) {
	case *captureNode, *encoderNode:
	default:
		return fmt.Errorf("node %q was not created by the ffmpeg framework", node.Name())
	}
	for _, n := range g.nodes {
		if n.label == label {
			return fmt.Errorf("label %q already in use", label)
		}
		if n.node == node {
			return fmt.Errorf("node %q already added", node.Name())
		}
	}
	g.nodes = append(g.nodes, graphNode{node: node, label: label})
	return nil
}

// ConnectDirect implements media.FilterGraph. The first format of the output
// pin, in its preference order, that the input pin also accepts is used.
func (g *filterGraph) ConnectDirect(out, in media.Pin) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return errors.New("graph released")
	}
	op, ok := out.(*pin)
	if !ok {
		return fmt.Errorf("output pin %q is foreign", out.ID())
	}
	ip, ok := in.(*pin)
	if !ok {
		return fmt.Errorf("input pin %q is foreign", in.ID())
	}
	if !g.hasNode(op.owner) || !g.hasNode(ip.owner) {
		return errors.New("pin owner is not in the graph")
	}

	for _, f := range op.formats {
		if slices.Contains(ip.formats, f) {
			g.links = append(g.links, negotiatedLink{out: op, in: ip, format: f})
			return nil
		}
	}
	return fmt.Errorf("%w between %s and %s", ErrNoCommonFormat, op.owner.Name(), ip.owner.Name())
}

// Close releases the graph. Later calls on it fail.
func (g *filterGraph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.nodes = nil
	g.links = nil
	return nil
}

func (g *filterGraph) hasNode(n media.Node) bool {
	return slices.ContainsFunc(g.nodes, func(gn graphNode) bool { return gn.node == n })
}

// Args renders the graph as FFmpeg arguments writing WebM to outputPath.
// Every capture node becomes an input; the video link into the encoder
// selects the pixel format and the first capture node carrying audio is
// mapped through Vorbis.
func (g *filterGraph) Args(outputPath string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var video *negotiatedLink
	for i := range g.links {
		if _, ok := g.links[i].in.owner.(*encoderNode); ok {
			video = &g.links[i]
			break
		}
	}
	if video == nil {
		return nil, errors.New("graph has no connected video stream")
	}
	enc := video.in.owner.(*encoderNode)

	args := []string{"-hide_banner", "-nostdin"}
	videoIndex, audioIndex := -1, -1
	inputs := 0
	for _, n := range g.nodes {
		cn, ok := n.node.(*captureNode)
		if !ok {
			continue
		}
		args = append(args, "-f", cn.format)
		if video.out.owner == cn {
			args = append(args, "-pixel_format", video.format.Subtype)
			videoIndex = inputs
		}
		args = append(args, "-i", cn.input)
		if audioIndex < 0 && cn.hasAudio() {
			audioIndex = inputs
		}
		inputs++
	}

	if videoIndex < 0 {
		return nil, errors.New("video stream does not come from a capture input")
	}

	args = append(args, "-map", strconv.Itoa(videoIndex)+":v")
	args = append(args, enc.args()...)
	if audioIndex >= 0 {
		args = append(args, "-map", strconv.Itoa(audioIndex)+":a", "-c:a", "libvorbis")
	}
	args = append(args, "-f", "webm")
	if outputPath == "" {
		outputPath = "pipe:1"
	}
	return append(args, outputPath), nil
}
