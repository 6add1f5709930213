// Package mediatest provides an in-memory media framework for tests.
package mediatest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/oszuidwest/zwfm-webmlive/internal/media"
	"github.com/oszuidwest/zwfm-webmlive/internal/types"
)

// Pin is a configurable pin.
type Pin struct {
	PinID     string
	Dir       types.Direction
	DirErr    error
	Formats   []media.MediaType
	FormatErr error
}

func (p *Pin) ID() string { return p.PinID }

func (p *Pin) Direction() (types.Direction, error) { return p.Dir, p.DirErr }

func (p *Pin) MediaTypes() ([]media.MediaType, error) { return p.Formats, p.FormatErr }

// Out returns an output pin advertising the given formats.
func Out(id string, formats ...media.MediaType) *Pin {
	return &Pin{PinID: id, Dir: types.DirectionOutput, Formats: formats}
}

// In returns an input pin advertising the given formats.
func In(id string, formats ...media.MediaType) *Pin {
	return &Pin{PinID: id, Dir: types.DirectionInput, Formats: formats}
}

// Video is a raw video format.
func Video(subtype string) media.MediaType {
	return media.MediaType{Major: types.MediaVideo, Subtype: subtype}
}

// Audio is a raw audio format.
func Audio(subtype string) media.MediaType {
	return media.MediaType{Major: types.MediaAudio, Subtype: subtype}
}

// Node is a configurable node.
type Node struct {
	NodeName string
	PinList  []media.Pin
	PinsErr  error
}

// NewNode returns a node exposing pins in order.
func NewNode(name string, pins ...*Pin) *Node {
	n := &Node{NodeName: name}
	for _, p := range pins {
		n.PinList = append(n.PinList, p)
	}
	return n
}

func (n *Node) Name() string { return n.NodeName }

func (n *Node) Pins() ([]media.Pin, error) { return n.PinList, n.PinsErr }

// Camera returns a video-only capture node.
func Camera(name string) *Node {
	return NewNode(name, Out("video", Video("yuyv422")))
}

// AVCamera returns a capture node with a video and an audio output.
func AVCamera(name string) *Node {
	return NewNode(name, Out("video", Video("yuyv422")), Out("audio", Audio("s16le")))
}

// Microphone returns an audio-only capture node.
func Microphone(name string) *Node {
	return NewNode(name, Out("audio", Audio("s16le")))
}

// Encoder is a configurable encoder node that records applied settings.
type Encoder struct {
	Node

	mu          sync.Mutex
	Deadline    media.Deadline
	EndUsage    media.EndUsage
	Bitrate     int
	DeadlineErr error
	EndUsageErr error
	BitrateErr  error
	Calls       []string
}

// NewEncoder returns an encoder with a raw video input and a VP8 output.
func NewEncoder() *Encoder {
	return &Encoder{Node: *NewNode("vp8enc", In("in", Video("yuyv422"), Video("yuv420p")), Out("out", Video("vp8")))}
}

func (e *Encoder) SetDeadline(d media.Deadline) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls = append(e.Calls, "deadline")
	if e.DeadlineErr != nil {
		return e.DeadlineErr
	}
	e.Deadline = d
	return nil
}

func (e *Encoder) SetEndUsage(u media.EndUsage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls = append(e.Calls, "end usage")
	if e.EndUsageErr != nil {
		return e.EndUsageErr
	}
	e.EndUsage = u
	return nil
}

func (e *Encoder) SetTargetBitrate(kbps int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls = append(e.Calls, "target bitrate")
	if e.BitrateErr != nil {
		return e.BitrateErr
	}
	e.Bitrate = kbps
	return nil
}

// Link is a connection accepted by a Graph.
type Link struct {
	Out, In media.Pin
}

// Graph is a filter graph that accepts a connection when both pins share a
// format.
type Graph struct {
	mu         sync.Mutex
	Labels     []string
	Nodes      []media.Node
	Links      []Link
	AddErr     error
	ConnectErr error
	Connects   int
	Closed     bool
}

func (g *Graph) AddFilter(node media.Node, label string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.AddErr != nil {
		return g.AddErr
	}
	g.Labels = append(g.Labels, label)
	g.Nodes = append(g.Nodes, node)
	return nil
}

func (g *Graph) ConnectDirect(out, in media.Pin) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Connects++
	if g.ConnectErr != nil {
		return g.ConnectErr
	}
	outs, _ := out.MediaTypes()
	ins, _ := in.MediaTypes()
	for _, o := range outs {
		for _, i := range ins {
			if o == i {
				g.Links = append(g.Links, Link{Out: out, In: in})
				return nil
			}
		}
	}
	return errors.New("no common format")
}

// Close marks the graph released.
func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Closed = true
	return nil
}

// Moniker is a listed device.
type Moniker struct {
	Props   map[string]string
	PropErr error
	Node    media.Node
	BindErr error
	Binds   int
}

// Device returns a moniker named name that binds to node.
func Device(name string, node media.Node) *Moniker {
	props := map[string]string{}
	if name != "" {
		props[media.PropertyFriendlyName] = name
	}
	return &Moniker{Props: props, Node: node}
}

func (m *Moniker) Properties() (media.PropertyBag, error) {
	if m.PropErr != nil {
		return nil, m.PropErr
	}
	return bag(m.Props), nil
}

func (m *Moniker) Bind() (media.Node, error) {
	m.Binds++
	if m.BindErr != nil {
		return nil, m.BindErr
	}
	return m.Node, nil
}

type bag map[string]string

func (b bag) Read(name string) (string, bool) {
	v, ok := b[name]
	return v, ok
}

// Framework is an in-memory media framework that counts its calls.
type Framework struct {
	mu sync.Mutex

	Video []media.Moniker
	Audio []media.Moniker

	Graph      *Graph
	Encoder    *Encoder
	OpenErr    error
	CloseErr   error
	GraphErr   error
	EncoderErr error
	VideoErr   error
	AudioErr   error
	Opens      int
	Closes     int
	Enumerated map[types.Category]int

	// OnDevices, if set, runs at the start of every Devices call.
	OnDevices func(types.Category)
}

// NewFramework returns a framework with an empty graph and a default encoder.
func NewFramework() *Framework {
	return &Framework{
		Graph:      &Graph{},
		Encoder:    NewEncoder(),
		Enumerated: make(map[types.Category]int),
	}
}

func (f *Framework) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Opens++
	return f.OpenErr
}

func (f *Framework) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closes++
	return f.CloseErr
}

func (f *Framework) NewFilterGraph() (media.FilterGraph, error) {
	if f.GraphErr != nil {
		return nil, f.GraphErr
	}
	return f.Graph, nil
}

func (f *Framework) NewEncoder() (media.EncoderNode, error) {
	if f.EncoderErr != nil {
		return nil, f.EncoderErr
	}
	return f.Encoder, nil
}

func (f *Framework) Devices(category types.Category) ([]media.Moniker, error) {
	if f.OnDevices != nil {
		f.OnDevices(category)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Enumerated[category]++
	switch category {
	case types.CategoryVideoCapture:
		return f.Video, f.VideoErr
	case types.CategoryAudioCapture:
		return f.Audio, f.AudioErr
	default:
		return nil, fmt.Errorf("unknown category %q", category)
	}
}

// Enumerations returns how often a category was listed.
func (f *Framework) Enumerations(category types.Category) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Enumerated[category]
}
