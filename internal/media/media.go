// Package media defines the boundary to the platform media framework.
//
// The framework allocates nodes, enumerates capture devices, inserts nodes
// into a filter graph and links their pins. The pipeline builder only talks
// to these interfaces so alternate backends can provide the same contract.
package media

import "github.com/oszuidwest/zwfm-webmlive/internal/types"

// MediaType is one format advertised by a pin.
type MediaType struct {
	Major   types.MediaKind // Major kind (audio or video)
	Subtype string          // Concrete format, e.g. "yuyv422", "mjpeg", "s16le"
}

// Pin is a raw connection point exposed by a node.
type Pin interface {
	// ID names the pin within its node.
	ID() string
	// Direction reports whether the pin consumes or produces samples.
	Direction() (types.Direction, error)
	// MediaTypes lists every format the pin advertises, preferred first.
	MediaTypes() ([]MediaType, error)
}

// Node is an instantiated processing unit such as a capture source or encoder.
type Node interface {
	// Name is the node's display name as reported by the framework.
	Name() string
	// Pins enumerates the node's pins in the framework's native order.
	Pins() ([]Pin, error)
}

// Deadline is the encoder's per-frame time budget mode.
type Deadline string

const (
	DeadlineRealtime    Deadline = "realtime"
	DeadlineGoodQuality Deadline = "good"
	DeadlineBestQuality Deadline = "best"
)

// EndUsage is the encoder's rate control mode.
type EndUsage string

const (
	EndUsageVBR EndUsage = "vbr"
	EndUsageCBR EndUsage = "cbr"
	EndUsageCQ  EndUsage = "cq"
)

// EncoderNode is a video encoder node with its configuration interface.
type EncoderNode interface {
	Node
	SetDeadline(Deadline) error
	SetEndUsage(EndUsage) error
	// SetTargetBitrate sets the target bitrate in kilobits per second.
	SetTargetBitrate(kbps int) error
}

// FilterGraph is the framework's graph container.
type FilterGraph interface {
	// AddFilter inserts a node under the given display label.
	AddFilter(node Node, label string) error
	// ConnectDirect links an output pin to an input pin without inserting
	// any conversion stage.
	ConnectDirect(out, in Pin) error
}

// PropertyBag exposes named device properties.
type PropertyBag interface {
	// Read returns the named property, or false if it is absent.
	Read(name string) (string, bool)
}

// Moniker is one entry of a device enumeration.
type Moniker interface {
	// Properties opens the device's property bag.
	Properties() (PropertyBag, error)
	// Bind instantiates the device as a node.
	Bind() (Node, error)
}

// Framework is the platform media subsystem.
//
// Open and Close bracket the subsystem's lifetime. Callers pair them
// exactly once per owner.
type Framework interface {
	Open() error
	Close() error
	NewFilterGraph() (FilterGraph, error)
	NewEncoder() (EncoderNode, error)
	// Devices lists capture devices of a category in enumeration order.
	Devices(category types.Category) ([]Moniker, error)
}

// PropertyFriendlyName is the property holding a device's display name.
const PropertyFriendlyName = "FriendlyName"

// PropertyDevicePath is the property holding a device's platform path.
const PropertyDevicePath = "DevicePath"
