package graph

import (
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/oszuidwest/zwfm-webmlive/internal/media"
	"github.com/oszuidwest/zwfm-webmlive/internal/types"
)

// Endpoint is a classified pin of a node. It is derived by inspection and
// never stored beyond the operation that needed it.
type Endpoint struct {
	Node      media.Node
	Pin       media.Pin
	Direction types.Direction
	// Kinds holds every major kind the pin advertises, in advertisement order.
	Kinds []types.MediaKind
}

// Has reports whether any advertised media type is of the given kind.
func (e Endpoint) Has(kind types.MediaKind) bool {
	return slices.Contains(e.Kinds, kind)
}

// Kind returns the first advertised major kind, or MediaUnknown.
func (e Endpoint) Kind() types.MediaKind {
	if len(e.Kinds) == 0 {
		return types.MediaUnknown
	}
	return e.Kinds[0]
}

func (e Endpoint) String() string {
	name := "<nil>"
	if e.Node != nil {
		name = e.Node.Name()
	}
	id := ""
	if e.Pin != nil {
		id = e.Pin.ID()
	}
	return fmt.Sprintf("%s/%s(%s)", name, id, e.Direction)
}

func (e Endpoint) key() pinKey {
	var id string
	if e.Pin != nil {
		id = e.Pin.ID()
	}
	return pinKey{node: e.Node, pin: id}
}

// Endpoints yields the endpoints of node in the framework's pin order. Pins
// whose direction cannot be queried are skipped. If the node cannot list its
// pins, a single error is yielded.
func Endpoints(node media.Node) iter.Seq2[Endpoint, error] {
	return func(yield func(Endpoint, error) bool) {
		if node == nil {
			yield(Endpoint{}, types.Errorf(types.KindInvalidArgument, "enumerate endpoints", "nil node"))
			return
		}
		pins, err := node.Pins()
		if err != nil {
			yield(Endpoint{}, types.NewError(types.KindEndpointNotFound, "enumerate endpoints", err))
			return
		}
		for _, pin := range pins {
			if pin == nil {
				continue
			}
			dir, err := pin.Direction()
			if err != nil {
				slog.Debug("cannot query pin direction, skipping", "node", node.Name(), "pin", pin.ID(), "error", err)
				continue
			}
			ep := Endpoint{Node: node, Pin: pin, Direction: dir, Kinds: advertisedKinds(pin)}
			if !yield(ep, nil) {
				return
			}
		}
	}
}

// advertisedKinds probes every media type the pin advertises.
func advertisedKinds(pin media.Pin) []types.MediaKind {
	mts, err := pin.MediaTypes()
	if err != nil {
		slog.Debug("cannot enumerate pin media types", "pin", pin.ID(), "error", err)
		return nil
	}
	var kinds []types.MediaKind
	for _, mt := range mts {
		if mt.Major == "" || mt.Major == types.MediaUnknown || slices.Contains(kinds, mt.Major) {
			continue
		}
		kinds = append(kinds, mt.Major)
	}
	return kinds
}

// Find returns the occurrence-th (0-based) endpoint of node that matches both
// direction and kind. The boolean is false when fewer matches exist.
func Find(node media.Node, dir types.Direction, kind types.MediaKind, occurrence int) (Endpoint, bool, error) {
	if occurrence < 0 {
		return Endpoint{}, false, types.Errorf(types.KindInvalidArgument, "find endpoint", "negative occurrence %d", occurrence)
	}
	seen := 0
	for ep, err := range Endpoints(node) {
		if err != nil {
			return Endpoint{}, false, err
		}
		if ep.Direction != dir || !ep.Has(kind) {
			continue
		}
		if seen == occurrence {
			return ep, true, nil
		}
		seen++
	}
	return Endpoint{}, false, nil
}
