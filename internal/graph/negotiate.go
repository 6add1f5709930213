package graph

import (
	"fmt"
	"log/slog"

	"github.com/oszuidwest/zwfm-webmlive/internal/media"
	"github.com/oszuidwest/zwfm-webmlive/internal/types"
)

// Connect links the first output endpoint of kind on source to the first
// input endpoint of kind on sink. No conversion stage is inserted: if the
// framework rejects the direct connection the result is IncompatibleFormats.
func (g *Graph) Connect(source, sink media.Node, kind types.MediaKind) error {
	op := fmt.Sprintf("connect %s", kind)

	if kind != types.MediaAudio && kind != types.MediaVideo {
		return types.Errorf(types.KindInvalidArgument, op, "cannot negotiate %s endpoints", kind)
	}

	out, ok, err := Find(source, types.DirectionOutput, kind, 0)
	if err != nil {
		slog.Error("cannot look for pins on source", "kind", kind, "error", err)
		return types.NewError(types.KindEndpointNotFound, op, err)
	}
	if !ok {
		slog.Error("cannot find output pin on source", "kind", kind, "source", g.Label(source))
		return types.Errorf(types.KindEndpointNotFound, op, "no %s output on %s", kind, g.Label(source))
	}

	in, ok, err := Find(sink, types.DirectionInput, kind, 0)
	if err != nil {
		slog.Error("cannot look for pins on sink", "kind", kind, "error", err)
		return types.NewError(types.KindEndpointNotFound, op, err)
	}
	if !ok {
		slog.Error("cannot find input pin on sink", "kind", kind, "sink", g.Label(sink))
		return types.Errorf(types.KindEndpointNotFound, op, "no %s input on %s", kind, g.Label(sink))
	}

	if err := g.connect(out, in, kind); err != nil {
		slog.Error("cannot connect endpoints", "kind", kind, "from", out, "to", in, "error", err)
		return err
	}

	slog.Info("connected endpoints", "kind", kind, "from", g.Label(source), "to", g.Label(sink))
	return nil
}

// ConnectVideo negotiates a video connection from source to sink.
func (g *Graph) ConnectVideo(source, sink media.Node) error {
	return g.Connect(source, sink, types.MediaVideo)
}

// ConnectAudio negotiates an audio connection from source to sink.
func (g *Graph) ConnectAudio(source, sink media.Node) error {
	return g.Connect(source, sink, types.MediaAudio)
}
