// Package graph owns the processing graph: its nodes, the endpoints they
// expose and the connections negotiated between them.
package graph

import (
	"log/slog"
	"slices"

	"github.com/oszuidwest/zwfm-webmlive/internal/media"
	"github.com/oszuidwest/zwfm-webmlive/internal/types"
)

// member is a node that was added to the graph.
type member struct {
	node  media.Node
	label string
}

// link is an established connection.
type link struct {
	out  Endpoint
	in   Endpoint
	kind types.MediaKind
}

// pinKey identifies a pin across inspections.
type pinKey struct {
	node media.Node
	pin  string
}

// Graph is an ordered set of nodes and the connections between them.
// A connection always joins one output and one input endpoint of the same
// media kind, and each endpoint takes part in at most one connection.
type Graph struct {
	fg      media.FilterGraph
	members []member
	links   []link
	used    map[pinKey]bool
}

// New returns an empty graph backed by a framework filter graph.
func New(fg media.FilterGraph) *Graph {
	return &Graph{
		fg:   fg,
		used: make(map[pinKey]bool),
	}
}

// Backend returns the framework filter graph.
func (g *Graph) Backend() media.FilterGraph {
	return g.fg
}

// Add inserts a node under a display label.
func (g *Graph) Add(node media.Node, label string) error {
	const op = "add filter"

	if node == nil {
		return types.Errorf(types.KindInvalidArgument, op, "nil node for %q", label)
	}
	if g.Contains(node) {
		return types.Errorf(types.KindAddFilterFailed, op, "node %q already in graph", label)
	}
	if err := g.fg.AddFilter(node, label); err != nil {
		slog.Error("cannot add node to graph", "label", label, "node", node.Name(), "error", err)
		return types.NewError(types.KindAddFilterFailed, op, err)
	}

	g.members = append(g.members, member{node: node, label: label})
	slog.Info("added node to graph", "label", label, "node", node.Name())
	return nil
}

// Contains reports whether node has been added.
func (g *Graph) Contains(node media.Node) bool {
	return slices.ContainsFunc(g.members, func(m member) bool { return m.node == node })
}

// Label returns the display label of node, or an empty string.
func (g *Graph) Label(node media.Node) string {
	for _, m := range g.members {
		if m.node == node {
			return m.label
		}
	}
	return ""
}

// Nodes returns the labels of all nodes in insertion order.
func (g *Graph) Nodes() []string {
	labels := make([]string, len(g.members))
	for i, m := range g.members {
		labels[i] = m.label
	}
	return labels
}

// Connections returns the established connections in creation order.
func (g *Graph) Connections() []types.Connection {
	conns := make([]types.Connection, len(g.links))
	for i, l := range g.links {
		conns[i] = types.Connection{
			From: g.Label(l.out.Node),
			To:   g.Label(l.in.Node),
			Kind: l.kind,
		}
	}
	return conns
}

// Connected reports whether an endpoint already takes part in a connection.
func (g *Graph) Connected(ep Endpoint) bool {
	return g.used[ep.key()]
}

// connect checks the connection invariant, asks the framework for a direct
// connection and records it.
func (g *Graph) connect(out, in Endpoint, kind types.MediaKind) error {
	const op = "connect direct"

	if !g.Contains(out.Node) || !g.Contains(in.Node) {
		return types.Errorf(types.KindInvalidArgument, op, "both nodes must be in the graph")
	}
	if out.Direction != types.DirectionOutput || in.Direction != types.DirectionInput {
		return types.Errorf(types.KindIncompatibleFormats, op,
			"need output->input, got %s->%s", out.Direction, in.Direction)
	}
	if !out.Has(kind) || !in.Has(kind) {
		return types.Errorf(types.KindIncompatibleFormats, op, "endpoints do not both carry %s", kind)
	}
	if g.Connected(out) || g.Connected(in) {
		return types.Errorf(types.KindEndpointInUse, op, "%s or %s already connected", out, in)
	}

	if err := g.fg.ConnectDirect(out.Pin, in.Pin); err != nil {
		return types.NewError(types.KindIncompatibleFormats, op, err)
	}

	g.used[out.key()] = true
	g.used[in.key()] = true
	g.links = append(g.links, link{out: out, in: in, kind: kind})
	return nil
}
