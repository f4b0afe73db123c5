// Package host talks to the graph execution host that owns the canvas.
package host

import "context"

// NodeHandle is the opaque id the host assigns to a created node.
type NodeHandle string

// Position is a canvas location.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Direction selects the input or output side of a node.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// Port is a live port reported by the host.
type Port struct {
	Name     string `json:"name"`
	Nickname string `json:"nickname,omitempty"`
	Type     string `json:"type,omitempty"`
}

// PortRef addresses one port on one node.
type PortRef struct {
	Node NodeHandle
	Port string
}

// Diagnostic is a runtime message attached to a node.
type Diagnostic struct {
	Level    string     `json:"level"` // error, warning, remark
	Text     string     `json:"text"`
	Source   string     `json:"source,omitempty"`
	Node     NodeHandle `json:"node,omitempty"`
	NodeName string     `json:"node_name,omitempty"`
	Port     string     `json:"port,omitempty"`
}

// NodeInfo describes a node living on the canvas.
type NodeInfo struct {
	ID       NodeHandle     `json:"id"`
	Type     string         `json:"type"`
	Name     string         `json:"name,omitempty"`
	Position Position       `json:"position"`
	Inputs   []Port         `json:"inputs,omitempty"`
	Outputs  []Port         `json:"outputs,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

// Connection is a wire between two nodes on the canvas.
type Connection struct {
	SourceID    NodeHandle `json:"sourceId"`
	SourceParam string     `json:"sourceParam"`
	TargetID    NodeHandle `json:"targetId"`
	TargetParam string     `json:"targetParam"`
}

// DocumentInfo is the host's description of the open document. Keys are
// passed through as the host reports them.
type DocumentInfo map[string]any

// Host is the minimal surface the engine needs to build graphs.
type Host interface {
	CreateNode(ctx context.Context, typeName string, pos Position, settings map[string]any) (NodeHandle, error)
	ListPorts(ctx context.Context, node NodeHandle, dir Direction) ([]Port, error)
	// Connect wires src to dst. The host replaces an existing incoming wire on dst.
	Connect(ctx context.Context, src, dst PortRef) error
	Diagnostics(ctx context.Context, node NodeHandle) ([]Diagnostic, error)
	Inspect(ctx context.Context, node NodeHandle) (NodeInfo, error)
}

// Canvas exposes whole-document inspection and maintenance.
type Canvas interface {
	Nodes(ctx context.Context) ([]NodeInfo, error)
	Connections(ctx context.Context) ([]Connection, error)
	// AllDiagnostics returns the diagnostics of every node on the canvas.
	AllDiagnostics(ctx context.Context) ([]Diagnostic, error)
	DocumentInfo(ctx context.Context) (DocumentInfo, error)
	Ping(ctx context.Context) error
	Clear(ctx context.Context) error
}

// Bridge is implemented by hosts that support both surfaces.
type Bridge interface {
	Host
	Canvas
}
