package graph

import (
	"sort"
	"strings"
)

// Property keys recorded on nodes created by the engine.
const (
	PropPattern  = "pattern"
	PropResultID = "result_id"
	PropTemplate = "template_id"
)

// Node represents a component on the canvas.
type Node struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Label      string            `json:"label"`
	X          float64           `json:"x"`
	Y          float64           `json:"y"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Edge represents a wire from an output port to an input port.
type Edge struct {
	FromID   string `json:"from_id"`
	FromPort string `json:"from_port"`
	ToID     string `json:"to_id"`
	ToPort   string `json:"to_port"`
}

// Graph is a snapshot of the canvas.
type Graph struct {
	Nodes map[string]*Node `json:"nodes"`
	Edges []*Edge          `json:"edges"`
}

// NewGraph creates an empty canvas graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[string]*Node),
		Edges: make([]*Edge, 0),
	}
}

// AddNode adds a node to the graph.
func (g *Graph) AddNode(n *Node) {
	g.Nodes[n.ID] = n
}

// AddEdge adds an edge to the graph. An input holds one wire, so an existing
// edge into the same port is replaced.
func (g *Graph) AddEdge(e *Edge) {
	for i, old := range g.Edges {
		if old.ToID == e.ToID && old.ToPort == e.ToPort {
			g.Edges[i] = e
			return
		}
	}
	g.Edges = append(g.Edges, e)
}

// Degree counts the edges touching id.
func (g *Graph) Degree(id string) int {
	n := 0
	for _, e := range g.Edges {
		if e.FromID == id || e.ToID == id {
			n++
		}
	}
	return n
}

// Isolated returns the nodes without any edge, ordered by id.
func (g *Graph) Isolated() []*Node {
	touched := make(map[string]bool, len(g.Nodes))
	for _, e := range g.Edges {
		touched[e.FromID] = true
		touched[e.ToID] = true
	}
	var out []*Node
	for id, n := range g.Nodes {
		if !touched[id] {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// HasType reports whether a node of the given component type exists.
func (g *Graph) HasType(componentType string) bool {
	for _, n := range g.Nodes {
		if strings.EqualFold(n.Type, componentType) {
			return true
		}
	}
	return false
}

// CountByType tallies nodes per component type.
func (g *Graph) CountByType() map[string]int {
	out := make(map[string]int)
	for _, n := range g.Nodes {
		out[n.Type]++
	}
	return out
}
