package graph

import (
	"sync"
	"time"

	"github.com/rmax-ai/ghbridge/pkg/host"
	"github.com/rmax-ai/ghbridge/pkg/materialize"
)

// Projection maintains the in-memory canvas graph. It is fed by canvas
// refreshes from the host and by materialization results.
type Projection struct {
	mu          sync.RWMutex
	graph       *Graph
	lastRefresh time.Time
}

// NewProjection creates a new empty graph projection.
func NewProjection() *Projection {
	return &Projection{graph: NewGraph()}
}

// Refresh replaces the graph with the host's view of the canvas. Properties
// recorded for nodes that still exist are kept.
func (p *Projection) Refresh(nodes []host.NodeInfo, conns []host.Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := NewGraph()
	for _, info := range nodes {
		id := string(info.ID)
		label := info.Name
		if label == "" {
			label = info.Type
		}
		n := &Node{ID: id, Type: info.Type, Label: label, X: info.Position.X, Y: info.Position.Y}
		if old, ok := p.graph.Nodes[id]; ok && len(old.Properties) > 0 {
			n.Properties = copyProps(old.Properties)
		}
		next.AddNode(n)
	}
	for _, c := range conns {
		next.AddEdge(&Edge{
			FromID:   string(c.SourceID),
			FromPort: c.SourceParam,
			ToID:     string(c.TargetID),
			ToPort:   c.TargetParam,
		})
	}
	p.graph = next
	p.lastRefresh = time.Now()
}

// ApplyResult records the nodes and wires created by a materialization,
// including a partial one.
func (p *Projection) ApplyResult(res *materialize.Result) {
	if res == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, n := range res.Nodes {
		if n.Handle == "" {
			continue
		}
		p.graph.AddNode(&Node{
			ID:    string(n.Handle),
			Type:  n.Type,
			Label: n.Type,
			Properties: map[string]string{
				PropPattern:  res.Pattern,
				PropResultID: res.ID,
				PropTemplate: n.TemplateID,
			},
		})
	}
	for _, e := range res.Edges {
		if !e.Connected {
			continue
		}
		p.graph.AddEdge(&Edge{
			FromID:   string(res.Handles[e.Source]),
			FromPort: e.SourcePort,
			ToID:     string(res.Handles[e.Target]),
			ToPort:   e.TargetPort,
		})
	}
}

// Reset empties the graph, e.g. after the canvas was cleared.
func (p *Projection) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.graph = NewGraph()
	p.lastRefresh = time.Now()
}

// LastRefresh is the time of the last Refresh or Reset.
func (p *Projection) LastRefresh() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastRefresh
}

// GetGraph returns a deep copy of the current graph.
func (p *Projection) GetGraph() *Graph {
	p.mu.RLock()
	defer p.mu.RUnlock()

	newGraph := NewGraph()
	for k, v := range p.graph.Nodes {
		n := *v
		n.Properties = copyProps(v.Properties)
		newGraph.Nodes[k] = &n
	}
	for _, e := range p.graph.Edges {
		edge := *e
		newGraph.Edges = append(newGraph.Edges, &edge)
	}
	return newGraph
}

func copyProps(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
