package materialize

import (
	"time"

	"github.com/rmax-ai/ghbridge/pkg/host"
)

// Phases of a materialization.
const (
	PhaseNode = "node"
	PhaseEdge = "edge"
)

// NodeOutcome records the creation of one template node.
type NodeOutcome struct {
	TemplateID string          `json:"template_id"`
	Type       string          `json:"type"`
	Handle     host.NodeHandle `json:"handle,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// EdgeOutcome records one connection attempt with the port names actually used.
type EdgeOutcome struct {
	Source     string `json:"source"`
	SourcePort string `json:"source_port"`
	Target     string `json:"target"`
	TargetPort string `json:"target_port"`
	Rule       string `json:"rule,omitempty"`
	Connected  bool   `json:"connected"`
	Error      string `json:"error,omitempty"`
}

// Failure identifies the step that aborted a materialization.
type Failure struct {
	Phase      string `json:"phase"`
	Step       int    `json:"step"` // index within the phase
	TemplateID string `json:"template_id"`
	Reason     string `json:"reason"`
	Err        error  `json:"-"`
}

// Result is the outcome of one Materialize call.
type Result struct {
	ID         string                     `json:"id"`
	Pattern    string                     `json:"pattern"`
	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt time.Time                  `json:"finished_at"`
	Nodes      []NodeOutcome              `json:"nodes"`
	Edges      []EdgeOutcome              `json:"edges"`
	Handles    map[string]host.NodeHandle `json:"handles"`
	Failure    *Failure                   `json:"failure,omitempty"`
}

// NodeCount is the number of nodes created.
func (r *Result) NodeCount() int {
	n := 0
	for _, o := range r.Nodes {
		if o.Handle != "" {
			n++
		}
	}
	return n
}

// EdgeCount is the number of edges connected.
func (r *Result) EdgeCount() int {
	n := 0
	for _, o := range r.Edges {
		if o.Connected {
			n++
		}
	}
	return n
}

// Succeeded reports whether every step completed.
func (r *Result) Succeeded() bool {
	return r.Failure == nil
}
