// Package engine is the command surface of the bridge. It sequences intent
// classification, name resolution, compatibility checks and materialization
// against the canvas host.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rmax-ai/ghbridge/pkg/compat"
	"github.com/rmax-ai/ghbridge/pkg/graph"
	"github.com/rmax-ai/ghbridge/pkg/host"
	"github.com/rmax-ai/ghbridge/pkg/intent"
	"github.com/rmax-ai/ghbridge/pkg/knowledge"
	"github.com/rmax-ai/ghbridge/pkg/materialize"
	"github.com/rmax-ai/ghbridge/pkg/resolve"
	"go.uber.org/zap"
)

// Canvas coordinates accepted by AddComponent.
const coordinateLimit = 10000

// Journal persists materialization outcomes.
type Journal interface {
	RecordMaterialization(ctx context.Context, description string, res *materialize.Result) error
}

// Summary is the caller-facing outcome of a materialization.
type Summary struct {
	Pattern   string               `json:"pattern"`
	NodeCount int                  `json:"node_count"`
	EdgeCount int                  `json:"edge_count"`
	ResultID  string               `json:"result_id"`
	Handles   map[string]string    `json:"handles,omitempty"`
	Failure   *materialize.Failure `json:"failure,omitempty"`
}

// Engine wires the knowledge base, resolvers and host together.
type Engine struct {
	holder       *knowledge.Holder
	host         host.Bridge
	names        *resolve.Resolver
	classifier   *intent.Classifier
	compat       *compat.Resolver
	materializer *materialize.Materializer
	canvas       *graph.Projection
	journal      Journal
	log          *zap.Logger
	overrides    []compat.Override
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal records every materialization in j.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithLogger sets the engine logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithOverrides replaces the compatibility override table.
func WithOverrides(overrides []compat.Override) Option {
	return func(e *Engine) { e.overrides = overrides }
}

// New creates an engine on top of the knowledge holder and the canvas host.
func New(holder *knowledge.Holder, h host.Bridge, opts ...Option) *Engine {
	e := &Engine{holder: holder, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}

	compatOpts := []compat.Option{
		compat.WithLogger(e.log.Named("compat")),
		compat.WithObserver(func(d compat.Decision) {
			GhbridgeCompatDecisionsTotal.WithLabelValues(d.Rule, fmt.Sprint(d.Compatible)).Inc()
		}),
	}
	if e.overrides != nil {
		compatOpts = append(compatOpts, compat.WithOverrides(e.overrides))
	}

	e.host = instrumentedHost{next: h}
	e.names = resolve.New(holder)
	e.classifier = intent.New(holder)
	e.compat = compat.New(compatOpts...)
	e.materializer = materialize.New(e.host, e.names, e.compat, e.log.Named("materialize"))
	e.canvas = graph.NewProjection()
	return e
}

// Knowledge returns the current knowledge base snapshot.
func (e *Engine) Knowledge() *knowledge.KnowledgeBase {
	return e.holder.Current()
}

// Canvas returns the engine's projection of the canvas.
func (e *Engine) Canvas() *graph.Projection {
	return e.canvas
}

// Reload probes the knowledge sources again.
func (e *Engine) Reload(ctx context.Context) knowledge.LoadReport {
	report := e.holder.Reload(ctx)
	GhbridgeKnowledgeReloadsTotal.WithLabelValues(fmt.Sprint(report.Degraded)).Inc()
	return report
}

// Classify returns the pattern a description maps to.
func (e *Engine) Classify(description string) (string, bool) {
	name, ok := e.classifier.Classify(description)
	if ok {
		GhbridgeClassificationsTotal.WithLabelValues("matched").Inc()
	} else {
		GhbridgeClassificationsTotal.WithLabelValues("miss").Inc()
	}
	return name, ok
}

// ClassifyAll returns every scoring intent rule for a description.
func (e *Engine) ClassifyAll(description string) []intent.Score {
	return e.classifier.ClassifyAll(description)
}

// ListPatterns returns pattern names in knowledge base order. A non-empty
// query keeps patterns whose name or description contains it.
func (e *Engine) ListPatterns(query string) []string {
	kb := e.holder.Current()
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return kb.PatternNames()
	}
	var out []string
	for _, p := range kb.Patterns() {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
			out = append(out, p.Name)
		}
	}
	return out
}

// ClassifyAndMaterialize classifies description and materializes the winning
// pattern. A miss returns ErrNoPatternMatched without touching the host.
func (e *Engine) ClassifyAndMaterialize(ctx context.Context, description string) (Summary, error) {
	if strings.TrimSpace(description) == "" {
		return Summary{}, fmt.Errorf("%w: description must be a non-empty string", ErrInvalidArgument)
	}
	name, ok := e.Classify(description)
	if !ok {
		e.log.Info("classification_miss", zap.String("description", description))
		return Summary{}, fmt.Errorf("%w: %q", ErrNoPatternMatched, description)
	}
	e.log.Info("classification_matched", zap.String("description", description), zap.String("pattern", name))
	return e.run(ctx, name, description)
}

// MaterializePattern materializes a pattern chosen by name.
func (e *Engine) MaterializePattern(ctx context.Context, name string) (Summary, error) {
	return e.run(ctx, name, "")
}

func (e *Engine) run(ctx context.Context, name, description string) (Summary, error) {
	p, ok := e.holder.Current().Pattern(name)
	if !ok {
		return Summary{}, fmt.Errorf("%w: %q", ErrUnknownPattern, name)
	}

	start := time.Now()
	res, err := e.materializer.Materialize(ctx, p)
	GhbridgeMaterializeSeconds.WithLabelValues(p.Name).Observe(time.Since(start).Seconds())
	GhbridgeMaterializationsTotal.WithLabelValues(p.Name, outcome(err)).Inc()

	e.canvas.ApplyResult(res)
	if e.journal != nil {
		if jerr := e.journal.RecordMaterialization(ctx, description, res); jerr != nil {
			e.log.Warn("journal_write_failed", zap.String("result_id", res.ID), zap.Error(jerr))
		}
	}

	return summarize(res), err
}

func summarize(res *materialize.Result) Summary {
	s := Summary{
		Pattern:   res.Pattern,
		NodeCount: res.NodeCount(),
		EdgeCount: res.EdgeCount(),
		ResultID:  res.ID,
		Handles:   make(map[string]string, len(res.Handles)),
		Failure:   res.Failure,
	}
	for id, h := range res.Handles {
		s.Handles[id] = string(h)
	}
	return s
}

// AddResult describes a node created by AddComponent.
type AddResult struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Position host.Position  `json:"position"`
	Settings map[string]any `json:"settings,omitempty"`
}

// AddComponent creates a single node. The type name goes through alias
// resolution and sliders get range defaults.
func (e *Engine) AddComponent(ctx context.Context, typeName string, pos host.Position, settings map[string]any) (AddResult, error) {
	if strings.TrimSpace(typeName) == "" {
		return AddResult{}, fmt.Errorf("%w: component type must be a non-empty string", ErrInvalidArgument)
	}
	if pos.X < -coordinateLimit || pos.X > coordinateLimit || pos.Y < -coordinateLimit || pos.Y > coordinateLimit {
		return AddResult{}, fmt.Errorf("%w: coordinates must be between -%d and %d", ErrInvalidArgument, coordinateLimit, coordinateLimit)
	}

	resolved := e.names.ResolveComponentName(typeName)
	settings = materialize.NodeSettings(resolved, settings)
	id, err := e.host.CreateNode(ctx, resolved, pos, settings)
	if err != nil {
		return AddResult{}, err
	}
	e.log.Info("component_added", zap.String("type", resolved), zap.String("id", string(id)))
	return AddResult{ID: string(id), Type: resolved, Position: pos, Settings: settings}, nil
}

// ComponentInfo is a live node merged with its knowledge base entry.
type ComponentInfo struct {
	host.NodeInfo
	Spec        *knowledge.ComponentSpec `json:"spec,omitempty"`
	Connections []host.Connection        `json:"connections,omitempty"`
}

// ComponentInfo inspects a node and adds its spec and wires.
func (e *Engine) ComponentInfo(ctx context.Context, id string) (ComponentInfo, error) {
	if strings.TrimSpace(id) == "" {
		return ComponentInfo{}, fmt.Errorf("%w: component id must be a non-empty string", ErrInvalidArgument)
	}
	info, err := e.host.Inspect(ctx, host.NodeHandle(id))
	if err != nil {
		return ComponentInfo{}, err
	}
	out := ComponentInfo{NodeInfo: info}
	if spec, ok := e.holder.Current().Component(e.names.ResolveComponentName(info.Type)); ok {
		out.Spec = &spec
	}

	conns, err := e.host.Connections(ctx)
	if err != nil {
		// the node itself was found; wires are best effort
		e.log.Warn("connections_unavailable", zap.Error(err))
		return out, nil
	}
	for _, c := range conns {
		if string(c.SourceID) == id || string(c.TargetID) == id {
			out.Connections = append(out.Connections, c)
		}
	}
	return out, nil
}

// ComponentParameters looks up the declared ports of a component type.
// Aliases are tried first, then the closest component name.
func (e *Engine) ComponentParameters(typeName string) (knowledge.ComponentSpec, bool) {
	kb := e.holder.Current()
	if spec, ok := kb.Component(e.names.ResolveComponentName(typeName)); ok {
		return spec, true
	}
	var names []string
	for _, c := range kb.Components() {
		names = append(names, c.Name)
	}
	return kb.Component(resolve.FindClosestMatch(typeName, names))
}

// SearchComponents searches the component catalogue.
func (e *Engine) SearchComponents(query string) []knowledge.ComponentSpec {
	return e.holder.Current().SearchComponents(query)
}

// Warnings returns diagnostics for one node, or for the whole canvas when id is empty.
func (e *Engine) Warnings(ctx context.Context, id string) ([]host.Diagnostic, error) {
	if id == "" {
		return e.host.AllDiagnostics(ctx)
	}
	return e.host.Diagnostics(ctx, host.NodeHandle(id))
}

// HostStatus is the result of a health check.
type HostStatus struct {
	Status    string    `json:"status"`
	Connected bool      `json:"connected"`
	Knowledge string    `json:"knowledge_source"`
	Degraded  bool      `json:"knowledge_degraded"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthCheck pings the host and reports the knowledge base state.
func (e *Engine) HealthCheck(ctx context.Context) HostStatus {
	report := e.holder.Report()
	status := HostStatus{
		Status:    "healthy",
		Connected: true,
		Knowledge: report.Source,
		Degraded:  report.Degraded,
		Timestamp: time.Now().UTC(),
	}
	if err := e.host.Ping(ctx); err != nil {
		status.Status = "unhealthy"
		status.Connected = false
		status.Error = err.Error()
	}
	return status
}

// DocumentInfo returns the host's description of the open document.
func (e *Engine) DocumentInfo(ctx context.Context) (host.DocumentInfo, error) {
	return e.host.DocumentInfo(ctx)
}

// Clear empties the canvas.
func (e *Engine) Clear(ctx context.Context) error {
	if err := e.host.Clear(ctx); err != nil {
		return err
	}
	e.canvas.Reset()
	e.log.Info("canvas_cleared")
	return nil
}

// RefreshCanvas pulls nodes and wires from the host into the projection.
func (e *Engine) RefreshCanvas(ctx context.Context) (*graph.Graph, error) {
	nodes, err := e.host.Nodes(ctx)
	if err != nil {
		return nil, err
	}
	conns, err := e.host.Connections(ctx)
	if err != nil {
		return nil, err
	}
	e.canvas.Refresh(nodes, conns)
	return e.canvas.GetGraph(), nil
}
