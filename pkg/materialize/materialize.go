// Package materialize turns a pattern into live nodes and wires on the host.
package materialize

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rmax-ai/ghbridge/pkg/compat"
	"github.com/rmax-ai/ghbridge/pkg/host"
	"github.com/rmax-ai/ghbridge/pkg/knowledge"
	"github.com/rmax-ai/ghbridge/pkg/resolve"
	"go.uber.org/zap"
)

// SliderType is the component that gets range defaults when a template
// leaves them out.
const SliderType = "Number Slider"

var sliderDefaults = map[string]any{"min": 0.0, "max": 1.0, "value": 0.5}

// Materializer runs patterns against a host. The template id map lives only
// for the duration of one call, so independent calls may run concurrently.
type Materializer struct {
	host   host.Host
	names  *resolve.Resolver
	compat *compat.Resolver
	log    *zap.Logger
}

func New(h host.Host, names *resolve.Resolver, checker *compat.Resolver, log *zap.Logger) *Materializer {
	if log == nil {
		log = zap.NewNop()
	}
	if checker == nil {
		checker = compat.New(compat.WithLogger(log))
	}
	return &Materializer{host: h, names: names, compat: checker, log: log}
}

// Materialize creates every node of p in declaration order, then connects
// every edge in declaration order. The first failure aborts the run; nodes
// and wires already created stay on the canvas. The returned Result is never
// nil and the error, if any, is the cause of Result.Failure.
func (m *Materializer) Materialize(ctx context.Context, p knowledge.Pattern) (*Result, error) {
	res := &Result{
		ID:        uuid.NewString(),
		Pattern:   p.Name,
		StartedAt: time.Now().UTC(),
		Handles:   make(map[string]host.NodeHandle, len(p.Nodes)),
	}
	log := m.log.With(zap.String("result_id", res.ID), zap.String("pattern", p.Name))
	log.Info("materialize_started", zap.Int("nodes", len(p.Nodes)), zap.Int("edges", len(p.Edges)))

	types := make(map[string]string, len(p.Nodes))
	for i, n := range p.Nodes {
		typeName := m.names.ResolveComponentName(n.Type)
		types[n.ID] = typeName

		handle, err := m.host.CreateNode(ctx, typeName, host.Position{X: n.X, Y: n.Y}, NodeSettings(typeName, n.Settings))
		if err != nil {
			res.Nodes = append(res.Nodes, NodeOutcome{TemplateID: n.ID, Type: typeName, Error: err.Error()})
			return m.abort(log, res, PhaseNode, i, n.ID, err)
		}
		res.Nodes = append(res.Nodes, NodeOutcome{TemplateID: n.ID, Type: typeName, Handle: handle})
		res.Handles[n.ID] = handle
	}

	for i, e := range p.Edges {
		outcome, err := m.connect(ctx, res.Handles, types, e)
		res.Edges = append(res.Edges, outcome)
		if err != nil {
			return m.abort(log, res, PhaseEdge, i, e.Source+"->"+e.Target, err)
		}
	}

	res.FinishedAt = time.Now().UTC()
	log.Info("materialize_completed", zap.Int("node_count", res.NodeCount()), zap.Int("edge_count", res.EdgeCount()))
	return res, nil
}

func (m *Materializer) connect(ctx context.Context, handles map[string]host.NodeHandle, types map[string]string, e knowledge.TemplateEdge) (EdgeOutcome, error) {
	outcome := EdgeOutcome{
		Source:     e.Source,
		SourcePort: m.names.ResolveParameterName(e.SourcePort),
		Target:     e.Target,
		TargetPort: m.names.ResolveParameterName(e.TargetPort),
	}
	fail := func(err error) (EdgeOutcome, error) {
		outcome.Error = err.Error()
		return outcome, err
	}

	src, ok := handles[e.Source]
	if !ok {
		return fail(&resolve.Error{Ref: e.Source, Reason: "template id was not created in this materialization"})
	}
	dst, ok := handles[e.Target]
	if !ok {
		return fail(&resolve.Error{Ref: e.Target, Reason: "template id was not created in this materialization"})
	}

	outputs, err := m.host.ListPorts(ctx, src, host.Output)
	if err != nil {
		return fail(err)
	}
	inputs, err := m.host.ListPorts(ctx, dst, host.Input)
	if err != nil {
		return fail(err)
	}

	// Unmatched names are passed through untyped and left to the host.
	srcPort, ok := resolve.MatchPort(outcome.SourcePort, outputs)
	if !ok {
		srcPort = host.Port{Name: outcome.SourcePort}
	}
	dstPort, ok := resolve.MatchPort(outcome.TargetPort, inputs)
	if !ok {
		dstPort = host.Port{Name: outcome.TargetPort}
	}
	outcome.SourcePort, outcome.TargetPort = srcPort.Name, dstPort.Name

	owners := compat.Owners{Source: types[e.Source], Target: types[e.Target], TargetInputs: portNames(inputs)}
	decision, err := m.compat.Verify(srcPort, dstPort, owners)
	outcome.Rule = decision.Rule
	if err != nil {
		return fail(err)
	}

	if err := m.host.Connect(ctx, host.PortRef{Node: src, Port: srcPort.Name}, host.PortRef{Node: dst, Port: dstPort.Name}); err != nil {
		return fail(err)
	}
	outcome.Connected = true
	return outcome, nil
}

func (m *Materializer) abort(log *zap.Logger, res *Result, phase string, step int, ref string, err error) (*Result, error) {
	res.FinishedAt = time.Now().UTC()
	res.Failure = &Failure{Phase: phase, Step: step, TemplateID: ref, Reason: err.Error(), Err: err}
	log.Warn("materialize_aborted",
		zap.String("phase", phase),
		zap.Int("step", step),
		zap.String("template_id", ref),
		zap.Int("node_count", res.NodeCount()),
		zap.Int("edge_count", res.EdgeCount()),
		zap.Error(err))
	return res, fmt.Errorf("pattern %q aborted in %s phase at %s: %w", res.Pattern, phase, ref, err)
}

// NodeSettings copies the template settings and fills missing slider range
// keys. The template itself is never modified.
func NodeSettings(typeName string, settings map[string]any) map[string]any {
	if typeName != SliderType && len(settings) == 0 {
		return nil
	}
	out := make(map[string]any, len(settings)+len(sliderDefaults))
	for k, v := range settings {
		out[k] = v
	}
	if typeName == SliderType {
		for k, v := range sliderDefaults {
			if _, ok := out[k]; !ok {
				out[k] = v
			}
		}
	}
	return out
}

func portNames(ports []host.Port) []string {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}
	return names
}
