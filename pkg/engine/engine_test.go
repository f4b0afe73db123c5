package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rmax-ai/ghbridge/pkg/compat"
	"github.com/rmax-ai/ghbridge/pkg/host"
	"github.com/rmax-ai/ghbridge/pkg/knowledge"
	"github.com/rmax-ai/ghbridge/pkg/materialize"
	"github.com/rmax-ai/ghbridge/pkg/resolve"
)

type memJournal struct {
	mu      sync.Mutex
	entries []string
	results []*materialize.Result
}

func (j *memJournal) RecordMaterialization(ctx context.Context, description string, res *materialize.Result) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, description)
	j.results = append(j.results, res)
	return nil
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *host.MockHost) {
	t.Helper()
	kb := knowledge.Builtin()
	mock := host.NewMockHost(kb)
	return New(knowledge.NewStaticHolder(kb), mock, opts...), mock
}

func addNode(t *testing.T, e *Engine, typeName string) string {
	t.Helper()
	res, err := e.AddComponent(context.Background(), typeName, host.Position{}, nil)
	if err != nil {
		t.Fatalf("AddComponent(%q) failed: %v", typeName, err)
	}
	return res.ID
}

func TestClassifyAndMaterialize(t *testing.T) {
	journal := &memJournal{}
	e, mock := newTestEngine(t, WithJournal(journal))

	sum, err := e.ClassifyAndMaterialize(context.Background(), "Draw a circle, please")
	if err != nil {
		t.Fatalf("ClassifyAndMaterialize failed: %v", err)
	}
	if sum.Pattern != "Circle" || sum.NodeCount != 3 || sum.EdgeCount != 2 {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if sum.ResultID == "" || len(sum.Handles) != 3 || sum.Failure != nil {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if mock.Calls("add_component") != 3 || mock.Calls("connect_components") != 2 {
		t.Errorf("host calls: add=%d connect=%d", mock.Calls("add_component"), mock.Calls("connect_components"))
	}

	if len(journal.entries) != 1 || journal.entries[0] != "Draw a circle, please" {
		t.Errorf("journal entries = %v", journal.entries)
	}
	if g := e.Canvas().GetGraph(); len(g.Nodes) != 3 || len(g.Edges) != 2 {
		t.Errorf("projection has %d nodes, %d edges", len(g.Nodes), len(g.Edges))
	}
}

func TestClassifyAndMaterialize_MissTouchesNothing(t *testing.T) {
	journal := &memJournal{}
	e, mock := newTestEngine(t, WithJournal(journal))

	_, err := e.ClassifyAndMaterialize(context.Background(), "build me a spaceship")
	if !errors.Is(err, ErrNoPatternMatched) {
		t.Fatalf("expected ErrNoPatternMatched, got %v", err)
	}
	if mock.TotalCalls() != 0 {
		t.Errorf("host received %d calls on a miss", mock.TotalCalls())
	}
	if len(journal.entries) != 0 {
		t.Error("a miss must not be journaled")
	}

	if _, err := e.ClassifyAndMaterialize(context.Background(), "   "); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestMaterializePattern_FailureIsJournaled(t *testing.T) {
	journal := &memJournal{}
	e, mock := newTestEngine(t, WithJournal(journal))
	mock.FailOn("connect_components", 2, "Target parameter 'Radius' not found")

	sum, err := e.MaterializePattern(context.Background(), "circle")
	var hostErr *host.Error
	if !errors.As(err, &hostErr) {
		t.Fatalf("expected host error, got %v", err)
	}
	if sum.Failure == nil || sum.Failure.Phase != materialize.PhaseEdge {
		t.Errorf("unexpected failure: %+v", sum.Failure)
	}
	if sum.NodeCount != 3 || sum.EdgeCount != 1 {
		t.Errorf("partial counts = %d/%d, want 3/1", sum.NodeCount, sum.EdgeCount)
	}
	if len(journal.results) != 1 || journal.results[0].Succeeded() {
		t.Error("failed run should be journaled as failed")
	}

	if _, err := e.MaterializePattern(context.Background(), "Torus"); !errors.Is(err, ErrUnknownPattern) {
		t.Errorf("expected ErrUnknownPattern, got %v", err)
	}
}

func TestListPatterns(t *testing.T) {
	e, _ := newTestEngine(t)

	all := e.ListPatterns("")
	if len(all) != 5 || all[0] != "Circle" {
		t.Errorf("ListPatterns() = %v", all)
	}
	got := e.ListPatterns("circle")
	want := []string{"Circle", "Extruded Circle", "Divided Circle"}
	if len(got) != len(want) {
		t.Fatalf("ListPatterns(circle) = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ListPatterns(circle)[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestAddComponent(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := e.AddComponent(ctx, "slider", host.Position{X: 10, Y: 20}, nil)
	if err != nil {
		t.Fatalf("AddComponent failed: %v", err)
	}
	if res.Type != "Number Slider" {
		t.Errorf("type = %s, want Number Slider", res.Type)
	}
	if res.Settings["min"] != 0.0 || res.Settings["max"] != 1.0 || res.Settings["value"] != 0.5 {
		t.Errorf("slider defaults not applied: %v", res.Settings)
	}

	_, err = e.AddComponent(ctx, "Circle", host.Position{X: 10001}, nil)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for out-of-range x, got %v", err)
	}
	_, err = e.AddComponent(ctx, "", host.Position{}, nil)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for empty type, got %v", err)
	}
}

func TestResolveAndConnect_DefaultPorts(t *testing.T) {
	e, mock := newTestEngine(t)
	ctx := context.Background()
	plane := addNode(t, e, "XY Plane")
	circle := addNode(t, e, "Circle")
	slider := addNode(t, e, "Number Slider")

	res, err := e.ResolveAndConnect(ctx, ConnectRequest{SourceID: plane, TargetID: circle})
	if err != nil {
		t.Fatalf("connect plane failed: %v", err)
	}
	if res.SourcePort != "Plane" || res.TargetPort != "Plane" || res.Rule != compat.RuleSameType || !res.Connected {
		t.Errorf("unexpected result: %+v", res)
	}

	// Plane is wired now, so the next free input is Radius.
	res, err = e.ResolveAndConnect(ctx, ConnectRequest{SourceID: slider, TargetID: circle})
	if err != nil {
		t.Fatalf("connect slider failed: %v", err)
	}
	if res.SourcePort != "N" || res.TargetPort != "Radius" {
		t.Errorf("unexpected ports: %+v", res)
	}

	conns, _ := mock.Connections(ctx)
	if len(conns) != 2 {
		t.Errorf("wires = %d, want 2", len(conns))
	}
}

func TestResolveAndConnect_PortReferences(t *testing.T) {
	tests := []struct {
		name       string
		targetPort string
		want       string
	}{
		{"canonical", "Radius", "Radius"},
		{"alias", "rad", "Radius"},
		{"nickname", "R", "Radius"},
		{"index", "1", "Radius"},
		{"case", "plane", "Plane"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t)
			slider := addNode(t, e, "Number Slider")
			circle := addNode(t, e, "Circle")

			res, err := e.ValidateConnection(context.Background(), ConnectRequest{
				SourceID: slider, SourcePort: "0", TargetID: circle, TargetPort: tt.targetPort,
			})
			if err != nil {
				t.Fatalf("ValidateConnection failed: %v", err)
			}
			if res.TargetPort != tt.want {
				t.Errorf("target port = %s, want %s", res.TargetPort, tt.want)
			}
		})
	}
}

func TestResolveAndConnect_Errors(t *testing.T) {
	e, mock := newTestEngine(t)
	ctx := context.Background()
	slider := addNode(t, e, "Number Slider")
	param := addNode(t, e, "CircleParam")

	_, err := e.ResolveAndConnect(ctx, ConnectRequest{SourceID: slider, TargetID: "node-99"})
	var resErr *resolve.Error
	if !errors.As(err, &resErr) || resErr.Ref != "node-99" {
		t.Errorf("expected resolution error for unknown node, got %v", err)
	}

	_, err = e.ResolveAndConnect(ctx, ConnectRequest{SourceID: slider, TargetID: param, TargetPort: "Radius"})
	if !errors.As(err, &resErr) {
		t.Errorf("expected resolution error for unknown port, got %v", err)
	}

	_, err = e.ResolveAndConnect(ctx, ConnectRequest{SourceID: slider, TargetID: param})
	var rej *compat.Rejection
	if !errors.As(err, &rej) || rej.Rule != "slider_to_circle" {
		t.Errorf("expected slider_to_circle rejection, got %v", err)
	}

	_, err = e.ResolveAndConnect(ctx, ConnectRequest{TargetID: param})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}

	if mock.Calls("connect_components") != 0 {
		t.Error("no connection should reach the host")
	}
}

func TestValidateConnection_DoesNotWire(t *testing.T) {
	e, mock := newTestEngine(t)
	plane := addNode(t, e, "plane")
	circle := addNode(t, e, "Circle")

	res, err := e.ValidateConnection(context.Background(), ConnectRequest{SourceID: plane, TargetID: circle, TargetPort: "baseplane"})
	if err != nil {
		t.Fatalf("ValidateConnection failed: %v", err)
	}
	if res.Connected || res.TargetPort != "Plane" || len(res.Trace) == 0 {
		t.Errorf("unexpected result: %+v", res)
	}
	if mock.Calls("connect_components") != 0 {
		t.Error("validation must not wire")
	}
}

func TestComponentInfoAndParameters(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.MaterializePattern(ctx, "Circle"); err != nil {
		t.Fatalf("MaterializePattern failed: %v", err)
	}

	info, err := e.ComponentInfo(ctx, "node-3")
	if err != nil {
		t.Fatalf("ComponentInfo failed: %v", err)
	}
	if info.Type != "Circle" || info.Spec == nil || info.Spec.Category != "Curve" {
		t.Errorf("unexpected info: %+v", info)
	}
	if len(info.Connections) != 2 {
		t.Errorf("connections = %d, want 2", len(info.Connections))
	}

	if _, err := e.ComponentInfo(ctx, "node-42"); err == nil {
		t.Error("expected error for unknown node")
	}

	spec, ok := e.ComponentParameters("numslider")
	if !ok || spec.Name != "Number Slider" {
		t.Errorf("alias lookup = %v %v", spec.Name, ok)
	}
	spec, ok = e.ComponentParameters("Extr")
	if !ok || spec.Name != "Extrude" {
		t.Errorf("closest match lookup = %v %v", spec.Name, ok)
	}
}

func TestHealthCheck(t *testing.T) {
	e, mock := newTestEngine(t)

	st := e.HealthCheck(context.Background())
	if st.Status != "healthy" || !st.Connected || st.Knowledge == "" {
		t.Errorf("unexpected status: %+v", st)
	}

	mock.SetPingError(errors.New("connection refused"))
	st = e.HealthCheck(context.Background())
	if st.Status != "unhealthy" || st.Connected || st.Error != "connection refused" {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestClear(t *testing.T) {
	e, mock := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.MaterializePattern(ctx, "Addition"); err != nil {
		t.Fatalf("MaterializePattern failed: %v", err)
	}
	if err := e.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if nodes, _ := mock.Nodes(ctx); len(nodes) != 0 {
		t.Errorf("canvas still has %d nodes", len(nodes))
	}
	if g := e.Canvas().GetGraph(); len(g.Nodes) != 0 {
		t.Error("projection not reset")
	}
}

func TestDocumentInfo(t *testing.T) {
	e, mock := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.MaterializePattern(ctx, "Circle"); err != nil {
		t.Fatalf("MaterializePattern failed: %v", err)
	}

	info, err := e.DocumentInfo(ctx)
	if err != nil {
		t.Fatalf("DocumentInfo failed: %v", err)
	}
	if info["componentCount"] != 3 || info["connectionCount"] != 2 {
		t.Errorf("unexpected document info: %v", info)
	}

	mock.FailOn("get_document_info", 2, "No active document")
	_, err = e.DocumentInfo(ctx)
	var hostErr *host.Error
	if !errors.As(err, &hostErr) || hostErr.Detail != "No active document" {
		t.Errorf("expected host refusal, got %v", err)
	}
}
