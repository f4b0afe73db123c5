package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rmax-ai/ghbridge/pkg/engine"
	"github.com/rmax-ai/ghbridge/pkg/host"
	"github.com/rmax-ai/ghbridge/pkg/knowledge"
	"github.com/rmax-ai/ghbridge/pkg/store"
)

type stubJournal struct {
	records []store.Record
}

func (j stubJournal) Recent(ctx context.Context, limit int) ([]store.Record, error) {
	return j.records, nil
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *host.MockHost) {
	t.Helper()
	kb := knowledge.Builtin()
	mock := host.NewMockHost(kb)
	e := engine.New(knowledge.NewStaticHolder(kb), mock)
	return NewServer(e, opts...), mock
}

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("Expected content in result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Expected TextContent, got %T", result.Content[0])
	}
	return text.Text
}

func TestMCPServer_CreatePattern(t *testing.T) {
	s, mock := newTestServer(t)

	result, err := s.handleCreatePattern(context.Background(), callTool("create_pattern", map[string]interface{}{
		"description": "a simple circle",
	}))
	if err != nil {
		t.Fatalf("handleCreatePattern failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("Expected success, got error: %s", resultText(t, result))
	}

	var sum engine.Summary
	if err := json.Unmarshal([]byte(resultText(t, result)), &sum); err != nil {
		t.Fatalf("Failed to parse result JSON: %v", err)
	}
	if sum.Pattern != "Circle" || sum.NodeCount != 3 || sum.EdgeCount != 2 {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if mock.Calls("add_component") != 3 {
		t.Errorf("add_component calls = %d", mock.Calls("add_component"))
	}
}

func TestMCPServer_CreatePatternMiss(t *testing.T) {
	s, mock := newTestServer(t)

	result, err := s.handleCreatePattern(context.Background(), callTool("create_pattern", map[string]interface{}{
		"description": "voronoi cube",
	}))
	if err != nil {
		t.Fatalf("handler returned protocol error: %v", err)
	}
	if !result.IsError {
		t.Error("Expected tool error for unmatched description")
	}
	if mock.TotalCalls() != 0 {
		t.Errorf("host received %d calls", mock.TotalCalls())
	}
}

func TestMCPServer_CreatePatternPartial(t *testing.T) {
	s, mock := newTestServer(t)
	mock.FailOn("add_component", 3, "Component type 'Circle' not found")

	result, err := s.handleCreatePattern(context.Background(), callTool("create_pattern", map[string]interface{}{
		"description": "circle",
	}))
	if err != nil {
		t.Fatalf("handler returned protocol error: %v", err)
	}
	if !result.IsError || len(result.Content) != 2 {
		t.Fatalf("Expected error with partial summary, got %+v", result)
	}
	if !strings.Contains(resultText(t, result), "Component type 'Circle' not found") {
		t.Errorf("host text not surfaced: %s", resultText(t, result))
	}
}

func TestMCPServer_AddAndConnect(t *testing.T) {
	s, mock := newTestServer(t)
	ctx := context.Background()

	for _, typ := range []string{"slider", "slider", "add"} {
		result, err := s.handleAddComponent(ctx, callTool("add_component", map[string]interface{}{
			"component_type": typ,
			"x":              100.0,
			"y":              50.0,
		}))
		if err != nil || result.IsError {
			t.Fatalf("add_component(%s) failed: %v", typ, err)
		}
	}

	// The first wire lands on A, the second on the next free input B.
	for i, src := range []string{"node-1", "node-2"} {
		result, err := s.handleConnect(ctx, callTool("connect_components", map[string]interface{}{
			"source_id": src,
			"target_id": "node-3",
		}))
		if err != nil || result.IsError {
			t.Fatalf("connect %d failed: %v %v", i, err, result)
		}
	}

	conns, _ := mock.Connections(ctx)
	if len(conns) != 2 || conns[0].TargetParam != "A" || conns[1].TargetParam != "B" {
		t.Errorf("unexpected wires: %+v", conns)
	}
}

func TestMCPServer_AddComponentOutOfRange(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleAddComponent(context.Background(), callTool("add_component", map[string]interface{}{
		"component_type": "Circle",
		"x":              20000.0,
		"y":              0.0,
	}))
	if err != nil {
		t.Fatalf("handler returned protocol error: %v", err)
	}
	if !result.IsError {
		t.Error("Expected tool error for coordinates out of range")
	}
}

func TestMCPServer_ValidateConnectionByIndex(t *testing.T) {
	s, mock := newTestServer(t)
	ctx := context.Background()
	s.handleAddComponent(ctx, callTool("add_component", map[string]interface{}{"component_type": "slider", "x": 0.0, "y": 0.0}))
	s.handleAddComponent(ctx, callTool("add_component", map[string]interface{}{"component_type": "Circle", "x": 200.0, "y": 0.0}))

	result, err := s.handleValidateConnection(ctx, callTool("validate_connection", map[string]interface{}{
		"source_id":          "node-1",
		"target_id":          "node-2",
		"target_param_index": 1.0,
	}))
	if err != nil {
		t.Fatalf("handleValidateConnection failed: %v", err)
	}

	var out struct {
		Valid      bool   `json:"valid"`
		TargetPort string `json:"target_port"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &out); err != nil {
		t.Fatalf("Failed to parse result JSON: %v", err)
	}
	if !out.Valid || out.TargetPort != "Radius" {
		t.Errorf("unexpected validation: %+v", out)
	}
	if mock.Calls("connect_components") != 0 {
		t.Error("validation must not wire")
	}
}

func TestMCPServer_ReadPatterns(t *testing.T) {
	s, _ := newTestServer(t)

	req := mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: "ghbridge://patterns",
		},
	}
	result, err := s.handleReadPatterns(context.Background(), req)
	if err != nil {
		t.Fatalf("handleReadPatterns failed: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("Expected 1 resource content, got %d", len(result))
	}
	content, ok := result[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("Expected TextResourceContents")
	}
	if content.MIMEType != "application/json" {
		t.Errorf("Expected application/json, got %s", content.MIMEType)
	}

	var patterns []knowledge.Pattern
	if err := json.Unmarshal([]byte(content.Text), &patterns); err != nil {
		t.Errorf("Failed to parse result JSON: %v", err)
	}
	if len(patterns) != 5 {
		t.Errorf("Expected 5 patterns, got %d", len(patterns))
	}
}

func TestMCPServer_ReadJournal(t *testing.T) {
	s, _ := newTestServer(t, WithJournal(stubJournal{records: []store.Record{
		{ID: "r1", Pattern: "Circle", Succeeded: true},
	}}))

	result, err := s.handleReadJournal(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "ghbridge://journal"},
	})
	if err != nil {
		t.Fatalf("handleReadJournal failed: %v", err)
	}
	content := result[0].(mcp.TextResourceContents)
	if !strings.Contains(content.Text, `"r1"`) {
		t.Errorf("journal record missing: %s", content.Text)
	}
}

func TestMCPServer_AnalyzeHealth(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleAnalyzeHealth(context.Background(), callTool("analyze_canvas_health", nil))
	if err != nil || result.IsError {
		t.Fatalf("handleAnalyzeHealth failed: %v", err)
	}
	var report engine.HealthReport
	if err := json.Unmarshal([]byte(resultText(t, result)), &report); err != nil {
		t.Fatalf("Failed to parse result JSON: %v", err)
	}
	if report.Summary.HealthScore != 100 || report.Status != "Excellent" {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestMCPServer_GetPrompt(t *testing.T) {
	s, _ := newTestServer(t)

	req := mcp.GetPromptRequest{}
	req.Params.Name = "ghbridge-guide"
	result, err := s.handleGetPrompt(context.Background(), req)
	if err != nil {
		t.Fatalf("handleGetPrompt failed: %v", err)
	}
	if len(result.Messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(result.Messages))
	}
	text, ok := result.Messages[0].Content.(mcp.TextContent)
	if !ok || !strings.Contains(text.Text, "Extruded Circle") {
		t.Errorf("prompt does not list patterns: %+v", result.Messages[0].Content)
	}

	req.Params.Name = "other"
	if _, err := s.handleGetPrompt(context.Background(), req); err == nil {
		t.Error("Expected error for unknown prompt")
	}
}

func TestMCPServer_MaterializePatternPartial(t *testing.T) {
	s, mock := newTestServer(t)
	mock.FailOn("connect_components", 1, "Source parameter 'Plane' not found")

	result, err := s.handleMaterializePattern(context.Background(), callTool("materialize_pattern", map[string]interface{}{
		"name": "Circle",
	}))
	if err != nil {
		t.Fatalf("handler returned protocol error: %v", err)
	}
	if !result.IsError || len(result.Content) != 2 {
		t.Fatalf("Expected error with partial summary, got %+v", result)
	}
	if !strings.Contains(resultText(t, result), "Source parameter 'Plane' not found") {
		t.Errorf("host text not surfaced: %s", resultText(t, result))
	}

	text, ok := result.Content[1].(mcp.TextContent)
	if !ok {
		t.Fatalf("Expected TextContent, got %T", result.Content[1])
	}
	var sum engine.Summary
	if err := json.Unmarshal([]byte(text.Text), &sum); err != nil {
		t.Fatalf("Failed to parse summary JSON: %v", err)
	}
	if sum.NodeCount != 3 || sum.EdgeCount != 0 || len(sum.Handles) != 3 {
		t.Errorf("unexpected partial summary: %+v", sum)
	}
	if sum.Failure == nil {
		t.Error("partial summary should carry the failure")
	}
	if nodes, _ := mock.Nodes(context.Background()); len(nodes) != 3 {
		t.Errorf("created nodes should stay on the canvas, got %d", len(nodes))
	}
}

func TestMCPServer_MaterializeUnknownPattern(t *testing.T) {
	s, mock := newTestServer(t)

	result, err := s.handleMaterializePattern(context.Background(), callTool("materialize_pattern", map[string]interface{}{
		"name": "Voronoi",
	}))
	if err != nil {
		t.Fatalf("handler returned protocol error: %v", err)
	}
	if !result.IsError || len(result.Content) != 1 {
		t.Errorf("Expected plain tool error, got %+v", result)
	}
	if mock.TotalCalls() != 0 {
		t.Errorf("host received %d calls", mock.TotalCalls())
	}
}

func TestMCPServer_DocumentInfo(t *testing.T) {
	s, mock := newTestServer(t)
	ctx := context.Background()
	s.handleAddComponent(ctx, callTool("add_component", map[string]interface{}{"component_type": "slider", "x": 0.0, "y": 0.0}))

	result, err := s.handleDocumentInfo(ctx, callTool("get_document_info", nil))
	if err != nil || result.IsError {
		t.Fatalf("handleDocumentInfo failed: %v %+v", err, result)
	}
	var info map[string]any
	if err := json.Unmarshal([]byte(resultText(t, result)), &info); err != nil {
		t.Fatalf("Failed to parse result JSON: %v", err)
	}
	if info["componentCount"] != 1.0 {
		t.Errorf("unexpected document info: %v", info)
	}

	mock.FailOn("get_document_info", 2, "No active document")
	result, err = s.handleDocumentInfo(ctx, callTool("get_document_info", nil))
	if err != nil {
		t.Fatalf("handler returned protocol error: %v", err)
	}
	if !result.IsError || !strings.Contains(resultText(t, result), "No active document") {
		t.Errorf("Expected host refusal, got %+v", result)
	}
}

func TestMCPServer_ReadComponentGuide(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleReadGuide(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "ghbridge://component_guide"},
	})
	if err != nil {
		t.Fatalf("handleReadGuide failed: %v", err)
	}
	content := result[0].(mcp.TextResourceContents)

	var guide componentGuide
	if err := json.Unmarshal([]byte(content.Text), &guide); err != nil {
		t.Fatalf("Failed to parse guide JSON: %v", err)
	}
	if len(guide.Tips) == 0 || len(guide.CommonIssues) == 0 || len(guide.TypeRules) == 0 {
		t.Errorf("guide text missing: %+v", guide)
	}

	found := false
	for _, r := range guide.ConnectionRules {
		if r.From == "Number Slider.N" && r.To == "Circle.Radius" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected slider-to-radius rule, got %+v", guide.ConnectionRules)
	}

	for _, c := range guide.Components {
		if c.Name == "Circle" && !containsString(c.UsedIn, "Circle") {
			t.Errorf("Circle should list the Circle pattern: %v", c.UsedIn)
		}
	}
}
