package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rmax-ai/ghbridge/pkg/engine"
	"github.com/rmax-ai/ghbridge/pkg/graph"
	"github.com/rmax-ai/ghbridge/pkg/host"
	"github.com/rmax-ai/ghbridge/pkg/store"
	"go.uber.org/zap"
)

const (
	serverName    = "ghbridge"
	guidePrompt   = "ghbridge-guide"
	journalLimit  = 50
	mimeTypeJSON  = "application/json"
	coordinateMax = 10000
)

// JournalReader lists past materializations.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]store.Record, error)
}

// Server adapts the bridge engine to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	engine    *engine.Engine
	journal   JournalReader
	log       *zap.Logger
	version   string
}

// Option configures a Server.
type Option func(*Server)

// WithJournal exposes past materializations as a resource.
func WithJournal(j JournalReader) Option {
	return func(s *Server) { s.journal = j }
}

// WithLogger sets the server logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithVersion sets the version reported during initialization.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer creates a new MCP server instance.
func NewServer(e *engine.Engine, opts ...Option) *Server {
	s := &Server{engine: e, log: zap.NewNop(), version: "dev"}
	for _, opt := range opts {
		opt(s)
	}
	s.mcpServer = server.NewMCPServer(
		serverName,
		s.version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Build Grasshopper definitions from plain-language descriptions. Start with get_available_patterns or create_pattern."),
	)
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// MCPServer exposes the underlying server, e.g. for alternative transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// --- Resources ---

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		"ghbridge://patterns",
		"Pattern Library",
		mcp.WithResourceDescription("Patterns that create_pattern can materialize, with their nodes and edges"),
		mcp.WithMIMEType(mimeTypeJSON),
	), s.handleReadPatterns)

	s.mcpServer.AddResource(mcp.NewResource(
		"ghbridge://component_library",
		"Component Library",
		mcp.WithResourceDescription("Known component types with their inputs and outputs"),
		mcp.WithMIMEType(mimeTypeJSON),
	), s.handleReadComponents)

	s.mcpServer.AddResource(mcp.NewResource(
		"ghbridge://component_guide",
		"Component Guide",
		mcp.WithResourceDescription("Connection rules, usage tips and common issues, with the known components"),
		mcp.WithMIMEType(mimeTypeJSON),
	), s.handleReadGuide)

	s.mcpServer.AddResource(mcp.NewResource(
		"ghbridge://journal",
		"Materialization Journal",
		mcp.WithResourceDescription("Recent pattern materializations and their outcomes"),
		mcp.WithMIMEType(mimeTypeJSON),
	), s.handleReadJournal)

	s.mcpServer.AddResource(mcp.NewResource(
		"ghbridge://canvas",
		"Canvas Snapshot",
		mcp.WithResourceDescription("Components and wires currently on the canvas"),
		mcp.WithMIMEType(mimeTypeJSON),
	), s.handleReadCanvas)

	s.mcpServer.AddResource(mcp.NewResource(
		"ghbridge://status",
		"Bridge Status",
		mcp.WithResourceDescription("Host connectivity and knowledge base source"),
		mcp.WithMIMEType(mimeTypeJSON),
	), s.handleReadStatus)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"create_pattern",
		mcp.WithDescription("Create a group of wired components from a high-level description (e.g. 'a circle', 'add two numbers')."),
		mcp.WithString("description", mcp.Required(), mcp.Description("What to create")),
	), s.handleCreatePattern)

	s.mcpServer.AddTool(mcp.NewTool(
		"materialize_pattern",
		mcp.WithDescription("Create a named pattern from the pattern library."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Pattern name as listed by get_available_patterns")),
	), s.handleMaterializePattern)

	s.mcpServer.AddTool(mcp.NewTool(
		"get_available_patterns",
		mcp.WithDescription("List the patterns that can be created, optionally filtered by a query."),
		mcp.WithString("query", mcp.Description("Substring matched against pattern names and descriptions")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleListPatterns)

	s.mcpServer.AddTool(mcp.NewTool(
		"add_component",
		mcp.WithDescription("Add a single component to the canvas. Common names and aliases are accepted (slider, plane, add, ...)."),
		mcp.WithString("component_type", mcp.Required(), mcp.Description("Component type or alias")),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("Canvas X coordinate")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Canvas Y coordinate")),
		mcp.WithObject("settings", mcp.Description("Initial settings, e.g. slider min/max/value")),
	), s.handleAddComponent)

	connectArgs := []mcp.ToolOption{
		mcp.WithString("source_id", mcp.Required(), mcp.Description("ID of the source component (output side)")),
		mcp.WithString("target_id", mcp.Required(), mcp.Description("ID of the target component (input side)")),
		mcp.WithString("source_param", mcp.Description("Source output name, nickname or alias (default: first output)")),
		mcp.WithString("target_param", mcp.Description("Target input name, nickname or alias (default: first free input)")),
		mcp.WithNumber("source_param_index", mcp.Description("Source output index, used when source_param is absent")),
		mcp.WithNumber("target_param_index", mcp.Description("Target input index, used when target_param is absent")),
	}
	s.mcpServer.AddTool(mcp.NewTool("connect_components", append([]mcp.ToolOption{
		mcp.WithDescription("Connect an output of one component to an input of another."),
	}, connectArgs...)...), s.handleConnect)
	s.mcpServer.AddTool(mcp.NewTool("validate_connection", append([]mcp.ToolOption{
		mcp.WithDescription("Check whether a connection would be accepted, without wiring anything."),
		mcp.WithReadOnlyHintAnnotation(true),
	}, connectArgs...)...), s.handleValidateConnection)

	s.mcpServer.AddTool(mcp.NewTool(
		"get_component_info",
		mcp.WithDescription("Inspect a component on the canvas, including its ports and wires."),
		mcp.WithString("component_id", mcp.Required(), mcp.Description("ID of the component")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleComponentInfo)

	s.mcpServer.AddTool(mcp.NewTool(
		"get_component_parameters",
		mcp.WithDescription("Look up the declared inputs and outputs of a component type."),
		mcp.WithString("component_type", mcp.Required(), mcp.Description("Component type or alias")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleComponentParameters)

	s.mcpServer.AddTool(mcp.NewTool(
		"search_components",
		mcp.WithDescription("Search known components by name, category or description."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleSearchComponents)

	s.mcpServer.AddTool(mcp.NewTool(
		"get_all_components",
		mcp.WithDescription("List every component on the canvas."),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleAllComponents)

	s.mcpServer.AddTool(mcp.NewTool(
		"get_connections",
		mcp.WithDescription("List every wire on the canvas."),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleConnections)

	s.mcpServer.AddTool(mcp.NewTool(
		"get_document_info",
		mcp.WithDescription("Describe the open Grasshopper document as reported by the host."),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleDocumentInfo)

	s.mcpServer.AddTool(mcp.NewTool(
		"get_component_warnings",
		mcp.WithDescription("Runtime warnings and errors for one component, or for the whole canvas."),
		mcp.WithString("component_id", mcp.Description("ID of the component (omit for all components)")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleWarnings)

	s.mcpServer.AddTool(mcp.NewTool(
		"analyze_canvas_health",
		mcp.WithDescription("Score the canvas from its warnings and layout and suggest fixes."),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleAnalyzeHealth)

	s.mcpServer.AddTool(mcp.NewTool(
		"health_check",
		mcp.WithDescription("Check the connection to the canvas host."),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleHealthCheck)

	s.mcpServer.AddTool(mcp.NewTool(
		"clear_document",
		mcp.WithDescription("Remove every component from the canvas."),
		mcp.WithDestructiveHintAnnotation(true),
	), s.handleClear)

	s.mcpServer.AddTool(mcp.NewTool(
		"reload_knowledge",
		mcp.WithDescription("Reload the component and pattern library from its configured sources."),
	), s.handleReload)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		guidePrompt,
		mcp.WithPromptDescription("Explains how to build Grasshopper definitions with this bridge"),
	), s.handleGetPrompt)
}

// --- Helpers ---

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: mimeTypeJSON,
			Text:     string(data),
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// toolError reports a failed operation to the caller as a tool-level error.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.log.Warn("tool_failed", zap.String("tool", tool), zap.Error(err))
	return mcp.NewToolResultError(err.Error())
}

func portArg(request mcp.CallToolRequest, name, index string) string {
	if v := strings.TrimSpace(mcp.ParseString(request, name, "")); v != "" {
		return v
	}
	if _, ok := request.GetArguments()[index]; ok {
		return strconv.Itoa(int(mcp.ParseFloat64(request, index, 0)))
	}
	return ""
}

func connectRequest(request mcp.CallToolRequest) engine.ConnectRequest {
	return engine.ConnectRequest{
		SourceID:   mcp.ParseString(request, "source_id", ""),
		SourcePort: portArg(request, "source_param", "source_param_index"),
		TargetID:   mcp.ParseString(request, "target_id", ""),
		TargetPort: portArg(request, "target_param", "target_param_index"),
	}
}

// --- Resource handlers ---

func (s *Server) handleReadPatterns(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(request.Params.URI, s.engine.Knowledge().Patterns())
}

func (s *Server) handleReadComponents(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(request.Params.URI, s.engine.Knowledge().Components())
}

func (s *Server) handleReadGuide(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(request.Params.URI, buildGuide(s.engine.Knowledge()))
}

func (s *Server) handleReadJournal(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if s.journal == nil {
		return jsonContents(request.Params.URI, []store.Record{})
	}
	records, err := s.journal.Recent(ctx, journalLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch journal: %w", err)
	}
	return jsonContents(request.Params.URI, records)
}

func (s *Server) handleReadCanvas(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	g, err := s.engine.RefreshCanvas(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read canvas: %w", err)
	}
	return jsonContents(request.Params.URI, g)
}

func (s *Server) handleReadStatus(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(request.Params.URI, s.engine.HealthCheck(ctx))
}

// --- Tool handlers ---

func (s *Server) handleCreatePattern(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description := mcp.ParseString(request, "description", "")
	sum, err := s.engine.ClassifyAndMaterialize(ctx, description)
	return s.summaryResult("create_pattern", sum, err)
}

func (s *Server) handleMaterializePattern(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := s.engine.MaterializePattern(ctx, mcp.ParseString(request, "name", ""))
	return s.summaryResult("materialize_pattern", sum, err)
}

// summaryResult reports a materialization. A run that started and then failed
// returns the error followed by the summary of what is left on the canvas.
func (s *Server) summaryResult(tool string, sum engine.Summary, err error) (*mcp.CallToolResult, error) {
	if err == nil {
		return jsonResult(sum)
	}
	if sum.ResultID == "" {
		return s.toolError(tool, err), nil
	}
	s.log.Warn("tool_partial", zap.String("tool", tool), zap.String("result_id", sum.ResultID), zap.Error(err))
	res, jerr := jsonResult(sum)
	if jerr != nil {
		return nil, jerr
	}
	res.IsError = true
	res.Content = append([]mcp.Content{mcp.NewTextContent(err.Error())}, res.Content...)
	return res, nil
}

func (s *Server) handleListPatterns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names := s.engine.ListPatterns(mcp.ParseString(request, "query", ""))
	if names == nil {
		names = []string{}
	}
	return jsonResult(names)
}

func (s *Server) handleAddComponent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typeName := mcp.ParseString(request, "component_type", "")
	pos := host.Position{
		X: mcp.ParseFloat64(request, "x", 0),
		Y: mcp.ParseFloat64(request, "y", 0),
	}
	settings, _ := request.GetArguments()["settings"].(map[string]any)

	res, err := s.engine.AddComponent(ctx, typeName, pos, settings)
	if err != nil {
		return s.toolError("add_component", err), nil
	}
	return jsonResult(res)
}

func (s *Server) handleConnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.engine.ResolveAndConnect(ctx, connectRequest(request))
	if err != nil {
		return s.toolError("connect_components", err), nil
	}
	return jsonResult(res)
}

func (s *Server) handleValidateConnection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.engine.ValidateConnection(ctx, connectRequest(request))
	out := struct {
		Valid bool   `json:"valid"`
		Error string `json:"error,omitempty"`
		engine.ConnectResult
	}{Valid: err == nil, ConnectResult: res}
	if err != nil {
		out.Error = err.Error()
	}
	return jsonResult(out)
}

func (s *Server) handleComponentInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.engine.ComponentInfo(ctx, mcp.ParseString(request, "component_id", ""))
	if err != nil {
		return s.toolError("get_component_info", err), nil
	}
	return jsonResult(info)
}

func (s *Server) handleComponentParameters(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typeName := mcp.ParseString(request, "component_type", "")
	spec, ok := s.engine.ComponentParameters(typeName)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Component type '%s' not found", typeName)), nil
	}
	return jsonResult(spec)
}

func (s *Server) handleSearchComponents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	found := s.engine.SearchComponents(mcp.ParseString(request, "query", ""))
	names := make([]string, len(found))
	for i, c := range found {
		names[i] = c.Name
	}
	return jsonResult(names)
}

func (s *Server) handleAllComponents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, err := s.engine.RefreshCanvas(ctx)
	if err != nil {
		return s.toolError("get_all_components", err), nil
	}
	nodes := make([]*graph.Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return jsonResult(nodes)
}

func (s *Server) handleConnections(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, err := s.engine.RefreshCanvas(ctx)
	if err != nil {
		return s.toolError("get_connections", err), nil
	}
	return jsonResult(g.Edges)
}

func (s *Server) handleDocumentInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.engine.DocumentInfo(ctx)
	if err != nil {
		return s.toolError("get_document_info", err), nil
	}
	return jsonResult(info)
}

func (s *Server) handleWarnings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	diags, err := s.engine.Warnings(ctx, mcp.ParseString(request, "component_id", ""))
	if err != nil {
		return s.toolError("get_component_warnings", err), nil
	}
	if diags == nil {
		diags = []host.Diagnostic{}
	}
	return jsonResult(map[string]any{"warnings": diags})
}

func (s *Server) handleAnalyzeHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.engine.AnalyzeHealth(ctx)
	if err != nil {
		return s.toolError("analyze_canvas_health", err), nil
	}
	return jsonResult(report)
}

func (s *Server) handleHealthCheck(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.engine.HealthCheck(ctx))
}

func (s *Server) handleClear(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.engine.Clear(ctx); err != nil {
		return s.toolError("clear_document", err), nil
	}
	return mcp.NewToolResultText("Document cleared"), nil
}

func (s *Server) handleReload(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.engine.Reload(ctx))
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != guidePrompt {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	var b strings.Builder
	b.WriteString(`You are building Grasshopper definitions through ghbridge.

Concepts:
- Pattern: a named group of components and wires (e.g. 'Circle', 'Addition').
- Component: a node on the canvas, addressed by the id returned when it was created.
- Port: an input or output of a component. Ports accept names, nicknames, aliases or indexes.

Workflow:
1. Prefer create_pattern with a short description; it picks a pattern and builds it.
2. For custom work use add_component, then connect_components. Use validate_connection first when unsure.
3. Coordinates must stay within +/-` + strconv.Itoa(coordinateMax) + `.
4. After changes, run analyze_canvas_health and act on its suggestions.

Available patterns:
`)
	for _, p := range s.engine.Knowledge().Patterns() {
		fmt.Fprintf(&b, "- %s: %s\n", p.Name, p.Description)
	}

	return mcp.NewGetPromptResult(
		guidePrompt,
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(b.String())),
		},
	), nil
}
