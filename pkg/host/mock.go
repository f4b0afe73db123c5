package host

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rmax-ai/ghbridge/pkg/knowledge"
)

// MockHost is an in-memory host whose component catalogue comes from a
// knowledge base. It is used by tests and by the CLI's dry-run mode.
type MockHost struct {
	kb *knowledge.KnowledgeBase

	mu          sync.Mutex
	nextID      int
	nodes       map[NodeHandle]*mockNode
	order       []NodeHandle
	connections []Connection
	diagnostics map[NodeHandle][]Diagnostic
	calls       map[string]int
	failures    map[string]map[int]string
	pingErr     error
}

type mockNode struct {
	info NodeInfo
}

// NewMockHost creates an empty canvas that knows the components of kb.
func NewMockHost(kb *knowledge.KnowledgeBase) *MockHost {
	return &MockHost{
		kb:          kb,
		nodes:       make(map[NodeHandle]*mockNode),
		diagnostics: make(map[NodeHandle][]Diagnostic),
		calls:       make(map[string]int),
		failures:    make(map[string]map[int]string),
	}
}

// FailOn makes the n-th (1-based) invocation of command fail with detail.
// Commands use the wire names, e.g. "add_component" or "connect_components".
func (m *MockHost) FailOn(command string, n int, detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures[command] == nil {
		m.failures[command] = make(map[int]string)
	}
	m.failures[command][n] = detail
}

// SetPingError makes Ping return err.
func (m *MockHost) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingErr = err
}

// AddDiagnostic attaches a runtime message to node.
func (m *MockHost) AddDiagnostic(node NodeHandle, d Diagnostic) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.Node = node
	if n, ok := m.nodes[node]; ok && d.NodeName == "" {
		d.NodeName = n.info.Name
	}
	m.diagnostics[node] = append(m.diagnostics[node], d)
}

// Calls reports how many times command was invoked.
func (m *MockHost) Calls(command string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[command]
}

// TotalCalls reports the number of invocations across all commands.
func (m *MockHost) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// record counts the call and returns the injected failure, if any. Caller holds mu.
func (m *MockHost) record(command string) error {
	m.calls[command]++
	if detail, ok := m.failures[command][m.calls[command]]; ok {
		return &Error{Command: command, Detail: detail}
	}
	return nil
}

func (m *MockHost) CreateNode(ctx context.Context, typeName string, pos Position, settings map[string]any) (NodeHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("add_component"); err != nil {
		return "", err
	}

	spec, ok := m.kb.Component(typeName)
	if !ok {
		return "", &Error{Command: "add_component", Detail: fmt.Sprintf("Component type '%s' not found", typeName)}
	}

	m.nextID++
	id := NodeHandle(fmt.Sprintf("node-%d", m.nextID))
	merged := make(map[string]any, len(spec.Defaults)+len(settings))
	for k, v := range spec.Defaults {
		merged[k] = v
	}
	for k, v := range settings {
		merged[k] = v
	}
	m.nodes[id] = &mockNode{info: NodeInfo{
		ID:       id,
		Type:     spec.Name,
		Name:     spec.Name,
		Position: pos,
		Inputs:   toPorts(spec.Inputs),
		Outputs:  toPorts(spec.Outputs),
		Settings: merged,
	}}
	m.order = append(m.order, id)
	return id, nil
}

func toPorts(specs []knowledge.PortSpec) []Port {
	ports := make([]Port, len(specs))
	for i, s := range specs {
		ports[i] = Port{Name: s.Name, Nickname: s.Nickname, Type: s.Type}
	}
	return ports
}

func (m *MockHost) node(command string, id NodeHandle) (*mockNode, error) {
	n, ok := m.nodes[id]
	if !ok {
		return nil, &Error{Command: command, Detail: fmt.Sprintf("Component with ID %s not found", id)}
	}
	return n, nil
}

func (m *MockHost) Inspect(ctx context.Context, id NodeHandle) (NodeInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("get_component_info"); err != nil {
		return NodeInfo{}, err
	}
	n, err := m.node("get_component_info", id)
	if err != nil {
		return NodeInfo{}, err
	}
	return n.info, nil
}

func (m *MockHost) ListPorts(ctx context.Context, id NodeHandle, dir Direction) ([]Port, error) {
	info, err := m.Inspect(ctx, id)
	if err != nil {
		return nil, err
	}
	if dir == Output {
		return info.Outputs, nil
	}
	return info.Inputs, nil
}

func findLivePort(ports []Port, name string) (Port, bool) {
	for _, p := range ports {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	for _, p := range ports {
		if p.Nickname != "" && strings.EqualFold(p.Nickname, name) {
			return p, true
		}
	}
	return Port{}, false
}

func (m *MockHost) Connect(ctx context.Context, src, dst PortRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	const command = "connect_components"
	if err := m.record(command); err != nil {
		return err
	}

	from, err := m.node(command, src.Node)
	if err != nil {
		return err
	}
	to, err := m.node(command, dst.Node)
	if err != nil {
		return err
	}
	out, ok := findLivePort(from.info.Outputs, src.Port)
	if !ok {
		return &Error{Command: command, Detail: fmt.Sprintf("Source parameter '%s' not found", src.Port)}
	}
	in, ok := findLivePort(to.info.Inputs, dst.Port)
	if !ok {
		return &Error{Command: command, Detail: fmt.Sprintf("Target parameter '%s' not found", dst.Port)}
	}

	// an input holds a single wire
	kept := m.connections[:0]
	for _, c := range m.connections {
		if c.TargetID == dst.Node && c.TargetParam == in.Name {
			continue
		}
		kept = append(kept, c)
	}
	m.connections = append(kept, Connection{
		SourceID:    src.Node,
		SourceParam: out.Name,
		TargetID:    dst.Node,
		TargetParam: in.Name,
	})
	return nil
}

func (m *MockHost) Diagnostics(ctx context.Context, id NodeHandle) ([]Diagnostic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("get_component_warnings"); err != nil {
		return nil, err
	}
	if _, err := m.node("get_component_warnings", id); err != nil {
		return nil, err
	}
	return append([]Diagnostic(nil), m.diagnostics[id]...), nil
}

func (m *MockHost) AllDiagnostics(ctx context.Context) ([]Diagnostic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("get_component_warnings"); err != nil {
		return nil, err
	}
	var out []Diagnostic
	for _, id := range m.order {
		out = append(out, m.diagnostics[id]...)
	}
	return out, nil
}

func (m *MockHost) Nodes(ctx context.Context) ([]NodeInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("get_all_components"); err != nil {
		return nil, err
	}
	out := make([]NodeInfo, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.nodes[id].info)
	}
	return out, nil
}

func (m *MockHost) Connections(ctx context.Context) ([]Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("get_connections"); err != nil {
		return nil, err
	}
	return append([]Connection(nil), m.connections...), nil
}

func (m *MockHost) DocumentInfo(ctx context.Context) (DocumentInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("get_document_info"); err != nil {
		return nil, err
	}
	return DocumentInfo{
		"name":            "Untitled",
		"componentCount":  len(m.order),
		"connectionCount": len(m.connections),
	}, nil
}

func (m *MockHost) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ping"); err != nil {
		return err
	}
	return m.pingErr
}

func (m *MockHost) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("clear_document"); err != nil {
		return err
	}
	m.nodes = make(map[NodeHandle]*mockNode)
	m.order = nil
	m.connections = nil
	m.diagnostics = make(map[NodeHandle][]Diagnostic)
	return nil
}

var _ Bridge = (*MockHost)(nil)
