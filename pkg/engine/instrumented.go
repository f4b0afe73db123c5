package engine

import (
	"context"

	"github.com/rmax-ai/ghbridge/pkg/host"
)

// instrumentedHost counts every call made to the wrapped bridge.
type instrumentedHost struct {
	next host.Bridge
}

func count(op string, err error) {
	GhbridgeHostCallsTotal.WithLabelValues(op, outcome(err)).Inc()
}

func (h instrumentedHost) CreateNode(ctx context.Context, typeName string, pos host.Position, settings map[string]any) (host.NodeHandle, error) {
	id, err := h.next.CreateNode(ctx, typeName, pos, settings)
	count("create_node", err)
	return id, err
}

func (h instrumentedHost) ListPorts(ctx context.Context, node host.NodeHandle, dir host.Direction) ([]host.Port, error) {
	ports, err := h.next.ListPorts(ctx, node, dir)
	count("list_ports", err)
	return ports, err
}

func (h instrumentedHost) Connect(ctx context.Context, src, dst host.PortRef) error {
	err := h.next.Connect(ctx, src, dst)
	count("connect", err)
	return err
}

func (h instrumentedHost) Diagnostics(ctx context.Context, node host.NodeHandle) ([]host.Diagnostic, error) {
	diags, err := h.next.Diagnostics(ctx, node)
	count("diagnostics", err)
	return diags, err
}

func (h instrumentedHost) Inspect(ctx context.Context, node host.NodeHandle) (host.NodeInfo, error) {
	info, err := h.next.Inspect(ctx, node)
	count("inspect", err)
	return info, err
}

func (h instrumentedHost) Nodes(ctx context.Context) ([]host.NodeInfo, error) {
	nodes, err := h.next.Nodes(ctx)
	count("nodes", err)
	return nodes, err
}

func (h instrumentedHost) Connections(ctx context.Context) ([]host.Connection, error) {
	conns, err := h.next.Connections(ctx)
	count("connections", err)
	return conns, err
}

func (h instrumentedHost) AllDiagnostics(ctx context.Context) ([]host.Diagnostic, error) {
	diags, err := h.next.AllDiagnostics(ctx)
	count("all_diagnostics", err)
	return diags, err
}

func (h instrumentedHost) DocumentInfo(ctx context.Context) (host.DocumentInfo, error) {
	info, err := h.next.DocumentInfo(ctx)
	count("document_info", err)
	return info, err
}

func (h instrumentedHost) Ping(ctx context.Context) error {
	err := h.next.Ping(ctx)
	count("ping", err)
	return err
}

func (h instrumentedHost) Clear(ctx context.Context) error {
	err := h.next.Clear(ctx)
	count("clear", err)
	return err
}
