package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rmax-ai/ghbridge/pkg/compat"
	"github.com/rmax-ai/ghbridge/pkg/host"
	"github.com/rmax-ai/ghbridge/pkg/resolve"
	"go.uber.org/zap"
)

// ConnectRequest names two live nodes and, optionally, their ports. Ports
// may be given as name, nickname, alias or index.
type ConnectRequest struct {
	SourceID   string `json:"source_id"`
	SourcePort string `json:"source_port,omitempty"`
	TargetID   string `json:"target_id"`
	TargetPort string `json:"target_port,omitempty"`
}

// ConnectResult reports the ports that were (or would be) wired.
type ConnectResult struct {
	SourceID   string   `json:"source_id"`
	SourcePort string   `json:"source_port"`
	TargetID   string   `json:"target_id"`
	TargetPort string   `json:"target_port"`
	Rule       string   `json:"rule"`
	Trace      []string `json:"trace,omitempty"`
	Connected  bool     `json:"connected"`
}

// ResolveAndConnect resolves both ends of req, checks compatibility and wires
// them on the host. A missing source port means output 0; a missing target
// port means the first input without a wire, or input 0 if all are wired.
func (e *Engine) ResolveAndConnect(ctx context.Context, req ConnectRequest) (ConnectResult, error) {
	res, src, dst, err := e.plan(ctx, req)
	if err != nil {
		return res, err
	}
	if err := e.host.Connect(ctx, src, dst); err != nil {
		return res, err
	}
	res.Connected = true
	e.log.Info("components_connected",
		zap.String("source", req.SourceID+"."+res.SourcePort),
		zap.String("target", req.TargetID+"."+res.TargetPort),
		zap.String("rule", res.Rule))
	return res, nil
}

// ValidateConnection runs the same resolution and compatibility steps as
// ResolveAndConnect without wiring anything.
func (e *Engine) ValidateConnection(ctx context.Context, req ConnectRequest) (ConnectResult, error) {
	res, _, _, err := e.plan(ctx, req)
	return res, err
}

func (e *Engine) plan(ctx context.Context, req ConnectRequest) (ConnectResult, host.PortRef, host.PortRef, error) {
	res := ConnectResult{SourceID: req.SourceID, TargetID: req.TargetID}
	var none host.PortRef
	if strings.TrimSpace(req.SourceID) == "" || strings.TrimSpace(req.TargetID) == "" {
		return res, none, none, fmt.Errorf("%w: source and target ids are required", ErrInvalidArgument)
	}

	srcInfo, err := e.inspect(ctx, req.SourceID)
	if err != nil {
		return res, none, none, err
	}
	dstInfo, err := e.inspect(ctx, req.TargetID)
	if err != nil {
		return res, none, none, err
	}

	srcPort, err := e.pickPort(req.SourcePort, srcInfo, host.Output, nil)
	if err != nil {
		return res, none, none, err
	}

	var wired map[string]bool
	if strings.TrimSpace(req.TargetPort) == "" {
		wired, err = e.wiredInputs(ctx, dstInfo.ID)
		if err != nil {
			return res, none, none, err
		}
	}
	dstPort, err := e.pickPort(req.TargetPort, dstInfo, host.Input, wired)
	if err != nil {
		return res, none, none, err
	}
	res.SourcePort, res.TargetPort = srcPort.Name, dstPort.Name

	owners := compat.Owners{
		Source:       e.names.ResolveComponentName(srcInfo.Type),
		Target:       e.names.ResolveComponentName(dstInfo.Type),
		TargetInputs: portNames(dstInfo.Inputs),
	}
	decision, err := e.compat.Verify(srcPort, dstPort, owners)
	res.Rule, res.Trace = decision.Rule, decision.Trace
	if err != nil {
		return res, none, none, err
	}

	return res,
		host.PortRef{Node: srcInfo.ID, Port: srcPort.Name},
		host.PortRef{Node: dstInfo.ID, Port: dstPort.Name},
		nil
}

// inspect turns a host refusal for an unknown node into a resolution error.
func (e *Engine) inspect(ctx context.Context, id string) (host.NodeInfo, error) {
	info, err := e.host.Inspect(ctx, host.NodeHandle(id))
	var hostErr *host.Error
	if errors.As(err, &hostErr) {
		return host.NodeInfo{}, &resolve.Error{Ref: id, Reason: hostErr.Detail}
	}
	if err != nil {
		return host.NodeInfo{}, err
	}
	if info.ID == "" {
		info.ID = host.NodeHandle(id)
	}
	return info, nil
}

func (e *Engine) pickPort(ref string, info host.NodeInfo, dir host.Direction, wired map[string]bool) (host.Port, error) {
	ports := info.Inputs
	if dir == host.Output {
		ports = info.Outputs
	}
	if len(ports) == 0 {
		return host.Port{}, &resolve.Error{Ref: string(info.ID), Reason: fmt.Sprintf("%s has no %s ports", info.Type, dir)}
	}

	if strings.TrimSpace(ref) == "" {
		for _, p := range ports {
			if !wired[p.Name] {
				return p, nil
			}
		}
		return ports[0], nil
	}

	if p, ok := resolve.MatchPort(e.names.ResolveParameterName(ref), ports); ok {
		return p, nil
	}
	// the raw reference may be a nickname that an alias shadowed
	if p, ok := resolve.MatchPort(ref, ports); ok {
		return p, nil
	}
	return host.Port{}, &resolve.Error{
		Ref:    string(info.ID) + "." + ref,
		Reason: fmt.Sprintf("%s has no %s port matching %q (available: %s)", info.Type, dir, ref, strings.Join(portNames(ports), ", ")),
	}
}

// wiredInputs lists the inputs of target that already carry a wire.
func (e *Engine) wiredInputs(ctx context.Context, target host.NodeHandle) (map[string]bool, error) {
	conns, err := e.host.Connections(ctx)
	if err != nil {
		return nil, err
	}
	wired := make(map[string]bool)
	for _, c := range conns {
		if c.TargetID == target {
			wired[c.TargetParam] = true
		}
	}
	return wired, nil
}

func portNames(ports []host.Port) []string {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}
	return names
}
