package host

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"
)

// DefaultAddr is where the host plugin listens unless configured otherwise.
const DefaultAddr = "127.0.0.1:8080"

// maxResponse bounds a single host reply.
const maxResponse = 16 << 20

// Client speaks the host's JSON protocol over TCP. Every
// request uses its own connection, so a Client is safe for concurrent use.
type Client struct {
	addr    string
	timeout time.Duration
	policy  DialPolicy
	dialer  *net.Dialer
	log     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout bounds dial plus round trip of a single request.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithRetries sets how many times a failed dial is retried.
func WithRetries(n int) ClientOption {
	return func(c *Client) { c.policy.Retries = n }
}

// WithDialPolicy replaces the redial schedule, retry count included.
func WithDialPolicy(p DialPolicy) ClientOption {
	return func(c *Client) { c.policy = p }
}

// WithLogger sets the client logger.
func WithLogger(log *zap.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient creates a host client. addr defaults to DefaultAddr if empty.
func NewClient(addr string, opts ...ClientOption) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	c := &Client{
		addr:    addr,
		timeout: 30 * time.Second,
		policy:  DefaultDialPolicy(),
		dialer:  &net.Dialer{},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Addr returns the host address.
func (c *Client) Addr() string {
	return c.addr
}

type request struct {
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters"`
}

type response struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   string          `json:"error"`
}

var bom = []byte("\xef\xbb\xbf")

// call sends one command and decodes the result into out (if non-nil).
func (c *Client) call(ctx context.Context, command string, params map[string]any, out any) error {
	if params == nil {
		params = map[string]any{}
	}
	payload, err := json.Marshal(request{Type: command, Parameters: params})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", command, err)
	}
	payload = append(payload, '\n')

	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("%s: failed to set deadline: %w", command, err)
	}

	start := time.Now()
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("%s: failed to send: %w", command, err)
	}

	resp, err := readResponse(conn)
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}

	c.log.Debug("host_call",
		zap.String("command", command),
		zap.Bool("success", resp.Success),
		zap.Duration("elapsed", time.Since(start)))

	if !resp.Success {
		detail := resp.Error
		if detail == "" {
			detail = "unknown error"
		}
		return &Error{Command: command, Detail: detail}
	}
	if out == nil || len(resp.Result) == 0 || string(resp.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%s: unexpected result shape: %w", command, err)
	}
	return nil
}

// readResponse decodes one JSON reply. The host may pretty-print it across
// several lines, prefix a BOM, and either close the connection or leave it open.
func readResponse(conn net.Conn) (response, error) {
	r := bufio.NewReader(io.LimitReader(conn, maxResponse))
	if head, err := r.Peek(len(bom)); err == nil && bytes.Equal(head, bom) {
		r.Discard(len(bom))
	}

	var resp response
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		if errors.Is(err, io.EOF) {
			return resp, errors.New("host closed the connection without a response")
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return resp, fmt.Errorf("failed to read response: %w", err)
		}
		return resp, fmt.Errorf("invalid response from host: %w", err)
	}
	return resp, nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	var lastErr error
	for attempt := 0; attempt <= c.policy.Retries; attempt++ {
		if attempt > 0 {
			wait := c.policy.Wait(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
		conn, err := c.dialer.DialContext(dialCtx, "tcp", c.addr)
		cancel()
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Debug("host_dial_failed", zap.String("addr", c.addr), zap.Int("attempt", attempt), zap.Error(err))
	}
	return nil, fmt.Errorf("host not reachable at %s: %w", c.addr, lastErr)
}

// wireNode is the node shape used by get_component_info and get_all_components.
type wireNode struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Name     string         `json:"name"`
	X        float64        `json:"x"`
	Y        float64        `json:"y"`
	Inputs   []Port         `json:"inputs"`
	Outputs  []Port         `json:"outputs"`
	Settings map[string]any `json:"settings"`
}

func (w wireNode) info() NodeInfo {
	return NodeInfo{
		ID:       NodeHandle(w.ID),
		Type:     w.Type,
		Name:     w.Name,
		Position: Position{X: w.X, Y: w.Y},
		Inputs:   w.Inputs,
		Outputs:  w.Outputs,
		Settings: w.Settings,
	}
}

type wireWarning struct {
	Level     string `json:"level"`
	Text      string `json:"text"`
	Source    string `json:"source"`
	Parameter string `json:"parameter"`
	Component struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"component"`
}

func (w wireWarning) diagnostic() Diagnostic {
	return Diagnostic{
		Level:    w.Level,
		Text:     w.Text,
		Source:   w.Source,
		Node:     NodeHandle(w.Component.ID),
		NodeName: w.Component.Name,
		Port:     w.Parameter,
	}
}

func (c *Client) CreateNode(ctx context.Context, typeName string, pos Position, settings map[string]any) (NodeHandle, error) {
	params := map[string]any{"type": typeName, "x": pos.X, "y": pos.Y}
	if len(settings) > 0 {
		params["settings"] = settings
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, "add_component", params, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &Error{Command: "add_component", Detail: "host returned no component id"}
	}
	return NodeHandle(out.ID), nil
}

func (c *Client) Inspect(ctx context.Context, node NodeHandle) (NodeInfo, error) {
	var out wireNode
	if err := c.call(ctx, "get_component_info", map[string]any{"id": string(node)}, &out); err != nil {
		return NodeInfo{}, err
	}
	info := out.info()
	if info.ID == "" {
		info.ID = node
	}
	return info, nil
}

func (c *Client) ListPorts(ctx context.Context, node NodeHandle, dir Direction) ([]Port, error) {
	info, err := c.Inspect(ctx, node)
	if err != nil {
		return nil, err
	}
	if dir == Output {
		return info.Outputs, nil
	}
	return info.Inputs, nil
}

func (c *Client) Connect(ctx context.Context, src, dst PortRef) error {
	return c.call(ctx, "connect_components", map[string]any{
		"sourceId":    string(src.Node),
		"sourceParam": src.Port,
		"targetId":    string(dst.Node),
		"targetParam": dst.Port,
	}, nil)
}

func (c *Client) Diagnostics(ctx context.Context, node NodeHandle) ([]Diagnostic, error) {
	return c.warnings(ctx, map[string]any{"id": string(node)})
}

func (c *Client) AllDiagnostics(ctx context.Context) ([]Diagnostic, error) {
	return c.warnings(ctx, nil)
}

func (c *Client) warnings(ctx context.Context, params map[string]any) ([]Diagnostic, error) {
	var out struct {
		Warnings []wireWarning `json:"warnings"`
	}
	if err := c.call(ctx, "get_component_warnings", params, &out); err != nil {
		return nil, err
	}
	diags := make([]Diagnostic, 0, len(out.Warnings))
	for _, w := range out.Warnings {
		diags = append(diags, w.diagnostic())
	}
	return diags, nil
}

func (c *Client) Nodes(ctx context.Context) ([]NodeInfo, error) {
	var out []wireNode
	if err := c.call(ctx, "get_all_components", nil, &out); err != nil {
		return nil, err
	}
	nodes := make([]NodeInfo, 0, len(out))
	for _, w := range out {
		nodes = append(nodes, w.info())
	}
	return nodes, nil
}

func (c *Client) Connections(ctx context.Context) ([]Connection, error) {
	var out []Connection
	if err := c.call(ctx, "get_connections", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DocumentInfo(ctx context.Context) (DocumentInfo, error) {
	out := DocumentInfo{}
	if err := c.call(ctx, "get_document_info", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, "ping", nil, nil)
}

func (c *Client) Clear(ctx context.Context) error {
	return c.call(ctx, "clear_document", nil, nil)
}

var _ Bridge = (*Client)(nil)
