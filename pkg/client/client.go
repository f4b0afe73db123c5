// Package client is a small SDK for the ghbridge HTTP side API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to a running ghbridge-mcp HTTP listener.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a new ghbridge client.
// endpoint defaults to "http://127.0.0.1:8091" if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8091"
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 40 * time.Second,
		},
	}
}

// Endpoint returns the base URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// getJSON issues a GET and decodes the body into out. okStatus lists the
// codes whose body carries a valid payload.
func (c *Client) getJSON(ctx context.Context, path string, out any, okStatus ...int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if len(okStatus) == 0 {
		okStatus = []int{http.StatusOK}
	}
	accepted := false
	for _, code := range okStatus {
		if resp.StatusCode == code {
			accepted = true
			break
		}
	}
	if !accepted {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// Ping returns the bridge health. An unreachable canvas host is reported in
// the Status, not as an error.
func (c *Client) Ping(ctx context.Context) (Status, error) {
	var status Status
	err := c.getJSON(ctx, "/v1/health", &status, http.StatusOK, http.StatusServiceUnavailable)
	return status, err
}

// Patterns lists pattern names, optionally filtered by query.
func (c *Client) Patterns(ctx context.Context, query string) ([]string, error) {
	path := "/v1/patterns"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var names []string
	if err := c.getJSON(ctx, path, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// Classify asks which pattern a description maps to.
func (c *Client) Classify(ctx context.Context, description string) (Classification, error) {
	var out Classification
	err := c.getJSON(ctx, "/v1/classify?q="+url.QueryEscape(description), &out)
	return out, err
}

// Journal fetches recent materializations, newest first.
func (c *Client) Journal(ctx context.Context, limit int) ([]Materialization, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Materialization
	if err := c.getJSON(ctx, fmt.Sprintf("/v1/journal?limit=%d", limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PatternStats fetches per-pattern run counts.
func (c *Client) PatternStats(ctx context.Context) ([]PatternStat, error) {
	var out []PatternStat
	if err := c.getJSON(ctx, "/v1/journal/stats", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Canvas fetches the bridge's last view of the canvas.
func (c *Client) Canvas(ctx context.Context) (Canvas, error) {
	var out Canvas
	err := c.getJSON(ctx, "/v1/graph", &out)
	return out, err
}

// ReportOptions selects the window and filters of a CSV report.
type ReportOptions struct {
	From       time.Time
	To         time.Time
	Pattern    string
	FailedOnly bool
}

// Report streams a CSV report. The caller closes the returned reader.
func (c *Client) Report(ctx context.Context, reportType string, opts ReportOptions) (io.ReadCloser, error) {
	q := url.Values{}
	q.Set("type", reportType)
	if !opts.From.IsZero() {
		q.Set("from", opts.From.UTC().Format(time.RFC3339))
	}
	if !opts.To.IsZero() {
		q.Set("to", opts.To.UTC().Format(time.RFC3339))
	}
	if opts.Pattern != "" {
		q.Set("pattern", opts.Pattern)
	}
	if opts.FailedOnly {
		q.Set("failed_only", "true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/v1/reports?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return resp.Body, nil
}
