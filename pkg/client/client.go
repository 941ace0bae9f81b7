package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client is a Go SDK for the admin HTTP/WebSocket surface.
type Client struct {
	baseURL string
	opts    *options
	ws      *WebSocketClient
}

// New creates a new Client talking to the admin surface at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Client{baseURL: baseURL, opts: o}, nil
}

// PoolSummary mirrors the JSON shape internal/admin/handlers returns for a
// pool.
type PoolSummary struct {
	ID          string `json:"id"`
	State       string `json:"state"`
	Concurrency int    `json:"concurrency"`
	ActiveTasks int    `json:"active_tasks"`
	PendingJobs int    `json:"pending_jobs"`
}

// TaskInfo mirrors kernel.TaskInfo's JSON shape.
type TaskInfo struct {
	ID       uint64 `json:"ID"`
	Name     string `json:"Name"`
	State    int    `json:"State"`
	Priority int    `json:"Priority"`
	Basic    int    `json:"Basic"`
	Detached bool   `json:"Detached"`
}

// SubmitJobRequest is the body SubmitJob POSTs to the admin surface.
type SubmitJobRequest struct {
	ID       string      `json:"id"`
	Type     string      `json:"type"`
	Priority int         `json:"priority"`
	Payload  interface{} `json:"payload"`
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.opts.applyHeaders(req)

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Message != "" {
			return fmt.Errorf("%s: %s", apiErr.Error, apiErr.Message)
		}
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListPools returns every pool registered with the admin surface.
func (c *Client) ListPools(ctx context.Context) ([]PoolSummary, error) {
	var body struct {
		Pools []PoolSummary `json:"pools"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/pools", nil, &body); err != nil {
		return nil, err
	}
	return body.Pools, nil
}

// GetPool returns one pool's summary.
func (c *Client) GetPool(ctx context.Context, poolID string) (*PoolSummary, error) {
	var summary PoolSummary
	if err := c.do(ctx, http.MethodGet, "/admin/pools/"+poolID, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// PausePool stops poolID from picking up new jobs.
func (c *Client) PausePool(ctx context.Context, poolID string) (*PoolSummary, error) {
	var summary PoolSummary
	if err := c.do(ctx, http.MethodPost, "/admin/pools/"+poolID+"/pause", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ResumePool lets poolID pick up jobs again.
func (c *Client) ResumePool(ctx context.Context, poolID string) (*PoolSummary, error) {
	var summary PoolSummary
	if err := c.do(ctx, http.MethodPost, "/admin/pools/"+poolID+"/resume", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// SubmitJob enqueues a job on poolID.
func (c *Client) SubmitJob(ctx context.Context, poolID string, req SubmitJobRequest) error {
	return c.do(ctx, http.MethodPost, "/admin/pools/"+poolID+"/jobs", req, nil)
}

// ListTasks returns every kernel task snapshot for poolID.
func (c *Client) ListTasks(ctx context.Context, poolID string) ([]TaskInfo, error) {
	var body struct {
		Tasks []TaskInfo `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/pools/"+poolID+"/tasks", nil, &body); err != nil {
		return nil, err
	}
	return body.Tasks, nil
}

// GetTask returns one task's snapshot.
func (c *Client) GetTask(ctx context.Context, poolID string, taskID uint64) (*TaskInfo, error) {
	var info TaskInfo
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/admin/pools/%s/tasks/%d", poolID, taskID), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CheckHealth checks the admin surface's health endpoint.
func (c *Client) CheckHealth(ctx context.Context) (map[string]interface{}, error) {
	var body map[string]interface{}
	if err := c.do(ctx, http.MethodGet, "/admin/health", nil, &body); err != nil {
		return nil, err
	}
	return body, nil
}

// ConnectWebSocket establishes a WebSocket connection for the live
// trace-event stream.
func (c *Client) ConnectWebSocket(ctx context.Context) error {
	if c.ws != nil && c.ws.IsConnected() {
		return nil
	}
	c.ws = newWebSocketClient(c.baseURL, c.opts.apiKey)
	return c.ws.Connect(ctx)
}

// Events returns a channel receiving trace events. ConnectWebSocket must
// be called first.
func (c *Client) Events() <-chan *Event {
	if c.ws == nil {
		ch := make(chan *Event)
		close(ch)
		return ch
	}
	return c.ws.Events()
}

// CloseWebSocket closes the WebSocket connection.
func (c *Client) CloseWebSocket() error {
	if c.ws == nil {
		return nil
	}
	return c.ws.Close()
}
