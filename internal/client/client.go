// Package client is the HTTP client for the session API. The recorder and the
// line tracker flush through it; the replay engine loads sessions through it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"edlog/internal/event"
)

// DefaultTimeout bounds one API call. Flushes are background telemetry; a hung
// request must not pile up behind the next one.
const DefaultTimeout = 10 * time.Second

// Client talks to one session API server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the API at baseURL (no trailing slash).
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// Start opens a new session and returns its id and start time.
func (c *Client) Start(ctx context.Context, language, initialCode string) (string, int64, error) {
	var resp struct {
		SessionID string `json:"sessionId"`
		StartTime int64  `json:"startTime"`
	}
	err := c.postJSON(ctx, "/session/start", map[string]string{
		"language":    language,
		"initialCode": initialCode,
	}, &resp)
	if err != nil {
		return "", 0, fmt.Errorf("start session: %w", err)
	}
	return resp.SessionID, resp.StartTime, nil
}

// Append posts an event batch. Implements the recorder's flush target; the
// recorder decides what a failure means.
func (c *Client) Append(ctx context.Context, sessionID string, events []event.Event) error {
	err := c.postJSON(ctx, "/session/event", map[string]any{
		"sessionId": sessionID,
		"events":    events,
	}, nil)
	if err != nil {
		return fmt.Errorf("append events: %w", err)
	}
	return nil
}

// Stop ends a session and returns the server-assigned end time.
func (c *Client) Stop(ctx context.Context, sessionID string) (int64, error) {
	var resp struct {
		EndTime int64 `json:"endTime"`
	}
	err := c.postJSON(ctx, "/session/stop", map[string]string{"sessionId": sessionID}, &resp)
	if err != nil {
		return 0, fmt.Errorf("stop session: %w", err)
	}
	return resp.EndTime, nil
}

// GetSession fetches the session document with its event log. The server
// serves a per-line history summary rather than full version lists, so
// LineHistory stays empty here; replay rebuilds state from the events.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*event.Session, error) {
	var sess event.Session
	if err := c.getJSON(ctx, "/session/"+sessionID, &sess); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

// ListSessions fetches session summaries by recency. A limit of zero or less
// uses the server default.
func (c *Client) ListSessions(ctx context.Context, limit int) ([]event.Summary, error) {
	path := "/sessions"
	if limit > 0 {
		path = fmt.Sprintf("/sessions?limit=%d", limit)
	}
	var resp struct {
		Sessions []event.Summary `json:"sessions"`
	}
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return resp.Sessions, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
