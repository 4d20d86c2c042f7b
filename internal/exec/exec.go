// Package exec is the client for the external code execution service. Its
// only job is to enrich a session with CODE_RUN events; an unavailable or
// failing service never affects recording or replay.
package exec

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

// DefaultTimeout bounds one run request. Code execution is slow by nature, so
// this is looser than the session API timeout.
const DefaultTimeout = 30 * time.Second

// Client talks to one execution service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the execution service at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

type runRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// Run executes code and returns the service's result. A non-zero exit or a
// runtime error comes back inside the RunResult, not as a Go error; a Go error
// means the service itself was unreachable or misbehaved.
func (c *Client) Run(ctx context.Context, language, code string) (*event.RunResult, error) {
	buf, err := json.Marshal(runRequest{Language: language, Code: code})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("execution service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result event.RunResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &result, nil
}

// RunEvent executes code and wraps the outcome in a CODE_RUN event stamped
// with the given session-relative timestamp. A service failure is reported as
// the event's error text so the run attempt still lands in the log.
func (c *Client) RunEvent(ctx context.Context, timestampMs int64, language, code string) event.Event {
	ev := event.Event{Timestamp: timestampMs, Type: event.TypeCodeRun}

	result, err := c.Run(ctx, language, code)
	if err != nil {
		ev.Run = &event.RunResult{Error: err.Error()}
		return ev
	}
	ev.Run = result
	return ev
}
