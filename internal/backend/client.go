package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// summaryPath is the status endpoint, keyed by the job's subject id.
const summaryPath = "/api/summary/"

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits to prevent resource exhaustion when many keys
// are polled against the same backend
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// Summary is the wire representation of a job's status as returned by the
// summary-generation backend.
//
// The field names and casing follow the backend's JSON contract (note the
// camelCase meetingName next to snake_case meeting_id).
type Summary struct {
	// Status is the job lifecycle state: queued, processing, completed,
	// error, failed, or idle.
	Status string `json:"status"`

	// MeetingID echoes the key the status was requested for.
	MeetingID string `json:"meeting_id"`

	// MeetingName is the display title of the subject, when known.
	MeetingName *string `json:"meetingName"`

	// Start and End are RFC 3339 timestamps of the processing window,
	// present once the job has started.
	Start *string `json:"start"`
	End   *string `json:"end"`

	// Data is the generated artifact, present only for completed jobs.
	Data json.RawMessage `json:"data"`

	// Error is the backend's failure message for error/failed jobs.
	Error *string `json:"error"`
}

// Client fetches job summaries over HTTP.
//
// Client applies per-request timeouts via context rather than a global
// client timeout, so the caller's polling layer controls how long a single
// fetch may take. Response bodies are limited to 1MB.
type Client struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
}

// NewClient creates a backend [Client] for the given base URL.
//
// headers, if non-nil, are sent with every request (e.g. authentication).
// The underlying transport is configured with connection pooling limits so
// polling many keys does not exhaust sockets.
//
// Returns an error if baseURL is not an absolute http(s) URL.
func NewClient(baseURL string, headers map[string]string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url scheme must be http or https, got %q", u.Scheme)
	}

	hs := make(map[string]string, len(headers))
	for k, v := range headers {
		hs[k] = v
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: hs,
		httpClient: &http.Client{
			// no default timeout - per-request timeouts come via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}, nil
}

// Summary fetches the current status of the job for key.
//
// A 404 from the backend is reported as an idle [Summary], not an error:
// "no such job" is a valid observation. Only transport failures, other
// non-2xx responses, and undecodable bodies return an error.
func (c *Client) Summary(ctx context.Context, key string) (Summary, error) {
	reqURL := c.baseURL + summaryPath + url.PathEscape(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Summary{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		// backend has no process row for this key
		return Summary{Status: "idle", MeetingID: key}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Summary{}, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	var s Summary
	if err := json.Unmarshal(body, &s); err != nil {
		return Summary{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if s.Status == "" {
		return Summary{}, fmt.Errorf("backend response missing status field")
	}
	return s, nil
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times. After Close, the client remains usable but
// new connections will be established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
