// Package apiclient is the CLI's HTTP client for a running briefcast daemon.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"briefcast/internal/queue"
	"briefcast/internal/status"
)

const (
	defaultTimeout = 30 * time.Second

	// Series creation blocks on the daemon's synchronous outline request
	// to the script service, so that call gets a much longer budget.
	createSeriesTimeout = 10 * time.Minute
)

// Client talks to the daemon's JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	slowClient *http.Client
}

// New constructs a client for the daemon bound at addr (host:port).
func New(addr string) *Client {
	addr = strings.TrimSpace(addr)
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{
		baseURL:    strings.TrimRight(addr, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		slowClient: &http.Client{Timeout: createSeriesTimeout},
	}
}

// APIError is a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon api: http %d: %s", e.StatusCode, e.Message)
}

// EnqueueRequest mirrors the POST /api/jobs payload.
type EnqueueRequest struct {
	Kind    string `json:"kind"`
	Topic   string `json:"topic,omitempty"`
	Depth   string `json:"depth,omitempty"`
	Brief   string `json:"brief,omitempty"`
	Trailer bool   `json:"trailer,omitempty"`
	Message string `json:"message,omitempty"`
}

// EnqueueResponse is the accepted-job acknowledgement.
type EnqueueResponse struct {
	JobID  string       `json:"job_id"`
	Status queue.Status `json:"status"`
}

// Enqueue submits a new job.
func (c *Client) Enqueue(ctx context.Context, req EnqueueRequest) (*EnqueueResponse, error) {
	var resp EnqueueResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Job fetches one job view.
func (c *Client) Job(ctx context.Context, id string) (*status.JobView, error) {
	var view status.JobView
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Queue lists queued and running jobs.
func (c *Client) Queue(ctx context.Context) ([]status.JobView, error) {
	var resp struct {
		Jobs []status.JobView `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/queue", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Jobs lists every job.
func (c *Client) Jobs(ctx context.Context) ([]status.JobView, error) {
	var resp struct {
		Jobs []status.JobView `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// ClearQueue removes queued and errored jobs, returning the removed count.
func (c *Client) ClearQueue(ctx context.Context) (int64, error) {
	var resp struct {
		Removed int64 `json:"removed"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/queue/clear", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// CreateSeriesRequest mirrors the POST /api/series payload.
type CreateSeriesRequest struct {
	Prompt   string           `json:"prompt,omitempty"`
	Episodes int              `json:"episodes,omitempty"`
	Title    string           `json:"title,omitempty"`
	Plan     []queue.PlanStep `json:"plan,omitempty"`
}

// CreateSeriesResponse is the accepted-series acknowledgement.
type CreateSeriesResponse struct {
	SeriesID string `json:"series_id"`
	Title    string `json:"title"`
	Episodes int    `json:"episodes"`
}

// CreateSeries creates a series from a prompt or an explicit plan.
func (c *Client) CreateSeries(ctx context.Context, req CreateSeriesRequest) (*CreateSeriesResponse, error) {
	var resp CreateSeriesResponse
	if err := c.doWith(ctx, c.slowClient, http.MethodPost, "/api/series", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Series fetches one series view.
func (c *Client) Series(ctx context.Context, id string) (*status.SeriesView, error) {
	var view status.SeriesView
	if err := c.do(ctx, http.MethodGet, "/api/series/"+url.PathEscape(id), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// ListSeries fetches every series view.
func (c *Client) ListSeries(ctx context.Context) ([]status.SeriesView, error) {
	var resp struct {
		Series []status.SeriesView `json:"series"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/series", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Series, nil
}

// Episode is the catalog entry as served by the API.
type Episode struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	File        string    `json:"file"`
	FileSize    int64     `json:"file_size"`
	Depth       string    `json:"depth,omitempty"`
	IsTrailer   bool      `json:"is_trailer,omitempty"`
	SeriesID    string    `json:"series_id,omitempty"`
	SeriesEp    int       `json:"series_ep,omitempty"`
	Published   time.Time `json:"published"`
}

// Episodes lists the published catalog, newest first.
func (c *Client) Episodes(ctx context.Context) ([]Episode, error) {
	var resp struct {
		Episodes []Episode `json:"episodes"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/episodes", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Episodes, nil
}

// DeleteEpisode removes one published episode.
func (c *Client) DeleteEpisode(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/episodes/"+url.PathEscape(id), nil, nil)
}

// Health is the daemon health payload.
type Health struct {
	Running bool                `json:"running"`
	Queue   queue.HealthSummary `json:"queue"`
	Cap     status.CapUsage     `json:"cap"`
}

// GetHealth fetches daemon health and cap usage.
func (c *Client) GetHealth(ctx context.Context) (*Health, error) {
	var health Health
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, target any) error {
	return c.doWith(ctx, c.httpClient, method, path, body, target)
}

func (c *Client) doWith(ctx context.Context, hc *http.Client, method, path string, body, target any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		message := strings.TrimSpace(string(payload))
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Error != "" {
			message = apiErr.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: message}
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
