// Package firecrawl provides a minimal client for the Firecrawl scrape and
// extract endpoints.
package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the hosted Firecrawl API.
	DefaultBaseURL = "https://api.firecrawl.dev"

	// DefaultPollInterval matches the interval the official SDKs use when
	// waiting on extract jobs.
	DefaultPollInterval = 2 * time.Second

	defaultTimeout = 2 * time.Minute
)

// Extract job states reported by the API.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// ErrFatalAPI marks errors that will fail every subsequent call too
// (bad key, exhausted credits).
var ErrFatalAPI = errors.New("fatal firecrawl API error")

// APIError is a non-2xx response from Firecrawl.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("firecrawl: HTTP %d: %s", e.StatusCode, e.Message)
}

// Fatal reports whether retrying with the same credentials is pointless.
func (e *APIError) Fatal() bool {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusForbidden:
		return true
	}
	return false
}

// Is lets errors.Is(err, ErrFatalAPI) match fatal API errors.
func (e *APIError) Is(target error) bool {
	return target == ErrFatalAPI && e.Fatal()
}

// Client talks to the Firecrawl REST API.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a self-hosted or test server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithPollInterval sets how often extract jobs are polled.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// New creates a client authenticated with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// JSONOptions configures structured JSON output for a scrape.
type JSONOptions struct {
	Schema any    `json:"schema,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

// ScrapeRequest is the body of POST /v1/scrape.
type ScrapeRequest struct {
	URL         string       `json:"url"`
	Formats     []string     `json:"formats"`
	JSONOptions *JSONOptions `json:"jsonOptions,omitempty"`
}

type scrapeResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error,omitempty"`
}

// Scrape scrapes a single page and returns the raw "data" object, which
// holds one key per requested format plus "metadata".
func (c *Client) Scrape(ctx context.Context, req ScrapeRequest) (json.RawMessage, error) {
	var resp scrapeResponse
	if err := c.do(ctx, http.MethodPost, "/v1/scrape", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("scrape %s: %s", req.URL, orUnknown(resp.Error))
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, fmt.Errorf("scrape %s: empty data", req.URL)
	}
	return resp.Data, nil
}

// ExtractRequest is the body of POST /v1/extract.
type ExtractRequest struct {
	URLs   []string `json:"urls"`
	Prompt string   `json:"prompt,omitempty"`
	Schema any      `json:"schema,omitempty"`
}

// ExtractResponse is the final state of an extract job.
type ExtractResponse struct {
	Success   bool            `json:"success"`
	ID        string          `json:"id,omitempty"`
	Status    string          `json:"status,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	ExpiresAt string          `json:"expiresAt,omitempty"`
}

// Extract starts an extract job and polls it until it reaches a terminal
// state. A job that fails or is cancelled comes back with Success=false and
// a nil error; transport and HTTP failures are returned as errors.
func (c *Client) Extract(ctx context.Context, req ExtractRequest) (*ExtractResponse, error) {
	var started ExtractResponse
	if err := c.do(ctx, http.MethodPost, "/v1/extract", req, &started); err != nil {
		return nil, err
	}
	if !started.Success || started.ID == "" || started.Status == StatusCompleted {
		return &started, nil
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		var status ExtractResponse
		if err := c.do(ctx, http.MethodGet, "/v1/extract/"+started.ID, nil, &status); err != nil {
			return nil, err
		}
		if status.ID == "" {
			status.ID = started.ID
		}

		switch status.Status {
		case StatusCompleted:
			return &status, nil
		case StatusFailed, StatusCancelled:
			status.Success = false
			return &status, nil
		}
		if !status.Success || (status.Status == "" && len(status.Data) > 0) {
			return &status, nil
		}
		slog.Debug("extract job pending", "id", started.ID, "status", status.Status)
	}
}

// do sends a JSON request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// errorMessage pulls the "error" field out of a Firecrawl error body,
// falling back to the raw body.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return orUnknown(msg)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown error"
	}
	return s
}
