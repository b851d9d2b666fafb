package firecrawl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("fc-test", WithBaseURL(srv.URL), WithPollInterval(time.Millisecond))
}

func TestScrape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/scrape", r.URL.Path)
		assert.Equal(t, "Bearer fc-test", r.Header.Get("Authorization"))

		var req ScrapeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://example.com/jobs", req.URL)
		assert.Equal(t, []string{"json"}, req.Formats)
		assert.NotNil(t, req.JSONOptions)

		_, _ = w.Write([]byte(`{"success":true,"data":{"metadata":{"title":"Jobs"},"json":{"apply_links":["a"]}}}`))
	})

	data, err := c.Scrape(context.Background(), ScrapeRequest{
		URL:         "https://example.com/jobs",
		Formats:     []string{"json"},
		JSONOptions: &JSONOptions{Schema: map[string]any{"type": "object"}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"metadata":{"title":"Jobs"},"json":{"apply_links":["a"]}}`, string(data))
}

func TestScrapeUnsuccessful(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"blocked"}`))
	})

	_, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestExtractPollsUntilCompleted(t *testing.T) {
	var polls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/extract":
			var req ExtractRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, []string{"https://example.com/job/1"}, req.URLs)
			_, _ = w.Write([]byte(`{"success":true,"id":"job-1"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/extract/job-1":
			if polls.Add(1) < 3 {
				_, _ = w.Write([]byte(`{"success":true,"status":"processing"}`))
				return
			}
			_, _ = w.Write([]byte(`{"success":true,"status":"completed","data":{"job_title":"Engineer"}}`))
		default:
			http.NotFound(w, r)
		}
	})

	resp, err := c.Extract(context.Background(), ExtractRequest{URLs: []string{"https://example.com/job/1"}})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, StatusCompleted, resp.Status)
	assert.Equal(t, "job-1", resp.ID)
	assert.JSONEq(t, `{"job_title":"Engineer"}`, string(resp.Data))
	assert.Equal(t, int32(3), polls.Load())
}

func TestExtractFailedJob(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"success":true,"id":"job-2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"status":"failed","error":"page unreachable"}`))
	})

	resp, err := c.Extract(context.Background(), ExtractRequest{URLs: []string{"x"}})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "page unreachable", resp.Error)
}

func TestExtractRejectedAtStart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"invalid url"}`))
	})

	resp, err := c.Extract(context.Background(), ExtractRequest{URLs: []string{"x"}})
	require.NoError(t, err)
	assert.False(t, resp.Success)
}

func TestExtractHonorsContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"success":true,"id":"slow"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"status":"processing"}`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.Extract(ctx, ExtractRequest{URLs: []string{"x"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		fatal  bool
		msg    string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"Unauthorized: Invalid token"}`, true, "Invalid token"},
		{"payment required", http.StatusPaymentRequired, `{"error":"Insufficient credits"}`, true, "Insufficient credits"},
		{"rate limited", http.StatusTooManyRequests, `{"error":"Rate limit exceeded"}`, false, "Rate limit"},
		{"server error plain body", http.StatusInternalServerError, `boom`, false, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Extract(context.Background(), ExtractRequest{URLs: []string{"x"}})
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Contains(t, apiErr.Message, tt.msg)
			assert.Equal(t, tt.fatal, errors.Is(err, ErrFatalAPI))
		})
	}
}
