// Package extract turns a single apply link into a JobRecord through the
// Firecrawl extract endpoint.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alexweberk/ai-jobfinder/internal/firecrawl"
	"github.com/alexweberk/ai-jobfinder/internal/models"
)

// Prompt is the fixed instruction sent with every extraction.
const Prompt = "Extract details about the job posting. Leave fields blank if uncertain. Do not make things up."

// Failure modes. None of them is fatal to a batch.
var (
	ErrUnsuccessful   = errors.New("extraction unsuccessful")
	ErrNoData         = errors.New("no data extracted")
	ErrInvalidPayload = errors.New("extracted data does not match job schema")
)

// API is the subset of the Firecrawl client the extractor needs.
type API interface {
	Extract(ctx context.Context, req firecrawl.ExtractRequest) (*firecrawl.ExtractResponse, error)
}

// Extractor maps extract responses onto JobRecords.
type Extractor struct {
	api API
}

// New creates an extractor backed by api.
func New(api API) *Extractor {
	return &Extractor{api: api}
}

// Extract returns the job posted at link. On any failure it returns a nil
// record and an error wrapping one of the sentinels above or the transport
// error; it never retries.
func (e *Extractor) Extract(ctx context.Context, link string) (*models.JobRecord, error) {
	resp, err := e.api.Extract(ctx, firecrawl.ExtractRequest{
		URLs:   []string{link},
		Prompt: Prompt,
		Schema: models.JobRecordSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", link, err)
	}
	if resp == nil || !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrUnsuccessful, describe(resp))
	}
	if isEmpty(resp.Data) {
		return nil, ErrNoData
	}

	job, err := models.ParseJobRecord(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return job, nil
}

// isEmpty reports whether the payload is missing, null, or an empty object/array.
func isEmpty(data json.RawMessage) bool {
	if len(data) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}

func describe(resp *firecrawl.ExtractResponse) string {
	if resp == nil {
		return "no response"
	}
	if resp.Error != "" {
		return resp.Error
	}
	if resp.Status != "" {
		return "status " + resp.Status
	}
	return "success=false"
}
