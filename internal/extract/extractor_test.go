package extract

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alexweberk/ai-jobfinder/internal/firecrawl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAPI struct {
	resp *firecrawl.ExtractResponse
	err  error
	got  firecrawl.ExtractRequest
}

func (s *stubAPI) Extract(_ context.Context, req firecrawl.ExtractRequest) (*firecrawl.ExtractResponse, error) {
	s.got = req
	return s.resp, s.err
}

const validJob = `{"job_title":"Engineer","sub_division_of_organization":"API","key_skills":["Go"],
	"compensation":"","location":"Remote","apply_link":"https://jobs.example.com/1"}`

func TestExtract(t *testing.T) {
	transportErr := errors.New("connection reset")

	tests := []struct {
		name      string
		resp      *firecrawl.ExtractResponse
		err       error
		wantTitle string
		wantErr   error
	}{
		{
			name:      "success",
			resp:      &firecrawl.ExtractResponse{Success: true, Status: "completed", Data: json.RawMessage(validJob)},
			wantTitle: "Engineer",
		},
		{
			name:    "api reports failure",
			resp:    &firecrawl.ExtractResponse{Success: false, Error: "blocked"},
			wantErr: ErrUnsuccessful,
		},
		{
			name:    "success without payload",
			resp:    &firecrawl.ExtractResponse{Success: true},
			wantErr: ErrNoData,
		},
		{
			name:    "success with null payload",
			resp:    &firecrawl.ExtractResponse{Success: true, Data: json.RawMessage(`null`)},
			wantErr: ErrNoData,
		},
		{
			name:    "success with empty object",
			resp:    &firecrawl.ExtractResponse{Success: true, Data: json.RawMessage(`{}`)},
			wantErr: ErrNoData,
		},
		{
			name:    "payload fails schema",
			resp:    &firecrawl.ExtractResponse{Success: true, Data: json.RawMessage(`{"job_title":"Engineer"}`)},
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "transport error",
			err:     transportErr,
			wantErr: transportErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &stubAPI{resp: tt.resp, err: tt.err}
			job, err := New(api).Extract(context.Background(), "https://jobs.example.com/1")

			assert.Equal(t, []string{"https://jobs.example.com/1"}, api.got.URLs)
			assert.Equal(t, Prompt, api.got.Prompt)
			assert.NotNil(t, api.got.Schema)

			if tt.wantErr != nil {
				assert.Nil(t, job)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, job.Title)
		})
	}
}
