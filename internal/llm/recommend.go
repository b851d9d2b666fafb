package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alexweberk/ai-jobfinder/internal/metrics"
	"github.com/alexweberk/ai-jobfinder/internal/models"
	"github.com/tmc/langchaingo/llms"
)

// Recommendation errors. None of them are retried.
var (
	ErrEmptyResponse   = errors.New("empty response from model")
	ErrInvalidResponse = errors.New("invalid recommendation response")
)

const recommendSystemPrompt = `You are a career advisor. You match a candidate's resume against job listings.
Respond with a single JSON object and nothing else.`

// Recommender ranks job listings against a resume.
type Recommender struct {
	model   *Model
	metrics *metrics.Collector
}

// NewRecommender creates a recommender. mc may be nil.
func NewRecommender(model *Model, mc *metrics.Collector) *Recommender {
	return &Recommender{model: model, metrics: mc}
}

// Recommend asks the model for the n roles in jobs that best fit resume,
// best first. Extra results beyond n are dropped.
func (r *Recommender) Recommend(ctx context.Context, resume string, jobs []models.JobRecord, n int) (*models.JobRecordSet, error) {
	if n < 1 {
		return nil, fmt.Errorf("number of recommendations must be positive, got %d", n)
	}

	prompt, err := buildRecommendPrompt(resume, jobs, n)
	if err != nil {
		return nil, err
	}

	slog.Info("requesting recommendations", "model", r.model.Model(), "jobs", len(jobs), "n", n)

	gen, err := r.model.GenerateWithSystem(ctx, recommendSystemPrompt, prompt, llms.WithJSONMode())
	if err != nil {
		return nil, err
	}
	r.metrics.RecordLLMUsage(metrics.OpRecommend, gen.Duration, gen.InputTokens, gen.OutputTokens)

	content := stripCodeFence(gen.Content)
	if content == "" {
		return nil, ErrEmptyResponse
	}

	set, err := models.ParseJobRecordSet([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	if len(set.Jobs) > n {
		slog.Debug("truncating recommendations", "got", len(set.Jobs), "n", n)
		set.Jobs = set.Jobs[:n]
	}
	return set, nil
}

func buildRecommendPrompt(resume string, jobs []models.JobRecord, n int) (string, error) {
	if jobs == nil {
		jobs = []models.JobRecord{}
	}
	listings, err := indentJSON(jobs)
	if err != nil {
		return "", fmt.Errorf("encode job listings: %w", err)
	}
	schema, err := indentJSON(models.JobRecordSetSchema(n))
	if err != nil {
		return "", fmt.Errorf("encode schema: %w", err)
	}

	return fmt.Sprintf(`<instructions>
Analyze the resume and job listings, and return the top %[1]d roles that best fit the candidate's experience and skills, best fit first.
Return a JSON object with a "jobs" array of %[1]d objects copied from the job listings. Do not invent jobs or fields.
The output must match this JSON schema:
%[2]s
</instructions>

<resume>
%[3]s
</resume>

<job_listings>
%[4]s
</job_listings>`, n, schema, strings.TrimSpace(resume), listings), nil
}

func indentJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
