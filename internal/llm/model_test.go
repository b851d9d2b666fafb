package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapFatalError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"anthropic low credit", errors.New("Your credit balance is too low to access the Anthropic API"), true},
		{"openai bad key", errors.New("openai: Incorrect API key provided: invalid api key"), true},
		{"openai quota", errors.New("You exceeded your current quota, please check your plan and billing details"), true},
		{"provider rate limit", fmt.Errorf("generate: %w", errors.New("429 Rate limit reached for gpt-4o")), true},
		{"status 401", errors.New("API returned unexpected status code: 401"), true},
		{"ollama not running", errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"), false},
		{"malformed reply", errors.New("invalid character 'H' looking for beginning of value"), false},
		{"deadline", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapFatalError(tt.err)
			assert.ErrorIs(t, got, tt.err, "the provider error stays in the chain")
			if tt.fatal {
				assert.ErrorIs(t, got, ErrFatalAPI)
			} else {
				assert.NotErrorIs(t, got, ErrFatalAPI)
				assert.Same(t, tt.err, got)
			}
		})
	}

	assert.NoError(t, wrapFatalError(nil))
}

func TestTokenUsage(t *testing.T) {
	tests := []struct {
		name    string
		info    map[string]any
		in, out int64
	}{
		{"openai keys", map[string]any{"PromptTokens": 120, "CompletionTokens": 30}, 120, 30},
		{"anthropic keys", map[string]any{"InputTokens": 7, "OutputTokens": 3}, 7, 3},
		{"float values", map[string]any{"prompt_tokens": float64(5), "completion_tokens": float64(2)}, 5, 2},
		{"missing", nil, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, out := tokenUsage(tt.info)
			assert.Equal(t, tt.in, in)
			assert.Equal(t, tt.out, out)
		})
	}
}
