package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// LLM providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Scraper backends.
const (
	ScraperFirecrawl = "firecrawl"
	ScraperHTML      = "html"
)

// Config holds all configuration values.
type Config struct {
	// Firecrawl
	FirecrawlAPIKey string
	FirecrawlAPIURL string

	// Recommendation model
	LLMProvider     string
	LLMModel        string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	OllamaHost      string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from the environment. Values in a .env file in
// the working directory override the process environment; a missing .env
// is not an error.
func Load() Config {
	if err := godotenv.Overload(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from the process environment only.
func FromEnv() Config {
	return Config{
		FirecrawlAPIKey: os.Getenv("FIRECRAWL_API_KEY"),
		FirecrawlAPIURL: getEnv("FIRECRAWL_API_URL", "https://api.firecrawl.dev"),

		LLMProvider:     strings.ToLower(getEnv("JOBFINDER_LLM_PROVIDER", ProviderOpenAI)),
		LLMModel:        getEnv("JOBFINDER_LLM_MODEL", "gpt-4o"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),

		LogFile:  getEnv("JOBFINDER_LOG_FILE", filepath.Join(os.TempDir(), "jobfinder.log")),
		LogLevel: parseLogLevel(getEnv("JOBFINDER_LOG_LEVEL", "INFO")),
	}
}

// Validate checks that credentials exist for the chosen backends.
func (c Config) Validate(scraper string) error {
	var errs []error

	if c.FirecrawlAPIKey == "" {
		// Extraction always goes through Firecrawl.
		errs = append(errs, errors.New("FIRECRAWL_API_KEY is not set"))
	}
	switch scraper {
	case ScraperFirecrawl, ScraperHTML:
	default:
		errs = append(errs, fmt.Errorf("unsupported scraper: %q", scraper))
	}

	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is not set"))
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is not set"))
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			errs = append(errs, errors.New("OLLAMA_HOST is not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM provider: %q", c.LLMProvider))
	}

	if c.LLMModel == "" {
		errs = append(errs, errors.New("JOBFINDER_LLM_MODEL is empty"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
