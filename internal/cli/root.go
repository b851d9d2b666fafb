// Package cli provides the command-line interface for jobfinder.
package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alexweberk/ai-jobfinder/internal/config"
	"github.com/alexweberk/ai-jobfinder/internal/firecrawl"
	"github.com/alexweberk/ai-jobfinder/internal/llm"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and run logger
	cfg         config.Config
	logger      = slog.Default()
	stderrLevel = new(slog.LevelVar)
	closeLog    = func() error { return nil }
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "jobfinder",
	Short: "AI-powered job finder that matches your resume with job listings",
	Long: `Jobfinder scrapes a job-board page for apply links, extracts each posting
through Firecrawl under a rate limit, and asks a language model which roles
best fit your resume.

Every stage is cached in the output directory, keyed by the jobs URL.
Delete the cache files (or run 'jobfinder cache clear <url>') to recompute.

Running jobfinder without a subcommand is the same as 'jobfinder find'.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		var base *slog.Logger
		stderrLevel.Set(level)
		base, closeLog = config.SetupLogger(cfg.LogFile, stderrLevel, level)
		logger = base.With("run_id", uuid.New().String()[:8])
		slog.SetDefault(logger)
		return nil
	},
	RunE: runFind,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	defer func() { _ = closeLog() }()

	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		if hint := fatalHint(err); hint != "" {
			logger.Error("jobfinder failed", "error", err, "hint", hint)
		} else {
			logger.Error("jobfinder failed", "error", err)
		}
	}
	return err
}

// fatalHint names the setting to check for errors that retrying will not fix.
func fatalHint(err error) string {
	switch {
	case errors.Is(err, firecrawl.ErrFatalAPI):
		return "check FIRECRAWL_API_KEY and the Firecrawl account's remaining credits"
	case errors.Is(err, llm.ErrFatalAPI):
		return "check the API key, billing and quota of " + cfg.LLMProvider
	default:
		return ""
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	addFindFlags(rootCmd)

	// Add subcommands
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(cacheCmd)
}
