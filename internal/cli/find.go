package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alexweberk/ai-jobfinder/internal/cache"
	"github.com/alexweberk/ai-jobfinder/internal/config"
	"github.com/alexweberk/ai-jobfinder/internal/extract"
	"github.com/alexweberk/ai-jobfinder/internal/firecrawl"
	"github.com/alexweberk/ai-jobfinder/internal/llm"
	"github.com/alexweberk/ai-jobfinder/internal/metrics"
	"github.com/alexweberk/ai-jobfinder/internal/models"
	"github.com/alexweberk/ai-jobfinder/internal/scrape"
	"github.com/alexweberk/ai-jobfinder/internal/service"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// FindOptions holds the flags of the find command.
type FindOptions struct {
	JobsURL            string
	ResumePath         string
	MaxJobs            int
	NumRecommendations int
	RateLimit          int
	WindowSize         int // seconds
	OutputDir          string
	MaxConcurrent      int
	Scraper            string
	Format             string
}

// defaultFindOptions mirrors the flag defaults.
func defaultFindOptions() FindOptions {
	return FindOptions{
		JobsURL:            "https://www.anthropic.com/jobs",
		ResumePath:         "resume.txt",
		MaxJobs:            service.DefaultMaxJobs,
		NumRecommendations: 5,
		RateLimit:          service.DefaultRateLimit,
		WindowSize:         int(service.DefaultWindow / time.Second),
		OutputDir:          "results",
		MaxConcurrent:      service.DefaultMaxConcurrent,
		Scraper:            config.ScraperFirecrawl,
		Format:             FormatJSON,
	}
}

var findOpts = defaultFindOptions()

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Find the jobs on a listings page that best fit your resume",
	Long: `Scrape a job listings page, extract every posting, and rank them against
your resume.

Examples:
  jobfinder find
  jobfinder find --jobs-url https://example.com/careers --resume-path cv.txt
  jobfinder find -m 50 -l 20 -w 60 -c 8 -n 10
  jobfinder find --scraper html --format yaml`,
	Args: cobra.NoArgs,
	RunE: runFind,
}

func init() {
	addFindFlags(findCmd)
}

// addFindFlags registers the find flags on cmd. The root command shares them
// so that running jobfinder with no subcommand behaves like find.
func addFindFlags(cmd *cobra.Command) {
	d := defaultFindOptions()
	f := cmd.Flags()
	f.StringVarP(&findOpts.JobsURL, "jobs-url", "u", d.JobsURL, "URL of the job listings page")
	f.StringVarP(&findOpts.ResumePath, "resume-path", "r", d.ResumePath, "path to your resume file")
	f.IntVarP(&findOpts.MaxJobs, "max-jobs", "m", d.MaxJobs, "maximum number of jobs to process (1-10000)")
	f.IntVarP(&findOpts.NumRecommendations, "num-recommendations", "n", d.NumRecommendations, "number of job recommendations (1-20)")
	f.IntVarP(&findOpts.RateLimit, "rate-limit", "l", d.RateLimit, "maximum extraction requests per window (1-60)")
	f.IntVarP(&findOpts.WindowSize, "window-size", "w", d.WindowSize, "rate limit window in seconds (1-3600)")
	f.StringVarP(&findOpts.OutputDir, "output-dir", "o", d.OutputDir, "directory for cached results")
	f.IntVarP(&findOpts.MaxConcurrent, "max-concurrent", "c", d.MaxConcurrent, "maximum concurrent extractions (1-50)")
	f.StringVar(&findOpts.Scraper, "scraper", d.Scraper, "listings scraper: firecrawl or html")
	f.StringVar(&findOpts.Format, "format", d.Format, "output format: json or yaml")
}

type intRange struct {
	flag     string
	val      int
	min, max int
}

// Validate checks flag ranges and formats. It does not touch the filesystem.
func (o FindOptions) Validate() error {
	var errs []error

	u, err := url.Parse(o.JobsURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("--jobs-url must be an absolute http(s) URL, got %q", o.JobsURL))
	}

	for _, r := range []intRange{
		{"--max-jobs", o.MaxJobs, 1, 10000},
		{"--num-recommendations", o.NumRecommendations, 1, 20},
		{"--rate-limit", o.RateLimit, 1, 60},
		{"--window-size", o.WindowSize, 1, 3600},
		{"--max-concurrent", o.MaxConcurrent, 1, 50},
	} {
		if r.val < r.min || r.val > r.max {
			errs = append(errs, fmt.Errorf("%s must be between %d and %d, got %d", r.flag, r.min, r.max, r.val))
		}
	}

	if strings.TrimSpace(o.OutputDir) == "" {
		errs = append(errs, errors.New("--output-dir must not be empty"))
	}
	switch o.Scraper {
	case config.ScraperFirecrawl, config.ScraperHTML:
	default:
		errs = append(errs, fmt.Errorf("--scraper must be %q or %q, got %q", config.ScraperFirecrawl, config.ScraperHTML, o.Scraper))
	}
	switch o.Format {
	case FormatJSON, FormatYAML:
	default:
		errs = append(errs, fmt.Errorf("--format must be %q or %q, got %q", FormatJSON, FormatYAML, o.Format))
	}

	return errors.Join(errs...)
}

// processOptions converts the flags into scheduler options.
func (o FindOptions) processOptions() service.ProcessOptions {
	return service.ProcessOptions{
		MaxJobs:       o.MaxJobs,
		RateLimit:     o.RateLimit,
		Window:        time.Duration(o.WindowSize) * time.Second,
		MaxConcurrent: o.MaxConcurrent,
	}
}

// readResume loads the resume. The file must exist, be a regular file, be
// readable and not be blank.
func readResume(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("resume: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("resume: %s is not a file", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("resume: %w", err)
	}
	resume := string(data)
	if strings.TrimSpace(resume) == "" {
		return "", fmt.Errorf("resume: %s is empty", path)
	}
	return resume, nil
}

func runFind(cmd *cobra.Command, args []string) error {
	opts := findOpts
	if err := opts.Validate(); err != nil {
		return err
	}
	if err := cfg.Validate(opts.Scraper); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	resume, err := readResume(opts.ResumePath)
	if err != nil {
		return err
	}
	logger.Info("loaded resume", "path", opts.ResumePath)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mc := metrics.NewCollector()
	defer mc.LogSummary(logger)

	finder, err := newFinder(opts, mc)
	if err != nil {
		return err
	}

	links, err := finder.Scrape(ctx, opts.JobsURL)
	if err != nil {
		return err
	}

	total := min(len(links), opts.MaxJobs)
	var jobs []models.JobRecord
	err = runWithProgress(ctx, total, func(ctx context.Context, onProgress func(service.Progress)) error {
		popts := opts.processOptions()
		popts.OnProgress = onProgress
		var err error
		jobs, err = finder.ExtractJobs(ctx, opts.JobsURL, links, popts)
		return err
	})
	if err != nil {
		return fmt.Errorf("extract jobs: %w", err)
	}

	recs, err := finder.Recommend(ctx, opts.JobsURL, resume, jobs, opts.NumRecommendations)
	if err != nil {
		return err
	}

	return writeRecommendations(cmd.OutOrStdout(), recs, opts.Format)
}

// newFinder wires the pipeline from the loaded config.
func newFinder(opts FindOptions, mc *metrics.Collector) (*service.Finder, error) {
	store, err := cache.NewStore(opts.OutputDir)
	if err != nil {
		return nil, err
	}

	fc := firecrawl.New(cfg.FirecrawlAPIKey, firecrawl.WithBaseURL(cfg.FirecrawlAPIURL))

	var scraper scrape.Scraper
	switch opts.Scraper {
	case config.ScraperHTML:
		scraper = scrape.NewHTML()
	default:
		scraper = scrape.NewFirecrawl(fc)
	}

	model, err := llm.NewModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("init model: %w", err)
	}

	return service.NewFinder(service.FinderDeps{
		Store:       store,
		Scraper:     scraper,
		Extractor:   extract.New(fc),
		Recommender: llm.NewRecommender(model, mc),
		Metrics:     mc,
		Logger:      logger,
	}), nil
}

// writeRecommendations prints the recommended jobs in the chosen format.
func writeRecommendations(w io.Writer, recs *models.JobRecordSet, format string) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(recs); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(recs); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}
