// Package service wires the scraping, extraction and recommendation stages
// into the job-finder pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexweberk/ai-jobfinder/internal/extract"
	"github.com/alexweberk/ai-jobfinder/internal/firecrawl"
	"github.com/alexweberk/ai-jobfinder/internal/metrics"
	"github.com/alexweberk/ai-jobfinder/internal/models"
	"github.com/alexweberk/ai-jobfinder/internal/ratelimit"
	"golang.org/x/sync/errgroup"
)

// Scheduler defaults.
const (
	DefaultMaxJobs       = 10
	DefaultRateLimit     = 10
	DefaultWindow        = 60 * time.Second
	DefaultMaxConcurrent = 5
)

// ErrNoJobs is returned when no link produced a job record.
var ErrNoJobs = errors.New("no job data extracted")

var errNilJob = errors.New("extractor returned no job")

// LinkExtractor extracts one job record from an apply link.
type LinkExtractor interface {
	Extract(ctx context.Context, link string) (*models.JobRecord, error)
}

// Progress reports one finished link.
type Progress struct {
	Done      int
	Total     int
	Succeeded int
	Link      string
	Job       *models.JobRecord // nil when extraction failed
	Err       error
}

// ProcessOptions configures a scheduler run.
type ProcessOptions struct {
	// MaxJobs caps how many links are processed; the first MaxJobs are kept.
	MaxJobs int
	// RateLimit is the number of extractions allowed per Window.
	RateLimit int
	Window    time.Duration
	// MaxConcurrent bounds extractions in flight at once.
	MaxConcurrent int
	// RateBuffer overrides ratelimit.DefaultBuffer when positive.
	RateBuffer time.Duration
	// OnProgress, if set, is called from the collecting goroutine after
	// every link finishes.
	OnProgress func(Progress)
}

func (o ProcessOptions) withDefaults() ProcessOptions {
	if o.MaxJobs <= 0 {
		o.MaxJobs = DefaultMaxJobs
	}
	if o.RateLimit <= 0 {
		o.RateLimit = DefaultRateLimit
	}
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = DefaultMaxConcurrent
	}
	return o
}

// Scheduler fans extraction out over many links under a shared rate gate.
type Scheduler struct {
	extractor LinkExtractor
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewScheduler creates a scheduler. mc may be nil.
func NewScheduler(extractor LinkExtractor, mc *metrics.Collector, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		extractor: extractor,
		metrics:   mc,
		logger:    logger,
	}
}

type outcome struct {
	link string
	job  *models.JobRecord
	err  error
}

// Process extracts job records from links. Results come back in completion
// order; failed links are logged and dropped, never retried. It returns
// ErrNoJobs if nothing succeeded and the context error if ctx ended early.
func (s *Scheduler) Process(ctx context.Context, links []string, opts ProcessOptions) ([]models.JobRecord, error) {
	opts = opts.withDefaults()

	selected := links
	if len(selected) > opts.MaxJobs {
		selected = selected[:opts.MaxJobs]
	}
	total := len(selected)
	if total == 0 {
		return nil, ErrNoJobs
	}

	gateOpts := []ratelimit.Option{ratelimit.WithLogger(s.logger)}
	if opts.RateBuffer > 0 {
		gateOpts = append(gateOpts, ratelimit.WithBuffer(opts.RateBuffer))
	}
	gate := ratelimit.NewGate(opts.RateLimit, opts.Window, gateOpts...)

	s.logger.Info("processing job links",
		"links", total,
		"skipped", len(links)-total,
		"rate_limit", opts.RateLimit,
		"window", opts.Window.String(),
		"max_concurrent", opts.MaxConcurrent)

	outcomes := make(chan outcome, total)

	var g errgroup.Group
	g.SetLimit(opts.MaxConcurrent)
	go func() {
		for _, link := range selected {
			g.Go(func() error {
				job, err := s.extractOne(ctx, gate, link)
				outcomes <- outcome{link: link, job: job, err: err}
				return nil
			})
		}
		_ = g.Wait()
		close(outcomes)
	}()

	jobs := make([]models.JobRecord, 0, total)
	done := 0
	for o := range outcomes {
		done++
		if o.err != nil {
			s.logFailure(o.link, o.err)
		} else {
			jobs = append(jobs, *o.job)
			s.logger.Info("processed link", "link", o.link, "progress", fmt.Sprintf("%d/%d", done, total))
		}
		if opts.OnProgress != nil {
			opts.OnProgress(Progress{
				Done:      done,
				Total:     total,
				Succeeded: len(jobs),
				Link:      o.link,
				Job:       o.job,
				Err:       o.err,
			})
		}
	}

	if err := ctx.Err(); err != nil {
		return jobs, err
	}
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}

	s.logger.Info("job link processing complete", "succeeded", len(jobs), "failed", total-len(jobs))
	return jobs, nil
}

// extractOne waits for the rate gate, then runs one extraction. An
// extraction counts against the rate window once the API returned data,
// even if that data then fails validation.
func (s *Scheduler) extractOne(ctx context.Context, gate *ratelimit.Gate, link string) (*models.JobRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	waitStart := time.Now()
	res, err := gate.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTiming(metrics.OpRateWait, time.Since(waitStart))

	start := time.Now()
	job, err := s.extractor.Extract(ctx, link)
	if err == nil && job == nil {
		err = errNilJob
	}
	if err != nil {
		if errors.Is(err, extract.ErrInvalidPayload) {
			res.Record()
		} else {
			res.Cancel()
		}
		s.metrics.RecordFailure(metrics.OpExtract, time.Since(start))
		return nil, err
	}

	res.Record()
	s.metrics.RecordTiming(metrics.OpExtract, time.Since(start))
	return job, nil
}

func (s *Scheduler) logFailure(link string, err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.logger.Debug("extraction skipped", "link", link, "error", err)
	case errors.Is(err, firecrawl.ErrFatalAPI):
		s.logger.Error("failed to extract data", "link", link, "error", err)
	default:
		s.logger.Warn("failed to extract data", "link", link, "error", err)
	}
}
