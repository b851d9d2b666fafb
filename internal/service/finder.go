package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexweberk/ai-jobfinder/internal/cache"
	"github.com/alexweberk/ai-jobfinder/internal/metrics"
	"github.com/alexweberk/ai-jobfinder/internal/models"
	"github.com/alexweberk/ai-jobfinder/internal/scrape"
)

// Pipeline errors.
var (
	ErrNoApplyLinks      = errors.New("no apply links found on the jobs page")
	ErrNoRecommendations = errors.New("no job recommendations received")
)

// Recommender ranks jobs against a resume.
type Recommender interface {
	Recommend(ctx context.Context, resume string, jobs []models.JobRecord, n int) (*models.JobRecordSet, error)
}

// Finder runs the scrape, extract and recommend stages, caching each one
// under the seed URL.
type Finder struct {
	store       *cache.Store
	scraper     scrape.Scraper
	scheduler   *Scheduler
	recommender Recommender
	metrics     *metrics.Collector
	logger      *slog.Logger
}

// FinderDeps are the collaborators a Finder needs.
type FinderDeps struct {
	Store       *cache.Store
	Scraper     scrape.Scraper
	Extractor   LinkExtractor
	Recommender Recommender
	Metrics     *metrics.Collector
	Logger      *slog.Logger
}

// NewFinder creates a pipeline from deps.
func NewFinder(deps FinderDeps) *Finder {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Finder{
		store:       deps.Store,
		scraper:     deps.Scraper,
		scheduler:   NewScheduler(deps.Extractor, deps.Metrics, logger),
		recommender: deps.Recommender,
		metrics:     deps.Metrics,
		logger:      logger,
	}
}

// Scrape returns the apply links on the page at url.
func (f *Finder) Scrape(ctx context.Context, url string) ([]string, error) {
	start := time.Now()
	result, _, err := cache.Cached(ctx, f.store, cache.KindScrape, url,
		func(ctx context.Context) (*models.ScrapeResult, bool, error) {
			r, err := f.scraper.Scrape(ctx, url)
			if err != nil {
				f.metrics.RecordFailure(metrics.OpScrape, time.Since(start))
				return nil, false, err
			}
			f.metrics.RecordTiming(metrics.OpScrape, time.Since(start))
			return r, true, nil
		})
	if err != nil {
		return nil, fmt.Errorf("scrape jobs page: %w", err)
	}

	links := result.Links()
	if len(links) == 0 {
		return nil, ErrNoApplyLinks
	}
	f.logger.Info("scraped apply links", "url", url, "links", len(links))
	return links, nil
}

// ExtractJobs extracts job records from links. The batch is cached under
// url, so a second run returns the same jobs without any extraction calls.
func (f *Finder) ExtractJobs(ctx context.Context, url string, links []string, opts ProcessOptions) ([]models.JobRecord, error) {
	jobs, _, err := cache.Cached(ctx, f.store, cache.KindJobs, url,
		func(ctx context.Context) ([]models.JobRecord, bool, error) {
			jobs, err := f.scheduler.Process(ctx, links, opts)
			if err != nil {
				return nil, false, err
			}
			return jobs, true, nil
		})
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}
	f.logger.Info("extracted job data", "url", url, "jobs", len(jobs))
	return jobs, nil
}

// Recommend returns the n jobs that best fit resume.
func (f *Finder) Recommend(ctx context.Context, url, resume string, jobs []models.JobRecord, n int) (*models.JobRecordSet, error) {
	set, _, err := cache.Cached(ctx, f.store, cache.KindRecommendations, url,
		func(ctx context.Context) (*models.JobRecordSet, bool, error) {
			set, err := f.recommender.Recommend(ctx, resume, jobs, n)
			if err != nil {
				return nil, false, err
			}
			return set, set.Len() > 0, nil
		})
	if err != nil {
		return nil, fmt.Errorf("get recommendations: %w", err)
	}
	if set.Len() == 0 {
		return nil, ErrNoRecommendations
	}
	f.logger.Info("received job recommendations", "url", url, "recommendations", set.Len())
	return set, nil
}
