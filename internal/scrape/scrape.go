// Package scrape collects the apply links listed on a job-board page.
package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alexweberk/ai-jobfinder/internal/firecrawl"
	"github.com/alexweberk/ai-jobfinder/internal/models"
)

// ErrNoJSON is returned when the scraping API answers without structured
// output.
var ErrNoJSON = errors.New("scrape returned no json payload")

// Scraper fetches one listings page.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*models.ScrapeResult, error)
}

// ScrapeAPI is the subset of the Firecrawl client used for scraping.
type ScrapeAPI interface {
	Scrape(ctx context.Context, req firecrawl.ScrapeRequest) (json.RawMessage, error)
}

// FirecrawlScraper asks Firecrawl to pull apply links out of a page.
type FirecrawlScraper struct {
	api ScrapeAPI
}

// NewFirecrawl creates a scraper backed by api.
func NewFirecrawl(api ScrapeAPI) *FirecrawlScraper {
	return &FirecrawlScraper{api: api}
}

// Scrape implements Scraper.
func (s *FirecrawlScraper) Scrape(ctx context.Context, url string) (*models.ScrapeResult, error) {
	data, err := s.api.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:     url,
		Formats: []string{"json"},
		JSONOptions: &firecrawl.JSONOptions{
			Schema: models.ApplyLinksSchema,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", url, err)
	}

	var result models.ScrapeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode scrape result: %w", err)
	}
	if result.JSON == nil {
		return nil, ErrNoJSON
	}
	return &result, nil
}
