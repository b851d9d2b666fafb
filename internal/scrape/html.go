package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/alexweberk/ai-jobfinder/internal/models"
)

// DefaultLinkPattern matches hrefs or anchor text that look like postings.
var DefaultLinkPattern = regexp.MustCompile(`(?i)(job|career|position|opening|apply)`)

const (
	defaultUserAgent = "ai-jobfinder/0.1 (+https://github.com/alexweberk/ai-jobfinder)"
	maxBodyBytes     = 10 << 20
)

// HTMLScraper fetches a page directly and collects matching anchor links.
// It works without an API key but sees only server-rendered links.
type HTMLScraper struct {
	httpClient *http.Client
	pattern    *regexp.Regexp
	userAgent  string
}

// HTMLOption configures an HTMLScraper.
type HTMLOption func(*HTMLScraper)

// WithHTTPClient sets the HTTP client used to fetch pages.
func WithHTTPClient(hc *http.Client) HTMLOption {
	return func(s *HTMLScraper) {
		if hc != nil {
			s.httpClient = hc
		}
	}
}

// WithLinkPattern overrides DefaultLinkPattern.
func WithLinkPattern(re *regexp.Regexp) HTMLOption {
	return func(s *HTMLScraper) {
		if re != nil {
			s.pattern = re
		}
	}
}

// NewHTML creates an HTML scraper.
func NewHTML(opts ...HTMLOption) *HTMLScraper {
	s := &HTMLScraper{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		pattern:    DefaultLinkPattern,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type pageMetadata struct {
	Title      string `json:"title,omitempty"`
	SourceURL  string `json:"sourceURL"`
	StatusCode int    `json:"statusCode"`
}

// Scrape implements Scraper.
func (s *HTMLScraper) Scrape(ctx context.Context, pageURL string) (*models.ScrapeResult, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: HTTP %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	meta, err := json.Marshal(pageMetadata{
		Title:      strings.TrimSpace(doc.Find("title").First().Text()),
		SourceURL:  pageURL,
		StatusCode: resp.StatusCode,
	})
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	return &models.ScrapeResult{
		Metadata: meta,
		JSON:     &models.ApplyLinks{ApplyLinks: s.links(doc, base)},
	}, nil
}

// links returns absolute http(s) links whose href or text matches the
// pattern, deduplicated in document order.
func (s *HTMLScraper) links(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]bool)
	links := []string{}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		if !s.pattern.MatchString(href) && !s.pattern.MatchString(a.Text()) {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""

		link := abs.String()
		if seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})

	return links
}
