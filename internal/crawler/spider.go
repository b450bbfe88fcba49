package crawler

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/nao1215/sitemapgen/internal/model"
)

// PageFetcher retrieves the content of one page.
// *Fetcher is the production implementation.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL model.CanonicalURL) FetchResult
}

// Spider discovers every page reachable from a start URL without leaving
// the start URL's scope.
//
// A Spider holds configuration only. All crawl state (frontier and visited
// set) belongs to a single Crawl call, so one Spider can crawl several sites,
// including concurrently.
type Spider struct {
	// fetcher retrieves page content.
	fetcher PageFetcher

	// concurrency is the maximum number of fetches in flight.
	// 1 means strictly sequential crawling.
	concurrency int

	// maxPages caps the number of visited URLs. 0 means unbounded.
	maxPages int

	logger *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithConcurrency sets how many fetches may be in flight at once.
// Values below 1 are ignored.
func WithConcurrency(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithMaxPages caps the number of URLs a crawl visits.
// When the cap is hit the crawl stops and the result is marked truncated.
// 0 disables the cap.
func WithMaxPages(n int) SpiderOption {
	return func(s *Spider) {
		if n >= 0 {
			s.maxPages = n
		}
	}
}

// WithLogger sets the logger for crawl progress.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider that fetches pages with fetcher.
func NewSpider(fetcher PageFetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:     fetcher,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// pageOutcome is what a fetch worker hands back to the crawl loop.
type pageOutcome struct {
	fetch FetchResult
	links []model.CanonicalURL
}

// Crawl visits every in-scope page reachable from startURL and returns the
// visited set.
//
// The crawl loop is the only owner of the frontier and the visited set.
// Fetch workers never touch either: they send their outcome back over a
// channel, and the loop marks a URL visited before handing it to a worker.
// This keeps the at-most-once-fetch guarantee with any concurrency.
//
// Termination requires the in-scope link graph to be finite, unless a page
// ceiling is configured with WithMaxPages.
//
// If ctx is cancelled the crawl stops dispatching, waits for in-flight fetches
// and returns the partial result together with ctx.Err().
func (s *Spider) Crawl(ctx context.Context, startURL string) (*model.CrawlResult, error) {
	root, err := model.ParseStartURL(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL %q: %w", startURL, err)
	}

	result := &model.CrawlResult{
		StartURL:  root,
		Failures:  make([]model.FetchFailure, 0),
		StartedAt: time.Now(),
	}

	pending := newFrontier()
	pending.Push(root)
	visited := newVisitedSet()

	outcomes := make(chan pageOutcome)
	inFlight := 0
	var crawlErr error

	s.logger.Info("crawl started", "start_url", root.String(), "concurrency", s.concurrency, "max_pages", s.maxPages)

	for {
		if crawlErr == nil {
			crawlErr = ctx.Err()
		}

		for crawlErr == nil && inFlight < s.concurrency {
			if s.maxPages > 0 && visited.Len() >= s.maxPages {
				if pending.Len() > 0 {
					result.Truncated = true
				}
				break
			}

			next, ok := pending.Pop()
			if !ok {
				break
			}
			if !visited.MarkIfNotVisited(next) {
				continue
			}

			inFlight++
			go func(pageURL model.CanonicalURL) {
				outcomes <- s.visit(ctx, pageURL, root)
			}(next)
		}

		if inFlight == 0 {
			break
		}

		outcome := <-outcomes
		inFlight--

		if !outcome.fetch.OK() {
			result.Failures = append(result.Failures, model.FetchFailure{
				URL:   outcome.fetch.URL,
				Error: outcome.fetch.Err.Error(),
			})
			continue
		}

		for _, link := range outcome.links {
			if visited.Has(link) || pending.Contains(link) {
				continue
			}
			pending.Push(link)
		}
	}

	result.Visited = visited.Sorted()
	slices.SortFunc(result.Failures, func(a, b model.FetchFailure) int {
		return cmp.Compare(a.URL, b.URL)
	})
	result.FinishedAt = time.Now()

	s.logger.Info("crawl finished",
		"start_url", root.String(),
		"visited", len(result.Visited),
		"failed", len(result.Failures),
		"truncated", result.Truncated,
		"elapsed", result.Duration(),
	)

	return result, crawlErr
}

// visit fetches one page and extracts its in-scope links.
func (s *Spider) visit(ctx context.Context, pageURL, root model.CanonicalURL) pageOutcome {
	s.logger.Debug("fetching page", "url", pageURL.String())

	fetched := s.fetcher.Fetch(ctx, pageURL)
	if !fetched.OK() {
		return pageOutcome{fetch: fetched}
	}

	links, err := ExtractLinks(bytes.NewReader(fetched.Body), pageURL, root)
	if err != nil {
		s.logger.Debug("failed to parse page", "url", pageURL.String(), "error", err)
	}

	s.logger.Debug("page processed", "url", pageURL.String(), "links", len(links))
	return pageOutcome{fetch: fetched, links: links}
}
