package model

import (
	"slices"
	"time"
)

// SiteJob is the immutable input to one crawl run: where to start and where
// to write the resulting sitemap.
type SiteJob struct {
	// StartURL is the crawl root. It also defines the crawl scope.
	StartURL string `json:"start_url" yaml:"url"`

	// Output is the file path the sitemap document is written to.
	Output string `json:"output" yaml:"output"`

	// MaxPages overrides the global page ceiling for this site.
	// Zero means "use the global setting".
	MaxPages int `json:"max_pages,omitempty" yaml:"maxPages,omitempty"`

	// Concurrency overrides the global number of in-flight fetches for this site.
	// Zero means "use the global setting".
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
}

// FetchFailure records a page whose fetch yielded no content.
type FetchFailure struct {
	URL   CanonicalURL `json:"url"`
	Error string       `json:"error"`
}

// CrawlResult is the outcome of crawling one site.
type CrawlResult struct {
	// StartURL is the canonical crawl root.
	StartURL CanonicalURL `json:"start_url"`

	// Visited contains every URL whose fetch was attempted, sorted.
	// Failed fetches are included.
	Visited []CanonicalURL `json:"visited"`

	// Failures lists the visited URLs whose fetch yielded no content.
	Failures []FetchFailure `json:"failures,omitempty"`

	// Truncated is true when the crawl stopped at the page ceiling
	// with URLs still waiting in the frontier.
	Truncated bool `json:"truncated"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns how long the crawl took.
func (r *CrawlResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Contains reports whether u was visited.
func (r *CrawlResult) Contains(u CanonicalURL) bool {
	_, found := slices.BinarySearch(r.Visited, u)
	return found
}
