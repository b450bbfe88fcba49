package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"

	"golang.org/x/net/html/charset"

	"github.com/nao1215/sitemapgen/internal/model"
)

// DefaultMaxBodySize limits how much of a response body is read.
const DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

// ErrUnexpectedStatus is wrapped into FetchResult.Err when the server answers
// with a non-2xx status code.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// userAgents is the fixed pool of browser identities a request is sent with.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0.3 Safari/605.1.15",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:88.0) Gecko/20100101 Firefox/88.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 13_2_3 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/13.0.3 Mobile/15E148 Safari/604.1",
}

// UserAgents returns a copy of the User-Agent pool.
func UserAgents() []string {
	pool := make([]string, len(userAgents))
	copy(pool, userAgents)
	return pool
}

// RandomUserAgent picks a User-Agent uniformly at random from the pool.
func RandomUserAgent() string {
	return userAgents[rand.IntN(len(userAgents))] //nolint:gosec // identity pick, not security sensitive
}

// FetchResult is the outcome of one page fetch.
// Either Body holds the page content, or Err explains why there is none.
type FetchResult struct {
	// URL is the page that was requested.
	URL model.CanonicalURL

	// StatusCode is the HTTP status, or 0 if no response was received.
	StatusCode int

	// ContentType is the response Content-Type header.
	ContentType string

	// Body is the page content decoded to UTF-8. Nil when Err is set.
	Body []byte

	// Err is set when the page contributes no content.
	Err error
}

// OK reports whether the fetch produced content.
func (r FetchResult) OK() bool {
	return r.Err == nil
}

// Fetcher retrieves raw page content over HTTP.
// A failed fetch is never returned as an error: it is logged and reported
// through FetchResult.Err so that one bad page cannot abort a crawl.
type Fetcher struct {
	client        *http.Client
	maxBodySize   int64
	logger        *slog.Logger
	pickUserAgent func() string
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithMaxBodySize sets the maximum number of body bytes read per page.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithFetcherLogger sets the logger fetch failures are reported to.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithUserAgentPicker replaces the random User-Agent selection.
func WithUserAgentPicker(pick func() string) FetcherOption {
	return func(f *Fetcher) {
		f.pickUserAgent = pick
	}
}

// NewFetcher creates a Fetcher using the given HTTP client.
// A nil client means http.DefaultClient.
func NewFetcher(client *http.Client, opts ...FetcherOption) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}

	f := &Fetcher{
		client:        client,
		maxBodySize:   DefaultMaxBodySize,
		pickUserAgent: RandomUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Fetch issues a single GET for pageURL. There is no retry.
func (f *Fetcher) Fetch(ctx context.Context, pageURL model.CanonicalURL) FetchResult {
	result := FetchResult{URL: pageURL}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return f.fail(result, "Error fetching", err)
	}
	req.Header.Set("User-Agent", f.pickUserAgent())

	resp, err := f.client.Do(req)
	if err != nil {
		return f.fail(result, "Error fetching", err)
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.ContentType = resp.Header.Get("Content-Type")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return f.fail(result, "Response error fetching", fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status))
	}

	body, err := f.readBody(resp.Body, result.ContentType)
	if err != nil {
		return f.fail(result, "Response error fetching", err)
	}

	result.Body = body
	return result
}

// readBody reads at most maxBodySize bytes and converts them to UTF-8
// according to the declared or sniffed charset.
func (f *Fetcher) readBody(body io.Reader, contentType string) ([]byte, error) {
	limited := io.LimitReader(body, f.maxBodySize)

	decoded, err := charset.NewReader(limited, contentType)
	if err != nil {
		// The charset preview could not be read (an empty body yields
		// io.EOF here). Whatever is left is returned as is.
		return io.ReadAll(limited)
	}
	return io.ReadAll(decoded)
}

func (f *Fetcher) fail(result FetchResult, msg string, err error) FetchResult {
	f.logger.Warn(msg, "url", result.URL.String(), "status", result.StatusCode, "error", err)
	result.Err = err
	return result
}
