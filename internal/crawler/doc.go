// Package crawler discovers the pages of a website.
//
// # Architecture
//
// The package is built around the Spider type, which owns the crawl loop.
// A crawl starts from one URL and follows <a href> links as long as they stay
// within the scope of that start URL (a plain string-prefix match on the
// canonical URL).
//
// # Components
//
//   - Fetcher: issues one GET per page with a random browser User-Agent and
//     reports failures as a FetchResult instead of an error
//   - ExtractLinks: parses a page and returns its canonical, in-scope links
//   - frontier / visitedSet: the crawl state, owned by a single Crawl call
//   - Spider: drives fetch → extract → frontier update until nothing is left
//
// # Failure handling
//
// A page that cannot be fetched still counts as visited. It is logged and
// listed in CrawlResult.Failures, contributes no links, and is not retried
// within the same crawl.
//
// # Usage
//
//	fetcher := crawler.NewFetcher(httpClient)
//	spider := crawler.NewSpider(fetcher, crawler.WithConcurrency(4))
//	result, err := spider.Crawl(ctx, "https://example.org")
package crawler
