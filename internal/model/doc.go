// Package model defines the core data structures used throughout sitemapgen.
//
// This package contains the following main types:
//   - CanonicalURL: The unit of identity for crawled pages, with normalization
//     and scope checks
//   - SiteJob: One site to crawl and the file its sitemap goes to
//   - CrawlResult: The visited set and fetch failures of one crawl
//   - SiteRun / RunSummary: A job's progress through the generation pipeline
//
// Models live in their own package so that crawler, pipeline, database and
// report can share them without import cycles.
package model
