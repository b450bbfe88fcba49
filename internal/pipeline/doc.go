// Package pipeline drives sitemap generation for a list of sites.
//
// Each site is a model.SiteRun passed through a Pipeline of steps:
//
//	crawl → encode → write (→ record, always)
//
// The record step is a final step: it runs even when an earlier step failed
// or the run was cancelled, so the history shows every attempt.
//
// BatchProcessor runs one pipeline per site with errgroup. By default sites
// run one at a time and a fatal error in one site does not stop the others;
// WithFailFast stops the batch at the first fatal error instead.
package pipeline
