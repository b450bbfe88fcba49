package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoSites is returned when neither arguments nor the config file name a site.
	ErrNoSites = errors.New("no site specified: provide a URL or a config file with sites")

	// ErrInvalidSiteURL is returned when a start URL cannot be used.
	ErrInvalidSiteURL = errors.New("invalid site URL")

	// ErrInvalidTimeout is returned for a negative timeout.
	ErrInvalidTimeout = errors.New("invalid timeout: must be non-negative")

	// ErrInvalidConcurrency is returned when per-site concurrency is below 1.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be at least 1")

	// ErrInvalidParallel is returned when site parallelism is below 1.
	ErrInvalidParallel = errors.New("invalid parallel: must be at least 1")

	// ErrInvalidMaxPages is returned for a negative page ceiling.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative (0 means unbounded)")

	// ErrInvalidMaxBodySize is returned for a negative body limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidReportFormat is returned for an unknown report format.
	ErrInvalidReportFormat = errors.New("invalid report format: must be text, markdown or json")
)
