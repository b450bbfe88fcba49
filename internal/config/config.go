package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sitemapgen/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitemapgen"

	// DefaultTimeout of 0 leaves request deadlines to the HTTP transport.
	DefaultTimeout = 0 * time.Second

	// DefaultConcurrency of 1 fetches one page at a time per site.
	DefaultConcurrency = 1

	// DefaultParallel of 1 processes sites one after another.
	DefaultParallel = 1

	// DefaultMaxPages of 0 crawls every reachable page.
	DefaultMaxPages = 0

	// DefaultMaxBodySize limits how much of each response is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultOutputFile is used when no host can be derived from the start URL.
	DefaultOutputFile = "sitemap.xml"
)

// Report formats accepted by Config.ReportFormat.
const (
	ReportText     = "text"
	ReportMarkdown = "markdown"
	ReportJSON     = "json"
)

// ReportFormats lists every supported report format.
func ReportFormats() []string {
	return []string{ReportText, ReportMarkdown, ReportJSON}
}

// Config holds all options of one sitemapgen invocation.
// It is filled from CLI flags and the optional config file, then passed down
// explicitly.
type Config struct {
	// Sites is the list of sites to crawl, in the order they are processed.
	Sites []model.SiteJob

	// Timeout is the per-request timeout. 0 means no client-side timeout.
	Timeout time.Duration

	// MaxPages caps the pages visited per site when the site sets none.
	// 0 means unbounded.
	MaxPages int

	// Concurrency is the number of fetches in flight per site when the site
	// sets none.
	Concurrency int

	// Parallel is the number of sites crawled at the same time.
	Parallel int

	// MaxBodySize is the maximum number of bytes read from one response.
	MaxBodySize int64

	// SOCKS5Proxy is an optional "host:port" proxy all requests go through.
	SOCKS5Proxy string

	// FailFast stops the remaining sites after the first fatal site error.
	FailFast bool

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is an explicit config file path. Empty means search.
	ConfigFilePath string

	// ReportFormat is one of ReportFormats().
	ReportFormat string

	// ReportFile receives the run report instead of stdout when set.
	ReportFile string

	// DBDir is the directory of the run history database.
	DBDir string

	// SaveToDB records each site run in the history database.
	SaveToDB bool
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:      DefaultTimeout,
		MaxPages:     DefaultMaxPages,
		Concurrency:  DefaultConcurrency,
		Parallel:     DefaultParallel,
		MaxBodySize:  DefaultMaxBodySize,
		ReportFormat: ReportText,
		DBDir:        XDGDataDir(),
		SaveToDB:     true,
	}
}

// XDGDataDir returns the data directory for sitemapgen.
// On Linux: ~/.local/share/sitemapgen
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Sites) == 0 {
		return ErrNoSites
	}
	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if c.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.Parallel < 1 {
		return ErrInvalidParallel
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if !slices.Contains(ReportFormats(), c.ReportFormat) {
		return fmt.Errorf("%w: %q", ErrInvalidReportFormat, c.ReportFormat)
	}

	for _, site := range c.Sites {
		if _, err := model.ParseStartURL(site.StartURL); err != nil {
			return fmt.Errorf("%w: %q: %w", ErrInvalidSiteURL, site.StartURL, err)
		}
		if site.MaxPages < 0 {
			return fmt.Errorf("%w: %s", ErrInvalidMaxPages, site.StartURL)
		}
		if site.Concurrency < 0 {
			return fmt.Errorf("%w: %s", ErrInvalidConcurrency, site.StartURL)
		}
	}
	return nil
}

// ResolveJob fills the unset fields of job from the global settings.
func (c *Config) ResolveJob(job model.SiteJob) model.SiteJob {
	if job.MaxPages == 0 {
		job.MaxPages = c.MaxPages
	}
	if job.Concurrency == 0 {
		job.Concurrency = c.Concurrency
	}
	if job.Output == "" {
		job.Output = DefaultOutputPath(job.StartURL)
	}
	return job
}

// DefaultOutputPath returns the output file name for a site without one:
// sitemap_<host>.xml in the current directory.
func DefaultOutputPath(startURL string) string {
	root, err := model.ParseStartURL(startURL)
	if err != nil || root.Host() == "" {
		return DefaultOutputFile
	}
	host := strings.NewReplacer(":", "_", "[", "", "]", "").Replace(root.Host())
	return "sitemap_" + host + ".xml"
}

// ParseSiteArg parses a positional "URL[=OUTPUT]" argument.
// The URL part must not contain '='.
func ParseSiteArg(arg string) (model.SiteJob, error) {
	rawURL, output, _ := strings.Cut(strings.TrimSpace(arg), "=")
	if _, err := model.ParseStartURL(rawURL); err != nil {
		return model.SiteJob{}, fmt.Errorf("%w: %q: %w", ErrInvalidSiteURL, rawURL, err)
	}
	return model.SiteJob{
		StartURL: rawURL,
		Output:   strings.TrimSpace(output),
	}, nil
}
