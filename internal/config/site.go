package config

import (
	"fmt"
	"path/filepath"

	"github.com/nao1215/sitemapgen/internal/model"
)

// SiteDefaults are applied to every site in the config file that does not
// set the value itself.
type SiteDefaults struct {
	// MaxPages is the page ceiling per site. 0 means unbounded.
	MaxPages int `yaml:"maxPages,omitempty"`

	// Concurrency is the number of fetches in flight per site.
	Concurrency int `yaml:"concurrency,omitempty"`

	// OutputDir is prepended to relative output paths, including derived ones.
	OutputDir string `yaml:"outputDir,omitempty"`
}

// File represents the structure of the .sitemapgen configuration file.
type File struct {
	Defaults SiteDefaults     `yaml:"defaults,omitempty"`
	Sites    []model.SiteJob `yaml:"sites,omitempty"`
}

// Jobs returns the sites of the file with the defaults merged in.
// A site without an output gets DefaultOutputPath of its URL.
func (cf *File) Jobs() ([]model.SiteJob, error) {
	jobs := make([]model.SiteJob, 0, len(cf.Sites))
	for i, site := range cf.Sites {
		if site.StartURL == "" {
			return nil, fmt.Errorf("%w: site #%d has no url", ErrInvalidSiteURL, i+1)
		}

		job := site
		if job.MaxPages == 0 {
			job.MaxPages = cf.Defaults.MaxPages
		}
		if job.Concurrency == 0 {
			job.Concurrency = cf.Defaults.Concurrency
		}
		if job.Output == "" {
			job.Output = DefaultOutputPath(job.StartURL)
		}
		if cf.Defaults.OutputDir != "" && !filepath.IsAbs(job.Output) {
			job.Output = filepath.Join(cf.Defaults.OutputDir, job.Output)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
