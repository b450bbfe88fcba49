package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitemapgen/internal/model"
)

// TestNewConfig pins the defaults so that changing one is a visible decision.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("no client-side timeout", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 0 {
			t.Errorf("expected Timeout to be 0, got %v", cfg.Timeout)
		}
	})

	t.Run("sequential crawling", func(t *testing.T) {
		t.Parallel()
		if cfg.Concurrency != 1 {
			t.Errorf("expected Concurrency to be 1, got %d", cfg.Concurrency)
		}
		if cfg.Parallel != 1 {
			t.Errorf("expected Parallel to be 1, got %d", cfg.Parallel)
		}
	})

	t.Run("unbounded page count", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxPages != 0 {
			t.Errorf("expected MaxPages to be 0, got %d", cfg.MaxPages)
		}
	})

	t.Run("text report and history enabled", func(t *testing.T) {
		t.Parallel()
		if cfg.ReportFormat != ReportText {
			t.Errorf("expected text report, got %q", cfg.ReportFormat)
		}
		if !cfg.SaveToDB {
			t.Error("expected SaveToDB to be true")
		}
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("expected DBDir %q, got %q", XDGDataDir(), cfg.DBDir)
		}
	})

	t.Run("max body size is 10MB", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxBodySize != 10*1024*1024 {
			t.Errorf("expected MaxBodySize to be 10MB, got %d", cfg.MaxBodySize)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Sites = []model.SiteJob{{StartURL: "https://www.example.org", Output: "sitemap.xml"}}
		return cfg
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		if err := validConfig().Validate(); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"no sites", func(c *Config) { c.Sites = nil }, ErrNoSites},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, ErrInvalidTimeout},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, ErrInvalidConcurrency},
		{"zero parallel", func(c *Config) { c.Parallel = 0 }, ErrInvalidParallel},
		{"negative max pages", func(c *Config) { c.MaxPages = -1 }, ErrInvalidMaxPages},
		{"negative max body size", func(c *Config) { c.MaxBodySize = -1 }, ErrInvalidMaxBodySize},
		{"unknown report format", func(c *Config) { c.ReportFormat = "pdf" }, ErrInvalidReportFormat},
		{"malformed site url", func(c *Config) { c.Sites[0].StartURL = "ht!tp://[[[" }, ErrInvalidSiteURL},
		{"non http site url", func(c *Config) { c.Sites[0].StartURL = "ftp://files.example.org" }, ErrInvalidSiteURL},
		{"negative site max pages", func(c *Config) { c.Sites[0].MaxPages = -5 }, ErrInvalidMaxPages},
		{"negative site concurrency", func(c *Config) { c.Sites[0].Concurrency = -1 }, ErrInvalidConcurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("zero timeout is allowed", func(t *testing.T) {
		t.Parallel()

		cfg := validConfig()
		cfg.Timeout = 0
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})
}

func TestResolveJob(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.MaxPages = 500
	cfg.Concurrency = 4

	t.Run("fills unset fields", func(t *testing.T) {
		t.Parallel()

		job := cfg.ResolveJob(model.SiteJob{StartURL: "https://www.livewellhull.org.uk"})
		if job.MaxPages != 500 {
			t.Errorf("expected MaxPages 500, got %d", job.MaxPages)
		}
		if job.Concurrency != 4 {
			t.Errorf("expected Concurrency 4, got %d", job.Concurrency)
		}
		if job.Output != "sitemap_www.livewellhull.org.uk.xml" {
			t.Errorf("unexpected derived output %q", job.Output)
		}
	})

	t.Run("keeps site values", func(t *testing.T) {
		t.Parallel()

		job := cfg.ResolveJob(model.SiteJob{
			StartURL:    "https://www.example.org",
			Output:      "out/site.xml",
			MaxPages:    10,
			Concurrency: 2,
		})
		if job.MaxPages != 10 || job.Concurrency != 2 || job.Output != "out/site.xml" {
			t.Errorf("site values were overridden: %+v", job)
		}
	})
}

func TestDefaultOutputPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		startURL string
		want     string
	}{
		{"https://www.familyhubshull.org.uk", "sitemap_www.familyhubshull.org.uk.xml"},
		{"https://Example.ORG/docs", "sitemap_example.org.xml"},
		{"http://127.0.0.1:8080/", "sitemap_127.0.0.1_8080.xml"},
		{"example.org", "sitemap_example.org.xml"},
		{"ht!tp://[[[", DefaultOutputFile},
	}

	for _, tt := range tests {
		t.Run(tt.startURL, func(t *testing.T) {
			t.Parallel()
			if got := DefaultOutputPath(tt.startURL); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseSiteArg(t *testing.T) {
	t.Parallel()

	t.Run("url only", func(t *testing.T) {
		t.Parallel()

		job, err := ParseSiteArg("https://www.example.org")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if job.StartURL != "https://www.example.org" || job.Output != "" {
			t.Errorf("unexpected job %+v", job)
		}
	})

	t.Run("url with output", func(t *testing.T) {
		t.Parallel()

		job, err := ParseSiteArg("https://www.example.org=./sitemap_example.xml")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if job.StartURL != "https://www.example.org" {
			t.Errorf("unexpected url %q", job.StartURL)
		}
		if job.Output != "./sitemap_example.xml" {
			t.Errorf("unexpected output %q", job.Output)
		}
	})

	t.Run("invalid url", func(t *testing.T) {
		t.Parallel()

		if _, err := ParseSiteArg("=out.xml"); !errors.Is(err, ErrInvalidSiteURL) {
			t.Errorf("expected ErrInvalidSiteURL, got %v", err)
		}
	})
}

func TestFileJobs(t *testing.T) {
	t.Parallel()

	t.Run("merges defaults", func(t *testing.T) {
		t.Parallel()

		cf := &File{
			Defaults: SiteDefaults{MaxPages: 100, Concurrency: 2, OutputDir: "public"},
			Sites: []model.SiteJob{
				{StartURL: "https://a.example.org", Output: "a.xml"},
				{StartURL: "https://b.example.org", MaxPages: 5, Concurrency: 8},
				{StartURL: "https://c.example.org", Output: "/abs/c.xml"},
			},
		}

		jobs, err := cf.Jobs()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(jobs) != 3 {
			t.Fatalf("expected 3 jobs, got %d", len(jobs))
		}

		if jobs[0].Output != filepath.Join("public", "a.xml") {
			t.Errorf("unexpected output %q", jobs[0].Output)
		}
		if jobs[0].MaxPages != 100 || jobs[0].Concurrency != 2 {
			t.Errorf("defaults not applied: %+v", jobs[0])
		}

		if jobs[1].MaxPages != 5 || jobs[1].Concurrency != 8 {
			t.Errorf("site values overridden: %+v", jobs[1])
		}
		if jobs[1].Output != filepath.Join("public", "sitemap_b.example.org.xml") {
			t.Errorf("unexpected derived output %q", jobs[1].Output)
		}

		if jobs[2].Output != "/abs/c.xml" {
			t.Errorf("absolute output must be kept, got %q", jobs[2].Output)
		}
	})

	t.Run("site without url", func(t *testing.T) {
		t.Parallel()

		cf := &File{Sites: []model.SiteJob{{Output: "x.xml"}}}
		if _, err := cf.Jobs(); !errors.Is(err, ErrInvalidSiteURL) {
			t.Errorf("expected ErrInvalidSiteURL, got %v", err)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()

		jobs, err := (&File{}).Jobs()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(jobs) != 0 {
			t.Errorf("expected no jobs, got %v", jobs)
		}
	})
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.sitemapgen")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".sitemapgen")
		content := `defaults:
  maxPages: 1000
  concurrency: 2
sites:
  - url: https://www.familyhubshull.org.uk
    output: ./sitemap_familyhubs.xml
  - url: https://www.livewellhull.org.uk
    output: ./sitemap_livewellhull.xml
    maxPages: 50
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cf, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Defaults.MaxPages != 1000 || cf.Defaults.Concurrency != 2 {
			t.Errorf("unexpected defaults %+v", cf.Defaults)
		}
		if len(cf.Sites) != 2 {
			t.Fatalf("expected 2 sites, got %d", len(cf.Sites))
		}
		if cf.Sites[0].StartURL != "https://www.familyhubshull.org.uk" {
			t.Errorf("unexpected url %q", cf.Sites[0].StartURL)
		}
		if cf.Sites[1].Output != "./sitemap_livewellhull.xml" || cf.Sites[1].MaxPages != 50 {
			t.Errorf("unexpected site %+v", cf.Sites[1])
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".sitemapgen")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfigFile(configPath)
		if err == nil {
			t.Fatal("expected error for invalid YAML")
		}
		if !strings.Contains(err.Error(), configPath) {
			t.Errorf("expected the path in the error, got %v", err)
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("sites: []"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})
}

func TestXDGDataDir(t *testing.T) {
	t.Parallel()

	dir := XDGDataDir()
	if dir == "" {
		t.Fatal("expected non-empty path")
	}
	if filepath.Base(dir) != AppName {
		t.Errorf("expected path to end with %q, got %q", AppName, dir)
	}
}
