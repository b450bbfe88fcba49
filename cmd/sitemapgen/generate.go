package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitemapgen/internal/config"
	"github.com/nao1215/sitemapgen/internal/crawler"
	"github.com/nao1215/sitemapgen/internal/database"
	"github.com/nao1215/sitemapgen/internal/log"
	"github.com/nao1215/sitemapgen/internal/model"
	"github.com/nao1215/sitemapgen/internal/pipeline"
	"github.com/nao1215/sitemapgen/internal/report"
	"github.com/nao1215/sitemapgen/internal/transport"
)

// errSitesFailed is returned when at least one site did not get a sitemap.
var errSitesFailed = errors.New("sitemap generation failed")

// NewGenerateCmd creates the generate command.
func NewGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [URL[=OUTPUT]...]",
		Short: "Crawl websites and write their sitemaps",
		Long: `Generate crawls each site from its start URL and writes an XML sitemap
listing every page it reached.

Only links whose URL starts with the start URL are followed. Query strings
and fragments are removed, so /page?x=1 and /page#top are the same page.
A page that cannot be fetched is still listed but its links are not followed.

Sites are read from the arguments, or from the configuration file when no
arguments are given. Without an =OUTPUT part the sitemap is written to
sitemap_<host>.xml.

Examples:
  # Crawl one site
  sitemapgen generate https://example.org

  # Choose the output file
  sitemapgen generate https://example.org=public/sitemap.xml

  # Crawl every site in a configuration file, two at a time
  sitemapgen generate -c sites.yaml -P 2

  # Fetch 4 pages at once, stop after 1000 pages
  sitemapgen generate -n 4 -p 1000 https://example.org

  # Go through a SOCKS5 proxy
  sitemapgen generate --socks5 127.0.0.1:1080 https://example.org

  # Print a Markdown run report
  sitemapgen generate -r markdown https://example.org`,
		Args: cobra.ArbitraryArgs,
		RunE: runGenerateCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitemapgen in current or home directory)")

	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request (0 = no timeout)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages per site (0 = unlimited)")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of pages fetched at the same time per site")
	cmd.Flags().IntP("parallel", "P", config.DefaultParallel,
		"Number of sites crawled at the same time")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum number of bytes read from each page")
	cmd.Flags().String("socks5", "",
		"Send requests through a SOCKS5 proxy ([user:password@]host:port)")
	cmd.Flags().Bool("fail-fast", false,
		"Stop the remaining sites after the first failed site")

	cmd.Flags().Bool("no-history", false,
		"Do not record runs in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	cmd.Flags().StringP("report", "r", config.ReportText,
		"Print a run report in this format (text, markdown, json)")
	cmd.Flags().StringP("report-file", "o", "",
		"Write the run report to a file (creates directories if needed)")

	return cmd
}

func runGenerateCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	// The report is opt-in: by default only the per-site success lines are printed.
	showReport := cmd.Flags().Changed("report") || cfg.ReportFile != ""
	return runGenerate(ctx, cfg, cmd.OutOrStdout(), showReport, logger)
}

// buildConfig creates a Config from flags, the configuration file and the
// positional site arguments.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.Parallel, err = flags.GetInt("parallel"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.SOCKS5Proxy, err = flags.GetString("socks5"); err != nil {
		return nil, err
	}
	if cfg.FailFast, err = flags.GetBool("fail-fast"); err != nil {
		return nil, err
	}
	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.ReportFormat, err = flags.GetString("report"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	// An explicit config path must exist; the default search may find nothing.
	file := &config.File{}
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		if file, err = config.LoadConfigFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	// Sites on the command line replace the file's sites but keep its defaults.
	if len(args) > 0 {
		sites := make([]model.SiteJob, 0, len(args))
		for _, arg := range args {
			job, err := config.ParseSiteArg(arg)
			if err != nil {
				return nil, err
			}
			sites = append(sites, job)
		}
		file = &config.File{Defaults: file.Defaults, Sites: sites}
	}

	jobs, err := file.Jobs()
	if err != nil {
		return nil, err
	}
	cfg.Sites = jobs

	return cfg, nil
}

// runGenerate crawls every configured site and writes the sitemaps.
// It returns an error when any site failed.
func runGenerate(ctx context.Context, cfg *config.Config, stdout io.Writer, showReport bool, logger *slog.Logger) error {
	logger.Info("starting sitemap generation",
		"sites", len(cfg.Sites),
		"parallel", cfg.Parallel,
		"fail_fast", cfg.FailFast,
		"save_to_db", cfg.SaveToDB,
	)

	if cfg.SOCKS5Proxy != "" {
		status := transport.CheckProxy(ctx, cfg.SOCKS5Proxy)
		if status != transport.ProxyStatusOK {
			return fmt.Errorf("socks5 proxy check failed for %s: %w",
				log.RedactURLCredentials(cfg.SOCKS5Proxy), status.Error())
		}
		logger.Info("SOCKS5 proxy connection verified", "proxy", cfg.SOCKS5Proxy)
	}

	client, err := transport.NewHTTPClient(transport.Options{
		Timeout:     cfg.Timeout,
		SOCKS5Proxy: cfg.SOCKS5Proxy,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}
	fetcher := crawler.NewFetcher(client,
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithFetcherLogger(logger),
	)

	var recorder pipeline.RunRecorder
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		recorder = db
		logger.Info("database opened", "path", db.Path())
	}

	jobs := make([]model.SiteJob, len(cfg.Sites))
	for i, site := range cfg.Sites {
		jobs[i] = cfg.ResolveJob(site)
	}

	out := &syncWriter{w: stdout}
	configOpts := []pipeline.DefaultPipelineOption{
		pipeline.WithPipelineStdout(out),
		pipeline.WithPipelineStepLogger(logger),
	}
	if recorder != nil {
		configOpts = append(configOpts, pipeline.WithPipelineRecorder(recorder))
	}

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.DefaultPipeline(fetcher, []pipeline.Option{pipeline.WithLogger(logger)}, configOpts...)
		},
		pipeline.WithConcurrency(cfg.Parallel),
		pipeline.WithFailFast(cfg.FailFast),
		pipeline.WithBatchLogger(logger),
	)

	runs, batchErr := bp.ProcessBatch(ctx, jobs)

	if showReport {
		summaries := make([]model.RunSummary, len(runs))
		for i, run := range runs {
			summaries[i] = run.Summary()
		}
		if err := writeReport(cfg.ReportFormat, cfg.ReportFile, out, func(w report.Writer) error {
			_, err := w.WriteRuns("Sitemap Generation", summaries)
			return err
		}); err != nil {
			logger.Error("failed to write report", "error", err)
		}
	}

	if batchErr != nil {
		return batchErr
	}
	if failed := pipeline.FailedCount(runs); failed > 0 {
		return fmt.Errorf("%w: %d of %d site(s) failed", errSitesFailed, failed, len(runs))
	}
	return nil
}

// writeReport renders a report in format to file, or to stdout when file is empty.
func writeReport(format, file string, stdout io.Writer, render func(report.Writer) error) error {
	output := stdout
	if file != "" {
		dir := filepath.Dir(file)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create report directory: %w", err)
			}
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-provided report path
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		output = f
	}

	w, err := report.NewWriter(format, output)
	if err != nil {
		return err
	}
	return render(w)
}

// syncWriter serializes writes from parallel site runs.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
