package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/sitemapgen/internal/crawler"
	"github.com/nao1215/sitemapgen/internal/model"
	"github.com/nao1215/sitemapgen/internal/sitemap"
)

// Step errors.
var (
	// ErrNoCrawlResult is returned by steps that need a crawl result when
	// the crawl step did not produce one.
	ErrNoCrawlResult = errors.New("no crawl result")

	// ErrNoDocument is returned by WriteStep when nothing was encoded.
	ErrNoDocument = errors.New("no sitemap document")

	// ErrNoOutput is returned by WriteStep when the job has no output path.
	ErrNoOutput = errors.New("no output path")
)

// CrawlStep discovers the pages of the site.
// A new Spider is built for every run from the job's limits.
type CrawlStep struct {
	fetcher crawler.PageFetcher
	logger  *slog.Logger
}

// NewCrawlStep creates a crawl step that fetches pages with fetcher.
func NewCrawlStep(fetcher crawler.PageFetcher, logger *slog.Logger) *CrawlStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrawlStep{fetcher: fetcher, logger: logger}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do crawls run.Job.StartURL. On cancellation the partial result is kept in
// the run and the context error is returned.
func (s *CrawlStep) Do(ctx context.Context, run *model.SiteRun) error {
	spider := crawler.NewSpider(s.fetcher,
		crawler.WithConcurrency(run.Job.Concurrency),
		crawler.WithMaxPages(run.Job.MaxPages),
		crawler.WithLogger(s.logger),
	)

	result, err := spider.Crawl(ctx, run.Job.StartURL)
	if result != nil {
		run.Result = result
	}
	if err != nil {
		return err
	}

	if result.Truncated {
		s.logger.Warn("page limit reached, sitemap is incomplete",
			"site", run.Job.StartURL,
			"max_pages", run.Job.MaxPages,
		)
	}
	return nil
}

// EncodeStep turns the visited set into a sitemap document.
type EncodeStep struct {
	logger *slog.Logger
}

// NewEncodeStep creates an encode step.
func NewEncodeStep(logger *slog.Logger) *EncodeStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &EncodeStep{logger: logger}
}

// Name returns the step name.
func (s *EncodeStep) Name() string {
	return "encode"
}

// Do encodes run.Result.Visited. Exceeding the protocol limits is logged,
// the document is still produced as a single file.
func (s *EncodeStep) Do(_ context.Context, run *model.SiteRun) error {
	if run.Result == nil {
		return ErrNoCrawlResult
	}

	doc, err := sitemap.Encode(run.Result.Visited)
	if err != nil {
		return err
	}

	if err := sitemap.CheckLimits(len(run.Result.Visited), len(doc)); err != nil {
		s.logger.Warn("sitemap exceeds protocol limits",
			"site", run.Job.StartURL,
			"entries", len(run.Result.Visited),
			"bytes", len(doc),
			"error", err,
		)
	}

	run.Document = doc
	return nil
}

// WriteStep persists the document to run.Job.Output and announces it.
type WriteStep struct {
	stdout io.Writer
}

// NewWriteStep creates a write step that prints its success line to stdout.
func NewWriteStep(stdout io.Writer) *WriteStep {
	if stdout == nil {
		stdout = io.Discard
	}
	return &WriteStep{stdout: stdout}
}

// Name returns the step name.
func (s *WriteStep) Name() string {
	return "write"
}

// Do writes the document. The file is written to a temporary name in the
// target directory and renamed, so a reader never sees a partial sitemap.
func (s *WriteStep) Do(_ context.Context, run *model.SiteRun) error {
	if run.Document == nil {
		return ErrNoDocument
	}
	output := run.Job.Output
	if output == "" {
		return ErrNoOutput
	}

	if err := writeFileAtomic(output, run.Document); err != nil {
		return fmt.Errorf("failed to write sitemap to %s: %w", output, err)
	}
	run.Written = true

	fmt.Fprintf(s.stdout, "Sitemap for %s written successfully to %s!\n", run.Job.StartURL, output)
	return nil
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// RunRecorder stores finished runs. *database.HistoryDB implements it.
type RunRecorder interface {
	SaveRun(ctx context.Context, summary model.RunSummary, result *model.CrawlResult) error
}

// RecordStep stores the run in the history database. It is meant to be a
// final step so failed and cancelled runs are recorded as well.
type RecordStep struct {
	recorder RunRecorder
}

// NewRecordStep creates a record step.
func NewRecordStep(recorder RunRecorder) *RecordStep {
	return &RecordStep{recorder: recorder}
}

// Name returns the step name.
func (s *RecordStep) Name() string {
	return "record"
}

// Do saves the run summary with its URLs and failures.
func (s *RecordStep) Do(ctx context.Context, run *model.SiteRun) error {
	if err := s.recorder.SaveRun(ctx, run.Summary(), run.Result); err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

// DefaultPipelineConfig holds the collaborators of the default pipeline.
type DefaultPipelineConfig struct {
	// Stdout receives the per-site success line.
	Stdout io.Writer

	// Recorder stores runs. Nil disables history.
	Recorder RunRecorder

	// StepLogger is used by the crawl and encode steps.
	StepLogger *slog.Logger
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineStdout sets where success lines are printed.
func WithPipelineStdout(w io.Writer) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Stdout = w
	}
}

// WithPipelineRecorder enables run history.
func WithPipelineRecorder(recorder RunRecorder) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Recorder = recorder
	}
}

// WithPipelineStepLogger sets the logger of the crawl and encode steps.
func WithPipelineStepLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.StepLogger = logger
	}
}

// DefaultPipeline creates the crawl → encode → write pipeline, with a final
// record step when a recorder is configured.
func DefaultPipeline(fetcher crawler.PageFetcher, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	cfg := &DefaultPipelineConfig{
		Stdout:     os.Stdout,
		StepLogger: slog.Default(),
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	p := New(pipelineOpts...)
	p.AddSteps(
		NewCrawlStep(fetcher, cfg.StepLogger),
		NewEncodeStep(cfg.StepLogger),
		NewWriteStep(cfg.Stdout),
	)
	if cfg.Recorder != nil {
		p.AddFinalStep(NewRecordStep(cfg.Recorder))
	}
	return p
}
