package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitemapgen/internal/model"
)

// ErrSiteFailed wraps the first fatal site error in fail-fast mode.
var ErrSiteFailed = errors.New("site run failed")

// BatchProcessor runs the pipeline for a list of sites.
//
// With the default concurrency of 1 sites are processed one after another
// in input order. A site's failure never touches another site's state;
// whether it stops the remaining sites is controlled by WithFailFast.
type BatchProcessor struct {
	// pipelineFactory creates a fresh pipeline for each site.
	pipelineFactory func() *Pipeline

	// concurrency is the number of sites processed at once.
	concurrency int

	// failFast stops starting new sites after the first fatal error.
	failFast bool

	// newID generates run IDs.
	newID func() string

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the logger for batch progress.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets how many sites are processed at the same time.
// Values below 1 are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithFailFast makes the first fatal site error stop the remaining sites.
func WithFailFast(failFast bool) BatchOption {
	return func(b *BatchProcessor) {
		b.failFast = failFast
	}
}

// WithIDGenerator replaces the random UUID run IDs.
func WithIDGenerator(newID func() string) BatchOption {
	return func(b *BatchProcessor) {
		b.newID = newID
	}
}

// NewBatchProcessor creates a BatchProcessor. pipelineFactory is called once
// per site so no pipeline state leaks between sites.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     1,
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch runs every job and returns one SiteRun per job, in input
// order. Jobs that never started because of cancellation or fail-fast are
// returned as cancelled runs.
//
// The returned error is non-nil only in fail-fast mode (wrapping
// ErrSiteFailed) or when ctx was cancelled. Otherwise inspect the runs.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, jobs []model.SiteJob) ([]*model.SiteRun, error) {
	bp.logger.Info("starting batch processing",
		"total_sites", len(jobs),
		"concurrency", bp.concurrency,
		"fail_fast", bp.failFast,
	)
	startTime := time.Now()

	runs := make([]*model.SiteRun, len(jobs))
	for i, job := range jobs {
		runs[i] = model.NewSiteRun(bp.newID(), job)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, run := range runs {
		if gctx.Err() != nil {
			markSkipped(gctx, run)
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				markSkipped(gctx, run)
				return nil
			}

			bp.logger.Info("processing site",
				"site", run.Job.StartURL,
				"index", i+1,
				"total", len(runs),
				"run_id", run.ID,
			)

			err := bp.pipelineFactory().Execute(gctx, run)
			if err == nil {
				bp.logger.Info("site completed", "site", run.Job.StartURL)
				return nil
			}

			bp.logger.Warn("site failed", "site", run.Job.StartURL, "error", err)
			if bp.failFast && !run.Cancelled {
				return fmt.Errorf("%w: %s: %w", ErrSiteFailed, run.Job.StartURL, err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	bp.logger.Info("batch processing complete",
		"total_sites", len(jobs),
		"failed", FailedCount(runs),
		"elapsed", time.Since(startTime),
	)
	return runs, err
}

// markSkipped records a run that was never started.
func markSkipped(ctx context.Context, run *model.SiteRun) {
	run.Cancelled = true
	run.Fail(fmt.Errorf("site not processed: %w", context.Cause(ctx)))
}

// FailedCount returns the number of runs that did not complete.
func FailedCount(runs []*model.SiteRun) int {
	n := 0
	for _, run := range runs {
		if run != nil && run.Status() != model.RunStatusComplete {
			n++
		}
	}
	return n
}
