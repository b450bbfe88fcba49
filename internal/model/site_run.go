package model

import "time"

// RunStatus describes how a site run ended.
type RunStatus string

const (
	// RunStatusComplete means the sitemap was written.
	RunStatusComplete RunStatus = "complete"

	// RunStatusFailed means a pipeline step failed and no sitemap was written
	// (or it was written but could not be recorded).
	RunStatusFailed RunStatus = "failed"

	// RunStatusCancelled means the run was interrupted before finishing.
	RunStatusCancelled RunStatus = "cancelled"
)

// String returns the status as a plain string.
func (s RunStatus) String() string {
	return string(s)
}

// SiteRun carries one site job through the generation pipeline.
// Each step reads what previous steps produced and adds its own output.
type SiteRun struct {
	// ID uniquely identifies the run in the history database.
	ID string `json:"id"`

	// Job is the input that started this run.
	Job SiteJob `json:"job"`

	// Result is filled in by the crawl step.
	Result *CrawlResult `json:"result,omitempty"`

	// Document is the encoded sitemap, filled in by the encode step.
	Document []byte `json:"-"`

	// Written is true once the document has been persisted to Job.Output.
	Written bool `json:"written"`

	// Steps lists the names of the steps that completed, in order.
	Steps []string `json:"steps"`

	// Err is the first fatal error, if any.
	Err error `json:"-"`

	// ErrorMessage mirrors Err for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// Cancelled is true when the context was cancelled mid-run.
	Cancelled bool `json:"cancelled"`

	CreatedAt time.Time `json:"created_at"`
}

// NewSiteRun creates a run for the given job.
func NewSiteRun(id string, job SiteJob) *SiteRun {
	return &SiteRun{
		ID:        id,
		Job:       job,
		Steps:     make([]string, 0),
		CreatedAt: time.Now(),
	}
}

// Fail records err as the run's fatal error. Only the first error is kept.
func (r *SiteRun) Fail(err error) {
	if err == nil || r.Err != nil {
		return
	}
	r.Err = err
	r.ErrorMessage = err.Error()
}

// Status derives the run status from the recorded state.
func (r *SiteRun) Status() RunStatus {
	switch {
	case r.Cancelled:
		return RunStatusCancelled
	case r.Err != nil || r.ErrorMessage != "":
		return RunStatusFailed
	default:
		return RunStatusComplete
	}
}

// Summary builds the reportable digest of the run.
func (r *SiteRun) Summary() RunSummary {
	s := RunSummary{
		ID:        r.ID,
		StartURL:  r.Job.StartURL,
		Output:    r.Job.Output,
		Status:    r.Status(),
		Error:     r.ErrorMessage,
		StartedAt: r.CreatedAt,
	}
	if root, err := ParseStartURL(r.Job.StartURL); err == nil {
		s.StartURL = root.String()
	}
	if r.Result != nil {
		s.StartURL = r.Result.StartURL.String()
		s.PageCount = len(r.Result.Visited)
		s.FailedCount = len(r.Result.Failures)
		s.Truncated = r.Result.Truncated
		s.StartedAt = r.Result.StartedAt
		s.FinishedAt = r.Result.FinishedAt
	}
	return s
}

// RunSummary is the persisted and reportable digest of a SiteRun.
type RunSummary struct {
	ID          string    `json:"id"`
	StartURL    string    `json:"start_url"`
	Output      string    `json:"output"`
	Status      RunStatus `json:"status"`
	Error       string    `json:"error,omitempty"`
	PageCount   int       `json:"page_count"`
	FailedCount int       `json:"failed_count"`
	Truncated   bool      `json:"truncated"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Duration returns the crawl duration, or zero if the run never finished crawling.
func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
