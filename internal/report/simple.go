package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitemapgen/internal/model"
)

// SimpleWriter outputs plain text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds start times and error details to every run.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteRuns outputs one block per run followed by the status totals.
func (w *SimpleWriter) WriteRuns(title string, runs []model.RunSummary) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, title)

	if len(runs) == 0 {
		sb.WriteString("  No runs\n\n")
	}
	for _, r := range runs {
		w.writeRun(&sb, r)
	}

	complete, failed, cancelled := statusCounts(runs)
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Total: %d  Complete: %d  Failed: %d  Cancelled: %d\n",
		len(runs), complete, failed, cancelled)
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeRun(sb *strings.Builder, r model.RunSummary) {
	fmt.Fprintf(sb, "[%s] %s\n", statusIndicator(r.Status), r.StartURL)
	if r.Output != "" {
		fmt.Fprintf(sb, "    Output:   %s\n", r.Output)
	}
	fmt.Fprintf(sb, "    Pages:    %d (%d failed)\n", r.PageCount, r.FailedCount)
	if r.Truncated {
		sb.WriteString("    Note:     page limit reached, sitemap is incomplete\n")
	}
	if w.verbose {
		fmt.Fprintf(sb, "    Run ID:   %s\n", r.ID)
		fmt.Fprintf(sb, "    Started:  %s\n", formatTime(r))
		fmt.Fprintf(sb, "    Duration: %s\n", r.Duration())
	}
	if r.Error != "" {
		fmt.Fprintf(sb, "    Error:    %s\n", r.Error)
	}
	sb.WriteString("\n")
}

// WriteDiff outputs added and removed pages.
func (w *SimpleWriter) WriteDiff(d *Diff) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "SITEMAP DIFF")

	fmt.Fprintf(&sb, "Site:  %s\n", d.StartURL)
	fmt.Fprintf(&sb, "Older: %s (%s, %d pages)\n", d.Older.ID, formatTime(d.Older), d.Older.PageCount)
	fmt.Fprintf(&sb, "Newer: %s (%s, %d pages)\n\n", d.Newer.ID, formatTime(d.Newer), d.Newer.PageCount)

	if !d.Changes.HasChanges() {
		fmt.Fprintf(&sb, "  No changes (%d pages unchanged)\n\n", d.Changes.Unchanged)
	} else {
		for _, u := range d.Changes.Added {
			fmt.Fprintf(&sb, "  + %s\n", u)
		}
		for _, u := range d.Changes.Removed {
			fmt.Fprintf(&sb, "  - %s\n", u)
		}
		sb.WriteString("\n")
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Added: %d  Removed: %d  Unchanged: %d\n",
		len(d.Changes.Added), len(d.Changes.Removed), d.Changes.Unchanged)
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

func writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString(strings.ToUpper(title))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

// statusIndicator returns a short marker for the status.
func statusIndicator(status model.RunStatus) string {
	switch status {
	case model.RunStatusComplete:
		return "OK"
	case model.RunStatusFailed:
		return "FAILED"
	case model.RunStatusCancelled:
		return "CANCELLED"
	default:
		return "?"
	}
}
