package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/nao1215/sitemapgen/internal/model"
)

// Supported output formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// ErrUnknownFormat is returned by NewWriter for an unsupported format.
var ErrUnknownFormat = errors.New("unknown report format")

// Writer renders run reports.
type Writer interface {
	// WriteRuns outputs a list of run summaries under the given title.
	// Returns the number of bytes written.
	WriteRuns(title string, runs []model.RunSummary) (int, error)

	// WriteDiff outputs the URL changes between two runs of one site.
	WriteDiff(d *Diff) (int, error)
}

// Diff is a comparison of two recorded runs of the same site.
type Diff struct {
	// StartURL is the site both runs crawled.
	StartURL string `json:"start_url"`

	// Older is the baseline run.
	Older model.RunSummary `json:"older"`

	// Newer is the run compared against the baseline.
	Newer model.RunSummary `json:"newer"`

	// Changes lists added and removed pages.
	Changes model.URLDiff `json:"changes"`
}

// NewWriter returns the writer for format, writing to output.
func NewWriter(format string, output io.Writer) (Writer, error) {
	switch format {
	case FormatText, "":
		return NewSimpleWriter(output), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// MultiWriter writes to multiple Writers, for example the terminal and a
// report file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteRuns outputs the runs to every writer. It stops on the first error.
func (m *MultiWriter) WriteRuns(title string, runs []model.RunSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteRuns(title, runs)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteDiff outputs the diff to every writer. It stops on the first error.
func (m *MultiWriter) WriteDiff(d *Diff) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteDiff(d)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusCounts tallies runs per status.
func statusCounts(runs []model.RunSummary) (complete, failed, cancelled int) {
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			complete++
		case model.RunStatusFailed:
			failed++
		case model.RunStatusCancelled:
			cancelled++
		}
	}
	return complete, failed, cancelled
}

const timeLayout = "2006-01-02 15:04:05 MST"

func formatTime(r model.RunSummary) string {
	if r.StartedAt.IsZero() {
		return "-"
	}
	return r.StartedAt.Format(timeLayout)
}
