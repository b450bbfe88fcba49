package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/sitemapgen/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output with the given prefix and indent.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
// Output is compact unless an indent option is given.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RunsReport is the JSON document written by WriteRuns.
type RunsReport struct {
	Title     string             `json:"title"`
	Total     int                `json:"total"`
	Complete  int                `json:"complete"`
	Failed    int                `json:"failed"`
	Cancelled int                `json:"cancelled"`
	Runs      []model.RunSummary `json:"runs"`
}

// WriteRuns outputs the runs with their status totals.
func (w *JSONWriter) WriteRuns(title string, runs []model.RunSummary) (int, error) {
	if runs == nil {
		runs = []model.RunSummary{}
	}
	complete, failed, cancelled := statusCounts(runs)
	return w.writeJSON(RunsReport{
		Title:     title,
		Total:     len(runs),
		Complete:  complete,
		Failed:    failed,
		Cancelled: cancelled,
		Runs:      runs,
	})
}

// WriteDiff outputs the diff document.
func (w *JSONWriter) WriteDiff(d *Diff) (int, error) {
	out := *d
	if out.Changes.Added == nil {
		out.Changes.Added = []model.CanonicalURL{}
	}
	if out.Changes.Removed == nil {
		out.Changes.Removed = []model.CanonicalURL{}
	}
	return w.writeJSON(out)
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
