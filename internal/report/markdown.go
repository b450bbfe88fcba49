package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/sitemapgen/internal/model"
)

// MarkdownWriter outputs reports as GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// WriteRuns outputs a run table, a status chart and an alert.
func (w *MarkdownWriter) WriteRuns(title string, runs []model.RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1(title)
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No runs recorded.")
		md.PlainText("")
		w.writeFooter(md)
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			r.StartURL,
			statusText(r.Status),
			strconv.Itoa(r.PageCount),
			strconv.Itoa(r.FailedCount),
			orDash(r.Output),
			formatTime(r),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Site", "Status", "Pages", "Failed", "Output", "Started"},
		Rows:   rows,
	})
	md.PlainText("")

	complete, failed, cancelled := statusCounts(runs)
	if len(runs) > 1 {
		w.writeStatusChart(md, complete, failed, cancelled)
	}
	w.writeAlert(md, runs, failed, cancelled)

	for _, r := range runs {
		if r.Error != "" {
			md.Details(r.StartURL, r.Error)
		}
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeStatusChart(md *markdown.Markdown, complete, failed, cancelled int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Run Status"),
		piechart.WithShowData(true),
	)
	if complete > 0 {
		chart.LabelAndIntValue("Complete", uint64(complete))
	}
	if failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(failed))
	}
	if cancelled > 0 {
		chart.LabelAndIntValue("Cancelled", uint64(cancelled))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, runs []model.RunSummary, failed, cancelled int) {
	truncated := 0
	for _, r := range runs {
		if r.Truncated {
			truncated++
		}
	}

	switch {
	case failed > 0:
		md.Cautionf("%d site(s) failed. Their sitemaps were not written.", failed)
	case cancelled > 0:
		md.Warningf("%d site(s) were cancelled before finishing.", cancelled)
	case truncated > 0:
		md.Importantf("%d sitemap(s) hit the page limit and are incomplete.", truncated)
	default:
		md.Tip("All sitemaps were written.")
	}
	md.PlainText("")
}

// WriteDiff outputs the compared runs and the added and removed pages.
func (w *MarkdownWriter) WriteDiff(d *Diff) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Sitemap Diff")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Run", "ID", "Started", "Pages"},
		Rows: [][]string{
			{"Older", "`" + d.Older.ID + "`", formatTime(d.Older), strconv.Itoa(d.Older.PageCount)},
			{"Newer", "`" + d.Newer.ID + "`", formatTime(d.Newer), strconv.Itoa(d.Newer.PageCount)},
		},
	})
	md.PlainText("")

	if !d.Changes.HasChanges() {
		md.Note(fmt.Sprintf("No changes for %s. %d page(s) unchanged.", d.StartURL, d.Changes.Unchanged))
		md.PlainText("")
		w.writeFooter(md)
		return len(md.String()), md.Build()
	}

	w.writeURLSection(md, "Added", d.Changes.Added)
	w.writeURLSection(md, "Removed", d.Changes.Removed)
	md.PlainTextf("%d page(s) unchanged.", d.Changes.Unchanged)
	md.PlainText("")

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeURLSection(md *markdown.Markdown, header string, urls []model.CanonicalURL) {
	if len(urls) == 0 {
		return
	}
	md.H2(header + " (" + strconv.Itoa(len(urls)) + ")")
	md.PlainText("")
	items := make([]string, len(urls))
	for i, u := range urls {
		items[i] = u.String()
	}
	md.BulletList(items...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by sitemapgen*")
}

func statusText(status model.RunStatus) string {
	switch status {
	case model.RunStatusComplete:
		return "✅ Complete"
	case model.RunStatusFailed:
		return "❌ Failed"
	case model.RunStatusCancelled:
		return "⚠️ Cancelled"
	default:
		return string(status)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
