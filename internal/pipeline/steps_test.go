package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/sitemapgen/internal/crawler"
	"github.com/nao1215/sitemapgen/internal/database"
	"github.com/nao1215/sitemapgen/internal/model"
	"github.com/nao1215/sitemapgen/internal/sitemap"
)

// newTestServer serves a three page site: / links to /a and /b, /a links to /b
// and an external host, /b is missing.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><body><a href="/a">A</a><a href="/b">B</a></body></html>`)
		case "/a":
			fmt.Fprint(w, `<html><body><a href="b">B</a><a href="https://other.example/">x</a></body></html>`)
		default:
			http.NotFound(w, r)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestFetcher() *crawler.Fetcher {
	return crawler.NewFetcher(nil, crawler.WithFetcherLogger(discardLogger()))
}

type fakeRecorder struct {
	mu        sync.Mutex
	summaries []model.RunSummary
	results   []*model.CrawlResult
	err       error
}

func (f *fakeRecorder) SaveRun(_ context.Context, summary model.RunSummary, result *model.CrawlResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.summaries = append(f.summaries, summary)
	f.results = append(f.results, result)
	return nil
}

func TestCrawlStep(t *testing.T) {
	t.Parallel()

	t.Run("stores the crawl result in the run", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t)
		run := model.NewSiteRun("r1", model.SiteJob{StartURL: srv.URL, Output: "out.xml"})

		step := NewCrawlStep(newTestFetcher(), discardLogger())
		if step.Name() != "crawl" {
			t.Errorf("unexpected name %q", step.Name())
		}
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if run.Result == nil {
			t.Fatal("expected a crawl result")
		}
		want := []model.CanonicalURL{
			model.CanonicalURL(srv.URL + "/"),
			model.CanonicalURL(srv.URL + "/a"),
			model.CanonicalURL(srv.URL + "/b"),
		}
		if !slices.Equal(run.Result.Visited, want) {
			t.Errorf("expected %v, got %v", want, run.Result.Visited)
		}
		if len(run.Result.Failures) != 1 || run.Result.Failures[0].URL != want[2] {
			t.Errorf("expected /b to be the only failure, got %v", run.Result.Failures)
		}
	})

	t.Run("honors the job page limit", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t)
		run := model.NewSiteRun("r2", model.SiteJob{StartURL: srv.URL, Output: "out.xml", MaxPages: 1})

		if err := NewCrawlStep(newTestFetcher(), discardLogger()).Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(run.Result.Visited) != 1 || !run.Result.Truncated {
			t.Errorf("expected one truncated page, got %v (truncated=%v)", run.Result.Visited, run.Result.Truncated)
		}
	})

	t.Run("invalid start URL", func(t *testing.T) {
		t.Parallel()

		run := model.NewSiteRun("r3", model.SiteJob{StartURL: "://nope", Output: "out.xml"})
		if err := NewCrawlStep(newTestFetcher(), discardLogger()).Do(context.Background(), run); err == nil {
			t.Error("expected error for invalid start URL")
		}
		if run.Result != nil {
			t.Error("no result expected for an invalid start URL")
		}
	})
}

func TestEncodeStep(t *testing.T) {
	t.Parallel()

	t.Run("encodes visited URLs", func(t *testing.T) {
		t.Parallel()

		run := model.NewSiteRun("r1", testJob())
		run.Result = &model.CrawlResult{
			StartURL: "https://site.org/",
			Visited:  []model.CanonicalURL{"https://site.org/", "https://site.org/about"},
		}

		step := NewEncodeStep(discardLogger())
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		locs, err := sitemap.Parse(bytes.NewReader(run.Document))
		if err != nil {
			t.Fatalf("encoded document does not parse: %v", err)
		}
		if !slices.Equal(locs, []string{"https://site.org/", "https://site.org/about"}) {
			t.Errorf("unexpected locations %v", locs)
		}
	})

	t.Run("requires a crawl result", func(t *testing.T) {
		t.Parallel()

		run := model.NewSiteRun("r2", testJob())
		if err := NewEncodeStep(discardLogger()).Do(context.Background(), run); !errors.Is(err, ErrNoCrawlResult) {
			t.Errorf("expected ErrNoCrawlResult, got %v", err)
		}
	})
}

func TestWriteStep(t *testing.T) {
	t.Parallel()

	t.Run("writes the document and prints a success line", func(t *testing.T) {
		t.Parallel()

		output := filepath.Join(t.TempDir(), "nested", "dir", "sitemap.xml")
		run := model.NewSiteRun("r1", model.SiteJob{StartURL: "https://site.org/", Output: output})
		run.Document = []byte("<urlset></urlset>\n")

		var stdout bytes.Buffer
		if err := NewWriteStep(&stdout).Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := os.ReadFile(output) //nolint:gosec // test path
		if err != nil {
			t.Fatalf("failed to read output: %v", err)
		}
		if !bytes.Equal(got, run.Document) {
			t.Errorf("unexpected file content %q", got)
		}
		if !run.Written {
			t.Error("expected run to be marked written")
		}

		want := "Sitemap for https://site.org/ written successfully to " + output + "!\n"
		if stdout.String() != want {
			t.Errorf("expected %q, got %q", want, stdout.String())
		}

		entries, err := os.ReadDir(filepath.Dir(output))
		if err != nil {
			t.Fatalf("failed to read dir: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected no temporary files left behind, got %d entries", len(entries))
		}
	})

	t.Run("overwrites an existing file", func(t *testing.T) {
		t.Parallel()

		output := filepath.Join(t.TempDir(), "sitemap.xml")
		if err := os.WriteFile(output, []byte("old content that is longer"), 0600); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}

		run := model.NewSiteRun("r2", model.SiteJob{StartURL: "https://site.org/", Output: output})
		run.Document = []byte("new")
		if err := NewWriteStep(nil).Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := os.ReadFile(output) //nolint:gosec // test path
		if err != nil {
			t.Fatalf("failed to read output: %v", err)
		}
		if string(got) != "new" {
			t.Errorf("expected file to be replaced, got %q", got)
		}
	})

	t.Run("missing document", func(t *testing.T) {
		t.Parallel()

		run := model.NewSiteRun("r3", testJob())
		if err := NewWriteStep(nil).Do(context.Background(), run); !errors.Is(err, ErrNoDocument) {
			t.Errorf("expected ErrNoDocument, got %v", err)
		}
	})

	t.Run("missing output path", func(t *testing.T) {
		t.Parallel()

		run := model.NewSiteRun("r4", model.SiteJob{StartURL: "https://site.org/"})
		run.Document = []byte("x")
		if err := NewWriteStep(nil).Do(context.Background(), run); !errors.Is(err, ErrNoOutput) {
			t.Errorf("expected ErrNoOutput, got %v", err)
		}
	})

	t.Run("unwritable target", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		blocker := filepath.Join(dir, "file")
		if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}

		run := model.NewSiteRun("r5", model.SiteJob{StartURL: "https://site.org/", Output: filepath.Join(blocker, "sitemap.xml")})
		run.Document = []byte("x")
		err := NewWriteStep(nil).Do(context.Background(), run)
		if err == nil {
			t.Fatal("expected error writing below a regular file")
		}
		if run.Written {
			t.Error("run must not be marked written")
		}
	})
}

func TestRecordStep(t *testing.T) {
	t.Parallel()

	t.Run("saves summary and result", func(t *testing.T) {
		t.Parallel()

		rec := &fakeRecorder{}
		run := model.NewSiteRun("r1", testJob())
		run.Result = &model.CrawlResult{
			StartURL: "https://site.org/",
			Visited:  []model.CanonicalURL{"https://site.org/"},
		}

		step := NewRecordStep(rec)
		if step.Name() != "record" {
			t.Errorf("unexpected name %q", step.Name())
		}
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rec.summaries) != 1 || rec.summaries[0].ID != "r1" || rec.summaries[0].PageCount != 1 {
			t.Errorf("unexpected summaries %+v", rec.summaries)
		}
		if rec.results[0] != run.Result {
			t.Error("expected the crawl result to be passed through")
		}
	})

	t.Run("wraps recorder errors", func(t *testing.T) {
		t.Parallel()

		dbErr := errors.New("database is locked")
		run := model.NewSiteRun("r2", testJob())
		err := NewRecordStep(&fakeRecorder{err: dbErr}).Do(context.Background(), run)
		if !errors.Is(err, dbErr) {
			t.Errorf("expected %v, got %v", dbErr, err)
		}
		if !strings.Contains(err.Error(), "r2") {
			t.Errorf("expected run ID in error, got %v", err)
		}
	})
}

func TestDefaultPipeline(t *testing.T) {
	t.Parallel()

	t.Run("step layout", func(t *testing.T) {
		t.Parallel()

		p := DefaultPipeline(newTestFetcher(), []Option{WithLogger(discardLogger())})
		if !slices.Equal(p.StepNames(), []string{"crawl", "encode", "write"}) {
			t.Errorf("unexpected steps %v", p.StepNames())
		}

		p = DefaultPipeline(newTestFetcher(), nil, WithPipelineRecorder(&fakeRecorder{}))
		if !slices.Equal(p.StepNames(), []string{"crawl", "encode", "write", "record"}) {
			t.Errorf("unexpected steps %v", p.StepNames())
		}
	})

	t.Run("generates a sitemap end to end", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t)
		dir := t.TempDir()
		output := filepath.Join(dir, "sitemap.xml")

		db, err := database.Open(filepath.Join(dir, "db"), database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })

		var stdout bytes.Buffer
		p := DefaultPipeline(newTestFetcher(),
			[]Option{WithLogger(discardLogger())},
			WithPipelineStdout(&stdout),
			WithPipelineRecorder(db),
			WithPipelineStepLogger(discardLogger()),
		)

		run := model.NewSiteRun("run-1", model.SiteJob{StartURL: srv.URL, Output: output})
		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		f, err := os.Open(output) //nolint:gosec // test path
		if err != nil {
			t.Fatalf("sitemap not written: %v", err)
		}
		defer f.Close()

		locs, err := sitemap.Parse(f)
		if err != nil {
			t.Fatalf("invalid sitemap: %v", err)
		}
		want := []string{srv.URL + "/", srv.URL + "/a", srv.URL + "/b"}
		if !slices.Equal(locs, want) {
			t.Errorf("expected %v, got %v", want, locs)
		}
		if !strings.Contains(stdout.String(), "written successfully to "+output) {
			t.Errorf("missing success line, got %q", stdout.String())
		}

		saved, err := db.GetRun(context.Background(), "run-1")
		if err != nil {
			t.Fatalf("run not recorded: %v", err)
		}
		if saved.Status != model.RunStatusComplete || saved.PageCount != 3 || saved.FailedCount != 1 {
			t.Errorf("unexpected recorded run %+v", saved)
		}

		urls, err := db.GetRunURLs(context.Background(), "run-1")
		if err != nil {
			t.Fatalf("failed to read recorded URLs: %v", err)
		}
		if len(urls) != 3 {
			t.Errorf("expected 3 recorded URLs, got %v", urls)
		}
	})

	t.Run("failed runs are recorded too", func(t *testing.T) {
		t.Parallel()

		rec := &fakeRecorder{}
		p := DefaultPipeline(newTestFetcher(),
			[]Option{WithLogger(discardLogger())},
			WithPipelineRecorder(rec),
			WithPipelineStepLogger(discardLogger()),
		)

		run := model.NewSiteRun("bad", model.SiteJob{StartURL: "://nope", Output: filepath.Join(t.TempDir(), "x.xml")})
		if err := p.Execute(context.Background(), run); err == nil {
			t.Fatal("expected error")
		}
		if len(rec.summaries) != 1 || rec.summaries[0].Status != model.RunStatusFailed {
			t.Errorf("expected one failed run recorded, got %+v", rec.summaries)
		}
	})
}
