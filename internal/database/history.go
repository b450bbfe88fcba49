package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitemapgen/internal/model"
)

// DBFileName is the file name of the history database inside its directory.
const DBFileName = "sitemapgen.db"

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// timestampLayout has a fixed width so stored values sort as text.
const timestampLayout = "2006-01-02 15:04:05.000000000"

// HistoryDB stores completed site runs: their summary, the visited URLs and
// the failed fetches. It is an audit trail and is never read to skip or
// resume a crawl.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
// With CreateIfNotExists false, a missing database is an error.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := dbPath + "?mode=" + mode + "&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; parallel site runs share one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return hdb, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		start_url TEXT NOT NULL,
		output TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		page_count INTEGER NOT NULL DEFAULT 0,
		failed_count INTEGER NOT NULL DEFAULT 0,
		truncated INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_start_url ON runs(start_url);

	CREATE TABLE IF NOT EXISTS run_urls (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		PRIMARY KEY (run_id, url)
	);

	CREATE TABLE IF NOT EXISTS run_failures (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		error TEXT NOT NULL,
		PRIMARY KEY (run_id, url)
	);
	`
	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a run together with its crawl result in one transaction.
// result may be nil for runs that failed before crawling.
func (h *HistoryDB) SaveRun(ctx context.Context, summary model.RunSummary, result *model.CrawlResult) (err error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, start_url, output, status, error, page_count, failed_count, truncated, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		summary.ID,
		summary.StartURL,
		summary.Output,
		summary.Status.String(),
		summary.Error,
		summary.PageCount,
		summary.FailedCount,
		summary.Truncated,
		formatTimestamp(summary.StartedAt),
		formatTimestamp(summary.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if result != nil {
		if err = insertURLs(ctx, tx, summary.ID, result.Visited); err != nil {
			return err
		}
		if err = insertFailures(ctx, tx, summary.ID, result.Failures); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

func insertURLs(ctx context.Context, tx *sql.Tx, runID string, urls []model.CanonicalURL) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO run_urls (run_id, url) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare url insert: %w", err)
	}
	defer stmt.Close()

	for _, u := range urls {
		if _, err := stmt.ExecContext(ctx, runID, u.String()); err != nil {
			return fmt.Errorf("failed to insert url %s: %w", u, err)
		}
	}
	return nil
}

func insertFailures(ctx context.Context, tx *sql.Tx, runID string, failures []model.FetchFailure) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO run_failures (run_id, url, error) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare failure insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range failures {
		if _, err := stmt.ExecContext(ctx, runID, f.URL.String(), f.Error); err != nil {
			return fmt.Errorf("failed to insert failure %s: %w", f.URL, err)
		}
	}
	return nil
}

const runColumns = `id, start_url, output, status, error, page_count, failed_count, truncated, started_at, finished_at`

// ListRuns returns recorded runs, newest first.
// An empty startURL lists every site. limit <= 0 means no limit.
func (h *HistoryDB) ListRuns(ctx context.Context, startURL string, limit int) ([]model.RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	args := make([]any, 0, 2)

	if startURL != "" {
		query += " AND start_url = ?"
		args = append(args, startURL)
	}
	query += " ORDER BY seq DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.RunSummary, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListCompleteRuns is ListRuns restricted to runs that wrote a sitemap.
func (h *HistoryDB) ListCompleteRuns(ctx context.Context, startURL string, limit int) ([]model.RunSummary, error) {
	runs, err := h.ListRuns(ctx, startURL, 0)
	if err != nil {
		return nil, err
	}

	complete := make([]model.RunSummary, 0, len(runs))
	for _, run := range runs {
		if run.Status != model.RunStatusComplete {
			continue
		}
		complete = append(complete, run)
		if limit > 0 && len(complete) == limit {
			break
		}
	}
	return complete, nil
}

// GetRun returns the run with the given ID, or ErrRunNotFound.
func (h *HistoryDB) GetRun(ctx context.Context, id string) (*model.RunSummary, error) {
	row := h.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRunURLs returns the visited URLs of a run, sorted.
func (h *HistoryDB) GetRunURLs(ctx context.Context, id string) ([]model.CanonicalURL, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT url FROM run_urls WHERE run_id = ? ORDER BY url`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run urls: %w", err)
	}
	defer rows.Close()

	urls := make([]model.CanonicalURL, 0)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		urls = append(urls, model.CanonicalURL(u))
	}
	return urls, rows.Err()
}

// GetRunFailures returns the failed fetches of a run, sorted by URL.
func (h *HistoryDB) GetRunFailures(ctx context.Context, id string) ([]model.FetchFailure, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT url, error FROM run_failures WHERE run_id = ? ORDER BY url`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run failures: %w", err)
	}
	defer rows.Close()

	failures := make([]model.FetchFailure, 0)
	for rows.Next() {
		var u, msg string
		if err := rows.Scan(&u, &msg); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		failures = append(failures, model.FetchFailure{URL: model.CanonicalURL(u), Error: msg})
	}
	return failures, rows.Err()
}

// ListSites returns every start URL with at least one recorded run.
func (h *HistoryDB) ListSites(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT DISTINCT start_url FROM runs ORDER BY start_url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	sites := make([]string, 0)
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// DeleteRun removes a run and its URLs.
func (h *HistoryDB) DeleteRun(ctx context.Context, id string) error {
	res, err := h.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (model.RunSummary, error) {
	var (
		run        model.RunSummary
		status     string
		startedAt  string
		finishedAt string
	)
	err := row.Scan(
		&run.ID,
		&run.StartURL,
		&run.Output,
		&status,
		&run.Error,
		&run.PageCount,
		&run.FailedCount,
		&run.Truncated,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Status = model.RunStatus(status)
	run.StartedAt = parseTimestamp(startedAt)
	run.FinishedAt = parseTimestamp(finishedAt)
	return run, nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// timestampFormats are tried in order when reading timestamps back.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// parseTimestamp returns the zero time for empty or unknown values.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
