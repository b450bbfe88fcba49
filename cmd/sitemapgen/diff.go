package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitemapgen/internal/config"
	"github.com/nao1215/sitemapgen/internal/database"
	"github.com/nao1215/sitemapgen/internal/model"
	"github.com/nao1215/sitemapgen/internal/report"
)

// Diff errors.
var (
	// errNotEnoughRuns is returned when a site has fewer than two complete runs.
	errNotEnoughRuns = errors.New("need at least two complete runs to compare")

	// errRunSiteMismatch is returned when --with-run names a run of another site.
	errRunSiteMismatch = errors.New("run belongs to a different site")
)

// NewDiffCmd creates the diff command.
func NewDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff URL",
		Short: "Compare the pages of two runs of a site",
		Long: `Diff shows which pages were added or removed between two recorded runs
of the same start URL.

By default the two most recent complete runs are compared. Use --with-run to
compare an older run against the latest one (see "sitemapgen history" for
run IDs).

Examples:
  sitemapgen diff https://example.org
  sitemapgen diff --with-run 6f1c... https://example.org
  sitemapgen diff --json https://example.org`,
		Args: cobra.ExactArgs(1),
		RunE: runDiffCmd,
	}

	cmd.Flags().StringP("with-run", "i", "", "Compare the latest run with the run with this ID")
	cmd.Flags().BoolP("json", "j", false, "Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the history database")

	return cmd
}

func runDiffCmd(cmd *cobra.Command, args []string) error {
	withRun, err := cmd.Flags().GetString("with-run")
	if err != nil {
		return err
	}
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	root, err := model.ParseStartURL(args[0])
	if err != nil {
		return fmt.Errorf("%w: %q", config.ErrInvalidSiteURL, args[0])
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	d, err := buildDiff(cmd.Context(), db, root, withRun)
	if err != nil {
		return err
	}

	w, err := report.NewWriter(format, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	_, err = w.WriteDiff(d)
	return err
}

// buildDiff compares the latest complete run of root with the previous one,
// or with the run withRun when set.
func buildDiff(ctx context.Context, db *database.HistoryDB, root model.CanonicalURL, withRun string) (*report.Diff, error) {
	runs, err := db.ListCompleteRuns(ctx, root.String(), 2)
	if err != nil {
		return nil, err
	}

	var older, newer model.RunSummary
	if withRun != "" {
		base, err := db.GetRun(ctx, withRun)
		if err != nil {
			return nil, err
		}
		if base.StartURL != root.String() {
			return nil, fmt.Errorf("%w: %s crawled %s", errRunSiteMismatch, base.ID, base.StartURL)
		}
		if len(runs) == 0 || runs[0].ID == base.ID {
			return nil, fmt.Errorf("%w: no complete run of %s newer than %s", errNotEnoughRuns, root, base.ID)
		}
		older, newer = *base, runs[0]
	} else {
		if len(runs) < 2 {
			return nil, fmt.Errorf("%w: %s has %d", errNotEnoughRuns, root, len(runs))
		}
		older, newer = runs[1], runs[0]
	}

	olderURLs, err := db.GetRunURLs(ctx, older.ID)
	if err != nil {
		return nil, err
	}
	newerURLs, err := db.GetRunURLs(ctx, newer.ID)
	if err != nil {
		return nil, err
	}

	return &report.Diff{
		StartURL: root.String(),
		Older:    older,
		Newer:    newer,
		Changes:  model.DiffURLs(olderURLs, newerURLs),
	}, nil
}
