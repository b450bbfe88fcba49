package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitemapgen/internal/config"
	"github.com/nao1215/sitemapgen/internal/database"
	"github.com/nao1215/sitemapgen/internal/model"
	"github.com/nao1215/sitemapgen/internal/report"
)

// errConflictingFormats is returned when more than one output format is requested.
var errConflictingFormats = errors.New("--json and --markdown are mutually exclusive")

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [URL]",
		Short: "Show recorded sitemap runs",
		Long: `History lists the runs recorded by generate, newest first.

Without a URL every site is listed. With a URL only runs of that start URL
are shown.

Examples:
  # Latest runs of every site
  sitemapgen history

  # Runs of one site as Markdown
  sitemapgen history --markdown https://example.org

  # Sites with recorded runs
  sitemapgen history --sites

  # Pages that could not be fetched in a run
  sitemapgen history --failures <run-id>

  # Remove a run
  sitemapgen history --delete <run-id>`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show (0 = all)")
	cmd.Flags().BoolP("sites", "L", false, "List the sites with recorded runs")
	cmd.Flags().String("failures", "", "List the failed pages of the run with this ID")
	cmd.Flags().String("delete", "", "Delete the run with this ID")
	cmd.Flags().BoolP("json", "j", false, "Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the history database")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	listSites, err := flags.GetBool("sites")
	if err != nil {
		return err
	}
	failuresOf, err := flags.GetString("failures")
	if err != nil {
		return err
	}
	deleteID, err := flags.GetString("delete")
	if err != nil {
		return err
	}
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case deleteID != "":
		if err := db.DeleteRun(ctx, deleteID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted run %s\n", deleteID)
		return nil
	case failuresOf != "":
		return showFailures(ctx, db, out, failuresOf)
	case listSites:
		return showSites(ctx, db, out)
	}

	startURL := ""
	title := "Sitemap History"
	if len(args) == 1 {
		root, err := model.ParseStartURL(args[0])
		if err != nil {
			return fmt.Errorf("%w: %q", config.ErrInvalidSiteURL, args[0])
		}
		startURL = root.String()
		title = "Sitemap History: " + startURL
	}

	runs, err := db.ListRuns(ctx, startURL, limit)
	if err != nil {
		return err
	}

	w, err := report.NewWriter(format, out)
	if err != nil {
		return err
	}
	if format == report.FormatText {
		w = report.NewSimpleWriter(out, report.WithVerbose(true))
	}
	_, err = w.WriteRuns(title, runs)
	return err
}

// outputFormat maps the --json and --markdown flags to a report format.
func outputFormat(cmd *cobra.Command) (string, error) {
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return "", err
	}
	asMarkdown, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return "", err
	}

	switch {
	case asJSON && asMarkdown:
		return "", errConflictingFormats
	case asJSON:
		return report.FormatJSON, nil
	case asMarkdown:
		return report.FormatMarkdown, nil
	default:
		return report.FormatText, nil
	}
}

func showSites(ctx context.Context, db *database.HistoryDB, out io.Writer) error {
	sites, err := db.ListSites(ctx)
	if err != nil {
		return err
	}
	if len(sites) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}
	for _, site := range sites {
		fmt.Fprintln(out, site)
	}
	return nil
}

func showFailures(ctx context.Context, db *database.HistoryDB, out io.Writer, id string) error {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}
	failures, err := db.GetRunFailures(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run %s of %s: %d of %d page(s) failed\n", run.ID, run.StartURL, len(failures), run.PageCount)
	for _, f := range failures {
		fmt.Fprintf(out, "  %s: %s\n", f.URL, f.Error)
	}
	return nil
}
