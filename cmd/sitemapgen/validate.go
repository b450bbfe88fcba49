package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitemapgen/internal/model"
	"github.com/nao1215/sitemapgen/internal/sitemap"
)

// errInvalidSitemap is returned when at least one file fails validation.
var errInvalidSitemap = errors.New("invalid sitemap")

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check sitemap files",
		Long: `Validate parses sitemap files and prints the number of URLs in each.

A file is invalid when it is not a well-formed sitemap, when an entry has no
<loc> or a location that is not an absolute http(s) URL, or when it exceeds
the protocol limits of 50,000 URLs or 50MB.

Examples:
  sitemapgen validate sitemap.xml
  sitemapgen validate public/*.xml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), args)
		},
	}
}

func runValidate(out io.Writer, paths []string) error {
	invalid := 0
	for _, path := range paths {
		count, err := validateSitemapFile(path)
		if err != nil {
			invalid++
			fmt.Fprintf(out, "%s: INVALID: %v\n", path, err)
			continue
		}
		fmt.Fprintf(out, "%s: OK (%d URLs)\n", path, count)
	}

	if invalid > 0 {
		return fmt.Errorf("%w: %d of %d file(s)", errInvalidSitemap, invalid, len(paths))
	}
	return nil
}

// validateSitemapFile returns the number of URLs in the sitemap at path.
func validateSitemapFile(path string) (int, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided sitemap path
	if err != nil {
		return 0, err
	}

	locations, err := sitemap.Parse(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	if len(locations) == 0 && !bytes.Contains(data, []byte("<urlset")) {
		return 0, errors.New("no <urlset> element")
	}
	for _, loc := range locations {
		if _, err := model.NormalizeURL(loc, loc); err != nil {
			return 0, fmt.Errorf("location %q is not an absolute URL", loc)
		}
	}
	if err := sitemap.CheckLimits(len(locations), len(data)); err != nil {
		return 0, err
	}
	return len(locations), nil
}
