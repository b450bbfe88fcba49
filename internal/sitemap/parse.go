package sitemap

import (
	"errors"
	"fmt"
	"io"

	parser "github.com/oxffaa/gopher-parse-sitemap"
)

// ErrEmptyLocation is returned by Parse for a <url> entry without <loc>.
var ErrEmptyLocation = errors.New("sitemap entry has no location")

// Parse reads a sitemap document and returns its <loc> values in document
// order.
func Parse(r io.Reader) ([]string, error) {
	locations := make([]string, 0)
	err := parser.Parse(r, func(entry parser.Entry) error {
		loc := entry.GetLocation()
		if loc == "" {
			return ErrEmptyLocation
		}
		locations = append(locations, loc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse sitemap: %w", err)
	}
	return locations, nil
}
