package sitemap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/nao1215/sitemapgen/internal/model"
)

// Namespace is the XML namespace of the sitemap protocol.
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// Protocol limits for a single sitemap file.
const (
	// MaxEntries is the maximum number of <url> entries in one file.
	MaxEntries = 50000

	// MaxBytes is the maximum uncompressed size of one file.
	MaxBytes = 50 * 1024 * 1024 // 50MiB
)

// ErrLimitExceeded is returned by CheckLimits when a document is larger than
// the protocol allows.
var ErrLimitExceeded = errors.New("sitemap exceeds protocol limits")

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	Xmlns   string     `xml:"xmlns,attr"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc string `xml:"loc"`
}

// Encode returns the sitemap document for urls.
// The entries are sorted so the same set always yields the same bytes.
func Encode(urls []model.CanonicalURL) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, urls); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes the sitemap document for urls to w.
func Write(w io.Writer, urls []model.CanonicalURL) error {
	sorted := slices.Clone(urls)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	set := urlSet{
		Xmlns: Namespace,
		URLs:  make([]urlEntry, 0, len(sorted)),
	}
	for _, u := range sorted {
		set.URLs = append(set.URLs, urlEntry{Loc: u.String()})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return fmt.Errorf("failed to encode sitemap: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush sitemap: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("failed to write sitemap: %w", err)
	}
	return nil
}

// CheckLimits reports ErrLimitExceeded when a document with entries URLs and
// size bytes breaks the single-file limits.
func CheckLimits(entries, size int) error {
	if entries > MaxEntries {
		return fmt.Errorf("%w: %d entries (max %d)", ErrLimitExceeded, entries, MaxEntries)
	}
	if size > MaxBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrLimitExceeded, size, MaxBytes)
	}
	return nil
}
