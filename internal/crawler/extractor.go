package crawler

import (
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/sitemapgen/internal/model"
)

// ExtractLinks parses content as HTML and returns the canonical form of every
// <a href> that lies within the crawl rooted at root.
//
// References are resolved against base, the URL of the page being parsed.
// Anchors without an href, with a blank href, or whose href does not
// normalize are skipped silently. The result is de-duplicated and sorted.
//
// An error is returned only when content cannot be read.
func ExtractLinks(content io.Reader, base, root model.CanonicalURL) ([]model.CanonicalURL, error) {
	node, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	found := make(map[model.CanonicalURL]struct{})
	goquery.NewDocumentFromNode(node).Find("a").Each(func(_ int, anchor *goquery.Selection) {
		href, exists := anchor.Attr("href")
		if !exists || strings.TrimSpace(href) == "" {
			return
		}

		link, err := model.NormalizeURL(href, base.String())
		if err != nil {
			return
		}
		if !link.InScope(root) {
			return
		}
		found[link] = struct{}{}
	})

	return slices.Sorted(maps.Keys(found)), nil
}
