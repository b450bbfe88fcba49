package model

import (
	"errors"
	"net/url"
	"strings"
)

// ErrMalformedURL is returned when a link reference cannot be turned into a
// canonical URL. Callers drop the offending link and keep crawling.
var ErrMalformedURL = errors.New("malformed URL")

// CanonicalURL is an absolute http(s) URL with the query string and fragment
// removed. Two references that normalize to the same CanonicalURL are the
// same page for crawl purposes.
//
// The canonical form also lower-cases the scheme and host and writes an empty
// path as "/", so "https://Example.org" and "https://example.org/" collapse
// into one entry.
type CanonicalURL string

// NormalizeURL resolves reference against base and returns its canonical form.
// Relative, protocol-relative and absolute references are supported.
//
// ErrMalformedURL is returned when either input does not parse, or when the
// resolved URL is not an absolute http(s) URL with a host (mailto:, javascript:
// and similar references end up here too).
func NormalizeURL(reference, base string) (CanonicalURL, error) {
	baseURL, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", errors.Join(ErrMalformedURL, err)
	}

	ref, err := url.Parse(strings.TrimSpace(reference))
	if err != nil {
		return "", errors.Join(ErrMalformedURL, err)
	}

	resolved := baseURL.ResolveReference(ref)

	resolved.Scheme = strings.ToLower(resolved.Scheme)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", ErrMalformedURL
	}
	if resolved.Host == "" || resolved.Opaque != "" {
		return "", ErrMalformedURL
	}
	resolved.Host = strings.ToLower(resolved.Host)

	resolved.RawQuery = ""
	resolved.ForceQuery = false
	resolved.Fragment = ""
	resolved.RawFragment = ""
	if resolved.Path == "" {
		resolved.Path = "/"
		resolved.RawPath = ""
	}

	// The canonical form must parse back to itself.
	canonical := resolved.String()
	if _, err := url.Parse(canonical); err != nil {
		return "", errors.Join(ErrMalformedURL, err)
	}

	return CanonicalURL(canonical), nil
}

// MustNormalizeURL is like NormalizeURL but panics on error.
// It is intended for tests and package-level fixtures.
func MustNormalizeURL(reference, base string) CanonicalURL {
	u, err := NormalizeURL(reference, base)
	if err != nil {
		panic(err)
	}
	return u
}

// ParseStartURL canonicalizes a crawl start URL given on its own.
// A missing scheme defaults to https, so "example.org" becomes
// "https://example.org/".
func ParseStartURL(raw string) (CanonicalURL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMalformedURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return NormalizeURL(raw, raw)
}

// InScope reports whether u belongs to the crawl rooted at root.
// Scope is a plain string prefix match: a root of "https://site.org/docs"
// admits "https://site.org/docs/a" and also "https://site.org/docs-old".
func (u CanonicalURL) InScope(root CanonicalURL) bool {
	return root != "" && strings.HasPrefix(string(u), string(root))
}

// Host returns the host part of the URL, or "" if it cannot be parsed.
func (u CanonicalURL) Host() string {
	parsed, err := url.Parse(string(u))
	if err != nil {
		return ""
	}
	return parsed.Host
}

// String implements fmt.Stringer.
func (u CanonicalURL) String() string {
	return string(u)
}
