// Package main provides the entry point for the sitemapgen CLI.
//
// sitemapgen crawls websites from a start URL, follows every in-scope link
// and writes the discovered pages as an XML sitemap.
//
// Usage:
//
//	sitemapgen generate https://example.org
//	sitemapgen generate -c sites.yaml
//
// See --help for all available options.
package main

func main() {
	Execute()
}
