// Package sitemap encodes and decodes sitemap documents in the
// sitemaps.org 0.9 XML format.
//
// Encode and Write turn a crawl's visited set into a <urlset> document with
// one <url><loc> entry per page. Parse reads the <loc> values of an existing
// document back, which is used to validate written files.
package sitemap
