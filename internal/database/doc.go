// Package database stores the history of sitemap runs in SQLite
// (modernc.org/sqlite, no cgo).
//
// Each run keeps its summary, the full list of visited URLs and the failed
// fetches, so later runs of the same site can be listed and compared.
// Nothing here influences a crawl: every run starts from an empty visited set.
package database
