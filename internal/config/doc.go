// Package config provides the configuration of a sitemapgen run: global crawl
// settings from CLI flags, the list of sites from arguments or the
// .sitemapgen YAML file, and the default locations of output files and the
// run history database.
package config
