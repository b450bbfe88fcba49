// Package report renders the outcome of sitemap runs.
//
// Writers exist for three formats:
//   - SimpleWriter: plain text for the terminal
//   - MarkdownWriter: GitHub-flavored Markdown for sharing
//   - JSONWriter: structured output for other tools
//
// Every writer renders two things: a list of run summaries (printed after
// generate and by the history command) and a URL diff between two runs of
// the same site (printed by the diff command).
package report
