// Package report renders clone summaries in multiple output formats.
//
// A Summary is assembled from the finished session (fingerprint, counts,
// per-type asset breakdown, failures) and handed to one or more Writers.
// Markdown is the primary format and lands in the clone output directory
// next to the cloned files; JSON feeds tooling; the text writer serves
// terminal output for the one-shot clone command.
package report
