// Package postprocess transforms a finished crawl output tree into a
// self-contained local clone.
//
// The package is organized as a pipeline of steps executed in sequence
// after the crawl drains: reference rewriting (so saved pages load their
// saved assets), optional image optimization, optional service-worker
// generation, and the on-disk clone report. Steps receive the session
// snapshot, the URL to local-path table, and the asset records, and
// report fractional progress back to the session as they complete.
package postprocess
