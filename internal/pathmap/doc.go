// Package pathmap computes the on-disk relative path for every
// discovered asset so the output tree mirrors the detected build tool's
// directory conventions.
//
// # Architecture
//
// Per-tool conventions are table-driven: a static lookup keyed by build
// tool and asset type yields a directory template, with a declared
// fallback entry for unknown tools that buckets by asset type
// (assets/<type>/<filename>). Keeping the table static makes the
// fallback and tie-break policy auditable and testable in isolation from
// the crawl loop.
//
// The Mapper guards a per-session URL->path table: once a source URL is
// assigned a local path the mapping is frozen for the session, and the
// table stays a bijection (two URLs never share a path; collisions get a
// numeric discriminator suffix).
package pathmap
