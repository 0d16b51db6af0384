// Package database provides SQLite-based persistence for cloning sessions.
//
// Persistence exists for one reason: recovery. Session snapshots and
// per-asset records are written as the crawl runs, so a client that lost
// its connection, or a server that restarted, can offer resumption from
// the last recorded state. On startup, sessions left in an active state
// by a crash are marked interrupted so they become resumable instead of
// stuck.
//
// The store uses modernc.org/sqlite (pure Go, no cgo) with WAL enabled
// and a single write connection, which matches SQLite's one-writer model.
package database
