// Package session owns the cloning session lifecycle.
//
// Machine wraps one session's mutable state behind a mutex and is the
// only place session state changes. Every transition goes through the
// legality table on model.SessionStatus; progress is clamped monotone
// (crawling fills 0 to 90 percent, post-processing the final 10); and
// each mutation is persisted and pushed to subscribers as an event.
//
// Registry is the in-memory session table. It creates machines, adopts
// persisted sessions for recovery, enforces the single-active-execution
// rule, and evicts settled sessions after the retention window.
//
// Runner drives one execution end to end: crawl, post-process, terminal
// transition. Interruption and timeout are handled here so the crawl
// engine never needs to know about session semantics.
package session
