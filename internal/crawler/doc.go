// Package crawler implements the page traversal and asset download engine.
//
// A crawl is a breadth-first walk over same-host pages up to a configured
// depth. The entry page doubles as the fingerprinting sample: its build
// tool signals are extracted and frozen before any asset path is assigned,
// so every downloaded asset lands under one consistent directory scheme.
//
// Asset downloads run on a bounded worker pool (errgroup with SetLimit)
// fed by the page walker. Each failure is recorded on the asset and the
// crawl continues; only page-level failures on the entry page abort a
// session.
//
// The engine pushes progress, asset, and fingerprint notifications
// through a Reporter interface. The session state machine implements it
// and owns ordering guarantees; the engine just reports what happened.
package crawler
