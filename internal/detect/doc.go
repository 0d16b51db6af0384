// Package detect infers which frontend build tool produced a site.
//
// # Architecture
//
// Detection runs a fixed set of independent per-tool detectors over the
// signals collected from the entry page (runtime-global markers, the
// ordered script URL list, the meta generator tag). Each detector reports
// a confidence in [0,1] together with the evidence strings that produced
// it. The highest confidence wins; ties are broken by specificity rank,
// preferring bundler-output markers over framework markers because a
// framework can be hosted by multiple bundlers.
//
// Design decision: Detectors are independent rather than a single decision
// tree because:
//  1. Each tool's fingerprint evolves on its own schedule
//  2. Independent scores make the tie-break policy auditable in isolation
//  3. New tools are added without touching existing detectors
//
// If no detector reaches its threshold the result is {unknown, 0}. The
// caller (the session) freezes the first above-threshold result; later
// pages must never downgrade or flip it.
package detect
