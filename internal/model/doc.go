// Package model defines the core data structures used throughout siteclone.
//
// This package contains the following main types:
//   - AssetType: The closed taxonomy of downloadable asset categories
//   - DiscoveredAsset: A single asset found during a crawl
//   - BuildTool / Fingerprint: The inferred frontend toolchain identity
//   - Session / SessionStatus: One end-to-end cloning job and its lifecycle
//   - Event: Push-channel notifications emitted while a session runs
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (crawler, detect, session, server, report)
// need to use these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for push-channel events
// and database storage.
package model
