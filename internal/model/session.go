package model

import (
	"time"
)

// ExportFormat names a packaging format requested for a finished clone.
// Packaging itself is an external collaborator; the core only records
// and passes these through.
type ExportFormat string

// Export format constants.
const (
	// ExportZip packages the output tree as a zip archive.
	ExportZip ExportFormat = "zip"
	// ExportContainer packages the output tree as a container image build
	// context.
	ExportContainer ExportFormat = "container"
	// ExportIDEProject packages the output tree as an editor-ready project.
	ExportIDEProject ExportFormat = "ide-project"
)

// IsValid returns true if this is a known export format.
func (f ExportFormat) IsValid() bool {
	switch f {
	case ExportZip, ExportContainer, ExportIDEProject:
		return true
	default:
		return false
	}
}

// CloneOptions are the validated per-session crawl options.
// Validation and sanitization happen before the request reaches the core;
// these values are trusted here.
type CloneOptions struct {
	// Depth is the maximum page-link recursion depth, at least 1.
	Depth int `json:"depth" yaml:"depth"`

	// IncludeAssets restricts downloads to the listed types. Empty means
	// all types.
	IncludeAssets []AssetType `json:"includeAssets,omitempty" yaml:"include_assets,omitempty"`

	// OptimizeImages enables the image optimization post-processing step.
	OptimizeImages bool `json:"optimizeImages" yaml:"optimize_images"`

	// GenerateServiceWorker enables offline service-worker generation.
	GenerateServiceWorker bool `json:"generateServiceWorker" yaml:"generate_service_worker"`

	// ExportFormats lists the packaging formats handed to the export
	// collaborator after completion.
	ExportFormats []ExportFormat `json:"exportFormat,omitempty" yaml:"export_formats,omitempty"`
}

// Wants reports whether the options include the given asset type.
// An empty IncludeAssets set means everything is wanted.
func (o CloneOptions) Wants(t AssetType) bool {
	if len(o.IncludeAssets) == 0 {
		return true
	}
	for _, inc := range o.IncludeAssets {
		if inc == t {
			return true
		}
	}
	return false
}

// Session is one end-to-end cloning job.
//
// The struct is a plain snapshot: all mutation goes through the session
// state machine, which owns locking and transition legality. Copies of
// this struct are what cross package boundaries (events, database rows,
// recovery responses).
type Session struct {
	// ID is the session identifier (UUID string).
	ID string `json:"id"`

	// URL is the root URL being cloned.
	URL string `json:"url"`

	// Status is the lifecycle state.
	Status SessionStatus `json:"status"`

	// Progress is the percentage in [0,100]. Monotonically non-decreasing
	// within a session except on explicit reset.
	Progress float64 `json:"progress"`

	// AssetCount is the number of assets discovered so far.
	AssetCount int `json:"assetCount"`

	// PagesVisited is the number of pages fetched so far.
	PagesVisited int `json:"pagesVisited"`

	// StartedAt is when the session entered starting.
	StartedAt time.Time `json:"startedAt"`

	// CompletedAt is when the session reached a terminal state, if it has.
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// LastError is the most recent fatal or timeout message, if any.
	LastError string `json:"lastError,omitempty"`

	// Options are the crawl options the session was created with.
	Options CloneOptions `json:"options"`

	// Fingerprint is the frozen build-tool detection result. Zero value
	// until depth-0 crawling completes.
	Fingerprint Fingerprint `json:"fingerprint"`

	// OutputRoot is the absolute directory the clone is written under.
	// Owned exclusively by this session.
	OutputRoot string `json:"outputRoot"`
}

// Resumable reports whether the session can be offered for resumption.
func (s *Session) Resumable() bool {
	return s.Status == StatusInterrupted
}

// CloningResult is the terminal result handed to export/packaging
// collaborators when a crawl drains its work queue.
type CloningResult struct {
	// SessionID identifies the session the result belongs to.
	SessionID string `json:"sessionId"`

	// Success is true when the session completed without a fatal error.
	Success bool `json:"success"`

	// AssetsFound is the total number of assets discovered.
	AssetsFound int `json:"assetsFound"`

	// AssetsDownloaded is the number of assets written to disk.
	AssetsDownloaded int `json:"assetsDownloaded"`

	// AssetsFailed is the number of assets with a terminal failure record.
	AssetsFailed int `json:"assetsFailed"`

	// PagesVisited is the number of pages fetched.
	PagesVisited int `json:"pagesVisited"`

	// SkippedLinks counts page links recorded beyond the depth limit.
	SkippedLinks int `json:"skippedLinks"`

	// Error is the page-level fatal error text, if the crawl aborted.
	Error string `json:"error,omitempty"`
}
