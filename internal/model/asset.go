package model

import (
	"strings"
	"time"
)

// assetTypeOtherStr is the string representation for unrecognized asset types.
const assetTypeOtherStr = "other"

// AssetType categorizes a downloadable resource discovered during a crawl.
// The set is closed: classification never invents new categories, and
// anything unrecognized maps to AssetTypeOther.
type AssetType string

// Asset type constants.
const (
	// AssetType3DModel represents 3D model containers (glTF, GLB, FBX, OBJ, USDZ).
	AssetType3DModel AssetType = "3d-model"
	// AssetTypeEnvironmentMap represents HDR environment/lighting maps (HDR, EXR).
	AssetTypeEnvironmentMap AssetType = "environment-map"
	// AssetTypeTexture represents GPU texture containers (KTX, KTX2, DDS, Basis).
	AssetTypeTexture AssetType = "texture"
	// AssetTypeVideo represents video files.
	AssetTypeVideo AssetType = "video"
	// AssetTypeAudio represents audio files.
	AssetTypeAudio AssetType = "audio"
	// AssetTypeImage represents ordinary web images (PNG, JPEG, GIF, SVG, WebP).
	AssetTypeImage AssetType = "image"
	// AssetTypeJavaScript represents script files.
	AssetTypeJavaScript AssetType = "javascript"
	// AssetTypeStylesheet represents CSS files.
	AssetTypeStylesheet AssetType = "stylesheet"
	// AssetTypeHTML represents page markup.
	AssetTypeHTML AssetType = "html"
	// AssetTypeFont represents web font files (WOFF, WOFF2, TTF, OTF, EOT).
	AssetTypeFont AssetType = "font"
	// AssetTypeOther represents anything that did not match a known category.
	AssetTypeOther AssetType = "other"
)

// String returns the string representation of the AssetType.
func (t AssetType) String() string {
	if t == "" {
		return assetTypeOtherStr
	}
	return string(t)
}

// IsValid returns true if this is a known asset type.
func (t AssetType) IsValid() bool {
	switch t {
	case AssetType3DModel, AssetTypeEnvironmentMap, AssetTypeTexture,
		AssetTypeVideo, AssetTypeAudio, AssetTypeImage, AssetTypeJavaScript,
		AssetTypeStylesheet, AssetTypeHTML, AssetTypeFont, AssetTypeOther:
		return true
	default:
		return false
	}
}

// ParseAssetType converts a string to an AssetType.
// Unrecognized values map to AssetTypeOther rather than failing, matching
// the classifier's never-fails contract.
func ParseAssetType(s string) AssetType {
	t := AssetType(strings.ToLower(strings.TrimSpace(s)))
	if t.IsValid() {
		return t
	}
	return AssetTypeOther
}

// AllAssetTypes returns every member of the closed taxonomy.
// The order is stable and used for report sections and option parsing.
func AllAssetTypes() []AssetType {
	return []AssetType{
		AssetType3DModel, AssetTypeEnvironmentMap, AssetTypeTexture,
		AssetTypeVideo, AssetTypeAudio, AssetTypeImage, AssetTypeJavaScript,
		AssetTypeStylesheet, AssetTypeHTML, AssetTypeFont, AssetTypeOther,
	}
}

// DownloadStatus records the outcome of an asset download attempt.
type DownloadStatus string

// Download status constants.
const (
	// DownloadPending means the asset has been discovered but not yet fetched.
	DownloadPending DownloadStatus = "pending"
	// DownloadComplete means the asset was fetched and written to disk.
	DownloadComplete DownloadStatus = "downloaded"
	// DownloadFailed means the fetch failed; FailureReason explains why.
	DownloadFailed DownloadStatus = "failed"
	// DownloadAbandoned means the session was cancelled while the fetch was
	// in flight. Distinct from failed so resumption can retry these.
	DownloadAbandoned DownloadStatus = "abandoned"
)

// DiscoveredAsset is a single resource found while crawling.
// Identity is the canonical source URL, unique within a session.
//
// Invariant: LocalPath is assigned exactly once. Later pages may produce a
// different build-tool guess, but the path mapping is frozen with the
// session's fingerprint and never recomputed.
type DiscoveredAsset struct {
	// SourceURL is the absolute URL the asset was fetched from.
	SourceURL string `json:"sourceUrl"`

	// Type is the classified asset category.
	Type AssetType `json:"type"`

	// Subtype refines Type where the distinction matters, e.g. an image
	// that byte-sniffing identified as a texture atlas ("texture"), or a
	// script recognized as a framework runtime chunk ("runtime-chunk").
	Subtype string `json:"subtype,omitempty"`

	// ContentType is the Content-Type header the server declared.
	ContentType string `json:"contentType,omitempty"`

	// Size is the downloaded byte size. Zero until the download completes.
	Size int64 `json:"size"`

	// DiscoveredAt is when the asset was first referenced by any page.
	DiscoveredAt time.Time `json:"discoveredAt"`

	// Status is the download outcome.
	Status DownloadStatus `json:"status"`

	// FailureReason holds the terminal failure description when Status is
	// failed. Kept for diagnostics; failed assets are never deleted from
	// the session.
	FailureReason string `json:"failureReason,omitempty"`

	// LocalPath is the relative path under the session output root.
	LocalPath string `json:"localPath"`

	// ContentHash is the SHA3-256 hex digest of the downloaded bytes.
	// Used for change detection when resuming a session.
	ContentHash string `json:"contentHash,omitempty"`

	// FrameworkHints holds framework-marker strings observed on the page
	// that referenced this asset (e.g. "vite-client", "webpack-chunk").
	FrameworkHints []string `json:"frameworkHints,omitempty"`
}

// Downloaded reports whether the asset made it to disk.
func (a *DiscoveredAsset) Downloaded() bool {
	return a.Status == DownloadComplete
}
