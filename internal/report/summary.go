package report

import (
	"sort"
	"time"

	"github.com/siteclone/siteclone/internal/model"
)

// Summary is the report-ready view of a finished (or settled) session.
type Summary struct {
	// SessionID identifies the session.
	SessionID string `json:"sessionId"`

	// URL is the cloned root URL.
	URL string `json:"url"`

	// GeneratedAt is when the summary was assembled.
	GeneratedAt time.Time `json:"generatedAt"`

	// Status is the session's final lifecycle state.
	Status model.SessionStatus `json:"status"`

	// Fingerprint is the frozen build-tool detection result.
	Fingerprint model.Fingerprint `json:"fingerprint"`

	// PagesVisited is the number of pages fetched.
	PagesVisited int `json:"pagesVisited"`

	// AssetsFound is the total number of discovered assets.
	AssetsFound int `json:"assetsFound"`

	// AssetsDownloaded is the number written to disk.
	AssetsDownloaded int `json:"assetsDownloaded"`

	// AssetsFailed is the number with a terminal failure.
	AssetsFailed int `json:"assetsFailed"`

	// SkippedLinks counts links beyond the depth limit.
	SkippedLinks int `json:"skippedLinks"`

	// Duration is wall-clock time from start to settlement.
	Duration time.Duration `json:"duration"`

	// TypeCounts breaks downloaded assets down by type.
	TypeCounts map[model.AssetType]int `json:"typeCounts"`

	// Failures lists every failed asset with its reason.
	Failures []AssetFailure `json:"failures,omitempty"`

	// Error is the session-level failure text, if the session did not
	// complete.
	Error string `json:"error,omitempty"`
}

// AssetFailure is one failed download in the summary.
type AssetFailure struct {
	// SourceURL is the asset that failed.
	SourceURL string `json:"sourceUrl"`

	// Reason is the recorded failure description.
	Reason string `json:"reason"`
}

// Complete reports whether the session finished cleanly.
func (s *Summary) Complete() bool {
	return s.Status == model.StatusCompleted
}

// NewSummary assembles a Summary from a session snapshot, its assets,
// and the crawl result.
func NewSummary(session model.Session, assets []model.DiscoveredAsset, result model.CloningResult) *Summary {
	s := &Summary{
		SessionID:        session.ID,
		URL:              session.URL,
		GeneratedAt:      time.Now(),
		Status:           session.Status,
		Fingerprint:      session.Fingerprint,
		PagesVisited:     result.PagesVisited,
		AssetsFound:      result.AssetsFound,
		AssetsDownloaded: result.AssetsDownloaded,
		AssetsFailed:     result.AssetsFailed,
		SkippedLinks:     result.SkippedLinks,
		TypeCounts:       make(map[model.AssetType]int),
		Error:            session.LastError,
	}

	end := time.Now()
	if session.CompletedAt != nil {
		end = *session.CompletedAt
	}
	if !session.StartedAt.IsZero() {
		s.Duration = end.Sub(session.StartedAt)
	}

	for _, a := range assets {
		switch a.Status {
		case model.DownloadComplete:
			s.TypeCounts[a.Type]++
		case model.DownloadFailed:
			s.Failures = append(s.Failures, AssetFailure{
				SourceURL: a.SourceURL,
				Reason:    a.FailureReason,
			})
		}
	}

	sort.Slice(s.Failures, func(i, j int) bool {
		return s.Failures[i].SourceURL < s.Failures[j].SourceURL
	})

	return s
}

// typeOrder returns the asset types with downloads, in taxonomy order.
func (s *Summary) typeOrder() []model.AssetType {
	out := make([]model.AssetType, 0, len(s.TypeCounts))
	for _, t := range model.AllAssetTypes() {
		if s.TypeCounts[t] > 0 {
			out = append(out, t)
		}
	}
	return out
}
