package model

import "time"

// EventType tags a push-channel event.
type EventType string

// Event type constants. These are the wire-level "type" values sent to
// clients, so renaming any of them is a protocol change.
const (
	// EventStatusUpdate announces a session status transition.
	EventStatusUpdate EventType = "status_update"
	// EventProgressUpdate announces a new progress percentage.
	EventProgressUpdate EventType = "progress_update"
	// EventAssetFound announces a classified, mapped asset.
	EventAssetFound EventType = "asset_found"
	// EventConnectionStatus reports push-channel connectivity changes.
	EventConnectionStatus EventType = "connection_status"
	// EventSessionNotFound answers recovery requests for unknown or
	// expired session identifiers.
	EventSessionNotFound EventType = "session_not_found"
	// EventSessionRecoveryAvailable offers resumption of an interrupted
	// session.
	EventSessionRecoveryAvailable EventType = "session_recovery_available"
	// EventSessionResumed confirms a resume request took effect.
	EventSessionResumed EventType = "session_resumed"
	// EventSessionResumeFailed reports that a resume request could not be
	// honored; the session stays interrupted.
	EventSessionResumeFailed EventType = "session_resume_failed"
)

// Event is a single push-channel notification.
//
// Events are ephemeral: they live on the channel and in the bounded
// activity history kept for UI replay, nowhere else. Each event is
// self-contained (it names its session and, for asset events, its asset)
// so consumers never depend on arrival order. Progress values within a
// session are non-decreasing.
type Event struct {
	// Type tags the event.
	Type EventType `json:"type"`

	// SessionID identifies the session the event belongs to.
	SessionID string `json:"sessionId"`

	// EmittedAt orders events within a session.
	EmittedAt time.Time `json:"emittedAt"`

	// Status is set on status_update events.
	Status SessionStatus `json:"status,omitempty"`

	// Progress is set on progress_update and recovery events.
	Progress float64 `json:"progress,omitempty"`

	// Asset is set on asset_found events.
	Asset *DiscoveredAsset `json:"asset,omitempty"`

	// URL is set on recovery events (the session's root URL).
	URL string `json:"url,omitempty"`

	// TotalAssets is set on session_recovery_available events.
	TotalAssets int `json:"totalAssets,omitempty"`

	// Error carries human-readable failure text on error, timeout, and
	// resume-failed events.
	Error string `json:"error,omitempty"`
}

// NewStatusEvent builds a status_update event for the given session.
func NewStatusEvent(sessionID string, status SessionStatus, errText string) Event {
	return Event{
		Type:      EventStatusUpdate,
		SessionID: sessionID,
		EmittedAt: time.Now(),
		Status:    status,
		Error:     errText,
	}
}

// NewProgressEvent builds a progress_update event for the given session.
func NewProgressEvent(sessionID string, progress float64) Event {
	return Event{
		Type:      EventProgressUpdate,
		SessionID: sessionID,
		EmittedAt: time.Now(),
		Progress:  progress,
	}
}

// NewAssetEvent builds an asset_found event carrying a copy of the asset.
func NewAssetEvent(sessionID string, asset DiscoveredAsset) Event {
	return Event{
		Type:      EventAssetFound,
		SessionID: sessionID,
		EmittedAt: time.Now(),
		Asset:     &asset,
	}
}
