package server

import (
	"fmt"

	"github.com/siteclone/siteclone/internal/config"
	"github.com/siteclone/siteclone/internal/model"
)

// MessageType tags an inbound client message.
type MessageType string

// Inbound message type constants. Wire-level values; renaming any of
// them is a protocol change.
const (
	// MessageCloneRequest starts a new cloning session.
	MessageCloneRequest MessageType = "clone_request"
	// MessageRecoverSession asks what happened to a session ID.
	MessageRecoverSession MessageType = "recover_session"
	// MessageResumeSession resumes an interrupted session.
	MessageResumeSession MessageType = "resume_session"
	// MessagePauseSession interrupts a running session, keeping it
	// resumable.
	MessagePauseSession MessageType = "pause_session"
	// MessageCancelSession interrupts a session and drops it from the
	// registry.
	MessageCancelSession MessageType = "cancel_session"
)

// ClientMessage is the envelope for every inbound message. Fields
// beyond Type are set per message type.
type ClientMessage struct {
	// Type selects the operation.
	Type MessageType `json:"type"`

	// URL is the root URL for clone_request.
	URL string `json:"url,omitempty"`

	// SessionID identifies the target session for recovery, resume,
	// pause, and cancel.
	SessionID string `json:"sessionId,omitempty"`

	// Options carries crawl options for clone_request.
	Options model.CloneOptions `json:"options,omitempty"`
}

// normalizeOptions validates and defaults clone options against the
// server configuration. Depth outside [1, MaxDepth] and unknown asset
// types are rejected rather than silently clamped, so the client learns
// about its mistake.
func normalizeOptions(cfg *config.Config, opts model.CloneOptions) (model.CloneOptions, error) {
	if opts.Depth == 0 {
		opts.Depth = cfg.Depth
	}
	if opts.Depth < 1 || opts.Depth > config.MaxDepth {
		return opts, fmt.Errorf("depth %d outside [1, %d]", opts.Depth, config.MaxDepth)
	}

	for _, t := range opts.IncludeAssets {
		if !t.IsValid() {
			return opts, fmt.Errorf("unknown asset type %q", string(t))
		}
	}
	for _, f := range opts.ExportFormats {
		if !f.IsValid() {
			return opts, fmt.Errorf("unknown export format %q", string(f))
		}
	}
	return opts, nil
}
