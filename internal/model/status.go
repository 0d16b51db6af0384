package model

// SessionStatus is the lifecycle state of a cloning session.
//
// The machine is:
//
//	starting -> crawling -> processing -> completed
//
// with error and timeout reachable from any active state, interrupted
// reachable from crawling/processing, and resuming bridging
// interrupted back into crawling.
type SessionStatus string

// Session status constants.
const (
	// StatusStarting is the only initial state: the session exists but the
	// root page has not been fetched yet.
	StatusStarting SessionStatus = "starting"
	// StatusCrawling means page traversal and asset downloads are running.
	StatusCrawling SessionStatus = "crawling"
	// StatusProcessing means discovery finished and post-processing
	// (reference rewriting, image optimization, service worker) is running.
	StatusProcessing SessionStatus = "processing"
	// StatusCompleted is terminal: every post-processing step succeeded.
	StatusCompleted SessionStatus = "completed"
	// StatusError is terminal: an unrecoverable page-level failure occurred.
	StatusError SessionStatus = "error"
	// StatusTimeout is terminal: the wall-clock ceiling elapsed. Kept
	// distinct from error so the recovery UI can offer a different remedy.
	StatusTimeout SessionStatus = "timeout"
	// StatusInterrupted means the driving connection or process context was
	// lost mid-session. The only state that preserves a resumable snapshot.
	StatusInterrupted SessionStatus = "interrupted"
	// StatusResuming bridges interrupted back into crawling after an
	// explicit resume request.
	StatusResuming SessionStatus = "resuming"
)

// String returns the string representation of the SessionStatus.
func (s SessionStatus) String() string {
	return string(s)
}

// IsValid returns true if this is a known status.
func (s SessionStatus) IsValid() bool {
	switch s {
	case StatusStarting, StatusCrawling, StatusProcessing, StatusCompleted,
		StatusError, StatusTimeout, StatusInterrupted, StatusResuming:
		return true
	default:
		return false
	}
}

// ParseSessionStatus converts a string to a SessionStatus.
// Unknown strings return an empty (invalid) status.
func ParseSessionStatus(s string) SessionStatus {
	st := SessionStatus(s)
	if st.IsValid() {
		return st
	}
	return SessionStatus("")
}

// Terminal reports whether the session accepts no further asset or
// progress events. Interrupted is deliberately not terminal: it still
// holds a resumable snapshot.
func (s SessionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusTimeout:
		return true
	default:
		return false
	}
}

// Active reports whether work is (or should be) executing for the session.
func (s SessionStatus) Active() bool {
	switch s {
	case StatusStarting, StatusCrawling, StatusProcessing, StatusResuming:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the machine permits moving from s to next.
// This is the single source of truth for the lifecycle; the session
// state machine consults it before every mutation.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case StatusStarting:
		return next == StatusCrawling || next == StatusError || next == StatusTimeout
	case StatusCrawling:
		return next == StatusProcessing || next == StatusError ||
			next == StatusTimeout || next == StatusInterrupted
	case StatusProcessing:
		return next == StatusCompleted || next == StatusError ||
			next == StatusTimeout || next == StatusInterrupted
	case StatusInterrupted:
		return next == StatusResuming
	case StatusResuming:
		// Resume re-enters the crawl loop. A resume that immediately hits a
		// fatal condition may also fail or time out directly.
		return next == StatusCrawling || next == StatusError || next == StatusTimeout
	default:
		// Terminal states accept nothing.
		return false
	}
}
