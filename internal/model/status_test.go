package model

import "testing"

// TestSessionStatusTransitions tests the lifecycle transition table.
func TestSessionStatusTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from SessionStatus
		to   SessionStatus
		want bool
	}{
		{"starting to crawling", StatusStarting, StatusCrawling, true},
		{"starting to processing skips crawling", StatusStarting, StatusProcessing, false},
		{"crawling to processing", StatusCrawling, StatusProcessing, true},
		{"processing to completed", StatusProcessing, StatusCompleted, true},
		{"crawling to error", StatusCrawling, StatusError, true},
		{"crawling to timeout", StatusCrawling, StatusTimeout, true},
		{"crawling to interrupted", StatusCrawling, StatusInterrupted, true},
		{"processing to interrupted", StatusProcessing, StatusInterrupted, true},
		{"starting to interrupted", StatusStarting, StatusInterrupted, false},
		{"interrupted to resuming", StatusInterrupted, StatusResuming, true},
		{"interrupted to crawling directly", StatusInterrupted, StatusCrawling, false},
		{"resuming to crawling", StatusResuming, StatusCrawling, true},
		{"completed accepts nothing", StatusCompleted, StatusCrawling, false},
		{"error accepts nothing", StatusError, StatusResuming, false},
		{"timeout accepts nothing", StatusTimeout, StatusCrawling, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

// TestSessionStatusTerminal verifies terminal and active classification.
func TestSessionStatusTerminal(t *testing.T) {
	t.Parallel()

	terminal := []SessionStatus{StatusCompleted, StatusError, StatusTimeout}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
		if s.Active() {
			t.Errorf("%s should not be active", s)
		}
	}

	// Interrupted holds a resumable snapshot, so it must not be terminal.
	if StatusInterrupted.Terminal() {
		t.Error("interrupted must not be terminal")
	}
	if StatusInterrupted.Active() {
		t.Error("interrupted must not be active")
	}

	for _, s := range []SessionStatus{StatusStarting, StatusCrawling, StatusProcessing, StatusResuming} {
		if !s.Active() {
			t.Errorf("%s should be active", s)
		}
	}
}

// TestParseSessionStatus verifies string round-trips and rejection of junk.
func TestParseSessionStatus(t *testing.T) {
	t.Parallel()

	if got := ParseSessionStatus("crawling"); got != StatusCrawling {
		t.Errorf("expected crawling, got %q", got)
	}
	if got := ParseSessionStatus("exploded"); got.IsValid() {
		t.Errorf("unknown status should be invalid, got %q", got)
	}
}
