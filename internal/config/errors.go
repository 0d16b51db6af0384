package config

import "errors"

// Configuration validation errors.
//
// Design decision: package-level sentinel errors rather than fresh
// instances in Validate(). Callers can use errors.Is() for programmatic
// handling while the messages stay human-readable.
var (
	// ErrInvalidDepth is returned when depth is outside [1, MaxDepth].
	ErrInvalidDepth = errors.New("invalid depth: must be between 1 and 5")

	// ErrInvalidWorkerCount is returned when the download worker count is
	// not positive. Zero workers would mean no downloads at all.
	ErrInvalidWorkerCount = errors.New("invalid worker count: must be positive")

	// ErrInvalidTimeout is returned when the per-request timeout is not
	// positive.
	ErrInvalidTimeout = errors.New("invalid request timeout: must be positive")

	// ErrInvalidSessionTimeout is returned when the session ceiling is not
	// positive.
	ErrInvalidSessionTimeout = errors.New("invalid session timeout: must be positive")

	// ErrInvalidMaxPages is returned when the page cap is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidMaxBodySize is returned when the body cap is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidRetention is returned when the session retention window is
	// not positive.
	ErrInvalidRetention = errors.New("invalid retention: must be positive")

	// ErrNoOutputDir is returned when no output directory is configured.
	ErrNoOutputDir = errors.New("no output directory specified")
)
