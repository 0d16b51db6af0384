// Package log provides structured logging with automatic sanitization of
// sensitive values, built on top of the standard slog package.
//
// Cloning a protected site requires cookies and custom headers from the
// .siteclone config file, and those values flow through request plumbing
// that logs at debug level. The SanitizingHandler masks them before any
// record reaches the underlying handler, so verbose output stays safe to
// share.
//
// Session identifiers are deliberately NOT masked: they are random UUIDs
// that clients need to see to reconnect, and hiding them would make the
// recovery flow undebuggable.
//
// Usage:
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	logger.Info("fetching page",
//	    "url", "https://example.com",
//	    "cookie", "session=abc123", // masked
//	)
package log
