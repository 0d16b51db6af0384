package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These are chosen for cloning public production sites politely: bounded
// concurrency, capped body sizes, and a generous but finite session ceiling.
const (
	// DefaultDepth is the page-link recursion depth. 2 captures the entry
	// page plus directly linked pages, which covers most single-page apps
	// where deeper traversal only re-discovers the same bundles.
	DefaultDepth = 2

	// MaxDepth bounds the depth a clone request may ask for. Deeper crawls
	// grow combinatorially and rarely find assets the shallow pass missed.
	MaxDepth = 5

	// DefaultDownloadWorkers is the bounded worker-pool size for asset
	// downloads. 8 keeps throughput high without overwhelming the target
	// host or local disk I/O.
	DefaultDownloadWorkers = 8

	// DefaultRequestTimeout is the per-request timeout. Asset CDNs are
	// fast; anything slower than 30 seconds is effectively down.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultSessionTimeout is the wall-clock ceiling for one session.
	// Exceeding it forces the distinct timeout terminal state.
	DefaultSessionTimeout = 10 * time.Minute

	// DefaultMaxPages caps pages fetched per session to prevent runaway
	// crawling on calendar-style infinite link generators.
	DefaultMaxPages = 50

	// DefaultMaxBodySize caps a single response body. 3D scenes ship large
	// GLB and HDR files, so this is deliberately generous.
	DefaultMaxBodySize = 100 * 1024 * 1024 // 100MB

	// DefaultSniffBytes is how much of each body the classifier may inspect.
	DefaultSniffBytes = 64

	// DefaultRetention is how long finished or interrupted sessions stay
	// recoverable before the registry evicts them.
	DefaultRetention = 30 * time.Minute

	// DefaultListenAddr is the push-channel server bind address.
	DefaultListenAddr = "127.0.0.1:8815"

	// DefaultUserAgent identifies siteclone in HTTP requests. A descriptive
	// User-Agent lets operators recognize cloner traffic in their logs.
	DefaultUserAgent = "siteclone/1.0 (+https://github.com/siteclone/siteclone)"

	// AppName is the application name used for XDG directory paths.
	AppName = "siteclone"
)

// Config holds all configuration options for siteclone.
//
// Design decision: a single flat struct instead of nested sub-structs.
// The option count is manageable, and nesting would add complexity
// without significant benefit.
type Config struct {
	// ListenAddr is the address the serve command binds its push-channel
	// server to, in "host:port" format.
	ListenAddr string

	// Depth is the default page recursion depth; clone requests may
	// override it within [1, MaxDepth].
	Depth int

	// DownloadWorkers is the asset download concurrency cap. Workers are
	// drawn from this bounded pool; sessions never exceed it.
	DownloadWorkers int

	// RequestTimeout applies to each page fetch and asset download.
	RequestTimeout time.Duration

	// SessionTimeout is the wall-clock ceiling per session. Elapsing it
	// moves the session to the timeout terminal state.
	SessionTimeout time.Duration

	// MaxPages caps pages fetched per session.
	MaxPages int

	// MaxBodySize caps a single response body in bytes.
	MaxBodySize int64

	// Retention is how long terminal/interrupted sessions stay in the
	// registry for recovery before eviction.
	Retention time.Duration

	// OutputDir is the directory session output roots are created under.
	OutputDir string

	// DBDir is the directory for the session database. Empty disables
	// persistence (sessions then survive disconnects but not restarts).
	DBDir string

	// UserAgent is sent with every HTTP request.
	UserAgent string

	// AllowPrivateHosts permits loopback/internal targets. Kept off in
	// production; tests and local development turn it on.
	AllowPrivateHosts bool

	// Verbose enables slog.LevelDebug output.
	Verbose bool

	// ConfigFilePath is an explicit config-file path, if the user gave one.
	ConfigFilePath string

	// SiteConfigs holds per-site overrides loaded from the config file.
	SiteConfigs *File
}

// NewConfig creates a Config with default values.
//
// Design decision: a constructor instead of zero values because many
// defaults are non-zero; the constructor doubles as documentation of
// what the defaults are.
func NewConfig() *Config {
	return &Config{
		ListenAddr:      DefaultListenAddr,
		Depth:           DefaultDepth,
		DownloadWorkers: DefaultDownloadWorkers,
		RequestTimeout:  DefaultRequestTimeout,
		SessionTimeout:  DefaultSessionTimeout,
		MaxPages:        DefaultMaxPages,
		MaxBodySize:     DefaultMaxBodySize,
		Retention:       DefaultRetention,
		OutputDir:       "clones",
		DBDir:           XDGDataDir(),
		UserAgent:       DefaultUserAgent,
	}
}

// XDGDataDir returns the XDG data directory for siteclone.
// On Linux: ~/.local/share/siteclone.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for siteclone.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid, returning the first
// problem found. Called once after CLI parsing, before any session runs.
func (c *Config) Validate() error {
	if c.Depth < 1 || c.Depth > MaxDepth {
		return ErrInvalidDepth
	}
	if c.DownloadWorkers <= 0 {
		return ErrInvalidWorkerCount
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.SessionTimeout <= 0 {
		return ErrInvalidSessionTimeout
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}
	if c.Retention <= 0 {
		return ErrInvalidRetention
	}
	if c.OutputDir == "" {
		return ErrNoOutputDir
	}
	return nil
}
