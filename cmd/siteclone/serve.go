package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/siteclone/siteclone/internal/config"
	"github.com/siteclone/siteclone/internal/crawler"
	"github.com/siteclone/siteclone/internal/database"
	"github.com/siteclone/siteclone/internal/log"
	"github.com/siteclone/siteclone/internal/postprocess"
	"github.com/siteclone/siteclone/internal/server"
	"github.com/siteclone/siteclone/internal/session"
	"github.com/siteclone/siteclone/internal/webclient"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket push-channel server",
		Long: `Serve runs the push-channel server that UIs connect to.

Clients open a WebSocket at /ws, send clone requests, and receive
status, progress, and asset events as the crawl runs. Sessions survive
disconnects: a dropped connection interrupts its sessions, and a later
connection can recover and resume them by session ID. Interrupted
sessions persist across server restarts via the session database.

Examples:
  # Serve on the default local address
  siteclone serve

  # Bind a different address
  siteclone serve --listen 0.0.0.0:9000

  # Keep finished sessions recoverable for an hour
  siteclone serve --retention 1h`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("listen", "l", config.DefaultListenAddr,
		"Address to bind the push-channel server to")
	cmd.Flags().IntP("depth", "d", config.DefaultDepth,
		"Default page-link recursion depth for clone requests")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to crawl per session")
	cmd.Flags().IntP("workers", "w", config.DefaultDownloadWorkers,
		"Number of concurrent asset downloads per session")
	cmd.Flags().DurationP("timeout", "t", config.DefaultRequestTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().Duration("session-timeout", config.DefaultSessionTimeout,
		"Wall-clock ceiling per session")
	cmd.Flags().Duration("retention", config.DefaultRetention,
		"How long settled sessions stay recoverable")
	cmd.Flags().StringP("output", "o", "clones",
		"Directory session output roots are created under")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Session database directory (empty disables persistence)")
	cmd.Flags().Bool("allow-private", false,
		"Allow cloning loopback and private-network hosts")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildServeConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, draining...")
		cancel()
	}()

	return runServe(ctx, cfg, logger)
}

// buildServeConfig creates a Config from serve command flags.
func buildServeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	var err error

	cfg.ListenAddr, err = cmd.Flags().GetString("listen")
	if err != nil {
		return nil, err
	}
	cfg.Depth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}
	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}
	cfg.DownloadWorkers, err = cmd.Flags().GetInt("workers")
	if err != nil {
		return nil, err
	}
	cfg.RequestTimeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}
	cfg.SessionTimeout, err = cmd.Flags().GetDuration("session-timeout")
	if err != nil {
		return nil, err
	}
	cfg.Retention, err = cmd.Flags().GetDuration("retention")
	if err != nil {
		return nil, err
	}
	cfg.OutputDir, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}
	cfg.DBDir, err = cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	cfg.AllowPrivateHosts, err = cmd.Flags().GetBool("allow-private")
	if err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}

// runServe wires the server stack and serves until ctx is cancelled.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var db *database.SessionDB
	if cfg.DBDir != "" {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open session database: %w", err)
		}
		defer db.Close()
		logger.Info("session database opened", "dir", cfg.DBDir)

		// Sessions that were mid-flight when the previous process died
		// become interrupted, which makes them resumable.
		marked, err := db.MarkInterruptedOnStartup(ctx)
		if err != nil {
			return fmt.Errorf("failed to mark orphaned sessions: %w", err)
		}
		if marked > 0 {
			logger.Info("marked orphaned sessions as interrupted", "count", marked)
		}
	} else {
		logger.Warn("session persistence disabled; sessions will not survive restarts")
	}

	factory := webclient.NewFactory(cfg)
	engine := crawler.NewEngine(cfg, factory, logger)
	registry := session.NewRegistry(cfg, db, logger)
	runner := session.NewRunner(cfg, engine, postprocess.NewStandard(logger), logger)

	go registry.RunJanitor(ctx)

	srv := server.NewServer(cfg, registry, runner, logger)
	return srv.ListenAndServe(ctx)
}
