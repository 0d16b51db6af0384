package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/siteclone/siteclone/internal/config"
	"github.com/siteclone/siteclone/internal/crawler"
	"github.com/siteclone/siteclone/internal/log"
	"github.com/siteclone/siteclone/internal/model"
	"github.com/siteclone/siteclone/internal/postprocess"
	"github.com/siteclone/siteclone/internal/report"
	"github.com/siteclone/siteclone/internal/session"
	"github.com/siteclone/siteclone/internal/webclient"
)

// NewCloneCmd creates the clone command.
func NewCloneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clone [url]",
		Short: "Clone a website into a local directory",
		Long: `Clone crawls the given URL, downloads its assets, and rewrites
references so the result works offline from a local directory.

The crawler follows same-origin page links up to --depth, classifies
every referenced asset (including 3D models, textures, and environment
maps), fingerprints the frontend build tool from the entry page, and
lays downloaded files out to match that tool's conventions.

Examples:
  # Clone a site two levels deep into ./clones/
  siteclone clone https://example.com

  # Deeper crawl with a custom output directory
  siteclone clone --depth 3 --output ./mirror https://example.com

  # Only fetch 3D scene assets
  siteclone clone --include 3d-model --include texture --include environment-map https://example.com

  # Strip EXIF metadata and generate an offline service worker
  siteclone clone --optimize-images --service-worker https://example.com

  # Write a JSON report
  siteclone clone --json --report report.json https://example.com

Configuration file (.siteclone) example:
  sites:
    app.example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
      depth: 3`,
		Args: cobra.ExactArgs(1),
		RunE: runCloneCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultDepth,
		"Maximum page-link recursion depth")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to crawl")
	cmd.Flags().IntP("workers", "w", config.DefaultDownloadWorkers,
		"Number of concurrent asset downloads")
	cmd.Flags().DurationP("timeout", "t", config.DefaultRequestTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().Duration("session-timeout", config.DefaultSessionTimeout,
		"Wall-clock ceiling for the whole clone")
	cmd.Flags().StringSlice("include", nil,
		"Restrict downloads to the listed asset types (repeatable; e.g. 3d-model, texture, image)")
	cmd.Flags().Bool("allow-private", false,
		"Allow cloning loopback and private-network hosts")

	// Post-processing flags
	cmd.Flags().Bool("optimize-images", false,
		"Strip EXIF metadata from downloaded JPEG images")
	cmd.Flags().Bool("service-worker", false,
		"Generate a service worker that precaches the clone for offline use")

	// Output flags
	cmd.Flags().StringP("output", "o", "clones",
		"Directory to create the clone under")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .siteclone in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().String("report", "",
		"Write the report to the specified file instead of stdout")

	return cmd
}

// runCloneCmd executes the clone command.
func runCloneCmd(cmd *cobra.Command, args []string) error {
	cfg, opts, err := buildCloneConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	reportFile, err := cmd.Flags().GetString("report")
	if err != nil {
		return err
	}
	jsonReport, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownReport, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonReport && markdownReport {
		return fmt.Errorf("--json and --markdown are mutually exclusive")
	}

	logger := log.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return runClone(ctx, cloneRun{
		cfg:      cfg,
		opts:     opts,
		target:   args[0],
		logger:   logger,
		signals:  sigCh,
		stdout:   cmd.OutOrStdout(),
		json:     jsonReport,
		markdown: markdownReport,
		file:     reportFile,
	})
}

// buildCloneConfig creates a Config and CloneOptions from command flags.
func buildCloneConfig(cmd *cobra.Command) (*config.Config, model.CloneOptions, error) {
	cfg := config.NewConfig()
	var opts model.CloneOptions
	var err error

	cfg.Depth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, opts, err
	}
	opts.Depth = cfg.Depth

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, opts, err
	}

	cfg.DownloadWorkers, err = cmd.Flags().GetInt("workers")
	if err != nil {
		return nil, opts, err
	}

	cfg.RequestTimeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, opts, err
	}

	cfg.SessionTimeout, err = cmd.Flags().GetDuration("session-timeout")
	if err != nil {
		return nil, opts, err
	}

	cfg.OutputDir, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, opts, err
	}

	cfg.AllowPrivateHosts, err = cmd.Flags().GetBool("allow-private")
	if err != nil {
		return nil, opts, err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	include, err := cmd.Flags().GetStringSlice("include")
	if err != nil {
		return nil, opts, err
	}
	for _, raw := range include {
		t := model.ParseAssetType(raw)
		if !t.IsValid() {
			return nil, opts, fmt.Errorf("unknown asset type %q", raw)
		}
		opts.IncludeAssets = append(opts.IncludeAssets, t)
	}

	opts.OptimizeImages, err = cmd.Flags().GetBool("optimize-images")
	if err != nil {
		return nil, opts, err
	}
	opts.GenerateServiceWorker, err = cmd.Flags().GetBool("service-worker")
	if err != nil {
		return nil, opts, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, opts, err
	}

	// Load site-specific configurations from the config file.
	// An explicitly specified missing file is an error; an implicit miss
	// silently falls back to an empty config.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, opts, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, opts, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	// One-shot clones are not resumable; skip the session database.
	cfg.DBDir = ""

	return cfg, opts, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// cloneRun bundles everything runClone needs so the signature stays flat.
type cloneRun struct {
	cfg      *config.Config
	opts     model.CloneOptions
	target   string
	logger   *slog.Logger
	signals  <-chan os.Signal
	stdout   io.Writer
	json     bool
	markdown bool
	file     string
}

// runClone executes one cloning session and writes its report.
func runClone(ctx context.Context, run cloneRun) error {
	if _, err := webclient.ValidateTargetURL(run.target, run.cfg.AllowPrivateHosts); err != nil {
		return fmt.Errorf("invalid target URL %q: %w", run.target, err)
	}

	factory := webclient.NewFactory(run.cfg)
	engine := crawler.NewEngine(run.cfg, factory, run.logger)
	registry := session.NewRegistry(run.cfg, nil, run.logger)
	runner := session.NewRunner(run.cfg, engine, postprocess.NewStandard(run.logger), run.logger)

	m, err := registry.Create(run.target, run.opts)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	done := make(chan model.SessionStatus, 1)
	m.SetEmitter(func(e model.Event) {
		switch e.Type {
		case model.EventStatusUpdate:
			if e.Status.Terminal() || e.Status == model.StatusInterrupted {
				select {
				case done <- e.Status:
				default:
				}
			}
		case model.EventProgressUpdate:
			run.logger.Debug("progress", "sessionID", e.SessionID, "percent", e.Progress)
		case model.EventAssetFound:
			if e.Asset != nil {
				run.logger.Debug("asset",
					"type", string(e.Asset.Type), "url", e.Asset.SourceURL)
			}
		}
	})

	fmt.Fprintf(run.stdout, "Cloning %s...\n", run.target)
	startTime := time.Now()

	if err := runner.Start(ctx, m); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	select {
	case <-run.signals:
		run.logger.Info("received shutdown signal, interrupting...")
		if err := m.Interrupt(); err != nil {
			run.logger.Debug("interrupt refused", "error", err)
		}
		<-done
	case <-done:
	}

	elapsed := time.Since(startTime)
	snapshot := m.Snapshot()

	switch snapshot.Status {
	case model.StatusCompleted:
		fmt.Fprintf(run.stdout, "Clone completed in %s\n\n", elapsed.Round(time.Millisecond))
	case model.StatusInterrupted:
		fmt.Fprintf(run.stdout, "Clone interrupted after %s\n\n", elapsed.Round(time.Millisecond))
	default:
		fmt.Fprintf(run.stdout, "Clone failed after %s: %s\n\n",
			elapsed.Round(time.Millisecond), snapshot.LastError)
	}

	if err := outputReport(run, m); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	fmt.Fprintf(run.stdout, "\nOutput: %s\n", snapshot.OutputRoot)
	if snapshot.Status != model.StatusCompleted && snapshot.LastError != "" {
		return fmt.Errorf("clone did not complete: %s", snapshot.LastError)
	}
	return nil
}

// outputReport writes the session report in the requested format.
func outputReport(run cloneRun, m *session.Machine) error {
	snapshot := m.Snapshot()
	assets := m.Assets()
	summary := report.NewSummary(snapshot, assets, resultFromSession(snapshot, assets))

	var output *os.File
	if run.file != "" {
		dir := filepath.Dir(run.file)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create report directory: %w", err)
			}
		}
		f, err := os.OpenFile(run.file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	switch {
	case run.json:
		_, err := report.NewJSONWriter(output, report.WithPrettyPrint()).Write(summary)
		return err
	case run.markdown:
		_, err := report.NewMarkdownWriter(output).Write(summary)
		return err
	default:
		_, err := report.NewTextWriter(output, report.WithVerbose(run.cfg.Verbose)).Write(summary)
		return err
	}
}

// resultFromSession reconstructs the crawl result counters from the
// session snapshot and asset list. The runner owns the real result;
// the CLI only sees the machine, so it derives the same numbers.
func resultFromSession(s model.Session, assets []model.DiscoveredAsset) model.CloningResult {
	result := model.CloningResult{
		SessionID:    s.ID,
		Success:      s.Status == model.StatusCompleted,
		AssetsFound:  len(assets),
		PagesVisited: s.PagesVisited,
		Error:        s.LastError,
	}
	for _, a := range assets {
		switch a.Status {
		case model.DownloadComplete:
			result.AssetsDownloaded++
		case model.DownloadFailed:
			result.AssetsFailed++
		}
	}
	return result
}
