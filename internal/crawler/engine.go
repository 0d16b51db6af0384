package crawler

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/errgroup"

	"github.com/siteclone/siteclone/internal/classify"
	"github.com/siteclone/siteclone/internal/config"
	"github.com/siteclone/siteclone/internal/detect"
	"github.com/siteclone/siteclone/internal/model"
	"github.com/siteclone/siteclone/internal/pathmap"
	"github.com/siteclone/siteclone/internal/webclient"
)

// Reporter receives crawl notifications. The session state machine
// implements it; ordering and monotonicity guarantees live there, the
// engine only reports raw observations.
type Reporter interface {
	// Progress reports the crawl completion fraction in [0,1]. The value
	// may regress as new work is discovered; consumers clamp.
	Progress(fraction float64)

	// AssetUpdated reports a discovered or resolved asset. Called at
	// least twice per asset (pending, then outcome).
	AssetUpdated(asset model.DiscoveredAsset)

	// PageVisited reports a fetched page and the running count.
	PageVisited(pageURL string, count int)

	// FingerprintFrozen reports the frozen detection result, exactly once
	// per run, before any asset path is assigned.
	FingerprintFrozen(fp model.Fingerprint)
}

// ResumeState carries the persisted snapshot a resumed crawl starts from.
type ResumeState struct {
	// Fingerprint is the frozen detection result from the original run.
	Fingerprint model.Fingerprint

	// PathTable is the URL to local path table assigned so far.
	PathTable map[string]string

	// Assets are the previously recorded assets keyed by source URL.
	// Completed ones with intact files are not fetched again.
	Assets map[string]model.DiscoveredAsset
}

// Job describes one crawl run.
type Job struct {
	// SessionID identifies the session for logging.
	SessionID string

	// RootURL is the validated entry URL.
	RootURL string

	// OutputRoot is the directory files are written under. Must exist
	// and be owned by this session.
	OutputRoot string

	// Options are the validated clone options.
	Options model.CloneOptions

	// Reporter receives notifications. Must not be nil.
	Reporter Reporter

	// Resume, when non-nil, makes this a resumed run.
	Resume *ResumeState
}

// Engine runs crawl jobs. One engine serves all sessions.
type Engine struct {
	cfg     *config.Config
	factory *webclient.Factory
	logger  *slog.Logger
}

// NewEngine creates a crawl engine.
func NewEngine(cfg *config.Config, factory *webclient.Factory, logger *slog.Logger) *Engine {
	return &Engine{cfg: cfg, factory: factory, logger: logger}
}

// queueItem is one page awaiting a visit.
type queueItem struct {
	url   string
	depth int
}

// Run executes the job to completion or context cancellation.
//
// The returned error is non-nil only for fatal conditions (entry page
// unreachable, context cancelled); individual asset failures are recorded
// on their assets and never abort the crawl.
func (e *Engine) Run(ctx context.Context, job Job) (*model.CloningResult, error) {
	result := &model.CloningResult{SessionID: job.SessionID}

	root, err := url.Parse(job.RootURL)
	if err != nil {
		result.Error = fmt.Sprintf("invalid root URL: %v", err)
		return result, fmt.Errorf("parse root URL: %w", err)
	}

	client := e.factory.ClientFor(root.Hostname())

	run := &crawlRun{
		engine:  e,
		job:     job,
		client:  client,
		root:    root,
		assets:  newAssetStore(job.Resume),
		visited: make(map[string]bool),
		result:  result,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.cfg.DownloadWorkers)
	run.group = group

	err = run.crawl(groupCtx)

	// Always drain in-flight downloads so every asset reaches a final
	// status before the result is assembled.
	_ = group.Wait() //nolint:errcheck // Download errors are recorded per asset

	if ctx.Err() != nil {
		run.abandonPending()
		run.fillCounts()
		return result, ctx.Err()
	}
	if err != nil {
		result.Error = err.Error()
		run.fillCounts()
		return result, err
	}

	run.fillCounts()
	result.Success = true
	job.Reporter.Progress(1)
	return result, nil
}

// crawlRun is the per-job state.
type crawlRun struct {
	engine  *Engine
	job     Job
	client  *http.Client
	root    *url.URL
	group   *errgroup.Group
	assets  *assetStore
	visited map[string]bool
	result  *model.CloningResult

	mapper *pathmap.Mapper

	// pagesDone counts fetched pages; guarded by progressMu together
	// with the discovered-work counters feeding progress fractions.
	progressMu sync.Mutex
	pagesDone  int
	pagesKnown int
	skipped    int
}

// crawl walks pages breadth-first and schedules asset downloads.
func (run *crawlRun) crawl(ctx context.Context) error {
	depthLimit := run.job.Options.Depth
	if depthLimit < 1 {
		depthLimit = run.engine.cfg.Depth
	}

	queue := []queueItem{{url: run.root.String(), depth: 0}}
	run.pagesKnown = 1

	for len(queue) > 0 && run.pagesDone < run.engine.cfg.MaxPages {
		if err := ctx.Err(); err != nil {
			return err
		}

		item := queue[0]
		queue = queue[1:]

		norm := normalizeURL(item.url)
		if run.visited[norm] {
			continue
		}
		run.visited[norm] = true

		links, err := run.visitPage(ctx, item)
		if err != nil {
			if item.depth == 0 {
				// The entry page is the fingerprint sample and the seed of
				// everything else; without it there is no session.
				return fmt.Errorf("entry page: %w", err)
			}
			run.engine.logger.Debug("page fetch failed",
				"sessionID", run.job.SessionID, "url", item.url, "error", err)
			continue
		}

		for _, link := range links {
			if run.visited[normalizeURL(link)] {
				continue
			}
			if item.depth+1 >= depthLimit {
				run.progressMu.Lock()
				run.skipped++
				run.progressMu.Unlock()
				continue
			}
			queue = append(queue, queueItem{url: link, depth: item.depth + 1})
			run.progressMu.Lock()
			run.pagesKnown++
			run.progressMu.Unlock()
		}
	}

	return nil
}

// visitPage fetches one page, freezes the fingerprint on depth 0, saves
// the markup, schedules its assets, and returns its same-host links.
func (run *crawlRun) visitPage(ctx context.Context, item queueItem) ([]string, error) {
	resp, err := webclient.Fetch(ctx, run.client, item.url, run.engine.cfg.MaxBodySize)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d for %s", resp.StatusCode, item.url)
	}

	if item.depth == 0 {
		run.freezeFingerprint(resp.Body)
	}

	parser, err := NewParser(resp.FinalURL)
	if err != nil {
		return nil, err
	}
	parsed, err := parser.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, err
	}

	// The page itself is part of the clone. It is recorded as an HTML
	// asset so the rewriting step sees pages and assets in one table.
	pagePath := run.mapper.LocalPath(item.url, model.AssetTypeHTML, resp.ContentType)
	if err := run.writeFile(pagePath, resp.Body); err != nil {
		return nil, fmt.Errorf("write page %s: %w", item.url, err)
	}

	sum := sha3.Sum256(resp.Body)
	run.finishAsset(item.url, func(a *model.DiscoveredAsset) {
		a.Type = model.AssetTypeHTML
		a.ContentType = resp.ContentType
		a.Size = int64(len(resp.Body))
		a.Status = model.DownloadComplete
		a.LocalPath = pagePath
		a.ContentHash = hex.EncodeToString(sum[:])
	})

	run.progressMu.Lock()
	run.pagesDone++
	count := run.pagesDone
	run.progressMu.Unlock()
	run.job.Reporter.PageVisited(item.url, count)
	run.reportProgress()

	for _, ref := range parsed.Assets {
		run.scheduleAsset(ctx, ref, false)
	}

	return parsed.PageLinks, nil
}

// freezeFingerprint runs detection on the entry page and creates the
// path mapper under the frozen identity. On resume, the persisted
// fingerprint wins regardless of what the page looks like now.
func (run *crawlRun) freezeFingerprint(entryPage []byte) {
	var fp model.Fingerprint
	if run.job.Resume != nil {
		fp = run.job.Resume.Fingerprint
	} else {
		signals := detect.ExtractSignals(bytes.NewReader(entryPage))
		fp = detect.Analyze(signals)
	}

	run.mapper = pathmap.NewMapper(fp.Tool)
	if run.job.Resume != nil {
		run.mapper.Restore(run.job.Resume.PathTable)
	}

	run.engine.logger.Info("fingerprint frozen",
		"sessionID", run.job.SessionID,
		"tool", fp.Tool.String(),
		"confidence", fp.Confidence)
	run.job.Reporter.FingerprintFrozen(fp)
}

// scheduleAsset deduplicates and queues one asset download on the pool.
//
// fromWorker must be true when the caller already occupies a pool slot
// (stylesheet bodies discovering nested refs). Those calls must not block
// on a free slot they themselves hold, so saturation falls back to
// downloading inline; concurrency stays bounded either way.
func (run *crawlRun) scheduleAsset(ctx context.Context, ref AssetRef, fromWorker bool) {
	asset, firstSeen := run.assets.discover(ref)
	if !firstSeen {
		return
	}

	// Completed assets from a resumed run are kept if their file is intact.
	if asset.Status == model.DownloadComplete && run.fileIntact(asset.LocalPath) {
		run.job.Reporter.AssetUpdated(asset)
		run.reportProgress()
		return
	}

	run.job.Reporter.AssetUpdated(asset)

	// Unambiguous element hints let the include filter veto the fetch
	// before it costs any bandwidth. Ambiguous references still download
	// so sniffing can classify them.
	if run.excludedByHint(ref.Hint) {
		run.finishAsset(ref.URL, func(a *model.DiscoveredAsset) {
			a.Type = ref.Hint
			a.Status = model.DownloadAbandoned
			a.FailureReason = "excluded by asset type filter"
		})
		return
	}

	work := func() error {
		run.downloadAsset(ctx, ref.URL, ref.Hint)
		return nil
	}

	if fromWorker {
		if !run.group.TryGo(work) {
			_ = work() //nolint:errcheck // work never returns an error
		}
		return
	}
	run.group.Go(work)
}

// excludedByHint reports whether the include filter rules an asset out
// before any fetch. Only hints the body bytes could not upgrade count:
// script, stylesheet, and img elements fix how the browser treats the
// response regardless of what is in it.
func (run *crawlRun) excludedByHint(hint model.AssetType) bool {
	switch hint {
	case model.AssetTypeJavaScript, model.AssetTypeStylesheet, model.AssetTypeImage:
		return !run.job.Options.Wants(hint)
	default:
		return false
	}
}

// downloadAsset fetches, classifies, maps, and stores one asset.
// Failures are recorded on the asset; this function never aborts the crawl.
func (run *crawlRun) downloadAsset(ctx context.Context, rawURL string, hint model.AssetType) {
	resp, err := webclient.Fetch(ctx, run.client, rawURL, run.engine.cfg.MaxBodySize)
	if err != nil {
		run.finishAsset(rawURL, func(a *model.DiscoveredAsset) {
			if ctx.Err() != nil {
				a.Status = model.DownloadAbandoned
			} else {
				a.Status = model.DownloadFailed
			}
			a.FailureReason = err.Error()
		})
		return
	}
	if resp.StatusCode >= 400 {
		run.finishAsset(rawURL, func(a *model.DiscoveredAsset) {
			a.Status = model.DownloadFailed
			a.FailureReason = fmt.Sprintf("status %d", resp.StatusCode)
		})
		return
	}

	sample := resp.Body
	if len(sample) > classify.SniffLimit {
		sample = sample[:classify.SniffLimit]
	}
	assetType, subtype := classify.Classify(rawURL, resp.ContentType, sample)
	if assetType == model.AssetTypeOther && hint != model.AssetTypeOther {
		// The referencing element knows more than a generic response did.
		assetType = hint
	}

	if !run.job.Options.Wants(assetType) {
		run.finishAsset(rawURL, func(a *model.DiscoveredAsset) {
			a.Type = assetType
			a.Subtype = subtype
			a.Status = model.DownloadAbandoned
			a.FailureReason = "excluded by asset type filter"
		})
		return
	}

	localPath := run.mapper.LocalPath(rawURL, assetType, resp.ContentType)
	if err := run.writeFile(localPath, resp.Body); err != nil {
		run.finishAsset(rawURL, func(a *model.DiscoveredAsset) {
			a.Type = assetType
			a.Subtype = subtype
			a.Status = model.DownloadFailed
			a.FailureReason = err.Error()
		})
		return
	}

	sum := sha3.Sum256(resp.Body)
	run.finishAsset(rawURL, func(a *model.DiscoveredAsset) {
		a.Type = assetType
		a.Subtype = subtype
		a.ContentType = resp.ContentType
		a.Size = int64(len(resp.Body))
		a.Status = model.DownloadComplete
		a.LocalPath = localPath
		a.ContentHash = hex.EncodeToString(sum[:])
	})

	// Stylesheets pull in fonts and textures of their own.
	if assetType == model.AssetTypeStylesheet {
		base, err := url.Parse(rawURL)
		if err == nil {
			for _, ref := range ExtractCSSRefs(base, string(resp.Body)) {
				run.scheduleAsset(ctx, ref, true)
			}
		}
	}
}

// finishAsset applies a mutation to the asset record and reports it.
func (run *crawlRun) finishAsset(rawURL string, mutate func(*model.DiscoveredAsset)) {
	asset := run.assets.update(rawURL, mutate)
	run.job.Reporter.AssetUpdated(asset)
	run.reportProgress()
}

// reportProgress recomputes and reports the crawl fraction.
func (run *crawlRun) reportProgress() {
	run.progressMu.Lock()
	pagesDone, pagesKnown := run.pagesDone, run.pagesKnown
	run.progressMu.Unlock()

	assetsDone, assetsKnown := run.assets.counts()

	total := pagesKnown + assetsKnown
	if total == 0 {
		return
	}
	run.job.Reporter.Progress(float64(pagesDone+assetsDone) / float64(total))
}

// abandonPending marks every still-pending asset abandoned after a
// cancellation, so resumption knows what to retry.
func (run *crawlRun) abandonPending() {
	for _, asset := range run.assets.snapshot() {
		if asset.Status == model.DownloadPending {
			run.finishAsset(asset.SourceURL, func(a *model.DiscoveredAsset) {
				a.Status = model.DownloadAbandoned
				a.FailureReason = "session interrupted"
			})
		}
	}
}

// fillCounts copies final tallies into the result.
func (run *crawlRun) fillCounts() {
	run.progressMu.Lock()
	run.result.PagesVisited = run.pagesDone
	run.result.SkippedLinks = run.skipped
	run.progressMu.Unlock()

	for _, asset := range run.assets.snapshot() {
		run.result.AssetsFound++
		switch asset.Status {
		case model.DownloadComplete:
			run.result.AssetsDownloaded++
		case model.DownloadFailed:
			run.result.AssetsFailed++
		}
	}
}

// writeFile writes bytes under the output root, creating directories.
func (run *crawlRun) writeFile(relPath string, data []byte) error {
	full := filepath.Join(run.job.OutputRoot, filepath.FromSlash(relPath))

	// The mapper sanitizes segments, but a second guard costs nothing.
	if !strings.HasPrefix(full, filepath.Clean(run.job.OutputRoot)) {
		return fmt.Errorf("path %q escapes output root", relPath)
	}

	if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0600)
}

// fileIntact reports whether a previously downloaded file is still there.
func (run *crawlRun) fileIntact(relPath string) bool {
	if relPath == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(run.job.OutputRoot, filepath.FromSlash(relPath)))
	return err == nil && !info.IsDir()
}

// normalizeURL canonicalizes a URL for visited-set membership: fragments
// dropped, scheme and host lowercased, empty path normalized to "/".
func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// assetStore is the concurrent asset table for one run, keyed by URL.
type assetStore struct {
	mu    sync.Mutex
	byURL map[string]*model.DiscoveredAsset

	// scheduled marks URLs already handed to the worker pool this run.
	// Kept separate from the records because resumed assets arrive
	// pre-populated but still need one scheduling decision.
	scheduled map[string]bool
}

// newAssetStore creates the store, seeded from resume state if present.
func newAssetStore(resume *ResumeState) *assetStore {
	s := &assetStore{
		byURL:     make(map[string]*model.DiscoveredAsset),
		scheduled: make(map[string]bool),
	}
	if resume != nil {
		for u, a := range resume.Assets {
			restored := a
			s.byURL[u] = &restored
		}
	}
	return s
}

// discover records an asset's first sighting this run. Returns the
// current record and whether this call won the scheduling decision.
func (s *assetStore) discover(ref AssetRef) (model.DiscoveredAsset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduled[ref.URL] {
		if existing, ok := s.byURL[ref.URL]; ok {
			return *existing, false
		}
		return model.DiscoveredAsset{}, false
	}
	s.scheduled[ref.URL] = true

	if existing, ok := s.byURL[ref.URL]; ok {
		return *existing, true
	}

	asset := &model.DiscoveredAsset{
		SourceURL:    ref.URL,
		Type:         ref.Hint,
		DiscoveredAt: time.Now(),
		Status:       model.DownloadPending,
	}
	s.byURL[ref.URL] = asset
	return *asset, true
}

// update applies a mutation under the lock and returns the new value.
func (s *assetStore) update(rawURL string, mutate func(*model.DiscoveredAsset)) model.DiscoveredAsset {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.byURL[rawURL]
	if !ok {
		asset = &model.DiscoveredAsset{SourceURL: rawURL, DiscoveredAt: time.Now()}
		s.byURL[rawURL] = asset
	}
	mutate(asset)
	return *asset
}

// counts returns settled and total asset counts for progress.
func (s *assetStore) counts() (done, known int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.byURL {
		known++
		if a.Status != model.DownloadPending {
			done++
		}
	}
	return done, known
}

// snapshot returns a copy of every asset.
func (s *assetStore) snapshot() []model.DiscoveredAsset {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.DiscoveredAsset, 0, len(s.byURL))
	for _, a := range s.byURL {
		out = append(out, *a)
	}
	return out
}
