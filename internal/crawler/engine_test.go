package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/siteclone/siteclone/internal/config"
	"github.com/siteclone/siteclone/internal/log"
	"github.com/siteclone/siteclone/internal/model"
	"github.com/siteclone/siteclone/internal/webclient"
)

// recordingReporter captures engine notifications for assertions.
type recordingReporter struct {
	mu          sync.Mutex
	fingerprint *model.Fingerprint
	assets      map[string]model.DiscoveredAsset
	pages       []string
	progress    []float64
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{assets: make(map[string]model.DiscoveredAsset)}
}

func (r *recordingReporter) Progress(fraction float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, fraction)
}

func (r *recordingReporter) AssetUpdated(asset model.DiscoveredAsset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[asset.SourceURL] = asset
}

func (r *recordingReporter) PageVisited(pageURL string, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = append(r.pages, pageURL)
}

func (r *recordingReporter) FingerprintFrozen(fp model.Fingerprint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fingerprint = &fp
}

func (r *recordingReporter) asset(url string) (model.DiscoveredAsset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[url]
	return a, ok
}

// newTestEngine builds an engine pointed at private hosts for httptest.
func newTestEngine(t *testing.T) (*Engine, *config.Config) {
	t.Helper()

	cfg := config.NewConfig()
	cfg.AllowPrivateHosts = true
	cfg.DownloadWorkers = 4

	logger := log.NewLogger(os.Stderr, false)
	return NewEngine(cfg, webclient.NewFactory(cfg), logger), cfg
}

func TestEngineRunClonesSite(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head>
<link rel="stylesheet" href="/css/app.css">
<script src="/js/chunk-vendors.8a7b3c.js"></script>
<script src="/js/app.112233.js"></script>
</head><body data-v-app>
<img src="/img/logo.png">
<a href="/about">About</a>
</body></html>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><img src="/img/team.png"></body></html>`))
	})
	mux.HandleFunc("/css/app.css", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		_, _ = w.Write([]byte(`@font-face { src: url('/fonts/inter.woff2'); }`))
	})
	mux.HandleFunc("/js/chunk-vendors.8a7b3c.js", jsHandler)
	mux.HandleFunc("/js/app.112233.js", jsHandler)
	mux.HandleFunc("/img/logo.png", pngHandler)
	mux.HandleFunc("/img/team.png", pngHandler)
	mux.HandleFunc("/fonts/inter.woff2", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "font/woff2")
		_, _ = w.Write([]byte("wOF2fontdata"))
	})

	engine, _ := newTestEngine(t)
	reporter := newRecordingReporter()
	outputRoot := t.TempDir()

	result, err := engine.Run(context.Background(), Job{
		SessionID:  "test-session",
		RootURL:    srv.URL + "/",
		OutputRoot: outputRoot,
		Options:    model.CloneOptions{Depth: 2},
		Reporter:   reporter,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !result.Success {
		t.Errorf("Success = false, error = %q", result.Error)
	}
	if result.PagesVisited != 2 {
		t.Errorf("PagesVisited = %d, want 2", result.PagesVisited)
	}
	if result.AssetsFailed != 0 {
		t.Errorf("AssetsFailed = %d, want 0", result.AssetsFailed)
	}

	// Vue CLI fingerprint from chunk-vendors naming plus data-v-app.
	if reporter.fingerprint == nil {
		t.Fatal("fingerprint never frozen")
	}
	if reporter.fingerprint.Tool != model.BuildToolVueCLI {
		t.Errorf("fingerprint = %s, want vue-cli", reporter.fingerprint.Tool)
	}

	// Vue CLI convention places images under img/.
	asset, ok := reporter.asset(srv.URL + "/img/logo.png")
	if !ok {
		t.Fatal("logo.png never reported")
	}
	if asset.LocalPath != "img/logo.png" {
		t.Errorf("LocalPath = %q, want img/logo.png", asset.LocalPath)
	}
	if asset.Status != model.DownloadComplete {
		t.Errorf("Status = %s, want downloaded", asset.Status)
	}
	if asset.ContentHash == "" {
		t.Error("ContentHash empty for downloaded asset")
	}

	// Font discovered through the stylesheet body.
	if _, ok := reporter.asset(srv.URL + "/fonts/inter.woff2"); !ok {
		t.Error("font referenced from CSS never reported")
	}

	// Files actually written.
	for _, rel := range []string{"index.html", "img/logo.png", "css/app.css"} {
		if _, err := os.Stat(filepath.Join(outputRoot, rel)); err != nil {
			t.Errorf("missing output file %s: %v", rel, err)
		}
	}

	// Final progress is complete.
	last := reporter.progress[len(reporter.progress)-1]
	if last != 1 {
		t.Errorf("final progress = %v, want 1", last)
	}
}

func jsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	_, _ = w.Write([]byte("console.log('x')"))
}

func pngHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0})
}

func TestEngineRunDepthLimit(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><a href="/deep">Deep</a></body></html>`))
	})
	mux.HandleFunc("/deep", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>deep</body></html>`))
	})

	engine, _ := newTestEngine(t)
	reporter := newRecordingReporter()

	result, err := engine.Run(context.Background(), Job{
		SessionID:  "depth-test",
		RootURL:    srv.URL + "/",
		OutputRoot: t.TempDir(),
		Options:    model.CloneOptions{Depth: 1},
		Reporter:   reporter,
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.PagesVisited != 1 {
		t.Errorf("PagesVisited = %d, want 1 at depth 1", result.PagesVisited)
	}
	if result.SkippedLinks != 1 {
		t.Errorf("SkippedLinks = %d, want 1", result.SkippedLinks)
	}
}

func TestEngineRunAssetFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><img src="/gone.png"><img src="/ok.png"></body></html>`))
	})
	mux.HandleFunc("/ok.png", pngHandler)
	// /gone.png is a 404.

	engine, _ := newTestEngine(t)
	reporter := newRecordingReporter()

	result, err := engine.Run(context.Background(), Job{
		SessionID:  "fail-test",
		RootURL:    srv.URL + "/",
		OutputRoot: t.TempDir(),
		Options:    model.CloneOptions{Depth: 1},
		Reporter:   reporter,
	})
	if err != nil {
		t.Fatalf("asset failure must not abort the crawl: %v", err)
	}

	if !result.Success {
		t.Error("Success = false")
	}
	if result.AssetsFailed != 1 {
		t.Errorf("AssetsFailed = %d, want 1", result.AssetsFailed)
	}

	failed, ok := reporter.asset(srv.URL + "/gone.png")
	if !ok {
		t.Fatal("failed asset never reported")
	}
	if failed.Status != model.DownloadFailed {
		t.Errorf("Status = %s, want failed", failed.Status)
	}
	if failed.FailureReason == "" {
		t.Error("FailureReason empty for failed asset")
	}
}

func TestEngineRunEntryPageFailureIsFatal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	engine, _ := newTestEngine(t)

	_, err := engine.Run(context.Background(), Job{
		SessionID:  "fatal-test",
		RootURL:    srv.URL + "/",
		OutputRoot: t.TempDir(),
		Options:    model.CloneOptions{Depth: 1},
		Reporter:   newRecordingReporter(),
	})
	if err == nil {
		t.Fatal("entry page failure must abort the session")
	}
}

func TestEngineRunAssetTypeFilter(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><img src="/pic.png"><script src="/app.js"></script></body></html>`))
	})
	mux.HandleFunc("/pic.png", pngHandler)
	mux.HandleFunc("/app.js", jsHandler)

	engine, _ := newTestEngine(t)
	reporter := newRecordingReporter()
	outputRoot := t.TempDir()

	_, err := engine.Run(context.Background(), Job{
		SessionID:  "filter-test",
		RootURL:    srv.URL + "/",
		OutputRoot: outputRoot,
		Options: model.CloneOptions{
			Depth:         1,
			IncludeAssets: []model.AssetType{model.AssetTypeImage},
		},
		Reporter: reporter,
	})
	if err != nil {
		t.Fatal(err)
	}

	img, ok := reporter.asset(srv.URL + "/pic.png")
	if !ok || img.Status != model.DownloadComplete {
		t.Errorf("image should be downloaded, got %+v", img)
	}

	js, ok := reporter.asset(srv.URL + "/app.js")
	if !ok {
		t.Fatal("filtered asset should still be reported")
	}
	if js.Status == model.DownloadComplete {
		t.Error("javascript should not be downloaded with image-only filter")
	}
}

func TestEngineRunFilterVetoesFetchForUnambiguousHints(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	hits := make(map[string]int)
	count := func(path string, h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			hits[path]++
			mu.Unlock()
			h(w, r)
		}
	}

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head>
<link rel="stylesheet" href="/app.css">
<script src="/app.js"></script>
</head><body>
<img src="/pic.png">
<model-viewer src="/scene.glb"></model-viewer>
</body></html>`))
	})
	mux.HandleFunc("/app.css", count("/app.css", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		_, _ = w.Write([]byte("body{}"))
	}))
	mux.HandleFunc("/app.js", count("/app.js", jsHandler))
	mux.HandleFunc("/pic.png", count("/pic.png", pngHandler))
	mux.HandleFunc("/scene.glb", count("/scene.glb", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "model/gltf-binary")
		_, _ = w.Write([]byte("glTF-binary-data"))
	}))

	engine, _ := newTestEngine(t)
	reporter := newRecordingReporter()

	_, err := engine.Run(context.Background(), Job{
		SessionID:  "veto-test",
		RootURL:    srv.URL + "/",
		OutputRoot: t.TempDir(),
		Options: model.CloneOptions{
			Depth:         1,
			IncludeAssets: []model.AssetType{model.AssetType3DModel},
		},
		Reporter: reporter,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Script, stylesheet, and img hints are unambiguous: the filter must
	// veto those fetches before they hit the wire.
	mu.Lock()
	defer mu.Unlock()
	for _, path := range []string{"/app.js", "/app.css", "/pic.png"} {
		if hits[path] != 0 {
			t.Errorf("excluded asset %s was fetched %d times, want 0", path, hits[path])
		}
	}
	if hits["/scene.glb"] != 1 {
		t.Errorf("wanted asset /scene.glb fetched %d times, want 1", hits["/scene.glb"])
	}

	js, ok := reporter.asset(srv.URL + "/app.js")
	if !ok {
		t.Fatal("vetoed asset should still be reported")
	}
	if js.Status != model.DownloadAbandoned {
		t.Errorf("vetoed asset status = %s, want %s", js.Status, model.DownloadAbandoned)
	}
	if js.FailureReason != "excluded by asset type filter" {
		t.Errorf("vetoed asset reason = %q", js.FailureReason)
	}
}

func TestEngineRunResumeSkipsIntactAssets(t *testing.T) {
	t.Parallel()

	var fetches int
	var mu sync.Mutex

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><img src="/pic.png"></body></html>`))
	})
	mux.HandleFunc("/pic.png", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fetches++
		mu.Unlock()
		pngHandler(w, r)
	})

	engine, _ := newTestEngine(t)
	outputRoot := t.TempDir()

	// Pre-seed the output tree and resume state as a prior run would.
	if err := os.MkdirAll(filepath.Join(outputRoot, "assets", "image"), 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(outputRoot, "assets", "image", "pic.png"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	picURL := srv.URL + "/pic.png"
	resume := &ResumeState{
		Fingerprint: model.Fingerprint{},
		PathTable:   map[string]string{picURL: "assets/image/pic.png"},
		Assets: map[string]model.DiscoveredAsset{
			picURL: {
				SourceURL: picURL,
				Type:      model.AssetTypeImage,
				Status:    model.DownloadComplete,
				LocalPath: "assets/image/pic.png",
			},
		},
	}

	result, err := engine.Run(context.Background(), Job{
		SessionID:  "resume-test",
		RootURL:    srv.URL + "/",
		OutputRoot: outputRoot,
		Options:    model.CloneOptions{Depth: 1},
		Reporter:   newRecordingReporter(),
		Resume:     resume,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Errorf("Success = false: %s", result.Error)
	}

	mu.Lock()
	defer mu.Unlock()
	if fetches != 0 {
		t.Errorf("intact asset fetched %d times on resume, want 0", fetches)
	}
}
