package postprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// serviceWorkerFile is the filename the worker script is written under.
const serviceWorkerFile = "sw.js"

// swTemplate is the generated worker: install precaches every cloned
// file, fetch serves cache-first so the clone works fully offline.
const swTemplate = `// Generated service worker: offline cache for this clone.
const CACHE_NAME = %q;
const PRECACHE = %s;

self.addEventListener("install", (event) => {
  event.waitUntil(
    caches.open(CACHE_NAME).then((cache) => cache.addAll(PRECACHE)),
  );
  self.skipWaiting();
});

self.addEventListener("activate", (event) => {
  event.waitUntil(
    caches.keys().then((keys) =>
      Promise.all(keys.filter((k) => k !== CACHE_NAME).map((k) => caches.delete(k))),
    ),
  );
});

self.addEventListener("fetch", (event) => {
  event.respondWith(
    caches.match(event.request).then((hit) => hit || fetch(event.request)),
  );
});
`

// swRegistration is appended to the entry page so browsers install the
// worker on first load.
const swRegistration = `<script>
if ("serviceWorker" in navigator) {
  navigator.serviceWorker.register("./sw.js");
}
</script>`

// ServiceWorkerStep generates an offline service worker precaching every
// downloaded file, plus a registration snippet on the entry page.
//
// The step runs only when the session was created with the
// generate-service-worker option. It must run after reference rewriting
// so the registration snippet survives in the final markup.
type ServiceWorkerStep struct {
	logger *slog.Logger
}

// NewServiceWorkerStep creates the service worker generation step.
func NewServiceWorkerStep(logger *slog.Logger) *ServiceWorkerStep {
	return &ServiceWorkerStep{logger: logger}
}

// Name returns the step name.
func (s *ServiceWorkerStep) Name() string {
	return "generate-service-worker"
}

// Do writes sw.js at the output root and registers it on the entry page.
func (s *ServiceWorkerStep) Do(ctx context.Context, job *Job) error {
	if !job.Session.Options.GenerateServiceWorker {
		s.logger.Debug("service worker not requested",
			"sessionID", job.Session.ID)
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	precache := precacheList(job)
	manifest, err := json.MarshalIndent(precache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal precache manifest: %w", err)
	}

	cacheName := "siteclone-" + job.Session.ID
	script := fmt.Sprintf(swTemplate, cacheName, manifest)

	swPath := filepath.Join(job.Session.OutputRoot, serviceWorkerFile)
	if err := os.WriteFile(swPath, []byte(script), 0600); err != nil {
		return fmt.Errorf("write service worker: %w", err)
	}

	if err := s.registerOnEntryPage(job); err != nil {
		s.logger.Warn("service worker registration not injected",
			"sessionID", job.Session.ID,
			"error", err)
	}

	s.logger.Info("service worker generated",
		"sessionID", job.Session.ID,
		"precached", len(precache))
	return nil
}

// precacheList assembles the sorted worker-relative URLs of every
// downloaded file.
func precacheList(job *Job) []string {
	out := make([]string, 0, len(job.Assets)+1)
	seen := make(map[string]bool)
	for _, asset := range job.Assets {
		if !asset.Downloaded() || asset.LocalPath == "" {
			continue
		}
		ref := "./" + asset.LocalPath
		if !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}
	sort.Strings(out)
	return out
}

// registerOnEntryPage appends the registration snippet to index.html.
func (s *ServiceWorkerStep) registerOnEntryPage(job *Job) error {
	entry := filepath.Join(job.Session.OutputRoot, "index.html")
	data, err := os.ReadFile(entry)
	if err != nil {
		return err
	}

	page := string(data)
	if strings.Contains(page, "serviceWorker.register") {
		return nil
	}

	if i := strings.LastIndex(page, "</body>"); i >= 0 {
		page = page[:i] + swRegistration + "\n" + page[i:]
	} else {
		page += "\n" + swRegistration + "\n"
	}
	return os.WriteFile(entry, []byte(page), 0600)
}
