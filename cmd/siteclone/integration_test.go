package main

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/siteclone/siteclone/internal/model"
	"github.com/siteclone/siteclone/internal/report"
)

// newTestSite serves a small site with a stylesheet and an image so a
// clone exercises crawling, classification, and path mapping end to end.
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head><link rel="stylesheet" href="/styles/site.css"></head>
<body><img src="/img/logo.png"><a href="/about">About</a></body>
</html>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><p>About</p></body></html>`))
	})
	mux.HandleFunc("/styles/site.css", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		_, _ = w.Write([]byte("body { margin: 0; }"))
	})
	mux.HandleFunc("/img/logo.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\nfake"))
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

// TestCloneCommandEndToEnd runs the clone command against a local site
// and checks the output tree and JSON report.
func TestCloneCommandEndToEnd(t *testing.T) {
	site := newTestSite(t)
	outputDir := t.TempDir()
	reportPath := filepath.Join(t.TempDir(), "report.json")

	root := NewRootCmd()
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetArgs([]string{
		"clone",
		"--allow-private",
		"--output", outputDir,
		"--report", reportPath,
		"--json",
		site.URL,
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("clone command failed: %v", err)
	}

	if !strings.Contains(stdout.String(), "Clone completed") {
		t.Errorf("expected completion message, got %q", stdout.String())
	}

	// The output root lives under the output directory and holds at
	// least the entry page.
	var htmlFiles []string
	err := filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".html") {
			htmlFiles = append(htmlFiles, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to walk output dir: %v", err)
	}
	if len(htmlFiles) == 0 {
		t.Fatal("expected at least one HTML file in the output tree")
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	var summary report.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("failed to unmarshal report: %v", err)
	}
	if summary.Status != model.StatusCompleted {
		t.Errorf("expected completed status, got %q", summary.Status)
	}
	if summary.AssetsDownloaded == 0 {
		t.Error("expected downloaded assets in the report")
	}
}

// TestCloneCommandInvalidURL checks that an unusable target fails fast.
func TestCloneCommandInvalidURL(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"clone", "ftp://example.com"})

	if err := root.Execute(); err == nil {
		t.Fatal("expected error for non-HTTP target")
	}
}

// TestCloneCommandRejectsConflictingReportFlags checks the json/markdown
// exclusivity.
func TestCloneCommandRejectsConflictingReportFlags(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"clone", "--json", "--markdown", "https://example.com"})

	if err := root.Execute(); err == nil {
		t.Fatal("expected error for conflicting report flags")
	}
}
