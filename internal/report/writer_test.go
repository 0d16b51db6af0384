package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/siteclone/siteclone/internal/model"
)

func testSummary() *Summary {
	started := time.Now().Add(-90 * time.Second)
	completed := time.Now()
	session := model.Session{
		ID:     "abc-123",
		URL:    "https://example.com",
		Status: model.StatusCompleted,
		Fingerprint: model.Fingerprint{
			Tool:       model.BuildToolVite,
			Confidence: 0.95,
			Evidence:   []string{"marker:vite-client"},
		},
		StartedAt:   started,
		CompletedAt: &completed,
	}
	assets := []model.DiscoveredAsset{
		{SourceURL: "https://example.com/a.js", Type: model.AssetTypeJavaScript, Status: model.DownloadComplete},
		{SourceURL: "https://example.com/b.png", Type: model.AssetTypeImage, Status: model.DownloadComplete},
		{SourceURL: "https://example.com/c.glb", Type: model.AssetType3DModel, Status: model.DownloadComplete},
		{SourceURL: "https://example.com/d.png", Type: model.AssetTypeImage, Status: model.DownloadFailed, FailureReason: "status 404"},
	}
	result := model.CloningResult{
		SessionID:        "abc-123",
		Success:          true,
		AssetsFound:      4,
		AssetsDownloaded: 3,
		AssetsFailed:     1,
		PagesVisited:     2,
	}
	return NewSummary(session, assets, result)
}

func TestNewSummary(t *testing.T) {
	t.Parallel()

	s := testSummary()

	if s.TypeCounts[model.AssetTypeImage] != 1 {
		t.Errorf("image count = %d, want 1 (failed asset excluded)", s.TypeCounts[model.AssetTypeImage])
	}
	if s.TypeCounts[model.AssetType3DModel] != 1 {
		t.Errorf("3d-model count = %d, want 1", s.TypeCounts[model.AssetType3DModel])
	}
	if len(s.Failures) != 1 || s.Failures[0].Reason != "status 404" {
		t.Errorf("Failures = %v", s.Failures)
	}
	if s.Duration <= 0 {
		t.Errorf("Duration = %v, want positive", s.Duration)
	}
	if !s.Complete() {
		t.Error("Complete() = false for completed session")
	}
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n, err := NewMarkdownWriter(&buf).Write(testSummary())
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n == 0 {
		t.Error("Write() wrote 0 bytes")
	}

	out := buf.String()
	for _, want := range []string{
		"# Clone Report",
		"https://example.com",
		"vite",
		"## Assets",
		"## Failed Downloads",
		"status 404",
		"mermaid",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q", want)
		}
	}
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(testSummary()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var decoded Summary
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.SessionID != "abc-123" {
		t.Errorf("SessionID = %q", decoded.SessionID)
	}
	if decoded.Fingerprint.Tool != model.BuildToolVite {
		t.Errorf("Fingerprint.Tool = %s", decoded.Fingerprint.Tool)
	}
}

func TestTextWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewTextWriter(&buf, WithVerbose(true)).Write(testSummary()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Clone Report",
		"vite",
		"Assets downloaded: 3",
		"Failed downloads:",
		"status 404",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q", want)
		}
	}
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var a, b bytes.Buffer
	mw := NewMultiWriter(NewJSONWriter(&a), NewTextWriter(&b))

	if _, err := mw.Write(testSummary()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if a.Len() == 0 || b.Len() == 0 {
		t.Error("MultiWriter skipped a destination")
	}
}
