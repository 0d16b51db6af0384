package pathmap

import (
	"sync"
	"testing"

	"github.com/siteclone/siteclone/internal/model"
)

// TestTargetPathConventions tests the per-tool convention table.
func TestTargetPathConventions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tool model.BuildTool
		url  string
		typ  model.AssetType
		want string
	}{
		{"vue-cli image", model.BuildToolVueCLI, "https://site.test/uploads/hero.png", model.AssetTypeImage, "img/hero.png"},
		{"vue-cli script", model.BuildToolVueCLI, "https://site.test/js/app.js", model.AssetTypeJavaScript, "js/app.js"},
		{"vue-cli model", model.BuildToolVueCLI, "https://site.test/files/chair.glb", model.AssetType3DModel, "models/chair.glb"},
		{"cra image", model.BuildToolCreateReactApp, "https://site.test/logo.svg", model.AssetTypeImage, "static/media/logo.svg"},
		{"cra font goes to flat media dir", model.BuildToolCreateReactApp, "https://site.test/f/inter.woff2", model.AssetTypeFont, "static/media/inter.woff2"},
		{"cra script", model.BuildToolCreateReactApp, "https://site.test/main.js", model.AssetTypeJavaScript, "static/js/main.js"},
		{"vite flat assets", model.BuildToolVite, "https://site.test/x/bg.jpg", model.AssetTypeImage, "assets/bg.jpg"},
		{"next chunk", model.BuildToolNext, "https://site.test/_next/static/chunks/main.js", model.AssetTypeJavaScript, "_next/static/chunks/main.js"},
		{"unknown type bucket", model.BuildToolUnknown, "https://site.test/pic/cat.png", model.AssetTypeImage, "assets/image/cat.png"},
		{"unknown texture bucket", model.BuildToolUnknown, "https://site.test/t/wood.ktx2", model.AssetTypeTexture, "assets/texture/wood.ktx2"},
		{"page root", model.BuildToolVueCLI, "https://site.test/", model.AssetTypeHTML, "index.html"},
		{"page directory", model.BuildToolUnknown, "https://site.test/about/", model.AssetTypeHTML, "about/index.html"},
		{"page extensionless", model.BuildToolUnknown, "https://site.test/pricing", model.AssetTypeHTML, "pricing/index.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := TargetPath(tt.tool, tt.url, tt.typ)
			if got != tt.want {
				t.Errorf("TargetPath(%s, %q, %s) = %q, want %q", tt.tool, tt.url, tt.typ, got, tt.want)
			}
		})
	}
}

// TestTargetPathDeterministic verifies repeated calls yield identical
// results.
func TestTargetPathDeterministic(t *testing.T) {
	t.Parallel()

	url := "https://site.test/img/logo.png"
	first := TargetPath(model.BuildToolVueCLI, url, model.AssetTypeImage)
	for range 10 {
		if got := TargetPath(model.BuildToolVueCLI, url, model.AssetTypeImage); got != first {
			t.Fatalf("TargetPath not deterministic: %q vs %q", got, first)
		}
	}
}

// TestMapperStability tests the once-assigned-never-recomputed invariant.
func TestMapperStability(t *testing.T) {
	t.Parallel()

	m := NewMapper(model.BuildToolVueCLI)
	url := "https://site.test/uploads/hero.png"

	first := m.LocalPath(url, model.AssetTypeImage, "image/png")
	if first != "img/hero.png" {
		t.Fatalf("unexpected first assignment %q", first)
	}

	// A later (different) classification must not move the asset.
	second := m.LocalPath(url, model.AssetTypeTexture, "image/ktx2")
	if second != first {
		t.Errorf("assigned path changed from %q to %q", first, second)
	}
}

// TestMapperCollisions tests the bijection invariant under filename
// collisions.
func TestMapperCollisions(t *testing.T) {
	t.Parallel()

	m := NewMapper(model.BuildToolVueCLI)

	a := m.LocalPath("https://site.test/a/logo.png", model.AssetTypeImage, "image/png")
	b := m.LocalPath("https://site.test/b/logo.png", model.AssetTypeImage, "image/png")
	c := m.LocalPath("https://site.test/c/logo.png", model.AssetTypeImage, "image/png")

	if a != "img/logo.png" {
		t.Errorf("first assignment should be undecorated, got %q", a)
	}
	if b == a || c == a || c == b {
		t.Errorf("collision produced duplicate paths: %q %q %q", a, b, c)
	}
	if b != "img/logo-2.png" {
		t.Errorf("expected discriminator suffix, got %q", b)
	}
}

// TestMapperSynthesizedNames tests filename synthesis for empty segments.
func TestMapperSynthesizedNames(t *testing.T) {
	t.Parallel()

	m := NewMapper(model.BuildToolUnknown)

	p := m.LocalPath("https://cdn.site.test/", model.AssetTypeImage, "image/png")
	if p == "" {
		t.Fatal("expected synthesized path")
	}
	if got := m.LocalPath("https://cdn.site.test/", model.AssetTypeImage, "image/png"); got != p {
		t.Errorf("synthesized path not stable: %q vs %q", got, p)
	}
}

// TestMapperConcurrentBijection hammers the table from concurrent workers
// and verifies it stays a bijection.
func TestMapperConcurrentBijection(t *testing.T) {
	t.Parallel()

	m := NewMapper(model.BuildToolVite)
	urls := []string{
		"https://site.test/a/logo.png",
		"https://site.test/b/logo.png",
		"https://site.test/c/logo.png",
		"https://site.test/d/logo.png",
		"https://site.test/e/logo.png",
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, u := range urls {
				m.LocalPath(u, model.AssetTypeImage, "image/png")
			}
		}()
	}
	wg.Wait()

	table := m.Table()
	if len(table) != len(urls) {
		t.Fatalf("expected %d mappings, got %d", len(urls), len(table))
	}
	seen := make(map[string]string)
	for u, p := range table {
		if prev, dup := seen[p]; dup {
			t.Errorf("path %q assigned to both %q and %q", p, prev, u)
		}
		seen[p] = u
	}
}

// TestMapperRestore tests snapshot restoration for resumed sessions.
func TestMapperRestore(t *testing.T) {
	t.Parallel()

	m := NewMapper(model.BuildToolVueCLI)
	m.Restore(map[string]string{
		"https://site.test/a/logo.png": "img/logo.png",
	})

	// The restored URL keeps its path; a colliding newcomer is displaced.
	if got := m.LocalPath("https://site.test/a/logo.png", model.AssetTypeImage, "image/png"); got != "img/logo.png" {
		t.Errorf("restored mapping lost: %q", got)
	}
	if got := m.LocalPath("https://site.test/z/logo.png", model.AssetTypeImage, "image/png"); got == "img/logo.png" {
		t.Error("restored path reused for a different URL")
	}
}

// TestSanitizeFileName tests Unicode folding and unsafe character removal.
func TestSanitizeFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"héro-imagé.png", "hero-image.png"},
		{"logo (final).svg", "logo-final.svg"},
		{"..", ""},
		{"plain.css", "plain.css"},
		{"with space.js", "with-space.js"},
	}

	for _, tt := range tests {
		if got := sanitizeFileName(tt.input); got != tt.want {
			t.Errorf("sanitizeFileName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
