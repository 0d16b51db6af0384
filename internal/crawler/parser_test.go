package crawler

import (
	"net/url"
	"strings"
	"testing"

	"github.com/siteclone/siteclone/internal/model"
)

func TestParserExtractsAssets(t *testing.T) {
	t.Parallel()

	page := `<!DOCTYPE html>
<html>
<head>
<title>Showroom</title>
<link rel="stylesheet" href="/css/app.css">
<link rel="icon" href="/favicon.ico">
<link rel="preload" href="/fonts/inter.woff2" as="font">
<link rel="modulepreload" href="/assets/index-a1b2c3.js">
<script src="/assets/index-a1b2c3.js"></script>
<style>.hero { background: url('/img/hero.jpg'); }</style>
</head>
<body>
<img src="/img/logo.png" srcset="/img/logo.png 1x, /img/logo@2x.png 2x">
<video src="/media/tour.mp4" poster="/img/poster.jpg"></video>
<model-viewer src="/models/chair.glb" environment-image="/env/studio.hdr"></model-viewer>
<a href="/about">About</a>
<a href="https://other.example.org/external">External</a>
<a href="mailto:hi@example.com">Mail</a>
</body>
</html>`

	p, err := NewParser("https://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	result, err := p.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if result.Title != "Showroom" {
		t.Errorf("Title = %q, want Showroom", result.Title)
	}

	wantAssets := map[string]model.AssetType{
		"https://example.com/css/app.css":           model.AssetTypeStylesheet,
		"https://example.com/favicon.ico":           model.AssetTypeImage,
		"https://example.com/fonts/inter.woff2":     model.AssetTypeFont,
		"https://example.com/assets/index-a1b2c3.js": model.AssetTypeJavaScript,
		"https://example.com/img/hero.jpg":          model.AssetTypeOther,
		"https://example.com/img/logo.png":          model.AssetTypeImage,
		"https://example.com/img/logo@2x.png":       model.AssetTypeImage,
		"https://example.com/media/tour.mp4":        model.AssetTypeVideo,
		"https://example.com/img/poster.jpg":        model.AssetTypeImage,
		"https://example.com/models/chair.glb":      model.AssetType3DModel,
		"https://example.com/env/studio.hdr":        model.AssetTypeEnvironmentMap,
	}

	got := make(map[string]model.AssetType)
	for _, a := range result.Assets {
		got[a.URL] = a.Hint
	}

	for u, hint := range wantAssets {
		gotHint, ok := got[u]
		if !ok {
			t.Errorf("asset %s not extracted", u)
			continue
		}
		if gotHint != hint {
			t.Errorf("asset %s hint = %s, want %s", u, gotHint, hint)
		}
	}

	if len(result.PageLinks) != 1 || result.PageLinks[0] != "https://example.com/about" {
		t.Errorf("PageLinks = %v, want only same-host /about", result.PageLinks)
	}
}

func TestParserSkipsNonFetchableSchemes(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<script src="javascript:void(0)"></script>
<img src="data:image/png;base64,iVBOR">
<a href="#top">Top</a>
<a href="tel:+123">Call</a>
</body></html>`

	p, err := NewParser("https://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	result, err := p.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Assets) != 0 {
		t.Errorf("Assets = %v, want none", result.Assets)
	}
	if len(result.PageLinks) != 0 {
		t.Errorf("PageLinks = %v, want none", result.PageLinks)
	}
}

func TestExtractCSSRefs(t *testing.T) {
	t.Parallel()

	base, _ := url.Parse("https://example.com/css/app.css")
	css := `
@import "reset.css";
@font-face { src: url('/fonts/inter.woff2') format('woff2'); }
.bg { background-image: url("../img/texture.ktx2"); }
.inline { background: url(data:image/gif;base64,R0lG); }
`

	refs := ExtractCSSRefs(base, css)

	want := map[string]bool{
		"https://example.com/css/reset.css":     true,
		"https://example.com/fonts/inter.woff2": true,
		"https://example.com/img/texture.ktx2":  true,
	}

	got := make(map[string]bool)
	for _, r := range refs {
		got[r.URL] = true
	}

	for u := range want {
		if !got[u] {
			t.Errorf("missing CSS ref %s", u)
		}
	}
	for u := range got {
		if !want[u] {
			t.Errorf("unexpected CSS ref %s", u)
		}
	}
}
