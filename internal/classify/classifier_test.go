package classify

import (
	"testing"

	"github.com/siteclone/siteclone/internal/model"
)

// TestClassifyContentTypeWins tests that explicit content types beat
// extensions.
func TestClassifyContentTypeWins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		url         string
		contentType string
		body        []byte
		wantType    model.AssetType
	}{
		{"gltf json", "https://site.test/scene.bin", "model/gltf+json", nil, model.AssetType3DModel},
		{"css with charset", "https://site.test/app", "text/css; charset=utf-8", nil, model.AssetTypeStylesheet},
		{"javascript", "https://site.test/bundle", "application/javascript", nil, model.AssetTypeJavaScript},
		{"html", "https://site.test/", "text/html; charset=utf-8", nil, model.AssetTypeHTML},
		{"woff2 font", "https://site.test/f", "font/woff2", nil, model.AssetTypeFont},
		{"video family", "https://site.test/clip", "video/mp4", nil, model.AssetTypeVideo},
		{"audio family", "https://site.test/loop", "audio/ogg", nil, model.AssetTypeAudio},
		{"radiance env map", "https://site.test/sky.bin", "image/vnd.radiance", nil, model.AssetTypeEnvironmentMap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, _ := Classify(tt.url, tt.contentType, tt.body)
			if got != tt.wantType {
				t.Errorf("Classify(%q, %q) = %q, want %q", tt.url, tt.contentType, got, tt.wantType)
			}
		})
	}
}

// TestClassifyExtensionFallback tests extension mapping for generic
// content types.
func TestClassifyExtensionFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url      string
		wantType model.AssetType
	}{
		{"https://site.test/models/chair.glb?v=3", model.AssetType3DModel},
		{"https://site.test/env/studio.hdr", model.AssetTypeEnvironmentMap},
		{"https://site.test/tex/wood.ktx2", model.AssetTypeTexture},
		{"https://site.test/img/logo.webp", model.AssetTypeImage},
		{"https://site.test/js/chunk.mjs", model.AssetTypeJavaScript},
		{"https://site.test/fonts/inter.woff2", model.AssetTypeFont},
		{"https://site.test/media/intro.webm", model.AssetTypeVideo},
		{"https://site.test/download/blob", model.AssetTypeOther},
	}

	for _, tt := range tests {
		got, _ := Classify(tt.url, "application/octet-stream", nil)
		if got != tt.wantType {
			t.Errorf("Classify(%q, octet-stream) = %q, want %q", tt.url, got, tt.wantType)
		}
	}
}

// TestClassifySniffing tests byte-signature detection for containers
// served with generic or lying content types.
func TestClassifySniffing(t *testing.T) {
	t.Parallel()

	t.Run("glb served as octet-stream", func(t *testing.T) {
		t.Parallel()

		body := append([]byte("glTF"), 0x02, 0x00, 0x00, 0x00)
		got, sub := Classify("https://site.test/asset/12345", "application/octet-stream", body)
		if got != model.AssetType3DModel {
			t.Errorf("expected 3d-model, got %q", got)
		}
		if sub != "glb" {
			t.Errorf("expected subtype glb, got %q", sub)
		}
	})

	t.Run("ktx2 served as image/png", func(t *testing.T) {
		t.Parallel()

		body := []byte{0xAB, 0x4B, 0x54, 0x58, 0x20, 0x32, 0x30, 0xBB, 0x0D, 0x0A, 0x1A, 0x0A}
		got, sub := Classify("https://site.test/tex/diffuse.png", "image/png", body)
		if got != model.AssetTypeTexture {
			t.Errorf("expected texture, got %q", got)
		}
		if sub != "ktx2" {
			t.Errorf("expected subtype ktx2, got %q", sub)
		}
	})

	t.Run("real png stays image", func(t *testing.T) {
		t.Parallel()

		body := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
		got, _ := Classify("https://site.test/img/logo.png", "image/png", body)
		if got != model.AssetTypeImage {
			t.Errorf("expected image, got %q", got)
		}
	})

	t.Run("hdr served as octet-stream", func(t *testing.T) {
		t.Parallel()

		got, _ := Classify("https://site.test/bin/env", "application/octet-stream", []byte("#?RADIANCE\n"))
		if got != model.AssetTypeEnvironmentMap {
			t.Errorf("expected environment-map, got %q", got)
		}
	})
}

// TestClassifyTextureHint tests the texture subtype hint for plain images
// under texture-ish paths.
func TestClassifyTextureHint(t *testing.T) {
	t.Parallel()

	got, sub := Classify("https://site.test/textures/brick_diffuse.jpg", "image/jpeg", nil)
	if got != model.AssetTypeImage {
		t.Fatalf("expected image, got %q", got)
	}
	if sub != "texture" {
		t.Errorf("expected subtype texture, got %q", sub)
	}
}

// TestClassifyNeverFails verifies the never-fails contract on garbage input.
func TestClassifyNeverFails(t *testing.T) {
	t.Parallel()

	got, _ := Classify("::not a url::", "", []byte{0x00, 0x01})
	if got != model.AssetTypeOther {
		t.Errorf("expected other, got %q", got)
	}
	if !got.IsValid() {
		t.Error("result must always be a valid taxonomy member")
	}
}
