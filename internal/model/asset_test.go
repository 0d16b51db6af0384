package model

import "testing"

// TestParseAssetType tests taxonomy parsing.
func TestParseAssetType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  AssetType
	}{
		{"3d-model", AssetType3DModel},
		{"environment-map", AssetTypeEnvironmentMap},
		{"texture", AssetTypeTexture},
		{"IMAGE", AssetTypeImage},
		{" javascript ", AssetTypeJavaScript},
		{"stylesheet", AssetTypeStylesheet},
		{"gif89a", AssetTypeOther},
		{"", AssetTypeOther},
	}

	for _, tt := range tests {
		if got := ParseAssetType(tt.input); got != tt.want {
			t.Errorf("ParseAssetType(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// TestAllAssetTypesClosed verifies the taxonomy is closed and self-consistent.
func TestAllAssetTypesClosed(t *testing.T) {
	t.Parallel()

	all := AllAssetTypes()
	if len(all) != 11 {
		t.Fatalf("expected 11 asset types, got %d", len(all))
	}
	seen := make(map[AssetType]bool)
	for _, at := range all {
		if !at.IsValid() {
			t.Errorf("%q should be valid", at)
		}
		if seen[at] {
			t.Errorf("duplicate asset type %q", at)
		}
		seen[at] = true
	}
}

// TestCloneOptionsWants tests the include-assets filter.
func TestCloneOptionsWants(t *testing.T) {
	t.Parallel()

	t.Run("empty include set wants everything", func(t *testing.T) {
		t.Parallel()

		opts := CloneOptions{Depth: 1}
		for _, at := range AllAssetTypes() {
			if !opts.Wants(at) {
				t.Errorf("empty filter should want %q", at)
			}
		}
	})

	t.Run("explicit include set filters", func(t *testing.T) {
		t.Parallel()

		opts := CloneOptions{
			Depth:         2,
			IncludeAssets: []AssetType{AssetTypeImage, AssetType3DModel},
		}
		if !opts.Wants(AssetTypeImage) {
			t.Error("expected image to be wanted")
		}
		if opts.Wants(AssetTypeVideo) {
			t.Error("expected video to be filtered out")
		}
	})
}
