package postprocess

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"

	"github.com/siteclone/siteclone/internal/model"
)

// exifPrefix is the APP1 payload signature for EXIF segments.
var exifPrefix = []byte("Exif\x00\x00")

// OptimizeImagesStep strips EXIF metadata from downloaded JPEG images.
// Camera serials, GPS coordinates, and editing-software tags belong to
// the origin site's authors, not to a local clone, and dropping the
// segment also shrinks the files.
//
// The step runs only when the session was created with the
// optimize-images option; otherwise it is a logged no-op.
type OptimizeImagesStep struct {
	logger *slog.Logger
}

// NewOptimizeImagesStep creates the image optimization step.
func NewOptimizeImagesStep(logger *slog.Logger) *OptimizeImagesStep {
	return &OptimizeImagesStep{logger: logger}
}

// Name returns the step name.
func (s *OptimizeImagesStep) Name() string {
	return "optimize-images"
}

// Do strips EXIF segments from every downloaded JPEG in the output tree.
func (s *OptimizeImagesStep) Do(ctx context.Context, job *Job) error {
	if !job.Session.Options.OptimizeImages {
		s.logger.Debug("image optimization not requested",
			"sessionID", job.Session.ID)
		return nil
	}

	var optimized int
	for _, asset := range job.Assets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !asset.Downloaded() || !optimizableImage(asset) {
			continue
		}

		full := filepath.Join(job.Session.OutputRoot, filepath.FromSlash(asset.LocalPath))
		data, err := os.ReadFile(full)
		if err != nil {
			s.logger.Warn("image optimization skipped file",
				"sessionID", job.Session.ID,
				"path", asset.LocalPath,
				"error", err)
			continue
		}

		rawExif, err := exif.SearchAndExtractExif(data)
		if err != nil || rawExif == nil {
			continue
		}
		entries, _, err := exif.GetFlatExifData(rawExif, nil)
		if err != nil {
			continue
		}

		stripped, ok := stripJPEGExif(data)
		if !ok {
			continue
		}
		if err := os.WriteFile(full, stripped, 0600); err != nil {
			s.logger.Warn("image optimization write failed",
				"sessionID", job.Session.ID,
				"path", asset.LocalPath,
				"error", err)
			continue
		}

		optimized++
		s.logger.Debug("stripped EXIF metadata",
			"path", asset.LocalPath,
			"tags", len(entries),
			"savedBytes", len(data)-len(stripped))
	}

	s.logger.Info("image optimization finished",
		"sessionID", job.Session.ID,
		"optimized", optimized)
	return nil
}

// optimizableImage reports whether the asset is a JPEG we can strip.
// Other EXIF-bearing formats (TIFF) embed the metadata in the image
// structure itself and are left alone.
func optimizableImage(asset model.DiscoveredAsset) bool {
	if asset.Type != model.AssetTypeImage && asset.Type != model.AssetTypeTexture {
		return false
	}
	switch strings.ToLower(path.Ext(asset.LocalPath)) {
	case ".jpg", ".jpeg":
		return true
	default:
		return false
	}
}

// stripJPEGExif returns a copy of the JPEG with its EXIF APP1 segments
// removed. Returns false when the data is not a JPEG or carries no EXIF
// segment.
func stripJPEGExif(data []byte) ([]byte, bool) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, false
	}

	out := make([]byte, 0, len(data))
	out = append(out, data[:2]...)

	removed := false
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			break
		}
		marker := data[i+1]
		if marker == 0xDA {
			// Start of scan: entropy-coded data runs to the end.
			break
		}

		segLen := int(data[i+2])<<8 | int(data[i+3])
		end := i + 2 + segLen
		if segLen < 2 || end > len(data) {
			return nil, false
		}

		if marker == 0xE1 && bytes.HasPrefix(data[i+4:end], exifPrefix) {
			removed = true
		} else {
			out = append(out, data[i:end]...)
		}
		i = end
	}

	if !removed {
		return nil, false
	}
	out = append(out, data[i:]...)
	return out, true
}
