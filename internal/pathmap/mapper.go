package pathmap

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/siteclone/siteclone/internal/model"
)

// fallbackDir is the directory root for the unknown-tool scheme. Unlike
// the tool-specific schemes, it encodes the asset type into the path.
const fallbackDir = "assets"

// conventions maps each recognized build tool to its per-type directory
// layout. Types absent from a tool's map fall through to the tool's
// defaultDir; tools absent from the table fall through to the
// type-bucketed fallback scheme.
var conventions = map[model.BuildTool]toolConvention{
	model.BuildToolVueCLI: {
		defaultDir: "assets",
		dirs: map[model.AssetType]string{
			model.AssetTypeImage:          "img",
			model.AssetTypeJavaScript:     "js",
			model.AssetTypeStylesheet:     "css",
			model.AssetTypeFont:           "fonts",
			model.AssetTypeVideo:          "media",
			model.AssetTypeAudio:          "media",
			model.AssetType3DModel:        "models",
			model.AssetTypeTexture:        "img/textures",
			model.AssetTypeEnvironmentMap: "img/env",
		},
	},
	model.BuildToolCreateReactApp: {
		// CRA buckets every media type under one flat directory.
		defaultDir: "static/media",
		dirs: map[model.AssetType]string{
			model.AssetTypeJavaScript: "static/js",
			model.AssetTypeStylesheet: "static/css",
		},
	},
	model.BuildToolVite: {
		// Vite emits a single flat assets directory.
		defaultDir: "assets",
		dirs:       map[model.AssetType]string{},
	},
	model.BuildToolNext: {
		defaultDir: "_next/static/media",
		dirs: map[model.AssetType]string{
			model.AssetTypeJavaScript: "_next/static/chunks",
			model.AssetTypeStylesheet: "_next/static/css",
		},
	},
	model.BuildToolNuxt: {
		defaultDir: "_nuxt",
		dirs:       map[model.AssetType]string{},
	},
	model.BuildToolAngular: {
		defaultDir: "assets",
		dirs: map[model.AssetType]string{
			// Angular CLI emits its bundles at the output root.
			model.AssetTypeJavaScript: ".",
			model.AssetTypeStylesheet: ".",
		},
	},
	model.BuildToolWebpack: {
		defaultDir: "assets",
		dirs: map[model.AssetType]string{
			model.AssetTypeJavaScript: "js",
			model.AssetTypeStylesheet: "css",
		},
	},
}

// toolConvention is one tool's directory layout.
type toolConvention struct {
	// defaultDir receives asset types with no explicit entry.
	defaultDir string
	// dirs maps asset types to their directory.
	dirs map[model.AssetType]string
}

// dirFor resolves the directory for an asset type under this convention.
func (c toolConvention) dirFor(t model.AssetType) string {
	if dir, ok := c.dirs[t]; ok {
		return dir
	}
	return c.defaultDir
}

// TargetPath computes the canonical relative path for an asset under the
// given build tool's convention. Pure and deterministic: the same inputs
// always produce the same output. Collision handling lives in the Mapper,
// which owns the per-session table.
//
// HTML pages are special-cased: they mirror their URL path so internal
// links keep working ("/about/" becomes "about/index.html").
func TargetPath(tool model.BuildTool, sourceURL string, assetType model.AssetType) string {
	if assetType == model.AssetTypeHTML {
		return pagePath(sourceURL)
	}

	name := fileName(sourceURL)
	conv, ok := conventions[tool]
	if !ok {
		// Unknown tool: type-bucketed fallback scheme.
		return path.Join(fallbackDir, assetType.String(), name)
	}
	return path.Join(conv.dirFor(assetType), name)
}

// pagePath mirrors a page URL into the output tree.
func pagePath(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "index.html"
	}
	p := strings.TrimPrefix(u.Path, "/")
	if strings.HasSuffix(p, "/") {
		return path.Join(p, "index.html")
	}
	if path.Ext(p) == "" {
		return p + "/index.html"
	}
	return sanitizeSegments(p)
}

// Mapper owns the URL->path table for one session.
//
// Concurrent crawl workers resolve paths through LocalPath, so the table
// is guarded by a mutex; the bijection invariant (distinct URLs never
// share a path) is enforced here with discriminator suffixes.
type Mapper struct {
	mu sync.Mutex

	// tool is the frozen build-tool identity paths are computed under.
	tool model.BuildTool

	// byURL is the assigned path for each source URL.
	byURL map[string]string

	// taken marks every assigned path for collision detection.
	taken map[string]bool

	// seq feeds synthesized filenames for URLs with no usable last segment.
	seq int
}

// NewMapper creates a Mapper for the given (already frozen) build tool.
func NewMapper(tool model.BuildTool) *Mapper {
	return &Mapper{
		tool:  tool,
		byURL: make(map[string]string),
		taken: make(map[string]bool),
	}
}

// Tool returns the build tool the mapper resolves paths under.
func (m *Mapper) Tool() model.BuildTool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tool
}

// LocalPath returns the already-assigned path for a previously seen asset,
// or computes, de-collides, and caches one. The returned path is stable
// for the lifetime of the session: repeated calls for the same URL always
// return the first assignment, even if the mapper's inputs would now
// produce something different.
func (m *Mapper) LocalPath(sourceURL string, assetType model.AssetType, contentType string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.byURL[sourceURL]; ok {
		return p
	}

	candidate := TargetPath(m.tool, sourceURL, assetType)
	if assetType != model.AssetTypeHTML && fileName(sourceURL) == "" {
		// No usable last segment: TargetPath returned a bare directory, so
		// synthesize a filename from the content type and the sequence.
		candidate = path.Join(candidate, m.synthesizeName(contentType))
	}

	assigned := m.decollide(candidate)
	m.byURL[sourceURL] = assigned
	m.taken[assigned] = true
	return assigned
}

// Table returns a copy of the URL->path table. Consumed by the reference
// rewriter and the export collaborator.
func (m *Mapper) Table() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(m.byURL))
	for k, v := range m.byURL {
		out[k] = v
	}
	return out
}

// Len returns the number of assigned mappings.
func (m *Mapper) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byURL)
}

// Restore pre-seeds the table from a persisted session snapshot so a
// resumed crawl keeps every previously assigned path.
func (m *Mapper) Restore(table map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for u, p := range table {
		if _, exists := m.byURL[u]; exists {
			continue
		}
		m.byURL[u] = p
		m.taken[p] = true
	}
}

// decollide appends a numeric discriminator until the path is unique.
// Caller must hold the mutex.
func (m *Mapper) decollide(candidate string) string {
	if !m.taken[candidate] {
		return candidate
	}
	ext := path.Ext(candidate)
	stem := strings.TrimSuffix(candidate, ext)
	for i := 2; ; i++ {
		next := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if !m.taken[next] {
			return next
		}
	}
}

// synthesizeName builds a filename for URLs whose last path segment is
// empty or ambiguous, using the content type and a stable sequence.
// Caller must hold the mutex.
func (m *Mapper) synthesizeName(contentType string) string {
	m.seq++
	ext := extensionForContentType(contentType)
	return fmt.Sprintf("asset-%04d%s", m.seq, ext)
}

// extensionForContentType picks a filename extension for a synthesized name.
func extensionForContentType(contentType string) string {
	ct := strings.ToLower(contentType)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	case "text/css":
		return ".css"
	case "application/javascript", "text/javascript":
		return ".js"
	case "model/gltf-binary":
		return ".glb"
	case "model/gltf+json":
		return ".gltf"
	case "font/woff2":
		return ".woff2"
	case "video/mp4":
		return ".mp4"
	case "audio/mpeg":
		return ".mp3"
	default:
		return ".bin"
	}
}

// fileName extracts and sanitizes the last path segment of a URL.
// Returns "index.html"-style emptiness handling to the caller: an empty
// segment yields "" after sanitization and triggers name synthesis.
func fileName(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return sanitizeFileName(base)
}

// asciiFold strips diacritics so filenames survive case-insensitive and
// legacy filesystems: NFKD decomposition followed by removal of the
// combining marks.
var asciiFold = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// sanitizeFileName folds a URL segment into a safe filename.
func sanitizeFileName(name string) string {
	folded, _, err := transform.String(asciiFold, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	// Guard against dot-only names escaping the tree.
	out := strings.Trim(b.String(), ".")
	return out
}

// sanitizeSegments sanitizes every segment of a relative page path.
func sanitizeSegments(p string) string {
	segs := strings.Split(p, "/")
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		clean := sanitizeFileName(s)
		if clean == "" {
			continue
		}
		out = append(out, clean)
	}
	if len(out) == 0 {
		return "index.html"
	}
	return path.Join(out...)
}
