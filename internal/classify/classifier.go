package classify

import (
	"bytes"
	"net/url"
	"path"
	"strings"

	"github.com/siteclone/siteclone/internal/model"
)

// SniffLimit is the number of body-prefix bytes the classifier inspects.
// 64 bytes covers every magic number in the signature table with room to
// spare; callers may pass less.
const SniffLimit = 64

// contentTypeMap maps exact (parameter-stripped, lowercased) content types
// to asset types. Explicit mapping wins over everything else.
var contentTypeMap = map[string]model.AssetType{
	// 3D model containers
	"model/gltf+json":    model.AssetType3DModel,
	"model/gltf-binary":  model.AssetType3DModel,
	"model/obj":          model.AssetType3DModel,
	"model/stl":          model.AssetType3DModel,
	"model/vnd.usdz+zip": model.AssetType3DModel,

	// Texture containers
	"image/ktx":        model.AssetTypeTexture,
	"image/ktx2":       model.AssetTypeTexture,
	"image/vnd-ms.dds": model.AssetTypeTexture,
	"image/vnd.ms-dds": model.AssetTypeTexture,

	// Environment maps
	"image/vnd.radiance": model.AssetTypeEnvironmentMap,
	"image/x-exr":        model.AssetTypeEnvironmentMap,
	"image/aces":         model.AssetTypeEnvironmentMap,

	// Scripts and styles
	"application/javascript":   model.AssetTypeJavaScript,
	"application/x-javascript": model.AssetTypeJavaScript,
	"text/javascript":          model.AssetTypeJavaScript,
	"application/ecmascript":   model.AssetTypeJavaScript,
	"text/css":                 model.AssetTypeStylesheet,

	// Markup
	"text/html":             model.AssetTypeHTML,
	"application/xhtml+xml": model.AssetTypeHTML,

	// Fonts
	"font/woff":                     model.AssetTypeFont,
	"font/woff2":                    model.AssetTypeFont,
	"font/ttf":                      model.AssetTypeFont,
	"font/otf":                      model.AssetTypeFont,
	"application/font-woff":         model.AssetTypeFont,
	"application/vnd.ms-fontobject": model.AssetTypeFont,
	"application/x-font-ttf":        model.AssetTypeFont,
}

// extensionMap maps lowercased URL extensions (without dot) to asset types.
// Used when the content type is absent or generic.
var extensionMap = map[string]model.AssetType{
	// 3D models
	"gltf": model.AssetType3DModel,
	"glb":  model.AssetType3DModel,
	"fbx":  model.AssetType3DModel,
	"obj":  model.AssetType3DModel,
	"stl":  model.AssetType3DModel,
	"usdz": model.AssetType3DModel,
	"drc":  model.AssetType3DModel,

	// Environment maps
	"hdr": model.AssetTypeEnvironmentMap,
	"exr": model.AssetTypeEnvironmentMap,

	// Textures
	"ktx":   model.AssetTypeTexture,
	"ktx2":  model.AssetTypeTexture,
	"dds":   model.AssetTypeTexture,
	"basis": model.AssetTypeTexture,
	"pvr":   model.AssetTypeTexture,

	// Video
	"mp4":  model.AssetTypeVideo,
	"webm": model.AssetTypeVideo,
	"mov":  model.AssetTypeVideo,
	"m4v":  model.AssetTypeVideo,
	"ogv":  model.AssetTypeVideo,

	// Audio
	"mp3":  model.AssetTypeAudio,
	"wav":  model.AssetTypeAudio,
	"ogg":  model.AssetTypeAudio,
	"oga":  model.AssetTypeAudio,
	"flac": model.AssetTypeAudio,
	"m4a":  model.AssetTypeAudio,

	// Images
	"png":  model.AssetTypeImage,
	"jpg":  model.AssetTypeImage,
	"jpeg": model.AssetTypeImage,
	"gif":  model.AssetTypeImage,
	"webp": model.AssetTypeImage,
	"avif": model.AssetTypeImage,
	"svg":  model.AssetTypeImage,
	"ico":  model.AssetTypeImage,
	"bmp":  model.AssetTypeImage,

	// Scripts, styles, markup
	"js":   model.AssetTypeJavaScript,
	"mjs":  model.AssetTypeJavaScript,
	"cjs":  model.AssetTypeJavaScript,
	"css":  model.AssetTypeStylesheet,
	"html": model.AssetTypeHTML,
	"htm":  model.AssetTypeHTML,

	// Fonts
	"woff":  model.AssetTypeFont,
	"woff2": model.AssetTypeFont,
	"ttf":   model.AssetTypeFont,
	"otf":   model.AssetTypeFont,
	"eot":   model.AssetTypeFont,
}

// signature is one magic-byte rule used by the sniffer.
type signature struct {
	// offset is where the magic starts in the body.
	offset int
	// magic is the byte pattern.
	magic []byte
	// assetType is the classification a match produces.
	assetType model.AssetType
	// subtype refines the match for diagnostics.
	subtype string
}

// signatures is the sniffing table, checked in order. Only formats the web
// routinely serves as application/octet-stream appear here.
var signatures = []signature{
	// glTF binary container: "glTF" at offset 0.
	{0, []byte("glTF"), model.AssetType3DModel, "glb"},
	// Binary FBX: "Kaydara FBX Binary".
	{0, []byte("Kaydara FBX Binary"), model.AssetType3DModel, "fbx"},
	// KTX 1: «KTX 11»\r\n\x1a\n
	{0, []byte{0xAB, 0x4B, 0x54, 0x58, 0x20, 0x31, 0x31, 0xBB}, model.AssetTypeTexture, "ktx"},
	// KTX 2: «KTX 20»\r\n\x1a\n
	{0, []byte{0xAB, 0x4B, 0x54, 0x58, 0x20, 0x32, 0x30, 0xBB}, model.AssetTypeTexture, "ktx2"},
	// DirectDraw Surface.
	{0, []byte("DDS "), model.AssetTypeTexture, "dds"},
	// Basis Universal: "sB" + 0x13.
	{0, []byte{0x73, 0x42, 0x13}, model.AssetTypeTexture, "basis"},
	// PVR v3: "PVR\x03".
	{0, []byte{0x50, 0x56, 0x52, 0x03}, model.AssetTypeTexture, "pvr"},
	// Radiance HDR.
	{0, []byte("#?RADIANCE"), model.AssetTypeEnvironmentMap, "hdr"},
	{0, []byte("#?RGBE"), model.AssetTypeEnvironmentMap, "hdr"},
	// OpenEXR: 0x76 0x2F 0x31 0x01.
	{0, []byte{0x76, 0x2F, 0x31, 0x01}, model.AssetTypeEnvironmentMap, "exr"},
}

// texturePathHints are URL path segments that mark an image as texture
// content for subtype purposes. The type stays image unless the bytes say
// otherwise; the hint only refines the subtype.
var texturePathHints = []string{"/textures/", "/texture/", "/maps/", "/matcaps/"}

// Classify assigns an asset type and subtype from the response's declared
// content type, a bounded byte prefix, and the URL as tiebreaker.
//
// The function is pure and never fails: unrecognized combinations map to
// model.AssetTypeOther with an empty subtype.
func Classify(rawURL, contentType string, sampledBytes []byte) (model.AssetType, string) {
	ct := normalizeContentType(contentType)
	ext := urlExtension(rawURL)

	// Explicit content-type mapping wins.
	if at, ok := contentTypeMap[ct]; ok {
		return at, subtypeFor(at, ct, ext, rawURL, sampledBytes)
	}

	// Content-type families that need no table.
	switch {
	case strings.HasPrefix(ct, "video/"):
		return model.AssetTypeVideo, ext
	case strings.HasPrefix(ct, "audio/"):
		return model.AssetTypeAudio, ext
	case strings.HasPrefix(ct, "font/"):
		return model.AssetTypeFont, ext
	case strings.HasPrefix(ct, "image/"):
		// Declared images may still be texture or environment containers
		// mislabeled as image/*; the signature table settles it.
		if at, sub, ok := sniff(sampledBytes); ok && at != model.AssetTypeImage {
			return at, sub
		}
		return model.AssetTypeImage, imageSubtype(rawURL, ext)
	}

	// Generic or missing content type: extension fallback.
	if generic(ct) {
		if at, sub, ok := sniff(sampledBytes); ok {
			return at, sub
		}
		if at, ok := extensionMap[ext]; ok {
			return at, subtypeFor(at, ct, ext, rawURL, sampledBytes)
		}
		return model.AssetTypeOther, ""
	}

	// A real but unmapped content type: trust the extension before giving up.
	if at, ok := extensionMap[ext]; ok {
		return at, subtypeFor(at, ct, ext, rawURL, sampledBytes)
	}
	return model.AssetTypeOther, ""
}

// normalizeContentType lowercases and strips parameters ("; charset=...").
func normalizeContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

// generic reports whether the content type carries no useful information.
func generic(ct string) bool {
	switch ct {
	case "", "application/octet-stream", "binary/octet-stream", "application/binary":
		return true
	default:
		return false
	}
}

// urlExtension extracts the lowercased extension from the URL path,
// ignoring query strings and fragments.
func urlExtension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(strings.TrimPrefix(path.Ext(rawURL), "."))
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
}

// sniff checks the signature table against the body prefix.
func sniff(sampledBytes []byte) (model.AssetType, string, bool) {
	if len(sampledBytes) == 0 {
		return model.AssetTypeOther, "", false
	}
	for _, sig := range signatures {
		end := sig.offset + len(sig.magic)
		if len(sampledBytes) < end {
			continue
		}
		if bytes.Equal(sampledBytes[sig.offset:end], sig.magic) {
			return sig.assetType, sig.subtype, true
		}
	}
	return model.AssetTypeOther, "", false
}

// imageSubtype refines plain images: an image living under a texture-ish
// path segment is tagged "texture" for diagnostics without changing type.
func imageSubtype(rawURL, ext string) string {
	lower := strings.ToLower(rawURL)
	for _, hint := range texturePathHints {
		if strings.Contains(lower, hint) {
			return "texture"
		}
	}
	return ext
}

// subtypeFor picks the most informative subtype for a classified asset.
func subtypeFor(at model.AssetType, ct, ext, rawURL string, sampledBytes []byte) string {
	if _, sub, ok := sniff(sampledBytes); ok && sub != "" {
		return sub
	}
	if at == model.AssetTypeImage {
		return imageSubtype(rawURL, ext)
	}
	if ext != "" {
		return ext
	}
	// Fall back to the content-type suffix ("model/gltf-binary" -> "gltf-binary").
	if i := strings.LastIndex(ct, "/"); i >= 0 && i+1 < len(ct) {
		return ct[i+1:]
	}
	return ""
}
