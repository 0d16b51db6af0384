package crawler

import (
	"io"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/siteclone/siteclone/internal/model"
)

// Parser extracts navigation links and asset references from HTML.
//
// Design decision: golang.org/x/net/html rather than regex because it
// correctly handles the malformed markup real sites ship, and a single
// DOM walk collects everything at once.
type Parser struct {
	// baseURL resolves relative references on the page being parsed.
	baseURL *url.URL
}

// AssetRef is one asset reference found on a page, with the element-level
// type hint. The hint seeds classification; the downloader refines it
// with the Content-Type header and byte sniffing.
type AssetRef struct {
	// URL is the absolute asset URL.
	URL string

	// Hint is the asset type suggested by the referencing element
	// (script src, link rel=stylesheet, img src, and so on).
	Hint model.AssetType
}

// ParseResult contains everything extracted from one HTML page.
type ParseResult struct {
	// Title is the page title.
	Title string

	// PageLinks are same-host navigable links (anchor hrefs), candidates
	// for deeper crawling.
	PageLinks []string

	// Assets are the referenced downloadable resources in document order.
	Assets []AssetRef
}

// NewParser creates a parser resolving references against the given base URL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse walks the document and collects links and asset references.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		PageLinks: make([]string, 0),
		Assets:    make([]AssetRef, 0),
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			p.processElement(n, result)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// processElement handles one element node.
func (p *Parser) processElement(n *html.Node, result *ParseResult) {
	switch n.Data {
	case "title":
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			result.Title = strings.TrimSpace(n.FirstChild.Data)
		}

	case "a":
		if href := p.resolveURL(getAttr(n, "href")); href != "" && p.sameHost(href) {
			result.PageLinks = append(result.PageLinks, href)
		}

	case "script":
		if src := p.resolveURL(getAttr(n, "src")); src != "" {
			result.Assets = append(result.Assets, AssetRef{URL: src, Hint: model.AssetTypeJavaScript})
		}

	case "img":
		if src := p.resolveURL(getAttr(n, "src")); src != "" {
			result.Assets = append(result.Assets, AssetRef{URL: src, Hint: model.AssetTypeImage})
		}
		p.appendSrcset(getAttr(n, "srcset"), result)

	case "source":
		// <source> serves <picture>, <video>, and <audio>; the parent
		// decides the media kind but the downloader will reclassify, so
		// image is a fine default only for srcset sources.
		if src := p.resolveURL(getAttr(n, "src")); src != "" {
			result.Assets = append(result.Assets, AssetRef{URL: src, Hint: mediaHint(n)})
		}
		p.appendSrcset(getAttr(n, "srcset"), result)

	case "video":
		if src := p.resolveURL(getAttr(n, "src")); src != "" {
			result.Assets = append(result.Assets, AssetRef{URL: src, Hint: model.AssetTypeVideo})
		}
		if poster := p.resolveURL(getAttr(n, "poster")); poster != "" {
			result.Assets = append(result.Assets, AssetRef{URL: poster, Hint: model.AssetTypeImage})
		}

	case "audio":
		if src := p.resolveURL(getAttr(n, "src")); src != "" {
			result.Assets = append(result.Assets, AssetRef{URL: src, Hint: model.AssetTypeAudio})
		}

	case "link":
		p.processLink(n, result)

	case "style":
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			p.appendCSSRefs(n.FirstChild.Data, result)
		}

	case "model-viewer":
		// <model-viewer> is the common web component for glTF scenes.
		if src := p.resolveURL(getAttr(n, "src")); src != "" {
			result.Assets = append(result.Assets, AssetRef{URL: src, Hint: model.AssetType3DModel})
		}
		if env := p.resolveURL(getAttr(n, "environment-image")); env != "" {
			result.Assets = append(result.Assets, AssetRef{URL: env, Hint: model.AssetTypeEnvironmentMap})
		}
	}

	// Inline style attributes can reference background images.
	if style := getAttr(n, "style"); style != "" {
		p.appendCSSRefs(style, result)
	}
}

// processLink handles <link> elements: stylesheets, icons, and preloads.
func (p *Parser) processLink(n *html.Node, result *ParseResult) {
	href := p.resolveURL(getAttr(n, "href"))
	if href == "" {
		return
	}

	rel := strings.ToLower(getAttr(n, "rel"))
	switch {
	case strings.Contains(rel, "stylesheet"):
		result.Assets = append(result.Assets, AssetRef{URL: href, Hint: model.AssetTypeStylesheet})
	case strings.Contains(rel, "icon"):
		result.Assets = append(result.Assets, AssetRef{URL: href, Hint: model.AssetTypeImage})
	case rel == "preload", rel == "modulepreload", rel == "prefetch":
		result.Assets = append(result.Assets, AssetRef{URL: href, Hint: preloadHint(getAttr(n, "as"), rel)})
	case rel == "manifest":
		result.Assets = append(result.Assets, AssetRef{URL: href, Hint: model.AssetTypeOther})
	}
}

// preloadHint maps a preload "as" attribute to an asset type.
func preloadHint(as, rel string) model.AssetType {
	if rel == "modulepreload" {
		return model.AssetTypeJavaScript
	}
	switch strings.ToLower(as) {
	case "script":
		return model.AssetTypeJavaScript
	case "style":
		return model.AssetTypeStylesheet
	case "font":
		return model.AssetTypeFont
	case "image":
		return model.AssetTypeImage
	case "video":
		return model.AssetTypeVideo
	case "audio":
		return model.AssetTypeAudio
	case "fetch":
		// Preloaded fetch targets are how 3D scenes warm up model files;
		// classification settles the real type at download time.
		return model.AssetTypeOther
	default:
		return model.AssetTypeOther
	}
}

// mediaHint picks the hint for a <source> element from its parent.
func mediaHint(n *html.Node) model.AssetType {
	if n.Parent == nil {
		return model.AssetTypeOther
	}
	switch n.Parent.Data {
	case "video":
		return model.AssetTypeVideo
	case "audio":
		return model.AssetTypeAudio
	case "picture":
		return model.AssetTypeImage
	default:
		return model.AssetTypeOther
	}
}

// appendSrcset expands a srcset attribute into individual asset refs.
func (p *Parser) appendSrcset(srcset string, result *ParseResult) {
	if srcset == "" {
		return
	}
	for _, candidate := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(candidate))
		if len(fields) == 0 {
			continue
		}
		if u := p.resolveURL(fields[0]); u != "" {
			result.Assets = append(result.Assets, AssetRef{URL: u, Hint: model.AssetTypeImage})
		}
	}
}

// cssURLRegex matches url(...) references in CSS text.
var cssURLRegex = regexp.MustCompile(`url\(\s*['"]?([^'")\s]+)['"]?\s*\)`)

// cssImportRegex matches @import statements written without url().
var cssImportRegex = regexp.MustCompile(`@import\s+['"]([^'"]+)['"]`)

// appendCSSRefs extracts url() and @import references from CSS text.
func (p *Parser) appendCSSRefs(css string, result *ParseResult) {
	for _, ref := range ExtractCSSRefs(p.baseURL, css) {
		result.Assets = append(result.Assets, ref)
	}
}

// ExtractCSSRefs extracts asset references from a CSS body resolved
// against the given base. Used both for inline styles and for downloaded
// stylesheet bodies, which is how fonts and background textures get found.
func ExtractCSSRefs(base *url.URL, css string) []AssetRef {
	refs := make([]AssetRef, 0)

	appendRef := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "data:") || strings.HasPrefix(raw, "#") {
			return
		}
		u, err := url.Parse(raw)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(u).String()
		// CSS references fonts, images, and nested sheets; let download
		// classification settle which.
		refs = append(refs, AssetRef{URL: resolved, Hint: model.AssetTypeOther})
	}

	for _, m := range cssURLRegex.FindAllStringSubmatch(css, -1) {
		appendRef(m[1])
	}
	for _, m := range cssImportRegex.FindAllStringSubmatch(css, -1) {
		appendRef(m[1])
	}

	return refs
}

// resolveURL resolves a reference against the base URL, dropping
// non-fetchable schemes.
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:") ||
		strings.HasPrefix(href, "blob:") ||
		strings.HasPrefix(href, "#") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := p.baseURL.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

// sameHost reports whether the URL stays on the crawl's host.
func (p *Parser) sameHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, p.baseURL.Host)
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
