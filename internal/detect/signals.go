package detect

import (
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/siteclone/siteclone/internal/model"
)

// inlineMarkers maps substrings found in inline scripts or attributes to
// the signal flag they set. These are runtime globals and hydration
// payloads each toolchain injects into its entry page.
var inlineMarkers = []struct {
	substr string
	apply  func(*model.Signals)
}{
	{"__NEXT_DATA__", func(s *model.Signals) { s.HasNext = true }},
	{"window.__NUXT__", func(s *model.Signals) { s.HasNuxt = true }},
	{"__VUE_HMR_RUNTIME__", func(s *model.Signals) { s.HasVue = true }},
	{"data-v-app", func(s *model.Signals) { s.HasVue = true }},
	{"__REACT_DEVTOOLS_GLOBAL_HOOK__", func(s *model.Signals) { s.HasReact = true }},
	{"ReactDOM", func(s *model.Signals) { s.HasReact = true }},
	{"import.meta.hot", func(s *model.Signals) { s.HasVite = true }},
	{"/@vite/client", func(s *model.Signals) { s.HasVite = true }},
	{"webpackJsonp", func(s *model.Signals) {}}, // script URL list already carries this
}

// ExtractSignals walks the entry page's markup and collects the signals
// the detector consumes: script URLs in document order, inline-script
// markers, mount-point ids, the ng-version attribute, and the meta
// generator tag.
//
// Parsing failures are not fatal: whatever was collected before the
// failure is returned, because partial signals still beat none.
func ExtractSignals(content io.Reader) model.Signals {
	var signals model.Signals

	doc, err := html.Parse(content)
	if err != nil {
		return signals
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			processSignalElement(n, &signals)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return signals
}

// processSignalElement inspects one element node for detector signals.
func processSignalElement(n *html.Node, signals *model.Signals) {
	// ng-version appears on the Angular root component of every compiled app.
	for _, attr := range n.Attr {
		if attr.Key == "ng-version" {
			signals.HasAngular = true
		}
		if attr.Key == "data-v-app" {
			signals.HasVue = true
		}
	}

	switch n.Data {
	case "script":
		if src := attrValue(n, "src"); src != "" {
			signals.ScriptSources = append(signals.ScriptSources, src)
			applyScriptURLMarkers(src, signals)
			return
		}
		// Inline script: scan for runtime-global markers.
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			body := n.FirstChild.Data
			for _, m := range inlineMarkers {
				if strings.Contains(body, m.substr) {
					m.apply(signals)
				}
			}
		}

	case "meta":
		if attrValue(n, "name") == "generator" {
			signals.MetaGenerator = attrValue(n, "content")
			applyGeneratorMarkers(signals.MetaGenerator, signals)
		}

	case "div", "main":
		// Mount-point ids are reliable hydration markers.
		switch attrValue(n, "id") {
		case "__next":
			signals.HasNext = true
		case "__nuxt":
			signals.HasNuxt = true
		case "app":
			// Too common to be a signal on its own; ignored deliberately.
		}
	}
}

// applyScriptURLMarkers sets flags implied by a script URL itself.
func applyScriptURLMarkers(src string, signals *model.Signals) {
	switch {
	case strings.Contains(src, "/@vite/client"):
		signals.HasVite = true
	case strings.Contains(src, "/_next/"):
		signals.HasNext = true
	case strings.Contains(src, "/_nuxt/"):
		signals.HasNuxt = true
	}
}

// applyGeneratorMarkers sets flags implied by the meta generator content.
func applyGeneratorMarkers(generator string, signals *model.Signals) {
	g := strings.ToLower(generator)
	switch {
	case strings.Contains(g, "nuxt"):
		signals.HasNuxt = true
	case strings.Contains(g, "next"):
		signals.HasNext = true
	case strings.Contains(g, "vue"):
		signals.HasVue = true
	}
}

// attrValue retrieves an attribute value from an HTML node.
func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
