package postprocess

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// urlAttrs are the element attributes rewritten to local references.
var urlAttrs = []string{"href", "src", "poster", "data-src", "environment-image"}

// cssURLPattern matches url(...) references in CSS text, quoted or bare.
var cssURLPattern = regexp.MustCompile(`url\(\s*['"]?([^'")\s]+)['"]?\s*\)`)

// cssImportPattern matches @import statements written without url().
var cssImportPattern = regexp.MustCompile(`@import\s+['"]([^'"]+)['"]`)

// RewriteStep rewrites references in saved pages and stylesheets so the
// clone loads its own copies instead of reaching back to the origin.
//
// Design decision: goquery for the HTML pass rather than the streaming
// tokenizer, because rewriting needs attribute mutation plus re-rendering
// and the saved trees are small enough to hold in memory. References
// with no table entry (external hosts, filtered types, failed downloads)
// are left untouched.
type RewriteStep struct {
	logger *slog.Logger
}

// NewRewriteStep creates the reference rewriting step.
func NewRewriteStep(logger *slog.Logger) *RewriteStep {
	return &RewriteStep{logger: logger}
}

// Name returns the step name.
func (s *RewriteStep) Name() string {
	return "rewrite-references"
}

// Do rewrites every saved HTML and CSS file in the output tree.
func (s *RewriteStep) Do(ctx context.Context, job *Job) error {
	for sourceURL, localPath := range job.Table {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var err error
		switch strings.ToLower(path.Ext(localPath)) {
		case ".html", ".htm":
			err = s.rewriteHTML(job, sourceURL, localPath)
		case ".css":
			err = s.rewriteCSS(job, sourceURL, localPath)
		default:
			continue
		}
		if err != nil {
			// A single unreadable file should not settle the session.
			s.logger.Warn("reference rewrite skipped file",
				"sessionID", job.Session.ID,
				"path", localPath,
				"error", err)
		}
	}
	return nil
}

// rewriteHTML rewrites one saved page in place.
func (s *RewriteStep) rewriteHTML(job *Job, sourceURL, localPath string) error {
	full := filepath.Join(job.Session.OutputRoot, filepath.FromSlash(localPath))
	data, err := os.ReadFile(full)
	if err != nil {
		return err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return err
	}

	res, err := newResolver(sourceURL, localPath, job.Table)
	if err != nil {
		return err
	}

	for _, attr := range urlAttrs {
		doc.Find("[" + attr + "]").Each(func(_ int, sel *goquery.Selection) {
			raw, _ := sel.Attr(attr)
			if local, ok := res.localRef(raw); ok {
				sel.SetAttr(attr, local)
			}
		})
	}

	doc.Find("[srcset]").Each(func(_ int, sel *goquery.Selection) {
		raw, _ := sel.Attr("srcset")
		sel.SetAttr("srcset", rewriteSrcset(raw, res))
	})

	doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
		raw, _ := sel.Attr("style")
		sel.SetAttr("style", rewriteCSSText(raw, res))
	})

	doc.Find("style").Each(func(_ int, sel *goquery.Selection) {
		sel.SetText(rewriteCSSText(sel.Text(), res))
	})

	rendered, err := doc.Html()
	if err != nil {
		return err
	}
	return os.WriteFile(full, []byte(rendered), 0600)
}

// rewriteCSS rewrites one saved stylesheet in place.
func (s *RewriteStep) rewriteCSS(job *Job, sourceURL, localPath string) error {
	full := filepath.Join(job.Session.OutputRoot, filepath.FromSlash(localPath))
	data, err := os.ReadFile(full)
	if err != nil {
		return err
	}

	res, err := newResolver(sourceURL, localPath, job.Table)
	if err != nil {
		return err
	}
	return os.WriteFile(full, []byte(rewriteCSSText(string(data), res)), 0600)
}

// resolver maps raw references found in one file to relative local paths.
type resolver struct {
	// base resolves relative references, the file's own source URL.
	base *url.URL

	// fromPath is the file's local path; relative targets are computed
	// against its directory.
	fromPath string

	// table is the session's URL to local-path table.
	table map[string]string
}

// newResolver creates a resolver for the file saved at fromPath whose
// original location was sourceURL.
func newResolver(sourceURL, fromPath string, table map[string]string) (*resolver, error) {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil, err
	}
	return &resolver{base: base, fromPath: fromPath, table: table}, nil
}

// localRef resolves a raw reference and returns the relative path to its
// local copy. Returns false for references without a table entry or that
// are not rewritable at all (data URLs, fragments, scripts).
func (r *resolver) localRef(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return "", false
	}
	lower := strings.ToLower(raw)
	for _, scheme := range []string{"data:", "javascript:", "mailto:", "tel:", "blob:"} {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	resolved := r.base.ResolveReference(ref)
	fragment := resolved.Fragment

	target, ok := r.table[canonicalURL(resolved)]
	if !ok {
		return "", false
	}

	rel := relativeRef(r.fromPath, target)
	if fragment != "" {
		rel += "#" + fragment
	}
	return rel, true
}

// rewriteSrcset rewrites each candidate URL in a srcset value, keeping
// width and density descriptors intact.
func rewriteSrcset(raw string, res *resolver) string {
	entries := strings.Split(raw, ",")
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		if local, ok := res.localRef(fields[0]); ok {
			fields[0] = local
		}
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, ", ")
}

// rewriteCSSText rewrites url() and @import references in CSS text.
func rewriteCSSText(css string, res *resolver) string {
	css = cssURLPattern.ReplaceAllStringFunc(css, func(match string) string {
		ref := cssURLPattern.FindStringSubmatch(match)[1]
		if local, ok := res.localRef(ref); ok {
			return "url(" + local + ")"
		}
		return match
	})
	return cssImportPattern.ReplaceAllStringFunc(css, func(match string) string {
		ref := cssImportPattern.FindStringSubmatch(match)[1]
		if local, ok := res.localRef(ref); ok {
			return `@import "` + local + `"`
		}
		return match
	})
}

// relativeRef computes the relative reference from the file at fromFile
// to the file at toFile, both slash-separated paths under the same root.
func relativeRef(fromFile, toFile string) string {
	fromDir := path.Dir(fromFile)
	if fromDir == "." {
		return toFile
	}

	fromSegs := strings.Split(fromDir, "/")
	toSegs := strings.Split(toFile, "/")

	common := 0
	for common < len(fromSegs) && common < len(toSegs)-1 && fromSegs[common] == toSegs[common] {
		common++
	}

	var b strings.Builder
	for i := common; i < len(fromSegs); i++ {
		b.WriteString("../")
	}
	b.WriteString(path.Join(toSegs[common:]...))
	return b.String()
}

// canonicalURL normalizes a resolved URL the way the crawl recorded it:
// fragment dropped, scheme and host lowercased, empty path as "/".
func canonicalURL(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.Scheme = strings.ToLower(c.Scheme)
	c.Host = strings.ToLower(c.Host)
	if c.Path == "" {
		c.Path = "/"
	}
	return c.String()
}
