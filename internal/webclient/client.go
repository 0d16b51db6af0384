package webclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/siteclone/siteclone/internal/config"
)

// maxRedirects caps a redirect chain. Ten allows the www/HTTPS upgrade
// dance with room to spare while still breaking loops.
const maxRedirects = 10

// Factory builds HTTP clients with siteclone's request policies applied.
// One factory serves all sessions; clients themselves are cheap.
type Factory struct {
	// cfg supplies timeouts, the User-Agent, and the site config file.
	cfg *config.Config
}

// NewFactory creates a client factory for the given configuration.
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{cfg: cfg}
}

// ClientFor returns an HTTP client for requests to the given host.
// Per-site credentials from the config file are injected into every
// request through the transport, so redirects keep them too.
func (f *Factory) ClientFor(host string) *http.Client {
	var cookie string
	var headers map[string]string
	if f.cfg.SiteConfigs != nil {
		site := f.cfg.SiteConfigs.GetSiteConfig(host)
		cookie = site.Cookie
		headers = site.Headers
	}

	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     30 * time.Second,
	}

	// Cookie jar so server-set session cookies survive across the crawl.
	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: &policyTransport{
			base:      transport,
			userAgent: f.cfg.UserAgent,
			cookie:    cookie,
			headers:   headers,
		},
		Timeout: f.cfg.RequestTimeout,
		Jar:     jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// policyTransport injects the User-Agent and per-site credentials into
// every request.
//
// Design decision: a RoundTripper wrapper rather than mutating each
// request at the call site. Redirected requests and subrequests pass
// through the transport too, so nothing can forget the policy.
type policyTransport struct {
	base      http.RoundTripper
	userAgent string
	cookie    string
	headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *policyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.userAgent != "" && clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}

// Response is a fully read HTTP response with the body cap applied.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// ContentType is the raw Content-Type header.
	ContentType string

	// Body is the complete response body.
	Body []byte

	// FinalURL is the URL after redirects, used to resolve relative
	// references on redirected pages.
	FinalURL string
}

// Fetch performs a GET and reads the body through the size cap.
// A body larger than maxBody returns ErrBodyTooLarge with whatever was
// read discarded; callers record the asset as failed, never truncated.
func Fetch(ctx context.Context, client *http.Client, rawURL string, maxBody int64) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", rawURL, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort close

	// Read one byte past the cap to distinguish "exactly at cap" from
	// "over cap".
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", rawURL, err)
	}
	if int64(len(body)) > maxBody {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrBodyTooLarge)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FinalURL:    finalURL,
	}, nil
}

// ValidateTargetURL checks that a clone target is acceptable: parseable,
// http or https, with a host that is not private unless allowed.
// Returns the parsed URL on success.
func ValidateTargetURL(rawURL string, allowPrivate bool) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse target URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrUnsupportedScheme
	}
	if u.Hostname() == "" {
		return nil, ErrEmptyHost
	}

	if !allowPrivate && isPrivateHost(u.Hostname()) {
		return nil, ErrPrivateHost
	}

	return u, nil
}

// isPrivateHost reports whether the hostname is a literal loopback,
// link-local, or RFC 1918 address, or the "localhost" name.
//
// DNS names that resolve to private addresses are not caught here; that
// would require resolution at validation time and a TOCTOU window would
// remain anyway. The check targets the common copy-paste mistakes.
func isPrivateHost(hostname string) bool {
	if strings.EqualFold(hostname, "localhost") {
		return true
	}
	ip := net.ParseIP(hostname)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
