package webclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/siteclone/siteclone/internal/config"
)

func TestValidateTargetURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		rawURL       string
		allowPrivate bool
		wantErr      error
	}{
		{name: "https url", rawURL: "https://example.com/page", wantErr: nil},
		{name: "http url", rawURL: "http://example.com", wantErr: nil},
		{name: "ftp scheme", rawURL: "ftp://example.com/file", wantErr: ErrUnsupportedScheme},
		{name: "file scheme", rawURL: "file:///etc/passwd", wantErr: ErrUnsupportedScheme},
		{name: "no host", rawURL: "https://", wantErr: ErrEmptyHost},
		{name: "localhost blocked", rawURL: "http://localhost:3000", wantErr: ErrPrivateHost},
		{name: "loopback blocked", rawURL: "http://127.0.0.1:8080", wantErr: ErrPrivateHost},
		{name: "private range blocked", rawURL: "http://192.168.1.10", wantErr: ErrPrivateHost},
		{name: "localhost allowed", rawURL: "http://localhost:3000", allowPrivate: true, wantErr: nil},
		{name: "loopback allowed", rawURL: "http://127.0.0.1:8080", allowPrivate: true, wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ValidateTargetURL(tt.rawURL, tt.allowPrivate)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateTargetURL(%q) = %v, want %v", tt.rawURL, err, tt.wantErr)
			}
		})
	}
}

func TestClientForInjectsPolicy(t *testing.T) {
	t.Parallel()

	var gotUA, gotCookie, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCookie = r.Header.Get("Cookie")
		gotHeader = r.Header.Get("X-Api-Key")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.SiteConfigs = &config.File{
		Sites: map[string]config.SiteConfig{
			"app.example.com": {
				Cookie:  "session=abc",
				Headers: map[string]string{"X-Api-Key": "k1"},
			},
		},
	}

	client := NewFactory(cfg).ClientFor("app.example.com")
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if gotUA != config.DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, config.DefaultUserAgent)
	}
	if gotCookie != "session=abc" {
		t.Errorf("Cookie = %q, want %q", gotCookie, "session=abc")
	}
	if gotHeader != "k1" {
		t.Errorf("X-Api-Key = %q, want %q", gotHeader, "k1")
	}
}

func TestClientForUnknownHostNoCredentials(t *testing.T) {
	t.Parallel()

	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
	}))
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.SiteConfigs = &config.File{
		Sites: map[string]config.SiteConfig{
			"app.example.com": {Cookie: "session=abc"},
		},
	}

	client := NewFactory(cfg).ClientFor("other.example.com")
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if gotCookie != "" {
		t.Errorf("Cookie = %q, want empty for unconfigured host", gotCookie)
	}
}

func TestFetch(t *testing.T) {
	t.Parallel()

	t.Run("reads body and content type", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html></html>"))
		}))
		defer srv.Close()

		cfg := config.NewConfig()
		client := NewFactory(cfg).ClientFor("example.com")

		resp, err := Fetch(context.Background(), client, srv.URL, cfg.MaxBodySize)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
		}
		if string(resp.Body) != "<html></html>" {
			t.Errorf("Body = %q", resp.Body)
		}
		if !strings.HasPrefix(resp.ContentType, "text/html") {
			t.Errorf("ContentType = %q", resp.ContentType)
		}
	})

	t.Run("body over cap", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(make([]byte, 2048))
		}))
		defer srv.Close()

		cfg := config.NewConfig()
		client := NewFactory(cfg).ClientFor("example.com")

		_, err := Fetch(context.Background(), client, srv.URL, 1024)
		if !errors.Is(err, ErrBodyTooLarge) {
			t.Errorf("error = %v, want ErrBodyTooLarge", err)
		}
	})

	t.Run("body exactly at cap", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(make([]byte, 1024))
		}))
		defer srv.Close()

		cfg := config.NewConfig()
		client := NewFactory(cfg).ClientFor("example.com")

		resp, err := Fetch(context.Background(), client, srv.URL, 1024)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if len(resp.Body) != 1024 {
			t.Errorf("len(Body) = %d, want 1024", len(resp.Body))
		}
	})

	t.Run("records final URL after redirect", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		srv := httptest.NewServer(mux)
		defer srv.Close()

		mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
		})
		mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("moved"))
		})

		cfg := config.NewConfig()
		client := NewFactory(cfg).ClientFor("example.com")

		resp, err := Fetch(context.Background(), client, srv.URL+"/old", cfg.MaxBodySize)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasSuffix(resp.FinalURL, "/new") {
			t.Errorf("FinalURL = %q, want suffix /new", resp.FinalURL)
		}
	})
}
