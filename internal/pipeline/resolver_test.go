package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/logging"
)

func TestURLResolverFallsBackToLandingURL(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/wrapped", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/landing", http.StatusFound)
	})
	mux.HandleFunc("/landing", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>no meta refresh or canonical here</body></html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	host := strings.Split(strings.TrimPrefix(server.URL, "http://"), ":")[0]
	resolver := NewURLResolver(server.Client(), []string{host}, logging.Discard())

	out, n := resolver.Resolve(context.Background(), []domain.Candidate{{URL: server.URL + "/wrapped"}})
	if n != 1 || out[0].URL != server.URL+"/landing" || out[0].OriginalURL != server.URL+"/wrapped" {
		t.Fatalf("expected the redirected landing url, got %+v (n=%d)", out[0], n)
	}
}

func TestURLResolverLeavesUnreachableLinks(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	unreachable := server.URL + "/wrapped"
	server.Close()

	host := strings.Split(strings.TrimPrefix(unreachable, "http://"), ":")[0]
	resolver := NewURLResolver(nil, []string{host}, logging.Discard())

	out, n := resolver.Resolve(context.Background(), []domain.Candidate{{URL: unreachable}})
	if n != 0 || out[0].URL != unreachable || out[0].OriginalURL != "" {
		t.Fatalf("expected unreachable link to stay untouched, got %+v (n=%d)", out[0], n)
	}
}

func TestURLResolverMetaRefreshAndCanonical(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/refresh", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><meta http-equiv="refresh" content="0;url=https://publisher.test/story"></head></html>`))
	})
	mux.HandleFunc("/canonical", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><link rel="canonical" href="https://publisher.test/canon"></head></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	host := strings.Split(strings.TrimPrefix(server.URL, "http://"), ":")[0]
	resolver := NewURLResolver(server.Client(), []string{host}, logging.Discard())

	candidates := []domain.Candidate{
		{URL: server.URL + "/refresh"},
		{URL: server.URL + "/canonical"},
		{URL: "https://direct.test/a"},
	}
	out, n := resolver.Resolve(context.Background(), candidates)
	if n != 2 {
		t.Fatalf("expected 2 resolved, got %d", n)
	}
	if out[0].URL != "https://publisher.test/story" || out[0].OriginalURL != server.URL+"/refresh" {
		t.Fatalf("unexpected meta refresh result: %+v", out[0])
	}
	if out[1].URL != "https://publisher.test/canon" {
		t.Fatalf("unexpected canonical result: %+v", out[1])
	}
	if out[2].URL != "https://direct.test/a" {
		t.Fatalf("direct link must not change: %+v", out[2])
	}
	if candidates[0].URL != server.URL+"/refresh" {
		t.Fatalf("input slice must not be mutated")
	}
}

func TestIsIndirection(t *testing.T) {
	t.Parallel()

	r := NewURLResolver(nil, nil, logging.Discard())
	if !r.IsIndirection("https://news.google.com/rss/articles/abc") {
		t.Fatalf("expected google news link to be indirection")
	}
	if r.IsIndirection("https://example.com/news.google.com") {
		t.Fatalf("path must not count as indirection host")
	}
}
