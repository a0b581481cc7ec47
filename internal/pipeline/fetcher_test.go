package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"SocialPoster/internal/logging"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Sample</title>
  <item>
    <title>First AI story</title>
    <link>https://news.test/first</link>
    <description>&lt;p&gt;First summary&lt;/p&gt;</description>
    <pubDate>Mon, 12 Oct 2026 10:00:00 +0000</pubDate>
  </item>
  <item>
    <title>No link story</title>
    <description>dropped</description>
  </item>
  <item>
    <title>Second story</title>
    <link>https://news.test/second</link>
  </item>
</channel>
</rss>`

func TestFeedFetcherMergesFeedsAndIsolatesFailures(t *testing.T) {
	t.Parallel()

	var agent atomic.Value
	okServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer okServer.Close()

	var failedCalls atomic.Int32
	badServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		failedCalls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer badServer.Close()

	fetcher := NewFeedFetcher(okServer.Client(), FetcherConfig{MaxWorkers: 2, Attempts: 3}, logging.Discard())
	result := fetcher.Fetch(context.Background(), []string{okServer.URL, badServer.URL})

	if len(result.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(result.Candidates))
	}
	if len(result.Failed) != 1 || result.Failed[0].Feed != badServer.URL {
		t.Fatalf("expected bad feed to fail, got %+v", result.Failed)
	}
	if got := failedCalls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts on failing feed, got %d", got)
	}
	if agent.Load() != BrowserUserAgent {
		t.Fatalf("unexpected user agent: %v", agent.Load())
	}

	first := result.Candidates[0]
	if first.URL != "https://news.test/first" {
		first = result.Candidates[1]
	}
	if first.PublishedAt.IsZero() || first.PublishedAt.Hour() != 10 {
		t.Fatalf("expected parsed publish date, got %v", first.PublishedAt)
	}
	if first.SourceFeed != okServer.URL || first.Summary != "<p>First summary</p>" {
		t.Fatalf("unexpected candidate: %+v", first)
	}
}

func TestFeedFetcherTruncatesSummary(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	fetcher := NewFeedFetcher(server.Client(), FetcherConfig{SummaryLimit: 5}, logging.Discard())
	result := fetcher.Fetch(context.Background(), []string{server.URL})
	for _, c := range result.Candidates {
		if runeLen(c.Summary) > 5 {
			t.Fatalf("summary not truncated: %q", c.Summary)
		}
	}
}
