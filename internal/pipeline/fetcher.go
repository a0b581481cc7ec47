package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"SocialPoster/internal/domain"
)

// BrowserUserAgent is sent with every outbound page and feed request.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// FetcherConfig tunes feed retrieval.
type FetcherConfig struct {
	MaxWorkers   int
	Timeout      time.Duration
	Attempts     int
	RetryDelay   time.Duration
	SummaryLimit int
	UserAgent    string
}

func (c FetcherConfig) withDefaults() FetcherConfig {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 7
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.SummaryLimit <= 0 {
		c.SummaryLimit = 2000
	}
	if c.UserAgent == "" {
		c.UserAgent = BrowserUserAgent
	}
	return c
}

// FeedError records a feed that failed after all attempts.
type FeedError struct {
	Feed string
	Err  error
}

// FetchResult is the merged output of one fetch pass.
type FetchResult struct {
	Candidates []domain.Candidate
	Failed     []FeedError
	FeedCount  int
}

// FeedFetcher retrieves feeds in parallel with a bounded pool.
type FeedFetcher struct {
	client *http.Client
	cfg    FetcherConfig
	logger *slog.Logger
}

// NewFeedFetcher builds a fetcher; a nil client gets one with the configured timeout.
func NewFeedFetcher(client *http.Client, cfg FetcherConfig, logger *slog.Logger) *FeedFetcher {
	cfg = cfg.withDefaults()
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedFetcher{client: client, cfg: cfg, logger: logger.With("component", "feed_fetcher")}
}

// Fetch pulls every feed. A failing feed never aborts the others.
func (f *FeedFetcher) Fetch(ctx context.Context, feeds []string) FetchResult {
	var (
		mu     sync.Mutex
		result = FetchResult{FeedCount: len(feeds)}
	)

	var g errgroup.Group
	g.SetLimit(min(len(feeds), f.cfg.MaxWorkers))
	for _, feedURL := range feeds {
		g.Go(func() error {
			items, err := f.fetchWithRetry(ctx, feedURL)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				f.logger.Warn("feed fetch failed", "feed", feedURL, "error", err)
				result.Failed = append(result.Failed, FeedError{Feed: feedURL, Err: err})
				return nil
			}
			f.logger.Debug("feed fetched", "feed", feedURL, "items", len(items))
			result.Candidates = append(result.Candidates, items...)
			return nil
		})
	}
	_ = g.Wait()

	f.logger.Info("feed fetch complete",
		"candidates", len(result.Candidates),
		"feeds_ok", len(feeds)-len(result.Failed),
		"feeds_total", len(feeds),
	)
	return result
}

func (f *FeedFetcher) fetchWithRetry(ctx context.Context, feedURL string) ([]domain.Candidate, error) {
	var lastErr error
	for attempt := 1; attempt <= f.cfg.Attempts; attempt++ {
		items, err := f.fetchOne(ctx, feedURL)
		if err == nil {
			return items, nil
		}
		lastErr = err
		if attempt == f.cfg.Attempts {
			break
		}
		f.logger.Debug("retrying feed", "feed", feedURL, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.cfg.RetryDelay):
		}
	}
	return nil, fmt.Errorf("fetch %s after %d attempts: %w", feedURL, f.cfg.Attempts, lastErr)
}

func (f *FeedFetcher) fetchOne(ctx context.Context, feedURL string) ([]domain.Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	out := make([]domain.Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		out = append(out, domain.Candidate{
			URL:         item.Link,
			OriginalURL: item.Link,
			Title:       item.Title,
			Summary:     truncateRunes(summary, f.cfg.SummaryLimit),
			SourceFeed:  feedURL,
			PublishedAt: itemPublished(item),
		})
	}
	return out, nil
}

var itemDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// itemPublished falls back from the published date to the updated date and
// finally to the raw strings; zero means unknown.
func itemPublished(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	for _, raw := range []string{item.Published, item.Updated} {
		if raw == "" {
			continue
		}
		for _, layout := range itemDateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}
