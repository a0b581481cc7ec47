package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

const (
	defaultLookupBatch = 100
	storedTitleLimit   = 500
	storedFeedLimit    = 200
)

var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_content":  true,
	"utm_term":     true,
	"ref":          true,
	"source":       true,
	"fbclid":       true,
	"gclid":        true,
	"mc_cid":       true,
	"mc_eid":       true,
}

// NormalizeURL strips tracking parameters, fragments and trailing slashes so the
// same article always maps to the same key. Unparseable input is returned trimmed.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	query := u.Query()
	for key := range query {
		if trackingParams[strings.ToLower(key)] {
			query.Del(key)
		}
	}

	path := strings.TrimRight(u.EscapedPath(), "/")
	if path == "" {
		path = "/"
	}

	normalized := u.Scheme + "://" + strings.ToLower(u.Host) + path
	if encoded := query.Encode(); encoded != "" {
		normalized += "?" + encoded
	}
	return normalized
}

// DedupResult is the outcome of one deduplication pass.
type DedupResult struct {
	// Normalized holds every distinct candidate with its normalized URL.
	Normalized []domain.Candidate
	// New holds the candidates never stored before, persisted by this pass.
	New            []domain.Candidate
	Duplicates     int
	InsertFailures int
}

// Deduplicator filters candidates against the article store.
type Deduplicator struct {
	repo      ports.ArticleRepository
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

// NewDeduplicator builds a deduplicator over the article repository.
func NewDeduplicator(repo ports.ArticleRepository, batchSize int, logger *slog.Logger) *Deduplicator {
	if batchSize <= 0 {
		batchSize = defaultLookupBatch
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{repo: repo, batchSize: batchSize, now: time.Now, logger: logger.With("component", "deduplicator")}
}

// Deduplicate normalizes URLs, collapses in-batch repeats (first seen wins), drops
// URLs already stored for the project and persists the rest. A lookup failure is
// returned with the normalized candidates filled in so callers can degrade.
func (d *Deduplicator) Deduplicate(ctx context.Context, projectID string, runID int64, candidates []domain.Candidate) (DedupResult, error) {
	var result DedupResult
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		c.URL = NormalizeURL(c.URL)
		if c.URL == "" || seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		if c.OriginalURL == "" {
			c.OriginalURL = c.URL
		}
		result.Normalized = append(result.Normalized, c)
	}
	if len(result.Normalized) == 0 {
		return result, nil
	}

	existing, err := d.lookup(ctx, projectID, result.Normalized)
	if err != nil {
		return result, err
	}

	for _, c := range result.Normalized {
		if existing[c.URL] {
			result.Duplicates++
			continue
		}
		stored, _, err := d.repo.InsertArticleIfAbsent(ctx, d.toArticle(projectID, runID, c))
		if err != nil {
			result.InsertFailures++
			d.logger.Warn("article insert failed", "url", c.URL, "error", err)
		} else {
			c.ArticleID = stored.ID
		}
		result.New = append(result.New, c)
	}

	d.logger.Info("deduplication complete",
		"unique", len(result.Normalized),
		"already_seen", result.Duplicates,
		"new", len(result.New),
		"insert_failures", result.InsertFailures,
	)
	return result, nil
}

func (d *Deduplicator) lookup(ctx context.Context, projectID string, candidates []domain.Candidate) (map[string]bool, error) {
	existing := make(map[string]bool)
	for start := 0; start < len(candidates); start += d.batchSize {
		end := min(start+d.batchSize, len(candidates))
		urls := make([]string, 0, end-start)
		for _, c := range candidates[start:end] {
			urls = append(urls, c.URL)
		}
		found, err := d.repo.ExistingArticleURLs(ctx, projectID, urls)
		if err != nil {
			return nil, fmt.Errorf("lookup existing urls: %w", err)
		}
		for u, ok := range found {
			if ok {
				existing[u] = true
			}
		}
	}
	return existing, nil
}

func (d *Deduplicator) toArticle(projectID string, runID int64, c domain.Candidate) domain.Article {
	a := domain.Article{
		ProjectID:   projectID,
		URL:         c.URL,
		OriginalURL: c.OriginalURL,
		Title:       truncateRunes(c.Title, storedTitleLimit),
		SourceFeed:  truncateRunes(c.SourceFeed, storedFeedLimit),
		Summary:     c.Summary,
		FetchRunID:  runID,
		CreatedAt:   d.now().UTC(),
	}
	if !c.PublishedAt.IsZero() {
		published := c.PublishedAt
		a.PublishedAt = &published
	}
	return a
}
