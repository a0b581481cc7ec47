package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"SocialPoster/internal/domain"
)

const resolverPeekBytes = 64 << 10

var refreshURLPattern = regexp.MustCompile(`(?i)url\s*=\s*['"]?([^'"\s>]+)`)

// DefaultIndirectionDomains are aggregator hosts whose links wrap the real article.
var DefaultIndirectionDomains = []string{"news.google.com"}

// URLResolver rewrites aggregator redirect links to their final destination.
type URLResolver struct {
	client  *http.Client
	domains []string
	agent   string
	logger  *slog.Logger
}

// NewURLResolver builds a resolver; a nil client gets a 10s timeout client.
func NewURLResolver(client *http.Client, domains []string, logger *slog.Logger) *URLResolver {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if len(domains) == 0 {
		domains = DefaultIndirectionDomains
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &URLResolver{
		client:  client,
		domains: domains,
		agent:   BrowserUserAgent,
		logger:  logger.With("component", "url_resolver"),
	}
}

// IsIndirection reports whether the URL points at a known aggregator host.
func (r *URLResolver) IsIndirection(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range r.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Resolve returns the candidates with indirection links replaced and the number rewritten.
// Failures leave the link untouched.
func (r *URLResolver) Resolve(ctx context.Context, candidates []domain.Candidate) ([]domain.Candidate, int) {
	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)

	resolved := 0
	for i := range out {
		if !r.IsIndirection(out[i].URL) {
			continue
		}
		final, err := r.resolveOne(ctx, out[i].URL)
		if err != nil {
			r.logger.Debug("could not resolve url", "url", out[i].URL, "error", err)
			continue
		}
		if final == "" || final == out[i].URL {
			continue
		}
		out[i].OriginalURL = out[i].URL
		out[i].URL = final
		resolved++
	}
	return out, resolved
}

func (r *URLResolver) resolveOne(ctx context.Context, raw string) (string, error) {
	finalURL, err := r.follow(ctx, http.MethodHead, raw, nil)
	if err == nil && finalURL != "" && !r.IsIndirection(finalURL) {
		return finalURL, nil
	}

	var page []byte
	landed, err := r.follow(ctx, http.MethodGet, raw, &page)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(page)))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	base, _ := url.Parse(landed)
	var target string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.EqualFold(s.AttrOr("http-equiv", ""), "refresh") {
			return true
		}
		if m := refreshURLPattern.FindStringSubmatch(s.AttrOr("content", "")); m != nil {
			target = absoluteURL(base, m[1])
			return false
		}
		return true
	})
	if target != "" {
		return target, nil
	}

	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		href = absoluteURL(base, strings.TrimSpace(href))
		if href != "" && !r.IsIndirection(href) {
			return href, nil
		}
	}
	return landed, nil
}

// follow performs a request with redirects and returns the final URL; with body set,
// it also captures the first bytes of the response.
func (r *URLResolver) follow(ctx context.Context, method, raw string, body *[]byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, method, raw, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", r.agent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if body != nil {
		data, err := io.ReadAll(io.LimitReader(resp.Body, resolverPeekBytes))
		if err != nil {
			return "", fmt.Errorf("read body: %w", err)
		}
		*body = data
	}
	return resp.Request.URL.String(), nil
}

func absoluteURL(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}
