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
	"unicode"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Extraction methods, from most to least faithful to the article.
const (
	MethodReadability = "readability"
	MethodHTML        = "html-extraction"
	MethodSummary     = "rss-summary"
	MethodTitle       = "generated-from-title"
)

const (
	minPageChars      = 100
	minContainerChars = 200
	minSummaryChars   = 50
	minLineChars      = 20
	maxPageBytes      = 4 << 20
)

var (
	noiseSelectors     = "script, style, noscript, svg, nav, footer, aside, header"
	contentClassRegexp = regexp.MustCompile(`(?i)post-content|entry-content|article-body|blog-post|content-body`)
)

// ExtractedContent is the best available body text of an article.
type ExtractedContent struct {
	Text      string
	Method    string
	WordCount int
}

// ExtractorConfig tunes article extraction.
type ExtractorConfig struct {
	Timeout  time.Duration
	MaxChars int
}

// ContentExtractor fetches an article page and reduces it to readable text.
type ContentExtractor struct {
	client   *http.Client
	maxChars int
	agent    string
	logger   *slog.Logger
}

// NewContentExtractor builds an extractor; a nil client gets the configured timeout.
func NewContentExtractor(client *http.Client, cfg ExtractorConfig, logger *slog.Logger) *ContentExtractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 3000
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentExtractor{
		client:   client,
		maxChars: cfg.MaxChars,
		agent:    BrowserUserAgent,
		logger:   logger.With("component", "content_extractor"),
	}
}

// Extract never fails: page text, then feed summary, then text synthesized from the title.
func (e *ContentExtractor) Extract(ctx context.Context, pageURL, title, summary string) ExtractedContent {
	if page, err := e.fetch(ctx, pageURL); err != nil {
		e.logger.Debug("page fetch failed", "url", pageURL, "error", err)
	} else if text, method := e.extractFromHTML(page, pageURL); runeLen(text) > minPageChars {
		return newExtracted(text, method)
	}

	if clean := StripHTML(summary); runeLen(clean) > minSummaryChars {
		return newExtracted(truncateRunes(clean, e.maxChars), MethodSummary)
	}

	return newExtracted(titleFallback(title), MethodTitle)
}

func newExtracted(text, method string) ExtractedContent {
	return ExtractedContent{Text: text, Method: method, WordCount: len(strings.Fields(text))}
}

func (e *ContentExtractor) fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", e.agent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if len(body) <= minPageChars {
		return "", fmt.Errorf("page too short (%d bytes)", len(body))
	}
	return string(body), nil
}

func (e *ContentExtractor) extractFromHTML(page, pageURL string) (string, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", ""
	}
	doc.Find(noiseSelectors).Remove()

	meta := doc.Find(`meta[name="description"]`).AttrOr("content", "")
	if meta == "" {
		meta = doc.Find(`meta[property="og:description"]`).AttrOr("content", "")
	}

	method := MethodHTML
	var lines []string
	if container := findContentContainer(doc); container != nil {
		lines = textLines(container)
	} else if text := readabilityText(page, pageURL); runeLen(text) > minContainerChars {
		lines = strings.Split(text, "\n")
		method = MethodReadability
	} else if div := largestDiv(doc); div != nil {
		lines = textLines(div)
	} else {
		lines = textLines(doc.Find("body"))
	}

	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if runeLen(line) > minLineChars {
			kept = append(kept, line)
		}
	}
	text := strings.Join(kept, "\n\n")
	if runeLen(text) < minPageChars && meta != "" {
		text = meta + "\n\n" + text
	}
	return strings.TrimSpace(truncateAtSentence(text, e.maxChars)), method
}

// findContentContainer walks the semantic selectors in priority order.
func findContentContainer(doc *goquery.Document) *goquery.Selection {
	candidates := []*goquery.Selection{
		doc.Find("article").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.Contains(strings.ToLower(s.AttrOr("class", "")), "post")
		}),
		doc.Find("article"),
		doc.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return contentClassRegexp.MatchString(s.AttrOr("class", ""))
		}),
		doc.Find("main"),
		doc.Find("div#content"),
		doc.Find("div.content"),
	}
	for _, sel := range candidates {
		if sel.Length() == 0 {
			continue
		}
		first := sel.First()
		if compactLen(first) > minContainerChars {
			return first
		}
	}
	return nil
}

func largestDiv(doc *goquery.Document) *goquery.Selection {
	var (
		best    *goquery.Selection
		bestLen = minContainerChars
	)
	doc.Find("div").Each(func(_ int, s *goquery.Selection) {
		if n := compactLen(s); n > bestLen {
			best, bestLen = s, n
		}
	})
	return best
}

func readabilityText(page, pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(page), parsed)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

// textLines returns the trimmed, non-empty text nodes under sel in document order.
func textLines(sel *goquery.Selection) []string {
	var lines []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, child *goquery.Selection) {
			switch goquery.NodeName(child) {
			case "#text":
				if t := strings.TrimSpace(child.Text()); t != "" {
					lines = append(lines, t)
				}
			case "#comment":
			default:
				walk(child)
			}
		})
	}
	walk(sel)
	return lines
}

func compactLen(sel *goquery.Selection) int {
	n := 0
	for _, line := range textLines(sel) {
		n += runeLen(line)
	}
	return n
}

// truncateAtSentence caps text at limit runes, preferring to end on a full stop
// found in the last 500 runes of the window.
func truncateAtSentence(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit <= 3 {
		return string(runes[:max(limit, 0)])
	}
	window := runes[:limit-3]
	cut := -1
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '.' {
			cut = i
			break
		}
	}
	if cut >= 0 && cut > limit-500 {
		return string(runes[:cut+1])
	}
	return string(window) + "..."
}

// StripHTML reduces an HTML fragment to whitespace-normalized text.
func StripHTML(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	if !strings.Contains(fragment, "<") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(textLinesJoinedFields(doc.Selection), " ")
}

func textLinesJoinedFields(sel *goquery.Selection) []string {
	var words []string
	for _, line := range textLines(sel) {
		words = append(words, strings.Fields(line)...)
	}
	return words
}

const genericTitleFallback = "Latest developments in business technology and automation are transforming " +
	"how organizations operate. New innovations in AI, workflow automation, and " +
	"strategic leadership are creating unprecedented opportunities."

// titleFallback synthesizes a short topical paragraph around the title.
func titleFallback(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return genericTitleFallback
	}
	lower := strings.ToLower(title)
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }) {
		words[w] = true
	}

	switch {
	case words["ai"] || strings.Contains(lower, "artificial intelligence"):
		return fmt.Sprintf("Breaking: %s. This development in AI technology represents a critical "+
			"evolution in how businesses leverage artificial intelligence for automation, "+
			"sales, and customer engagement in an increasingly digital world.", title)
	case words["sales"] || words["crm"]:
		return fmt.Sprintf("Update: %s. Sales technology and CRM innovations continue to reshape "+
			"how teams engage prospects, close deals, and drive revenue growth.", title)
	case words["devops"] || words["sre"] || words["kubernetes"]:
		return fmt.Sprintf("Update: %s. DevOps and SRE practices continue to evolve, improving "+
			"system reliability, deployment velocity, and operational efficiency.", title)
	case words["automation"] || words["workflow"] || words["workflows"]:
		return fmt.Sprintf("Development: %s. The automation and workflow optimization sector "+
			"continues to transform business operations, reducing manual effort "+
			"and enabling teams to focus on strategic initiatives.", title)
	default:
		return fmt.Sprintf("Industry Update: %s. This development highlights the ongoing "+
			"transformation in business practices, technology adoption, and "+
			"operational excellence across the industry.", title)
	}
}
