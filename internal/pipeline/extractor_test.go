package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"SocialPoster/internal/logging"
)

func articlePage(body string) string {
	return `<html><head><meta name="description" content="Meta description of the page."></head><body>` +
		`<nav>Home | About | Contact | Subscribe to our newsletter today</nav>` +
		body +
		`<script>var tracking = "should never appear in the extracted text";</script>` +
		`<footer>Copyright footer text that is long enough to count</footer></body></html>`
}

func TestExtractorPrefersArticleContainer(t *testing.T) {
	t.Parallel()

	paragraph := strings.Repeat("Automation platforms are reshaping how operations teams work. ", 5)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(articlePage(`<div class="sidebar">Sidebar links and other unrelated promotional material here</div>` +
			`<article class="post-body"><h1>Short</h1><p>` + paragraph + `</p><p>` + paragraph + `</p></article>`)))
	}))
	defer server.Close()

	extractor := NewContentExtractor(server.Client(), ExtractorConfig{}, logging.Discard())
	got := extractor.Extract(context.Background(), server.URL, "Title", "")

	if got.Method != MethodHTML {
		t.Fatalf("expected html extraction, got %s", got.Method)
	}
	if strings.Contains(got.Text, "tracking") || strings.Contains(got.Text, "Subscribe") || strings.Contains(got.Text, "Sidebar") {
		t.Fatalf("noise leaked into text: %q", got.Text)
	}
	if strings.Contains(got.Text, "Short") {
		t.Fatalf("short lines should be dropped: %q", got.Text)
	}
	if got.WordCount == 0 {
		t.Fatalf("expected word count")
	}
}

func TestExtractorFallsBackToSummaryAndTitle(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	extractor := NewContentExtractor(server.Client(), ExtractorConfig{}, logging.Discard())

	summary := "<p>This summary from the feed is comfortably longer than fifty characters.</p>"
	got := extractor.Extract(context.Background(), server.URL, "Title", summary)
	if got.Method != MethodSummary || strings.Contains(got.Text, "<p>") {
		t.Fatalf("expected stripped summary fallback, got %+v", got)
	}

	got = extractor.Extract(context.Background(), server.URL, "Kubernetes 2.0 released", "too short")
	if got.Method != MethodTitle || !strings.Contains(got.Text, "DevOps and SRE") {
		t.Fatalf("expected devops title fallback, got %+v", got)
	}
}

func TestTitleFallbackUsesWholeWords(t *testing.T) {
	t.Parallel()

	if got := titleFallback("Maintainers said goodbye"); !strings.HasPrefix(got, "Industry Update:") {
		t.Fatalf("substring 'ai' must not trigger the AI template: %q", got)
	}
	if got := titleFallback("New AI model launches"); !strings.HasPrefix(got, "Breaking:") {
		t.Fatalf("expected AI template: %q", got)
	}
	if got := titleFallback(""); got != genericTitleFallback {
		t.Fatalf("expected generic fallback, got %q", got)
	}
}

func TestTruncateAtSentence(t *testing.T) {
	t.Parallel()

	sentence := strings.Repeat("a", 99) + "."
	text := strings.Repeat(sentence, 40)
	got := truncateAtSentence(text, 3000)
	if runeLen(got) != 2900 || !strings.HasSuffix(got, ".") {
		t.Fatalf("expected cut at last sentence boundary, got len %d", runeLen(got))
	}

	noStops := strings.Repeat("b", 4000)
	got = truncateAtSentence(noStops, 3000)
	if runeLen(got) != 3000 || !strings.HasSuffix(got, "...") {
		t.Fatalf("expected hard cut with ellipsis, got len %d", runeLen(got))
	}
}

func TestTruncateAtSentenceSmallLimits(t *testing.T) {
	t.Parallel()

	words := strings.Repeat("word ", 200)
	got := truncateAtSentence(words, 400)
	if runeLen(got) != 400 || !strings.HasSuffix(got, "...") {
		t.Fatalf("text without full stops must keep the window, got len %d", runeLen(got))
	}

	got = truncateAtSentence("One. Two three four five six seven.", 20)
	if got != "One." {
		t.Fatalf("expected cut at the only full stop, got %q", got)
	}

	if got := truncateAtSentence(words, 2); got != "wo" {
		t.Fatalf("expected plain cut below the ellipsis width, got %q", got)
	}
}
