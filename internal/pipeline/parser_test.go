package pipeline

import (
	"strings"
	"testing"
)

func TestParsePostsStrategies(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		raw      string
		long     string
		short    string
		strategy string
	}{
		{
			name:     "delimiters",
			raw:      "---LINKEDIN---\n**Big** news for *teams*.\n---TWITTER---\n\"Short take\"\n---END---\ntrailing chatter",
			long:     "Big news for teams.",
			short:    "Short take",
			strategy: StrategyDelimiters,
		},
		{
			name:     "labels",
			raw:      "LINKEDIN: Long form body here.\nTWITTER: Tweet body",
			long:     "Long form body here.",
			short:    "Tweet body",
			strategy: StrategyLabels,
		},
		{
			name:     "bold headings",
			raw:      "**LinkedIn Post:**\nThe long one.\n\n**Twitter Post:**\nThe short one.",
			long:     "The long one.",
			short:    "The short one.",
			strategy: StrategyHeadings,
		},
		{
			name:     "hash headings",
			raw:      "## LinkedIn\nLong body text.\n\n## X\nTiny post.",
			long:     "Long body text.",
			short:    "Tiny post.",
			strategy: StrategyHeadings,
		},
		{
			name:     "heuristic tail paragraph",
			raw:      "Paragraph one.\n\nParagraph two.\n\nTweet sized tail.",
			long:     "Paragraph one.\n\nParagraph two.",
			short:    "Tweet sized tail.",
			strategy: StrategyHeuristic,
		},
	}
	for _, tc := range cases {
		got := ParsePosts(tc.raw, 280)
		if got.Long != tc.long || got.Short != tc.short || got.Strategy != tc.strategy {
			t.Errorf("%s: got %+v", tc.name, got)
		}
	}
}

func TestParsePostsAlwaysReturnsTwoPosts(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"just one line",
		`"quoted"`,
		"**",
		"---LINKEDIN---\nonly the long part is here",
		"TWITTER: only a tweet",
		strings.Repeat("long single paragraph ", 40),
	}
	for _, raw := range inputs {
		got := ParsePosts(raw, 280)
		if strings.TrimSpace(got.Long) == "" || strings.TrimSpace(got.Short) == "" {
			t.Errorf("expected two non-empty posts for %q, got %+v", raw, got)
		}
		if runeLen(got.Short) > 280 {
			t.Errorf("short post over limit for %q: %d", raw, runeLen(got.Short))
		}
	}

	if got := ParsePosts("   ", 280); got.Long != "" || got.Short != "" {
		t.Fatalf("blank input should produce no posts, got %+v", got)
	}
}

func TestTruncateShortBoundary(t *testing.T) {
	t.Parallel()

	exact := strings.Repeat("x", 280)
	if got := TruncateShort(exact, 280); got != exact {
		t.Fatalf("post at the limit must be unchanged")
	}

	over := strings.Repeat("y", 281)
	got := TruncateShort(over, 280)
	if runeLen(got) != 280 || !strings.HasSuffix(got, "...") {
		t.Fatalf("expected hard truncation to 280, got %d", runeLen(got))
	}

	sentences := strings.Repeat("w", 230) + ". " + strings.Repeat("z", 100)
	got = TruncateShort(sentences, 280)
	if got != strings.Repeat("w", 230)+"." {
		t.Fatalf("expected sentence cut, got %q", got)
	}
}

func TestTruncateShortTinyLimit(t *testing.T) {
	t.Parallel()

	for _, limit := range []int{0, 1, 3} {
		if got := TruncateShort("hello world", limit); runeLen(got) != limit {
			t.Fatalf("limit %d: expected %d runes, got %q", limit, limit, got)
		}
	}
}
