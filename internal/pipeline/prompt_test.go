package pipeline

import (
	"strings"
	"testing"
)

func TestBuildSystemPromptCarriesContract(t *testing.T) {
	t.Parallel()

	prompt := BuildSystemPrompt("  You write for Acme.  ", 280)
	if !strings.HasPrefix(prompt, "You write for Acme.") {
		t.Fatalf("brand voice should lead the prompt: %q", prompt)
	}
	for _, marker := range []string{MarkerLong, MarkerShort, MarkerEnd} {
		if !strings.Contains(prompt, marker) {
			t.Fatalf("missing marker %s", marker)
		}
	}
}

func TestBuildUserPromptCapsAndConverts(t *testing.T) {
	t.Parallel()

	prompt := BuildUserPrompt(PromptArticle{
		Title:       "Big launch",
		URL:         "https://www.techcrunch.com/2026/10/launch",
		Description: "<p>Launch <strong>details</strong></p>" + strings.Repeat("x", 600),
		Content:     strings.Repeat("c", 3000),
	})
	if !strings.Contains(prompt, "Source: TechCrunch") {
		t.Fatalf("expected source name: %q", prompt)
	}
	if !strings.Contains(prompt, "**details**") || strings.Contains(prompt, "<strong>") {
		t.Fatalf("expected markdown description: %q", prompt)
	}
	if strings.Contains(prompt, strings.Repeat("c", 2501)) {
		t.Fatalf("content not capped")
	}

	empty := BuildUserPrompt(PromptArticle{Title: "t"})
	if strings.Count(empty, "N/A") != 2 {
		t.Fatalf("expected N/A placeholders for empty fields: %q", empty)
	}
}

func TestSourceName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://thenewstack.io/x":       "The New Stack",
		"https://www.example.com/post":   "Example",
		"":                               defaultSourceName,
		"::bad":                          defaultSourceName,
		"https://blog.acme.dev/releases": "Blog",
	}
	for in, want := range cases {
		if got := SourceName(in); got != want {
			t.Errorf("SourceName(%q) = %q, want %q", in, got, want)
		}
	}
}
