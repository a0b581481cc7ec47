package pipeline

import (
	"strings"
	"testing"

	"SocialPoster/internal/domain"
)

func TestFallbackGeneratorFillsSlots(t *testing.T) {
	t.Parallel()

	gen := NewFallbackGenerator(280)
	gen.pick = func(int) int { return 0 }

	set := domain.TemplateSet{
		Long:   []string{"{emoji} {title}\n\n{description}\n\n{link}\n\n{hashtags}"},
		Short:  []string{"{emoji} {short_title} {link}"},
		Emojis: []string{"🔧", "⚙️"},
	}
	long, short, err := gen.Generate(set, FallbackInput{
		Title:       "Kubernetes ships a new scheduler",
		URL:         "https://k8s.test/post",
		Description: "<p>" + strings.Repeat("d", 250) + "</p>",
		Hashtags:    []string{"DevOps", "#SRE"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !strings.HasPrefix(long, "🔧 Kubernetes ships a new scheduler") {
		t.Fatalf("unexpected long post: %q", long)
	}
	if !strings.Contains(long, strings.Repeat("d", 200)+"...") || strings.Contains(long, strings.Repeat("d", 201)) {
		t.Fatalf("description not excerpted: %q", long)
	}
	if !strings.HasSuffix(long, "#DevOps #SRE") {
		t.Fatalf("hashtags not rendered: %q", long)
	}
	if short != "🔧 Kubernetes ships a new scheduler https://k8s.test/post" {
		t.Fatalf("unexpected short post: %q", short)
	}
}

func TestFallbackGeneratorDefaultsAndLimits(t *testing.T) {
	t.Parallel()

	gen := NewFallbackGenerator(280)
	long, short, err := gen.Generate(domain.TemplateSet{}, FallbackInput{Title: strings.Repeat("T", 400), URL: "https://x.test"})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if long == "" || runeLen(short) > 280 {
		t.Fatalf("unexpected output: long=%d short=%d", runeLen(long), runeLen(short))
	}

	long, _, err = gen.Generate(domain.TemplateSet{}, FallbackInput{})
	if err != nil || !strings.Contains(long, defaultFallbackTitle) {
		t.Fatalf("empty title must fall back to generic title: %q, %v", long, err)
	}
}

func TestFallbackGeneratorOnlyVariesByPick(t *testing.T) {
	t.Parallel()

	in := FallbackInput{Title: "Same input", URL: "https://x.test", Description: "desc"}
	first := NewFallbackGenerator(280)
	first.pick = func(int) int { return 1 }
	second := NewFallbackGenerator(280)
	second.pick = func(int) int { return 1 }

	l1, s1, _ := first.Generate(DefaultTemplates, in)
	l2, s2, _ := second.Generate(DefaultTemplates, in)
	if l1 != l2 || s1 != s2 {
		t.Fatalf("identical picks must render identical posts")
	}
	if strings.Contains(l1, "{") || strings.Contains(s1, "{") {
		t.Fatalf("unresolved slot in output: %q / %q", l1, s1)
	}
}

func TestFallbackGeneratorRejectsBlankTemplates(t *testing.T) {
	t.Parallel()

	gen := NewFallbackGenerator(280)
	_, _, err := gen.Generate(domain.TemplateSet{Long: []string{"  "}, Short: []string{"{link}"}}, FallbackInput{Title: "x"})
	if err != ErrEmptyTemplate {
		t.Fatalf("expected ErrEmptyTemplate, got %v", err)
	}
}
