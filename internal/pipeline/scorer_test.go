package pipeline

import (
	"testing"
	"time"

	"SocialPoster/internal/domain"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestScorerWeights(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	scorer := NewScorer(domain.ScoringConfig{
		BaseScore:        10,
		Keywords:         map[string]float64{"ai agents": 8, "sales": 5},
		NegativeKeywords: map[string]float64{"election": -20, "senate": -20},
		ComboBonuses:     map[string]float64{"ai+sales": 4},
	}, fixedClock(now))

	cases := []struct {
		name string
		c    domain.Candidate
		want float64
	}{
		{"title match", domain.Candidate{Title: "AI agents are here"}, 18},
		{"content match", domain.Candidate{Title: "News", Summary: "about sales"}, 13.5},
		{"combo", domain.Candidate{Title: "AI agents for sales"}, 27},
		{"negative once", domain.Candidate{Title: "Election and senate news"}, -10},
		{"recency 6h", domain.Candidate{Title: "x", PublishedAt: now.Add(-2 * time.Hour)}, 15},
		{"recency 24h", domain.Candidate{Title: "x", PublishedAt: now.Add(-10 * time.Hour)}, 12},
		{"old", domain.Candidate{Title: "x", PublishedAt: now.Add(-100 * time.Hour)}, 10},
	}
	for _, tc := range cases {
		if got := scorer.Score(tc.c); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestScorerIgnoresBlankKeywords(t *testing.T) {
	t.Parallel()

	scorer := NewScorer(domain.ScoringConfig{
		BaseScore:        10,
		Keywords:         map[string]float64{" ": 1, "ai": 3},
		NegativeKeywords: map[string]float64{"\t": -50},
	}, fixedClock(time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)))

	if got := scorer.Score(domain.Candidate{Title: "AI news today"}); got != 13 {
		t.Fatalf("expected blank keywords to be skipped, got %v", got)
	}
}

func TestScorerDeterministicOrdering(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	cfg := domain.ScoringConfig{Keywords: map[string]float64{"cloud": 1.1, "kubernetes": 2.3, "devops": 0.7, "sre": 1.9}}
	candidates := []domain.Candidate{
		{URL: "https://b.test", Title: "cloud kubernetes"},
		{URL: "https://a.test", Title: "kubernetes cloud"},
		{URL: "https://c.test", Title: "devops sre", PublishedAt: now.Add(-time.Hour)},
		{URL: "https://d.test", Title: "nothing"},
	}

	first := NewScorer(cfg, fixedClock(now)).ScoreAll(candidates)
	for i := 0; i < 20; i++ {
		again := NewScorer(cfg, fixedClock(now)).ScoreAll(candidates)
		for j := range first {
			if first[j].URL != again[j].URL || first[j].Score != again[j].Score {
				t.Fatalf("scoring not deterministic at %d: %+v vs %+v", j, first[j], again[j])
			}
		}
	}

	best, ok := SelectBest(first)
	if !ok || best.URL != "https://c.test" {
		t.Fatalf("unexpected best: %+v", best)
	}
	// Equal scores without dates fall back to URL order.
	if first[1].URL != "https://a.test" || first[2].URL != "https://b.test" {
		t.Fatalf("unexpected tie order: %s, %s", first[1].URL, first[2].URL)
	}
	if _, ok := SelectBest(nil); ok {
		t.Fatalf("expected no selection from empty list")
	}
}
