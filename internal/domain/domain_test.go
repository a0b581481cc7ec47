package domain

import (
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	entries, err := ParseSchedule("0 9 * * 1-5")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(entries) != 1 || entries[0].Cron != "0 9 * * 1-5" || len(entries[0].Platforms) != 0 {
		t.Fatalf("unexpected entries for plain cron: %+v", entries)
	}

	entries, err = ParseSchedule(`[{"cron":"0 9 * * 1","platforms":["linkedin"]},{"cron":" "},{"cron":"0 17 * * 5"}]`)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected blank entry to be dropped, got %+v", entries)
	}
	if entries[0].Platforms[0] != PlatformLinkedIn || entries[1].Cron != "0 17 * * 5" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	if _, err := ParseSchedule(`[{"cron":`); err == nil {
		t.Fatalf("expected malformed json to fail")
	}
	if entries, _ := ParseSchedule("  "); entries != nil {
		t.Fatalf("expected empty schedule, got %+v", entries)
	}
}

func TestParsePlatforms(t *testing.T) {
	t.Parallel()

	got, err := ParsePlatforms("LinkedIn, twitter", "", "telegram")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(got) != 3 || got[0] != PlatformLinkedIn || got[2] != PlatformTelegram {
		t.Fatalf("unexpected platforms: %v", got)
	}
	if _, err := ParsePlatforms("myspace"); err == nil {
		t.Fatalf("expected unknown platform error")
	}
}

func TestScoringDefaultsAndValidate(t *testing.T) {
	t.Parallel()

	cfg := ScoringConfig{Recency: []RecencyBucket{{MaxAgeHours: 48}, {MaxAgeHours: 6, Bonus: 5}}}.WithDefaults()
	if cfg.BaseScore != 10 {
		t.Fatalf("expected default base score, got %v", cfg.BaseScore)
	}
	sorted := cfg.SortedRecency()
	if sorted[0].MaxAgeHours != 6 || sorted[1].MaxAgeHours != 48 {
		t.Fatalf("recency not sorted: %+v", sorted)
	}
	if err := (ScoringConfig{ComboBonuses: map[string]float64{"ai+": 3}}).Validate(); err == nil {
		t.Fatalf("expected empty combo part to be rejected")
	}
	if err := (ScoringConfig{Recency: []RecencyBucket{{MaxAgeHours: -1}}}).Validate(); err == nil {
		t.Fatalf("expected negative threshold to be rejected")
	}
	if err := (ScoringConfig{Keywords: map[string]float64{"  ": 2}}).Validate(); err == nil {
		t.Fatalf("expected blank keyword to be rejected")
	}
	if err := (ScoringConfig{NegativeKeywords: map[string]float64{"": -5}}).Validate(); err == nil {
		t.Fatalf("expected blank negative keyword to be rejected")
	}
}

func TestArticleToCandidate(t *testing.T) {
	t.Parallel()

	published := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := Article{ID: 7, URL: "https://x.test/a", Title: "A", PublishedAt: &published}.ToCandidate()
	if c.ArticleID != 7 || c.OriginalURL != "https://x.test/a" || !c.PublishedAt.Equal(published) {
		t.Fatalf("unexpected candidate: %+v", c)
	}
}

func TestPlatformForms(t *testing.T) {
	t.Parallel()

	if PlatformTwitter.Form() != FormShort || PlatformLinkedIn.Form() != FormLong || PlatformTelegram.Form() != FormLong {
		t.Fatalf("unexpected platform forms")
	}
	flags := PlatformFlags{LinkedIn: true}
	if !flags.Enabled(PlatformLinkedIn) || flags.Enabled(PlatformTwitter) {
		t.Fatalf("unexpected flags: %+v", flags)
	}
	if got := (Profile{Platform: PlatformLinkedIn, AccountType: AccountOrganization}).Label(); got != "linkedin_organization" {
		t.Fatalf("unexpected label %q", got)
	}
}
