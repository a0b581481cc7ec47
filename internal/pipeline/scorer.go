package pipeline

import (
	"math"
	"sort"
	"strings"
	"time"

	"SocialPoster/internal/domain"
)

const contentMatchFactor = 0.7

// Scorer computes project relevance scores. Keyword tables are walked in sorted
// key order so the same input always yields the same score.
type Scorer struct {
	cfg      domain.ScoringConfig
	keywords []string
	negative []string
	combos   []string
	recency  []domain.RecencyBucket
	now      func() time.Time
}

// NewScorer prepares a scorer; a nil clock uses time.Now.
func NewScorer(cfg domain.ScoringConfig, now func() time.Time) *Scorer {
	cfg = cfg.WithDefaults()
	if now == nil {
		now = time.Now
	}
	return &Scorer{
		cfg:      cfg,
		keywords: sortedKeys(cfg.Keywords),
		negative: sortedKeys(cfg.NegativeKeywords),
		combos:   sortedKeys(cfg.ComboBonuses),
		recency:  cfg.SortedRecency(),
		now:      now,
	}
}

// Score returns the relevance score of one candidate, rounded to two decimals.
func (s *Scorer) Score(c domain.Candidate) float64 {
	title := strings.ToLower(c.Title)
	content := strings.ToLower(c.Summary)
	text := title + " " + content

	score := s.cfg.BaseScore

	// A single negative hit is enough.
	for _, kw := range s.negative {
		needle := strings.ToLower(strings.TrimSpace(kw))
		if needle != "" && strings.Contains(text, needle) {
			score += s.cfg.NegativeKeywords[kw]
			break
		}
	}

	categories := make(map[string]bool)
	for _, kw := range s.keywords {
		lower := strings.ToLower(strings.TrimSpace(kw))
		fields := strings.Fields(lower)
		if len(fields) == 0 {
			continue
		}
		switch {
		case strings.Contains(title, lower):
			score += s.cfg.Keywords[kw]
		case strings.Contains(content, lower):
			score += s.cfg.Keywords[kw] * contentMatchFactor
		default:
			continue
		}
		categories[fields[0]] = true
	}

	for _, combo := range s.combos {
		if comboMatches(combo, categories) {
			score += s.cfg.ComboBonuses[combo]
		}
	}

	if !c.PublishedAt.IsZero() {
		hoursOld := s.now().Sub(c.PublishedAt).Hours()
		for _, bucket := range s.recency {
			if hoursOld < bucket.MaxAgeHours {
				score += bucket.Bonus
				break
			}
		}
	}

	return math.Round(score*100) / 100
}

// ScoreAll scores a copy of the candidates and orders them by score, then
// recency, then URL.
func (s *Scorer) ScoreAll(candidates []domain.Candidate) []domain.Candidate {
	out := make([]domain.Candidate, len(candidates))
	for i, c := range candidates {
		c.Score = s.Score(c)
		out[i] = c
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].PublishedAt.After(out[j].PublishedAt)
		}
		return out[i].URL < out[j].URL
	})
	return out
}

// SelectBest returns the head of a ScoreAll ordering.
func SelectBest(ranked []domain.Candidate) (domain.Candidate, bool) {
	if len(ranked) == 0 {
		return domain.Candidate{}, false
	}
	return ranked[0], true
}

func comboMatches(combo string, categories map[string]bool) bool {
	for _, part := range strings.Split(strings.ToLower(combo), "+") {
		part = strings.TrimSpace(part)
		found := false
		for cat := range categories {
			if strings.Contains(cat, part) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
