package pipeline

import (
	"log/slog"
	"unicode/utf8"

	"SocialPoster/internal/domain"
)

const (
	maxForeignChars = 2
	maxForeignRatio = 0.2
	summaryProbeLen = 200
)

// nonLatinRanges lists scripts that mark text as outside the target language.
var nonLatinRanges = [][2]rune{
	{0x4e00, 0x9fff}, // CJK
	{0x3040, 0x309f}, // Hiragana
	{0x30a0, 0x30ff}, // Katakana
	{0xac00, 0xd7af}, // Hangul
	{0x0600, 0x06ff}, // Arabic
	{0x0900, 0x097f}, // Devanagari
	{0x0e00, 0x0e7f}, // Thai
	{0x0400, 0x04ff}, // Cyrillic
}

func isForeignRune(r rune) bool {
	for _, rg := range nonLatinRanges {
		if r >= rg[0] && r <= rg[1] {
			return true
		}
	}
	return false
}

// CountForeignChars returns how many runes of text belong to non-target scripts.
func CountForeignChars(text string) int {
	n := 0
	for _, r := range text {
		if isForeignRune(r) {
			n++
		}
	}
	return n
}

// IsTargetLanguage reports whether text looks like English. Empty text passes.
func IsTargetLanguage(text string) bool {
	if text == "" {
		return true
	}
	foreign := CountForeignChars(text)
	if foreign > maxForeignChars {
		return false
	}
	return float64(foreign)/float64(utf8.RuneCountInString(text)) <= maxForeignRatio
}

// FilterTargetLanguage drops candidates whose title or summary prefix is in another script.
func FilterTargetLanguage(candidates []domain.Candidate, logger *slog.Logger) ([]domain.Candidate, int) {
	kept := make([]domain.Candidate, 0, len(candidates))
	dropped := 0
	for _, c := range candidates {
		if !IsTargetLanguage(c.Title) || !IsTargetLanguage(truncateRunes(c.Summary, summaryProbeLen)) {
			dropped++
			if logger != nil {
				logger.Debug("candidate filtered by language", "url", c.URL)
			}
			continue
		}
		kept = append(kept, c)
	}
	return kept, dropped
}

// truncateRunes returns at most n runes of s.
func truncateRunes(s string, n int) string {
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
