package pipeline

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
)

// ValidationRules are the thresholds applied to a generated post pair.
type ValidationRules struct {
	MinLongChars    int
	MinShortChars   int
	MinLongWords    int
	SoftMaxWords    int
	MaxLongChars    int
	ShortLimit      int
	MaxForeignChars int
}

// DefaultValidationRules returns the thresholds used by the pipeline.
func DefaultValidationRules() ValidationRules {
	return ValidationRules{
		MinLongChars:    50,
		MinShortChars:   20,
		MinLongWords:    50,
		SoftMaxWords:    500,
		MaxLongChars:    3000,
		ShortLimit:      DefaultShortLimit,
		MaxForeignChars: maxForeignChars,
	}
}

// ValidationResult is a validity flag plus a 0-100 quality score.
type ValidationResult struct {
	Valid    bool
	Score    float64
	Errors   []string
	Warnings []string
}

// Notes joins errors and warnings for storage alongside the post.
func (r ValidationResult) Notes() string {
	return strings.Join(append(append([]string(nil), r.Errors...), r.Warnings...), "; ")
}

var (
	refusalPhrases = []string{
		"i cannot", "i apologize", "i'm sorry", "as an ai", "i don't have",
		"i can't", "unable to", "error occurred", "as a language model",
		"here is your", "here's your", "here are your",
	}
	placeholderPhrases = []string{"[insert", "[add", "[your", "placeholder", "example text", "lorem ipsum"}

	// Section markers leak anywhere; platform labels only at a line start.
	labelLeakRe    = regexp.MustCompile(`(?im)---(?:linkedin|twitter|end)---|^[ \t]*(?:(?:linkedin|twitter)(?: post)?|tweet)[ \t]*:`)
	htmlTagRe      = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9]*(?:\s[^<>]*)?/?>`)
	htmlAttrRe     = regexp.MustCompile(`(?i)\b(?:href|src|class|style|onclick)\s*=\s*["']`)
	htmlEntityRe   = regexp.MustCompile(`&(?:[a-zA-Z]{2,8}|#\d{2,5}|#x[0-9a-fA-F]{2,4});`)
	linkRe         = regexp.MustCompile(`(?i)\bhttps?://|\bwww\.[a-z0-9-]+\.|\b[a-z0-9-]+\.(?:com|io|net|org|co|ai)/`)
	slotTokenRe    = regexp.MustCompile(`\{[a-z_]+\}|\[[A-Z][A-Za-z ]{2,30}\]`)
	consonantRunRe = regexp.MustCompile(`(?i)[bcdfghjklmnpqrstvwxz]{7,}`)
	missingSpaceRe = regexp.MustCompile(`[a-z]{2}[.!?,][A-Z][a-z]`)
	mojibakeRe     = regexp.MustCompile(`Ã.|â€|Â[^\s]|\x{FFFD}`)
	sentenceSplit  = regexp.MustCompile(`[.!?]+`)
)

// Validator scores a generated post pair against the rules.
type Validator struct {
	rules  ValidationRules
	logger *slog.Logger
}

// NewValidator builds a validator; zero rules fields fall back to defaults.
func NewValidator(rules ValidationRules, logger *slog.Logger) *Validator {
	def := DefaultValidationRules()
	if rules.MinLongChars <= 0 {
		rules.MinLongChars = def.MinLongChars
	}
	if rules.MinShortChars <= 0 {
		rules.MinShortChars = def.MinShortChars
	}
	if rules.MinLongWords <= 0 {
		rules.MinLongWords = def.MinLongWords
	}
	if rules.SoftMaxWords <= 0 {
		rules.SoftMaxWords = def.SoftMaxWords
	}
	if rules.MaxLongChars <= 0 {
		rules.MaxLongChars = def.MaxLongChars
	}
	if rules.ShortLimit <= 0 {
		rules.ShortLimit = def.ShortLimit
	}
	if rules.MaxForeignChars <= 0 {
		rules.MaxForeignChars = def.MaxForeignChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{rules: rules, logger: logger.With("component", "post_validator")}
}

type verdict struct {
	res *ValidationResult
}

func (v verdict) reject(penalty float64, format string, args ...any) {
	v.res.Valid = false
	v.res.Score -= penalty
	v.res.Errors = append(v.res.Errors, fmt.Sprintf(format, args...))
}

func (v verdict) penalize(penalty float64, format string, args ...any) {
	v.res.Score -= penalty
	v.res.Warnings = append(v.res.Warnings, fmt.Sprintf(format, args...))
}

// Validate checks the pair. Any hard rule invalidates it; soft rules only lower the score.
func (v *Validator) Validate(long, short string) ValidationResult {
	res := ValidationResult{Valid: true, Score: 100}
	out := verdict{res: &res}
	combined := long + "\n" + short
	lower := strings.ToLower(combined)

	if htmlTagRe.MatchString(combined) || htmlAttrRe.MatchString(combined) || htmlEntityRe.MatchString(combined) {
		out.reject(40, "posts contain HTML markup")
	}
	if linkRe.MatchString(combined) {
		out.reject(30, "posts contain links")
	}
	if phrase := firstContained(lower, refusalPhrases); phrase != "" {
		out.reject(50, "posts contain conversational response: %q", phrase)
	}
	for _, phrase := range placeholderPhrases {
		if strings.Contains(lower, phrase) {
			out.reject(25, "posts contain placeholder text: %q", phrase)
		}
	}
	if slotTokenRe.MatchString(combined) {
		out.reject(25, "posts contain unresolved template tokens")
	}
	if label := labelLeakRe.FindString(combined); label != "" {
		out.reject(25, "posts leak section label %q", strings.TrimSpace(label))
	}

	longChars, shortChars := runeLen(strings.TrimSpace(long)), runeLen(strings.TrimSpace(short))
	if longChars < v.rules.MinLongChars {
		out.reject(30, "long post too short (%d chars, minimum %d)", longChars, v.rules.MinLongChars)
	}
	if shortChars < v.rules.MinShortChars {
		out.reject(30, "short post too short (%d chars, minimum %d)", shortChars, v.rules.MinShortChars)
	}
	words := len(strings.Fields(long))
	switch {
	case words < v.rules.MinLongWords:
		out.reject(20, "long post too short: %d words (minimum %d)", words, v.rules.MinLongWords)
	case words > v.rules.SoftMaxWords:
		out.penalize(10, "long post is long: %d words (recommended max %d)", words, v.rules.SoftMaxWords)
	}
	if n := runeLen(long); n > v.rules.MaxLongChars {
		out.reject(20, "long post too long: %d chars (max %d)", n, v.rules.MaxLongChars)
	}
	if n := runeLen(short); n > v.rules.ShortLimit {
		out.reject(20, "short post too long: %d chars (max %d)", n, v.rules.ShortLimit)
	}

	for _, text := range []string{long, short} {
		if reason := gibberishReason(text); reason != "" {
			out.reject(40, "gibberish detected: %s", reason)
			break
		}
	}
	if n := CountForeignChars(combined); n > v.rules.MaxForeignChars {
		out.reject(40, "posts contain %d non-target script characters", n)
	}

	if long != "" && !strings.Contains(long, "#") {
		out.penalize(5, "long post missing hashtags")
	}
	if short != "" && !strings.Contains(short, "#") {
		out.penalize(5, "short post missing hashtags")
	}
	if long != "" && !hasEmoji(long) {
		out.penalize(3, "long post may benefit from emojis")
	}
	v.grammar(out, long)
	v.grammar(out, short)

	if res.Score < 0 {
		res.Score = 0
	}
	if res.Valid {
		v.logger.Debug("posts validated", "score", res.Score, "warnings", len(res.Warnings))
	} else {
		v.logger.Warn("posts rejected", "score", res.Score, "errors", res.Errors)
	}
	return res
}

func (v *Validator) grammar(out verdict, text string) {
	if text == "" {
		return
	}
	words := strings.Fields(text)
	for i := 1; i < len(words); i++ {
		prev, cur := strings.ToLower(words[i-1]), strings.ToLower(words[i])
		if prev == cur && len(cur) > 1 && isAlpha(cur) {
			out.penalize(5, "repeated word %q", cur)
			break
		}
	}
	for _, sentence := range sentenceSplit.Split(text, -1) {
		if len(strings.Fields(sentence)) > 60 {
			out.penalize(5, "run-on sentence detected")
			break
		}
	}
	if missingSpaceRe.MatchString(text) {
		out.penalize(3, "missing space after punctuation")
	}
	if strings.Count(text, "(") != strings.Count(text, ")") || strings.Count(text, "[") != strings.Count(text, "]") {
		out.penalize(3, "unbalanced brackets")
	}
	letters, upper := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters >= 20 && float64(upper)/float64(letters) > 0.5 {
		out.penalize(5, "excessive capitalization")
	}
	if mojibakeRe.MatchString(text) {
		out.penalize(10, "mojibake characters detected")
	}
}

// gibberishReason returns a non-empty reason when text does not read like prose.
func gibberishReason(text string) string {
	if text == "" {
		return ""
	}
	total, printable := 0, 0
	for _, r := range text {
		total++
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	if float64(printable)/float64(total) < 0.9 {
		return "low printable character ratio"
	}
	if consonantRunRe.MatchString(text) {
		return "long consonant run"
	}

	realWords := 0
	for _, w := range strings.Fields(text) {
		if isRealWord(w) {
			realWords++
		}
	}
	if total >= 100 && realWords < total/12 {
		return "too few real words"
	}

	var sentences []string
	for _, s := range sentenceSplit.Split(strings.ToLower(text), -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) >= 4 {
		seen := map[string]bool{}
		dupes := 0
		for _, s := range sentences {
			if seen[s] {
				dupes++
			}
			seen[s] = true
		}
		if float64(dupes)/float64(len(sentences)) > 0.3 {
			return "high duplicate sentence ratio"
		}
	}
	return ""
}

func isRealWord(token string) bool {
	word := strings.TrimFunc(token, func(r rune) bool { return !unicode.IsLetter(r) })
	n := runeLen(word)
	if n == 0 || n > 20 {
		return false
	}
	if n <= 2 {
		return true
	}
	return strings.ContainsAny(strings.ToLower(word), "aeiouy")
}

func isAlpha(word string) bool {
	for _, r := range word {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func hasEmoji(text string) bool {
	for _, r := range text {
		if (r >= 0x1F300 && r <= 0x1FAFF) || (r >= 0x2600 && r <= 0x27BF) {
			return true
		}
	}
	return false
}

func firstContained(text string, phrases []string) string {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return p
		}
	}
	return ""
}
