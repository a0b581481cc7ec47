package pipeline

import (
	"regexp"
	"strings"
)

// Parse strategies, in the order they are tried.
const (
	StrategyDelimiters = "delimiters"
	StrategyLabels     = "labels"
	StrategyHeadings   = "headings"
	StrategyHeuristic  = "heuristic"
)

// DefaultShortLimit is the character cap of the short-form post.
const DefaultShortLimit = 280

const heuristicTweetMax = 300

var (
	delimLongRe    = regexp.MustCompile(`(?is)---\s*LINKEDIN\s*---\s*(.+?)\s*---\s*TWITTER\s*---`)
	delimShortRe   = regexp.MustCompile(`(?is)---\s*TWITTER\s*---\s*(.+?)\s*(?:---\s*END\s*---|$)`)
	labelLongRe    = regexp.MustCompile(`(?s)LINKEDIN:\s*(.+?)(?:TWITTER:|$)`)
	labelShortRe   = regexp.MustCompile(`(?s)TWITTER:\s*(.+)$`)
	boldLongRe     = regexp.MustCompile(`(?is)\*\*LinkedIn[^*]*\*\*[:\s]*(.+?)(?:\*\*(?:Twitter|X)\b|$)`)
	boldShortRe    = regexp.MustCompile(`(?is)\*\*(?:Twitter|X)\b[^*]*\*\*[:\s]*(.+)$`)
	hashLongRe     = regexp.MustCompile(`(?im)^#{1,6}\s*LinkedIn[^\n]*\n`)
	hashShortRe    = regexp.MustCompile(`(?im)^#{1,6}\s*(?:Twitter|X)\b[^\n]*\n`)
	boldRe         = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe       = regexp.MustCompile(`\*([^*]+)\*`)
	underlineRe    = regexp.MustCompile(`__([^_]+)__`)
	blankRunRe     = regexp.MustCompile(`\n{3,}`)
	leftoverMarkRe = regexp.MustCompile(`(?i)---\s*(?:LINKEDIN|TWITTER|END)\s*---`)
)

// ParsedPosts holds the long-form and short-form posts split out of a response.
type ParsedPosts struct {
	Long     string
	Short    string
	Strategy string
}

// ParsePosts splits raw model output into two posts. Any non-blank input yields
// two non-blank posts, the short one within shortLimit characters.
func ParsePosts(raw string, shortLimit int) ParsedPosts {
	if shortLimit <= 0 {
		shortLimit = DefaultShortLimit
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ParsedPosts{}
	}

	var long, short, strategy string
	apply := func(name string, l, s string) {
		if long == "" && l != "" {
			long = l
			if strategy == "" {
				strategy = name
			}
		}
		if short == "" && s != "" {
			short = s
			if strategy == "" {
				strategy = name
			}
		}
	}

	apply(StrategyDelimiters, submatch(delimLongRe, raw), submatch(delimShortRe, raw))
	if long == "" || short == "" {
		apply(StrategyLabels, submatch(labelLongRe, raw), submatch(labelShortRe, raw))
	}
	if long == "" || short == "" {
		l, s := headingSections(raw)
		apply(StrategyHeadings, l, s)
	}
	if long == "" && short == "" {
		long, short = heuristicSplit(raw, shortLimit)
		strategy = StrategyHeuristic
	}

	long = cleanPost(long)
	short = cleanPost(short)
	if long == "" {
		long = cleanPost(raw)
		if long == "" {
			long = raw
		}
	}
	if short == "" {
		short = long
	}

	return ParsedPosts{Long: long, Short: TruncateShort(short, shortLimit), Strategy: strategy}
}

func submatch(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// headingSections handles **LinkedIn** / **Twitter** and markdown # headings.
func headingSections(raw string) (string, string) {
	long := submatch(boldLongRe, raw)
	short := submatch(boldShortRe, raw)
	if long != "" && short != "" {
		return long, short
	}

	longLoc := hashLongRe.FindStringIndex(raw)
	shortLoc := hashShortRe.FindStringIndex(raw)
	if longLoc != nil && long == "" {
		end := len(raw)
		if shortLoc != nil && shortLoc[0] > longLoc[1] {
			end = shortLoc[0]
		}
		long = strings.TrimSpace(raw[longLoc[1]:end])
	}
	if shortLoc != nil && short == "" {
		end := len(raw)
		if longLoc != nil && longLoc[0] > shortLoc[1] {
			end = longLoc[0]
		}
		short = strings.TrimSpace(raw[shortLoc[1]:end])
	}
	return long, short
}

func heuristicSplit(raw string, shortLimit int) (string, string) {
	paragraphs := splitParagraphs(raw)
	if len(paragraphs) >= 2 {
		last := paragraphs[len(paragraphs)-1]
		if runeLen(last) < heuristicTweetMax {
			return strings.Join(paragraphs[:len(paragraphs)-1], "\n\n"), truncateRunes(last, shortLimit)
		}
	}
	return raw, truncateRunes(raw, shortLimit)
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func cleanPost(text string) string {
	if text == "" {
		return ""
	}
	text = leftoverMarkRe.ReplaceAllString(text, "")
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = underlineRe.ReplaceAllString(text, "$1")
	text = strings.TrimSpace(text)
	text = strings.Trim(text, `"'`)
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// TruncateShort caps a post at limit characters, preferring a sentence boundary
// in the last part of the window.
func TruncateShort(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit <= 3 {
		return string(runes[:max(limit, 0)])
	}
	window := string(runes[:limit-3])
	if cut := strings.LastIndex(window, ". "); cut >= 0 && runeLen(window[:cut]) > limit*5/7 {
		return window[:cut+1]
	}
	return window + "..."
}
