package pipeline

import (
	"errors"
	"math/rand/v2"
	"strings"

	"SocialPoster/internal/domain"
)

const (
	fallbackShortTitleLimit  = 120
	fallbackDescriptionLimit = 200
	defaultFallbackTitle     = "Industry Update"
	defaultFallbackEmoji     = "📢"
)

// ErrEmptyTemplate is returned when a template set renders to blank output.
var ErrEmptyTemplate = errors.New("fallback template rendered empty output")

// DefaultTemplates is used for projects that configure no templates of their own.
var DefaultTemplates = domain.TemplateSet{
	Long: []string{
		"{emoji} {title}\n\n" +
			"This latest development highlights trends that forward-thinking leaders need to understand.\n\n" +
			"{description}\n\n" +
			"At {project}, we follow these shifts closely so our community can act on them early.\n\n" +
			"Read the full article: {link}\n\n" +
			"What's your take on this development?\n\n{hashtags}",
		"{emoji} {title}\n\n" +
			"Another signal worth paying attention to.\n\n" +
			"{description}\n\n" +
			"Organizations that move early gain compounding advantages. Those that wait fall further behind.\n\n" +
			"Read more: {link}\n\n{hashtags}",
	},
	Short: []string{
		"{emoji} {short_title}\n\n{link}\n\n{hashtags}",
		"{emoji} Worth a read: {short_title}\n\n{link}\n\n{hashtags}",
	},
	Emojis: []string{defaultFallbackEmoji},
}

// FallbackInput carries the article data slotted into templates.
type FallbackInput struct {
	ProjectName string
	Title       string
	URL         string
	Description string
	Hashtags    []string
}

// FallbackGenerator assembles posts from templates. Only the template and emoji
// picks are random.
type FallbackGenerator struct {
	shortLimit int
	pick       func(n int) int
}

// NewFallbackGenerator builds a generator bound to the short-form limit.
func NewFallbackGenerator(shortLimit int) *FallbackGenerator {
	if shortLimit <= 0 {
		shortLimit = DefaultShortLimit
	}
	return &FallbackGenerator{shortLimit: shortLimit, pick: rand.IntN}
}

// Generate renders one long and one short post.
func (f *FallbackGenerator) Generate(set domain.TemplateSet, in FallbackInput) (string, string, error) {
	if set.Empty() {
		set = DefaultTemplates
	}
	emojis := set.Emojis
	if len(emojis) == 0 {
		emojis = []string{defaultFallbackEmoji}
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = defaultFallbackTitle
	}
	description := strings.TrimSpace(StripHTML(in.Description))
	if runeLen(description) > fallbackDescriptionLimit {
		description = truncateRunes(description, fallbackDescriptionLimit) + "..."
	}

	replacer := strings.NewReplacer(
		"{emoji}", f.choose(emojis),
		"{title}", title,
		"{short_title}", truncateRunes(title, fallbackShortTitleLimit),
		"{description}", description,
		"{link}", in.URL,
		"{project}", in.ProjectName,
		"{hashtags}", formatHashtags(in.Hashtags),
	)

	long := tidyTemplate(replacer.Replace(f.choose(set.Long)))
	short := tidyTemplate(replacer.Replace(f.choose(set.Short)))
	if long == "" || short == "" {
		return "", "", ErrEmptyTemplate
	}
	if runeLen(short) > f.shortLimit {
		short = truncateRunes(short, f.shortLimit-3) + "..."
	}
	return long, short, nil
}

func (f *FallbackGenerator) choose(options []string) string {
	if len(options) == 1 {
		return options[0]
	}
	return options[f.pick(len(options))]
}

func formatHashtags(tags []string) string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, "#") {
			t = "#" + t
		}
		out = append(out, t)
	}
	return strings.Join(out, " ")
}

// tidyTemplate collapses blank runs left by empty slots.
func tidyTemplate(text string) string {
	return strings.TrimSpace(blankRunRe.ReplaceAllString(text, "\n\n"))
}
