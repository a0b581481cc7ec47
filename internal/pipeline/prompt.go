package pipeline

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

const (
	promptDescriptionLimit = 500
	promptContentLimit     = 2500
)

// Output section markers the model is instructed to emit.
const (
	MarkerLong  = "---LINKEDIN---"
	MarkerShort = "---TWITTER---"
	MarkerEnd   = "---END---"
)

// BuildSystemPrompt appends the output contract to the project brand voice.
func BuildSystemPrompt(brandVoice string, shortLimit int) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(brandVoice))
	b.WriteString("\n\n=== CRITICAL OUTPUT FORMAT ===\n\nYou MUST output in this exact format:\n\n")
	b.WriteString(MarkerLong)
	b.WriteString("\n[Write your LinkedIn post here - 200-300 words, bold and strategic]\n")
	b.WriteString(MarkerShort)
	fmt.Fprintf(&b, "\n[Write your Twitter/X post here - under %d characters]\n", shortLimit-30)
	b.WriteString(MarkerEnd)
	b.WriteString("\n\nDo not include URLs, HTML or placeholder text in either post.\n")
	b.WriteString("\n=== DO NOT SKIP EITHER POST ===")
	return b.String()
}

// PromptArticle is the article data the user prompt is built from.
type PromptArticle struct {
	Title       string
	URL         string
	Description string
	Content     string
}

// BuildUserPrompt renders the article into the generation request.
func BuildUserPrompt(article PromptArticle) string {
	description := descriptionMarkdown(article.Description)
	if description == "" {
		description = "N/A"
	}
	content := truncateRunes(strings.TrimSpace(article.Content), promptContentLimit)
	if content == "" {
		content = "N/A"
	}

	var b strings.Builder
	b.WriteString("Create engaging social media posts for this news article:\n\n")
	fmt.Fprintf(&b, "Title: %s\n", article.Title)
	fmt.Fprintf(&b, "Source: %s\n", SourceName(article.URL))
	fmt.Fprintf(&b, "Description: %s\n", description)
	fmt.Fprintf(&b, "Article Content: %s\n\n", content)
	b.WriteString("Create 2 powerful, execution-focused social posts that will drive engagement and establish thought leadership.")
	return b.String()
}

// descriptionMarkdown converts feed HTML to markdown and caps it.
func descriptionMarkdown(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	text := raw
	if strings.Contains(raw, "<") {
		converter := md.NewConverter("", true, nil)
		if out, err := converter.ConvertString(raw); err == nil {
			text = out
		}
	}
	return truncateRunes(strings.TrimSpace(text), promptDescriptionLimit)
}
