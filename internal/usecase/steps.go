package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/pipeline"
	"SocialPoster/internal/ports"
)

// runState carries each step's output to the next.
type runState struct {
	candidates []domain.Candidate
	selected   domain.Candidate
	content    pipeline.ExtractedContent
	raw        string
	parsed     pipeline.ParsedPosts
	accepted   bool
	long       string
	short      string
	quality    float64
	notes      string
	saved      map[domain.Platform]domain.GeneratedPost
	targets    int
	report     pipeline.DispatchReport
}

func (e *Execution) steps() []step {
	return []step{
		{"rss_fetch", e.fetchStep},
		{"language_filter", e.languageStep},
		{"url_resolve", e.resolveStep},
		{"dedup", e.dedupStep},
		{"scoring", e.scoringStep},
		{"selection", e.selectionStep},
		{"content_extract", e.extractStep},
		{"ai_generation", e.generationStep},
		{"parsing", e.parsingStep},
		{"validation", e.validationStep},
		{"fallback", e.fallbackStep},
		{"save_posts", e.saveStep},
		{"publishing", e.publishStep},
	}
}

func (e *Execution) fetchStep(ctx context.Context) StepResult {
	result := e.o.fetcher.Fetch(ctx, e.project.Feeds)
	e.state.candidates = result.Candidates
	e.run.ArticlesFetched = len(result.Candidates)

	if len(result.Candidates) == 0 {
		stored, err := e.o.repo.LatestUnselectedArticle(ctx, e.project.ID)
		if err != nil {
			if !errors.Is(err, ports.ErrNotFound) {
				e.logger.Warn("stored article lookup failed", "error", err)
			}
			return fatal(errNoArticles)
		}
		e.state.candidates = []domain.Candidate{stored.ToCandidate()}
		return degraded("No articles fetched from %d feeds; using stored article %q", result.FeedCount, stored.Title)
	}

	if len(result.Failed) > 0 {
		failed := make([]string, 0, len(result.Failed))
		for _, f := range result.Failed {
			failed = append(failed, f.Feed)
		}
		return degraded("Fetched %d articles from %d/%d feeds (failed: %s)",
			len(result.Candidates), result.FeedCount-len(result.Failed), result.FeedCount, strings.Join(failed, ", "))
	}
	return ok("Fetched %d articles from %d feeds", len(result.Candidates), result.FeedCount)
}

func (e *Execution) languageStep(context.Context) StepResult {
	kept, dropped := pipeline.FilterTargetLanguage(e.state.candidates, e.logger)
	switch {
	case dropped == 0:
		return ok("All %d candidates in target language", len(kept))
	case len(kept) == 0:
		return degraded("All %d candidates failed the language filter; keeping unfiltered list", dropped)
	default:
		e.state.candidates = kept
		return degraded("Dropped %d non-target-language candidates; %d remain", dropped, len(kept))
	}
}

func (e *Execution) resolveStep(ctx context.Context) StepResult {
	if e.o.resolver == nil {
		return skipped()
	}
	resolved, n := e.o.resolver.Resolve(ctx, e.state.candidates)
	e.state.candidates = resolved
	return ok("Resolved %d indirection URLs", n)
}

func (e *Execution) dedupStep(ctx context.Context) StepResult {
	result, err := e.o.dedup.Deduplicate(ctx, e.project.ID, e.run.ID, e.state.candidates)
	e.run.ArticlesNew = len(result.New)
	if err != nil {
		if len(result.Normalized) > 0 {
			e.state.candidates = result.Normalized
		}
		return degraded("Deduplication failed: %v; scoring all %d candidates", err, len(e.state.candidates))
	}
	if len(result.New) == 0 {
		e.state.candidates = result.Normalized
		return degraded("No new articles (%d already seen); scoring all %d candidates", result.Duplicates, len(result.Normalized))
	}

	e.state.candidates = result.New
	if result.InsertFailures > 0 {
		return degraded("%d new articles (%d duplicates), %d could not be stored", len(result.New), result.Duplicates, result.InsertFailures)
	}
	return ok("%d new articles (%d duplicates)", len(result.New), result.Duplicates)
}

func (e *Execution) scoringStep(context.Context) StepResult {
	scorer := pipeline.NewScorer(e.project.Scoring, e.o.now)
	e.state.candidates = scorer.ScoreAll(e.state.candidates)
	if len(e.state.candidates) == 0 {
		return ok("No candidates to score")
	}
	return ok("Scored %d candidates; top score %.2f", len(e.state.candidates), e.state.candidates[0].Score)
}

func (e *Execution) selectionStep(ctx context.Context) StepResult {
	best, found := pipeline.SelectBest(e.state.candidates)
	if !found {
		return fatal(errNoSelection)
	}

	id, err := e.articleID(ctx, best)
	if err != nil {
		e.state.selected = best
		return degraded("Selected %q (score %.2f) but could not store it: %v", best.Title, best.Score, err)
	}
	best.ArticleID = id
	e.state.selected = best
	e.run.SelectedArticleID = id

	selected, score := true, best.Score
	if err := e.o.repo.UpdateArticle(ctx, id, domain.ArticleUpdate{Selected: &selected, RelevanceScore: &score}); err != nil {
		return degraded("Selected %q (score %.2f); marking it selected failed: %v", best.Title, best.Score, err)
	}
	return ok("Selected %q (score %.2f)", best.Title, best.Score)
}

// articleID finds or creates the stored row of a candidate.
func (e *Execution) articleID(ctx context.Context, c domain.Candidate) (int64, error) {
	if c.ArticleID != 0 {
		return c.ArticleID, nil
	}
	stored, err := e.o.repo.FindArticleByURL(ctx, e.project.ID, c.URL)
	if err == nil {
		return stored.ID, nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return 0, err
	}
	article := domain.Article{
		ProjectID:   e.project.ID,
		URL:         c.URL,
		OriginalURL: c.OriginalURL,
		Title:       c.Title,
		SourceFeed:  c.SourceFeed,
		Summary:     c.Summary,
		FetchRunID:  e.run.ID,
	}
	if !c.PublishedAt.IsZero() {
		published := c.PublishedAt
		article.PublishedAt = &published
	}
	stored, _, err = e.o.repo.InsertArticleIfAbsent(ctx, article)
	if err != nil {
		return 0, err
	}
	return stored.ID, nil
}

func (e *Execution) extractStep(ctx context.Context) StepResult {
	sel := e.state.selected
	content := e.o.extractor.Extract(ctx, sel.URL, sel.Title, sel.Summary)
	e.state.content = content

	if sel.ArticleID != 0 {
		text := content.Text
		if err := e.o.repo.UpdateArticle(ctx, sel.ArticleID, domain.ArticleUpdate{ContentText: &text}); err != nil {
			e.logger.Warn("store article content failed", "error", err)
		}
	}
	if content.Method == pipeline.MethodSummary || content.Method == pipeline.MethodTitle {
		return degraded("Page extraction failed; using %s (%d words)", content.Method, content.WordCount)
	}
	return ok("Extracted %d words via %s", content.WordCount, content.Method)
}

func (e *Execution) generationStep(ctx context.Context) StepResult {
	if e.o.generator == nil {
		return degraded("AI client not configured; template fallback will be used")
	}
	sel := e.state.selected
	system := pipeline.BuildSystemPrompt(e.project.BrandVoice, e.o.cfg.ShortLimit)
	user := pipeline.BuildUserPrompt(pipeline.PromptArticle{
		Title:       sel.Title,
		URL:         sel.URL,
		Description: sel.Summary,
		Content:     e.state.content.Text,
	})

	gen, generated := e.o.generator.Generate(ctx, system, user)
	if !generated {
		return degraded("All models failed after %d attempts: %s", gen.Attempts, gen.Summary())
	}
	e.state.raw = gen.Raw
	e.run.ModelUsed = gen.Model
	return ok("Generated with %s (%d attempts)", gen.Model, gen.Attempts)
}

func (e *Execution) parsingStep(context.Context) StepResult {
	if e.state.raw == "" {
		return skipped()
	}
	parsed := pipeline.ParsePosts(e.state.raw, e.o.cfg.ShortLimit)
	if parsed.Long == "" || parsed.Short == "" {
		return degraded("Could not extract two posts from the AI response")
	}
	e.state.parsed = parsed
	return ok("Parsed posts via %s (%d/%d chars)", parsed.Strategy, len([]rune(parsed.Long)), len([]rune(parsed.Short)))
}

func (e *Execution) validationStep(context.Context) StepResult {
	parsed := e.state.parsed
	if parsed.Long == "" {
		return skipped()
	}
	threshold := e.o.cfg.MinQualityScore
	if e.project.QualityThreshold > 0 {
		threshold = e.project.QualityThreshold
	}

	res := e.o.validator.Validate(parsed.Long, parsed.Short)
	if !res.Valid || res.Score < threshold {
		return degraded("AI posts rejected (score %.0f, threshold %.0f): %s", res.Score, threshold, res.Notes())
	}
	e.state.accepted = true
	e.state.long, e.state.short = parsed.Long, parsed.Short
	e.state.quality = res.Score
	e.state.notes = res.Notes()
	return ok("AI posts accepted (score %.0f, threshold %.0f)", res.Score, threshold)
}

func (e *Execution) fallbackStep(context.Context) StepResult {
	if e.state.accepted {
		return skipped()
	}
	long, short, err := e.renderFallback()
	if err != nil {
		e.logger.Error("fallback generation failed", "error", err)
		return fatal(errGenerationFailed)
	}
	e.state.long, e.state.short = long, short
	e.state.quality = e.o.cfg.FallbackQuality
	e.state.notes = "template fallback"
	e.run.UsedFallback = true
	return ok("Generated template fallback posts")
}

func (e *Execution) renderFallback() (long, short string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fallback panic: %v", r)
		}
	}()
	sel := e.state.selected
	return e.o.fallback.Generate(e.project.Templates, pipeline.FallbackInput{
		ProjectName: e.project.DisplayName,
		Title:       sel.Title,
		URL:         sel.URL,
		Description: sel.Summary,
		Hashtags:    e.project.Hashtags,
	})
}

// postPlatforms lists the platforms a post is stored for.
func (e *Execution) postPlatforms() []domain.Platform {
	platforms := []domain.Platform{domain.PlatformLinkedIn, domain.PlatformTwitter}
	if e.project.Platforms.Telegram {
		platforms = append(platforms, domain.PlatformTelegram)
	}
	return platforms
}

func (e *Execution) saveStep(ctx context.Context) StepResult {
	e.state.saved = make(map[domain.Platform]domain.GeneratedPost)
	var failed []string
	for _, platform := range e.postPlatforms() {
		content := e.state.long
		if platform.Form() == domain.FormShort {
			content = e.state.short
		}
		post := domain.GeneratedPost{
			RunID:           e.run.ID,
			ProjectID:       e.project.ID,
			Platform:        platform,
			Content:         content,
			ArticleURL:      e.state.selected.URL,
			ArticleTitle:    e.state.selected.Title,
			IsFallback:      e.run.UsedFallback,
			QualityScore:    e.state.quality,
			ValidationNotes: e.state.notes,
		}
		id, err := e.o.repo.InsertPost(ctx, post)
		if err != nil {
			e.logger.Error("save post failed", "platform", platform, "error", err)
			failed = append(failed, string(platform))
			continue
		}
		post.ID = id
		e.state.saved[platform] = post
	}
	if len(failed) > 0 {
		return degraded("Saved %d posts; failed to save: %s", len(e.state.saved), strings.Join(failed, ", "))
	}
	return ok("Saved %d posts", len(e.state.saved))
}

// wants reports whether the run's platform filter admits p.
func (e *Execution) wants(p domain.Platform) bool {
	return len(e.platforms) == 0 || slices.Contains(e.platforms, p)
}

func (e *Execution) publishStep(ctx context.Context) StepResult {
	profiles, err := e.o.repo.ListProfiles(ctx, e.project.ID, true)
	if err != nil {
		return degraded("Could not load publish targets: %v", err)
	}

	var targets []pipeline.Target
	for _, profile := range profiles {
		if !e.project.Platforms.Enabled(profile.Platform) || !e.wants(profile.Platform) {
			continue
		}
		post, saved := e.state.saved[profile.Platform]
		if !saved {
			continue
		}
		targets = append(targets, pipeline.Target{Profile: profile, PostID: post.ID, Content: post.Content})
	}
	e.state.targets = len(targets)
	if len(targets) == 0 {
		return degraded("No active publish targets configured - posts saved but not published")
	}
	if e.o.dispatcher == nil {
		e.state.report = pipeline.DispatchReport{Failed: len(targets)}
		return degraded("No publisher dispatcher configured; %d targets skipped", len(targets))
	}

	report := e.o.dispatcher.Dispatch(ctx, targets)
	e.state.report = report
	for i, res := range report.Results {
		if _, err := e.o.repo.InsertPublishResult(ctx, res); err != nil {
			e.logger.Error("save publish result failed", "error", err)
		}
		name := "publish_" + targets[i].Profile.Label()
		if res.Status == domain.PublishSuccess {
			e.record(name, domain.StepSuccess, "Posted: "+res.PlatformPostID)
		} else {
			e.record(name, domain.StepError, res.Error)
		}
	}
	if report.Failed > 0 {
		return degraded("Published to %d of %d targets", report.Succeeded, len(targets))
	}
	return ok("Published to %d of %d targets", report.Succeeded, len(targets))
}
