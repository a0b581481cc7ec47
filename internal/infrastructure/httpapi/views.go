package httpapi

import (
	"time"

	"SocialPoster/internal/domain"
)

type runView struct {
	ID                int64              `json:"id"`
	ProjectID         string             `json:"project_id"`
	Trigger           domain.TriggerType `json:"trigger_type"`
	Status            domain.RunStatus   `json:"status"`
	StartedAt         time.Time          `json:"started_at"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty"`
	ArticlesFetched   int                `json:"articles_fetched"`
	ArticlesNew       int                `json:"articles_new"`
	SelectedArticleID int64              `json:"selected_article_id,omitempty"`
	ModelUsed         string             `json:"ai_model_used,omitempty"`
	UsedFallback      bool               `json:"used_fallback"`
	Error             string             `json:"error_message,omitempty"`
	Log               []domain.StepLog   `json:"log_details"`
}

func toRunView(r domain.PipelineRun) runView {
	log := r.Log
	if log == nil {
		log = []domain.StepLog{}
	}
	return runView{
		ID:                r.ID,
		ProjectID:         r.ProjectID,
		Trigger:           r.Trigger,
		Status:            r.Status,
		StartedAt:         r.StartedAt,
		CompletedAt:       r.CompletedAt,
		ArticlesFetched:   r.ArticlesFetched,
		ArticlesNew:       r.ArticlesNew,
		SelectedArticleID: r.SelectedArticleID,
		ModelUsed:         r.ModelUsed,
		UsedFallback:      r.UsedFallback,
		Error:             r.Error,
		Log:               log,
	}
}

type publishView struct {
	ID             int64                `json:"id"`
	ProfileID      int64                `json:"profile_id"`
	Platform       domain.Platform      `json:"platform"`
	AccountType    domain.AccountType   `json:"account_type"`
	Status         domain.PublishStatus `json:"status"`
	PlatformPostID string               `json:"platform_post_id,omitempty"`
	Error          string               `json:"error_message,omitempty"`
	PostedAt       *time.Time           `json:"posted_at,omitempty"`
}

type postView struct {
	ID              int64           `json:"id"`
	Platform        domain.Platform `json:"platform"`
	Content         string          `json:"content"`
	ArticleURL      string          `json:"article_url"`
	ArticleTitle    string          `json:"article_title"`
	IsFallback      bool            `json:"is_fallback"`
	QualityScore    float64         `json:"quality_score"`
	ValidationNotes string          `json:"validation_notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Results         []publishView   `json:"publish_results"`
}

func toPostView(p domain.GeneratedPost, results []domain.PublishResult) postView {
	view := postView{
		ID:              p.ID,
		Platform:        p.Platform,
		Content:         p.Content,
		ArticleURL:      p.ArticleURL,
		ArticleTitle:    p.ArticleTitle,
		IsFallback:      p.IsFallback,
		QualityScore:    p.QualityScore,
		ValidationNotes: p.ValidationNotes,
		CreatedAt:       p.CreatedAt,
		Results:         make([]publishView, 0, len(results)),
	}
	for _, r := range results {
		view.Results = append(view.Results, publishView{
			ID:             r.ID,
			ProfileID:      r.ProfileID,
			Platform:       r.Platform,
			AccountType:    r.AccountType,
			Status:         r.Status,
			PlatformPostID: r.PlatformPostID,
			Error:          r.Error,
			PostedAt:       r.PostedAt,
		})
	}
	return view
}

type articleView struct {
	ID             int64      `json:"id"`
	ProjectID      string     `json:"project_id"`
	URL            string     `json:"url"`
	OriginalURL    string     `json:"original_url,omitempty"`
	Title          string     `json:"title"`
	SourceFeed     string     `json:"source_feed,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	RelevanceScore float64    `json:"relevance_score"`
	Selected       bool       `json:"selected"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toArticleView(a domain.Article) articleView {
	return articleView{
		ID:             a.ID,
		ProjectID:      a.ProjectID,
		URL:            a.URL,
		OriginalURL:    a.OriginalURL,
		Title:          a.Title,
		SourceFeed:     a.SourceFeed,
		PublishedAt:    a.PublishedAt,
		RelevanceScore: a.RelevanceScore,
		Selected:       a.Selected,
		CreatedAt:      a.CreatedAt,
	}
}

type triggerRequest struct {
	ProjectID string   `json:"project_id"`
	Platforms []string `json:"platforms"`
}

type triggerResponse struct {
	RunID int64    `json:"run_id"`
	Async bool     `json:"async"`
	Run   *runView `json:"run,omitempty"`
}
