package ports

import (
	"context"
	"errors"
	"time"

	"SocialPoster/internal/domain"
)

// ErrNotFound is returned by repositories when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ProjectRepository reads and seeds tenant configuration.
type ProjectRepository interface {
	GetProject(ctx context.Context, id string) (domain.Project, error)
	ListProjects(ctx context.Context, activeOnly bool) ([]domain.Project, error)
	InsertProjectIfAbsent(ctx context.Context, project domain.Project) (bool, error)
}

// ProfileRepository stores publish targets.
type ProfileRepository interface {
	ListProfiles(ctx context.Context, projectID string, activeOnly bool) ([]domain.Profile, error)
	InsertProfile(ctx context.Context, profile domain.Profile) (int64, error)
}

// ArticleFilter narrows article listings.
type ArticleFilter struct {
	ProjectID string
	Limit     int
}

// ArticleRepository persists distinct article URLs per project.
type ArticleRepository interface {
	ExistingArticleURLs(ctx context.Context, projectID string, urls []string) (map[string]bool, error)
	InsertArticleIfAbsent(ctx context.Context, article domain.Article) (domain.Article, bool, error)
	FindArticleByURL(ctx context.Context, projectID, url string) (domain.Article, error)
	LatestUnselectedArticle(ctx context.Context, projectID string) (domain.Article, error)
	UpdateArticle(ctx context.Context, id int64, update domain.ArticleUpdate) error
	ListArticles(ctx context.Context, filter ArticleFilter) ([]domain.Article, error)
}

// RunFilter narrows run listings.
type RunFilter struct {
	ProjectID     string
	Status        domain.RunStatus
	StartedBefore time.Time
	Limit         int
}

// RunRepository stores pipeline run audit records.
type RunRepository interface {
	CreateRun(ctx context.Context, run domain.PipelineRun) (int64, error)
	UpdateRun(ctx context.Context, id int64, update domain.RunUpdate) error
	GetRun(ctx context.Context, id int64) (domain.PipelineRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]domain.PipelineRun, error)
}

// PostFilter narrows generated post listings.
type PostFilter struct {
	ProjectID string
	RunID     int64
	Limit     int
}

// PostRepository stores generated posts and their delivery attempts.
type PostRepository interface {
	InsertPost(ctx context.Context, post domain.GeneratedPost) (int64, error)
	ListPosts(ctx context.Context, filter PostFilter) ([]domain.GeneratedPost, error)
	InsertPublishResult(ctx context.Context, result domain.PublishResult) (int64, error)
	ListPublishResults(ctx context.Context, postID int64) ([]domain.PublishResult, error)
}

// Repository bundles every persistence port behind one backend.
type Repository interface {
	ProjectRepository
	ProfileRepository
	ArticleRepository
	RunRepository
	PostRepository
}

// CompletionClient sends one chat completion request to an AI provider.
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt, model string) (string, error)
}

// Publisher delivers content to one platform and returns the platform post id.
type Publisher interface {
	Platform() domain.Platform
	Publish(ctx context.Context, content string, target domain.Profile) (string, error)
}

// PublisherRegistry resolves the publisher serving a platform.
type PublisherRegistry interface {
	Publisher(platform domain.Platform) (Publisher, bool)
}

// JobInfo describes one registered scheduler job.
type JobInfo struct {
	ID        string            `json:"id"`
	ProjectID string            `json:"project_id"`
	Spec      string            `json:"cron"`
	Platforms []domain.Platform `json:"platforms,omitempty"`
	Next      *time.Time        `json:"next_run,omitempty"`
	Paused    bool              `json:"paused"`
}

// Scheduler controls when project pipelines execute.
type Scheduler interface {
	Schedule(projectID string, entries []domain.ScheduleEntry) error
	Remove(projectID string)
	Pause(projectID string) error
	Resume(projectID string) error
	ListJobs() []JobInfo
	NextRun(projectID string) (time.Time, bool)
	Start()
	Stop(ctx context.Context) error
}
