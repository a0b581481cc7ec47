package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

// MemoryRepository keeps every record in process memory.
type MemoryRepository struct {
	mu       sync.Mutex
	projects map[string]domain.Project
	profiles []domain.Profile
	articles []domain.Article
	runs     []domain.PipelineRun
	posts    []domain.GeneratedPost
	results  []domain.PublishResult
	now      func() time.Time
}

var _ ports.Repository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{projects: make(map[string]domain.Project), now: time.Now}
}

func (m *MemoryRepository) GetProject(_ context.Context, id string) (domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return domain.Project{}, fmt.Errorf("get project %s: %w", id, ports.ErrNotFound)
	}
	return p, nil
}

func (m *MemoryRepository) ListProjects(_ context.Context, activeOnly bool) ([]domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Project, 0, len(m.projects))
	for _, p := range m.projects {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Project) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out, nil
}

func (m *MemoryRepository) InsertProjectIfAbsent(_ context.Context, p domain.Project) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; ok {
		return false, nil
	}
	now := m.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	m.projects[p.ID] = p
	return true, nil
}

// PutProject inserts or replaces a project.
func (m *MemoryRepository) PutProject(p domain.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
}

func (m *MemoryRepository) ListProfiles(_ context.Context, projectID string, activeOnly bool) ([]domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Profile
	for _, p := range m.profiles {
		if p.ProjectID != projectID || (activeOnly && !p.Active) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *MemoryRepository) InsertProfile(_ context.Context, p domain.Profile) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = int64(len(m.profiles) + 1)
	m.profiles = append(m.profiles, p)
	return p.ID, nil
}

func (m *MemoryRepository) ExistingArticleURLs(_ context.Context, projectID string, urls []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]bool, len(urls))
	for _, u := range urls {
		want[u] = true
	}
	found := make(map[string]bool)
	for _, a := range m.articles {
		if a.ProjectID == projectID && want[a.URL] {
			found[a.URL] = true
		}
	}
	return found, nil
}

func (m *MemoryRepository) InsertArticleIfAbsent(_ context.Context, a domain.Article) (domain.Article, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.articles {
		if existing.ProjectID == a.ProjectID && existing.URL == a.URL {
			return existing, false, nil
		}
	}
	a.ID = int64(len(m.articles) + 1)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = m.now().UTC()
	}
	m.articles = append(m.articles, a)
	return a, true, nil
}

func (m *MemoryRepository) FindArticleByURL(_ context.Context, projectID, url string) (domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.articles {
		if a.ProjectID == projectID && a.URL == url {
			return a, nil
		}
	}
	return domain.Article{}, fmt.Errorf("find article %s: %w", url, ports.ErrNotFound)
}

func (m *MemoryRepository) LatestUnselectedArticle(_ context.Context, projectID string) (domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		best  domain.Article
		found bool
	)
	for _, a := range m.articles {
		if a.ProjectID != projectID || a.Selected {
			continue
		}
		if !found || !a.CreatedAt.Before(best.CreatedAt) {
			best, found = a, true
		}
	}
	if !found {
		return domain.Article{}, fmt.Errorf("latest unselected article for %s: %w", projectID, ports.ErrNotFound)
	}
	return best, nil
}

func (m *MemoryRepository) UpdateArticle(_ context.Context, id int64, update domain.ArticleUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := int(id) - 1
	if idx < 0 || idx >= len(m.articles) {
		return fmt.Errorf("update article %d: %w", id, ports.ErrNotFound)
	}
	a := &m.articles[idx]
	if update.Selected != nil {
		a.Selected = *update.Selected
	}
	if update.RelevanceScore != nil {
		a.RelevanceScore = *update.RelevanceScore
	}
	if update.ContentText != nil {
		a.ContentText = *update.ContentText
	}
	return nil
}

func (m *MemoryRepository) ListArticles(_ context.Context, filter ports.ArticleFilter) ([]domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Article
	for i := len(m.articles) - 1; i >= 0; i-- {
		a := m.articles[i]
		if filter.ProjectID != "" && a.ProjectID != filter.ProjectID {
			continue
		}
		out = append(out, a)
		if len(out) == int(listLimit(filter.Limit)) {
			break
		}
	}
	return out, nil
}

func (m *MemoryRepository) CreateRun(_ context.Context, run domain.PipelineRun) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = int64(len(m.runs) + 1)
	if run.StartedAt.IsZero() {
		run.StartedAt = m.now().UTC()
	}
	run.Log = append([]domain.StepLog(nil), run.Log...)
	m.runs = append(m.runs, run)
	return run.ID, nil
}

func (m *MemoryRepository) UpdateRun(_ context.Context, id int64, update domain.RunUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := int(id) - 1
	if idx < 0 || idx >= len(m.runs) {
		return fmt.Errorf("update run %d: %w", id, ports.ErrNotFound)
	}
	run := &m.runs[idx]
	if update.Status != nil {
		run.Status = *update.Status
	}
	if update.CompletedAt != nil {
		t := *update.CompletedAt
		run.CompletedAt = &t
	}
	if update.ArticlesFetched != nil {
		run.ArticlesFetched = *update.ArticlesFetched
	}
	if update.ArticlesNew != nil {
		run.ArticlesNew = *update.ArticlesNew
	}
	if update.SelectedArticleID != nil {
		run.SelectedArticleID = *update.SelectedArticleID
	}
	if update.ModelUsed != nil {
		run.ModelUsed = *update.ModelUsed
	}
	if update.UsedFallback != nil {
		run.UsedFallback = *update.UsedFallback
	}
	if update.Error != nil {
		run.Error = *update.Error
	}
	if update.Log != nil {
		run.Log = append([]domain.StepLog(nil), update.Log...)
	}
	return nil
}

func (m *MemoryRepository) GetRun(_ context.Context, id int64) (domain.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := int(id) - 1
	if idx < 0 || idx >= len(m.runs) {
		return domain.PipelineRun{}, fmt.Errorf("get run %d: %w", id, ports.ErrNotFound)
	}
	run := m.runs[idx]
	run.Log = append([]domain.StepLog(nil), run.Log...)
	return run, nil
}

func (m *MemoryRepository) ListRuns(_ context.Context, filter ports.RunFilter) ([]domain.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PipelineRun
	for i := len(m.runs) - 1; i >= 0; i-- {
		run := m.runs[i]
		if filter.ProjectID != "" && run.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		if !filter.StartedBefore.IsZero() && !run.StartedAt.Before(filter.StartedBefore) {
			continue
		}
		run.Log = append([]domain.StepLog(nil), run.Log...)
		out = append(out, run)
		if len(out) == int(listLimit(filter.Limit)) {
			break
		}
	}
	return out, nil
}

func (m *MemoryRepository) InsertPost(_ context.Context, p domain.GeneratedPost) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = int64(len(m.posts) + 1)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now().UTC()
	}
	m.posts = append(m.posts, p)
	return p.ID, nil
}

func (m *MemoryRepository) ListPosts(_ context.Context, filter ports.PostFilter) ([]domain.GeneratedPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.GeneratedPost
	for i := len(m.posts) - 1; i >= 0; i-- {
		p := m.posts[i]
		if filter.ProjectID != "" && p.ProjectID != filter.ProjectID {
			continue
		}
		if filter.RunID != 0 && p.RunID != filter.RunID {
			continue
		}
		out = append(out, p)
		if len(out) == int(listLimit(filter.Limit)) {
			break
		}
	}
	return out, nil
}

func (m *MemoryRepository) InsertPublishResult(_ context.Context, res domain.PublishResult) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res.ID = int64(len(m.results) + 1)
	m.results = append(m.results, res)
	return res.ID, nil
}

func (m *MemoryRepository) ListPublishResults(_ context.Context, postID int64) ([]domain.PublishResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PublishResult
	for _, res := range m.results {
		if res.PostID == postID {
			out = append(out, res)
		}
	}
	return out, nil
}
