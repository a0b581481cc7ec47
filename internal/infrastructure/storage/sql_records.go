package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

const (
	urlLookupBatch   = 100
	defaultListLimit = 50
)

var articleColumns = []string{
	"id", "project_id", "url", "original_url", "title", "source_feed", "summary", "published_at",
	"relevance_score", "selected", "content_text", "fetch_run_id", "created_at",
}

func scanArticle(row rowScanner) (domain.Article, error) {
	var (
		a                  domain.Article
		published, created dbTime
	)
	err := row.Scan(&a.ID, &a.ProjectID, &a.URL, &a.OriginalURL, &a.Title, &a.SourceFeed, &a.Summary,
		&published, &a.RelevanceScore, &a.Selected, &a.ContentText, &a.FetchRunID, &created)
	if err != nil {
		return domain.Article{}, err
	}
	a.PublishedAt = published.ptr()
	a.CreatedAt = created.Time
	return a, nil
}

// ExistingArticleURLs reports which of urls are already stored for the project.
func (r *SQLRepository) ExistingArticleURLs(ctx context.Context, projectID string, urls []string) (map[string]bool, error) {
	result := make(map[string]bool, len(urls))
	for start := 0; start < len(urls); start += urlLookupBatch {
		end := min(start+urlLookupBatch, len(urls))
		query, args, err := r.sb.Select("url").From("articles").
			Where(sq.Eq{"project_id": projectID, "url": urls[start:end]}).ToSql()
		if err != nil {
			return nil, fmt.Errorf("build url lookup: %w", err)
		}
		if err := r.collectURLs(ctx, query, args, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *SQLRepository) collectURLs(ctx context.Context, query string, args []any, into map[string]bool) error {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query urls: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return fmt.Errorf("scan url: %w", err)
		}
		into[u] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows iteration: %w", err)
	}
	return nil
}

// InsertArticleIfAbsent stores the article unless (project, url) exists and
// returns the stored row together with whether it was created.
func (r *SQLRepository) InsertArticleIfAbsent(ctx context.Context, a domain.Article) (domain.Article, bool, error) {
	created := a.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	query, args, err := r.sb.Insert("articles").Columns(articleColumns[1:]...).Values(
		a.ProjectID, a.URL, a.OriginalURL, a.Title, a.SourceFeed, a.Summary, r.nullTimeArg(a.PublishedAt),
		a.RelevanceScore, a.Selected, a.ContentText, a.FetchRunID, r.timeArg(created),
	).Suffix("ON CONFLICT (project_id, url) DO NOTHING RETURNING id").ToSql()
	if err != nil {
		return domain.Article{}, false, fmt.Errorf("build article insert: %w", err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		existing, findErr := r.FindArticleByURL(ctx, a.ProjectID, a.URL)
		if findErr != nil {
			return domain.Article{}, false, findErr
		}
		return existing, false, nil
	}
	if err != nil {
		return domain.Article{}, false, fmt.Errorf("insert article %s: %w", a.URL, err)
	}
	a.ID = id
	a.CreatedAt = created.UTC()
	return a, true, nil
}

// FindArticleByURL loads the article stored for (project, url).
func (r *SQLRepository) FindArticleByURL(ctx context.Context, projectID, url string) (domain.Article, error) {
	query, args, err := r.sb.Select(articleColumns...).From("articles").
		Where(sq.Eq{"project_id": projectID, "url": url}).ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build article query: %w", err)
	}
	a, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return domain.Article{}, notFound(err, "find article %s", url)
	}
	return a, nil
}

// LatestUnselectedArticle returns the newest stored article never chosen for a post.
func (r *SQLRepository) LatestUnselectedArticle(ctx context.Context, projectID string) (domain.Article, error) {
	query, args, err := r.sb.Select(articleColumns...).From("articles").
		Where(sq.Eq{"project_id": projectID, "selected": false}).
		OrderBy("created_at DESC", "id DESC").Limit(1).ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build article query: %w", err)
	}
	a, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return domain.Article{}, notFound(err, "latest unselected article for %s", projectID)
	}
	return a, nil
}

// UpdateArticle writes the non-nil fields of update.
func (r *SQLRepository) UpdateArticle(ctx context.Context, id int64, update domain.ArticleUpdate) error {
	q := r.sb.Update("articles").Where(sq.Eq{"id": id})
	changed := false
	if update.Selected != nil {
		q, changed = q.Set("selected", *update.Selected), true
	}
	if update.RelevanceScore != nil {
		q, changed = q.Set("relevance_score", *update.RelevanceScore), true
	}
	if update.ContentText != nil {
		q, changed = q.Set("content_text", *update.ContentText), true
	}
	if !changed {
		return nil
	}
	return r.execUpdate(ctx, q, "article", id)
}

// ListArticles returns the newest stored articles.
func (r *SQLRepository) ListArticles(ctx context.Context, filter ports.ArticleFilter) ([]domain.Article, error) {
	q := r.sb.Select(articleColumns...).From("articles").OrderBy("created_at DESC", "id DESC").Limit(listLimit(filter.Limit))
	if filter.ProjectID != "" {
		q = q.Where(sq.Eq{"project_id": filter.ProjectID})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build articles query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var out []domain.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

var runColumns = []string{
	"id", "project_id", "trigger_type", "status", "started_at", "completed_at", "articles_fetched",
	"articles_new", "selected_article_id", "model_used", "used_fallback", "error_message", "log_details",
}

func scanRun(row rowScanner) (domain.PipelineRun, error) {
	var (
		run                domain.PipelineRun
		started, completed dbTime
		selected           sql.NullInt64
		logDetails         string
	)
	err := row.Scan(&run.ID, &run.ProjectID, &run.Trigger, &run.Status, &started, &completed,
		&run.ArticlesFetched, &run.ArticlesNew, &selected, &run.ModelUsed, &run.UsedFallback,
		&run.Error, &logDetails)
	if err != nil {
		return domain.PipelineRun{}, err
	}
	run.StartedAt = started.Time
	run.CompletedAt = completed.ptr()
	run.SelectedArticleID = selected.Int64
	if err := fromJSON(logDetails, &run.Log); err != nil {
		return domain.PipelineRun{}, fmt.Errorf("decode run %d log: %w", run.ID, err)
	}
	return run, nil
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// CreateRun inserts the run record and returns its id.
func (r *SQLRepository) CreateRun(ctx context.Context, run domain.PipelineRun) (int64, error) {
	logDetails, err := toJSON(stepLog(run.Log))
	if err != nil {
		return 0, fmt.Errorf("encode run log: %w", err)
	}
	started := run.StartedAt
	if started.IsZero() {
		started = r.now()
	}
	query, args, err := r.sb.Insert("pipeline_runs").Columns(runColumns[1:]...).Values(
		run.ProjectID, string(run.Trigger), string(run.Status), r.timeArg(started), r.nullTimeArg(run.CompletedAt),
		run.ArticlesFetched, run.ArticlesNew, nullID(run.SelectedArticleID), run.ModelUsed, run.UsedFallback,
		run.Error, logDetails,
	).Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build run insert: %w", err)
	}
	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// UpdateRun writes the non-nil fields of update; a non-nil Log replaces the stored log.
func (r *SQLRepository) UpdateRun(ctx context.Context, id int64, update domain.RunUpdate) error {
	q := r.sb.Update("pipeline_runs").Where(sq.Eq{"id": id})
	changed := false
	if update.Status != nil {
		q, changed = q.Set("status", string(*update.Status)), true
	}
	if update.CompletedAt != nil {
		q, changed = q.Set("completed_at", r.timeArg(*update.CompletedAt)), true
	}
	if update.ArticlesFetched != nil {
		q, changed = q.Set("articles_fetched", *update.ArticlesFetched), true
	}
	if update.ArticlesNew != nil {
		q, changed = q.Set("articles_new", *update.ArticlesNew), true
	}
	if update.SelectedArticleID != nil {
		q, changed = q.Set("selected_article_id", nullID(*update.SelectedArticleID)), true
	}
	if update.ModelUsed != nil {
		q, changed = q.Set("model_used", *update.ModelUsed), true
	}
	if update.UsedFallback != nil {
		q, changed = q.Set("used_fallback", *update.UsedFallback), true
	}
	if update.Error != nil {
		q, changed = q.Set("error_message", *update.Error), true
	}
	if update.Log != nil {
		logDetails, err := toJSON(update.Log)
		if err != nil {
			return fmt.Errorf("encode run log: %w", err)
		}
		q, changed = q.Set("log_details", logDetails), true
	}
	if !changed {
		return nil
	}
	return r.execUpdate(ctx, q, "run", id)
}

// GetRun loads one run by id.
func (r *SQLRepository) GetRun(ctx context.Context, id int64) (domain.PipelineRun, error) {
	query, args, err := r.sb.Select(runColumns...).From("pipeline_runs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("build run query: %w", err)
	}
	run, err := scanRun(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return domain.PipelineRun{}, notFound(err, "get run %d", id)
	}
	return run, nil
}

// ListRuns returns runs matching filter, newest first.
func (r *SQLRepository) ListRuns(ctx context.Context, filter ports.RunFilter) ([]domain.PipelineRun, error) {
	q := r.sb.Select(runColumns...).From("pipeline_runs").OrderBy("started_at DESC", "id DESC").Limit(listLimit(filter.Limit))
	if filter.ProjectID != "" {
		q = q.Where(sq.Eq{"project_id": filter.ProjectID})
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": string(filter.Status)})
	}
	if !filter.StartedBefore.IsZero() {
		q = q.Where(sq.Lt{"started_at": r.timeArg(filter.StartedBefore)})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build runs query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []domain.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

var postColumns = []string{
	"id", "run_id", "project_id", "platform", "content", "article_url", "article_title",
	"is_fallback", "quality_score", "validation_notes", "created_at",
}

// InsertPost stores a generated post.
func (r *SQLRepository) InsertPost(ctx context.Context, p domain.GeneratedPost) (int64, error) {
	created := p.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	query, args, err := r.sb.Insert("generated_posts").Columns(postColumns[1:]...).Values(
		p.RunID, p.ProjectID, string(p.Platform), p.Content, p.ArticleURL, p.ArticleTitle,
		p.IsFallback, p.QualityScore, p.ValidationNotes, r.timeArg(created),
	).Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build post insert: %w", err)
	}
	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert post: %w", err)
	}
	return id, nil
}

// ListPosts returns generated posts, newest first.
func (r *SQLRepository) ListPosts(ctx context.Context, filter ports.PostFilter) ([]domain.GeneratedPost, error) {
	q := r.sb.Select(postColumns...).From("generated_posts").OrderBy("created_at DESC", "id DESC").Limit(listLimit(filter.Limit))
	if filter.ProjectID != "" {
		q = q.Where(sq.Eq{"project_id": filter.ProjectID})
	}
	if filter.RunID != 0 {
		q = q.Where(sq.Eq{"run_id": filter.RunID})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build posts query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var out []domain.GeneratedPost
	for rows.Next() {
		var (
			p       domain.GeneratedPost
			created dbTime
		)
		if err := rows.Scan(&p.ID, &p.RunID, &p.ProjectID, &p.Platform, &p.Content, &p.ArticleURL,
			&p.ArticleTitle, &p.IsFallback, &p.QualityScore, &p.ValidationNotes, &created); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.CreatedAt = created.Time
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

var publishColumns = []string{
	"id", "post_id", "profile_id", "platform", "account_type", "status", "platform_post_id", "error_message", "posted_at",
}

// InsertPublishResult stores one delivery attempt.
func (r *SQLRepository) InsertPublishResult(ctx context.Context, res domain.PublishResult) (int64, error) {
	query, args, err := r.sb.Insert("publish_results").Columns(publishColumns[1:]...).Values(
		res.PostID, res.ProfileID, string(res.Platform), string(res.AccountType), string(res.Status),
		res.PlatformPostID, res.Error, r.nullTimeArg(res.PostedAt),
	).Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build publish result insert: %w", err)
	}
	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert publish result: %w", err)
	}
	return id, nil
}

// ListPublishResults returns the delivery attempts of a post in insertion order.
func (r *SQLRepository) ListPublishResults(ctx context.Context, postID int64) ([]domain.PublishResult, error) {
	query, args, err := r.sb.Select(publishColumns...).From("publish_results").
		Where(sq.Eq{"post_id": postID}).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build publish results query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query publish results: %w", err)
	}
	defer rows.Close()

	var out []domain.PublishResult
	for rows.Next() {
		var (
			res    domain.PublishResult
			posted dbTime
		)
		if err := rows.Scan(&res.ID, &res.PostID, &res.ProfileID, &res.Platform, &res.AccountType,
			&res.Status, &res.PlatformPostID, &res.Error, &posted); err != nil {
			return nil, fmt.Errorf("scan publish result: %w", err)
		}
		res.PostedAt = posted.ptr()
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) execUpdate(ctx context.Context, q sq.UpdateBuilder, kind string, id int64) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build %s update: %w", kind, err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s %d: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update %s %d: %w", kind, id, ports.ErrNotFound)
	}
	return nil
}

func listLimit(limit int) uint64 {
	if limit <= 0 {
		return defaultListLimit
	}
	return uint64(limit)
}

func stepLog(entries []domain.StepLog) []domain.StepLog {
	if entries == nil {
		return []domain.StepLog{}
	}
	return entries
}
