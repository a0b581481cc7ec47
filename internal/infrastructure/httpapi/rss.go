package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/feeds"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

const rssItemLimit = 50

func (s *Server) handleRSS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := s.repo.GetProject(ctx, chi.URLParam(r, "projectID"))
	if errors.Is(err, ports.ErrNotFound) {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.writeInternal(w, "get project", err)
		return
	}

	posts, err := s.repo.ListPosts(ctx, ports.PostFilter{ProjectID: project.ID, Limit: rssItemLimit})
	if err != nil {
		s.writeInternal(w, "list posts", err)
		return
	}

	rss, err := GeneratePostsFeed(project, posts, s.publicURL, time.Now())
	if err != nil {
		s.writeInternal(w, "generate feed", err)
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	_, _ = w.Write([]byte(rss))
}

// GeneratePostsFeed renders the LinkedIn posts of a project as RSS 2.0, one
// item per run. Posts for other platforms repeat the same article.
func GeneratePostsFeed(project domain.Project, posts []domain.GeneratedPost, baseURL string, now time.Time) (string, error) {
	title := project.DisplayName
	if title == "" {
		title = project.ID
	}
	feed := &feeds.Feed{
		Title:       title + " posts",
		Link:        &feeds.Link{Href: fmt.Sprintf("%s/projects/%s/posts.rss", baseURL, project.ID)},
		Description: project.Description,
		Author:      &feeds.Author{Name: title},
		Created:     now,
	}

	feed.Items = make([]*feeds.Item, 0, len(posts))
	for _, post := range posts {
		if post.Platform != domain.PlatformLinkedIn {
			continue
		}
		itemTitle := post.ArticleTitle
		if itemTitle == "" {
			itemTitle = "Untitled post"
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Title:       itemTitle,
			Link:        &feeds.Link{Href: post.ArticleURL},
			Id:          fmt.Sprintf("%s/api/runs/%d#post-%d", baseURL, post.RunID, post.ID),
			Description: post.Content,
			Created:     post.CreatedAt,
		})
	}

	rss, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("failed to generate RSS: %w", err)
	}
	return rss, nil
}
