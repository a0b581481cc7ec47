package domain

import "time"

// Candidate is an unpersisted article fetched during a single run.
type Candidate struct {
	URL         string
	OriginalURL string
	Title       string
	Summary     string
	SourceFeed  string
	PublishedAt time.Time
	Score       float64

	// ArticleID links the candidate to its stored row once deduplication persisted it.
	ArticleID int64
}

// Article is the stored record of a distinct URL per project.
type Article struct {
	ID             int64
	ProjectID      string
	URL            string
	OriginalURL    string
	Title          string
	SourceFeed     string
	Summary        string
	PublishedAt    *time.Time
	RelevanceScore float64
	Selected       bool
	ContentText    string
	FetchRunID     int64
	CreatedAt      time.Time
}

// ArticleUpdate names the article fields to overwrite; nil fields are left untouched.
type ArticleUpdate struct {
	Selected       *bool
	RelevanceScore *float64
	ContentText    *string
}

// ToCandidate turns a stored article back into a pipeline candidate.
func (a Article) ToCandidate() Candidate {
	c := Candidate{
		URL:         a.URL,
		OriginalURL: a.OriginalURL,
		Title:       a.Title,
		Summary:     a.Summary,
		SourceFeed:  a.SourceFeed,
		ArticleID:   a.ID,
	}
	if c.OriginalURL == "" {
		c.OriginalURL = a.URL
	}
	if a.PublishedAt != nil {
		c.PublishedAt = *a.PublishedAt
	}
	return c
}
