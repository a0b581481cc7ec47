package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

// LinkedInConfig configures the Posts API client.
type LinkedInConfig struct {
	APIBase string
	Version string
}

// LinkedIn publishes to member or organization feeds through the Posts API.
type LinkedIn struct {
	apiBase string
	version string
	client  *http.Client
}

var _ ports.Publisher = (*LinkedIn)(nil)

// NewLinkedIn builds the client.
func NewLinkedIn(cfg LinkedInConfig) *LinkedIn {
	version := strings.TrimSpace(cfg.Version)
	if version == "" {
		version = "202401"
	}
	return &LinkedIn{
		apiBase: baseURL(cfg.APIBase, "https://api.linkedin.com"),
		version: version,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

func (l *LinkedIn) Platform() domain.Platform { return domain.PlatformLinkedIn }

type linkedInDistribution struct {
	FeedDistribution               string   `json:"feedDistribution"`
	TargetEntities                 []string `json:"targetEntities"`
	ThirdPartyDistributionChannels []string `json:"thirdPartyDistributionChannels"`
}

type linkedInPost struct {
	Author                    string               `json:"author"`
	Commentary                string               `json:"commentary"`
	Visibility                string               `json:"visibility"`
	Distribution              linkedInDistribution `json:"distribution"`
	LifecycleState            string               `json:"lifecycleState"`
	IsReshareDisabledByAuthor bool                 `json:"isReshareDisabledByAuthor"`
}

// AuthorURN builds the author of a post from the profile's platform user id.
func AuthorURN(target domain.Profile) string {
	id := strings.TrimSpace(target.PlatformUserID)
	if strings.HasPrefix(id, "urn:li:") {
		return id
	}
	if target.AccountType == domain.AccountOrganization {
		return "urn:li:organization:" + id
	}
	return "urn:li:person:" + id
}

// Publish creates a post and returns the id from the x-restli-id header.
func (l *LinkedIn) Publish(ctx context.Context, content string, target domain.Profile) (string, error) {
	if target.AccessToken == "" || target.PlatformUserID == "" {
		return "", errors.New("linkedin publisher misconfigured: access token and user id required")
	}

	body, err := json.Marshal(linkedInPost{
		Author:     AuthorURN(target),
		Commentary: content,
		Visibility: "PUBLIC",
		Distribution: linkedInDistribution{
			FeedDistribution:               "MAIN_FEED",
			TargetEntities:                 []string{},
			ThirdPartyDistributionChannels: []string{},
		},
		LifecycleState: "PUBLISHED",
	})
	if err != nil {
		return "", fmt.Errorf("marshal linkedin post: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.apiBase+"/rest/posts", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+target.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("LinkedIn-Version", l.version)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", readAPIError(domain.PlatformLinkedIn, resp)
	}
	return resp.Header.Get("x-restli-id"), nil
}
