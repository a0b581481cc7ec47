package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

// TwitterConfig configures the X API v2 client.
type TwitterConfig struct {
	APIBase string
}

// Twitter posts tweets with the OAuth2 user token stored on the profile.
type Twitter struct {
	apiBase string
	client  *http.Client
}

var _ ports.Publisher = (*Twitter)(nil)

// NewTwitter builds the client.
func NewTwitter(cfg TwitterConfig) *Twitter {
	return &Twitter{
		apiBase: baseURL(cfg.APIBase, "https://api.twitter.com"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

func (t *Twitter) Platform() domain.Platform { return domain.PlatformTwitter }

// Publish creates a tweet and returns its id.
func (t *Twitter) Publish(ctx context.Context, content string, target domain.Profile) (string, error) {
	if target.AccessToken == "" {
		return "", errors.New("twitter publisher misconfigured: access token required")
	}

	body, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return "", fmt.Errorf("marshal tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiBase+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+target.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", readAPIError(domain.PlatformTwitter, resp)
	}

	var decoded struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode tweet response: %w", err)
	}
	if decoded.Data.ID == "" {
		return "", errors.New("tweet response carried no id")
	}
	return decoded.Data.ID, nil
}
