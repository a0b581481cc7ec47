package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

// TelegramConfig configures the bot used to post into channels.
type TelegramConfig struct {
	APIBase  string
	BotToken string
}

// Telegram posts messages to the chat id stored in the target profile.
type Telegram struct {
	apiBase  string
	botToken string
	client   *http.Client
}

var _ ports.Publisher = (*Telegram)(nil)

// NewTelegram registers the bot token.
func NewTelegram(cfg TelegramConfig) *Telegram {
	return &Telegram{
		apiBase:  baseURL(cfg.APIBase, "https://api.telegram.org"),
		botToken: cfg.BotToken,
		client:   &http.Client{Timeout: defaultTimeout},
	}
}

func (t *Telegram) Platform() domain.Platform { return domain.PlatformTelegram }

// Publish sends content via sendMessage and returns the message id.
func (t *Telegram) Publish(ctx context.Context, content string, target domain.Profile) (string, error) {
	token := t.botToken
	if target.AccessToken != "" {
		token = target.AccessToken
	}
	if token == "" || target.PlatformUserID == "" {
		return "", errors.New("telegram publisher misconfigured: bot token and chat id required")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, token)
	form := url.Values{}
	form.Set("chat_id", target.PlatformUserID)
	form.Set("text", content)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", readAPIError(domain.PlatformTelegram, resp)
	}

	var decoded struct {
		OK     bool `json:"ok"`
		Result struct {
			MessageID int64 `json:"message_id"`
		} `json:"result"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode telegram response: %w", err)
	}
	if !decoded.OK {
		return "", fmt.Errorf("telegram rejected message: %s", decoded.Description)
	}
	return strconv.FormatInt(decoded.Result.MessageID, 10), nil
}
