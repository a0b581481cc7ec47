package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"SocialPoster/internal/domain"
)

func TestLinkedInPublish(t *testing.T) {
	t.Parallel()

	var got linkedInPost
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/posts" || r.Header.Get("LinkedIn-Version") != "202401" {
			t.Errorf("unexpected request %s %v", r.URL.Path, r.Header)
		}
		if r.Header.Get("Authorization") != "Bearer li-token" {
			t.Errorf("missing token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("x-restli-id", "urn:li:share:42")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	li := NewLinkedIn(LinkedInConfig{APIBase: server.URL})
	id, err := li.Publish(context.Background(), "hello linkedin", domain.Profile{
		Platform: domain.PlatformLinkedIn, AccountType: domain.AccountOrganization, AccessToken: "li-token", PlatformUserID: "1234",
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if id != "urn:li:share:42" {
		t.Fatalf("unexpected id %q", id)
	}
	if got.Author != "urn:li:organization:1234" || got.Commentary != "hello linkedin" || got.LifecycleState != "PUBLISHED" {
		t.Fatalf("unexpected body %+v", got)
	}
}

func TestLinkedInPublishError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"expired"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	li := NewLinkedIn(LinkedInConfig{APIBase: server.URL})
	_, err := li.Publish(context.Background(), "x", domain.Profile{AccessToken: "t", PlatformUserID: "p"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected api error, got %v", err)
	}

	if _, err := li.Publish(context.Background(), "x", domain.Profile{}); err == nil {
		t.Fatalf("expected misconfiguration error")
	}
}

func TestAuthorURN(t *testing.T) {
	t.Parallel()

	if got := AuthorURN(domain.Profile{AccountType: domain.AccountPersonal, PlatformUserID: "abc"}); got != "urn:li:person:abc" {
		t.Fatalf("unexpected urn %s", got)
	}
	if got := AuthorURN(domain.Profile{AccountType: domain.AccountOrganization, PlatformUserID: "urn:li:organization:9"}); got != "urn:li:organization:9" {
		t.Fatalf("unexpected urn %s", got)
	}
}

func TestTwitterPublish(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if r.URL.Path != "/2/tweets" || body["text"] != "short post" {
			t.Errorf("unexpected request %s %v", r.URL.Path, body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"1790","text":"short post"}}`))
	}))
	defer server.Close()

	tw := NewTwitter(TwitterConfig{APIBase: server.URL})
	id, err := tw.Publish(context.Background(), "short post", domain.Profile{AccessToken: "tw"})
	if err != nil || id != "1790" {
		t.Fatalf("unexpected result %q, %v", id, err)
	}
}

func TestTelegramPublish(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botbot-token/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("chat_id") != "@acme" || r.PostForm.Get("text") != "long post" {
			t.Errorf("unexpected form %v (%v)", r.PostForm, err)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":77}}`))
	}))
	defer server.Close()

	tg := NewTelegram(TelegramConfig{APIBase: server.URL, BotToken: "bot-token"})
	id, err := tg.Publish(context.Background(), "long post", domain.Profile{PlatformUserID: "@acme"})
	if err != nil || id != "77" {
		t.Fatalf("unexpected result %q, %v", id, err)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(NewTwitter(TwitterConfig{}), NewTelegram(TelegramConfig{}))
	if p, ok := reg.Publisher(domain.PlatformTwitter); !ok || p.Platform() != domain.PlatformTwitter {
		t.Fatalf("twitter publisher not registered")
	}
	if _, ok := reg.Publisher(domain.PlatformLinkedIn); ok {
		t.Fatalf("linkedin publisher should be absent")
	}
	reg.Register(NewLinkedIn(LinkedInConfig{}))
	if _, ok := reg.Publisher(domain.PlatformLinkedIn); !ok {
		t.Fatalf("linkedin publisher should be registered")
	}
}
