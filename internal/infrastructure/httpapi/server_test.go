package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/infrastructure/scheduler"
	"SocialPoster/internal/infrastructure/storage"
	"SocialPoster/internal/logging"
	"SocialPoster/internal/usecase"
)

type fakeRunner struct {
	manualErr error
	async     bool
	projects  []string
	platforms [][]domain.Platform
	deadline  bool
}

func (f *fakeRunner) Manual(ctx context.Context, projectID string, platforms []domain.Platform) (usecase.ManualResult, error) {
	_, f.deadline = ctx.Deadline()
	f.projects = append(f.projects, projectID)
	f.platforms = append(f.platforms, platforms)
	if f.manualErr != nil {
		return usecase.ManualResult{}, f.manualErr
	}
	if f.async {
		return usecase.ManualResult{RunID: 7, Async: true}, nil
	}
	run := domain.PipelineRun{ID: 7, ProjectID: projectID, Status: domain.RunSuccess}
	return usecase.ManualResult{RunID: 7, Run: &run}, nil
}

func (f *fakeRunner) CronCheck(context.Context) ([]usecase.CronResult, error) {
	return []usecase.CronResult{{ProjectID: "acme", Action: "ran", RunID: 3}}, nil
}

func (f *fakeRunner) RunNow(ctx context.Context, projectID string, platforms []domain.Platform) (domain.PipelineRun, error) {
	_, f.deadline = ctx.Deadline()
	f.projects = append(f.projects, projectID)
	f.platforms = append(f.platforms, platforms)
	return domain.PipelineRun{ID: 9, ProjectID: projectID, Trigger: domain.TriggerCron, Status: domain.RunSuccess}, nil
}

func newTestServer(t *testing.T, runner Runner, secret string) (*httptest.Server, *storage.MemoryRepository, *scheduler.CronScheduler) {
	t.Helper()
	repo := storage.NewMemoryRepository()
	sched := scheduler.NewCronScheduler(time.UTC, nil, logging.Discard())
	srv := New(ServerDeps{
		Runner:     runner,
		Repository: repo,
		Scheduler:  sched,
		CronSecret: secret,
		PublicURL:  "https://poster.test/",
		Logger:     logging.Discard(),
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, repo, sched
}

func decode(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ts, _, _ := newTestServer(t, &fakeRunner{}, "")
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestTriggerStatusCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		runner *fakeRunner
		body   string
		status int
	}{
		{"sync", &fakeRunner{}, `{"project_id":"acme"}`, http.StatusOK},
		{"async", &fakeRunner{async: true}, `{"project_id":"acme","platforms":["twitter"]}`, http.StatusAccepted},
		{"unknown project", &fakeRunner{manualErr: fmt.Errorf("%w: nope", usecase.ErrProjectNotFound)}, `{"project_id":"nope"}`, http.StatusNotFound},
		{"inactive", &fakeRunner{manualErr: fmt.Errorf("%w: acme", usecase.ErrProjectInactive)}, `{"project_id":"acme"}`, http.StatusConflict},
		{"running", &fakeRunner{manualErr: fmt.Errorf("%w: acme", usecase.ErrRunInProgress)}, `{"project_id":"acme"}`, http.StatusConflict},
		{"missing project", &fakeRunner{}, `{}`, http.StatusBadRequest},
		{"bad platform", &fakeRunner{}, `{"project_id":"acme","platforms":["myspace"]}`, http.StatusBadRequest},
		{"bad json", &fakeRunner{}, `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts, _, _ := newTestServer(t, tt.runner, "")
			resp, err := http.Post(ts.URL+"/api/runs/trigger", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.StatusCode)
			}
		})
	}
}

func TestTriggerPassesPlatforms(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	ts, _, _ := newTestServer(t, runner, "")
	resp, err := http.Post(ts.URL+"/api/runs/trigger", "application/json", strings.NewReader(`{"project_id":"acme","platforms":["LinkedIn"," twitter"]}`))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	var body triggerResponse
	decode(t, resp, &body)
	if body.RunID != 7 || body.Run == nil || body.Run.Status != domain.RunSuccess {
		t.Fatalf("unexpected body %+v", body)
	}
	if runner.deadline {
		t.Fatalf("trigger requests must not carry the read timeout")
	}
	got := runner.platforms[0]
	if len(got) != 2 || got[0] != domain.PlatformLinkedIn || got[1] != domain.PlatformTwitter {
		t.Fatalf("unexpected platforms %v", got)
	}
}

func TestRunEndpoints(t *testing.T) {
	t.Parallel()

	ts, repo, _ := newTestServer(t, &fakeRunner{}, "")
	ctx := context.Background()
	runID, err := repo.CreateRun(ctx, domain.PipelineRun{ProjectID: "acme", Trigger: domain.TriggerManual, Status: domain.RunSuccess, StartedAt: time.Now()})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	postID, err := repo.InsertPost(ctx, domain.GeneratedPost{RunID: runID, ProjectID: "acme", Platform: domain.PlatformLinkedIn, Content: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if _, err := repo.InsertPublishResult(ctx, domain.PublishResult{PostID: postID, Platform: domain.PlatformLinkedIn, Status: domain.PublishSuccess, PlatformPostID: "urn:1"}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	resp, err := http.Get(ts.URL + "/api/runs?project_id=acme&limit=5")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	var list struct {
		Runs []runView `json:"runs"`
	}
	decode(t, resp, &list)
	if len(list.Runs) != 1 || list.Runs[0].ID != runID {
		t.Fatalf("unexpected runs %+v", list.Runs)
	}

	resp, err = http.Get(fmt.Sprintf("%s/api/runs/%d", ts.URL, runID))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	var detail struct {
		Run   runView    `json:"run"`
		Posts []postView `json:"posts"`
	}
	decode(t, resp, &detail)
	if detail.Run.ID != runID || len(detail.Posts) != 1 || len(detail.Posts[0].Results) != 1 {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if detail.Posts[0].Results[0].PlatformPostID != "urn:1" {
		t.Fatalf("unexpected publish result %+v", detail.Posts[0].Results[0])
	}

	for path, status := range map[string]int{"/api/runs/999": http.StatusNotFound, "/api/runs/abc": http.StatusBadRequest} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		resp.Body.Close()
		if resp.StatusCode != status {
			t.Fatalf("%s: expected %d, got %d", path, status, resp.StatusCode)
		}
	}
}

func TestArticleList(t *testing.T) {
	t.Parallel()

	ts, repo, _ := newTestServer(t, &fakeRunner{}, "")
	if _, _, err := repo.InsertArticleIfAbsent(context.Background(), domain.Article{ProjectID: "acme", URL: "https://news.test/a", Title: "A"}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	resp, err := http.Get(ts.URL + "/api/articles?project_id=acme")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	var body struct {
		Articles []articleView `json:"articles"`
	}
	decode(t, resp, &body)
	if len(body.Articles) != 1 || body.Articles[0].URL != "https://news.test/a" {
		t.Fatalf("unexpected articles %+v", body.Articles)
	}
}

func TestCronRoutesRequireSecret(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	ts, _, _ := newTestServer(t, runner, "s3cret")

	call := func(path, token string) *http.Response {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		return resp
	}

	for _, token := range []string{"", "wrong"} {
		resp := call("/api/cron/check", token)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("token %q: expected 401, got %d", token, resp.StatusCode)
		}
	}

	resp := call("/api/cron/check", "s3cret")
	var check struct {
		Results []usecase.CronResult `json:"results"`
	}
	decode(t, resp, &check)
	if len(check.Results) != 1 || check.Results[0].Action != "ran" {
		t.Fatalf("unexpected results %+v", check.Results)
	}

	resp = call("/api/cron/run/acme?platforms=telegram", "s3cret")
	var run struct {
		Run runView `json:"run"`
	}
	decode(t, resp, &run)
	if run.Run.ID != 9 || run.Run.Trigger != domain.TriggerCron {
		t.Fatalf("unexpected run %+v", run.Run)
	}
	if runner.deadline {
		t.Fatalf("cron runs must not carry the read timeout")
	}
	last := runner.platforms[len(runner.platforms)-1]
	if len(last) != 1 || last[0] != domain.PlatformTelegram {
		t.Fatalf("unexpected platforms %v", last)
	}
}

func TestSchedulerRoutes(t *testing.T) {
	t.Parallel()

	ts, _, sched := newTestServer(t, &fakeRunner{}, "")
	if err := sched.Schedule("acme", []domain.ScheduleEntry{{Cron: "0 9 * * *"}}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	resp, err := http.Post(ts.URL+"/api/scheduler/pause/acme", "application/json", nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/scheduler/jobs")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	var jobs struct {
		Jobs []struct {
			ID     string `json:"id"`
			Paused bool   `json:"paused"`
		} `json:"jobs"`
	}
	decode(t, resp, &jobs)
	if len(jobs.Jobs) != 1 || jobs.Jobs[0].ID != "pipeline_acme" || !jobs.Jobs[0].Paused {
		t.Fatalf("unexpected jobs %+v", jobs.Jobs)
	}

	resp, err = http.Post(ts.URL+"/api/scheduler/resume/unknown", "application/json", nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestPostsFeed(t *testing.T) {
	t.Parallel()

	ts, repo, _ := newTestServer(t, &fakeRunner{}, "")
	repo.PutProject(domain.Project{ID: "acme", DisplayName: "Acme", Active: true})
	ctx := context.Background()
	for _, platform := range []domain.Platform{domain.PlatformLinkedIn, domain.PlatformTwitter} {
		_, err := repo.InsertPost(ctx, domain.GeneratedPost{
			RunID:        1,
			ProjectID:    "acme",
			Platform:     platform,
			Content:      "Content for " + string(platform),
			ArticleURL:   "https://news.test/story",
			ArticleTitle: "Big story",
		})
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
	}

	resp, err := http.Get(ts.URL + "/projects/acme/posts.rss")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/rss+xml") {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	body := string(raw)
	if !strings.Contains(body, "Acme posts") || !strings.Contains(body, "Content for linkedin") {
		t.Fatalf("feed missing expected content:\n%s", body)
	}
	if strings.Contains(body, "Content for twitter") {
		t.Fatalf("feed must only carry long-form posts")
	}

	missing, err := http.Get(ts.URL + "/projects/nope/posts.rss")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.StatusCode)
	}
}
