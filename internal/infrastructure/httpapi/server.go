package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/infrastructure/scheduler"
	"SocialPoster/internal/ports"
	"SocialPoster/internal/usecase"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
	requestTimeout   = 60 * time.Second
)

// Runner starts pipeline runs; implemented by usecase.Trigger.
type Runner interface {
	Manual(ctx context.Context, projectID string, platforms []domain.Platform) (usecase.ManualResult, error)
	CronCheck(ctx context.Context) ([]usecase.CronResult, error)
	RunNow(ctx context.Context, projectID string, platforms []domain.Platform) (domain.PipelineRun, error)
}

// ServerDeps wires the HTTP surface.
type ServerDeps struct {
	Runner     Runner
	Repository ports.Repository
	// Scheduler is optional; scheduler routes answer 503 without it.
	Scheduler ports.Scheduler
	// CronSecret guards the cron routes with a bearer token when set.
	CronSecret string
	// PublicURL is the external base URL used for RSS links.
	PublicURL string
	Logger    *slog.Logger
}

// Server exposes triggers, run history and the posts feed over HTTP.
type Server struct {
	router     *chi.Mux
	runner     Runner
	repo       ports.Repository
	scheduler  ports.Scheduler
	cronSecret string
	publicURL  string
	logger     *slog.Logger
}

// New creates a server with every route registered.
func New(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:     chi.NewRouter(),
		runner:     deps.Runner,
		repo:       deps.Repository,
		scheduler:  deps.Scheduler,
		cronSecret: deps.CronSecret,
		publicURL:  strings.TrimRight(deps.PublicURL, "/"),
		logger:     logger.With("component", "http"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	s.router.Route("/api", func(r chi.Router) {
		// Run triggers block for a whole pipeline run and carry no deadline.
		r.Post("/runs/trigger", s.handleTrigger)
		r.Group(func(r chi.Router) {
			r.Use(s.requireCronSecret)
			r.Get("/cron/check", s.handleCronCheck)
			r.Get("/cron/run/{projectID}", s.handleCronRun)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Get("/runs", s.handleRunList)
			r.Get("/runs/{id}", s.handleRunDetail)
			r.Get("/articles", s.handleArticleList)
			r.Get("/scheduler/jobs", s.handleJobs)
			r.Post("/scheduler/pause/{projectID}", s.handlePause)
			r.Post("/scheduler/resume/{projectID}", s.handleResume)
		})
	})

	s.router.With(middleware.Timeout(requestTimeout)).Get("/projects/{projectID}/posts.rss", s.handleRSS)
}

// Router returns the chi router.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		s.logger.Info("http server stopped")
		return nil
	}
}

func (s *Server) requireCronSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cronSecret != "" {
			token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !found || subtle.ConstantTimeCompare([]byte(token), []byte(s.cronSecret)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ProjectID) == "" {
		writeError(w, http.StatusBadRequest, "project_id is required")
		return
	}
	platforms, err := domain.ParsePlatforms(req.Platforms...)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.runner.Manual(r.Context(), req.ProjectID, platforms)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	resp := triggerResponse{RunID: res.RunID, Async: res.Async}
	status := http.StatusAccepted
	if res.Run != nil {
		view := toRunView(*res.Run)
		resp.Run = &view
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleRunList(w http.ResponseWriter, r *http.Request) {
	filter := ports.RunFilter{
		ProjectID: r.URL.Query().Get("project_id"),
		Status:    domain.RunStatus(r.URL.Query().Get("status")),
		Limit:     queryLimit(r),
	}
	runs, err := s.repo.ListRuns(r.Context(), filter)
	if err != nil {
		s.writeInternal(w, "list runs", err)
		return
	}
	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		views = append(views, toRunView(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": views})
}

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	ctx := r.Context()
	run, err := s.repo.GetRun(ctx, id)
	if errors.Is(err, ports.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.writeInternal(w, "get run", err)
		return
	}

	posts, err := s.repo.ListPosts(ctx, ports.PostFilter{RunID: id, Limit: maxListLimit})
	if err != nil {
		s.writeInternal(w, "list posts", err)
		return
	}
	postViews := make([]postView, 0, len(posts))
	for _, post := range posts {
		results, err := s.repo.ListPublishResults(ctx, post.ID)
		if err != nil {
			s.writeInternal(w, "list publish results", err)
			return
		}
		postViews = append(postViews, toPostView(post, results))
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": toRunView(run), "posts": postViews})
}

func (s *Server) handleArticleList(w http.ResponseWriter, r *http.Request) {
	articles, err := s.repo.ListArticles(r.Context(), ports.ArticleFilter{
		ProjectID: r.URL.Query().Get("project_id"),
		Limit:     queryLimit(r),
	})
	if err != nil {
		s.writeInternal(w, "list articles", err)
		return
	}
	views := make([]articleView, 0, len(articles))
	for _, a := range articles {
		views = append(views, toArticleView(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": views})
}

func (s *Server) handleCronCheck(w http.ResponseWriter, r *http.Request) {
	results, err := s.runner.CronCheck(r.Context())
	if err != nil {
		s.writeInternal(w, "cron check", err)
		return
	}
	if results == nil {
		results = []usecase.CronResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleCronRun(w http.ResponseWriter, r *http.Request) {
	platforms, err := domain.ParsePlatforms(r.URL.Query().Get("platforms"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	run, err := s.runner.RunNow(r.Context(), chi.URLParam(r, "projectID"), platforms)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": toRunView(run)})
}

func (s *Server) handleJobs(w http.ResponseWriter, _ *http.Request) {
	if s.scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not running")
		return
	}
	jobs := s.scheduler.ListJobs()
	if jobs == nil {
		jobs = []ports.JobInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.setPaused(w, r, true)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.setPaused(w, r, false)
}

func (s *Server) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	if s.scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not running")
		return
	}
	projectID := chi.URLParam(r, "projectID")
	var err error
	if paused {
		err = s.scheduler.Pause(projectID)
	} else {
		err = s.scheduler.Resume(projectID)
	}
	if errors.Is(err, scheduler.ErrNoJobs) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeInternal(w, "update jobs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project_id": projectID, "paused": paused})
}

// writeRunError maps pre-run validation errors to client statuses.
func (s *Server) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrProjectNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, usecase.ErrProjectInactive), errors.Is(err, usecase.ErrRunInProgress):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeInternal(w, "start run", err)
	}
}

func (s *Server) writeInternal(w http.ResponseWriter, op string, err error) {
	s.logger.Error("request failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, fmt.Sprintf("%s failed", op))
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
