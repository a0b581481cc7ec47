package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/logging"
	"SocialPoster/internal/pipeline"
	"SocialPoster/internal/ports"
)

var (
	// ErrProjectNotFound is returned before a run starts when the project is unknown.
	ErrProjectNotFound = errors.New("project not found")
	// ErrProjectInactive is returned before a run starts when the project is disabled.
	ErrProjectInactive = errors.New("project is inactive")
	// ErrRunInProgress is returned when the project already has a running pipeline.
	ErrRunInProgress = errors.New("pipeline already running for project")
)

// Terminal run errors.
const (
	errNoArticles       = "No articles available"
	errNoSelection      = "No article selected"
	errGenerationFailed = "Both AI and fallback post generation failed"
	errAllPublishFailed = "All publish attempts failed"
)

// OrchestratorConfig holds run-wide thresholds.
type OrchestratorConfig struct {
	MinQualityScore float64
	ShortLimit      int
	FallbackQuality float64
	DedupBatchSize  int
	Validation      pipeline.ValidationRules
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	if c.MinQualityScore <= 0 {
		c.MinQualityScore = 70
	}
	if c.ShortLimit <= 0 {
		c.ShortLimit = pipeline.DefaultShortLimit
	}
	if c.FallbackQuality <= 0 {
		c.FallbackQuality = 50
	}
	if c.Validation == (pipeline.ValidationRules{}) {
		c.Validation = pipeline.DefaultValidationRules()
	}
	c.Validation.ShortLimit = c.ShortLimit
	return c
}

// OrchestratorDeps wires the pipeline components into the orchestrator.
type OrchestratorDeps struct {
	Repository ports.Repository
	Fetcher    *pipeline.FeedFetcher
	Resolver   *pipeline.URLResolver
	Extractor  *pipeline.ContentExtractor
	// Generator is optional; without it every run uses template posts.
	Generator  *pipeline.Generator
	Dispatcher *pipeline.Dispatcher
	Config     OrchestratorConfig
	Logger     *slog.Logger
	Now        func() time.Time
}

// Orchestrator runs the end-to-end post pipeline for one project at a time.
type Orchestrator struct {
	repo       ports.Repository
	fetcher    *pipeline.FeedFetcher
	resolver   *pipeline.URLResolver
	dedup      *pipeline.Deduplicator
	extractor  *pipeline.ContentExtractor
	generator  *pipeline.Generator
	validator  *pipeline.Validator
	fallback   *pipeline.FallbackGenerator
	dispatcher *pipeline.Dispatcher
	cfg        OrchestratorConfig
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	running map[string]bool
}

// NewOrchestrator constructs the orchestration component.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	cfg := deps.Config.withDefaults()
	return &Orchestrator{
		repo:       deps.Repository,
		fetcher:    deps.Fetcher,
		resolver:   deps.Resolver,
		dedup:      pipeline.NewDeduplicator(deps.Repository, cfg.DedupBatchSize, logger),
		extractor:  deps.Extractor,
		generator:  deps.Generator,
		validator:  pipeline.NewValidator(cfg.Validation, logger),
		fallback:   pipeline.NewFallbackGenerator(cfg.ShortLimit),
		dispatcher: deps.Dispatcher,
		cfg:        cfg,
		logger:     logger.With("component", "orchestrator"),
		now:        now,
		running:    make(map[string]bool),
	}
}

// Run validates the project, records a new run and executes it to completion.
func (o *Orchestrator) Run(ctx context.Context, projectID string, trigger domain.TriggerType, platforms []domain.Platform) (domain.PipelineRun, error) {
	exec, err := o.Start(ctx, projectID, trigger, platforms)
	if err != nil {
		return domain.PipelineRun{}, err
	}
	return exec.Run(ctx), nil
}

// Start performs the pre-run checks and persists the running record. The
// returned execution holds the project's run slot until Run returns.
func (o *Orchestrator) Start(ctx context.Context, projectID string, trigger domain.TriggerType, platforms []domain.Platform) (*Execution, error) {
	project, err := o.repo.GetProject(ctx, projectID)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", projectID, err)
	}
	if !project.Active {
		return nil, fmt.Errorf("%w: %s", ErrProjectInactive, projectID)
	}

	if !o.acquire(projectID) {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, projectID)
	}
	running, err := o.repo.ListRuns(ctx, ports.RunFilter{ProjectID: projectID, Status: domain.RunRunning, Limit: 1})
	if err != nil {
		o.release(projectID)
		return nil, fmt.Errorf("check running runs: %w", err)
	}
	if len(running) > 0 {
		o.release(projectID)
		return nil, fmt.Errorf("%w: %s (run %d)", ErrRunInProgress, projectID, running[0].ID)
	}

	started := o.now().UTC()
	run := domain.PipelineRun{
		ProjectID: projectID,
		Trigger:   trigger,
		Status:    domain.RunRunning,
		StartedAt: started,
		Log: []domain.StepLog{{
			Step:      "init",
			Status:    domain.StepSuccess,
			Message:   fmt.Sprintf("Pipeline started (trigger: %s)", trigger),
			Timestamp: started,
		}},
	}
	id, err := o.repo.CreateRun(ctx, run)
	if err != nil {
		o.release(projectID)
		return nil, fmt.Errorf("create run: %w", err)
	}
	run.ID = id

	exec := &Execution{
		o:         o,
		project:   project,
		platforms: platforms,
		run:       run,
		logger:    o.logger.With("project_id", projectID, "run_id", id),
	}
	exec.logger.Info("pipeline started", "trigger", trigger, "platforms", platforms)
	return exec, nil
}

// Running reports whether the project holds the in-process run slot.
func (o *Orchestrator) Running(projectID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running[projectID]
}

func (o *Orchestrator) acquire(projectID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running[projectID] {
		return false
	}
	o.running[projectID] = true
	return true
}

func (o *Orchestrator) release(projectID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, projectID)
}

// Outcome is how a step ended.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeDegraded
	OutcomeFatal
	// OutcomeSkipped steps leave no log entry.
	OutcomeSkipped
)

// StepResult is returned by every pipeline step to the control loop.
type StepResult struct {
	Outcome Outcome
	Message string
}

func ok(format string, args ...any) StepResult {
	return StepResult{Outcome: OutcomeOK, Message: fmt.Sprintf(format, args...)}
}

func degraded(format string, args ...any) StepResult {
	return StepResult{Outcome: OutcomeDegraded, Message: fmt.Sprintf(format, args...)}
}

func fatal(message string) StepResult {
	return StepResult{Outcome: OutcomeFatal, Message: message}
}

func skipped() StepResult {
	return StepResult{Outcome: OutcomeSkipped}
}

func (r StepResult) status() domain.StepStatus {
	switch r.Outcome {
	case OutcomeDegraded:
		return domain.StepWarning
	case OutcomeFatal:
		return domain.StepError
	default:
		return domain.StepSuccess
	}
}

type step struct {
	name string
	run  func(ctx context.Context) StepResult
}

// Execution is one started run. It is not safe for concurrent use.
type Execution struct {
	o         *Orchestrator
	project   domain.Project
	platforms []domain.Platform
	run       domain.PipelineRun
	logger    *slog.Logger
	state     runState
}

// ID returns the persisted run id.
func (e *Execution) ID() int64 { return e.run.ID }

// Run executes every step and returns the final run record. It never panics
// and releases the project's run slot on return.
func (e *Execution) Run(ctx context.Context) (result domain.PipelineRun) {
	defer e.o.release(e.project.ID)
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("pipeline panicked", "panic", r, "stack", string(debug.Stack()))
			e.fail(ctx, "pipeline", fmt.Sprintf("Unexpected error: %v", r))
			result = e.snapshot()
		}
	}()

	for _, s := range e.steps() {
		res := e.runStep(ctx, s)
		if res.Outcome == OutcomeSkipped {
			continue
		}
		if res.Outcome == OutcomeFatal {
			e.fail(ctx, s.name, res.Message)
			return e.snapshot()
		}
		e.record(s.name, res.status(), res.Message)
		e.persist(ctx)
	}
	e.finalize(ctx)
	return e.snapshot()
}

func (e *Execution) runStep(ctx context.Context, s step) (res StepResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("step panicked", "step", s.name, "panic", r, "stack", string(debug.Stack()))
			res = fatal(fmt.Sprintf("Unexpected error in %s: %v", s.name, r))
		}
	}()
	return s.run(ctx)
}

// record appends a step entry and mirrors it to the structured log.
func (e *Execution) record(name string, status domain.StepStatus, message string) {
	e.run.Log = append(e.run.Log, domain.StepLog{
		Step:      name,
		Status:    status,
		Message:   message,
		Timestamp: e.o.now().UTC(),
	})
	e.logger.Log(context.Background(), logging.StepLevel(status), message, "step", name, "status", status)
}

// persist writes the current run state. Storage errors are logged, never fatal.
func (e *Execution) persist(ctx context.Context) {
	run := e.run
	update := domain.RunUpdate{
		Status:            &run.Status,
		CompletedAt:       run.CompletedAt,
		ArticlesFetched:   &run.ArticlesFetched,
		ArticlesNew:       &run.ArticlesNew,
		SelectedArticleID: &run.SelectedArticleID,
		ModelUsed:         &run.ModelUsed,
		UsedFallback:      &run.UsedFallback,
		Error:             &run.Error,
		Log:               append([]domain.StepLog{}, run.Log...),
	}
	if err := e.o.repo.UpdateRun(context.WithoutCancel(ctx), run.ID, update); err != nil {
		e.logger.Error("persist run failed", "error", err)
	}
}

func (e *Execution) fail(ctx context.Context, stepName, message string) {
	e.record(stepName, domain.StepError, message)
	completed := e.o.now().UTC()
	e.run.Status = domain.RunFailed
	e.run.Error = message
	e.run.CompletedAt = &completed
	e.persist(ctx)
	e.logger.Error("pipeline failed", "step", stepName, "error", message)
}

// finalize applies the run status rule from the publish counts.
func (e *Execution) finalize(ctx context.Context) {
	report := e.state.report
	status := domain.RunSuccess
	switch {
	case report.Succeeded > 0 && report.Failed > 0:
		status = domain.RunPartialFailure
	case e.state.targets > 0 && report.Succeeded == 0:
		status = domain.RunFailed
		e.run.Error = errAllPublishFailed
	}

	completed := e.o.now().UTC()
	e.run.Status = status
	e.run.CompletedAt = &completed
	st := domain.StepSuccess
	switch status {
	case domain.RunPartialFailure:
		st = domain.StepWarning
	case domain.RunFailed:
		st = domain.StepError
	}
	e.record("finalize", st, fmt.Sprintf("Pipeline finished with status %s (%d published, %d failed)", status, report.Succeeded, report.Failed))
	e.persist(ctx)
	e.logger.Info("pipeline finished", "status", status, "duration", completed.Sub(e.run.StartedAt))
}

func (e *Execution) snapshot() domain.PipelineRun {
	run := e.run
	run.Log = append([]domain.StepLog(nil), e.run.Log...)
	return run
}
