package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

const (
	defaultStuckTimeout = 30 * time.Minute
	defaultRecentWindow = 90 * time.Minute
)

// TriggerDeps wires the orchestrator with the scheduling driver.
type TriggerDeps struct {
	Orchestrator *Orchestrator
	Repository   ports.Repository
	// Scheduler is optional; serverless hosts rely on CronCheck instead.
	Scheduler ports.Scheduler
	// Async runs manual triggers in the background.
	Async        bool
	StuckTimeout time.Duration
	RecentWindow time.Duration
	Location     *time.Location
	Logger       *slog.Logger
	Now          func() time.Time
}

// Trigger starts pipeline runs on behalf of users, the scheduler and external cron.
type Trigger struct {
	orchestrator *Orchestrator
	repo         ports.Repository
	scheduler    ports.Scheduler
	async        bool
	stuckTimeout time.Duration
	recentWindow time.Duration
	loc          *time.Location
	logger       *slog.Logger
	now          func() time.Time
	wg           sync.WaitGroup
}

// NewTrigger returns the trigger service.
func NewTrigger(deps TriggerDeps) *Trigger {
	t := &Trigger{
		orchestrator: deps.Orchestrator,
		repo:         deps.Repository,
		scheduler:    deps.Scheduler,
		async:        deps.Async,
		stuckTimeout: deps.StuckTimeout,
		recentWindow: deps.RecentWindow,
		loc:          deps.Location,
		logger:       deps.Logger,
		now:          deps.Now,
	}
	if t.stuckTimeout <= 0 {
		t.stuckTimeout = defaultStuckTimeout
	}
	if t.recentWindow <= 0 {
		t.recentWindow = defaultRecentWindow
	}
	if t.loc == nil {
		t.loc = time.UTC
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	t.logger = t.logger.With("component", "trigger")
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// ManualResult describes an accepted manual trigger. Run is set in sync mode.
type ManualResult struct {
	RunID int64               `json:"run_id"`
	Async bool                `json:"async"`
	Run   *domain.PipelineRun `json:"run,omitempty"`
}

// Manual starts a run for the project. Only pre-run validation errors are returned.
func (t *Trigger) Manual(ctx context.Context, projectID string, platforms []domain.Platform) (ManualResult, error) {
	if _, err := t.ReapStuckRuns(ctx); err != nil {
		t.logger.Warn("reaping stuck runs failed", "error", err)
	}

	exec, err := t.orchestrator.Start(ctx, projectID, domain.TriggerManual, platforms)
	if err != nil {
		return ManualResult{}, err
	}
	// A started run outlives the caller's context in both modes.
	runCtx := context.WithoutCancel(ctx)
	if t.async {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			exec.Run(runCtx)
		}()
		return ManualResult{RunID: exec.ID(), Async: true}, nil
	}
	run := exec.Run(runCtx)
	return ManualResult{RunID: run.ID, Run: &run}, nil
}

// Scheduled is the scheduler job callback.
func (t *Trigger) Scheduled(projectID string, platforms []domain.Platform) {
	ctx := context.Background()
	run, err := t.orchestrator.Run(ctx, projectID, domain.TriggerScheduled, platforms)
	if err != nil {
		t.logger.Warn("scheduled run not started", "project_id", projectID, "error", err)
		return
	}
	t.logger.Info("scheduled run finished", "project_id", projectID, "run_id", run.ID, "status", run.Status)
}

// CronResult is the outcome of CronCheck for one project.
type CronResult struct {
	ProjectID string            `json:"project_id"`
	Action    string            `json:"action"`
	Reason    string            `json:"reason,omitempty"`
	Platforms []domain.Platform `json:"platforms,omitempty"`
	RunID     int64             `json:"run_id,omitempty"`
	Status    domain.RunStatus  `json:"status,omitempty"`
}

// CronCheck runs every active project whose schedule matches the current hour
// and that has not run within the recent window. It is meant to be called
// hourly by an external cron on hosts without a resident scheduler.
func (t *Trigger) CronCheck(ctx context.Context) ([]CronResult, error) {
	projects, err := t.repo.ListProjects(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	now := t.now().In(t.loc)

	var results []CronResult
	for _, project := range projects {
		due, platforms := dueThisHour(project.Schedule, now)
		if !due {
			continue
		}
		result := CronResult{ProjectID: project.ID, Platforms: platforms}

		recent, err := t.repo.ListRuns(ctx, ports.RunFilter{ProjectID: project.ID, Limit: 1})
		if err != nil {
			result.Action, result.Reason = "error", err.Error()
			results = append(results, result)
			continue
		}
		if len(recent) > 0 && now.Sub(recent[0].StartedAt) < t.recentWindow {
			result.Action, result.Reason = "skipped", "ran recently"
			results = append(results, result)
			continue
		}

		run, err := t.orchestrator.Run(context.WithoutCancel(ctx), project.ID, domain.TriggerCron, platforms)
		if err != nil {
			result.Action, result.Reason = "skipped", err.Error()
		} else {
			result.Action, result.RunID, result.Status = "ran", run.ID, run.Status
		}
		results = append(results, result)
	}
	t.logger.Info("cron check complete", "projects", len(projects), "handled", len(results))
	return results, nil
}

// RunNow is the cron endpoint for one project, bypassing the schedule match.
func (t *Trigger) RunNow(ctx context.Context, projectID string, platforms []domain.Platform) (domain.PipelineRun, error) {
	return t.orchestrator.Run(context.WithoutCancel(ctx), projectID, domain.TriggerCron, platforms)
}

// dueThisHour matches schedule entries against the hour containing now and
// unions their platforms. A due entry without platforms means every platform.
func dueThisHour(entries []domain.ScheduleEntry, now time.Time) (bool, []domain.Platform) {
	hourStart := now.Truncate(time.Hour)
	hourEnd := hourStart.Add(time.Hour)

	due, all := false, false
	var platforms []domain.Platform
	for _, e := range entries {
		schedule, err := cron.ParseStandard(e.Cron)
		if err != nil {
			continue
		}
		if !schedule.Next(hourStart.Add(-time.Second)).Before(hourEnd) {
			continue
		}
		due = true
		if len(e.Platforms) == 0 {
			all = true
			continue
		}
		for _, p := range e.Platforms {
			if !slices.Contains(platforms, p) {
				platforms = append(platforms, p)
			}
		}
	}
	if all {
		return due, nil
	}
	return due, platforms
}

// ReapStuckRuns marks runs left running longer than the stuck timeout as failed.
func (t *Trigger) ReapStuckRuns(ctx context.Context) (int, error) {
	now := t.now().UTC()
	stuck, err := t.repo.ListRuns(ctx, ports.RunFilter{Status: domain.RunRunning, StartedBefore: now.Add(-t.stuckTimeout), Limit: 100})
	if err != nil {
		return 0, fmt.Errorf("list stuck runs: %w", err)
	}

	reaped := 0
	for _, run := range stuck {
		if t.orchestrator != nil && t.orchestrator.Running(run.ProjectID) {
			continue
		}
		status, message := domain.RunFailed, "Timed out"
		logEntries := append(run.Log, domain.StepLog{
			Step:      "timeout",
			Status:    domain.StepError,
			Message:   fmt.Sprintf("Run exceeded %s and was marked failed", t.stuckTimeout),
			Timestamp: now,
		})
		err := t.repo.UpdateRun(ctx, run.ID, domain.RunUpdate{Status: &status, Error: &message, CompletedAt: &now, Log: logEntries})
		if err != nil {
			return reaped, fmt.Errorf("mark run %d failed: %w", run.ID, err)
		}
		reaped++
		t.logger.Warn("stuck run marked failed", "run_id", run.ID, "project_id", run.ProjectID, "started_at", run.StartedAt)
	}
	return reaped, nil
}

// SyncSchedules registers the schedule of every active project.
func (t *Trigger) SyncSchedules(ctx context.Context) error {
	if t.scheduler == nil {
		return nil
	}
	projects, err := t.repo.ListProjects(ctx, false)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	var errs []error
	for _, p := range projects {
		if !p.Active || len(p.Schedule) == 0 {
			t.scheduler.Remove(p.ID)
			continue
		}
		if err := t.scheduler.Schedule(p.ID, p.Schedule); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start reaps stuck runs, registers schedules and starts the scheduler.
func (t *Trigger) Start(ctx context.Context) error {
	if n, err := t.ReapStuckRuns(ctx); err != nil {
		t.logger.Warn("reaping stuck runs failed", "error", err)
	} else if n > 0 {
		t.logger.Info("reaped stuck runs", "count", n)
	}
	if err := t.SyncSchedules(ctx); err != nil {
		return fmt.Errorf("sync schedules: %w", err)
	}
	if t.scheduler != nil {
		t.scheduler.Start()
	}
	return nil
}

// Stop halts the scheduler and waits for background runs or ctx expiry.
func (t *Trigger) Stop(ctx context.Context) error {
	if t.scheduler != nil {
		if err := t.scheduler.Stop(ctx); err != nil {
			return err
		}
	}
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for runs: %w", ctx.Err())
	}
}

// Wait blocks until every background run has finished.
func (t *Trigger) Wait() {
	t.wg.Wait()
}
