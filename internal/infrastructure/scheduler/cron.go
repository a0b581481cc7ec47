package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

// ErrNoJobs is returned when pausing or resuming a project without jobs.
var ErrNoJobs = errors.New("no scheduled jobs for project")

// JobFunc runs one scheduled pipeline execution.
type JobFunc func(projectID string, platforms []domain.Platform)

type job struct {
	id        string
	projectID string
	spec      string
	platforms []domain.Platform
	entryID   cron.EntryID
	paused    bool
}

// CronScheduler registers one cron entry per project schedule entry.
type CronScheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	run    JobFunc
	jobs   map[string][]*job
	logger *slog.Logger
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler evaluating expressions in loc.
func NewCronScheduler(loc *time.Location, run JobFunc, logger *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")
	return &CronScheduler{
		cron:   cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cronLogger{logger}))),
		run:    run,
		jobs:   make(map[string][]*job),
		logger: logger,
	}
}

// JobID names the job of entry index i out of total for a project.
func JobID(projectID string, i, total int) string {
	if total <= 1 {
		return "pipeline_" + projectID
	}
	return fmt.Sprintf("pipeline_%s_%d", projectID, i)
}

// Schedule replaces every job of the project with one per entry.
func (c *CronScheduler) Schedule(projectID string, entries []domain.ScheduleEntry) error {
	schedules := make([]cron.Schedule, len(entries))
	for i, e := range entries {
		s, err := cron.ParseStandard(e.Cron)
		if err != nil {
			return fmt.Errorf("parse cron %q for %s: %w", e.Cron, projectID, err)
		}
		schedules[i] = s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(projectID)

	jobs := make([]*job, 0, len(entries))
	for i, e := range entries {
		j := &job{
			id:        JobID(projectID, i, len(entries)),
			projectID: projectID,
			spec:      e.Cron,
			platforms: append([]domain.Platform(nil), e.Platforms...),
		}
		j.entryID = c.cron.Schedule(schedules[i], cron.FuncJob(func() { c.fire(j) }))
		jobs = append(jobs, j)
		c.logger.Info("job scheduled", "job_id", j.id, "cron", j.spec, "platforms", j.platforms)
	}
	if len(jobs) > 0 {
		c.jobs[projectID] = jobs
	}
	return nil
}

func (c *CronScheduler) fire(j *job) {
	c.mu.Lock()
	paused := j.paused
	c.mu.Unlock()
	if paused {
		c.logger.Debug("job paused, skipping", "job_id", j.id)
		return
	}
	if c.run != nil {
		c.run(j.projectID, j.platforms)
	}
}

// Remove drops every job of the project.
func (c *CronScheduler) Remove(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(projectID)
}

func (c *CronScheduler) removeLocked(projectID string) {
	for _, j := range c.jobs[projectID] {
		c.cron.Remove(j.entryID)
	}
	delete(c.jobs, projectID)
}

// Pause keeps the project's jobs registered but skips their executions.
func (c *CronScheduler) Pause(projectID string) error {
	return c.setPaused(projectID, true)
}

// Resume re-enables paused jobs.
func (c *CronScheduler) Resume(projectID string) error {
	return c.setPaused(projectID, false)
}

func (c *CronScheduler) setPaused(projectID string, paused bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	jobs := c.jobs[projectID]
	if len(jobs) == 0 {
		return fmt.Errorf("%w: %s", ErrNoJobs, projectID)
	}
	for _, j := range jobs {
		j.paused = paused
	}
	c.logger.Info("jobs updated", "project_id", projectID, "paused", paused)
	return nil
}

// ListJobs describes every registered job ordered by id.
func (c *CronScheduler) ListJobs() []ports.JobInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ports.JobInfo
	for _, jobs := range c.jobs {
		for _, j := range jobs {
			info := ports.JobInfo{
				ID:        j.id,
				ProjectID: j.projectID,
				Spec:      j.spec,
				Platforms: append([]domain.Platform(nil), j.platforms...),
				Paused:    j.paused,
			}
			if next := c.next(j); !next.IsZero() {
				info.Next = &next
			}
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// NextRun returns the earliest upcoming execution of the project.
func (c *CronScheduler) NextRun(projectID string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var earliest time.Time
	for _, j := range c.jobs[projectID] {
		next := c.next(j)
		if next.IsZero() {
			continue
		}
		if earliest.IsZero() || next.Before(earliest) {
			earliest = next
		}
	}
	return earliest, !earliest.IsZero()
}

// next falls back to evaluating the schedule when the cron loop has not started.
func (c *CronScheduler) next(j *job) time.Time {
	if j.paused {
		return time.Time{}
	}
	entry := c.cron.Entry(j.entryID)
	if !entry.Next.IsZero() {
		return entry.Next
	}
	if entry.Schedule == nil {
		return time.Time{}
	}
	return entry.Schedule.Next(time.Now().In(c.cron.Location()))
}

// Start begins dispatching jobs in the background.
func (c *CronScheduler) Start() {
	c.cron.Start()
	c.logger.Info("scheduler started")
}

// Stop halts dispatching and waits for running jobs or ctx expiry.
func (c *CronScheduler) Stop(ctx context.Context) error {
	done := c.cron.Stop()
	select {
	case <-done.Done():
		c.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}

// cronLogger forwards robfig/cron diagnostics to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
