package domain

import "time"

// TriggerType labels what started a run.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerCron      TriggerType = "cron"
	TriggerScheduled TriggerType = "scheduled"
)

// RunStatus enumerates pipeline run lifecycle states.
type RunStatus string

const (
	RunRunning        RunStatus = "running"
	RunSuccess        RunStatus = "success"
	RunPartialFailure RunStatus = "partial_failure"
	RunFailed         RunStatus = "failed"
)

// StepStatus is the severity of a step log entry.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepWarning StepStatus = "warning"
	StepError   StepStatus = "error"
)

// StepLog is a single entry of a run's ordered step log.
type StepLog struct {
	Step      string     `json:"step"`
	Status    StepStatus `json:"status"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

// PipelineRun is the audit record of one orchestrator invocation.
type PipelineRun struct {
	ID                int64
	ProjectID         string
	Trigger           TriggerType
	Status            RunStatus
	StartedAt         time.Time
	CompletedAt       *time.Time
	ArticlesFetched   int
	ArticlesNew       int
	SelectedArticleID int64
	ModelUsed         string
	UsedFallback      bool
	Error             string
	Log               []StepLog
}

// RunUpdate names the run fields to overwrite; nil fields are left untouched.
type RunUpdate struct {
	Status            *RunStatus
	CompletedAt       *time.Time
	ArticlesFetched   *int
	ArticlesNew       *int
	SelectedArticleID *int64
	ModelUsed         *string
	UsedFallback      *bool
	Error             *string
	Log               []StepLog
}

// GeneratedPost is the finalized content for one platform of one run.
type GeneratedPost struct {
	ID              int64
	RunID           int64
	ProjectID       string
	Platform        Platform
	Content         string
	ArticleURL      string
	ArticleTitle    string
	IsFallback      bool
	QualityScore    float64
	ValidationNotes string
	CreatedAt       time.Time
}

// PublishStatus is the outcome of a single delivery attempt.
type PublishStatus string

const (
	PublishSuccess PublishStatus = "success"
	PublishFailed  PublishStatus = "failed"
)

// PublishResult records one delivery attempt to one profile.
type PublishResult struct {
	ID             int64
	PostID         int64
	ProfileID      int64
	Platform       Platform
	AccountType    AccountType
	Status         PublishStatus
	PlatformPostID string
	Error          string
	PostedAt       *time.Time
}
