package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

// ErrNoPublisher is reported when a target platform has no registered client.
var ErrNoPublisher = errors.New("no publisher registered for platform")

// Target is one delivery to attempt.
type Target struct {
	Profile domain.Profile
	PostID  int64
	Content string
}

// DispatchReport aggregates the outcome of a dispatch pass.
type DispatchReport struct {
	Results   []domain.PublishResult
	Succeeded int
	Failed    int
}

// Dispatcher delivers posts to every target once, independently.
type Dispatcher struct {
	registry ports.PublisherRegistry
	now      func() time.Time
	logger   *slog.Logger
}

// NewDispatcher builds a dispatcher over the publisher registry.
func NewDispatcher(registry ports.PublisherRegistry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, now: time.Now, logger: logger.With("component", "dispatcher")}
}

// Dispatch attempts every target. A failing or panicking publisher never blocks the others.
func (d *Dispatcher) Dispatch(ctx context.Context, targets []Target) DispatchReport {
	var report DispatchReport
	for _, target := range targets {
		result := d.deliver(ctx, target)
		if result.Status == domain.PublishSuccess {
			report.Succeeded++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, result)
	}
	return report
}

func (d *Dispatcher) deliver(ctx context.Context, target Target) (result domain.PublishResult) {
	result = domain.PublishResult{
		PostID:      target.PostID,
		ProfileID:   target.Profile.ID,
		Platform:    target.Profile.Platform,
		AccountType: target.Profile.AccountType,
		Status:      domain.PublishFailed,
	}
	defer func() {
		if r := recover(); r != nil {
			result.Status = domain.PublishFailed
			result.Error = fmt.Sprintf("publisher panic: %v", r)
			d.logger.Error("publisher panicked", "target", target.Profile.Label(), "panic", r)
		}
	}()

	var publisher ports.Publisher
	ok := false
	if d.registry != nil {
		publisher, ok = d.registry.Publisher(target.Profile.Platform)
	}
	if !ok {
		result.Error = fmt.Sprintf("%s: %s", ErrNoPublisher, target.Profile.Platform)
		return result
	}

	postID, err := publisher.Publish(ctx, target.Content, target.Profile)
	if err != nil {
		result.Error = err.Error()
		d.logger.Warn("publish failed", "target", target.Profile.Label(), "error", err)
		return result
	}

	posted := d.now().UTC()
	result.Status = domain.PublishSuccess
	result.PlatformPostID = postID
	result.PostedAt = &posted
	d.logger.Info("published", "target", target.Profile.Label(), "platform_post_id", postID)
	return result
}
